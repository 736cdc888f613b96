package models

import "time"

// MaxWatchlistSize caps how many symbols a user can track.
const MaxWatchlistSize = 50

// WatchlistItem is one tracked symbol on a user's watchlist.
type WatchlistItem struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id"`
	Tradingsymbol string    `json:"tradingsymbol"`
	AddedAt       time.Time `json:"added_at"`
}
