package models

import "time"

// KiteSession is the broker session obtained from the login flow. The
// access token is valid until roughly 6 AM IST the next day; the local
// store keeps the most recent one.
type KiteSession struct {
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	Email       string    `json:"email"`
	APIKey      string    `json:"api_key"`
	AccessToken string    `json:"access_token"`
	PublicToken string    `json:"public_token"`
	LoginTime   time.Time `json:"login_time"`
}

// Stale reports whether the session predates today's token cycle. Broker
// tokens expire at 06:00 IST, so anything issued before the most recent
// cutoff is unusable.
func (s *KiteSession) Stale(now time.Time) bool {
	ist := time.FixedZone("IST", 5*3600+1800)
	local := now.In(ist)
	cutoff := time.Date(local.Year(), local.Month(), local.Day(), 6, 0, 0, 0, ist)
	if local.Before(cutoff) {
		cutoff = cutoff.AddDate(0, 0, -1)
	}
	return s.LoginTime.Before(cutoff)
}
