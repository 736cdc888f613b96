// Package models defines domain entities for the OMRE market dashboard.
//
// The package contains two categories of types:
//
// 1. Market data entities synced from the broker API:
//   - [Instrument] : Tradable instrument metadata from the instrument dump
//   - [Candle] : Daily OHLCV bars with computed feature columns
//   - [Prediction] : Scored model output served on the dashboard
//
// 2. Account entities backing the API surface:
//   - [User] : Dashboard accounts with password or Google sign-in
//   - [Portfolio], [Position], [Transaction] : Paper trading state
//   - [WatchlistItem], [PriceAlert], [Notification] : Per-user features
//
// Entities validate their own invariants via Validate; persistence lives in
// the repositories package.
package models
