// Package services implements clients for the external HTTP APIs the
// dashboard depends on.
//
// [KiteService] talks to the Kite Connect API: the daily login handshake,
// the instrument dump (CSV), historical candles, and last traded prices.
// Every JSON request goes through a shared rate limiter and exponential
// retry, since the broker enforces a 3 req/s ceiling on data endpoints.
//
// [GoogleService] handles the OAuth2 code flow for social sign-in and
// returns the verified identity used to create or link accounts.
package services
