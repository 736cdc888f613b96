// Package repositories implements SQL persistence for all domain entities.
//
// The cloud Postgres database holds market data and account entities; the
// local SQLite database holds only the broker session. Queries are written
// with numbered placeholders so the same repositories run against both
// drivers, which keeps the suite testable on an in-memory database.
//
// Key Implementations:
//   - [UserRepository] : Account persistence with email and Google lookups
//   - [InstrumentRepository] : Instrument master synced from the broker dump
//   - [CandleRepository] : Daily bars and their computed feature columns
//   - [PredictionRepository] : Scored output, replaced atomically per run
//   - [PortfolioRepository] : Paper trading with balance-guarded trades
//   - [WatchlistRepository], [AlertRepository], [NotificationRepository]
//   - [SessionRepository] : Broker session in the local store
package repositories
