// Package server provides HTTP routing, middleware, and the handlers
// behind the mobile dashboard and its JSON API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally, so
// route patterns may carry method prefixes and `{name}` wildcards.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
// Handlers dispatch internally on [http.Request.Pattern].
//
// # Surfaces
//
// Three surfaces share the router:
//   - the dashboard page and broker login flow (/, /login, /callback)
//   - pipeline job control (/run/{job}, /stop/{job}, /status)
//   - the versioned JSON API under /api/v1 (auth, watchlist, paper
//     trading, stocks, alerts, notifications)
//
// JWT-guarded handlers are wrapped with [Authed]; the user id travels
// in the request context and is read back with [UserID].
//
// # Broker Callback
//
// [CallbackHandler] captures the request token the broker appends to
// its redirect. It processes one callback and delivers the result over
// a channel, which lets the CLI login flow run a short-lived local
// server and shut it down after the first hit.
package server
