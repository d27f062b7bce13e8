// Package server exposes the availability engine over HTTP.
//
// # Routes
//
//	GET  /health       liveness probe
//	GET  /api/targets  configured library targets (secrets omitted)
//	POST /api/check    books in, [models.ShelfReport] out
//
// The router is built on chi with CORS open to any origin; every request is logged
// through a charmbracelet/log [log.Logger] with its chi request id.
//
// # Handler Interface
//
// Endpoint groups implement [Handler], registering their own routes on the router so
// route definitions live next to the code that serves them.
//
// # Checks
//
// A check runs synchronously within the request. The engine is shared between
// requests, so each library's rate limit holds across concurrent callers. Lookups that
// fail still produce a 200 with "unknown" results; only malformed input yields a 400.
package server
