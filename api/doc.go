// Package api provides the HTTP surface of the livestate server.
//
// Endpoints:
//
//   - GET /api/health - liveness check and version
//   - GET /api/status - route count, open sessions, process resources
//   - GET /api/kinds - route definitions known to the Registry
//   - GET /api/routes - stats for every created route, optionally ?kind=setup
//   - GET /api/routes/{name} - stats for one route, e.g. /api/routes/setup/abc
//   - /ws - WebSocket sessions (see transport/websocket)
//   - / - static files when a static directory is configured
//
// Errors are returned as JSON with an appropriate HTTP status code:
//
//	{"error": "route not found: /setup/abc"}
//
// Route stats are read through each Host's own queue, so the API never
// touches live state directly.
package api
