// Package websocket connects browser clients to live routes.
//
// Each connection is served by a Session that is subscribed to exactly one
// host.Host at a time. The Host pushes per-user views; the Session wraps them
// in an Envelope and writes them to the socket, skipping a push whose bytes
// equal the previous one. Text frames from the client are forwarded verbatim
// to the current Host, which decodes them for its route.
//
// Handshake:
//
//	GET /ws?uuid=<version 4 uuid>&route=/setup/abc
//
// A missing or malformed uuid is rejected with 401 before the upgrade. The
// route defaults to Options.InitialRoute; a route the Registry cannot resolve
// is rejected with 404.
//
// Wire format (server to client):
//
//	{"route": "setup", "data": {...}}
//
// Redirects:
//
// When a Host hands its subscribers off, the Session swaps its Host reference
// and subscribes to the target. Redirects travel through the same queue as view
// pushes, so a client never sees a view of the route it left after one of
// the route it moved to.
//
// Liveness:
//
// Every heartbeat interval the Session pings the client. If no pong arrived
// within the client timeout, the connection is closed. A session that cannot
// keep up with pushes is closed as well. In every case the Session
// unsubscribes from its current Host exactly once.
package websocket
