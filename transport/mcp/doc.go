// Package mcp provides a Model Context Protocol server for inspecting a running
// livestate server.
//
// The mcp package implements:
//   - MCP server for AI agent integration
//   - Read-only tools that proxy the REST API
//   - Stdio and HTTP transport modes
//
// MCP Tools:
//
// The package exposes the following tools for AI agents:
//   - list_route_kinds: route patterns the server can host
//   - list_routes: live routes with counters, optionally filtered by kind
//   - get_route: counters for one live route, e.g. /setup/abc
//   - server_status: uptime, open sessions and process usage
//   - live_protocol: how browser clients use the /ws endpoint
//
// No tool can send events to a route. Routes change only through WebSocket
// sessions.
//
// Transport Modes:
//
// The server supports two transport modes:
//   - Stdio: `livestate mcp` serves the tools on stdin/stdout
//   - HTTP: `livestate serve` mounts a JSON-RPC endpoint at /mcp
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
