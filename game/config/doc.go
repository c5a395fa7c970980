// Package config provides configuration loading for the livestate server.
//
// Configuration is layered, later sources winning:
//   - built-in defaults (Default)
//   - a YAML file (Load, LoadOrDefault)
//   - environment variables prefixed with LIVESTATE_
//
// Command line flags are applied on top by the caller.
//
// Example file:
//
//	server:
//	  host: 0.0.0.0
//	  port: 8080
//	  allowed_origins: ["https://example.com"]
//	session:
//	  heartbeat_interval: 5s
//	  client_timeout: 10s
//	routes:
//	  initial: /counter
//	wedding:
//	  questions:
//	    - Who can jump higher?
//
// Environment examples: LIVESTATE_SERVER_PORT=9090,
// LIVESTATE_SESSION_CLIENT_TIMEOUT=30s, LIVESTATE_WEDDING_QUESTIONS="A?|B?".
//
// Validation:
//
// Validate rejects non-positive durations and sizes, a client timeout that
// does not exceed the heartbeat interval, an initial route without a leading
// slash and an empty question list. Failures wrap ErrInvalidConfig.
package config
