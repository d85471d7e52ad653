// Package transport holds the HTTP plumbing shared by the sellside protocol
// adapters.
//
// # Middleware
//
// Middleware wraps an http.Handler with cross-cutting behavior. The default
// chain provides panic recovery, request ID assignment (X-Request-ID), and
// structured access logging via log/slog. Identity resolution is not part of
// this chain: each protocol adapter runs auth.Resolver itself, because MCP
// resolves per tool call while A2A resolves per HTTP request.
//
// # Errors
//
// WriteJSON and WriteError render JSON bodies with consistent headers.
// Protocol-specific envelopes (JSON-RPC errors, MCP tool errors) are built by
// the adapters on top of them.
package transport
