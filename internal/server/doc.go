// Package server provides the shared runtime context for the chat and MCP
// serve modes: lazily initialized per-account Gmail clients, the model
// client, instrumentation wiring, and the optional metrics/health HTTP
// server.
//
// ServerContext caches one Gmail client per account and creates them on
// first use, so a server can be started before every account has completed
// the OAuth flow. The MCP serve mode uses STDIO transport only; the metrics
// server runs on a dedicated port so operational endpoints never share a
// listener with application traffic.
package server
