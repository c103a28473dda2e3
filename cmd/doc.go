// Package cmd implements the command-line interface for inboxagent.
//
// It provides the following commands:
//   - chat: interactive email agent session (default)
//   - serve: run as an MCP server over stdio
//   - auth: authorize Gmail access for an account
//   - generate-docs: generate markdown documentation for the tools
//   - version: print the version number
package cmd
