// Package tools provides the tool registry that the agent loop dispatches
// model tool calls against.
//
// A Tool bundles a name, a human-readable description, a JSON Schema for its
// arguments, and a handler. The Registry validates arguments against the
// schema before invoking the handler, so handlers can assume well-formed
// input. Registration is strict: duplicate names are rejected so a typo in
// wiring surfaces at startup rather than as shadowed behavior at runtime.
package tools
