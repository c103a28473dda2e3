// Package logging provides structured logging helpers for inboxagent.
//
// It centralizes attribute naming so log lines from the agent loop, the tool
// handlers and the Gmail client stay consistent and queryable, and it hashes
// email addresses before they are logged.
//
// Usage:
//
//	logger := logging.WithTool(slog.Default(), "send_reply")
//	logger.Info("tool executed",
//	    logging.Status(logging.StatusSuccess),
//	    logging.UserHash(recipient))
package logging
