// Package llm wraps the OpenAI chat completions API behind the small surface
// the agent needs: one completion-with-tools call used by the turn loop, and
// the single-shot reply generation and improvement calls used by the
// generate_reply and improve_reply tools.
//
// All backend failures are reported as *Error with a Kind that distinguishes
// rate limiting, connectivity problems, API rejections and malformed
// responses. The agent loop treats every *Error as fatal for the current
// turn and propagates it to the caller, which decides whether to retry.
package llm
