// Package mcptool is the tool-invocation layer: it issues single remote
// tool calls against MCP servers and wraps them with error classification
// and retry/backoff.
//
// The package distinguishes two failure classes. Transient failures
// (timeouts, connection loss) are retried with exponential backoff up to
// the policy's attempt budget; validation failures (bad parameters,
// unknown tools) get exactly one attempt. Exhausted retries surface as an
// *InvocationError carrying the attempt count and last error.
//
// Invocations share no mutable state, so calls to unrelated servers may
// run concurrently. Calls that act on the same browser session must be
// serialized by the caller — element refs and the current URL are only
// meaningful for the single most recent page state.
package mcptool
