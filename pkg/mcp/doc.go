// Package mcp manages tool server subprocesses speaking the Model
// Context Protocol over stdio. Each configured server gets a Server
// handle with an explicit lifecycle state machine; the Manager starts
// them, aggregates their discovered tools into a deduplicated catalog,
// and routes tool invocations to the owning server.
//
// Tool invocation failures are data, not engine errors: Invoke always
// returns a ToolResult so a failing tool can flow back into the
// conversation without ending the turn.
package mcp
