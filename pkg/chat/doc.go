// Package chat defines the conversation data model shared by every layer
// of the engine: messages, tool calls, tool results, discovered tool
// definitions, and the structured error taxonomy. The types are
// backend-agnostic; each provider adapter translates them to and from its
// own wire format.
package chat
