// Package provider defines the protocol-agnostic interface for LLM
// completion backends. Each adapter (openai, anthropic, ollama, gemini,
// chatcompat) handles its own wire protocol internally and surfaces a
// uniform event stream, keeping backend details invisible to the engine.
//
// Adapters register themselves by backend kind in an init function;
// importing an adapter package makes its kind constructible through New.
package provider
