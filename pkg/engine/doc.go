// Package engine implements the conversation orchestrator: the
// turn-taking state machine that drives a provider stream, collects
// tool-call directives, dispatches them to the tool server manager,
// injects results, and issues continuation requests until the model
// produces a final answer. Turns are bounded by a tool-round limit and
// cancellable at every suspension point; cancellation rolls the
// conversation back to the last message committed before the turn.
package engine
