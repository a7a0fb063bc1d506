// Package chatcompat implements the provider interface over the
// OpenAI-compatible Chat Completions protocol. It serves two backend
// kinds: "azure" (Azure OpenAI deployments, api-key header, deployment
// URLs) and "custom" (any self-hosted OpenAI-compatible endpoint such as
// vLLM or LiteLLM, bearer auth).
package chatcompat
