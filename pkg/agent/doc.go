// Package agent is the reasoning-model boundary of a session.
//
// A ChatAgent builds the turn prompt (persona, tool catalog, history,
// current context, instructions and output format), calls one LLMProvider
// and normalizes whatever text comes back into a schema.Response. Provider
// adapters exist for Anthropic, OpenAI, Ollama (OpenAI-compatible API) and
// Gemini.
//
// Usage:
//
//	provider, _ := (&agent.ProviderFactory{}).NewProvider(profile)
//	chat, _ := agent.NewChatAgent(agent.ChatConfig{Provider: provider, Model: "llama3.1", Prompts: store})
//	resp, _ := chat.Respond(ctx, agent.RespondRequest{Time: time.Now(), Sense: sense})
package agent
