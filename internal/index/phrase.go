package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/toolweave/toolweave/pkg/provider/chat"
	"github.com/toolweave/toolweave/pkg/types"
)

// PhraseMode selects how search phrases are derived from tool descriptors.
type PhraseMode int

const (
	// PhraseModeHeuristic renders a fixed template naming the tool,
	// description, and server. No LLM call is made.
	PhraseModeHeuristic PhraseMode = iota

	// PhraseModeLLMAssisted asks a chat model to rewrite each tool into a
	// short imperative phrase, falling back to the heuristic template for
	// any tool the model fails to rewrite.
	PhraseModeLLMAssisted
)

const defaultPhraseGenerationPrompt = `You rewrite a single tool's name and description into a 2-3 sentence ` +
	`imperative phrase describing what it does and when to use it. Name the server and tool only once, at ` +
	`the very end, in the form "Available from the server: {server}.". Do not use markdown. Respond with the ` +
	`phrase only, no preamble.`

// heuristicPhrase renders the fixed, LLM-free search phrase template.
func heuristicPhrase(server string, tool types.ToolDescriptor) string {
	return fmt.Sprintf(
		"%q that is used for %q. %q is available from the server: %s.",
		tool.Name, tool.Description, tool.Name, server,
	)
}

// toolKey pairs a server name with its tool descriptor, used while
// generating phrases across every discovered tool.
type toolKey struct {
	server string
	tool   types.ToolDescriptor
}

// generatePhrases produces a search phrase for every entry in tools, keyed
// by record ID. In PhraseModeHeuristic, or when chatProvider is nil, every
// phrase is heuristic. In PhraseModeLLMAssisted, phrase generation for every
// tool completes before the caller proceeds to embedding — this avoids
// interleaving chat-model calls with embedding-provider calls against the
// same backend. A per-tool LLM failure falls back to that tool's heuristic
// phrase; it never aborts the batch.
func generatePhrases(ctx context.Context, log *slog.Logger, chatProvider chat.Provider, mode PhraseMode, prompt string, entries []toolKey) map[string]string {
	phrases := make(map[string]string, len(entries))

	if mode != PhraseModeLLMAssisted || chatProvider == nil {
		for _, e := range entries {
			phrases[recordID(e.server, e.tool.Name)] = heuristicPhrase(e.server, e.tool)
		}
		return phrases
	}

	if prompt == "" {
		prompt = defaultPhraseGenerationPrompt
	}

	for _, e := range entries {
		id := recordID(e.server, e.tool.Name)
		user := fmt.Sprintf("Tool name: %s\nServer: %s\nDescription: %s", e.tool.Name, e.server, e.tool.Description)

		phrase, err := chatProvider.Complete(ctx, prompt, user, 0.2)
		if err != nil || phrase == "" {
			log.Warn("index: llm phrase generation failed, using heuristic fallback",
				"server", e.server, "tool", e.tool.Name, "error", err)
			phrase = heuristicPhrase(e.server, e.tool)
		}
		phrases[id] = phrase
	}
	return phrases
}
