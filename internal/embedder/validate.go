package embedder

import (
	"log/slog"
	"strings"

	"github.com/54b3r/infohub-go/internal/config"
)

// knownChatModelFragments identify chat/completion models that are not
// suitable for embedding.
var knownChatModelFragments = []string{
	"gpt-4", "gpt-3.5", "gpt-35", "o1", "o3",
	"llama3", "llama2", "llama-3", "llama-2",
	"mistral", "mixtral", "gemma", "phi-", "phi3",
	"claude", "command-r", "deepseek", "qwen",
}

// looksLikeChatModel reports whether model resembles a chat model rather
// than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, frag := range knownChatModelFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// WarnMisconfig logs operator-facing warnings for embedding settings that are
// legal but almost certainly wrong. Passages indexed with one embedding model
// are unsearchable with another, so a silent mismatch yields empty answers.
func WarnMisconfig(log *slog.Logger) {
	if config.EnvOr("EMBEDDING_PROVIDER", "") == "" && config.EnvOr("MODEL_PROVIDER", "openai") != "openai" {
		log.Warn("embedder: EMBEDDING_PROVIDER is not set, inheriting MODEL_PROVIDER",
			slog.String("backend", Backend()),
			slog.String("hint", "set EMBEDDING_PROVIDER to match the backend used at ingest time"),
		)
	}

	if model := config.EnvOr("EMBEDDING_MODEL", ""); model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. text-embedding-ada-002, nomic-embed-text"),
		)
	}
}
