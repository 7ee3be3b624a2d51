package llm

// ProviderModels is a curated list of known models per provider. Nothing
// in this module reads it yet: the CLI and config loading accept any model
// name. Mirrors the teacher's internal/llm/models.go ProviderModels map.
var ProviderModels = map[string][]string{
	"anthropic": {
		"claude-sonnet-4-5",
		"claude-opus-4-5",
		"claude-haiku-4-5",
	},
	"openai": {
		"gpt-5.2",
		"gpt-5.2-codex",
		"gpt-4.1",
	},
	"gemini": {
		"gemini-3-pro-preview",
		"gemini-3-flash-preview",
		"gemini-2.5-flash",
	},
}

// GetProviderNames returns the built-in provider names.
func GetProviderNames() []string {
	return []string{"anthropic", "openai", "gemini"}
}
