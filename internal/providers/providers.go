// Package providers implements the model-provider registry: the
// provider -> required-secrets-env-key mapping consulted when an agent is
// created (reject unconfigured providers) and when the Boot-Config
// Provider assembles a worker's secrets bundle. It generalizes the
// original's PROVIDER_REGISTRY (src/botcrew/services/model_provider.py)
// from an Agno-model factory into a pure lookup table, since model
// construction itself happens inside the worker container, not the
// orchestrator.
package providers

// Entry describes one supported model provider's credential requirement.
// EnvKey is empty for providers that need no API key (e.g. a local Ollama
// instance).
type Entry struct {
	EnvKey string
}

// Registry is the static provider -> credential-requirement table, ported
// directly from the original's PROVIDER_REGISTRY.
var Registry = map[string]Entry{
	"openai":    {EnvKey: "OPENAI_API_KEY"},
	"anthropic": {EnvKey: "ANTHROPIC_API_KEY"},
	"ollama":    {EnvKey: ""},
	"glm":       {EnvKey: "GLM_API_KEY"},
}

// EnvKeyFor returns the secrets-table key a provider's API key is stored
// under, and whether the provider is known at all.
func EnvKeyFor(provider string) (string, bool) {
	e, ok := Registry[provider]
	return e.EnvKey, ok
}

// Configured reports whether provider is known and, if it requires an API
// key, whether secrets carries a non-empty value for it. Ollama and any
// other env-key-less provider is always considered configured.
func Configured(provider string, secrets map[string]string) bool {
	e, ok := Registry[provider]
	if !ok {
		return false
	}
	if e.EnvKey == "" {
		return true
	}
	return secrets[e.EnvKey] != ""
}
