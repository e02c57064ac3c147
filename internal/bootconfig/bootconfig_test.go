package bootconfig

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/botcrew/orchestrator/internal/providers"
	"github.com/botcrew/orchestrator/internal/store"
)

func TestAIProviderConfig_ParsesProviderAndKey(t *testing.T) {
	raw := `{"provider":"anthropic","api_key":"sk-ant-test"}`
	var cfg aiProviderConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.Provider != "anthropic" || cfg.APIKey != "sk-ant-test" {
		t.Fatalf("got %+v", cfg)
	}
}

// TestSecretsOverride_SkipsMalformedAndUnknown exercises the same
// decode-then-override logic Provider.secrets runs, inlined here since
// Provider.secrets itself requires a live store.
func TestSecretsOverride_SkipsMalformedAndUnknown(t *testing.T) {
	integrations := []store.Integration{
		{ID: uuid.New(), Config: `not json`},
		{ID: uuid.New(), Config: `{"provider":"made-up","api_key":"x"}`},
		{ID: uuid.New(), Config: `{"provider":"openai","api_key":"sk-openai-test"}`},
	}

	out := map[string]string{"EXISTING_KEY": "keep-me"}
	for _, in := range integrations {
		var cfg aiProviderConfig
		if err := json.Unmarshal([]byte(in.Config), &cfg); err != nil {
			continue
		}
		envKey, known := providers.EnvKeyFor(cfg.Provider)
		if !known || envKey == "" || cfg.APIKey == "" {
			continue
		}
		out[envKey] = cfg.APIKey
	}

	if out["EXISTING_KEY"] != "keep-me" {
		t.Fatal("base secret was dropped")
	}
	if out["OPENAI_API_KEY"] != "sk-openai-test" {
		t.Fatalf("expected openai override applied, got %v", out)
	}
	if len(out) != 2 {
		t.Fatalf("expected exactly 2 entries (base + one valid override), got %v", out)
	}
}
