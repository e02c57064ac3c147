package providers

import "testing"

func TestConfigured_UnknownProviderIsUnconfigured(t *testing.T) {
	if Configured("mistral", map[string]string{}) {
		t.Fatal("expected unknown provider to be unconfigured")
	}
}

func TestConfigured_OllamaNeedsNoKey(t *testing.T) {
	if !Configured("ollama", map[string]string{}) {
		t.Fatal("expected ollama to be configured with no secrets at all")
	}
}

func TestConfigured_RequiresEnvKeyPresent(t *testing.T) {
	if Configured("openai", map[string]string{}) {
		t.Fatal("expected openai without OPENAI_API_KEY to be unconfigured")
	}
	if !Configured("openai", map[string]string{"OPENAI_API_KEY": "sk-test"}) {
		t.Fatal("expected openai with OPENAI_API_KEY to be configured")
	}
}

func TestEnvKeyFor_KnownAndUnknown(t *testing.T) {
	key, ok := EnvKeyFor("anthropic")
	if !ok || key != "ANTHROPIC_API_KEY" {
		t.Fatalf("EnvKeyFor(anthropic) = %q, %v", key, ok)
	}
	if _, ok := EnvKeyFor("made-up"); ok {
		t.Fatal("expected made-up provider to be unknown")
	}
}
