package config

import (
	"strings"
	"testing"
)

// mapBackend is an in-memory ConfigBackend for tests.
type mapBackend struct {
	data map[string]any
}

func (b *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (b *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	return v.(int), true, nil
}

func (b *mapBackend) SetString(key, val string) error { b.data[key] = val; return nil }
func (b *mapBackend) SetInt(key string, val int) error { b.data[key] = val; return nil }
func (b *mapBackend) Delete(key string) error         { delete(b.data, key); return nil }

// mockKeychain is a test double for the keychain interface.
type mockKeychain struct {
	values map[string]string
	err    error
}

func (m mockKeychain) Get(service, account string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.values[service+"/"+account], nil
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("MURMUR_OPENAI_API_KEY", "test-key")

	cfg, err := loadWith(&mapBackend{data: map[string]any{}}, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.OpenAI.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("OpenAI.BaseURL = %q", cfg.OpenAI.BaseURL)
	}
	if cfg.OpenAI.ChatModel != "gpt-4o" {
		t.Errorf("OpenAI.ChatModel = %q, want gpt-4o", cfg.OpenAI.ChatModel)
	}
	if cfg.OpenAI.TranscribeModel != "whisper-1" {
		t.Errorf("OpenAI.TranscribeModel = %q, want whisper-1", cfg.OpenAI.TranscribeModel)
	}
	if cfg.OpenAI.EmbedModel != "text-embedding-3-small" {
		t.Errorf("OpenAI.EmbedModel = %q, want text-embedding-3-small", cfg.OpenAI.EmbedModel)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestBackendValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("MURMUR_OPENAI_API_KEY", "test-key")

	b := &mapBackend{data: map[string]any{
		"server.port":        5100,
		"openai.base_url":    "http://localhost:8080/v1",
		"openai.chat_model":  "gpt-4o-mini",
		"storage.data_dir":   "/tmp/murmur-test",
		"log.level":          "debug",
	}}

	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5100 {
		t.Errorf("Server.Port = %d, want 5100", cfg.Server.Port)
	}
	if cfg.OpenAI.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("OpenAI.BaseURL = %q", cfg.OpenAI.BaseURL)
	}
	if cfg.OpenAI.ChatModel != "gpt-4o-mini" {
		t.Errorf("OpenAI.ChatModel = %q", cfg.OpenAI.ChatModel)
	}
	if cfg.Storage.DataDir != "/tmp/murmur-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("MURMUR_OPENAI_API_KEY", "env-key")
	t.Setenv("MURMUR_SERVER_PORT", "6000")
	t.Setenv("MURMUR_OPENAI_CHAT_MODEL", "env-model")

	b := &mapBackend{data: map[string]any{
		"server.port":       5100,
		"openai.chat_model": "backend-model",
	}}

	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want env override 6000", cfg.Server.Port)
	}
	if cfg.OpenAI.ChatModel != "env-model" {
		t.Errorf("OpenAI.ChatModel = %q, want env override", cfg.OpenAI.ChatModel)
	}
	if cfg.OpenAI.APIKey != "env-key" {
		t.Errorf("OpenAI.APIKey = %q, want env-key", cfg.OpenAI.APIKey)
	}
}

func TestMissingAPIKey(t *testing.T) {
	clearEnv(t)

	_, err := loadWith(&mapBackend{data: map[string]any{}}, mockKeychain{})
	if err == nil {
		t.Fatal("expected error for missing API key, got nil")
	}
	if !strings.Contains(err.Error(), "missing required config") {
		t.Errorf("error = %q, want it to name the missing key", err)
	}
}

func TestKeychainFallback(t *testing.T) {
	clearEnv(t)

	kc := mockKeychain{values: map[string]string{
		"murmur/openai_api_key": "keychain-secret",
		"murmur/api_token":      "keychain-token",
	}}
	cfg, err := loadWith(&mapBackend{data: map[string]any{}}, kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.OpenAI.APIKey != "keychain-secret" {
		t.Errorf("OpenAI.APIKey = %q, want keychain-secret", cfg.OpenAI.APIKey)
	}
	if cfg.API.Token != "keychain-token" {
		t.Errorf("API.Token = %q, want keychain-token", cfg.API.Token)
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.OpenAI.APIKey = "sk-sensitive"
	cfg.API.Token = "tok-sensitive"

	for _, info := range ShowAll(cfg) {
		if info.Key == "openai.api_key" || info.Key == "api.token" {
			t.Errorf("secret key %q listed by ShowAll", info.Key)
		}
		if info.Value == "sk-sensitive" || info.Value == "tok-sensitive" {
			t.Errorf("secret value leaked via %q", info.Key)
		}
	}
}

func TestValidKeys(t *testing.T) {
	keys := ValidKeys()
	want := map[string]bool{"server.port": false, "openai.chat_model": false, "log.level": false}
	for _, k := range keys {
		if k == "openai.api_key" || k == "api.token" {
			t.Errorf("secret key %q listed as settable", k)
		}
		if _, ok := want[k]; ok {
			want[k] = true
		}
	}
	for k, seen := range want {
		if !seen {
			t.Errorf("key %q missing from ValidKeys", k)
		}
	}
}
