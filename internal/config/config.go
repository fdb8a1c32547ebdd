package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Server  ServerConfig
	OpenAI  OpenAIConfig
	Storage StorageConfig
	API     APIConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type OpenAIConfig struct {
	BaseURL         string
	APIKey          string
	ChatModel       string
	TranscribeModel string
	EmbedModel      string
	Language        string
}

type StorageConfig struct {
	DataDir string
}

type APIConfig struct {
	// Token guards the HTTP API when set. Empty disables bearer auth,
	// which is only sensible for localhost deployments.
	Token string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		OpenAI: OpenAIConfig{
			BaseURL:         "https://api.openai.com/v1",
			ChatModel:       "gpt-4o",
			TranscribeModel: "whisper-1",
			EmbedModel:      "text-embedding-3-small",
			Language:        "en",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.murmur.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/murmur/config.json
// and secrets come from $XDG_DATA_HOME/murmur/secrets.json or environment
// variables.
//
// Environment variables (MURMUR_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret-store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.OpenAI.APIKey == "" {
		if key, err := kc.Get("murmur", "openai_api_key"); err == nil && key != "" {
			cfg.OpenAI.APIKey = key
		}
	}
	if cfg.API.Token == "" {
		if tok, err := kc.Get("murmur", "api_token"); err == nil && tok != "" {
			cfg.API.Token = tok
		}
	}

	if cfg.OpenAI.APIKey == "" {
		msg := "missing required config: OpenAI API key. " +
			"Set it via environment variable MURMUR_OPENAI_API_KEY" +
			apiKeyHint()
		return Config{}, fmt.Errorf("%s", msg)
	}

	return cfg, nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
