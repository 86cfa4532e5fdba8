package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
admin:
  jwt_secret: "0123456789abcdef0123456789abcdef"
shortener:
  api_base: "https://short.example"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Entitlement.AccessTTL != 12*time.Hour {
		t.Fatalf("accessTTL = %v, want 12h", cfg.Entitlement.AccessTTL)
	}
	if cfg.Entitlement.TokenTTL != time.Hour {
		t.Fatalf("tokenTTL = %v, want 1h", cfg.Entitlement.TokenTTL)
	}
	if cfg.Entitlement.CreditCap != 2 || cfg.Entitlement.EarnAmount != 2 {
		t.Fatalf("credit cap/earn = %d/%d, want 2/2", cfg.Entitlement.CreditCap, cfg.Entitlement.EarnAmount)
	}
	if cfg.Entitlement.UnlockCost != 1 {
		t.Fatalf("unlockCost = %d, want 1", cfg.Entitlement.UnlockCost)
	}
	if cfg.Chat.APIBase != "https://api.telegram.org" {
		t.Fatalf("chat apiBase = %q, want the platform default", cfg.Chat.APIBase)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("Addr() = %q, want %q", cfg.Addr(), "0.0.0.0:8080")
	}
}

func TestLoadRejectsShortSecret(t *testing.T) {
	path := writeConfig(t, `
admin:
  jwt_secret: "too-short"
shortener:
  api_base: "https://short.example"
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("Load() error = nil, want secret length error")
	}
}

func TestLoadRequiresShortenerBase(t *testing.T) {
	path := writeConfig(t, `
admin:
  jwt_secret: "0123456789abcdef0123456789abcdef"
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("Load() error = nil, want missing shortener error")
	}
}

func TestEnvOverridesWin(t *testing.T) {
	path := writeConfig(t, `
admin:
  jwt_secret: "0123456789abcdef0123456789abcdef"
chat:
  bot_token: "from-file"
shortener:
  api_base: "https://short.example"
  api_key: "file-key"
`)

	t.Setenv("TURNSTILE_BOT_TOKEN", "from-env")
	t.Setenv("TURNSTILE_SHORTENER_KEY", "env-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Chat.BotToken != "from-env" {
		t.Fatalf("botToken = %q, want %q", cfg.Chat.BotToken, "from-env")
	}
	if cfg.Shortener.APIKey != "env-key" {
		t.Fatalf("apiKey = %q, want %q", cfg.Shortener.APIKey, "env-key")
	}
}
