package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Admin       AdminConfig       `yaml:"admin"`
	Entitlement EntitlementConfig `yaml:"entitlement"`
	Chat        ChatConfig        `yaml:"chat"`
	Shortener   ShortenerConfig   `yaml:"shortener"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AdminConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	TrustedIDs []string      `yaml:"trusted_ids"`
}

type EntitlementConfig struct {
	AccessTTL     time.Duration `yaml:"access_ttl"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	CreditCycle   time.Duration `yaml:"credit_cycle"`
	CreditCap     int64         `yaml:"credit_cap"`
	EarnAmount    int64         `yaml:"earn_amount"`
	UnlockCost    int64         `yaml:"unlock_cost"`
	ReferralAward int64         `yaml:"referral_award"`
}

type ChatConfig struct {
	APIBase  string        `yaml:"api_base"`
	BotToken string        `yaml:"bot_token"`
	Timeout  time.Duration `yaml:"timeout"`
}

type ShortenerConfig struct {
	APIBase string        `yaml:"api_base"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TURNSTILE_JWT_SECRET"); v != "" {
		c.Admin.JWTSecret = v
	}
	if v := os.Getenv("TURNSTILE_BOT_TOKEN"); v != "" {
		c.Chat.BotToken = v
	}
	if v := os.Getenv("TURNSTILE_SHORTENER_KEY"); v != "" {
		c.Shortener.APIKey = v
	}
}

func (c *Config) validate() error {
	if c.Admin.JWTSecret == "" {
		return fmt.Errorf("admin.jwt_secret is required")
	}
	if len(c.Admin.JWTSecret) < 32 {
		return fmt.Errorf("admin.jwt_secret must be at least 32 characters")
	}
	if c.Shortener.APIBase == "" {
		return fmt.Errorf("shortener.api_base is required")
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Name == "" {
		c.Server.Name = "Turnstile"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/turnstile.db"
	}
	if c.Admin.TokenTTL == 0 {
		c.Admin.TokenTTL = 12 * time.Hour
	}
	if c.Entitlement.AccessTTL == 0 {
		c.Entitlement.AccessTTL = 12 * time.Hour
	}
	if c.Entitlement.TokenTTL == 0 {
		c.Entitlement.TokenTTL = 1 * time.Hour
	}
	if c.Entitlement.CreditCycle == 0 {
		c.Entitlement.CreditCycle = 12 * time.Hour
	}
	if c.Entitlement.CreditCap == 0 {
		c.Entitlement.CreditCap = 2
	}
	if c.Entitlement.EarnAmount == 0 {
		c.Entitlement.EarnAmount = 2
	}
	if c.Entitlement.UnlockCost == 0 {
		c.Entitlement.UnlockCost = 1
	}
	if c.Entitlement.ReferralAward == 0 {
		c.Entitlement.ReferralAward = 2
	}
	if c.Chat.APIBase == "" {
		c.Chat.APIBase = "https://api.telegram.org"
	}
	if c.Chat.Timeout == 0 {
		c.Chat.Timeout = 5 * time.Second
	}
	if c.Shortener.Timeout == 0 {
		c.Shortener.Timeout = 10 * time.Second
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
