package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv        string `yaml:"app_env"`
	HTTPAddr      string `yaml:"http_addr"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	DataDir       string `yaml:"data_dir"`

	// API keys allowed to call the service.
	APIKeys    []string `yaml:"api_keys"`
	UsageQuota int      `yaml:"usage_quota"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	ClaudeModel     string `yaml:"claude_model"`

	ProxyURL        string `yaml:"proxy_url"`
	StealthProxyURL string `yaml:"stealth_proxy_url"`

	TaskMaxRetries int `yaml:"task_max_retries"`

	// WebhookSecret signs completion callbacks so receivers can verify them.
	WebhookSecret string `yaml:"webhook_secret"`
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// Load builds the configuration from an optional YAML file (CONFIG_FILE)
// overlaid with environment variables. Environment always wins.
func Load() Config {
	var cfg Config
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if b, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(b, &cfg)
		}
	}

	cfg.AppEnv = getenv("APP_ENV", fallback(cfg.AppEnv, "development"))
	cfg.HTTPAddr = getenv("HTTP_ADDR", fallback(cfg.HTTPAddr, ":8081"))
	cfg.RedisAddr = getenv("REDIS_ADDR", fallback(cfg.RedisAddr, "127.0.0.1:6379"))
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	cfg.DataDir = getenv("DATA_DIR", fallback(cfg.DataDir, "./data"))

	if v := os.Getenv("API_KEYS"); v != "" {
		cfg.APIKeys = splitKeys(v)
	}
	cfg.UsageQuota = getenvInt("USAGE_QUOTA", intFallback(cfg.UsageQuota, 1000))

	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.AnthropicAPIKey = v
	}
	cfg.ClaudeModel = getenv("CLAUDE_MODEL", fallback(cfg.ClaudeModel, "claude-3-7-sonnet-20250219"))

	if v := os.Getenv("PROXY_URL"); v != "" {
		cfg.ProxyURL = v
	}
	if v := os.Getenv("STEALTH_PROXY_URL"); v != "" {
		cfg.StealthProxyURL = v
	}

	cfg.TaskMaxRetries = getenvInt("TASK_MAX_RETRIES", intFallback(cfg.TaskMaxRetries, 3))

	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		cfg.WebhookSecret = v
	}

	if cfg.RedisAddr == "" {
		panic(fmt.Errorf("REDIS_ADDR is required"))
	}
	return cfg
}

// IsAllowedKey reports whether the given API key may use the service.
func (c Config) IsAllowedKey(key string) bool {
	for _, k := range c.APIKeys {
		if k != "" && k == key {
			return true
		}
	}
	return false
}

func splitKeys(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fallback(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func intFallback(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}
