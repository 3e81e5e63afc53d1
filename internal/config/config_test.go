package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
	assert.Equal(t, 1000, cfg.UsageQuota)
	assert.Equal(t, 3, cfg.TaskMaxRetries)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("USAGE_QUOTA", "50")
	t.Setenv("API_KEYS", "key-a, key-b ,,key-c")

	cfg := Load()
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 50, cfg.UsageQuota)
	assert.Equal(t, []string{"key-a", "key-b", "key-c"}, cfg.APIKeys)
}

func TestIsAllowedKey(t *testing.T) {
	cfg := Config{APIKeys: []string{"alpha", "beta"}}

	assert.True(t, cfg.IsAllowedKey("alpha"))
	assert.False(t, cfg.IsAllowedKey("gamma"))
	assert.False(t, cfg.IsAllowedKey(""))
}

func TestIsAllowedKeyIgnoresEmptyEntries(t *testing.T) {
	cfg := Config{APIKeys: []string{""}}
	assert.False(t, cfg.IsAllowedKey(""))
}
