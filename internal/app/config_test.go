package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "HTTP_ADDR", "REDIS_ADDR", "PG_MAX_CONN"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 10, cfg.PGMaxConn)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("PG_MAX_CONN", "25")
	t.Setenv("CORS_ALLOW", "https://a.example, https://b.example")

	cfg := LoadConfig()

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 25, cfg.PGMaxConn)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllow)
}

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, splitCSV(""))
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a ,, b "))
}
