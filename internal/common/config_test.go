package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "ron+eng", cfg.OCR.Language)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_addr: ":9000"
  request_timeout: 5s
ocr:
  language: ron
batch:
  workers: 8
llm:
  model: local-model
`), 0o600))

	t.Setenv("BATCH_WORKERS", "2")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.HTTPAddr)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "ron", cfg.OCR.Language)
	assert.Equal(t, 2, cfg.Batch.Workers, "environment wins over file")
	assert.Equal(t, "local-model", cfg.LLM.Model)
	assert.True(t, cfg.LLM.Enabled())
	assert.Equal(t, ":8080", cfg.Server.GRPCAddr, "untouched default")
}

func TestLoadConfig_BadFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [\n"), 0o600))
	_, err = LoadConfig(path)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
}

func TestLoadConfig_IgnoresMalformedEnv(t *testing.T) {
	t.Setenv("BATCH_WORKERS", "many")
	t.Setenv("OPENAI_TIMEOUT", "soon")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no listeners", func(c *Config) { c.Server.HTTPAddr, c.Server.GRPCAddr = "", "" }},
		{"no language", func(c *Config) { c.OCR.Language = "" }},
		{"no workers", func(c *Config) { c.Batch.Workers = 0 }},
		{"key without model", func(c *Config) { c.LLM.APIKey, c.LLM.Model = "k", "" }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var appErr *AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, "CONFIG_ERROR", appErr.Code)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("IDCARD_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("IDCARD_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env"), path))
	assert.Equal(t, "loaded", os.Getenv("IDCARD_TEST_DOTENV"))
}
