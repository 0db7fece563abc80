package config

import (
	"os"
	"testing"
	"time"

	"companion/pkg/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "config_test_*.yml")
	require.NoError(t, err)
	_, err = tmpfile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())
	return tmpfile.Name()
}

func TestLoadConfig_Defaults(t *testing.T) {
	// Provide a path that definitely doesn't exist
	config, err := LoadConfig("non_existent_config.yml")
	require.NoError(t, err)

	assert.Equal(t, 1.0, config.LLM.Temperature)
	assert.Equal(t, 1.0, config.LLM.TopP)
	assert.Equal(t, 60*time.Second, config.LLM.Timeout)
	assert.Equal(t, prompt.DefaultBudget, config.Prompt)
	assert.Equal(t, 20, config.Conversation.MaxTurns)
	assert.Equal(t, 20*time.Second, config.Media.FetchTimeout)
	assert.Equal(t, int64(15<<20), config.Media.MaxBytes)
	assert.Equal(t, "fs", config.Storage.Backend)
	assert.Equal(t, "companion", config.Redis.Prefix)
	assert.Equal(t, "companion", config.Surreal.Namespace)
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
llm:
  base_url: https://llm.example.com/v1
  model: mistral-large
  temperature: 0.7
  top_p: 0.9
  timeout: 45s
prompt:
  max_chars: 3000
  field_chars: 200
  list_items: 4
  item_chars: 60
conversation:
  max_turns: 12
media:
  fetch_timeout: 5s
  max_bytes: 1048576
storage:
  backend: minio
  minio:
    endpoint: s3.example.com
    bucket: media
    use_ssl: true
redis:
  turn_window: 30
  media_ttl: 720h
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://llm.example.com/v1", config.LLM.BaseURL)
	assert.Equal(t, "mistral-large", config.LLM.Model)
	assert.Equal(t, 0.7, config.LLM.Temperature)
	assert.Equal(t, 45*time.Second, config.LLM.Timeout)
	assert.Equal(t, prompt.Budget{MaxChars: 3000, FieldChars: 200, ListItems: 4, ItemChars: 60}, config.Prompt)
	assert.Equal(t, 12, config.Conversation.MaxTurns)
	assert.Equal(t, 5*time.Second, config.Media.FetchTimeout)
	assert.Equal(t, 30*time.Second, config.Media.UploadTimeout, "unset fields keep defaults")
	assert.Equal(t, int64(1<<20), config.Media.MaxBytes)
	assert.Equal(t, "minio", config.Storage.Backend)
	assert.Equal(t, "media", config.Storage.Minio.Bucket)
	assert.True(t, config.Storage.Minio.UseSSL)
	assert.Equal(t, 30, config.Redis.TurnWindow)
	assert.Equal(t, 720*time.Hour, config.Redis.MediaTTL)
}

func TestLoadConfig_PartialPromptBudget(t *testing.T) {
	path := writeConfig(t, `
prompt:
  field_chars: 150
  list_items: 3
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, prompt.Budget{
		MaxChars:   prompt.DefaultBudget.MaxChars,
		FieldChars: 150,
		ListItems:  3,
		ItemChars:  prompt.DefaultBudget.ItemChars,
	}, config.Prompt)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, `
llm:
  temperature: "not a number"
  broken_yaml: [ unclosed bracket
`)

	config, err := LoadConfig(path)
	assert.Error(t, err)
	assert.Nil(t, config)
}

func TestLoadConfig_UnknownBackend(t *testing.T) {
	path := writeConfig(t, "storage:\n  backend: floppy\n")
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "floppy")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LLM_API_KEYS", "k1,k2")
	t.Setenv("LLM_MODEL", "override-model")
	t.Setenv("SURREAL_DB_HOST", "db.example.com")
	t.Setenv("SURREAL_DB_USER", "root")
	t.Setenv("SURREAL_DB_PASS", "secret")
	t.Setenv("S3_ACCESS_KEY", "ak")
	t.Setenv("S3_SECRET_KEY", "sk")
	t.Setenv("STORAGE_BACKEND", "MINIO")

	config, err := LoadConfig("non_existent_config.yml")
	require.NoError(t, err)
	config.ApplyEnv()

	assert.Equal(t, "k1,k2", config.LLMKeys)
	assert.Equal(t, "override-model", config.LLM.Model)
	assert.Equal(t, "db.example.com", config.Surreal.Host)
	assert.Equal(t, "root", config.Surreal.User)
	assert.Equal(t, "secret", config.Surreal.Pass)
	assert.Equal(t, "ak", config.Storage.Minio.AccessKey)
	assert.Equal(t, "minio", config.Storage.Backend)
}
