package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
version: 1
toolserver:
  base_url: "http://localhost:8000"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Pipeline.DesiredCountDefault)
	assert.Equal(t, 10, cfg.Pipeline.DesiredCountMax)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 4, cfg.Executor.MaxConcurrency)
	assert.Equal(t, 20, cfg.Executor.RankCap)
	assert.Equal(t, "json", cfg.Observability.LogFormat)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
version: 1
toolserver:
  base_url: "http://localhost:8000"
  bogus_field: true
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RequiresToolServerBaseURL(t *testing.T) {
	path := writeConfig(t, `version: 1`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "toolserver.base_url")
}

func TestLoad_RejectsUnsupportedProvider(t *testing.T) {
	path := writeConfig(t, `
version: 1
toolserver:
  base_url: "http://localhost:8000"
llm:
  provider: cohere
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.provider")
}

func TestLoad_RejectsMissingVersion(t *testing.T) {
	path := writeConfig(t, `
toolserver:
  base_url: "http://localhost:8000"
`)
	_, err := Load(path)
	require.Error(t, err)
	var verr *VersionError
	require.ErrorAs(t, err, &verr)
}

func TestLoad_EnvOverridesSecretsAndBaseURL(t *testing.T) {
	path := writeConfig(t, `
version: 1
toolserver:
  base_url: "http://localhost:8000"
`)
	t.Setenv("GRAPHQUERY_TOOLSERVER_API_KEY", "secret-key")
	t.Setenv("GRAPHQUERY_LLM_API_KEY", "llm-secret")
	t.Setenv("GRAPHQUERY_DESIRED_COUNT_DEFAULT", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-key", cfg.ToolServer.APIKey)
	assert.Equal(t, "llm-secret", cfg.LLM.APIKey)
	assert.Equal(t, 8, cfg.Pipeline.DesiredCountDefault)
}

func TestLoad_ResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.yaml")
	require.NoError(t, os.WriteFile(basePath, []byte(`
executor:
  max_concurrency: 8
`), 0o644))

	mainPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(mainPath, []byte(`
$include: base.yaml
version: 1
toolserver:
  base_url: "http://localhost:8000"
`), 0o644))

	cfg, err := Load(mainPath)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Executor.MaxConcurrency)
}

func TestValidateVersion(t *testing.T) {
	require.NoError(t, ValidateVersion(CurrentVersion))
	require.Error(t, ValidateVersion(0))
	require.Error(t, ValidateVersion(CurrentVersion+1))
}
