package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "service:\n  name: stuntlytics\n"))
	require.NoError(t, err)

	assert.Equal(t, 8095, cfg.Service.Port)
	assert.Equal(t, 15*time.Minute, cfg.Service.CacheTTL)
	assert.Equal(t, "http://localhost:9200", cfg.Elasticsearch.URL)
	assert.Equal(t, "stunting-data", cfg.Elasticsearch.StuntingIndex)
	assert.Equal(t, "jabar-tenaga-gizi", cfg.Elasticsearch.NutritionIndex)
	assert.Equal(t, "Tanggal", cfg.Elasticsearch.DateField)
	assert.Equal(t, []string{"nama_kabupaten_kota", "Wilayah"}, cfg.Elasticsearch.RegencyFieldCandidates)
	assert.Equal(t, 500, cfg.Elasticsearch.ResolverTermsSize)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.Insight.Model)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, "stuntlytics", cfg.Service.Name)
}

func TestLoad_FileValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
service:
  port: 9000
  cache_ttl: 5m
elasticsearch:
  url: http://es.internal:9200
  stunting_index: stunting-v2
logging:
  level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Service.Port)
	assert.Equal(t, 5*time.Minute, cfg.Service.CacheTTL)
	assert.Equal(t, "http://es.internal:9200", cfg.Elasticsearch.URL)
	assert.Equal(t, "stunting-v2", cfg.Elasticsearch.StuntingIndex)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STUNTLYTICS_PORT", "9100")
	t.Setenv("STUNTING_INDEX", "stunting-env")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, "service:\n  port: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Service.Port)
	assert.Equal(t, "stunting-env", cfg.Elasticsearch.StuntingIndex)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadWithDefaults_GenericType(t *testing.T) {
	type workerConfig struct {
		Name  string `yaml:"name"`
		Count int    `yaml:"count" env:"LOADER_TEST_COUNT"`
	}
	t.Setenv("LOADER_TEST_COUNT", "7")

	cfg, err := LoadWithDefaults[workerConfig](writeConfig(t, "name: fromfile\n"), func(c *workerConfig) {
		if c.Count == 0 {
			c.Count = 3
		}
	})
	require.NoError(t, err)

	assert.Equal(t, "fromfile", cfg.Name)
	assert.Equal(t, 7, cfg.Count, "env override must win over defaults")
}

func TestLoad_InvalidLogLevelRejected(t *testing.T) {
	_, err := Load(writeConfig(t, "logging:\n  level: noisy\n"))
	require.Error(t, err)

	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestLoad_InvalidPortRejected(t *testing.T) {
	_, err := Load(writeConfig(t, "service:\n  port: 70000\n"))
	require.Error(t, err)
}
