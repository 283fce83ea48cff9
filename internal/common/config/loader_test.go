package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    port: 5432
    database: decisions
    user: ${TEST_DECISIONS_DB_USER}
  elasticsearch:
    addresses: ["http://localhost:9200"]
  redis:
    address: localhost:6379
workers:
  compile-query:
    enabled: true
    timeout: 5000
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	t.Setenv("TEST_DECISIONS_DB_USER", "reader")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "reader", cfg.Database.Postgres.User)
	assert.Equal(t, "http://localhost:9200", cfg.Database.Elasticsearch.URL)
	assert.Equal(t, "http", cfg.APIs.GenAI.Provider)

	assert.Equal(t, 20, cfg.Resolver.HistoryWindow)
	assert.Equal(t, 3, cfg.Resolver.RecentWindow)
	assert.Equal(t, 0.8, cfg.Resolver.SimilarityThreshold)
	require.NotNil(t, cfg.Resolver.ClarificationEnabled)
	assert.True(t, *cfg.Resolver.ClarificationEnabled)

	assert.Equal(t, 0.95, cfg.Orchestrator.TemplateConfidence)
	assert.Equal(t, 0.85, cfg.Orchestrator.AssistedMaxConfidence)
	assert.Equal(t, 37, cfg.Orchestrator.DefaultGovernment)

	assert.Equal(t, 200, cfg.Sanitizer.MaxStringLength)
	assert.Equal(t, 10, cfg.Sanitizer.MaxListLength)

	wc := GetWorkerConfig(cfg, "compile-query")
	assert.Equal(t, 5000, wc.Timeout)
	assert.Equal(t, 5, wc.MaxJobsActive)
	assert.Equal(t, 3, wc.MaxRetries)
}

func TestLoadFromFile_ClarificationCanBeDisabled(t *testing.T) {
	t.Setenv("TEST_DECISIONS_DB_USER", "reader")
	body := minimalConfig + `
resolver:
  clarification_enabled: false
`
	cfg, err := LoadFromFile(writeConfig(t, body))
	require.NoError(t, err)
	require.NotNil(t, cfg.Resolver.ClarificationEnabled)
	assert.False(t, *cfg.Resolver.ClarificationEnabled)
}

func TestLoadFromFile_Validation(t *testing.T) {
	t.Setenv("TEST_DECISIONS_DB_USER", "reader")

	tests := []struct {
		name    string
		extra   string
		wantErr string
	}{
		{"unknown provider", "apis:\n  genai:\n    provider: carrier-pigeon\n", "apis.genai.provider"},
		{"threshold out of range", "resolver:\n  similarity_threshold: 1.5\n", "similarity_threshold"},
		{"assisted above template", "orchestrator:\n  assisted_max_confidence: 0.99\n", "assisted_max_confidence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, minimalConfig+tt.extra))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_MissingBroker(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, "database:\n  postgres:\n    host: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "camunda.broker_address")
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}

func TestIsWorkerEnabled(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{"search-decisions": {Enabled: false}}}
	assert.False(t, IsWorkerEnabled(cfg, "search-decisions"))
	assert.True(t, IsWorkerEnabled(cfg, "resolve-reference"))
}
