package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DISCOUNTS_DB_PATH", "test.db")
	t.Setenv("BACKFILL_CUTOFF", "2024-06-01")
	t.Setenv("BACKFILL_STATUSES", "completed, refunded")
	t.Setenv("BACKFILL_PAGE_SIZE", "25")

	cfg := LoadFromEnv()
	assert.NotNil(t, cfg)
	assert.Equal(t, "test.db", cfg.Storage.DatabasePath)
	assert.Equal(t, []string{"completed", "refunded"}, cfg.Backfill.Statuses)
	assert.Equal(t, 25, cfg.Backfill.PageSize)

	cutoff, err := cfg.Backfill.CutoffTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), cutoff)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg := LoadFromEnv()

	assert.Equal(t, "discounts.db", cfg.Storage.DatabasePath)
	assert.Equal(t, DefaultStatuses, cfg.Backfill.Statuses)
	assert.Equal(t, 50, cfg.Backfill.PageSize)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("TEST_DB_PATH", "/tmp/expanded.db")
	configContent := `
storage:
  database_path: ${TEST_DB_PATH}
backfill:
  cutoff: "2023-12-31"
  page_size: 10
observability:
  logging:
    level: debug
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/expanded.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 10, cfg.Backfill.PageSize)
	assert.Equal(t, DefaultStatuses, cfg.Backfill.Statuses, "statuses default when omitted")
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
	assert.Equal(t, 8080, cfg.API.Port)
}

func TestLoadOrEnv_FallbackToEnv(t *testing.T) {
	t.Setenv("DISCOUNTS_DB_PATH", "fallback.db")

	cfg := LoadOrEnvWithPath("/nonexistent/config.yaml")
	assert.Equal(t, "fallback.db", cfg.Storage.DatabasePath)
}

func TestCutoffTime_Invalid(t *testing.T) {
	_, err := BackfillConfig{Cutoff: "yesterday"}.CutoffTime()
	assert.Error(t, err)
}
