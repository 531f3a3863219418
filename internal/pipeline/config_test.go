package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: https://example.com/list.php
timeout_seconds: 10
max_retries: 5
wait_millis: 500
days_before: 30
window: 2
db: /var/lib/yuutai/yuutai.db
out: /tmp/snapshot.json
`), 0o644))

	fc, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/list.php", fc.BaseURL)
	assert.Equal(t, 10, fc.TimeoutSec)
	assert.Equal(t, 30, fc.DaysBefore)
	assert.Equal(t, 2, fc.Window)
}

func TestLoadConfigFileErrors(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("base_url: [unclosed"), 0o644))
	_, err = LoadConfigFile(bad)
	assert.Error(t, err)
}

func TestApplyFileOverridesOnlySetValues(t *testing.T) {
	cfg := &Config{
		Scrape: DefaultScrapeConfig(),
		Window: WindowConfig{DaysBefore: DefaultTargetDaysBefore, Window: DefaultWindowDays},
	}

	cfg.applyFile(&FileConfig{
		TimeoutSec: 10,
		DaysBefore: 30,
		DB:         "/data/yuutai.db",
	})

	// 指定された項目だけ上書き
	assert.Equal(t, 10*time.Second, cfg.Scrape.Timeout)
	assert.Equal(t, 30, cfg.Window.DaysBefore)
	assert.Equal(t, "/data/yuutai.db", cfg.Store.DBPath)

	// 未指定の項目は既定値のまま
	assert.Equal(t, DefaultBaseURL, cfg.Scrape.BaseURL)
	assert.Equal(t, DefaultMaxRetries, cfg.Scrape.MaxRetries)
	assert.Equal(t, DefaultWindowDays, cfg.Window.Window)
}
