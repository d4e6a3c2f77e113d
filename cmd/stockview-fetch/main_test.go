package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockview/internal/config"
)

func TestRunExitCodes(t *testing.T) {
	for _, k := range []string{"APCA_API_KEY_ID", "APCA_API_SECRET_KEY", "DATA_DIR", "SQLITE_PATH", "CSV_PATH", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	cfgPath := filepath.Join(t.TempDir(), "stockview.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("fetch:\n  symbols: [MMM]\n"), 0o644))
	t.Setenv("STOCKVIEW_CONFIG", cfgPath)

	assert.Equal(t, 1, run(nil), "missing credentials")
	assert.Equal(t, 1, run([]string{"-workers", "many"}), "bad flag")

	t.Setenv("STOCKVIEW_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 1, run(nil), "missing config")
}

func TestResolveSymbols(t *testing.T) {
	cfg := &config.Config{}
	cfg.Fetch.Symbols = []string{"AAPL"}

	got, err := resolveSymbols("MMM,IBM", cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"MMM", "IBM"}, got, "flag wins")

	got, err = resolveSymbols("", cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, got)

	// Falls back to the CSV dataset's symbols.
	csvPath := filepath.Join(t.TempDir(), "stocks.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("date,open,high,low,close,volume,Name\n2017-01-03,1,1,1,1,1,zzz\n"), 0o644))
	cfg.Fetch.Symbols = nil
	cfg.Dataset.CSVPath = csvPath
	got, err = resolveSymbols("", cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"ZZZ"}, got)
}
