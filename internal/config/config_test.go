package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.NotEmpty(t, cfg.AppName)
	assert.Equal(t, "solshare", cfg.AppName)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "postgres", cfg.DBType)
	assert.Equal(t, "USDH", cfg.AssetSymbol)
	assert.Equal(t, 18, cfg.AssetDecimals)
	assert.Empty(t, cfg.GenesisAdmin)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("GENESIS_ADMIN", "  root  ")
	t.Setenv("DATABASE_TYPE", "sqlite")
	t.Setenv("ASSET_DECIMALS", "6")

	cfg := Load()

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, "root", cfg.GenesisAdmin, "genesis admin is trimmed")
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, 6, cfg.AssetDecimals)
}

func TestLoadIgnoresMalformedInts(t *testing.T) {
	t.Setenv("ASSET_DECIMALS", "not-a-number")
	t.Setenv("DATABASE_MAX_OPEN_CONN", "")

	cfg := Load()

	assert.Equal(t, 18, cfg.AssetDecimals)
	assert.Equal(t, 20, cfg.DBMaxOpenConn)
}
