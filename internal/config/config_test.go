package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orna-ly/orna.ly-sub000/pkg/contracts"
)

func newCmd() (*cobra.Command, *viper.Viper) {
	v := viper.New()
	cmd := &cobra.Command{Use: "test"}
	Register(cmd, v, "8080")
	return cmd, v
}

func TestLoad_Defaults(t *testing.T) {
	_, v := newCmd()
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, contracts.DefaultEventsTopic, cfg.KafkaTopic)
	assert.Equal(t, int64(60), cfg.RateLimit)
	assert.Equal(t, time.Minute, cfg.RateWindow)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 100, cfg.OutboxBatch)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STOREFRONT_STORE", "Postgres")
	t.Setenv("STOREFRONT_DATABASE_URL", " postgres://localhost/storefront ")
	t.Setenv("STOREFRONT_RATE_LIMIT", "5")
	t.Setenv("STOREFRONT_PAYMENT_DELAY", "0s")

	_, v := newCmd()
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, "postgres://localhost/storefront", cfg.DatabaseURL)
	assert.Equal(t, int64(5), cfg.RateLimit)
	assert.Zero(t, cfg.PaymentDelay)
}

func TestLoad_FlagsBeatEnv(t *testing.T) {
	t.Setenv("STOREFRONT_PORT", "7000")
	cmd, v := newCmd()
	require.NoError(t, cmd.PersistentFlags().Set("port", "9000"))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9191\"\nrate-window: 30s\nseed-file: catalog.json\n"), 0o600))

	cmd, v := newCmd()
	require.NoError(t, cmd.PersistentFlags().Set("config", path))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "9191", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.RateWindow)
	assert.Equal(t, "catalog.json", cfg.SeedFile)

	cmd, v = newCmd()
	require.NoError(t, cmd.PersistentFlags().Set("config", filepath.Join(t.TempDir(), "missing.yaml")))
	_, err = Load(v)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	_, v := newCmd()
	base, err := Load(v)
	require.NoError(t, err)

	cases := map[string]func(*Config){
		"empty port":         func(c *Config) { c.Port = "" },
		"unknown store":      func(c *Config) { c.Store = "mongo" },
		"postgres needs url": func(c *Config) { c.Store = "postgres" },
		"zero rate limit":    func(c *Config) { c.RateLimit = 0 },
		"zero window":        func(c *Config) { c.RateWindow = 0 },
		"zero timeout":       func(c *Config) { c.RequestTimeout = 0 },
		"zero batch":         func(c *Config) { c.OutboxBatch = 0 },
		"negative delay":     func(c *Config) { c.PaymentDelay = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
