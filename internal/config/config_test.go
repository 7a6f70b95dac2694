package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Session: SessionConfig{
			Username:      "user",
			Password:      "secret",
			MarketplaceID: "mkt",
			Environment:   "sandbox",
		},
		Feed:   FeedConfig{Delimiter: ","},
		Import: ImportConfig{MaxWorkers: 20},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "sandbox", cfg.Session.Environment)
	assert.Equal(t, "riggsandporter", cfg.Feed.Template)
	assert.Equal(t, ",", cfg.Feed.Delimiter)
	assert.Equal(t, "sku", cfg.Feed.ProductColumns.ID)
	assert.Equal(t, "ccids", cfg.Feed.ProductColumns.Breadcrumbs)
	assert.Equal(t, 20, cfg.Import.MaxWorkers)
	assert.Equal(t, 50, cfg.Catalog.MaxRequestsPerSecond)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "importer.yaml")
	yaml := `
session:
  username: file-user
  environment: staging
feed:
  delimiter: "\t"
  product_columns:
    id: product_id
import:
  max_workers: 5
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "file-user", cfg.Session.Username)
	assert.Equal(t, "staging", cfg.Session.Environment)
	assert.Equal(t, "\t", cfg.Feed.Delimiter)
	assert.Equal(t, '\t', cfg.Feed.DelimiterRune())
	assert.Equal(t, "product_id", cfg.Feed.ProductColumns.ID)
	assert.Equal(t, "name", cfg.Feed.ProductColumns.Name)
	assert.Equal(t, 5, cfg.Import.MaxWorkers)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SESSION_USERNAME", "env-user")
	t.Setenv("DEBUG_MARKETPLACE_ID", "legacy-mkt")
	t.Setenv("IMPORT_MAX_WORKERS", "7")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "env-user", cfg.Session.Username)
	assert.Equal(t, "legacy-mkt", cfg.Session.MarketplaceID)
	assert.Equal(t, 7, cfg.Import.MaxWorkers)
}

func TestLoad_FlagsWinOverEnv(t *testing.T) {
	t.Setenv("SESSION_USERNAME", "env-user")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("username", "", "")
	flags.String("environment", "sandbox", "")
	flags.String("buyer-id", "", "")
	flags.Bool("prefix-images", false, "")
	require.NoError(t, flags.Parse([]string{"--username", "flag-user", "--buyer-id", "b1", "--prefix-images"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, "flag-user", cfg.Session.Username)
	assert.Equal(t, "sandbox", cfg.Session.Environment)
	assert.Equal(t, "b1", cfg.Import.BuyerID)
	assert.True(t, cfg.Feed.PrefixImages)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		credentials bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing username", mutate: func(c *Config) { c.Session.Username = " " }, wantErr: true, credentials: true},
		{name: "missing password", mutate: func(c *Config) { c.Session.Password = "" }, wantErr: true, credentials: true},
		{name: "missing marketplace", mutate: func(c *Config) { c.Session.MarketplaceID = "" }, wantErr: true, credentials: true},
		{name: "environment normalized", mutate: func(c *Config) { c.Session.Environment = " Production " }},
		{name: "unknown environment", mutate: func(c *Config) { c.Session.Environment = "qa" }, wantErr: true},
		{name: "multi-char delimiter", mutate: func(c *Config) { c.Feed.Delimiter = ";;" }, wantErr: true},
		{name: "prefix without value", mutate: func(c *Config) { c.Feed.PrefixImages = true }, wantErr: true},
		{name: "zero workers", mutate: func(c *Config) { c.Import.MaxWorkers = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.credentials {
				assert.ErrorIs(t, err, ErrMissingCredentials)
			} else {
				assert.NotErrorIs(t, err, ErrMissingCredentials)
			}
		})
	}
}

func TestResolveAPIURL(t *testing.T) {
	assert.Equal(t, "https://sandboxapi.ordercloud.io", SessionConfig{Environment: "sandbox"}.ResolveAPIURL())
	assert.Equal(t, "https://api.ordercloud.io", SessionConfig{Environment: "production"}.ResolveAPIURL())
	assert.Equal(t, "http://localhost:8080", SessionConfig{Environment: "sandbox", APIURL: "http://localhost:8080/"}.ResolveAPIURL())
}
