package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var ErrMissingCredentials = errors.New("missing required credentials")

// Config holds all configuration for the importer
type Config struct {
	Session  SessionConfig  `mapstructure:"session"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Import   ImportConfig   `mapstructure:"import"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
}

// SessionConfig holds portal credentials and the target marketplace
type SessionConfig struct {
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	MarketplaceID string `mapstructure:"marketplace_id"`
	Environment   string `mapstructure:"environment"`

	PortalURL      string `mapstructure:"portal_url"`
	PortalClientID string `mapstructure:"portal_client_id"`
	// APIURL overrides the environment's catalog API base URL when set.
	APIURL string `mapstructure:"api_url"`
}

// FeedConfig selects and shapes the input feed
type FeedConfig struct {
	Template       string `mapstructure:"template"`
	ProductsPath   string `mapstructure:"products_path"`
	CategoriesPath string `mapstructure:"categories_path"`
	Delimiter      string `mapstructure:"delimiter"`

	PrefixImages   bool   `mapstructure:"prefix_images"`
	ImageURLPrefix string `mapstructure:"image_url_prefix"`
	StripHTML      bool   `mapstructure:"strip_html"`

	ProductColumns  ProductColumns  `mapstructure:"product_columns"`
	CategoryColumns CategoryColumns `mapstructure:"category_columns"`
}

// ProductColumns maps product fields to feed header names
type ProductColumns struct {
	ID           string `mapstructure:"id"`
	Name         string `mapstructure:"name"`
	Description  string `mapstructure:"description"`
	Price        string `mapstructure:"price"`
	ImageURL     string `mapstructure:"image_url"`
	ThumbnailURL string `mapstructure:"thumbnail_url"`
	Breadcrumbs  string `mapstructure:"breadcrumbs"`
}

// CategoryColumns maps category fields to feed header names
type CategoryColumns struct {
	Breadcrumb string `mapstructure:"breadcrumb"`
	ID         string `mapstructure:"id"`
}

// ImportConfig holds run-level overrides
type ImportConfig struct {
	BuyerID    string `mapstructure:"buyer_id"`
	CatalogID  string `mapstructure:"catalog_id"`
	MaxWorkers int    `mapstructure:"max_workers"`
}

// CatalogConfig holds catalog API client settings
type CatalogConfig struct {
	Timeout              int `mapstructure:"timeout"`
	MaxRetries           int `mapstructure:"max_retries"`
	MaxRequestsPerSecond int `mapstructure:"max_requests_per_second"`
}

// DatabaseConfig holds the run ledger connection
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// RedisConfig holds the failure stream connection
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`

	// StreamMaxLen caps the failure stream; zero leaves it uncapped.
	StreamMaxLen int64 `mapstructure:"stream_max_len"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var environmentAPIURLs = map[string]string{
	"sandbox":    "https://sandboxapi.ordercloud.io",
	"staging":    "https://stagingapi.ordercloud.io",
	"production": "https://api.ordercloud.io",
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"username":            "session.username",
	"password":            "session.password",
	"marketplace-id":      "session.marketplace_id",
	"environment":         "session.environment",
	"template":            "feed.template",
	"filepath":            "feed.products_path",
	"categories-filepath": "feed.categories_path",
	"prefix-images":       "feed.prefix_images",
	"image-url-prefix":    "feed.image_url_prefix",
	"buyer-id":            "import.buyer_id",
	"catalog-id":          "import.catalog_id",
}

// legacyEnv keeps the DEBUG_* variables used by older tooling working.
var legacyEnv = map[string]string{
	"session.username":       "DEBUG_USERNAME",
	"session.password":       "DEBUG_PASSWORD",
	"session.marketplace_id": "DEBUG_MARKETPLACE_ID",
	"session.environment":    "DEBUG_ENVIRONMENT",
	"feed.template":          "DEBUG_TEMPLATE",
	"feed.products_path":     "DEBUG_FILEPATH",
}

// Load reads configuration with the precedence flag > env > config file > default.
// An empty configFile looks for an optional config.yaml in the working directory.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("error binding env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("error binding flag --%s: %w", name, err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("session.username", "")
	v.SetDefault("session.password", "")
	v.SetDefault("session.marketplace_id", "")
	v.SetDefault("session.environment", "sandbox")
	v.SetDefault("session.portal_url", "https://portal.ordercloud.io/api/v1")
	v.SetDefault("session.portal_client_id", "")
	v.SetDefault("session.api_url", "")

	v.SetDefault("feed.template", "riggsandporter")
	v.SetDefault("feed.products_path", "")
	v.SetDefault("feed.categories_path", "")
	v.SetDefault("feed.delimiter", ",")
	v.SetDefault("feed.prefix_images", false)
	v.SetDefault("feed.image_url_prefix", "")
	v.SetDefault("feed.strip_html", false)

	v.SetDefault("feed.product_columns.id", "sku")
	v.SetDefault("feed.product_columns.name", "name")
	v.SetDefault("feed.product_columns.description", "description")
	v.SetDefault("feed.product_columns.price", "price")
	v.SetDefault("feed.product_columns.image_url", "image_url")
	v.SetDefault("feed.product_columns.thumbnail_url", "thumbnail_url")
	v.SetDefault("feed.product_columns.breadcrumbs", "ccids")
	v.SetDefault("feed.category_columns.breadcrumb", "breadcrumb")
	v.SetDefault("feed.category_columns.id", "id")

	v.SetDefault("import.buyer_id", "")
	v.SetDefault("import.catalog_id", "")
	v.SetDefault("import.max_workers", 20)

	v.SetDefault("catalog.timeout", 60)
	v.SetDefault("catalog.max_retries", 3)
	v.SetDefault("catalog.max_requests_per_second", 50)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "catalog_importer")
	v.SetDefault("database.user", "catalog_importer")
	v.SetDefault("database.password", "")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.stream_max_len", 10000)

	v.SetDefault("log.level", "info")
}

// Validate checks the fields a run cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Session.Username) == "" {
		return fmt.Errorf("%w: portal username must be provided", ErrMissingCredentials)
	}
	if c.Session.Password == "" {
		return fmt.Errorf("%w: portal password must be provided", ErrMissingCredentials)
	}
	if strings.TrimSpace(c.Session.MarketplaceID) == "" {
		return fmt.Errorf("%w: marketplace ID must be provided", ErrMissingCredentials)
	}

	c.Session.Environment = strings.ToLower(strings.TrimSpace(c.Session.Environment))
	if _, ok := environmentAPIURLs[c.Session.Environment]; !ok {
		return fmt.Errorf("unsupported environment: %q (must be one of: sandbox, staging, production)", c.Session.Environment)
	}

	if utf8.RuneCountInString(c.Feed.Delimiter) != 1 {
		return fmt.Errorf("feed delimiter must be a single character, got %q", c.Feed.Delimiter)
	}
	if c.Feed.PrefixImages && strings.TrimSpace(c.Feed.ImageURLPrefix) == "" {
		return errors.New("image URL prefixing is enabled but no image URL prefix is set")
	}

	if c.Import.MaxWorkers <= 0 {
		return fmt.Errorf("import max_workers must be >= 1, got %d", c.Import.MaxWorkers)
	}

	return nil
}

// ResolveAPIURL returns the catalog API base URL for the configured environment.
func (s SessionConfig) ResolveAPIURL() string {
	if s.APIURL != "" {
		return strings.TrimRight(s.APIURL, "/")
	}
	return environmentAPIURLs[s.Environment]
}

// DelimiterRune returns the feed delimiter as a rune, defaulting to a comma.
func (f FeedConfig) DelimiterRune() rune {
	if f.Delimiter == "" {
		return ','
	}
	r, _ := utf8.DecodeRuneInString(f.Delimiter)
	return r
}

// DSN builds the pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
