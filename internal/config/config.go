package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

type DatabaseDriver string

const (
	DatabaseDriverSQLite DatabaseDriver = "sqlite"
	DatabaseDriverMySQL  DatabaseDriver = "mysql"
)

// Config holds the configuration for the linky server.
type Config struct {
	// Listen is the address the server will listen on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// Debug enables development conveniences like serving the front end entry page
	// for unmatched routes.
	Debug bool `yaml:"debug" mapstructure:"debug"`
	// ServerURL is the base URL of the linky server.
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	// StaticDir is the directory holding the development front end.
	StaticDir string `yaml:"static_dir" mapstructure:"static_dir"`
	// SessionKey is the key used to sign session cookies.
	SessionKey string `yaml:"session_key" mapstructure:"session_key"`
	// SessionMaxAge is the maximum age of a session in seconds.
	SessionMaxAge int `yaml:"session_max_age" mapstructure:"session_max_age"`
	// Database holds the database configuration.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Auth holds the authentication configuration.
	Auth *AuthConfig `yaml:"auth" mapstructure:"auth"`
	// Cache holds the token cache configuration.
	Cache *CacheConfig `yaml:"cache" mapstructure:"cache"`
	// Scheduler holds the configuration for background jobs.
	Scheduler *SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	// Metrics holds the prometheus configuration.
	Metrics *MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	// Gravatar holds the configuration for Gravatar profile pictures.
	Gravatar *GravatarConfig `yaml:"gravatar" mapstructure:"gravatar"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	// Driver selects the database backend ("sqlite" or "mysql").
	Driver DatabaseDriver `yaml:"driver" mapstructure:"driver"`
	// Path is the path to the sqlite database file.
	Path string `yaml:"path" mapstructure:"path"`
	// DSN is the data source name used by the mysql driver.
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

// AuthConfig holds the authentication configuration.
type AuthConfig struct {
	// TokenTTL is how long an API token stays valid. Zero means tokens never expire.
	TokenTTL time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
	// AllowAllPermissions makes every permission check pass, for every user.
	// This reproduces the behaviour of the legacy application and should only be
	// used while migrating clients that depend on it.
	AllowAllPermissions bool `yaml:"allow_all_permissions" mapstructure:"allow_all_permissions"`
	// LoginRateLimit is the number of login attempts per minute allowed per client IP.
	LoginRateLimit int `yaml:"login_rate_limit" mapstructure:"login_rate_limit"`
	// LoginBurst is the burst size of the login rate limiter.
	LoginBurst int `yaml:"login_burst" mapstructure:"login_burst"`
}

// CacheConfig holds the configuration for the cache engine.
type CacheConfig struct {
	// Type is the type of cache engine to use (e.g., "memory", "redis").
	Type CacheType `yaml:"type" mapstructure:"type"`
	// RedisURL is the address of the Redis server if using Redis.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	// TTL is how long resolved tokens are cached.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// SchedulerConfig holds the configuration for background jobs.
type SchedulerConfig struct {
	// TokenPurgeInterval is how often expired API tokens are deleted. Zero disables the job.
	TokenPurgeInterval time.Duration `yaml:"token_purge_interval" mapstructure:"token_purge_interval"`
}

// MetricsConfig holds the prometheus configuration.
type MetricsConfig struct {
	// Enabled exposes the /metrics endpoint.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// GravatarConfig holds the configuration for Gravatar profile pictures.
type GravatarConfig struct {
	// Enabled indicates whether Gravatar support is enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// DefaultImage is the default image to use when no Gravatar is found.
	// Valid values: "404", "mp", "identicon", "monsterid", "wavatar", "retro", "robohash", "blank"
	DefaultImage string `yaml:"default_image" mapstructure:"default_image"`
	// Rating is the maximum rating for Gravatar images.
	// Valid values: "g", "pg", "r", "x"
	Rating string `yaml:"rating" mapstructure:"rating"`
	// Size is the size of the Gravatar image in pixels (1-2048).
	Size int `yaml:"size" mapstructure:"size"`
}

// Load reads the configuration from the specified path and returns a Config struct.
// If path is empty, it will use default search paths for config files.
// A missing config file is not an error, defaults and environment variables apply.
func Load(path string) (*Config, error) {
	// a .env file is optional, variables already set in the environment win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("LINKY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configFileFound bool
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.linky")
		v.AddConfigPath("/etc/linky")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		configFileFound = true
	}

	if configFileFound {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	sanitizeConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	if c.Auth.AllowAllPermissions {
		log.Warn("auth.allow_all_permissions is enabled, every user passes every permission check")
	}

	return &c, nil
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:8000")
	v.SetDefault("debug", false)
	v.SetDefault("server_url", "http://localhost:8000")
	v.SetDefault("static_dir", "./static")
	v.SetDefault("session_key", "")
	v.SetDefault("session_max_age", 172800) // 48 hours

	v.SetDefault("database.driver", DatabaseDriverSQLite)
	v.SetDefault("database.path", "./data/linky.db")
	v.SetDefault("database.dsn", "")

	v.SetDefault("auth.token_ttl", 30*24*time.Hour)
	v.SetDefault("auth.allow_all_permissions", false)
	v.SetDefault("auth.login_rate_limit", 10)
	v.SetDefault("auth.login_burst", 5)

	v.SetDefault("cache.type", CacheTypeMemory)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("scheduler.token_purge_interval", time.Hour)

	v.SetDefault("metrics.enabled", false)

	v.SetDefault("gravatar.enabled", false)
	v.SetDefault("gravatar.default_image", "identicon")
	v.SetDefault("gravatar.rating", "g")
	v.SetDefault("gravatar.size", 80)
}

// validateConfig checks the configuration for required values.
func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing linky config")
	}

	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}

	if c.SessionKey == "" {
		return fmt.Errorf("session key is required")
	}

	if c.Database == nil {
		return fmt.Errorf("missing database config")
	}
	switch c.Database.Driver {
	case DatabaseDriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required when using sqlite")
		}
	case DatabaseDriverMySQL:
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required when using mysql")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Auth == nil {
		c.Auth = &AuthConfig{}
	}
	if c.Auth.TokenTTL < 0 {
		return fmt.Errorf("auth token TTL must not be negative")
	}
	if c.Auth.LoginRateLimit <= 0 {
		return fmt.Errorf("login rate limit must be greater than 0")
	}
	if c.Auth.LoginBurst <= 0 {
		return fmt.Errorf("login burst must be greater than 0")
	}

	if c.Cache != nil {
		if c.Cache.Type == "" {
			return fmt.Errorf("cache type is required when cache is enabled")
		}
		if c.Cache.Type == CacheTypeRedis && c.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when Redis cache is enabled") //nolint:staticcheck
		}
	} else {
		c.Cache = &CacheConfig{
			Type: CacheTypeMemory, // Default to in-memory cache if not enabled
			TTL:  5 * time.Minute,
		}
	}

	if c.Scheduler == nil {
		c.Scheduler = &SchedulerConfig{}
	}
	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{}
	}

	return nil
}

// sanitizeConfig sanitizes the configuration values.
func sanitizeConfig(c *Config) {
	if c == nil {
		return
	}

	c.Listen = urlSanitize(c.Listen)

	if c.ServerURL != "" {
		c.ServerURL = urlSanitize(c.ServerURL)
	}

	if c.Database != nil {
		c.Database.Driver = DatabaseDriver(strings.ToLower(strings.TrimSpace(string(c.Database.Driver))))
	}

	if c.Cache != nil {
		c.Cache.Type = CacheType(strings.ToLower(strings.TrimSpace(string(c.Cache.Type))))
	}
}

func urlSanitize(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}
