package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
//
// Every value can be overridden by environment variables (see [Config.FromEnv]) so the
// container deployment works with no config file at all.
type Config struct {
	Credentials   CredentialsConfig `toml:"credentials"`
	CloudDatabase CloudDBConfig     `toml:"cloud_database"`
	LocalDatabase LocalDBConfig     `toml:"local_database"`
	Server        ServerConfig      `toml:"server"`
	Auth          AuthConfig        `toml:"auth"`
	Cache         CacheConfig       `toml:"cache"`
	Email         EmailConfig       `toml:"email"`
	Pipeline      PipelineConfig    `toml:"pipeline"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Kite   KiteConfig   `toml:"kite"`
	Google GoogleConfig `toml:"google"`
}

// KiteConfig contains Kite Connect API credentials and the cached session token.
type KiteConfig struct {
	APIKey      string `toml:"api_key"`
	APISecret   string `toml:"api_secret"`
	AccessToken string `toml:"access_token"`
	RedirectURL string `toml:"redirect_url"`
}

// GoogleConfig contains Google OAuth2 credentials for social sign-in.
type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURL  string `toml:"redirect_url"`
}

// CloudDBConfig contains cloud Postgres connection settings.
type CloudDBConfig struct {
	URL          string `toml:"url"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LocalDBConfig contains the local SQLite store settings.
type LocalDBConfig struct {
	Path string `toml:"path"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// AuthConfig contains JWT signing settings for the API surface.
type AuthConfig struct {
	JWTSecret   string `toml:"jwt_secret"`
	TokenExpiry int    `toml:"token_expiry_minutes"`
}

// CacheConfig contains quote cache settings. RedisURL is optional; an empty
// value selects the in-process TTL cache.
type CacheConfig struct {
	RedisURL   string `toml:"redis_url"`
	TTLSeconds int    `toml:"ttl_seconds"`
	MaxEntries int    `toml:"max_entries"`
}

// EmailConfig contains alert email delivery settings (SendGrid).
type EmailConfig struct {
	SendGridKey string `toml:"sendgrid_key"`
	From        string `toml:"from"`
	FromName    string `toml:"from_name"`
}

// PipelineConfig contains market data pipeline tuning.
type PipelineConfig struct {
	RatePerSecond float64 `toml:"rate_per_second"`
	HistoryStart  string  `toml:"history_start"`
	ChunkDays     int     `toml:"chunk_days"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// SaveConfig writes the configuration back to a TOML file.
func SaveConfig(path string, config *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadDotenv loads a .env file into the process environment when present.
// Missing files are not an error; the hosting platform supplies variables directly.
func LoadDotenv(path string) {
	if path == "" {
		path = ".env"
	}
	_ = godotenv.Load(path)
}

// FromEnv overlays environment variables onto the config. The deployment
// contract requires KITE_API_KEY, KITE_API_SECRET and CLOUD_DATABASE_URL;
// PORT is supplied by the hosting platform.
func (c *Config) FromEnv() {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setStr(&c.Credentials.Kite.APIKey, "KITE_API_KEY")
	setStr(&c.Credentials.Kite.APISecret, "KITE_API_SECRET")
	setStr(&c.Credentials.Kite.AccessToken, "KITE_ACCESS_TOKEN")
	setStr(&c.Credentials.Kite.RedirectURL, "KITE_REDIRECT_URL")
	setStr(&c.Credentials.Google.ClientID, "GOOGLE_CLIENT_ID")
	setStr(&c.Credentials.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setStr(&c.Credentials.Google.RedirectURL, "GOOGLE_REDIRECT_URI")
	setStr(&c.CloudDatabase.URL, "CLOUD_DATABASE_URL")
	setStr(&c.LocalDatabase.Path, "LOCAL_DATABASE_PATH")
	setStr(&c.Auth.JWTSecret, "JWT_SECRET")
	setStr(&c.Cache.RedisURL, "REDIS_URL")
	setStr(&c.Email.SendGridKey, "SENDGRID_API_KEY")
	setStr(&c.Email.From, "EMAIL_FROM")

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// Validate checks the presence of credentials needed for Kite operations.
// The server boots without them; only Kite-backed requests require them.
func (c *Config) Validate() error {
	if c.Credentials.Kite.APIKey == "" || c.Credentials.Kite.APISecret == "" {
		return fmt.Errorf("%w: KITE_API_KEY and KITE_API_SECRET must be set", ErrMissingCredentials)
	}
	return nil
}
