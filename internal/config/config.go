package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	StoreDriverMemory     = "memory"
	StoreDriverMongoDB    = "mongodb"
	StoreDriverPostgreSQL = "postgresql"

	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
)

// Config holds all process configuration
type Config struct {
	SiteURL     string
	HTTPAddress string
	APIKey      string
	Environment string

	APIBaseURL string
	APIToken   string
	PrivateKey string

	RootEncryptionKey string

	StoreDriver   string
	MongoURI      string
	MongoDatabase string
	PostgresURI   string

	CacheDriver    string
	RedisAddr      string
	RedisUsername  string
	RedisPassword  string
	RedisDB        int
	RedisTLS       bool
	QueryStaleTime time.Duration
	QueryCacheTime time.Duration

	RefreshSchedule string
	RefreshWindow   time.Duration

	SentryDSN string

	ClientIDAzure                string
	ClientSecretAzure            string
	ClientSecretHeroku           string
	ClientIDGitLab               string
	ClientSecretGitLab           string
	ClientIDGCPSecretManager     string
	ClientSecretGCPSecretManager string

	AzureTokenURL  string
	HerokuTokenURL string
	GitLabTokenURL string
	GCPTokenURL    string
}

type LoadOptions struct {
	// ConfigFile skips the search paths when set.
	ConfigFile string
}

// envMappings binds each config key to its environment variables. The first
// variable present wins; the unprefixed names are the ones used by existing
// deployments.
var envMappings = map[string][]string{
	"SiteURL":           {"INFISICAL_SITE_URL", "SITE_URL"},
	"HTTPAddress":       {"INFISICAL_HTTP_ADDRESS", "HTTP_ADDRESS"},
	"APIKey":            {"INFISICAL_API_KEY"},
	"Environment":       {"INFISICAL_ENVIRONMENT", "NODE_ENV"},
	"APIBaseURL":        {"INFISICAL_API_URL"},
	"APIToken":          {"INFISICAL_TOKEN"},
	"PrivateKey":        {"INFISICAL_PRIVATE_KEY", "PRIVATE_KEY"},
	"RootEncryptionKey": {"INFISICAL_ENCRYPTION_KEY", "ROOT_ENCRYPTION_KEY", "ENCRYPTION_KEY"},

	"StoreDriver":   {"INFISICAL_STORE_DRIVER"},
	"MongoURI":      {"INFISICAL_MONGO_URI", "MONGO_URL"},
	"MongoDatabase": {"INFISICAL_MONGO_DATABASE"},
	"PostgresURI":   {"INFISICAL_POSTGRES_URI", "DB_CONNECTION_URI"},

	"CacheDriver":    {"INFISICAL_CACHE_DRIVER"},
	"RedisAddr":      {"INFISICAL_REDIS_ADDR"},
	"RedisUsername":  {"INFISICAL_REDIS_USERNAME"},
	"RedisPassword":  {"INFISICAL_REDIS_PASSWORD"},
	"RedisDB":        {"INFISICAL_REDIS_DB"},
	"RedisTLS":       {"INFISICAL_REDIS_TLS"},
	"QueryStaleTime": {"INFISICAL_QUERY_STALE_TIME"},
	"QueryCacheTime": {"INFISICAL_QUERY_CACHE_TIME"},

	"RefreshSchedule": {"INFISICAL_REFRESH_SCHEDULE"},
	"RefreshWindow":   {"INFISICAL_REFRESH_WINDOW"},

	"SentryDSN": {"INFISICAL_SENTRY_DSN", "SENTRY_DSN"},

	"ClientIDAzure":                {"INFISICAL_CLIENT_ID_AZURE", "CLIENT_ID_AZURE"},
	"ClientSecretAzure":            {"INFISICAL_CLIENT_SECRET_AZURE", "CLIENT_SECRET_AZURE"},
	"ClientSecretHeroku":           {"INFISICAL_CLIENT_SECRET_HEROKU", "CLIENT_SECRET_HEROKU"},
	"ClientIDGitLab":               {"INFISICAL_CLIENT_ID_GITLAB", "CLIENT_ID_GITLAB"},
	"ClientSecretGitLab":           {"INFISICAL_CLIENT_SECRET_GITLAB", "CLIENT_SECRET_GITLAB"},
	"ClientIDGCPSecretManager":     {"INFISICAL_CLIENT_ID_GCP_SECRET_MANAGER", "CLIENT_ID_GCP_SECRET_MANAGER"},
	"ClientSecretGCPSecretManager": {"INFISICAL_CLIENT_SECRET_GCP_SECRET_MANAGER", "CLIENT_SECRET_GCP_SECRET_MANAGER"},

	"AzureTokenURL":  {"INFISICAL_AZURE_TOKEN_URL"},
	"HerokuTokenURL": {"INFISICAL_HEROKU_TOKEN_URL"},
	"GitLabTokenURL": {"INFISICAL_GITLAB_TOKEN_URL"},
	"GCPTokenURL":    {"INFISICAL_GCP_TOKEN_URL"},
}

// Load reads configuration from defaults, an optional config file and the
// environment, in increasing order of precedence.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	for configKey, envVars := range envMappings {
		args := append([]string{configKey}, envVars...)
		if err := v.BindEnv(args...); err != nil {
			log.Warn().Err(err).Msgf("Failed to bind environment variables %s for %s", strings.Join(envVars, ","), configKey)
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.infisical")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || opts.ConfigFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Debug().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("store_driver", config.StoreDriver).
		Str("cache_driver", config.CacheDriver).
		Str("api_base_url", config.APIBaseURL).
		Msg("Config loaded")

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SiteURL", "http://localhost:8080")
	v.SetDefault("HTTPAddress", ":4000")
	v.SetDefault("Environment", "development")
	v.SetDefault("APIBaseURL", "https://app.infisical.com")

	v.SetDefault("StoreDriver", StoreDriverMemory)
	v.SetDefault("MongoDatabase", "infisical")

	v.SetDefault("CacheDriver", CacheDriverMemory)
	v.SetDefault("RedisAddr", "localhost:6379")
	v.SetDefault("QueryStaleTime", "30s")
	v.SetDefault("QueryCacheTime", "5m")

	v.SetDefault("RefreshSchedule", "@every 5m")
	v.SetDefault("RefreshWindow", "10m")
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverMemory, StoreDriverMongoDB, StoreDriverPostgreSQL:
	default:
		return fmt.Errorf("unsupported store driver %q", c.StoreDriver)
	}

	switch c.CacheDriver {
	case CacheDriverMemory, CacheDriverRedis:
	default:
		return fmt.Errorf("unsupported cache driver %q", c.CacheDriver)
	}

	if c.RootEncryptionKey != "" && len(c.RootEncryptionKey) != 32 {
		return fmt.Errorf("root encryption key must be 32 characters, got %d", len(c.RootEncryptionKey))
	}

	return nil
}

// RequireIntegrationAuths checks what any command touching stored integration
// auths needs.
func (c *Config) RequireIntegrationAuths() error {
	var missingVars []string

	if c.RootEncryptionKey == "" {
		missingVars = append(missingVars, "INFISICAL_ENCRYPTION_KEY")
	}

	if c.StoreDriver == StoreDriverMongoDB && c.MongoURI == "" {
		missingVars = append(missingVars, "INFISICAL_MONGO_URI")
	}

	if c.StoreDriver == StoreDriverPostgreSQL && c.PostgresURI == "" {
		missingVars = append(missingVars, "INFISICAL_POSTGRES_URI")
	}

	return missing(missingVars)
}

func (c *Config) RequireServer() error {
	if err := c.RequireIntegrationAuths(); err != nil {
		return err
	}

	if c.APIKey == "" {
		return missing([]string{"INFISICAL_API_KEY"})
	}

	return nil
}

func (c *Config) RequireSecretsAPI() error {
	var missingVars []string

	if c.APIToken == "" {
		missingVars = append(missingVars, "INFISICAL_TOKEN")
	}

	if c.PrivateKey == "" {
		missingVars = append(missingVars, "INFISICAL_PRIVATE_KEY")
	}

	return missing(missingVars)
}

func missing(vars []string) error {
	if len(vars) == 0 {
		return nil
	}

	return fmt.Errorf("missing required environment variables: %s", strings.Join(vars, ", "))
}
