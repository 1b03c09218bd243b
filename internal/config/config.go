package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Metaforecast MetaforecastConfig `mapstructure:"metaforecast"`
	Monitor      MonitorConfig      `mapstructure:"monitor"`
	Publish      PublishConfig      `mapstructure:"publish"`
	Twitter      TwitterConfig      `mapstructure:"twitter"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	Schedule     ScheduleConfig     `mapstructure:"schedule"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// MetaforecastConfig holds Metaforecast GraphQL API configuration
type MetaforecastConfig struct {
	Endpoint            string        `mapstructure:"endpoint"`
	Query               string        `mapstructure:"query"` // "search" or "frontpage"
	StarsThreshold      int           `mapstructure:"stars_threshold"`
	Limit               int           `mapstructure:"limit"`
	Timeout             time.Duration `mapstructure:"timeout"`
	PermalinkBase       string        `mapstructure:"permalink_base"`
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
}

// MonitorConfig holds change detection configuration
type MonitorConfig struct {
	Threshold       float64       `mapstructure:"threshold"`
	FreshnessWindow time.Duration `mapstructure:"freshness_window"`
}

// PublishConfig holds posting behavior configuration
type PublishConfig struct {
	DryRun      bool          `mapstructure:"dry_run"`
	Target      string        `mapstructure:"target"` // "twitter" or "telegram"
	MaxLength   int           `mapstructure:"max_length"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

// TwitterConfig holds OAuth 1.0a credentials for the posting account
type TwitterConfig struct {
	APIURL            string        `mapstructure:"api_url"`
	ConsumerKey       string        `mapstructure:"consumer_key"`
	ConsumerSecret    string        `mapstructure:"consumer_secret"`
	AccessToken       string        `mapstructure:"access_token"`
	AccessTokenSecret string        `mapstructure:"access_token_secret"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// TelegramConfig holds Telegram sink configuration
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// ScheduleConfig holds the optional cron schedule; empty means run once
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EnvPrefix prefixes environment variable overrides, e.g. FORECASTBOT_MONITOR_THRESHOLD.
const EnvPrefix = "FORECASTBOT"

// credentialEnv maps config keys to the plain variable names used in .env files.
var credentialEnv = map[string]string{
	"twitter.consumer_key":        "CONSUMER_KEY",
	"twitter.consumer_secret":     "CONSUMER_SECRET",
	"twitter.access_token":        "ACCESS_TOKEN",
	"twitter.access_token_secret": "ACCESS_TOKEN_SECRET",
	"telegram.bot_token":          "TELEGRAM_BOT_TOKEN",
	"telegram.chat_id":            "TELEGRAM_CHAT_ID",
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from file and environment variables. An empty
// path or a missing file yields the defaults plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range credentialEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	// Read config file
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Metaforecast defaults
	v.SetDefault("metaforecast.endpoint", "https://metaforecast.org/api/graphql")
	v.SetDefault("metaforecast.query", "search")
	v.SetDefault("metaforecast.stars_threshold", 4)
	v.SetDefault("metaforecast.limit", 1000)
	v.SetDefault("metaforecast.timeout", "60s")
	v.SetDefault("metaforecast.permalink_base", "https://metaforecast.org/questions/")
	v.SetDefault("metaforecast.max_idle_conns", 10)
	v.SetDefault("metaforecast.max_idle_conns_per_host", 2)
	v.SetDefault("metaforecast.idle_conn_timeout", "90s")

	// Monitor defaults
	v.SetDefault("monitor.threshold", 0.05)
	v.SetDefault("monitor.freshness_window", "24h")

	// Publish defaults
	v.SetDefault("publish.dry_run", true)
	v.SetDefault("publish.target", "twitter")
	v.SetDefault("publish.max_length", 280)
	v.SetDefault("publish.min_interval", "1s")

	// Twitter defaults
	v.SetDefault("twitter.api_url", "https://api.twitter.com")
	v.SetDefault("twitter.consumer_key", "")
	v.SetDefault("twitter.consumer_secret", "")
	v.SetDefault("twitter.access_token", "")
	v.SetDefault("twitter.access_token_secret", "")
	v.SetDefault("twitter.timeout", "30s")

	// Telegram defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")

	// Schedule defaults
	v.SetDefault("schedule.cron", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Metaforecast config
	if c.Metaforecast.Endpoint == "" {
		return fmt.Errorf("metaforecast.endpoint is required")
	}
	if c.Metaforecast.Query != "search" && c.Metaforecast.Query != "frontpage" {
		return fmt.Errorf("metaforecast.query must be one of: search, frontpage")
	}
	if c.Metaforecast.StarsThreshold < 1 || c.Metaforecast.StarsThreshold > 5 {
		return fmt.Errorf("metaforecast.stars_threshold must be between 1 and 5")
	}
	if c.Metaforecast.Limit < 1 || c.Metaforecast.Limit > 1000 {
		return fmt.Errorf("metaforecast.limit must be between 1 and 1000")
	}
	if c.Metaforecast.Timeout <= 0 {
		return fmt.Errorf("metaforecast.timeout must be positive")
	}
	if c.Metaforecast.PermalinkBase == "" {
		return fmt.Errorf("metaforecast.permalink_base is required")
	}

	// Validate Monitor config
	if c.Monitor.Threshold < 0.0 || c.Monitor.Threshold > 1.0 {
		return fmt.Errorf("monitor.threshold must be between 0.0 and 1.0")
	}
	if c.Monitor.FreshnessWindow < 1*time.Minute {
		return fmt.Errorf("monitor.freshness_window must be at least 1 minute")
	}

	// Validate Publish config
	if c.Publish.Target != "twitter" && c.Publish.Target != "telegram" {
		return fmt.Errorf("publish.target must be one of: twitter, telegram")
	}
	if c.Publish.MaxLength < 1 {
		return fmt.Errorf("publish.max_length must be at least 1")
	}
	// Newline, permalink base, at least one id rune and the truncation marker
	if minLength := utf8.RuneCountInString(c.Metaforecast.PermalinkBase) + 3; c.Publish.MaxLength < minLength {
		return fmt.Errorf("publish.max_length must be at least %d to fit the permalink", minLength)
	}
	if c.Publish.MinInterval < 0 {
		return fmt.Errorf("publish.min_interval must not be negative")
	}

	// Credentials are only needed for live posting
	if !c.Publish.DryRun {
		switch c.Publish.Target {
		case "twitter":
			if c.Twitter.ConsumerKey == "" || c.Twitter.ConsumerSecret == "" {
				return fmt.Errorf("twitter.consumer_key and twitter.consumer_secret are required when posting")
			}
			if c.Twitter.AccessToken == "" || c.Twitter.AccessTokenSecret == "" {
				return fmt.Errorf("twitter.access_token and twitter.access_token_secret are required when posting")
			}
		case "telegram":
			if c.Telegram.BotToken == "" {
				return fmt.Errorf("telegram.bot_token is required when posting to telegram")
			}
			if c.Telegram.ChatID == "" {
				return fmt.Errorf("telegram.chat_id is required when posting to telegram")
			}
		}
	}

	// Validate Schedule config
	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron is invalid: %w", err)
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
