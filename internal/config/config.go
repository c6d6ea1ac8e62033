// Package config loads the scraper settings from flags, CHASE_* environment
// variables, an optional .env file and an optional YAML file, in that order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/grez-lucas/chase-scraper/internal/scraper/bank/chase"
	"github.com/grez-lucas/chase-scraper/internal/scraper/browser"
)

const (
	EnvPrefix = "CHASE"

	BackendHTTP = "http"
	BackendRod  = "rod"

	FormatConsole = "console"
	FormatJSON    = "json"

	// Flags read by Load itself rather than bound to a key.
	FlagConfigFile = "config"
	FlagEnvFile    = "env-file"

	defaultEnvFile = ".env"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	CookieFile string        `mapstructure:"cookie_file"`
	OTPChannel string        `mapstructure:"otp_channel"`
	Backend    string        `mapstructure:"backend"`
	Headless   bool          `mapstructure:"headless"`
	UserAgent  string        `mapstructure:"user_agent"`
	Timeout    time.Duration `mapstructure:"timeout"`
	BaseURL    string        `mapstructure:"base_url"`
	Log        LoggerConfig  `mapstructure:"log"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"username":    "username",
	"cookie-file": "cookie_file",
	"otp-channel": "otp_channel",
	"backend":     "backend",
	"headless":    "headless",
	"user-agent":  "user_agent",
	"timeout":     "timeout",
	"base-url":    "base_url",
	"log-level":   "log.level",
	"log-format":  "log.format",
	"log-file":    "log.file",
}

// RegisterFlags adds the flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagConfigFile, "", "YAML config file")
	fs.String(FlagEnvFile, "", "dotenv file (default .env when present)")
	fs.String("username", "", "portal user id (CHASE_USERNAME)")
	fs.String("cookie-file", "", "cookie file to resume sessions from (CHASE_COOKIE_FILE)")
	fs.String("otp-channel", string(chase.DefaultOTPChannel), "one-time code delivery: call, email or sms (CHASE_OTP_CHANNEL)")
	fs.String("backend", BackendHTTP, "browser backend: http or rod (CHASE_BACKEND)")
	fs.Bool("headless", true, "run Chrome without a window, rod backend only (CHASE_HEADLESS)")
	fs.String("user-agent", browser.DefaultUserAgent, "User-Agent header (CHASE_USER_AGENT)")
	fs.Duration("timeout", browser.DefaultTimeout, "per request timeout (CHASE_TIMEOUT)")
	fs.String("base-url", chase.DefaultBaseURL, "portal address (CHASE_BASE_URL)")
	fs.String("log-level", "info", "debug, info, warn or error (CHASE_LOG_LEVEL)")
	fs.String("log-format", FormatConsole, "console or json (CHASE_LOG_FORMAT)")
	fs.String("log-file", "", "also write JSON logs to this rotated file (CHASE_LOG_FILE)")
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("cookie_file", "")
	v.SetDefault("otp_channel", string(chase.DefaultOTPChannel))
	v.SetDefault("backend", BackendHTTP)
	v.SetDefault("headless", true)
	v.SetDefault("user_agent", browser.DefaultUserAgent)
	v.SetDefault("timeout", browser.DefaultTimeout)
	v.SetDefault("base_url", chase.DefaultBaseURL)

	// -- Logger --
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", FormatConsole)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", false)
}

// Load builds the configuration. flags may be nil. A .env in the working
// directory is read if present unless --env-file names another; --config
// adds a YAML file below the environment.
func Load(flags *pflag.FlagSet) (*Config, error) {
	envFile, configFile, explicitEnv := defaultEnvFile, "", false
	if flags != nil {
		if f := flags.Lookup(FlagEnvFile); f != nil && f.Value.String() != "" {
			envFile, explicitEnv = f.Value.String(), true
		}
		if f := flags.Lookup(FlagConfigFile); f != nil {
			configFile = f.Value.String()
		}
	}

	// 1. .env never overrides variables already set; only an explicit
	// --env-file has to exist
	if err := godotenv.Load(envFile); err != nil && (explicitEnv || !errors.Is(err, fs.ErrNotExist)) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	// 2. Defaults, environment, optional file
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	// 3. Flags win when set
	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings needed to open a session.
func (c *Config) Validate() error {
	if c.Username == "" {
		return fmt.Errorf("%w: username is required (CHASE_USERNAME or --username)", ErrInvalidConfig)
	}
	if c.Password == "" {
		return fmt.Errorf("%w: password is required (CHASE_PASSWORD)", ErrInvalidConfig)
	}
	switch c.Backend {
	case BackendHTTP, BackendRod:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	if _, err := chase.ParseOTPChannel(c.OTPChannel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	return c.Log.Validate()
}

func (l LoggerConfig) Validate() error {
	switch l.Format {
	case FormatConsole, FormatJSON:
		return nil
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, l.Format)
	}
}
