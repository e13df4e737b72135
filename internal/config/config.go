// Package config loads server configuration from defaults, an optional YAML
// file, a local .env file and SPENDING_DIARY_* environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mmynk/spending-diary/internal/calculator"
)

// EnvPrefix prefixes every environment override: server.port is read from
// SPENDING_DIARY_SERVER_PORT.
const EnvPrefix = "SPENDING_DIARY"

// MinSecretLength is the shortest JWT secret the server accepts.
const MinSecretLength = 16

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	AMQP     AMQPConfig     `mapstructure:"amqp"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LedgerConfig struct {
	OpTimeout       time.Duration `mapstructure:"op_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RemainderPolicy string        `mapstructure:"remainder_policy"`
}

// AMQPConfig enables event publishing when URL is set.
type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.path", "./data/spending-diary.db")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("ledger.op_timeout", 5*time.Second)
	v.SetDefault("ledger.max_retries", 5)
	v.SetDefault("ledger.remainder_policy", string(calculator.RemainderDrift))

	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "spending-diary")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads the configuration. configFile may be empty. Flags named
// port, db, log-level and log-format, when present in flags and set,
// override everything else.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		for key, name := range map[string]string{
			"server.port":   "port",
			"database.path": "db",
			"log.level":     "log-level",
			"log.format":    "log-format",
		} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid server.port %d: must be between 1 and 65535", c.Server.Port))
	}
	for name, d := range map[string]time.Duration{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.idle_timeout":     c.Server.IdleTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"auth.token_ttl":          c.Auth.TokenTTL,
		"ledger.op_timeout":       c.Ledger.OpTimeout,
	} {
		if d <= 0 {
			problems = append(problems, fmt.Sprintf("invalid %s %v: must be positive", name, d))
		}
	}

	if c.Database.Path == "" {
		problems = append(problems, "database.path cannot be empty")
	}

	if len(c.Auth.JWTSecret) < MinSecretLength {
		problems = append(problems, fmt.Sprintf("auth.jwt_secret must be at least %d characters (set %s_AUTH_JWT_SECRET)", MinSecretLength, EnvPrefix))
	}

	if c.Ledger.MaxRetries < 0 {
		problems = append(problems, fmt.Sprintf("invalid ledger.max_retries %d: cannot be negative", c.Ledger.MaxRetries))
	}
	if _, err := calculator.ParseRemainderPolicy(c.Ledger.RemainderPolicy); err != nil {
		problems = append(problems, "invalid ledger.remainder_policy: "+err.Error())
	}

	if c.AMQP.URL != "" {
		if u, err := url.Parse(c.AMQP.URL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid amqp.url: %v", err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid amqp.url scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQP.Exchange == "" {
			problems = append(problems, "amqp.exchange cannot be empty when amqp.url is set")
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("invalid log.level '%s': must be debug, info, warn or error", c.Log.Level))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("invalid log.format '%s': must be console or json", c.Log.Format))
	}

	if len(problems) > 0 {
		return errors.New("configuration validation failed:\n- " + strings.Join(problems, "\n- "))
	}
	return nil
}

// RemainderPolicy returns the parsed ledger.remainder_policy. Call Validate
// first.
func (c *Config) RemainderPolicy() calculator.RemainderPolicy {
	policy, err := calculator.ParseRemainderPolicy(c.Ledger.RemainderPolicy)
	if err != nil {
		return calculator.RemainderDrift
	}
	return policy
}
