package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Backend kinds the factory registry knows how to build.
const (
	KindToolServer = "toolserver"
	KindAnthropic  = "anthropic"
	KindOpenAI     = "openai"
	KindCanned     = "canned"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// CascadeConfig tunes the response cascade: attempt order, concurrency bound,
// per-call timeouts, circuit breaker and retry behavior, and the overall
// wall-clock budget for a single request.
type CascadeConfig struct {
	Backends              []string `mapstructure:"backends"`
	MaxConcurrent         int      `mapstructure:"max_concurrent"`
	ProbeTimeout          string   `mapstructure:"probe_timeout"`
	RespondTimeout        string   `mapstructure:"respond_timeout"`
	BreakerThreshold      int      `mapstructure:"breaker_threshold"`
	BreakerTimeout        string   `mapstructure:"breaker_timeout"`
	RetrySchedule         []string `mapstructure:"retry_schedule"`
	MaxResponseTime       string   `mapstructure:"max_response_time"`
	BackpressureThreshold float64  `mapstructure:"backpressure_threshold"`
}

type SessionConfig struct {
	TTL           string `mapstructure:"ttl"`
	SweepInterval string `mapstructure:"sweep_interval"`
}

// BackendConfig describes a single response backend. URL is required for the
// toolserver kind, APIKey for the paid API kinds, Reply optionally overrides
// the canned kind's response template.
type BackendConfig struct {
	Name   string `mapstructure:"name"`
	Kind   string `mapstructure:"kind"`
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	Reply  string `mapstructure:"reply"`
}

type PersonasConfig struct {
	Dir string `mapstructure:"dir"`
}

type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Cascade  CascadeConfig   `mapstructure:"cascade"`
	Session  SessionConfig   `mapstructure:"session"`
	Backends []BackendConfig `mapstructure:"backends"`
	Personas PersonasConfig  `mapstructure:"personas"`
}

func Load() (*Config, error) {
	viper.Reset()

	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("logging.level", LogLevelInfo)
	viper.SetDefault("cascade.max_concurrent", 10)
	viper.SetDefault("cascade.probe_timeout", "5s")
	viper.SetDefault("cascade.respond_timeout", "30s")
	viper.SetDefault("cascade.breaker_threshold", 3)
	viper.SetDefault("cascade.breaker_timeout", "60s")
	viper.SetDefault("cascade.retry_schedule", []string{"1s", "2s", "4s"})
	viper.SetDefault("cascade.max_response_time", "60s")
	viper.SetDefault("cascade.backpressure_threshold", 0.8)
	viper.SetDefault("session.ttl", "30m")
	viper.SetDefault("session.sweep_interval", "5m")
	viper.SetDefault("personas.dir", "./personas")

	// A bare engine with no config file still answers with the canned backend.
	viper.SetDefault("cascade.backends", []string{"fallback"})
	viper.SetDefault("backends", []map[string]any{
		{"name": "fallback", "kind": KindCanned},
	})

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Error("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Cascade,
			validation.Required,
			validation.By(validateCascadeConfig),
		),
		validation.Field(&c.Session,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(SessionConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a SessionConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.TTL, validation.Required, validation.By(validateDuration)),
					validation.Field(&sc.SweepInterval, validation.Required, validation.By(validateDuration)),
				)
			}),
		),
		validation.Field(&c.Backends,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateBackendConfig)),
		),
	); err != nil {
		return err
	}

	return c.validateCascadeOrder()
}

// validateCascadeOrder checks that every name in the cascade order refers to a
// configured backend.
func (c *Config) validateCascadeOrder() error {
	known := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		known[b.Name] = true
	}

	for _, name := range c.Cascade.Backends {
		if !known[name] {
			return validation.NewError("validation_unknown_backend",
				fmt.Sprintf("cascade order references unknown backend %q", name))
		}
	}

	return nil
}

func validateCascadeConfig(value interface{}) error {
	cc, ok := value.(CascadeConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a CascadeConfig")
	}
	return validation.ValidateStruct(&cc,
		validation.Field(&cc.Backends, validation.Required, validation.Length(1, 0)),
		validation.Field(&cc.MaxConcurrent, validation.Required, validation.Min(1)),
		validation.Field(&cc.ProbeTimeout, validation.Required, validation.By(validateDuration)),
		validation.Field(&cc.RespondTimeout, validation.Required, validation.By(validateDuration)),
		validation.Field(&cc.BreakerThreshold, validation.Required, validation.Min(1)),
		validation.Field(&cc.BreakerTimeout, validation.Required, validation.By(validateDuration)),
		validation.Field(&cc.RetrySchedule, validation.Each(validation.By(validateDuration))),
		validation.Field(&cc.MaxResponseTime, validation.Required, validation.By(validateDuration)),
		validation.Field(&cc.BackpressureThreshold,
			validation.Required,
			validation.Min(0.0).Exclusive(),
			validation.Max(1.0),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validateBackendConfig(value interface{}) error {
	backend, ok := value.(BackendConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a BackendConfig")
	}

	if backend.Name == "" {
		return validation.NewError("validation_empty_name", "backend name cannot be empty")
	}

	switch backend.Kind {
	case KindToolServer:
		return validateBackendURL(backend.URL)
	case KindAnthropic, KindOpenAI, KindCanned:
		return nil
	default:
		return validation.NewError("validation_invalid_kind",
			fmt.Sprintf("backend kind must be one of %s, %s, %s, %s",
				KindToolServer, KindAnthropic, KindOpenAI, KindCanned))
	}
}

func validateBackendURL(serverURL string) error {
	if serverURL == "" {
		return validation.NewError("validation_empty_url", "backend URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
