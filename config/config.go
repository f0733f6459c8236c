package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/manta/client"
	"github.com/sagarc03/manta/keybackend"
	"github.com/sagarc03/manta/logging"
	"github.com/sagarc03/manta/metrics"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root client configuration.
type Config struct {
	URL         string        `mapstructure:"url" validate:"omitempty,url"`
	User        string        `mapstructure:"user"`
	KeyID       string        `mapstructure:"key_id"`
	KeyFile     string        `mapstructure:"key_file"`
	Passphrase  string        `mapstructure:"passphrase"`
	Secret      string        `mapstructure:"secret"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"min=0"`
	Concurrency int           `mapstructure:"concurrency" validate:"min=0"`
	Stream      StreamConfig  `mapstructure:"stream"`
	Log         LogConfig     `mapstructure:"log"`
}

// StreamConfig holds listing stream settings.
type StreamConfig struct {
	StrictTrailers bool `mapstructure:"strict_trailers"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"key-id":          "key_id",
	"key-file":        "key_file",
	"strict-trailers": "stream.strict_trailers",
	"log-level":       "log.level",
	"log-format":      "log.format",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance. Every key
// gets one so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("url", "")
	v.SetDefault("user", "")
	v.SetDefault("key_id", "")
	v.SetDefault("key_file", "")
	v.SetDefault("passphrase", "")
	v.SetDefault("secret", "")
	v.SetDefault("timeout", client.DefaultTimeout)
	v.SetDefault("concurrency", 0) // 0 means unbounded

	v.SetDefault("stream.strict_trailers", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatText)
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("manta")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	v.SetEnvPrefix("MANTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		bindFlags(v, flags)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags of c.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// ApplyProfile fills the connection settings c leaves empty from p.
func (c *Config) ApplyProfile(p *Profile) {
	if p == nil {
		return
	}
	if c.URL == "" {
		c.URL = p.URL
	}
	if c.User == "" {
		c.User = p.User
	}
	if c.KeyID == "" {
		c.KeyID = p.KeyID
	}
	if c.KeyFile == "" && c.Secret == "" {
		c.KeyFile = p.KeyFile
	}
}

// Keys returns the signing credential settings of c.
func (c *Config) Keys() keybackend.KeysConfig {
	return keybackend.KeysConfig{
		User:       c.User,
		KeyID:      c.KeyID,
		File:       c.KeyFile,
		Passphrase: c.Passphrase,
		Secret:     c.Secret,
	}
}

// Logger builds the logger described by the log section, writing to w.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	return logging.New(w, logging.Options{Level: c.Log.Level, Format: c.Log.Format})
}

// ClientOptions translates c into client options. log and m may be nil.
func (c *Config) ClientOptions(log *slog.Logger, m *metrics.Metrics) []client.Option {
	opts := []client.Option{
		client.WithUser(c.User),
		client.WithStrictTrailers(c.Stream.StrictTrailers),
		client.WithConcurrency(c.Concurrency),
	}
	if c.Timeout > 0 {
		opts = append(opts, client.WithTimeout(c.Timeout))
	}
	if log != nil {
		opts = append(opts, client.WithLogger(log))
	}
	if m != nil {
		opts = append(opts, client.WithMetrics(m))
	}
	return opts
}

// NewClient loads the signing key and builds a client from c. extra options
// are applied after the configured ones.
func (c *Config) NewClient(log *slog.Logger, m *metrics.Metrics, extra ...client.Option) (*client.Client, error) {
	signer, err := keybackend.NewSigner(c.Keys())
	if err != nil {
		return nil, fmt.Errorf("load signer: %w", err)
	}
	return client.New(c.URL, signer.SignFunc(), append(c.ClientOptions(log, m), extra...)...)
}
