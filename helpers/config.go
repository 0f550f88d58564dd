package helpers

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// DefaultPrincipal is the service principal allowed to invoke the function.
const DefaultPrincipal = "events.amazonaws.com"

type Config struct {
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	Region        string `mapstructure:"region"`
	AssumeRoleArn string `mapstructure:"assume_role_arn"`
	Principal     string `mapstructure:"principal"`
	StrictInput   bool   `mapstructure:"strict_input"`
}

// NewViper returns a viper instance reading an optional config.yaml from the
// working directory and EBRESOURCE_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("ebresource")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("region", "")
	v.SetDefault("assume_role_arn", "")
	v.SetDefault("principal", DefaultPrincipal)
	v.SetDefault("strict_input", false)
	return v
}

// LoadConfig reads the config file if there is one and decodes the settings.
// A missing file is not an error; the defaults and environment still apply.
func LoadConfig(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("no config file found, using defaults and environment")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Principal == "" {
		cfg.Principal = DefaultPrincipal
	}
	return cfg, nil
}

// NewLogger builds the process logger described by the config.
func NewLogger(cfg Config) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch cfg.LogFormat {
	case "", "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log_format %q: must be json or text", cfg.LogFormat)
	}
}
