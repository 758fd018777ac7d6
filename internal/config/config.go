// Package config loads the service configuration from a YAML file, a .env
// file and EDUVERSE_* environment variables, in increasing priority.
package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	SourceREST     = "rest"
	SourcePostgres = "postgres"

	FileName  = "eduverse-timetable.yaml"
	envPrefix = "EDUVERSE"
)

type Config struct {
	ListenAddr      string        `mapstructure:"listen_addr" yaml:"listen_addr" validate:"required"`
	Source          string        `mapstructure:"source" yaml:"source" validate:"required,oneof=rest postgres"`
	APIURL          string        `mapstructure:"api_url" yaml:"api_url,omitempty" validate:"required_if=Source rest"`
	APIToken        string        `mapstructure:"api_token" yaml:"api_token,omitempty"`
	DatabaseURL     string        `mapstructure:"database_url" yaml:"database_url,omitempty" validate:"required_if=Source postgres"`
	DataFile        string        `mapstructure:"data_file" yaml:"data_file" validate:"required"`
	LogFile         string        `mapstructure:"log_file" yaml:"log_file,omitempty"`
	Debug           bool          `mapstructure:"debug" yaml:"debug"`
	LongPollTimeout time.Duration `mapstructure:"long_poll_timeout" yaml:"long_poll_timeout" validate:"gt=0"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" validate:"gt=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("source", SourceREST)
	v.SetDefault("api_url", "")
	v.SetDefault("api_token", "")
	v.SetDefault("database_url", "")
	v.SetDefault("data_file", "data/timetables.json")
	v.SetDefault("log_file", "")
	v.SetDefault("debug", false)
	v.SetDefault("long_poll_timeout", 55*time.Second)
	v.SetDefault("request_timeout", 30*time.Second)
}

// DefaultPath is the config file next to the running executable.
func DefaultPath() string {
	exe, err := os.Executable()
	if err != nil {
		return FileName
	}
	return filepath.Join(filepath.Dir(exe), FileName)
}

// Load reads path (a missing file is not an error) and envFile, then
// applies the environment and validates the result.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, errors.Wrapf(err, "load %s", envFile)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "stat %s", envFile)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "read %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.Source = strings.ToLower(strings.TrimSpace(cfg.Source))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// Write stores cfg as YAML at path, creating the directory.
func Write(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create config dir")
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// NewLogger builds a development logger when debug is set and a JSON
// production logger otherwise. logFile, if set, is written besides stderr.
func NewLogger(debug bool, logFile string) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if debug {
		zc = zap.NewDevelopmentConfig()
	}
	if logFile != "" {
		zc.OutputPaths = append(zc.OutputPaths, logFile)
		zc.ErrorOutputPaths = append(zc.ErrorOutputPaths, logFile)
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return logger, nil
}
