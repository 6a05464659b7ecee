// Package config loads hellostack settings from hellostack.yaml, a .env
// file and HELLOSTACK_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/olatheander/aws-cdk-lambda-monorepo/infra"
)

// EnvPrefix prefixes every environment variable the config reads.
const EnvPrefix = "HELLOSTACK"

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "hellostack.yaml"

// Config holds the settings of the CLI and the stack it deploys.
type Config struct {
	StackName    string `mapstructure:"stack_name" validate:"required,max=128"`
	Region       string `mapstructure:"region"`
	Description  string `mapstructure:"description" validate:"max=1024"`
	StageName    string `mapstructure:"stage_name" validate:"required,alphanum,max=128"`
	CodeBucket   string `mapstructure:"code_bucket"`
	CodePrefix   string `mapstructure:"code_prefix"`
	Architecture string `mapstructure:"architecture" validate:"oneof=amd64 arm64"`
	LogLevel     string `mapstructure:"log_level" validate:"oneof=trace debug info warn warning error fatal panic"`
	ServeAddr    string `mapstructure:"serve_addr" validate:"required,hostname_port"`
}

// Options controls where Load looks.
type Options struct {
	// File is an explicit config file; it must exist when set.
	File string
	// DotEnv is the .env file to load, ".env" when empty.
	DotEnv string
}

var validate = validator.New()

func defaults(v *viper.Viper) {
	v.SetDefault("stack_name", "HelloStack")
	v.SetDefault("region", "")
	v.SetDefault("description", infra.DefaultDescription)
	v.SetDefault("stage_name", infra.DefaultStageName)
	v.SetDefault("code_bucket", "")
	v.SetDefault("code_prefix", "hello")
	v.SetDefault("architecture", "amd64")
	v.SetDefault("log_level", "info")
	v.SetDefault("serve_addr", "127.0.0.1:3000")
}

// Load reads and validates the configuration.
func Load(opts Options) (*Config, error) {
	dotenv := opts.DotEnv
	if dotenv == "" {
		dotenv = ".env"
	}
	dotenvValues, err := godotenv.Read(dotenv)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", dotenv, err)
	}

	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	switch {
	case opts.File != "":
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", opts.File, err)
		}
	default:
		v.SetConfigName(strings.TrimSuffix(DefaultFile, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading %s: %w", DefaultFile, err)
			}
		}
	}

	applyDotEnv(v, dotenvValues)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDotEnv sets the HELLOSTACK_* entries of a .env file on v. The
// process environment is left untouched so a reload sees edits, and a
// variable set in the environment still wins.
func applyDotEnv(v *viper.Viper, values map[string]string) {
	for key, value := range values {
		name, ok := strings.CutPrefix(key, EnvPrefix+"_")
		if !ok || name == "" {
			continue
		}
		if _, set := os.LookupEnv(key); set {
			continue
		}
		v.Set(strings.ToLower(name), value)
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (got %q)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LambdaArchitecture maps the Go architecture to Lambda's name for it.
func (c *Config) LambdaArchitecture() string {
	if c.Architecture == "arm64" {
		return "arm64"
	}
	return "x86_64"
}

// StackProps returns the synthesis props the config describes.
func (c *Config) StackProps() infra.StackProps {
	return infra.StackProps{
		Description:  c.Description,
		StageName:    c.StageName,
		Architecture: c.LambdaArchitecture(),
	}
}

// Logger returns a logger at the configured level.
func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
