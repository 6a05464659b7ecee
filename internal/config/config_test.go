package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noDotEnv(t *testing.T) Options {
	return Options{DotEnv: filepath.Join(t.TempDir(), "missing.env")}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(noDotEnv(t))
	require.NoError(t, err)

	assert.Equal(t, "HelloStack", cfg.StackName)
	assert.Equal(t, "prod", cfg.StageName)
	assert.Equal(t, "amd64", cfg.Architecture)
	assert.Equal(t, "x86_64", cfg.LambdaArchitecture())
	assert.Equal(t, "hello", cfg.CodePrefix)
	assert.Equal(t, "127.0.0.1:3000", cfg.ServeAddr)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeFile(t, "hellostack.yaml", `
stack_name: Demo
stage_name: dev
architecture: arm64
code_bucket: artifacts
`)
	t.Setenv("HELLOSTACK_STAGE_NAME", "staging")
	t.Setenv("HELLOSTACK_LOG_LEVEL", "debug")

	opts := noDotEnv(t)
	opts.File = path
	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, "Demo", cfg.StackName)
	assert.Equal(t, "staging", cfg.StageName)
	assert.Equal(t, "artifacts", cfg.CodeBucket)
	assert.Equal(t, "arm64", cfg.LambdaArchitecture())
	assert.Equal(t, logrus.DebugLevel, cfg.Logger().GetLevel())

	props := cfg.StackProps()
	assert.Equal(t, "staging", props.StageName)
	assert.Equal(t, "arm64", props.Architecture)
}

func TestLoad_DefaultFileInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte("stack_name: FromCwd\n"), 0o644))
	t.Chdir(dir)

	cfg, err := Load(noDotEnv(t))
	require.NoError(t, err)
	assert.Equal(t, "FromCwd", cfg.StackName)
}

func TestLoad_DotEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	dotenv := writeFile(t, ".env", "HELLOSTACK_CODE_BUCKET=from-dotenv\n")

	cfg, err := Load(Options{DotEnv: dotenv})
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.CodeBucket)
	_, leaked := os.LookupEnv("HELLOSTACK_CODE_BUCKET")
	assert.False(t, leaked)
}

func TestLoad_DotEnvReload(t *testing.T) {
	t.Chdir(t.TempDir())
	dotenv := writeFile(t, ".env", "HELLOSTACK_STAGE_NAME=dev\n")

	cfg, err := Load(Options{DotEnv: dotenv})
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.StageName)

	require.NoError(t, os.WriteFile(dotenv, []byte("HELLOSTACK_STAGE_NAME=staging\n"), 0o644))

	cfg, err = Load(Options{DotEnv: dotenv})
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.StageName)
}

func TestLoad_DotEnvPrecedence(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile(DefaultFile, []byte("stage_name: fromfile\ncode_prefix: fromfile\n"), 0o644))
	dotenv := writeFile(t, ".env", "HELLOSTACK_STAGE_NAME=fromdotenv\nHELLOSTACK_CODE_PREFIX=fromdotenv\nOTHER=ignored\n")
	t.Setenv("HELLOSTACK_STAGE_NAME", "fromenv")

	cfg, err := Load(Options{DotEnv: dotenv})
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.StageName)
	assert.Equal(t, "fromdotenv", cfg.CodePrefix)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	opts := noDotEnv(t)
	opts.File = filepath.Join(t.TempDir(), "nope.yaml")

	_, err := Load(opts)
	assert.ErrorContains(t, err, "nope.yaml")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			StackName:    "HelloStack",
			StageName:    "prod",
			Architecture: "amd64",
			LogLevel:     "info",
			ServeAddr:    "localhost:3000",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"stage with dash", func(c *Config) { c.StageName = "my-stage" }, "StageName"},
		{"empty stage", func(c *Config) { c.StageName = "" }, "StageName"},
		{"bad architecture", func(c *Config) { c.Architecture = "x86_64" }, "Architecture"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LogLevel"},
		{"empty stack", func(c *Config) { c.StackName = "" }, "StackName"},
		{"bad addr", func(c *Config) { c.ServeAddr = "localhost" }, "ServeAddr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
