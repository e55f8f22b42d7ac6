package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	configPath := writeConfig(t, `
global:
  log_level: info
input:
  data_dir: ./original-data
  overrides_file: ./original-overrides.yaml
output:
  path: ./out/dashboard_data.json
server:
  port: 8000
publish:
  s3:
    enabled: false
    bucket: original-bucket
`)

	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "no env vars uses yaml values",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.Global.LogLevel)
				assert.Equal(t, "./original-data", cfg.Input.DataDir)
				assert.Equal(t, "./out/dashboard_data.json", cfg.Output.Path)
				assert.Equal(t, 8000, cfg.Server.Port)
			},
		},
		{
			name: "string override - log_level",
			envVars: map[string]string{
				"BUILDTIMES_GLOBAL_LOG_LEVEL": "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Global.LogLevel)
			},
		},
		{
			name: "string override - input.overrides_file",
			envVars: map[string]string{
				"BUILDTIMES_INPUT_OVERRIDES_FILE": "/etc/overrides.yaml",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/etc/overrides.yaml", cfg.Input.OverridesFile)
			},
		},
		{
			name: "int override - server.port",
			envVars: map[string]string{
				"BUILDTIMES_SERVER_PORT": "9100",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9100, cfg.Server.Port)
			},
		},
		{
			name: "boolean override - publish.s3.enabled",
			envVars: map[string]string{
				"BUILDTIMES_PUBLISH_S3_ENABLED": "true",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Publish.S3.Enabled)
				assert.Equal(t, "original-bucket", cfg.Publish.S3.Bucket)
			},
		},
		{
			name: "key absent from yaml - input.s3.bucket",
			envVars: map[string]string{
				"BUILDTIMES_INPUT_S3_BUCKET": "ci-timings",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "ci-timings", cfg.Input.S3.Bucket)
			},
		},
		{
			name: "nested override - server.rate_limit",
			envVars: map[string]string{
				"BUILDTIMES_SERVER_RATE_LIMIT_ENABLED":             "true",
				"BUILDTIMES_SERVER_RATE_LIMIT_REQUESTS_PER_MINUTE": "30",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Server.RateLimit.Enabled)
				assert.Equal(t, 30, cfg.Server.RateLimit.RequestsPerMinute)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load(configPath)
			require.NoError(t, err)

			tt.validate(t, cfg)
		})
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Global.LogLevel)
	assert.Equal(t, DefaultMethod, cfg.Input.Method)
	assert.Equal(t, DefaultDataDir, cfg.Input.DataDir)
	assert.Equal(t, DefaultOverridesFile, cfg.Input.OverridesFile)
	assert.Equal(t, DefaultOutputPath, cfg.Output.Path)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultS3Region, cfg.Publish.S3.Region)
	assert.Equal(t, DefaultUploadConcurrency, cfg.Publish.S3.Concurrency)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.NotNil(t, cfg.Output.PlatformColors)
	assert.Equal(t, "visualizations", cfg.ServeDir())
}

func TestLoad_MergesFilesInOrder(t *testing.T) {
	base := writeConfig(t, `
input:
  data_dir: ./base-data
server:
  port: 8000
  metrics: true
`)
	overlay := writeConfig(t, `
server:
  port: 8080
`)

	cfg, err := Load(base, overlay)
	require.NoError(t, err)

	assert.Equal(t, "./base-data", cfg.Input.DataDir)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Server.Metrics)
}

func TestLoad_PlatformColors(t *testing.T) {
	path := writeConfig(t, `
output:
  platform_colors:
    buildkite: "#123456"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "#123456", cfg.Output.PlatformColors["buildkite"])
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "global: [unterminated"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing config file")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(_ *Config) {},
		},
		{
			name:    "invalid log level",
			mutate:  func(cfg *Config) { cfg.Global.LogLevel = "loud" },
			wantErr: "global.log_level",
		},
		{
			name:    "unsupported method",
			mutate:  func(cfg *Config) { cfg.Input.Method = "ftp" },
			wantErr: "unsupported method",
		},
		{
			name:    "s3 method without s3 enabled",
			mutate:  func(cfg *Config) { cfg.Input.Method = "s3" },
			wantErr: "input.s3.enabled",
		},
		{
			name: "s3 method without bucket",
			mutate: func(cfg *Config) {
				cfg.Input.Method = "s3"
				cfg.Input.S3.Enabled = true
			},
			wantErr: "input.s3.bucket",
		},
		{
			name: "s3 method configured",
			mutate: func(cfg *Config) {
				cfg.Input.Method = "s3"
				cfg.Input.S3.Enabled = true
				cfg.Input.S3.Bucket = "ci"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateServerAndPublish(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.NoError(t, cfg.ValidateServer())

	cfg.Server.Port = 70000
	assert.Error(t, cfg.ValidateServer())

	assert.ErrorContains(t, cfg.ValidatePublish(), "not enabled")

	cfg.Publish.S3.Enabled = true
	assert.ErrorContains(t, cfg.ValidatePublish(), "bucket")

	cfg.Publish.S3.Bucket = "dashboards"
	assert.NoError(t, cfg.ValidatePublish())
}

func TestValidateDatabase(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.NoError(t, cfg.ValidateDatabase())

	cfg.Database.Driver = "mysql"
	assert.ErrorContains(t, cfg.ValidateDatabase(), "unsupported database driver")

	cfg.Database.Driver = "postgres"
	require.NoError(t, cfg.ValidateDatabase())
	assert.Equal(t,
		"host=localhost port=5432 user= password= dbname=buildtimes sslmode=disable",
		cfg.Database.Postgres.DSN(),
	)
}
