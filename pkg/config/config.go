package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix for environment variable overrides, e.g.
	// BUILDTIMES_INPUT_DATA_DIR overrides input.data_dir.
	EnvPrefix = "BUILDTIMES"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultDataDir is the default root of the org/repo/platform tree.
	DefaultDataDir = "data"

	// DefaultOverridesFile is the default failure classification file.
	DefaultOverridesFile = "failure_overrides.yaml"

	// DefaultOutputPath is where the dashboard document is written.
	DefaultOutputPath = "visualizations/dashboard_data.json"

	// DefaultMethod reads records from the local filesystem.
	DefaultMethod = "local"

	// DefaultServerPort is the first port the dashboard server tries.
	DefaultServerPort = 8000

	// DefaultRequestsPerMinute is the per-IP limit when rate limiting is on.
	DefaultRequestsPerMinute = 600

	// DefaultUploadConcurrency bounds parallel PutObject calls.
	DefaultUploadConcurrency = 4

	// DefaultS3Region is used when no region is configured.
	DefaultS3Region = "us-east-1"
)

// Config is the root configuration for buildtimes.
type Config struct {
	Global   GlobalConfig   `yaml:"global" mapstructure:"global"`
	Input    InputConfig    `yaml:"input" mapstructure:"input"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Publish  PublishConfig  `yaml:"publish" mapstructure:"publish"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// InputConfig describes where run records and overrides are read from.
type InputConfig struct {
	// Method is "local" (DataDir) or "s3" (S3 bucket/prefix).
	Method        string   `yaml:"method" mapstructure:"method"`
	DataDir       string   `yaml:"data_dir" mapstructure:"data_dir"`
	OverridesFile string   `yaml:"overrides_file" mapstructure:"overrides_file"`
	S3            S3Config `yaml:"s3,omitempty" mapstructure:"s3"`
}

// OutputConfig describes the generated dashboard document.
type OutputConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
	// Owner optionally chowns written files, formatted as "UID:GID".
	Owner          string            `yaml:"owner,omitempty" mapstructure:"owner"`
	PlatformColors map[string]string `yaml:"platform_colors,omitempty" mapstructure:"platform_colors"`
}

// ServerConfig contains the dashboard file server settings.
type ServerConfig struct {
	Host        string          `yaml:"host" mapstructure:"host"`
	Port        int             `yaml:"port" mapstructure:"port"`
	Dir         string          `yaml:"dir,omitempty" mapstructure:"dir"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	Metrics     bool            `yaml:"metrics" mapstructure:"metrics"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// PublishConfig configures where the dashboard directory is uploaded.
type PublishConfig struct {
	S3 S3Config `yaml:"s3,omitempty" mapstructure:"s3"`
}

// S3Config contains S3-compatible storage settings.
type S3Config struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
	StorageClass    string `yaml:"storage_class,omitempty" mapstructure:"storage_class"`
	ACL             string `yaml:"acl,omitempty" mapstructure:"acl"`
	Concurrency     int    `yaml:"concurrency,omitempty" mapstructure:"concurrency"`
}

// Load reads the given configuration files in order, merging later files
// over earlier ones, then applies BUILDTIMES_* environment overrides and
// defaults. With no paths, only defaults and environment are used.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	for _, path := range paths {
		if err := mergeFile(v, path); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func mergeFile(v *viper.Viper, path string) error {
	f, err := os.Open(path) //nolint:gosec // operator supplied path
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := v.MergeConfig(f); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return nil
}

// setDefaults registers every scalar key so that AutomaticEnv can
// override keys that are absent from the config files.
func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)

	v.SetDefault("input.method", DefaultMethod)
	v.SetDefault("input.data_dir", DefaultDataDir)
	v.SetDefault("input.overrides_file", DefaultOverridesFile)
	setS3Defaults(v, "input.s3")

	v.SetDefault("output.path", DefaultOutputPath)
	v.SetDefault("output.owner", "")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.dir", "")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.metrics", false)
	v.SetDefault("server.rate_limit.enabled", false)
	v.SetDefault("server.rate_limit.requests_per_minute", DefaultRequestsPerMinute)

	setS3Defaults(v, "publish.s3")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite.path", "buildtimes.db")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.database", "buildtimes")
	v.SetDefault("database.postgres.ssl_mode", "disable")
}

func setS3Defaults(v *viper.Viper, key string) {
	v.SetDefault(key+".enabled", false)
	v.SetDefault(key+".endpoint_url", "")
	v.SetDefault(key+".region", DefaultS3Region)
	v.SetDefault(key+".bucket", "")
	v.SetDefault(key+".prefix", "")
	v.SetDefault(key+".access_key_id", "")
	v.SetDefault(key+".secret_access_key", "")
	v.SetDefault(key+".force_path_style", false)
	v.SetDefault(key+".storage_class", "")
	v.SetDefault(key+".acl", "")
	v.SetDefault(key+".concurrency", DefaultUploadConcurrency)
}

// applyDefaults fills values that cannot be expressed as viper defaults
// or that an operator may have explicitly blanked.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Input.Method == "" {
		c.Input.Method = DefaultMethod
	}

	if c.Input.DataDir == "" {
		c.Input.DataDir = DefaultDataDir
	}

	if c.Output.Path == "" {
		c.Output.Path = DefaultOutputPath
	}

	if c.Output.PlatformColors == nil {
		c.Output.PlatformColors = make(map[string]string)
	}

	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}

	if c.Server.RateLimit.RequestsPerMinute <= 0 {
		c.Server.RateLimit.RequestsPerMinute = DefaultRequestsPerMinute
	}

	for _, s3 := range []*S3Config{&c.Input.S3, &c.Publish.S3} {
		if s3.Region == "" {
			s3.Region = DefaultS3Region
		}

		if s3.Concurrency <= 0 {
			s3.Concurrency = DefaultUploadConcurrency
		}
	}
}

// Validate checks the settings used by the generate pipeline.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Global.LogLevel); err != nil {
		return fmt.Errorf("global.log_level: %w", err)
	}

	switch c.Input.Method {
	case "local":
	case "s3":
		if !c.Input.S3.Enabled {
			return fmt.Errorf("input.method is s3 but input.s3.enabled is false")
		}

		if c.Input.S3.Bucket == "" {
			return fmt.Errorf("input.s3.bucket is required for method s3")
		}
	default:
		return fmt.Errorf(
			"input.method: unsupported method %q (use \"local\" or \"s3\")",
			c.Input.Method,
		)
	}

	return nil
}

// ValidateServer checks the dashboard server settings.
func (c *Config) ValidateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	return nil
}

// ValidatePublish checks the publish settings.
func (c *Config) ValidatePublish() error {
	if !c.Publish.S3.Enabled {
		return fmt.Errorf("publish.s3 is not enabled in config")
	}

	if c.Publish.S3.Bucket == "" {
		return fmt.Errorf("publish.s3.bucket is required")
	}

	return nil
}

// ServeDir returns the directory served by the dashboard server. It
// defaults to the directory holding the generated document.
func (c *Config) ServeDir() string {
	if c.Server.Dir != "" {
		return c.Server.Dir
	}

	return filepath.Dir(c.Output.Path)
}
