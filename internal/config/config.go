// Package config provides configuration management for the flavor search
// service.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/optscale/flavorsearch/internal/cloud"
)

// Config represents the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Cache     CacheConfig     `yaml:"cache"`
	Workers   WorkersConfig   `yaml:"workers"`
	Clouds    CloudsConfig    `yaml:"clouds"`
	Migration MigrationConfig `yaml:"migration"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address      string   `yaml:"address"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// CacheConfig contains SKU cache settings.
type CacheConfig struct {
	DataDir string `yaml:"data_dir"`
}

// WorkersConfig bounds the per-request parallelism.
type WorkersConfig struct {
	PoolSize int      `yaml:"pool_size"`
	MemoTTL  Duration `yaml:"memo_ttl"`
}

// CloudsConfig holds the per-cloud credentials and endpoints.
type CloudsConfig struct {
	AWS     AWSConfig     `yaml:"aws"`
	Azure   AzureConfig   `yaml:"azure"`
	Alibaba AlibabaConfig `yaml:"alibaba"`
	GCP     GCPConfig     `yaml:"gcp"`
	Nebius  NebiusConfig  `yaml:"nebius"`

	HTTPTimeout Duration `yaml:"http_timeout"`
}

// AWSConfig contains AWS credentials.
type AWSConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// AzureConfig contains Azure credentials.
type AzureConfig struct {
	SubscriptionID string `yaml:"subscription_id"`
	TenantID       string `yaml:"tenant_id"`
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
}

// AlibabaConfig contains Alibaba Cloud credentials.
type AlibabaConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`
}

// GCPConfig contains GCP credentials.
type GCPConfig struct {
	Project         string `yaml:"project"`
	CredentialsJSON string `yaml:"credentials_json"`
}

// NebiusConfig contains Nebius settings.
type NebiusConfig struct {
	Endpoint string `yaml:"endpoint"`
	IAMToken string `yaml:"iam_token"`
}

// MigrationConfig contains recommendation engine settings.
type MigrationConfig struct {
	ExcludedPools []string `yaml:"excluded_pools"`
}

// MetricsConfig contains metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      "0.0.0.0:8080",
			ReadTimeout:  Duration(30 * time.Second),
			WriteTimeout: Duration(120 * time.Second),
		},
		Cache: CacheConfig{
			DataDir: "./data",
		},
		Workers: WorkersConfig{
			PoolSize: 10,
			MemoTTL:  Duration(5 * time.Minute),
		},
		Clouds: CloudsConfig{
			AWS:         AWSConfig{Region: "us-east-1"},
			Alibaba:     AlibabaConfig{Region: "cn-hangzhou"},
			HTTPTimeout: Duration(30 * time.Second),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FLAVORSEARCH_ADDRESS"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("FLAVORSEARCH_DATA_DIR"); v != "" {
		c.Cache.DataDir = v
	}
	if v := os.Getenv("FLAVORSEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FLAVORSEARCH_AWS_ACCESS_KEY_ID"); v != "" {
		c.Clouds.AWS.AccessKeyID = v
	}
	if v := os.Getenv("FLAVORSEARCH_AWS_SECRET_ACCESS_KEY"); v != "" {
		c.Clouds.AWS.SecretAccessKey = v
	}
	if v := os.Getenv("FLAVORSEARCH_AZURE_CLIENT_SECRET"); v != "" {
		c.Clouds.Azure.ClientSecret = v
	}
	if v := os.Getenv("FLAVORSEARCH_ALIBABA_ACCESS_KEY_SECRET"); v != "" {
		c.Clouds.Alibaba.AccessKeySecret = v
	}
	if v := os.Getenv("FLAVORSEARCH_EXCLUDED_POOLS"); v != "" {
		c.Migration.ExcludedPools = strings.Split(v, ",")
	}
}

// CloudConfig maps the YAML configuration onto the cloud client settings.
func (c *Config) CloudConfig() *cloud.Config {
	return &cloud.Config{
		AWSRegion:              c.Clouds.AWS.Region,
		AWSAccessKeyID:         c.Clouds.AWS.AccessKeyID,
		AWSSecretAccessKey:     c.Clouds.AWS.SecretAccessKey,
		AzureSubscriptionID:    c.Clouds.Azure.SubscriptionID,
		AzureTenantID:          c.Clouds.Azure.TenantID,
		AzureClientID:          c.Clouds.Azure.ClientID,
		AzureClientSecret:      c.Clouds.Azure.ClientSecret,
		AlibabaRegion:          c.Clouds.Alibaba.Region,
		AlibabaAccessKeyID:     c.Clouds.Alibaba.AccessKeyID,
		AlibabaAccessKeySecret: c.Clouds.Alibaba.AccessKeySecret,
		GCPProject:             c.Clouds.GCP.Project,
		GCPCredentialsJSON:     c.Clouds.GCP.CredentialsJSON,
		NebiusEndpoint:         c.Clouds.Nebius.Endpoint,
		NebiusIAMToken:         c.Clouds.Nebius.IAMToken,
		HTTPTimeout:            c.Clouds.HTTPTimeout.Duration(),
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if c.Cache.DataDir == "" {
		return fmt.Errorf("cache.data_dir is required")
	}
	if c.Workers.PoolSize <= 0 {
		return fmt.Errorf("workers.pool_size must be positive")
	}
	if c.Workers.MemoTTL <= 0 {
		return fmt.Errorf("workers.memo_ttl must be positive")
	}
	return nil
}
