// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lsst-sqre/vo-siav2/domain/collection"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Service      ServiceConfig      `yaml:"service"`
	Backend      string             `yaml:"backend"`
	Collections  []CollectionConfig `yaml:"collections"`
	Remote       RemoteConfig       `yaml:"remote"`
	Availability AvailabilityConfig `yaml:"availability"`
	Storage      StorageConfig      `yaml:"storage"`
	Logging      LoggingConfig      `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	OpenAPI      OpenAPIConfig      `yaml:"openapi"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ServiceConfig names the service and where its endpoints are mounted.
type ServiceConfig struct {
	Name       string `yaml:"name"`
	PathPrefix string `yaml:"path_prefix"`
}

// CollectionConfig configures one data collection.
type CollectionConfig struct {
	Name              string `yaml:"name" json:"name"`
	Label             string `yaml:"label" json:"label"`
	Config            string `yaml:"config" json:"config"`
	Repository        string `yaml:"repository" json:"repository"`
	Backend           string `yaml:"backend,omitempty" json:"backend,omitempty"` // falls back to the top-level backend
	DefaultInstrument string `yaml:"default_instrument" json:"default_instrument"`
	Default           bool   `yaml:"default" json:"default"`
	DatalinkURL       string `yaml:"datalink_url,omitempty" json:"datalink_url,omitempty"`
}

// RemoteConfig configures clients of remote repositories.
type RemoteConfig struct {
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// AvailabilityConfig configures repository probes.
type AvailabilityConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// StorageConfig configures object storage for export configs.
type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config configures an S3-compatible endpoint. Leave Endpoint empty to
// disable s3:// locations.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// OpenAPIConfig configures OpenAPI/Swagger documentation.
type OpenAPIConfig struct {
	Enabled bool `yaml:"enabled"` // Enable OpenAPI endpoints
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// This is useful for container deployments where no config file is needed.
//
// Environment variables:
//
//	SIA_DATA_COLLECTIONS    - Collections as a JSON or YAML list (required)
//	SIA_BACKEND             - Default backend: direct or remote (default: remote)
//	SIA_NAME                - Service name (default: sia)
//	SIA_PATH_PREFIX         - URL prefix (default: /api/sia)
//	SIA_SERVER_HOST         - Server host (default: 0.0.0.0)
//	SIA_SERVER_PORT         - Server port (default: 8080)
//	SIA_REMOTE_TIMEOUT      - Remote repository timeout (default: 60s)
//	SIA_AVAILABILITY_TIMEOUT - Availability probe timeout (default: 10s)
//	SIA_S3_ENDPOINT         - S3 endpoint for s3:// export configs
//	SIA_S3_ACCESS_KEY       - S3 access key
//	SIA_S3_SECRET_KEY       - S3 secret key
//	SIA_LOG_LEVEL           - Log level: debug, info, warn, error (default: info)
//	SIA_LOG_FORMAT          - Log format: json or console (default: json)
//	SIA_METRICS_ENABLED     - Enable /metrics endpoint
//	SIA_OPENAPI_ENABLED     - Enable OpenAPI/Swagger
func LoadFromEnv() (*Config, error) {
	var cfg Config

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if HasEnvConfig() {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set SIA_DATA_COLLECTIONS")
}

// HasEnvConfig returns true if essential environment variables are set.
func HasEnvConfig() bool {
	return os.Getenv("SIA_DATA_COLLECTIONS") != ""
}

// DataCollections converts the configured collections to registry values.
// Collections without a backend inherit the top-level one. It assumes the
// configuration has been validated.
func (c *Config) DataCollections() ([]collection.DataCollection, error) {
	out := make([]collection.DataCollection, 0, len(c.Collections))
	for i, cc := range c.Collections {
		kind, err := c.backendOf(cc)
		if err != nil {
			return nil, fmt.Errorf("collections[%d].backend: %w", i, err)
		}
		out = append(out, collection.DataCollection{
			Name:              cc.Name,
			Label:             cc.Label,
			Config:            cc.Config,
			Repository:        cc.Repository,
			Backend:           kind,
			DefaultInstrument: cc.DefaultInstrument,
			Default:           cc.Default,
			DatalinkURL:       cc.DatalinkURL,
		})
	}
	return out, nil
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) backendOf(cc CollectionConfig) (collection.BackendKind, error) {
	raw := cc.Backend
	if raw == "" {
		raw = c.Backend
	}
	return collection.BackendKinds.Resolve(raw)
}

// applyEnvOverrides applies SIA_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) error {
	// Server configuration
	if v := os.Getenv("SIA_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SIA_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SIA_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("SIA_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Service configuration
	if v := os.Getenv("SIA_NAME"); v != "" {
		cfg.Service.Name = v
	}
	if v := os.Getenv("SIA_PATH_PREFIX"); v != "" {
		cfg.Service.PathPrefix = v
	}
	if v := os.Getenv("SIA_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("SIA_DATA_COLLECTIONS"); v != "" {
		var collections []CollectionConfig
		// JSON is a subset of YAML, so both list forms decode here.
		if err := yaml.Unmarshal([]byte(v), &collections); err != nil {
			return fmt.Errorf("parse SIA_DATA_COLLECTIONS: %w", err)
		}
		cfg.Collections = collections
	}

	// Repository clients
	if v := os.Getenv("SIA_REMOTE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Remote.Timeout = d
		}
	}
	if v := os.Getenv("SIA_AVAILABILITY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Availability.Timeout = d
		}
	}

	// Storage configuration
	if v := os.Getenv("SIA_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("SIA_S3_ACCESS_KEY"); v != "" {
		cfg.Storage.S3.AccessKey = v
	}
	if v := os.Getenv("SIA_S3_SECRET_KEY"); v != "" {
		cfg.Storage.S3.SecretKey = v
	}
	if v := os.Getenv("SIA_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("SIA_S3_USE_SSL"); v != "" {
		cfg.Storage.S3.UseSSL = parseBool(v)
	}

	// Logging configuration
	if v := os.Getenv("SIA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SIA_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("SIA_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("SIA_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	// OpenAPI configuration
	if v := os.Getenv("SIA_OPENAPI_ENABLED"); v != "" {
		cfg.OpenAPI.Enabled = parseBool(v)
	}
	return nil
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 120 * time.Second
	}

	if cfg.Service.Name == "" {
		cfg.Service.Name = "sia"
	}
	if cfg.Service.PathPrefix == "" {
		cfg.Service.PathPrefix = "/api/sia"
	}
	cfg.Service.PathPrefix = "/" + strings.Trim(cfg.Service.PathPrefix, "/")

	if cfg.Backend == "" {
		cfg.Backend = "remote"
	}

	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = 60 * time.Second
	}
	if cfg.Availability.Timeout == 0 {
		cfg.Availability.Timeout = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if _, err := collection.BackendKinds.Resolve(cfg.Backend); err != nil {
		return fmt.Errorf("backend: %w", err)
	}

	if len(cfg.Collections) == 0 {
		return fmt.Errorf("at least one collection is required")
	}

	names := make(map[string]bool, len(cfg.Collections))
	labels := make(map[string]bool, len(cfg.Collections))
	for i, c := range cfg.Collections {
		if c.Name == "" {
			return fmt.Errorf("collections[%d].name is required", i)
		}
		if c.Config == "" {
			return fmt.Errorf("collections[%d].config is required", i)
		}
		if names[c.Name] {
			return fmt.Errorf("collections[%d].name %q is duplicated", i, c.Name)
		}
		names[c.Name] = true
		if c.Label != "" {
			if labels[c.Label] {
				return fmt.Errorf("collections[%d].label %q is duplicated", i, c.Label)
			}
			labels[c.Label] = true
		}
		if _, err := cfg.backendOf(c); err != nil {
			return fmt.Errorf("collections[%d].backend: %w", i, err)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	return nil
}
