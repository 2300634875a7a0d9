// Package config loads hera's configuration from a YAML file, an optional
// .env file and HERA_* environment variables, in that order of precedence
// (environment wins).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hera-erp/hera/internal/model"
)

// Config is the complete hera configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Governance GovernanceConfig `yaml:"governance"`
	Graph      GraphConfig      `yaml:"graph"`
	Engine     EngineConfig     `yaml:"engine"`
	Tenancy    TenancyConfig    `yaml:"tenancy"`
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	// Path is the database file. ":memory:" keeps everything in process.
	Path string `yaml:"path"`
}

// GovernanceConfig tunes the smart code governor.
type GovernanceConfig struct {
	// DefaultLevel is the minimum validation level applied to every write (1-4).
	DefaultLevel int `yaml:"default_level"`
	// CacheSize bounds the number of cached validation reports. 0 disables the cache.
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	// ComplexityCeiling and MaxCodeLength are the performance-level limits.
	ComplexityCeiling int `yaml:"complexity_ceiling"`
	MaxCodeLength     int `yaml:"max_code_length"`
	// CatalogPath points at a CUE catalog. Empty uses the built-in catalog.
	CatalogPath string `yaml:"catalog_path"`
}

// GraphConfig bounds relationship traversal.
type GraphConfig struct {
	MaxDepth int `yaml:"max_depth"`
}

// EngineConfig tunes the engine façade.
type EngineConfig struct {
	MaxBatchItems int `yaml:"max_batch_items"`
}

// TenancyConfig names the system tenant.
type TenancyConfig struct {
	SystemOrganizationID string `yaml:"system_organization_id"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// MetricsNamespace prefixes every exported metric name.
	MetricsNamespace string `yaml:"metrics_namespace"`
}

// DefaultConfig returns a Config with working defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "hera.db"},
		Governance: GovernanceConfig{
			DefaultLevel:      1,
			CacheSize:         4096,
			CacheTTL:          10 * time.Minute,
			ComplexityCeiling: 150,
			MaxCodeLength:     128,
		},
		Graph:   GraphConfig{MaxDepth: 32},
		Engine:  EngineConfig{MaxBatchItems: 1000},
		Tenancy: TenancyConfig{SystemOrganizationID: model.SystemOrganizationID},
		Log:     LogConfig{Level: "info", Environment: "development"},
		Server:  ServerConfig{Addr: ":8080", MetricsNamespace: "hera"},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Governance.DefaultLevel < 1 || c.Governance.DefaultLevel > 4 {
		return fmt.Errorf("governance.default_level must be between 1 and 4, got %d", c.Governance.DefaultLevel)
	}
	if c.Governance.CacheSize < 0 {
		return fmt.Errorf("governance.cache_size must not be negative")
	}
	if c.Governance.CacheSize > 0 && c.Governance.CacheTTL <= 0 {
		return fmt.Errorf("governance.cache_ttl must be positive when the cache is enabled")
	}
	if c.Governance.ComplexityCeiling <= 0 {
		return fmt.Errorf("governance.complexity_ceiling must be positive")
	}
	if c.Governance.MaxCodeLength <= 0 {
		return fmt.Errorf("governance.max_code_length must be positive")
	}
	if c.Graph.MaxDepth <= 0 {
		return fmt.Errorf("graph.max_depth must be positive")
	}
	if c.Engine.MaxBatchItems <= 0 {
		return fmt.Errorf("engine.max_batch_items must be positive")
	}
	if c.Tenancy.SystemOrganizationID == "" {
		return fmt.Errorf("tenancy.system_organization_id is required")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// Load builds the effective configuration. path may be empty, in which
// case only defaults and the environment apply. A .env file in the working
// directory is read when present.
func Load(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	// .env is optional
	_ = godotenv.Load()
	config.Merge(FromEnv())

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// FromEnv reads HERA_* variables into a sparse Config suitable for Merge.
// Unset variables leave zero values.
func FromEnv() *Config {
	return &Config{
		Database: DatabaseConfig{Path: getEnv("HERA_DATABASE_PATH", "")},
		Governance: GovernanceConfig{
			DefaultLevel:      getEnvAsInt("HERA_GOVERNANCE_DEFAULT_LEVEL", 0),
			CacheSize:         getEnvAsInt("HERA_GOVERNANCE_CACHE_SIZE", 0),
			CacheTTL:          getEnvAsDuration("HERA_GOVERNANCE_CACHE_TTL", 0),
			ComplexityCeiling: getEnvAsInt("HERA_GOVERNANCE_COMPLEXITY_CEILING", 0),
			MaxCodeLength:     getEnvAsInt("HERA_GOVERNANCE_MAX_CODE_LENGTH", 0),
			CatalogPath:       getEnv("HERA_GOVERNANCE_CATALOG_PATH", ""),
		},
		Graph:   GraphConfig{MaxDepth: getEnvAsInt("HERA_GRAPH_MAX_DEPTH", 0)},
		Engine:  EngineConfig{MaxBatchItems: getEnvAsInt("HERA_ENGINE_MAX_BATCH_ITEMS", 0)},
		Tenancy: TenancyConfig{SystemOrganizationID: getEnv("HERA_TENANCY_SYSTEM_ORGANIZATION_ID", "")},
		Log: LogConfig{
			Level:       getEnv("HERA_LOG_LEVEL", ""),
			Environment: getEnv("HERA_LOG_ENVIRONMENT", ""),
		},
		Server: ServerConfig{
			Addr:             getEnv("HERA_SERVER_ADDR", ""),
			MetricsNamespace: getEnv("HERA_SERVER_METRICS_NAMESPACE", ""),
		},
	}
}

// SaveToFile writes the configuration as YAML, creating parent directories.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Merge copies the non-zero values of other into c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Database.Path != "" {
		c.Database.Path = other.Database.Path
	}

	g := other.Governance
	if g.DefaultLevel != 0 {
		c.Governance.DefaultLevel = g.DefaultLevel
	}
	if g.CacheSize != 0 {
		c.Governance.CacheSize = g.CacheSize
	}
	if g.CacheTTL != 0 {
		c.Governance.CacheTTL = g.CacheTTL
	}
	if g.ComplexityCeiling != 0 {
		c.Governance.ComplexityCeiling = g.ComplexityCeiling
	}
	if g.MaxCodeLength != 0 {
		c.Governance.MaxCodeLength = g.MaxCodeLength
	}
	if g.CatalogPath != "" {
		c.Governance.CatalogPath = g.CatalogPath
	}

	if other.Graph.MaxDepth != 0 {
		c.Graph.MaxDepth = other.Graph.MaxDepth
	}
	if other.Engine.MaxBatchItems != 0 {
		c.Engine.MaxBatchItems = other.Engine.MaxBatchItems
	}
	if other.Tenancy.SystemOrganizationID != "" {
		c.Tenancy.SystemOrganizationID = other.Tenancy.SystemOrganizationID
	}
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Environment != "" {
		c.Log.Environment = other.Log.Environment
	}
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.MetricsNamespace != "" {
		c.Server.MetricsNamespace = other.Server.MetricsNamespace
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
