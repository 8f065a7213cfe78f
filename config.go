package tempora

import "time"

// Config consolidates every ambient setting the merge pipeline needs.
type Config struct {
	Database DatabaseConfig `json:"database"`
	Cache    CacheConfig    `json:"cache"`
	Planner  PlannerConfig  `json:"planner"`
	Logging  LoggingConfig  `json:"logging"`
	Metrics  MetricsConfig  `json:"metrics"`
	DuckDB   DuckDBConfig   `json:"duckdb"`
}

// DatabaseConfig contains target/source Postgres connection settings.
type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Database        string        `json:"database"`
	Username        string        `json:"username"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"sslMode"`
	UseIAMAuth      bool          `json:"useIamAuth"`
	MaxConnections  int           `json:"maxConnections"`
	MaxIdleConns    int           `json:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime"`
	Timeout         time.Duration `json:"timeout"`
}

// CacheConfig configures the two-level plan cache.
type CacheConfig struct {
	L2Table           string        `json:"l2Table"`
	L2MaxEntries      int           `json:"l2MaxEntries"`
	L2MaxAge          time.Duration `json:"l2MaxAge"`
	PurgeProbability  float64       `json:"purgeProbability"` // amortized purge chance per store
}

// PlannerConfig tunes the planner/entity-resolver cost heuristics.
type PlannerConfig struct {
	TargetSliceRowThreshold int  `json:"targetSliceRowThreshold"` // switch to DuckDB federated read above this row count
	EnableCoalescing        bool `json:"enableCoalescing"`
	StrictFeedback          bool `json:"strictFeedback"` // not read; Merge rejects any plan holding an ERROR op whatever its value
}

// LoggingConfig mirrors the teacher's zap-backed logging knobs.
type LoggingConfig struct {
	Level             string `json:"level"`
	Format            string `json:"format"`
	EnableStructured  bool   `json:"enableStructured"`
	LogPlans          bool   `json:"logPlans"`
	LogFeedback       bool   `json:"logFeedback"`
}

// MetricsConfig contains metrics/telemetry emission settings.
type MetricsConfig struct {
	Enabled            bool              `json:"enabled"`
	Provider           string            `json:"provider"`
	Namespace          string            `json:"namespace"`
	Labels             map[string]string `json:"labels"`
	CircuitBreakerWindow time.Duration   `json:"circuitBreakerWindow"`
	CircuitBreakerThreshold int          `json:"circuitBreakerThreshold"`
}

// DuckDBConfig configures the optional DuckDB-backed source ingestor/target
// federated reader.
type DuckDBConfig struct {
	Enabled        bool     `json:"enabled"`
	DBPath         string   `json:"dbPath"` // ":memory:" by default
	Extensions     []string `json:"extensions"`
	EnableS3       bool     `json:"enableS3"`
	EnableParquet  bool     `json:"enableParquet"`
	S3Region       string   `json:"s3Region"`
	S3Endpoint     string   `json:"s3Endpoint"`
	S3AccessKey    string   `json:"s3AccessKey"`
	S3SecretKey    string   `json:"s3SecretKey"`
	MaxConnections int      `json:"maxConnections"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			SSLMode:         "disable",
			MaxConnections:  25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			Timeout:         30 * time.Second,
		},
		Cache: CacheConfig{
			L2Table:          "temporal_merge_plan_cache",
			L2MaxEntries:     1000,
			L2MaxAge:         30 * 24 * time.Hour,
			PurgeProbability: 0.02,
		},
		Planner: PlannerConfig{
			TargetSliceRowThreshold: 5000,
			EnableCoalescing:        true,
			StrictFeedback:          true,
		},
		Logging: LoggingConfig{
			Level:            "info",
			Format:           "json",
			EnableStructured: true,
			LogPlans:         false,
			LogFeedback:      false,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			Provider:                "prometheus",
			Namespace:               "tempora",
			CircuitBreakerWindow:    30 * time.Second,
			CircuitBreakerThreshold: 5,
		},
		DuckDB: DuckDBConfig{
			Enabled:        false,
			DBPath:         ":memory:",
			Extensions:     []string{"httpfs", "parquet"},
			EnableS3:       true,
			EnableParquet:  true,
			MaxConnections: 1,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.MaxConnections <= 0 {
		return &ConfigError{Field: "database.maxConnections", Message: "must be greater than 0"}
	}
	if c.Cache.L2MaxEntries <= 0 {
		return &ConfigError{Field: "cache.l2MaxEntries", Message: "must be greater than 0"}
	}
	if c.Cache.PurgeProbability < 0 || c.Cache.PurgeProbability > 1 {
		return &ConfigError{Field: "cache.purgeProbability", Message: "must be between 0 and 1"}
	}
	if c.Planner.TargetSliceRowThreshold <= 0 {
		return &ConfigError{Field: "planner.targetSliceRowThreshold", Message: "must be greater than 0"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
