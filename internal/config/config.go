package config

import "time"

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Import    ImportConfig    `yaml:"import"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
	SRS       SRSConfig       `yaml:"srs"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// CORSConfig holds CORS settings. APP_ORIGINS is the env var named in spec §6.
type CORSConfig struct {
	AllowedOrigins   string `yaml:"allowed_origins"   env:"APP_ORIGINS"            env-default:"*"`
	AllowedMethods   string `yaml:"allowed_methods"   env:"CORS_ALLOWED_METHODS"   env-default:"GET,POST,DELETE,OPTIONS"`
	AllowedHeaders   string `yaml:"allowed_headers"   env:"CORS_ALLOWED_HEADERS"   env-default:"Content-Type"`
	AllowCredentials bool   `yaml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS" env-default:"false"`
	MaxAge           int    `yaml:"max_age"           env:"CORS_MAX_AGE"           env-default:"86400"`
}

// RateLimitConfig holds per-IP rate limiting settings for the public API.
type RateLimitConfig struct {
	Enabled         bool          `yaml:"enabled"          env:"RATE_LIMIT_ENABLED"          env-default:"false"`
	RequestsPerMin  int           `yaml:"requests_per_min" env:"RATE_LIMIT_PER_MIN"          env-default:"120"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"RATE_LIMIT_CLEANUP_INTERVAL" env-default:"5m"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	// RequestDeadline is the soft deadline §5 requires on read endpoints.
	RequestDeadline time.Duration `yaml:"request_deadline" env:"SERVER_REQUEST_DEADLINE" env-default:"5s"`
}

// DatabaseConfig holds the SQLite file location (§6: "a single relational
// database file under ./wordflow.db by default"; DATABASE_URL overrides the
// path).
type DatabaseConfig struct {
	Path         string        `yaml:"path"           env:"DATABASE_URL"           env-default:"./wordflow.db"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"   env:"DATABASE_BUSY_TIMEOUT"  env-default:"5s"`
	MaxOpenConns int           `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS" env-default:"1"`
}

// ImportConfig holds Importer/Parser tunables (§4.3).
type ImportConfig struct {
	// BatchSize is the row-streaming batch size Importer uses when calling
	// Store.BulkUpsertWords (§4.3 step 3).
	BatchSize int `yaml:"batch_size"             env:"IMPORT_BATCH_SIZE"        env-default:"100"`
	// TxBatchSize is the per-transaction ceiling for one
	// Store.BulkUpsertWords call. Validate rejects a BatchSize above it;
	// Store.BulkUpsertWords itself does not read it and commits whatever
	// batch it is given in one transaction.
	TxBatchSize int `yaml:"tx_batch_size"          env:"IMPORT_TX_BATCH_SIZE"     env-default:"500"`
	// MaxConcurrent is the process-wide semaphore size W (§4.3, §5).
	MaxConcurrent int `yaml:"max_concurrent"        env:"IMPORT_MAX_CONCURRENT"    env-default:"2"`
	// MaxReportedRowErrors caps how many row diagnostics an ImportJob keeps
	// (§4.3: "the first M (≈ 50) row errors").
	MaxReportedRowErrors int `yaml:"max_reported_row_errors" env:"IMPORT_MAX_ROW_ERRORS" env-default:"50"`
}

// SchedulerConfig holds Scheduler.NextQueue defaults (§4.5).
type SchedulerConfig struct {
	DefaultLimit    int `yaml:"default_limit"     env:"SCHEDULER_DEFAULT_LIMIT"     env-default:"30"`
	DefaultNewLimit int `yaml:"default_new_limit" env:"SCHEDULER_DEFAULT_NEW_LIMIT" env-default:"10"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// SRSConfig holds SM-2 spaced-repetition bounds (§4.6).
type SRSConfig struct {
	DefaultEase    float64 `yaml:"default_ease"   env:"SRS_DEFAULT_EASE"   env-default:"2.5"`
	MinEase        float64 `yaml:"min_ease"        env:"SRS_MIN_EASE"        env-default:"1.3"`
	MaxEase        float64 `yaml:"max_ease"        env:"SRS_MAX_EASE"        env-default:"3.5"`
	LeechThreshold int     `yaml:"leech_threshold" env:"SRS_LEECH_THRESHOLD" env-default:"8"`
}
