package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (remote roster store)
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External financial-data provider
	Provider ProviderConfig

	// Persistent profile cache
	Cache CacheConfig

	// Bulk sync orchestrator
	Sync SyncConfig

	// Remote change feed
	Realtime RealtimeConfig

	// Sanitizer guardrails
	Valuation ValuationConfig

	// Outlier plausibility bounds
	Outlier OutlierConfig

	// Optional YAML file overriding Valuation and Outlier
	StrategyFile string

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   LogFileConfig

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// Roster table
	RosterTable string
}

// ProviderConfig holds Financial Modeling Prep API configuration.
// An empty APIKey is allowed at load time and reported on first fetch.
type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	MaxYears   int
}

// CacheConfig holds persistent cache configuration
type CacheConfig struct {
	Backend    string // redis, sqlite, memory
	Key        string
	TTL        time.Duration
	SQLitePath string
}

// SyncConfig holds bulk sync configuration
type SyncConfig struct {
	BatchSize         int
	TargetedBatchSize int
	BatchDelay        time.Duration
	FetchTimeout      time.Duration
	Schedule          string // cron expression for the nightly portfolio sync, empty disables
	MaxReportedErrors int

	PreserveExclusions  bool
	RecalculateOutliers bool
	UpdateCurrentPrice  bool
	SyncInfo            bool
	OnlyNewYears        bool
}

// RealtimeConfig holds remote change feed configuration
type RealtimeConfig struct {
	Mode           string // postgres, websocket, off
	Channel        string
	URL            string
	Table          string
	Debounce       time.Duration
	RosterSchedule string // cron expression for periodic roster refresh, empty disables
}

// ValuationConfig holds the sanitizer bounds and the zero-value policy
type ValuationConfig struct {
	GrowthMin         float64
	GrowthMax         float64
	PEMin             float64
	PEMax             float64
	PCFMin            float64
	PCFMax            float64
	PBVMin            float64
	PBVMax            float64
	YieldMin          float64
	YieldMax          float64
	RequiredReturnMin float64
	RequiredReturnMax float64
	PayoutMin         float64
	PayoutMax         float64
	ZeroPolicy        string // unset, explicit
}

// OutlierConfig holds the outlier detector plausibility bounds
type OutlierConfig struct {
	HorizonYears int
	RatioMin     float64
	RatioMax     float64
	PEMin        float64
	PEMax        float64
	PCFMin       float64
	PCFMax       float64
	PBVMin       float64
	PBVMax       float64
	YieldMin     float64
	YieldMax     float64
	GrowthMin    float64
	GrowthMax    float64
}

// LogFileConfig enables a rotating file sink when Path is set
type LogFileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads configuration from environment variables
// SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "finance_pro"),
			User:            getEnv("DB_USER", "finance_pro"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
			RosterTable:     getEnv("ROSTER_TABLE", "tickers"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		Provider: ProviderConfig{
			APIKey:     getEnv("FMP_API_KEY", ""),
			BaseURL:    getEnv("FMP_BASE_URL", "https://financialmodelingprep.com/api/v3"),
			Timeout:    getEnvAsDuration("FMP_TIMEOUT", "30s"),
			RatePerSec: getEnvAsFloat("FMP_RATE_PER_SEC", 5),
			Burst:      getEnvAsInt("FMP_BURST", 5),
			MaxYears:   getEnvAsInt("FMP_MAX_YEARS", 15),
		},

		Cache: CacheConfig{
			Backend:    getEnv("CACHE_BACKEND", "redis"),
			Key:        getEnv("CACHE_KEY", "finance_pro_profiles"),
			TTL:        getEnvAsDuration("CACHE_TTL", "5m"),
			SQLitePath: getEnv("CACHE_SQLITE_PATH", "finance_pro_cache.db"),
		},

		Sync: SyncConfig{
			BatchSize:         getEnvAsInt("SYNC_BATCH_SIZE", 5),
			TargetedBatchSize: getEnvAsInt("SYNC_TARGETED_BATCH_SIZE", 2),
			BatchDelay:        getEnvAsDuration("SYNC_BATCH_DELAY", "500ms"),
			FetchTimeout:      getEnvAsDuration("SYNC_FETCH_TIMEOUT", "30s"),
			Schedule:          getEnv("SYNC_SCHEDULE", ""),
			MaxReportedErrors: getEnvAsInt("SYNC_MAX_REPORTED_ERRORS", 3),

			PreserveExclusions:  getEnvAsBool("SYNC_PRESERVE_EXCLUSIONS", true),
			RecalculateOutliers: getEnvAsBool("SYNC_RECALCULATE_OUTLIERS", true),
			UpdateCurrentPrice:  getEnvAsBool("SYNC_UPDATE_CURRENT_PRICE", true),
			SyncInfo:            getEnvAsBool("SYNC_INFO", true),
			OnlyNewYears:        getEnvAsBool("SYNC_ONLY_NEW_YEARS", false),
		},

		Realtime: RealtimeConfig{
			Mode:           getEnv("REALTIME_MODE", "postgres"),
			Channel:        getEnv("REALTIME_CHANNEL", "tickers_changes"),
			URL:            getEnv("REALTIME_URL", ""),
			Table:          getEnv("REALTIME_TABLE", "tickers"),
			Debounce:       getEnvAsDuration("REALTIME_DEBOUNCE", "400ms"),
			RosterSchedule: getEnv("ROSTER_SCHEDULE", ""),
		},

		Valuation: ValuationConfig{
			GrowthMin:         getEnvAsFloat("VALUATION_GROWTH_MIN", -20),
			GrowthMax:         getEnvAsFloat("VALUATION_GROWTH_MAX", 20),
			PEMin:             getEnvAsFloat("VALUATION_PE_MIN", 5),
			PEMax:             getEnvAsFloat("VALUATION_PE_MAX", 50),
			PCFMin:            getEnvAsFloat("VALUATION_PCF_MIN", 3),
			PCFMax:            getEnvAsFloat("VALUATION_PCF_MAX", 50),
			PBVMin:            getEnvAsFloat("VALUATION_PBV_MIN", 0.5),
			PBVMax:            getEnvAsFloat("VALUATION_PBV_MAX", 10),
			YieldMin:          getEnvAsFloat("VALUATION_YIELD_MIN", 0),
			YieldMax:          getEnvAsFloat("VALUATION_YIELD_MAX", 15),
			RequiredReturnMin: getEnvAsFloat("VALUATION_REQUIRED_RETURN_MIN", 5),
			RequiredReturnMax: getEnvAsFloat("VALUATION_REQUIRED_RETURN_MAX", 25),
			PayoutMin:         getEnvAsFloat("VALUATION_PAYOUT_MIN", 0),
			PayoutMax:         getEnvAsFloat("VALUATION_PAYOUT_MAX", 100),
			ZeroPolicy:        getEnv("ZERO_ASSUMPTION_POLICY", "unset"),
		},

		Outlier: OutlierConfig{
			HorizonYears: getEnvAsInt("OUTLIER_HORIZON_YEARS", 5),
			RatioMin:     getEnvAsFloat("OUTLIER_RATIO_MIN", 0.1),
			RatioMax:     getEnvAsFloat("OUTLIER_RATIO_MAX", 10),
			PEMin:        getEnvAsFloat("OUTLIER_PE_MIN", 1),
			PEMax:        getEnvAsFloat("OUTLIER_PE_MAX", 200),
			PCFMin:       getEnvAsFloat("OUTLIER_PCF_MIN", 1),
			PCFMax:       getEnvAsFloat("OUTLIER_PCF_MAX", 200),
			PBVMin:       getEnvAsFloat("OUTLIER_PBV_MIN", 0.1),
			PBVMax:       getEnvAsFloat("OUTLIER_PBV_MAX", 50),
			YieldMin:     getEnvAsFloat("OUTLIER_YIELD_MIN", 0),
			YieldMax:     getEnvAsFloat("OUTLIER_YIELD_MAX", 50),
			GrowthMin:    getEnvAsFloat("OUTLIER_GROWTH_MIN", -50),
			GrowthMax:    getEnvAsFloat("OUTLIER_GROWTH_MAX", 100),
		},

		StrategyFile: getEnv("STRATEGY_FILE", ""),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogFile: LogFileConfig{
			Path:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 14),
		},

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Cache.Backend {
	case "redis", "sqlite", "memory":
	default:
		return fmt.Errorf("CACHE_BACKEND must be one of: redis, sqlite, memory")
	}

	switch c.Realtime.Mode {
	case "postgres", "websocket", "off":
	default:
		return fmt.Errorf("REALTIME_MODE must be one of: postgres, websocket, off")
	}
	if c.Realtime.Mode == "websocket" && c.Realtime.URL == "" {
		return fmt.Errorf("REALTIME_URL is required when REALTIME_MODE=websocket")
	}

	if c.Sync.BatchSize < 1 || c.Sync.TargetedBatchSize < 1 {
		return fmt.Errorf("SYNC_BATCH_SIZE and SYNC_TARGETED_BATCH_SIZE must be >= 1")
	}

	if c.Valuation.ZeroPolicy != "unset" && c.Valuation.ZeroPolicy != "explicit" {
		return fmt.Errorf("ZERO_ASSUMPTION_POLICY must be one of: unset, explicit")
	}

	v := c.Valuation
	ranges := map[string][2]float64{
		"VALUATION_GROWTH":          {v.GrowthMin, v.GrowthMax},
		"VALUATION_PE":              {v.PEMin, v.PEMax},
		"VALUATION_PCF":             {v.PCFMin, v.PCFMax},
		"VALUATION_PBV":             {v.PBVMin, v.PBVMax},
		"VALUATION_YIELD":           {v.YieldMin, v.YieldMax},
		"VALUATION_REQUIRED_RETURN": {v.RequiredReturnMin, v.RequiredReturnMax},
		"VALUATION_PAYOUT":          {v.PayoutMin, v.PayoutMax},
		"OUTLIER_RATIO":             {c.Outlier.RatioMin, c.Outlier.RatioMax},
	}
	for name, r := range ranges {
		if r[0] > r[1] {
			return fmt.Errorf("%s_MIN must not exceed %s_MAX", name, name)
		}
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
