package configs

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Email    EmailConfig
	Redis    RedisConfig
	Log      LogConfig
	Quota    QuotaConfig
	PNCP     PNCPConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TLSCertFile  string
	TLSKeyFile   string
	// TrustProxyHeaders enables client IP resolution from CF-Connecting-IP,
	// X-Real-IP and X-Forwarded-For. Only turn on behind a trusted proxy.
	TrustProxyHeaders bool
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	DSN      string
	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type JWTConfig struct {
	Secret string
}

type EmailConfig struct {
	Enabled        bool
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	CompanyName    string
	UpgradeURL     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	// Pool and timeout settings
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
	IdleTimeout  time.Duration
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

// QuotaConfig drives the daily consultation limits.
type QuotaConfig struct {
	AnonymousDailyLimit int
	FreeDailyLimit      int
	PremiumDailyLimit   int
	Window              time.Duration
	// FailOpen lets requests through when the counter store is down.
	FailOpen        bool
	StoreTimeout    time.Duration
	PurgeInterval   time.Duration
	PurgeMaxAge     time.Duration
	UsageRetention  time.Duration
	CacheUserTTL    time.Duration
	CacheDetalheTTL time.Duration
}

// PNCPConfig drives the import of published tenders.
type PNCPConfig struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	PageSize     int
	SyncInterval time.Duration
	SyncLookback time.Duration
	SyncEnabled  bool
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:              getEnv("SERVER_HOST", "0.0.0.0"),
			Port:              getEnv("SERVER_PORT", "8080"),
			ReadTimeout:       getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			TLSCertFile:       getEnv("TLS_CERT_FILE", ""),
			TLSKeyFile:        getEnv("TLS_KEY_FILE", ""),
			TrustProxyHeaders: getBoolEnv("TRUST_PROXY_HEADERS", true),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "licitafacil"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		JWT: JWTConfig{
			Secret: getEnvRequired("JWT_SECRET"),
		},
		Email: EmailConfig{
			Enabled:        getBoolEnv("EMAIL_ENABLED", false),
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			FromEmail:      getEnv("FROM_EMAIL", "noreply@licitafacil.com.br"),
			FromName:       getEnv("FROM_NAME", "LicitaFácil"),
			CompanyName:    getEnv("COMPANY_NAME", "LicitaFácil"),
			UpgradeURL:     getEnv("UPGRADE_URL", "https://licitafacil.com.br/planos"),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:  getDurationEnv("REDIS_POOL_TIMEOUT", 4*time.Second),
			IdleTimeout:  getDurationEnv("REDIS_IDLE_TIMEOUT", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Quota: QuotaConfig{
			AnonymousDailyLimit: getIntEnv("QUOTA_ANONYMOUS_DAILY", 5),
			FreeDailyLimit:      getIntEnv("QUOTA_FREE_DAILY", 10),
			PremiumDailyLimit:   getIntEnv("QUOTA_PREMIUM_DAILY", 99999),
			Window:              getDurationEnv("QUOTA_WINDOW", 24*time.Hour),
			FailOpen:            getBoolEnv("QUOTA_FAIL_OPEN", true),
			StoreTimeout:        getDurationEnv("QUOTA_STORE_TIMEOUT", 300*time.Millisecond),
			PurgeInterval:       getDurationEnv("QUOTA_PURGE_INTERVAL", 6*time.Hour),
			PurgeMaxAge:         getDurationEnv("QUOTA_PURGE_MAX_AGE", 7*24*time.Hour),
			UsageRetention:      getDurationEnv("USAGE_RETENTION", 90*24*time.Hour),
			CacheUserTTL:        getDurationEnv("CACHE_USER_TTL", 5*time.Minute),
			CacheDetalheTTL:     getDurationEnv("CACHE_DETALHE_TTL", 10*time.Minute),
		},
		PNCP: PNCPConfig{
			BaseURL:      getEnv("PNCP_BASE_URL", "https://pncp.gov.br/api/consulta/v1"),
			Timeout:      getDurationEnv("PNCP_TIMEOUT", 30*time.Second),
			MaxRetries:   getIntEnv("PNCP_MAX_RETRIES", 3),
			PageSize:     getIntEnv("PNCP_PAGE_SIZE", 50),
			SyncInterval: getDurationEnv("PNCP_SYNC_INTERVAL", time.Hour),
			SyncLookback: getDurationEnv("PNCP_SYNC_LOOKBACK", 7*24*time.Hour),
			SyncEnabled:  getBoolEnv("PNCP_SYNC_ENABLED", true),
		},
	}

	// Build database DSN
	cfg.Database.DSN = fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
	)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvRequired(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("Required environment variable %s is not set", key))
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
