package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, GATEHOUSE_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and
	// refresh-token hashing must be HMAC-based.
	RequireTokenHMAC bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("GATEHOUSE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("GATEHOUSE_LOG_LEVEL", "info"),
		LogFormat: EnvString("GATEHOUSE_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("GATEHOUSE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("GATEHOUSE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("GATEHOUSE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("GATEHOUSE_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("GATEHOUSE_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("GATEHOUSE_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("GATEHOUSE_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("GATEHOUSE_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("GATEHOUSE_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("GATEHOUSE_REQUIRE_TOKEN_HMAC", false),

		CORSAllowedOrigins:   EnvStringSlice("GATEHOUSE_CORS_ALLOWED_ORIGINS", nil),
		CORSAllowCredentials: EnvBool("GATEHOUSE_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("GATEHOUSE_CORS_MAX_AGE_SECONDS", 600),
	}
}
