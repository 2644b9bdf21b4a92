package config // package config loads application configuration from environment variables

import (
	"log"     // log reports configuration errors and halts execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses duration strings
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The two token secrets are deliberately separate
// variables: access and refresh tokens must never share a signing key.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	AccessSecret  string        // secret used to sign access tokens
	RefreshSecret string        // secret used to sign refresh tokens
	AccessTTL     time.Duration // access token lifetime
	RefreshTTL    time.Duration // refresh token lifetime

	CleanupInterval time.Duration // delay between automatic cleanup passes
	GracePeriod     time.Duration // minimum age before an unverified account is deletable
	OTPTTL          time.Duration // lifetime of a one-time verification code

	BcryptCost int // bcrypt cost for password hashing
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values cause
// the program to exit with a fatal log message. The cleanup interval is
// specified in milliseconds so test environments can run sub-second
// schedules.
func Load() Config {
	cfg := Config{
		Env:             must("APP_ENV"),
		Port:            must("APP_PORT"),
		DBUser:          must("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"), // empty allowed
		DBHost:          must("DB_HOST"),
		DBPort:          must("DB_PORT"),
		DBName:          must("DB_NAME"),
		AccessSecret:    must("ACCESS_TOKEN_SECRET"),
		RefreshSecret:   must("REFRESH_TOKEN_SECRET"),
		AccessTTL:       mustDur("ACCESS_TOKEN_TTL"),
		RefreshTTL:      mustDur("REFRESH_TOKEN_TTL"),
		CleanupInterval: time.Duration(mustInt("CLEANUP_INTERVAL_MS")) * time.Millisecond,
		GracePeriod:     mustDur("UNVERIFIED_GRACE_PERIOD"),
		OTPTTL:          mustDur("OTP_TTL"),
		BcryptCost:      mustInt("BCRYPT_COST"),
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		log.Fatalf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	return cfg
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// mustDur is like must() but parses the value as a Go duration string, e.g.
// "15m" for access tokens or "720h" for refresh tokens.
func mustDur(key string) time.Duration {
	s := must(key)
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, s)
	}
	return d
}
