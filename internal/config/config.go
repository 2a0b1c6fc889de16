// Package config loads application configuration from environment
// variables.  A .env file, when present, is folded into the environment by
// the caller before Load runs.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Strings for identifiers and secrets, ints
// and durations for the circulation policy knobs.
type Config struct {
	Env            string        // application environment (e.g. "dev", "prod")
	Port           string        // HTTP port to listen on
	DBUser         string        // database username
	DBPass         string        // database password (optional)
	DBHost         string        // database host address
	DBPort         string        // database port number
	DBName         string        // database name
	JWTSecret      string        // secret used to sign JWTs
	AccessTTLMin   int           // access token time-to-live in minutes
	RefreshTTLDays int           // refresh token time-to-live in days
	BcryptCost     int           // bcrypt cost for password hashing
	LoanDays       int           // default loan length in days
	FineRatePerDay int64         // fine units charged per day late
	ReservationTTL time.Duration // pickup window for a claimed copy
	BlockOnFines   bool          // refuse checkouts while fines are owed
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must(); the circulation
// policy knobs fall back to sensible defaults so a dev setup only needs
// the connection values.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		LoanDays:       envInt("LOAN_DAYS", 14),
		FineRatePerDay: int64(envInt("FINE_RATE_PER_DAY", 5)),
		ReservationTTL: time.Duration(envInt("RESERVATION_TTL_HOURS", 48)) * time.Hour,
		BlockOnFines:   envBool("BLOCK_ON_FINES", false),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
