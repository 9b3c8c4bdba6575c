// Package config loads application configuration from environment
// variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Storage defaults to the file driver under
// DataDir; STORE_DRIVER=mysql switches the document store to MySQL using
// the DB_* values.
type Config struct {
	Env         string // application environment (e.g. "dev", "prod")
	Port        string // HTTP port to listen on
	DataDir     string // directory holding resource documents and lock markers
	StoreDriver string // "file" or "mysql"

	DBUser string // database username (mysql driver only)
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	JWTSecret string // secret used to verify mutation tokens

	LockRetryDelay time.Duration // wait between lock acquisition attempts
	LockMaxRetries int           // acquisition attempts after the first
	LockStaleAge   time.Duration // marker age after which an orphaned lock is reclaimed
}

// Load reads configuration from the environment.  JWT_SECRET is required;
// everything else has a development-friendly default.  DB_* values are
// enforced only when the mysql store driver is selected.
func Load() Config {
	cfg := Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           envStr("APP_PORT", "8080"),
		DataDir:        envStr("DATA_DIR", "data"),
		StoreDriver:    envStr("STORE_DRIVER", "file"),
		JWTSecret:      must("JWT_SECRET"),
		LockRetryDelay: envDur("LOCK_RETRY_DELAY", 50*time.Millisecond),
		LockMaxRetries: envInt("LOCK_MAX_RETRIES", 20),
		LockStaleAge:   envDur("LOCK_STALE_AGE", 30*time.Second),
	}
	if cfg.StoreDriver == "mysql" {
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
