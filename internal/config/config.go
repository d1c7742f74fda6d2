// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// StoreBackend is "postgres" (default) or "firestore".
	StoreBackend string

	// DatabaseURL is the Postgres connection string. Required for the
	// postgres backend.
	DatabaseURL string

	// Firebase settings for the firestore backend. ProjectID is required;
	// with neither credential set, application default credentials are used.
	FirebaseProjectID         string
	FirebaseCredentialsFile   string
	FirebaseCredentialsBase64 string

	// ArchiveSchedule is the six-field cron spec of the auto-archive job.
	// Set it to "off" to disable the job.
	ArchiveSchedule string
	// ArchiveCutoffDays is how long after its end a trip stays live.
	ArchiveCutoffDays int

	// DirectorySchedule is the cron spec of the job that reloads driver
	// companies. Defaults to every five minutes; "off" disables it.
	DirectorySchedule string

	// ExpiryThresholdDays is how far ahead a document counts as expiring soon.
	ExpiryThresholdDays int

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64

	// Location is the zone used for "today" and the cron jobs. Defaults to
	// time.Local; set TIMEZONE to an IANA name such as "Europe/Sofia".
	Location *time.Location
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set or
// cannot be parsed.
func Load() (Config, error) {
	cfg := Config{
		Port:                      getEnv("PORT", "8080"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		CORSOrigins:               splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		StoreBackend:              strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres)),
		DatabaseURL:               os.Getenv("DATABASE_URL"),
		FirebaseProjectID:         os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseCredentialsFile:   os.Getenv("FIREBASE_CREDENTIALS_FILE"),
		FirebaseCredentialsBase64: os.Getenv("FIREBASE_CREDENTIALS_BASE64"),
		ArchiveSchedule:           getEnv("ARCHIVE_SCHEDULE", "0 30 0 * * *"),
		DirectorySchedule:         getEnv("DIRECTORY_SCHEDULE", "0 */5 * * * *"),
		Location:                  time.Local,
	}
	if cfg.ArchiveSchedule == "off" {
		cfg.ArchiveSchedule = ""
	}
	if cfg.DirectorySchedule == "off" {
		cfg.DirectorySchedule = ""
	}

	var missing, invalid []string

	switch cfg.StoreBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case BackendFirestore:
		if cfg.FirebaseProjectID == "" {
			missing = append(missing, "FIREBASE_PROJECT_ID")
		}
	default:
		invalid = append(invalid, "STORE_BACKEND")
	}

	var err error
	if cfg.ArchiveCutoffDays, err = getInt("ARCHIVE_CUTOFF_DAYS", 14); err != nil || cfg.ArchiveCutoffDays < 0 {
		invalid = append(invalid, "ARCHIVE_CUTOFF_DAYS")
	}
	if cfg.ExpiryThresholdDays, err = getInt("EXPIRY_THRESHOLD_DAYS", 30); err != nil || cfg.ExpiryThresholdDays < 0 {
		invalid = append(invalid, "EXPIRY_THRESHOLD_DAYS")
	}
	maxBody, err := getInt("MAX_BODY_BYTES", 1<<20)
	if err != nil || maxBody <= 0 {
		invalid = append(invalid, "MAX_BODY_BYTES")
	}
	cfg.MaxBodyBytes = int64(maxBody)
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		if cfg.Location, err = time.LoadLocation(tz); err != nil {
			invalid = append(invalid, "TIMEZONE")
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getInt parses the integer variable key, returning fallback when it is
// unset.
func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(strings.TrimSpace(v))
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
