package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Secrets for the three token keyspaces (access,
// refresh, OAuth state) are independent on purpose: leaking one must not
// compromise the others.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string
	DBPass string // optional
	DBHost string
	DBPort string
	DBName string

	JWTAccessSecret  string // signs short-lived access tokens
	JWTRefreshSecret string // signs refresh tokens
	OAuthStateSecret string // signs the OAuth redirect state blob
	AccessTTLMin     int    // access token time-to-live in minutes
	RefreshTTLDays   int    // refresh token time-to-live in days

	APIURL      string // public base URL of this API (OAuth redirect URIs)
	FrontendURL string // default frontend to send OAuth users back to

	GoogleClientID        string
	GoogleClientSecret    string
	MicrosoftClientID     string
	MicrosoftClientSecret string

	SMTPHost string // empty disables outbound email
	SMTPPort int
	SMTPFrom string
	SMTPUser string
	SMTPPass string
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message. OAuth and SMTP
// settings are optional; the corresponding features degrade to disabled.
func Load() Config {
	return Config{
		Env:  must("APP_ENV"),
		Port: must("APP_PORT"),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		JWTAccessSecret:  must("JWT_ACCESS_SECRET"),
		JWTRefreshSecret: must("JWT_REFRESH_SECRET"),
		OAuthStateSecret: must("OAUTH_STATE_SECRET"),
		AccessTTLMin:     intOr("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays:   intOr("REFRESH_TOKEN_TTL_DAYS", 7),

		APIURL:      must("API_URL"),
		FrontendURL: envStr("FRONTEND_URL", "http://localhost:3000"),

		GoogleClientID:        os.Getenv("GOOGLE_OAUTH_CLIENT_ID"),
		GoogleClientSecret:    os.Getenv("GOOGLE_OAUTH_CLIENT_SECRET"),
		MicrosoftClientID:     os.Getenv("MICROSOFT_OAUTH_CLIENT_ID"),
		MicrosoftClientSecret: os.Getenv("MICROSOFT_OAUTH_CLIENT_SECRET"),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: intOr("SMTP_PORT", 587),
		SMTPFrom: os.Getenv("SMTP_FROM"),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
	}
}

// DatabaseURL builds a golang-migrate compatible MySQL URL.
func (c Config) DatabaseURL() string {
	auth := c.DBUser
	if c.DBPass != "" {
		auth = c.DBUser + ":" + c.DBPass
	}
	return "mysql://" + auth + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName
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

// intOr converts an optional environment variable to an integer, falling
// back to def when unset. Invalid values are fatal rather than silently
// ignored.
func intOr(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
