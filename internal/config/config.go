package config // package config loads application configuration from environment variables

import (
    "log"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"
    "github.com/sirupsen/logrus"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
    Env           string // application environment (e.g. "dev", "prod")
    Port          string // HTTP port to listen on
    Store         string // "mysql" (default) or "memory"
    DBUser        string
    DBPass        string // optional
    DBHost        string
    DBPort        string
    DBName        string
    JWTSecret     string // secret used to sign JWTs
    AccessTTLMin  int    // access token time-to-live in minutes
    BcryptCost    int    // bcrypt cost for password hashing
    WebhookSecret string // HMAC key for payment notifications
    LogLevel      string // logrus level name
    RabbitURL     string // empty disables publishing and the audit consumer
    AuditLogDir   string // directory of booking.log
    Booking       BookingConfig
}

// BookingConfig tunes the booking core and its caches.
type BookingConfig struct {
    MaxRetries       int           // re-runs of a transaction that hit a write conflict
    RetryBackoff     time.Duration // base delay between re-runs
    SeatMapTTL       time.Duration // lifetime of cached seat maps
    WebhookDedupeTTL time.Duration // how long webhook event IDs are remembered
}

// Load reads an optional .env file and then the environment.  Required
// variables are enforced by must() and missing values cause the program
// to exit with a fatal log message.  With APP_STORE=memory the database
// variables become optional.
func Load() Config {
    _ = godotenv.Load()

    store := strings.ToLower(envStr("APP_STORE", "mysql"))
    dbVar := must
    if store == "memory" {
        dbVar = os.Getenv
    }
    return Config{
        Env:           must("APP_ENV"),
        Port:          must("APP_PORT"),
        Store:         store,
        DBUser:        dbVar("DB_USER"),
        DBPass:        os.Getenv("DB_PASS"),
        DBHost:        dbVar("DB_HOST"),
        DBPort:        dbVar("DB_PORT"),
        DBName:        dbVar("DB_NAME"),
        JWTSecret:     must("JWT_SECRET"),
        AccessTTLMin:  mustInt("ACCESS_TOKEN_TTL_MIN"),
        BcryptCost:    mustInt("BCRYPT_COST"),
        WebhookSecret: must("WEBHOOK_SECRET"),
        LogLevel:      envStr("LOG_LEVEL", "info"),
        RabbitURL:     firstEnv("RABBITMQ_URL", "AMQP_URL"),
        AuditLogDir:   envStr("AUDIT_LOG_DIR", "logs"),
        Booking:       LoadBookingConfig(),
    }
}

// LoadBookingConfig reads the booking knobs, falling back to defaults.
func LoadBookingConfig() BookingConfig {
    c := BookingConfig{
        MaxRetries:       envInt("BOOKING_MAX_RETRIES", 3),
        RetryBackoff:     envDur("BOOKING_RETRY_BACKOFF", 20*time.Millisecond),
        SeatMapTTL:       envDur("SEATMAP_CACHE_TTL", 10*time.Second),
        WebhookDedupeTTL: envDur("WEBHOOK_DEDUPE_TTL", 24*time.Hour),
    }
    if c.MaxRetries < 1 {
        c.MaxRetries = 1
    }
    return c
}

// NewLogger builds the process logger: JSON in prod, text elsewhere.
func (c Config) NewLogger() *logrus.Logger {
    l := logrus.New()
    l.SetOutput(os.Stdout)
    if c.Env == "prod" || c.Env == "production" {
        l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
    } else {
        l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
    }
    lvl, err := logrus.ParseLevel(c.LogLevel)
    if err != nil {
        lvl = logrus.InfoLevel
    }
    l.SetLevel(lvl)
    return l
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

func firstEnv(keys ...string) string {
    for _, k := range keys {
        if v := os.Getenv(k); v != "" {
            return v
        }
    }
    return ""
}
