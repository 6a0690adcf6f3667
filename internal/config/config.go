package config // package config loads application configuration from environment variables

import (
    "log" // log is used to report configuration errors and halt execution
    "os"  // os provides access to environment variables
    "strings"
    "time"

    "github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The QR secret is only ever handed to the
// credential codec; nothing else reads it.
type Config struct {
    Env         string // application environment (e.g. "dev", "prod")
    Port        string // HTTP port to listen on
    Store       string // "mysql" (default) or "memory"
    LogLevel    string // zap level name
    DBUser      string // database username
    DBPass      string // database password (optional)
    DBHost      string // database host address
    DBPort      string // database port number
    DBName      string // database name
    JWTSecret   string // secret used to sign JWTs
    JWTTTLHours int    // access token time-to-live in hours
    BcryptCost  int    // bcrypt cost for password hashing

    AdminEmail    string // seeded admin account, created at start-up if missing
    AdminPassword string

    QRSecret   string         // server-only key of the credential integrity hash
    AlertEmail string         // recipient of admin booking alerts (optional)
    MailFrom   string         // sender identity of notification emails
    ParkTZ     *time.Location // timezone of booking dates and time slots

    ExpiryScanInterval time.Duration // how often the expiry worker scans
    ExpiryBatchSize    int           // bookings handled per scan
    NotifyBuffer       int           // notification dispatcher queue depth
    RabbitMQURL        string        // AMQP url; empty disables publishing

    ObjectStore ObjectStoreConfig
    SMTP        SMTPConfig
}

// ObjectStoreConfig points at an S3 compatible bucket.  An empty
// Endpoint selects the in-memory store.
type ObjectStoreConfig struct {
    Endpoint      string
    AccessKey     string
    SecretKey     string
    Bucket        string
    PublicBaseURL string // prefix of returned object URLs
    UseSSL        bool
}

// SMTPConfig is read by the notification worker.
type SMTPConfig struct {
    Host     string
    Port     int
    Username string
    Password string
}

// Load reads an optional .env file and then configuration values from
// environment variables.  Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
func Load() Config {
    _ = godotenv.Load() // a missing .env is fine; real env vars win

    store := strings.ToLower(envStr("APP_STORE", "mysql"))
    cfg := Config{
        Env:         must("APP_ENV"),
        Port:        must("APP_PORT"),
        Store:       store,
        LogLevel:    envStr("LOG_LEVEL", "info"),
        DBPass:      os.Getenv("DB_PASS"),
        JWTSecret:   must("JWT_SECRET"),
        JWTTTLHours: envInt("JWT_TTL_HOURS", 12),
        BcryptCost:  envInt("BCRYPT_COST", 10),

        AdminEmail:    os.Getenv("ADMIN_EMAIL"),
        AdminPassword: os.Getenv("ADMIN_PASSWORD"),

        QRSecret:   must("QR_SECRET"),
        AlertEmail: os.Getenv("ALERT_EMAIL"),
        MailFrom:   envStr("MAIL_FROM", "no-reply@park.local"),
        ParkTZ:     mustLocation("PARK_TIMEZONE"),

        ExpiryScanInterval: envDur("EXPIRY_SCAN_INTERVAL", time.Minute),
        ExpiryBatchSize:    envInt("EXPIRY_BATCH_SIZE", 100),
        NotifyBuffer:       envInt("NOTIFY_BUFFER", 256),
        RabbitMQURL:        os.Getenv("RABBITMQ_URL"),

        ObjectStore: LoadObjectStoreConfig(),
        SMTP:        LoadSMTPConfig(),
    }
    if store != "memory" {
        cfg.DBUser = must("DB_USER")
        cfg.DBHost = must("DB_HOST")
        cfg.DBPort = must("DB_PORT")
        cfg.DBName = must("DB_NAME")
    }
    return cfg
}

// IsDevelopment reports whether the process runs in a local environment.
func (c Config) IsDevelopment() bool {
    return c.Env == "dev" || c.Env == "development" || c.Env == "local"
}

// LoadObjectStoreConfig reads the OBJECT_STORE_* variables.
func LoadObjectStoreConfig() ObjectStoreConfig {
    return ObjectStoreConfig{
        Endpoint:      os.Getenv("OBJECT_STORE_ENDPOINT"),
        AccessKey:     os.Getenv("OBJECT_STORE_ACCESS_KEY"),
        SecretKey:     os.Getenv("OBJECT_STORE_SECRET_KEY"),
        Bucket:        envStr("OBJECT_STORE_BUCKET", "park-booking"),
        PublicBaseURL: strings.TrimRight(os.Getenv("OBJECT_STORE_PUBLIC_URL"), "/"),
        UseSSL:        envBool("OBJECT_STORE_USE_SSL", false),
    }
}

// LoadSMTPConfig reads the SMTP_* variables.
func LoadSMTPConfig() SMTPConfig {
    return SMTPConfig{
        Host:     envStr("SMTP_HOST", "localhost"),
        Port:     envInt("SMTP_PORT", 587),
        Username: os.Getenv("SMTP_USERNAME"),
        Password: os.Getenv("SMTP_PASSWORD"),
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

// mustLocation loads the IANA timezone named by key, defaulting to UTC
// when unset.  An unknown zone name is fatal.
func mustLocation(key string) *time.Location {
    name := envStr(key, "UTC")
    loc, err := time.LoadLocation(name)
    if err != nil {
        log.Fatalf("invalid timezone for %s: %q", key, name)
    }
    return loc
}
