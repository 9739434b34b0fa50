package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ngalkin/session_auth/internal/models"
)

const (
	DefaultAccessTTL      = 15 * time.Minute
	DefaultRefreshTTLDays = 7
	DefaultLoginAttempts  = 10
	DefaultAttemptWindow  = time.Minute
	DefaultAuditTopic     = "auth_events"
	DefaultAuditIndex     = "auth-audit"
	DefaultListenAddr     = ":8080"
)

// Config is built once at startup and passed by reference into the
// components; nothing reads ambient environment after Load returns.
type Config struct {
	ListenAddr string
	LogLevel   string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	// Optional collaborators; empty means disabled.
	KafkaAddress string
	AuditTopic   string
	RedisAddr    string
	ESURL        string
	ESUser       string
	ESPassword   string
	AuditIndex   string

	LoginMaxAttempts int
	LoginWindow      time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	cfg := &Config{
		ListenAddr: getenv("LISTEN_ADDR", DefaultListenAddr),
		LogLevel:   getenv("LOG_LEVEL", "info"),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),

		AccessSecret:  []byte(os.Getenv("ACCESS_TOKEN_SECRET")),
		RefreshSecret: []byte(os.Getenv("REFRESH_TOKEN_SECRET")),

		KafkaAddress: os.Getenv("KAFKA_ADDRESS"),
		AuditTopic:   getenv("AUDIT_TOPIC", DefaultAuditTopic),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		ESURL:        os.Getenv("ES_URL"),
		ESUser:       os.Getenv("ES_USER"),
		ESPassword:   os.Getenv("ES_PASSWORD"),
		AuditIndex:   getenv("AUDIT_INDEX", DefaultAuditIndex),

		LoginMaxAttempts: DefaultLoginAttempts,
		LoginWindow:      DefaultAttemptWindow,
	}

	var err error
	cfg.AccessTTL, err = durationEnv("ACCESS_TOKEN_TTL", DefaultAccessTTL)
	if err != nil {
		return nil, err
	}
	cfg.RefreshTTL, err = refreshTTLEnv("REFRESH_TOKEN_TTL_DAYS", DefaultRefreshTTLDays)
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.AccessSecret) == 0 || len(c.RefreshSecret) == 0 {
		return errors.New("config: ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET are required")
	}
	if string(c.AccessSecret) == string(c.RefreshSecret) {
		return errors.New("config: access and refresh secrets must differ")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("config: token TTLs must be positive")
	}
	return nil
}

func (c *Config) InitDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.RefreshToken{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func refreshTTLEnv(key string, fallbackDays int) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(fallbackDays) * 24 * time.Hour, nil
	}
	days, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return time.Duration(days) * 24 * time.Hour, nil
}
