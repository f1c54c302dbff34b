package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	MigrateOnStart        bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	ReportCacheTTLSeconds int
	AuthSecret            string
	AccessTokenTTLMinutes int
	RateLimitRPS          float64
	RateLimitBurst        int
	LogLevel              string
}

// BridgeConfig configures the WhatsApp bridge binary.
type BridgeConfig struct {
	Port                 string
	AccessToken          string
	PhoneNumberID        string
	BaseURL              string
	APIVersion           string
	ProbeIntervalSeconds int
	MongoURI             string
	MongoDBName          string
	LogLevel             string
}

// NotifierConfig configures the scheduled report and alert jobs.
type NotifierConfig struct {
	LedgerBaseURL        string
	LedgerUsername       string
	LedgerPassword       string
	BridgeBaseURL        string
	NotifyPhone          string
	ReportCronSchedule   string
	LowStockCronSchedule string
	Timezone             string
	MongoURI             string
	MongoDBName          string
	SheetsCredentials    string
	SpreadsheetID        string
	LogLevel             string
}

func init() {
	// A missing .env is fine; the environment may already carry everything.
	_ = godotenv.Load()
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	return Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		MigrateOnStart:        getBool("MIGRATE_ON_START", false),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		ReportCacheTTLSeconds: getPositiveInt("REPORT_CACHE_TTL_SECONDS", 300),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: getPositiveInt("ACCESS_TOKEN_TTL_MINUTES", 480),
		RateLimitRPS:          getPositiveFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:        getPositiveInt("RATE_LIMIT_BURST", 40),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) ReportCacheTTL() time.Duration {
	return time.Duration(c.ReportCacheTTLSeconds) * time.Second
}

// Validate refuses configurations the server must not start with.
func (c Config) Validate() error {
	if len(c.AuthSecret) < 32 {
		return errors.New("AUTH_SECRET must be set and at least 32 characters")
	}
	if c.Port == "" {
		return errors.New("PORT must be provided")
	}
	return nil
}

func LoadBridge() (BridgeConfig, error) {
	cfg := BridgeConfig{
		Port:                 getEnv("PORT", "3001"),
		AccessToken:          strings.TrimSpace(os.Getenv("WHATSAPP_TOKEN")),
		PhoneNumberID:        strings.TrimSpace(os.Getenv("WHATSAPP_PHONE_NUMBER_ID")),
		BaseURL:              getEnv("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
		APIVersion:           getEnv("WHATSAPP_API_VERSION", "v20.0"),
		ProbeIntervalSeconds: getPositiveInt("WHATSAPP_PROBE_INTERVAL_SECONDS", 60),
		MongoURI:             os.Getenv("MONGODB_URI"),
		MongoDBName:          getEnv("MONGODB_DB_NAME", "clothpos"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
	}
	return cfg, cfg.Validate()
}

func (c BridgeConfig) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c BridgeConfig) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSeconds) * time.Second
}

func (c BridgeConfig) Validate() error {
	if c.Port == "" {
		return errors.New("PORT must be provided")
	}
	if c.AccessToken == "" {
		return errors.New("WHATSAPP_TOKEN must be provided")
	}
	if c.PhoneNumberID == "" {
		return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided")
	}
	return nil
}

func LoadNotifier() (NotifierConfig, error) {
	cfg := NotifierConfig{
		LedgerBaseURL:        getEnv("LEDGER_BASE_URL", "http://127.0.0.1:8080"),
		LedgerUsername:       getEnv("LEDGER_USERNAME", "owner"),
		LedgerPassword:       os.Getenv("LEDGER_PASSWORD"),
		BridgeBaseURL:        getEnv("BRIDGE_BASE_URL", "http://127.0.0.1:3001"),
		NotifyPhone:          strings.TrimSpace(os.Getenv("NOTIFY_PHONE")),
		ReportCronSchedule:   getEnv("REPORT_CRON_SCHEDULE", "0 22 * * *"),
		LowStockCronSchedule: getEnv("LOW_STOCK_CRON_SCHEDULE", "0 9 * * *"),
		Timezone:             getEnv("TIMEZONE", "Asia/Kolkata"),
		MongoURI:             os.Getenv("MONGODB_URI"),
		MongoDBName:          getEnv("MONGODB_DB_NAME", "clothpos"),
		SheetsCredentials:    os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
		SpreadsheetID:        os.Getenv("GOOGLE_SHEET_ID"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
	}
	return cfg, cfg.Validate()
}

func (c NotifierConfig) Validate() error {
	if c.LedgerPassword == "" {
		return errors.New("LEDGER_PASSWORD must be provided")
	}
	if c.NotifyPhone == "" {
		return errors.New("NOTIFY_PHONE must be provided")
	}
	if c.SpreadsheetID != "" && c.SheetsCredentials == "" {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH is required when GOOGLE_SHEET_ID is set")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getPositiveInt(key string, fallback int) int {
	val, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || val < 1 {
		return fallback
	}
	return val
}

func getPositiveFloat(key string, fallback float64) float64 {
	val, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil || val <= 0 {
		return fallback
	}
	return val
}

func getBool(key string, fallback bool) bool {
	val, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return val
}
