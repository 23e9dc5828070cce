package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EffectivelyUnboundedRadiusMeters - радиус геопоиска диспетчеров по
// умолчанию. Значение покрывает всю поверхность Земли: пока диспетчеры
// не начали сообщать координаты, вызов должен доходить до всех, а не
// теряться из-за слишком узкого радиуса.
const EffectivelyUnboundedRadiusMeters = 50_000_000

// Config - структура для хранения конфигурации приложения
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis Config
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// JWT Config
	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	// Dispatch Config
	MaxDispatchRadiusMeters int `env:"MAX_DISPATCH_RADIUS_METERS"`

	// Audio storage Config
	AudioStorageDir string `env:"AUDIO_STORAGE_DIR" envDefault:"./data/audio"`
	AudioBaseURL    string `env:"AUDIO_BASE_URL" envDefault:"/audio"`

	// Alert webhook Config (уведомление экстренного контакта)
	AlertWebhookURL     string        `env:"ALERT_WEBHOOK_URL"`
	AlertWebhookSecret  string        `env:"ALERT_WEBHOOK_SECRET"`
	AlertWebhookTimeout time.Duration `env:"ALERT_WEBHOOK_TIMEOUT" envDefault:"5s"`
	AlertMaxRetries     int           `env:"ALERT_MAX_RETRIES" envDefault:"3"`
	AlertBaseDelay      time.Duration `env:"ALERT_BASE_DELAY" envDefault:"1s"`

	// Client-side Config (скрытый триггер и канал)
	TriggerCodes      []string      `env:"TRIGGER_CODES" envDefault:"911,112"`
	SOSCountdown      time.Duration `env:"SOS_COUNTDOWN" envDefault:"10s"`
	AudioCaptureLimit time.Duration `env:"AUDIO_CAPTURE_LIMIT" envDefault:"10s"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		HTTPPort:                getEnv("HTTP_PORT", "8080"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		RedisAddr:               getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:               os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 getEnvAsInt("REDIS_DB", 0),
		JWTSecret:               os.Getenv("JWT_SECRET"),
		JWTTTL:                  getEnvAsDuration("JWT_TTL", 24*time.Hour),
		MaxDispatchRadiusMeters: getEnvAsInt("MAX_DISPATCH_RADIUS_METERS", EffectivelyUnboundedRadiusMeters),
		AudioStorageDir:         getEnv("AUDIO_STORAGE_DIR", "./data/audio"),
		AudioBaseURL:            getEnv("AUDIO_BASE_URL", "/audio"),
		AlertWebhookURL:         os.Getenv("ALERT_WEBHOOK_URL"),
		AlertWebhookSecret:      os.Getenv("ALERT_WEBHOOK_SECRET"),
		AlertWebhookTimeout:     getEnvAsDuration("ALERT_WEBHOOK_TIMEOUT", 5*time.Second),
		AlertMaxRetries:         getEnvAsInt("ALERT_MAX_RETRIES", 3),
		AlertBaseDelay:          getEnvAsDuration("ALERT_BASE_DELAY", time.Second),
		SOSCountdown:            getEnvAsDuration("SOS_COUNTDOWN", 10*time.Second),
		AudioCaptureLimit:       getEnvAsDuration("AUDIO_CAPTURE_LIMIT", 10*time.Second),
	}

	// Загрузка скрытых кодов триггера
	codesStr := getEnv("TRIGGER_CODES", "911,112")
	for _, code := range strings.Split(codesStr, ",") {
		if code = strings.TrimSpace(code); code != "" {
			cfg.TriggerCodes = append(cfg.TriggerCodes, code)
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	return cfg, nil
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
