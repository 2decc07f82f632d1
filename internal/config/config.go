// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort             = "8080"
	defaultDBDriver         = "postgres"
	defaultLoyaltyThreshold = 10
	defaultStoreHealthTTL   = 30 * time.Second
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL string
	DBDriver    string // "postgres" (lib/pq) или "pgx"
	DBHost      string
	DBPort      string
	DBName      string

	Port          string
	AppEnv        string
	JWTSecret     string
	BaseDomain    string
	DefaultTenant string
	TenantsFile   string
	PublicBaseURL string

	LoyaltyThreshold int
	StoreHealthTTL   time.Duration

	RabbitMQURL   string
	TelegramToken string
}

// LoadConfig загружает конфигурацию из переменных окружения.
// LoadConfig loads the configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		DBDriver:      strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER"))),
		Port:          os.Getenv("PORT"),
		AppEnv:        os.Getenv("ENV"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		BaseDomain:    strings.ToLower(strings.TrimSpace(os.Getenv("BASE_DOMAIN"))),
		DefaultTenant: strings.TrimSpace(os.Getenv("DEFAULT_TENANT")),
		TenantsFile:   os.Getenv("TENANTS_FILE"),
		PublicBaseURL: strings.TrimSuffix(os.Getenv("PUBLIC_BASE_URL"), "/"),
		RabbitMQURL:   os.Getenv("RABBITMQ_URL"),
		TelegramToken: os.Getenv("TELEGRAM_APITOKEN"),
	}

	if cfg.Port == "" {
		cfg.Port = defaultPort
	}

	switch cfg.DBDriver {
	case "":
		cfg.DBDriver = defaultDBDriver
	case "postgres", "pgx":
	default:
		return nil, fmt.Errorf("неизвестный DB_DRIVER %q (ожидается postgres или pgx)", cfg.DBDriver)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL не установлена")
	}
	parsedURL, err := url.Parse(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DATABASE_URL: %w", err)
	}
	cfg.DBHost = parsedURL.Hostname()
	cfg.DBPort = parsedURL.Port()
	if cfg.DBPort == "" {
		cfg.DBPort = "5432"
	}
	cfg.DBName = strings.TrimPrefix(parsedURL.Path, "/")

	cfg.LoyaltyThreshold = defaultLoyaltyThreshold
	if raw := os.Getenv("LOYALTY_THRESHOLD"); raw != "" {
		n, errParse := strconv.Atoi(raw)
		if errParse != nil || n < 1 {
			log.Printf("Предупреждение: некорректное значение LOYALTY_THRESHOLD ('%s'). Используется значение по умолчанию %d.", raw, defaultLoyaltyThreshold)
		} else {
			cfg.LoyaltyThreshold = n
		}
	}

	cfg.StoreHealthTTL = defaultStoreHealthTTL
	if raw := os.Getenv("STORE_HEALTH_TTL"); raw != "" {
		d, errParse := time.ParseDuration(raw)
		if errParse != nil || d <= 0 {
			log.Printf("Предупреждение: некорректное значение STORE_HEALTH_TTL ('%s'). Используется значение по умолчанию %s.", raw, defaultStoreHealthTTL)
		} else {
			cfg.StoreHealthTTL = d
		}
	}

	if cfg.JWTSecret == "" {
		log.Println("Предупреждение: JWT_SECRET не установлен. Авторизованные маршруты будут отклонять все запросы.")
	}
	if cfg.BaseDomain == "" && cfg.DefaultTenant == "" {
		log.Println("Предупреждение: не заданы ни BASE_DOMAIN, ни DEFAULT_TENANT. Определить арендатора по запросу будет невозможно.")
	}
	if cfg.RabbitMQURL == "" {
		log.Println("Предупреждение: RABBITMQ_URL не установлен. События изменений не будут публиковаться в RabbitMQ.")
	}
	if cfg.TelegramToken == "" {
		log.Println("Предупреждение: TELEGRAM_APITOKEN не установлен. Уведомления водителям в Telegram отключены.")
	}

	log.Println("Конфигурация загружена.")
	return cfg, nil
}

// IsDev сообщает, запущено ли приложение в режиме разработки.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}
