// Пакет config — загрузка и валидация конфигурации Pro Forma Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Pro Forma Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Pro forma запросы ---

	// Базовый URL публичных ссылок (origin, без trailing slash)
	PublicBaseURL string
	// Горизонт жизни запроса: expires_at = created_at + RequestTTL
	RequestTTL time.Duration

	// --- Ядро LexoHub (matters, invoices, справочник практиков) ---

	// URL ядра LexoHub
	CoreURL string
	// Сервисный токен для запросов к ядру (опционально)
	CoreAuthToken string
	// Путь к CA-сертификату для TLS-соединений с ядром (опционально)
	CoreCACertPath string

	// --- Keycloak / JWT ---

	// URL Keycloak
	KeycloakURL string
	// Имя realm в Keycloak
	KeycloakRealm string
	// Issuer JWT (авто-вычисляется из KeycloakURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из KeycloakURL, если не задан)
	JWTJWKSURL string
	// Группы Keycloak, дающие роль practitioner (через запятую)
	PractitionerGroups []string

	// --- topologymetrics ---

	// Имя группы в метриках dephealth
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// PF_PORT — порт HTTP-сервера (по умолчанию 8010)
	cfg.Port, err = getEnvInt("PF_PORT", 8010)
	if err != nil {
		return nil, fmt.Errorf("PF_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PF_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// PF_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("PF_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("PF_LOG_LEVEL: %w", err)
	}

	// PF_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("PF_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("PF_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// PF_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("PF_DB_HOST")
	if err != nil {
		return nil, err
	}

	// PF_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("PF_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("PF_DB_PORT: %w", err)
	}

	// PF_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("PF_DB_NAME")
	if err != nil {
		return nil, err
	}

	// PF_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("PF_DB_USER")
	if err != nil {
		return nil, err
	}

	// PF_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("PF_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// PF_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("PF_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("PF_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Pro forma запросы ---

	// PF_PUBLIC_BASE_URL — обязательный (origin публичных ссылок)
	cfg.PublicBaseURL, err = getEnvRequired("PF_PUBLIC_BASE_URL")
	if err != nil {
		return nil, err
	}
	// Убираем trailing slash
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	// PF_REQUEST_TTL — горизонт жизни запроса (по умолчанию 168h = 7 дней)
	cfg.RequestTTL, err = getEnvDuration("PF_REQUEST_TTL", 168*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("PF_REQUEST_TTL: %w", err)
	}
	if cfg.RequestTTL <= 0 {
		return nil, fmt.Errorf("PF_REQUEST_TTL: горизонт должен быть положительным, получено %v", cfg.RequestTTL)
	}

	// --- Ядро LexoHub ---

	// PF_CORE_URL — обязательный
	cfg.CoreURL, err = getEnvRequired("PF_CORE_URL")
	if err != nil {
		return nil, err
	}
	cfg.CoreURL = strings.TrimRight(cfg.CoreURL, "/")

	// PF_CORE_AUTH_TOKEN — сервисный токен ядра (опционально)
	cfg.CoreAuthToken = getEnvDefault("PF_CORE_AUTH_TOKEN", "")

	// PF_CORE_CA_CERT_PATH — путь к CA-сертификату ядра (опционально)
	cfg.CoreCACertPath = getEnvDefault("PF_CORE_CA_CERT_PATH", "")

	// --- Keycloak / JWT ---

	// PF_KEYCLOAK_URL — обязательный
	cfg.KeycloakURL, err = getEnvRequired("PF_KEYCLOAK_URL")
	if err != nil {
		return nil, err
	}
	cfg.KeycloakURL = strings.TrimRight(cfg.KeycloakURL, "/")

	// PF_KEYCLOAK_REALM — realm (по умолчанию lexohub)
	cfg.KeycloakRealm = getEnvDefault("PF_KEYCLOAK_REALM", "lexohub")

	// PF_JWT_ISSUER — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTIssuer = getEnvDefault("PF_JWT_ISSUER",
		fmt.Sprintf("%s/realms/%s", cfg.KeycloakURL, cfg.KeycloakRealm))

	// PF_JWT_JWKS_URL — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTJWKSURL = getEnvDefault("PF_JWT_JWKS_URL",
		fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", cfg.KeycloakURL, cfg.KeycloakRealm))

	// PF_ROLE_PRACTITIONER_GROUPS — группы для роли practitioner
	// (по умолчанию "lexohub-practitioners")
	cfg.PractitionerGroups = parseCSV(getEnvDefault("PF_ROLE_PRACTITIONER_GROUPS", "lexohub-practitioners"))

	// --- topologymetrics ---

	// PF_DEPHEALTH_GROUP — группа в метриках (по умолчанию lexohub)
	cfg.DephealthGroup = getEnvDefault("PF_DEPHEALTH_GROUP", "lexohub")

	// PF_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("PF_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PF_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// PF_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("PF_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PF_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL
// (для лейблов topologymetrics, не для подключения).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// PublicRequestURL строит публичную ссылку pro forma запроса из токена.
// В ссылку никогда не попадает внутренний id.
func (c *Config) PublicRequestURL(token string) string {
	return fmt.Sprintf("%s/pro-forma-request/%s", c.PublicBaseURL, token)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 168h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
