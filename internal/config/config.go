// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config — корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env          string             `yaml:"env" env:"ENV" env-default:"local"`
	HTTP         HTTPConfig         `yaml:"http"`
	Tokens       TokensConfig       `yaml:"tokens"`
	Hash         HashConfig         `yaml:"hash"`
	Verification VerificationConfig `yaml:"verification"`
	SMTP         SMTPConfig         `yaml:"smtp"`
	Cookies      CookieConfig       `yaml:"cookies"`
	DB           DBConfig           `yaml:"db"`
	Redis        RedisConfig        `yaml:"redis"`
	Timeouts     TimeoutConfig      `yaml:"timeouts"`
}

// TimeoutConfig — таймауты сервиса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
}

// HTTPConfig — сетевые настройки HTTP-сервера.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// TokensConfig содержит параметры выпуска и валидации токенов.
//
// Access- и refresh-токены ОБЯЗАНЫ подписываться разными секретами:
// компрометация refresh-секрета не должна позволять чеканить access-токены,
// и наоборот. Это проверяется при загрузке (см. Validate).
type TokensConfig struct {
	AccessSecret    string        `yaml:"access_secret" env:"ACCESS_TOKEN_SECRET" env-required:"true"`
	RefreshSecret   string        `yaml:"refresh_secret" env:"REFRESH_TOKEN_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"720h"`
	Issuer          string        `yaml:"issuer"   env:"TOKEN_ISSUER" env-default:"auth-service"`
	Audience        []string      `yaml:"audience" env:"TOKEN_AUDIENCE" env-default:"appshell"`
}

// HashConfig — параметры хэширования секретов.
type HashConfig struct {
	// Cost — стоимость bcrypt; 0 означает bcrypt.DefaultCost.
	Cost int `yaml:"cost" env:"HASH_COST" env-default:"10"`
}

// VerificationConfig — параметры подтверждения e-mail.
// TTL токена подтверждения независим от TTL access/refresh-токенов.
type VerificationConfig struct {
	TokenTTL time.Duration `yaml:"token_ttl" env:"VERIFICATION_TOKEN_TTL" env-default:"24h"`
	BaseURL  string        `yaml:"base_url" env:"VERIFICATION_BASE_URL" env-default:"http://localhost:8080/auth/verify-email"`
}

// SMTPConfig — настройки отправки писем. Пустой Host включает no-op отправку
// (письма только логируются) — удобно для local-окружения.
type SMTPConfig struct {
	Host     string `yaml:"host" env:"SMTP_HOST" env-default:""`
	Port     string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username string `yaml:"username" env:"SMTP_USERNAME" env-default:""`
	Password string `yaml:"password" env:"SMTP_PASSWORD" env-default:""`
	From     string `yaml:"from" env:"SMTP_FROM" env-default:"no-reply@appshell.local"`
}

// Addr возвращает адрес в формате host:port.
func (s SMTPConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// CookieConfig — транспортные настройки cookie с токенами.
type CookieConfig struct {
	AccessName  string `yaml:"access_name" env:"COOKIE_ACCESS_NAME" env-default:"accessToken"`
	RefreshName string `yaml:"refresh_name" env:"COOKIE_REFRESH_NAME" env-default:"refreshToken"`
	Domain      string `yaml:"domain" env:"COOKIE_DOMAIN" env-default:""`
	Path        string `yaml:"path" env:"COOKIE_PATH" env-default:"/"`
	Secure      bool   `yaml:"secure" env:"COOKIE_SECURE" env-default:"true"`
}

// DBConfig — настройки подключения к базе данных.
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL" env-required:"true"`
}

// RedisConfig — настройки кэша сессий; пустой URL отключает кэш.
type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL" env-default:""`
}

// Validate проверяет инварианты конфигурации, которые cleanenv
// не выражает тегами.
func (c *Config) Validate() error {
	if c.Tokens.AccessSecret == c.Tokens.RefreshSecret {
		return fmt.Errorf("tokens: access_secret and refresh_secret must differ")
	}

	if c.Tokens.AccessTokenTTL <= 0 || c.Tokens.RefreshTokenTTL <= 0 {
		return fmt.Errorf("tokens: TTLs must be positive")
	}

	if c.Verification.TokenTTL <= 0 {
		return fmt.Errorf("verification: token_ttl must be positive")
	}

	return nil
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// ВАЖНО: после чтения файла накладываем ENV-переменные поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	// чтение файла + overlay ENV.
	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	// 1) Явный путь.
	if path != "" {
		c, err := tryRead(path)
		if err != nil {
			return nil, err
		}

		if err := c.Validate(); err != nil {
			return nil, err
		}

		return c, nil
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		c, err := tryRead(envPath)
		if err != nil {
			return nil, err
		}

		if err := c.Validate(); err != nil {
			return nil, err
		}

		return c, nil
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		if err := cleanenv.ReadConfig("local.yaml", &cfg); err != nil {
			return nil, fmt.Errorf("failed to read local.yaml: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			return nil, err
		}

		return &cfg, nil
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
