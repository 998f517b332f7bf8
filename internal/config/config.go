package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override, e.g. BALANCE_REDIS_ADDR.
const EnvPrefix = "BALANCE_"

type Config struct {
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Redis    RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
	Postgres PostgresConfig `yaml:"postgres" envPrefix:"POSTGRES_"`
	Cache    CacheConfig    `yaml:"cache" envPrefix:"CACHE_"`
	Game     GameConfig     `yaml:"game" envPrefix:"GAME_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Port            string   `yaml:"port" env:"PORT"`
	ReadTimeout     string   `yaml:"readTimeout" env:"READ_TIMEOUT"`
	WriteTimeout    string   `yaml:"writeTimeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout string   `yaml:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string `yaml:"allowedOrigins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	TTL      string `yaml:"ttl" env:"TTL"`
}

type PostgresConfig struct {
	URL string `yaml:"url" env:"URL"`
	// Timeout bounds connecting to Postgres and every statement run on it.
	Timeout string `yaml:"timeout" env:"TIMEOUT"`
}

// CacheConfig controls the in-process question set cache.
type CacheConfig struct {
	TTL string `yaml:"ttl" env:"TTL"`
}

type GameConfig struct {
	CategoryQuestionCount int `yaml:"categoryQuestionCount" env:"CATEGORY_QUESTION_COUNT"`
	DefaultWorldCupRounds int `yaml:"defaultWorldCupRounds" env:"DEFAULT_WORLDCUP_ROUNDS"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     "15s",
			WriteTimeout:    "15s",
			ShutdownTimeout: "5s",
			AllowedOrigins:  []string{"*"},
		},
		Redis:    RedisConfig{TTL: "24h"},
		Postgres: PostgresConfig{Timeout: "3s"},
		Cache:    CacheConfig{TTL: "1m"},
		Game:     GameConfig{CategoryQuestionCount: 10, DefaultWorldCupRounds: 8},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads YAML config from path on top of the defaults, then applies
// BALANCE_* environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from .env-style files into the process
// environment without overriding ones that are already set. Missing files
// are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
