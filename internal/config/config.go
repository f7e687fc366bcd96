package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Redis      RedisConfig
	LLM        LLMConfig
	Extracting ExtractingConfig
	Log        LogConfig
	CORS       CORSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// RedisConfig holds the connection settings for the vector store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LLMConfig holds completion and embedding service settings.
type LLMConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	APIKey           string `mapstructure:"api_key"`
	DefaultModel     string `mapstructure:"default_model"`
	EmbeddingModel   string `mapstructure:"embedding_model"`
	TransportRetries int    `mapstructure:"transport_retries"`
	TimeoutSecs      int    `mapstructure:"timeout_secs"`
}

// ExtractingConfig holds extraction pipeline settings.
type ExtractingConfig struct {
	ConfigRoot        string `mapstructure:"config_root"`
	GroupConcurrency  int    `mapstructure:"group_concurrency"`
	BatchConcurrency  int    `mapstructure:"batch_concurrency"`
	ValidationRetries int    `mapstructure:"validation_retries"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads configuration from environment variables with the DOCSIFT_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DOCSIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "docsift")
	v.SetDefault("db.password", "docsift_secret")
	v.SetDefault("db.name", "docsift_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// LLM defaults
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.default_model", "gpt-4o")
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
	v.SetDefault("llm.transport_retries", 3)
	v.SetDefault("llm.timeout_secs", 120)

	// Extracting defaults
	v.SetDefault("extracting.config_root", "./config/extracting")
	v.SetDefault("extracting.group_concurrency", 4)
	v.SetDefault("extracting.batch_concurrency", 4)
	v.SetDefault("extracting.validation_retries", 2)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                   "DOCSIFT_SERVER_PORT",
		"server.read_timeout":           "DOCSIFT_SERVER_READ_TIMEOUT",
		"server.write_timeout":          "DOCSIFT_SERVER_WRITE_TIMEOUT",
		"server.environment":            "DOCSIFT_SERVER_ENVIRONMENT",
		"db.host":                       "DOCSIFT_DB_HOST",
		"db.port":                       "DOCSIFT_DB_PORT",
		"db.user":                       "DOCSIFT_DB_USER",
		"db.password":                   "DOCSIFT_DB_PASSWORD",
		"db.name":                       "DOCSIFT_DB_NAME",
		"db.sslmode":                    "DOCSIFT_DB_SSLMODE",
		"db.max_open":                   "DOCSIFT_DB_MAX_OPEN",
		"db.max_idle":                   "DOCSIFT_DB_MAX_IDLE",
		"redis.addr":                    "DOCSIFT_REDIS_ADDR",
		"redis.password":                "DOCSIFT_REDIS_PASSWORD",
		"redis.db":                      "DOCSIFT_REDIS_DB",
		"llm.base_url":                  "DOCSIFT_LLM_BASE_URL",
		"llm.api_key":                   "DOCSIFT_LLM_API_KEY",
		"llm.default_model":             "DOCSIFT_LLM_DEFAULT_MODEL",
		"llm.embedding_model":           "DOCSIFT_LLM_EMBEDDING_MODEL",
		"llm.transport_retries":         "DOCSIFT_LLM_TRANSPORT_RETRIES",
		"llm.timeout_secs":              "DOCSIFT_LLM_TIMEOUT_SECS",
		"extracting.config_root":        "DOCSIFT_EXTRACTING_CONFIG_ROOT",
		"extracting.group_concurrency":  "DOCSIFT_EXTRACTING_GROUP_CONCURRENCY",
		"extracting.batch_concurrency":  "DOCSIFT_EXTRACTING_BATCH_CONCURRENCY",
		"extracting.validation_retries": "DOCSIFT_EXTRACTING_VALIDATION_RETRIES",
		"log.level":                     "DOCSIFT_LOG_LEVEL",
		"log.format":                    "DOCSIFT_LOG_FORMAT",
		"cors.allowed_origins":          "DOCSIFT_CORS_ALLOWED_ORIGINS",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if DOCSIFT_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("DOCSIFT_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.Redis = RedisConfig{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}
	cfg.LLM = LLMConfig{
		BaseURL:          v.GetString("llm.base_url"),
		APIKey:           v.GetString("llm.api_key"),
		DefaultModel:     v.GetString("llm.default_model"),
		EmbeddingModel:   v.GetString("llm.embedding_model"),
		TransportRetries: v.GetInt("llm.transport_retries"),
		TimeoutSecs:      v.GetInt("llm.timeout_secs"),
	}
	cfg.Extracting = ExtractingConfig{
		ConfigRoot:        v.GetString("extracting.config_root"),
		GroupConcurrency:  v.GetInt("extracting.group_concurrency"),
		BatchConcurrency:  v.GetInt("extracting.batch_concurrency"),
		ValidationRetries: v.GetInt("extracting.validation_retries"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: corsOrigins,
	}

	return cfg, nil
}
