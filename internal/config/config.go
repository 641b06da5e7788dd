package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/spf13/viper"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Storage      StorageConfig
	Match        MatchConfig
	CORS         CORSConfig
	Logging      LoggingConfig
	GeminiAPIKey string
}

type ServerConfig struct {
	Host            string
	Port            int
	Env             string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	Channel  string
	// Pool serves PUBLISH calls; the subscription holds its own connection.
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
}

type JWTConfig struct {
	AccessSecret string
}

type StorageConfig struct {
	Type string
}

type MatchConfig struct {
	SeekerGender      domain.Gender
	CounterpartGender domain.Gender
	QueueTimeout      time.Duration
	SweepInterval     time.Duration
	HistoryLimit      int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LoggingConfig struct {
	Level string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_CHANNEL", "matchqueue:notify")
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 1)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("STORAGE_TYPE", StoragePostgres)
	v.SetDefault("MATCH_SEEKER_GENDER", string(domain.GenderFemale))
	v.SetDefault("MATCH_COUNTERPART_GENDER", string(domain.GenderMale))
	v.SetDefault("MATCH_QUEUE_TIMEOUT", "60s")
	v.SetDefault("MATCH_SWEEP_INTERVAL", "30s")
	v.SetDefault("MATCH_HISTORY_LIMIT", 100)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("LOG_LEVEL", "info")
}

// Load loads configuration from environment variables or .env file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	// Try to read from .env file, but don't fail if it doesn't exist
	_ = v.ReadInConfig()

	config := fromViper(v)

	// Validate critical configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Host:            v.GetString("SERVER_HOST"),
			Port:            v.GetInt("SERVER_PORT"),
			Env:             v.GetString("ENV"),
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSL_MODE"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			Channel:  v.GetString("REDIS_CHANNEL"),

			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
		},
		JWT: JWTConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Storage: StorageConfig{
			Type: strings.ToLower(v.GetString("STORAGE_TYPE")),
		},
		Match: MatchConfig{
			SeekerGender:      domain.Gender(v.GetString("MATCH_SEEKER_GENDER")),
			CounterpartGender: domain.Gender(v.GetString("MATCH_COUNTERPART_GENDER")),
			QueueTimeout:      v.GetDuration("MATCH_QUEUE_TIMEOUT"),
			SweepInterval:     v.GetDuration("MATCH_SWEEP_INTERVAL"),
			HistoryLimit:      v.GetInt("MATCH_HISTORY_LIMIT"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Logging: LoggingConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		GeminiAPIKey: v.GetString("GEMINI_API_KEY"),
	}
}

// Validate validates critical configuration values
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StoragePostgres:
		if c.Database.Host == "" {
			return errors.New("database host is required")
		}
		if c.Database.User == "" {
			return errors.New("database user is required")
		}
		if c.Database.DBName == "" {
			return errors.New("database name is required")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	if c.JWT.AccessSecret == "" {
		return errors.New("JWT access secret is required")
	}
	if len(c.JWT.AccessSecret) < 32 {
		return errors.New("JWT access secret must be at least 32 characters")
	}
	if !c.Match.SeekerGender.Valid() || !c.Match.CounterpartGender.Valid() {
		return errors.New("match genders must be male, female or other")
	}
	if c.Match.SeekerGender == c.Match.CounterpartGender {
		return errors.New("seeker and counterpart genders must differ")
	}
	if c.Match.QueueTimeout <= 0 {
		return errors.New("match queue timeout must be positive")
	}
	if c.Match.SweepInterval <= 0 {
		return errors.New("match sweep interval must be positive")
	}
	if c.Match.HistoryLimit <= 0 {
		return errors.New("match history limit must be positive")
	}
	if c.Redis.Enabled && c.Redis.Host == "" {
		return errors.New("redis host is required when redis is enabled")
	}
	return nil
}

func (c *MatchConfig) Roles() domain.Roles {
	return domain.Roles{Seeker: c.SeekerGender, Counterpart: c.CounterpartGender}
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// GetAddr returns Redis address
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
