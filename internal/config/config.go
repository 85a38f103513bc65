package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// FirstMessageScope values control how the "First Message" auto-reply
// trigger counts prior inbound messages.
const (
	FirstMessageScopeAll        = "all"        // across every connection
	FirstMessageScopeConnection = "connection" // only the rule's connection
)

type Config struct {
	Port string

	// Postgres connection settings. When DBHost is empty the server falls
	// back to a local sqlite file at DBPath.
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string
	DBPath     string

	// Base URL of the external transport service (the node process that
	// owns the actual WhatsApp sessions).
	TransportURL     string
	TransportTimeout time.Duration

	FirstMessageScope string
	LogLevel          string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file loaded")
	}

	return &Config{
		Port:              getEnv("PORT", "8080"),
		DBHost:            getEnv("DB_HOST", ""),
		DBUser:            getEnv("DB_USER", "postgres"),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBName:            getEnv("DB_NAME", "whatsapp_dispatch"),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBSSLMode:         getEnv("DB_SSLMODE", "disable"),
		DBPath:            getEnv("DB_PATH", "./dispatch.db"),
		TransportURL:      getEnv("TRANSPORT_URL", "http://localhost:3000"),
		TransportTimeout:  getDuration("TRANSPORT_TIMEOUT", 5*time.Second),
		FirstMessageScope: getEnv("FIRST_MESSAGE_SCOPE", FirstMessageScopeAll),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", value).Msg("invalid duration, using default")
	}
	return fallback
}
