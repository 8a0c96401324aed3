package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	ServerPort string

	// Matcher по умолчанию для юнитов без явной настройки
	DefaultMatcher string

	// Окно, после которого назначенное ревью считается протухшим
	ReviewWindow time.Duration

	// Период запуска Expiry Sweeper'а
	SweepInterval time.Duration
}

func LoadConfig() (Config, error) {

	err := godotenv.Load()

	return Config{
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "password"),
		DBName:         getEnv("DB_NAME", "peer_review"),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		DefaultMatcher: getEnv("MATCHER", "peer"),
		ReviewWindow:   getDurationEnv("REVIEW_WINDOW", 72*time.Hour),
		SweepInterval:  getDurationEnv("SWEEP_INTERVAL", 10*time.Minute),
	}, err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
