package config

import (
	"os"
	"time"
)

type Config struct {
	Port                    string
	Env                     string
	FirebaseCredentialsPath string
	StorageBucket           string
	PostgresConnStr         string
	MongoURI                string
	MongoDatabase           string
	RedisURL                string
	JWTSecret               string
	SessionTTL              time.Duration
	SessionIdleTimeout      time.Duration
	RequestTimeout          time.Duration
	AvatarBaseURL           string
	PreviewBaseURL          string
}

func Load() *Config {
	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		StorageBucket:           getEnv("STORAGE_BUCKET", ""),
		PostgresConnStr:         getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "nano_midea"),
		RedisURL:                getEnv("REDIS_URL", ""),
		JWTSecret:               getEnv("JWT_SECRET", ""),
		SessionTTL:              getEnvDuration("SESSION_TTL", 7*24*time.Hour),
		SessionIdleTimeout:      getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		RequestTimeout:          getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),
		AvatarBaseURL:           getEnv("AVATAR_BASE_URL", "https://ui-avatars.com/api/"),
		PreviewBaseURL:          getEnv("PREVIEW_BASE_URL", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
