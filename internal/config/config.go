package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret   string
	JWTAudience string

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int

	// Lesson API (consumed by the web pages and the CLI)
	LessonAPIURL      string
	GenerateRateLimit int

	// Web
	FrontendURL     string
	WebFallbackPath string
	MigrationsDir   string
}

// ClientConfig is the subset needed by tools that only talk to the lesson API.
type ClientConfig struct {
	LessonAPIURL string
	SessionFile  string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8000"),
		Env:                  getEnvOrDefault("ENV", "development"),
		DatabaseURL:          mustGetEnv("DATABASE_URL"),
		RedisURL:             mustGetEnv("REDIS_URL"),
		JWTSecret:            mustGetEnv("JWT_SECRET"),
		JWTAudience:          getEnvOrDefault("JWT_AUDIENCE", "authenticated"),
		GeminiAPIKey:         mustGetEnv("GEMINI_API_KEY"),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		LessonAPIURL:         getEnvOrDefault("LESSON_API_URL", DefaultLessonAPIURL),
		GenerateRateLimit:    getEnvAsIntOrDefault("GENERATE_RATE_LIMIT", 10),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),
		WebFallbackPath:      getEnvOrDefault("WEB_FALLBACK_PATH", "/login"),
		MigrationsDir:        getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
	}

	return cfg
}

// DefaultLessonAPIURL is the local address the API listens on by default.
const DefaultLessonAPIURL = "http://localhost:8000"

// LoadClient never panics; every key has a default.
func LoadClient() *ClientConfig {
	godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return &ClientConfig{
		LessonAPIURL: getEnvOrDefault("LESSON_API_URL", DefaultLessonAPIURL),
		SessionFile:  getEnvOrDefault("LESSONLAB_SESSION_FILE", home+"/.lessonlab/session.json"),
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
