package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "LL_TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "LL_TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envValue)
			assert.Equal(t, tc.expected, getEnvOrDefault(tc.key, tc.defaultVal))
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "LL_TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "LL_TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "LL_TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envValue)
			assert.Equal(t, tc.expected, getEnvAsIntOrDefault(tc.key, tc.defaultVal))
		})
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	t.Setenv("LL_NONEXISTENT_REQUIRED_VAR", "")
	assert.Panics(t, func() { mustGetEnv("LL_NONEXISTENT_REQUIRED_VAR") })
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/lessonlab")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("PORT", "")
	t.Setenv("LESSON_API_URL", "")

	cfg := Load()
	require.NotNil(t, cfg)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, DefaultLessonAPIURL, cfg.LessonAPIURL)
	assert.Equal(t, "authenticated", cfg.JWTAudience)
	assert.Equal(t, "/login", cfg.WebFallbackPath)
	assert.False(t, cfg.IsProduction())
}

func TestLoadClient_UsesOverride(t *testing.T) {
	t.Setenv("LESSON_API_URL", "https://api.example.com")
	t.Setenv("LESSONLAB_SESSION_FILE", "/tmp/ll.json")

	cfg := LoadClient()
	assert.Equal(t, "https://api.example.com", cfg.LessonAPIURL)
	assert.Equal(t, "/tmp/ll.json", cfg.SessionFile)
}
