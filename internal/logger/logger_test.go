package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKVs_RedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"access_token", "abc",
		"Password", "hunter2",
		"topic", "Fractions",
		"value", "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMjM0NTY3ODkwIn0.sig",
	})

	assert.Equal(t, []interface{}{
		"access_token", "[REDACTED]",
		"Password", "[REDACTED]",
		"topic", "Fractions",
		"value", "[REDACTED]",
	}, out)
}

func TestSanitizeKVs_OddLengthKeepsTrailingKey(t *testing.T) {
	out := sanitizeKVs([]interface{}{"grade", "5", "dangling"})
	assert.Equal(t, []interface{}{"grade", "5", "dangling"}, out)
}

func TestNop_DoesNotPanic(t *testing.T) {
	l := Nop().With("lesson_id", "x")
	l.Info("generated", "duration", 45)
	l.Sync()
}
