package logger

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope(t *testing.T) {
	tests := []struct {
		name  string
		scope string
		want  string
	}{
		{"basic scope", "transcriber", "transcriber"},
		{"nested scope", "workflow.embed", "workflow.embed"},
		{"empty scope", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr := Scope(tt.scope)
			assert.Equal(t, "scope", attr.Key)
			assert.Equal(t, tt.want, attr.Value.String())
		})
	}
}

func TestErrorAttr(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"simple error", errors.New("boom")},
		{"nil error", nil},
		{"joined error", errors.Join(errors.New("outer"), errors.New("inner"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr := Error(tt.err)
			require.Equal(t, "error", attr.Key)
			assert.Equal(t, tt.err, attr.Value.Any())
		})
	}
}

func withEnv(t *testing.T, key, value string) {
	t.Helper()
	orig, had := os.LookupEnv(key)
	if value == "" {
		os.Unsetenv(key)
	} else {
		os.Setenv(key, value)
	}
	t.Cleanup(func() {
		if had {
			os.Setenv(key, orig)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestNewLogger_DefaultIsInfo(t *testing.T) {
	withEnv(t, "LOG_LEVEL", "")
	withEnv(t, "GO_ENV", "")

	log := NewLogger()
	require.NotNil(t, log)
	assert.True(t, log.Enabled(nil, slog.LevelInfo))
	assert.False(t, log.Enabled(nil, slog.LevelDebug))
}

func TestNewLogger_Levels(t *testing.T) {
	cases := []struct {
		level     string
		enabled   slog.Level
		disabled  slog.Level
		hasDisabled bool
	}{
		{"debug", slog.LevelDebug, 0, false},
		{"warn", slog.LevelWarn, slog.LevelInfo, true},
		{"warning", slog.LevelWarn, slog.LevelInfo, true},
		{"error", slog.LevelError, slog.LevelWarn, true},
		{"info", slog.LevelInfo, slog.LevelDebug, true},
		{"DEBUG", slog.LevelDebug, 0, false},
		{"dEbUg", slog.LevelDebug, 0, false},
		{"invalid", slog.LevelInfo, slog.LevelDebug, true},
	}

	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			withEnv(t, "LOG_LEVEL", tc.level)
			log := NewLogger()
			require.NotNil(t, log)
			assert.True(t, log.Enabled(nil, tc.enabled))
			if tc.hasDisabled {
				assert.False(t, log.Enabled(nil, tc.disabled))
			}
		})
	}
}

func TestNewLogger_ProductionUsesJSON(t *testing.T) {
	withEnv(t, "LOG_LEVEL", "")
	withEnv(t, "GO_ENV", "production")

	log := NewLogger()
	require.NotNil(t, log)
	assert.True(t, log.Enabled(nil, slog.LevelInfo))
	_, isJSON := log.Handler().(*slog.JSONHandler)
	assert.True(t, isJSON, "GO_ENV=production must select the JSON handler")
}
