package logger

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewLoggerLevelFromEnv(t *testing.T) {
	tests := []struct {
		env    string
		expect logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"bogus", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Setenv("LOG_LEVEL", tt.env)
		l := NewLogger()
		assert.Equal(t, tt.expect, l.GetLevel(), "LOG_LEVEL=%q", tt.env)
	}
}

func TestNewLoggerUsesJSON(t *testing.T) {
	l := NewLogger()
	assert.IsType(t, &logrus.JSONFormatter{}, l.Formatter)
}

func TestNewNopLoggerDiscards(t *testing.T) {
	l := NewNopLogger()
	assert.Equal(t, io.Discard, l.Out)
	assert.NotPanics(t, func() {
		l.WithField("k", "v").Warn("dropped")
	})
}
