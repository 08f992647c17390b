package bserver

import (
	"testing"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	for _, lvl := range []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel} {
		t.Run(lvl.String(), func(t *testing.T) {
			logger, err := NewLogger(BaseEnvironment{ServiceName: "test", LogLevel: lvl})
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}

			if !logger.Core().Enabled(lvl) {
				t.Errorf("level %s should be enabled", lvl)
			}
			if lvl > zapcore.DebugLevel && logger.Core().Enabled(lvl-1) {
				t.Errorf("level %s should be disabled", lvl-1)
			}
		})
	}
}

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewDispatchLogger(zap.New(core))

	tests := []struct {
		name    string
		log     func()
		message string
		level   zapcore.Level
	}{
		{
			name:    "unhandled serve error",
			log:     func() { logger.LogUnhandledServeError(errors.New("test serve error")) },
			message: "unhandled server error",
			level:   zapcore.ErrorLevel,
		},
		{
			name:    "implicit flush error",
			log:     func() { logger.LogImplicitFlushError(errors.New("test flush error")) },
			message: "error while flushing implicitly",
			level:   zapcore.ErrorLevel,
		},
		{
			name:    "panic",
			log:     func() { logger.LogPanic("boom", errors.New("handler panicked: boom")) },
			message: "handler panicked",
			level:   zapcore.ErrorLevel,
		},
		{
			name:    "upgrade error",
			log:     func() { logger.LogUpgradeError("websocket", errors.New("bad handshake")) },
			message: "upgraded connection failed",
			level:   zapcore.WarnLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.log()

			entries := logs.TakeAll()
			if len(entries) != 1 {
				t.Fatalf("expected 1 log entry, got %d", len(entries))
			}
			if entries[0].Message != tt.message {
				t.Errorf("unexpected message: %s", entries[0].Message)
			}
			if entries[0].LoggerName != "bdispatch" {
				t.Errorf("unexpected logger name: %s", entries[0].LoggerName)
			}
			if entries[0].Level != tt.level {
				t.Errorf("unexpected level: %s", entries[0].Level)
			}
		})
	}
}
