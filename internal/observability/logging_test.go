package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nexusmfg/traveler/internal/config"
	"github.com/nexusmfg/traveler/model"
)

// newTestLogger creates a logger that writes JSON to a buffer for assertion.
func newTestLogger(buf *bytes.Buffer) *zap.Logger {
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "msg",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	})
	core := zapcore.NewCore(enc, zapcore.AddSync(buf), zapcore.DebugLevel)
	return zap.New(core)
}

func TestNewLogger_defaultLevel(t *testing.T) {
	cfg := config.ObservabilityConfig{LogLevel: "info"}
	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer logger.Sync()

	// Info should be enabled, Debug should not.
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info level should be enabled")
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug level should NOT be enabled at info level")
	}
}

func TestNewLogger_invalidLevel_defaultsToInfo(t *testing.T) {
	cfg := config.ObservabilityConfig{LogLevel: "not-a-level"}
	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer logger.Sync()

	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info level should be enabled")
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug level should NOT be enabled for an invalid level")
	}
}

func TestLoggerFrom_fallback(t *testing.T) {
	fallback := zap.NewNop()
	got := LoggerFrom(context.Background(), fallback)
	if got != fallback {
		t.Error("expected the fallback logger when no logger is in context")
	}
}

func TestWithLogger_roundTrip(t *testing.T) {
	logger := zap.NewNop()
	ctx := WithLogger(context.Background(), logger)
	if got := LoggerFrom(ctx, nil); got != logger {
		t.Error("expected the stored logger back from context")
	}
}

func TestRequestLogger_includesActorFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	actor := &model.Actor{
		UserID:        7,
		Username:      "jdoe",
		Role:          model.RoleOperator,
		CorrelationID: "corr-123",
		TraceID:       "trace-abc",
	}
	ctx := model.WithActor(WithLogger(context.Background(), logger), actor)

	RequestLogger(ctx, zap.NewNop()).Info("traveler created")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["username"] != "jdoe" {
		t.Errorf("username = %v, want jdoe", entry["username"])
	}
	if entry["role"] != "OPERATOR" {
		t.Errorf("role = %v, want OPERATOR", entry["role"])
	}
	if entry["correlation_id"] != "corr-123" {
		t.Errorf("correlation_id = %v, want corr-123", entry["correlation_id"])
	}
	if entry["trace_id"] != "trace-abc" {
		t.Errorf("trace_id = %v, want trace-abc", entry["trace_id"])
	}
}

func TestRequestLogger_noActor(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	ctx := WithLogger(context.Background(), logger)

	RequestLogger(ctx, zap.NewNop()).Info("startup")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if _, ok := entry["username"]; ok {
		t.Error("no actor fields expected without an actor in context")
	}
}
