package database

import (
	"testing"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]gormlogger.LogLevel{
		"silent": gormlogger.Silent,
		"error":  gormlogger.Error,
		"info":   gormlogger.Info,
		"warn":   gormlogger.Warn,
		"":       gormlogger.Warn,
		"debug":  gormlogger.Warn,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) 期望 %v，实际 %v", in, want, got)
		}
	}
}

func TestPositiveOr(t *testing.T) {
	if got := positiveOr(0, defaultMaxOpenConns); got != 25 {
		t.Errorf("期望默认值 25，实际 %d", got)
	}
	if got := positiveOr(-3, defaultMaxIdleConns); got != 10 {
		t.Errorf("期望默认值 10，实际 %d", got)
	}
	if got := positiveOr(40, defaultMaxOpenConns); got != 40 {
		t.Errorf("期望 40，实际 %d", got)
	}
}

func TestNewGormLogger(t *testing.T) {
	if l := newGormLogger(zap.NewNop(), gormlogger.Info); l == nil {
		t.Fatal("gorm logger 不应为 nil")
	}
}
