package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func resetState() {
	mutex.Lock()
	defer mutex.Unlock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"session": "debug",
			"server":  "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"session", true, true, true},
		{"server", false, false, true},
		{"sink", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("module %q: Debug enabled = %v, want %v", tt.module, got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("module %q: Info enabled = %v, want %v", tt.module, got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("module %q: Warn enabled = %v, want %v", tt.module, got, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState()

	before := GetLogger("session")
	if before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize should default to info")
	}

	Initialize(Config{Level: "info", Format: "text", Modules: map[string]string{"session": "debug"}})

	after := GetLogger("session")
	if !after.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger after Initialize should have debug enabled")
	}
}

func TestReconfigureUpdatesExistingLoggers(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info", Format: "text"})

	logger := GetLogger("session")
	if logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be disabled initially")
	}

	Reconfigure(Config{Level: "info", Modules: map[string]string{"session": "debug"}})
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be enabled after Reconfigure without fetching a new logger")
	}
	if GetLogger("session") != logger {
		t.Error("Reconfigure must not replace cached loggers")
	}

	Reconfigure(Config{Level: "error"})
	if logger.Handler().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be disabled after global level raised to error")
	}
}

func TestMultiHandlerDebugOutput(t *testing.T) {
	var buf bytes.Buffer

	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debugHandler, infoHandler)).With("module", "test")
	logger.Debug("debug only message")
	logger.Info("info message")

	output := buf.String()
	if count := strings.Count(output, "debug only message"); count != 1 {
		t.Errorf("expected 1 debug message, got %d. Output: %s", count, output)
	}
	if count := strings.Count(output, "info message"); count != 2 {
		t.Errorf("expected 2 info messages, got %d. Output: %s", count, output)
	}
	if !strings.Contains(output, "module=test") {
		t.Errorf("WithAttrs not propagated. Output: %s", output)
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("boom") }

func TestMultiHandlerContinuesAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	text := slog.NewTextHandler(&buf, nil)
	multi := NewMultiHandler(failingHandler{text}, text)

	err := multi.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0))
	if err == nil {
		t.Error("expected joined error from failing handler")
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Error("second handler did not receive the record")
	}
}

func TestAddAttrToFields(t *testing.T) {
	fields := map[string]string{}
	addAttrToFields(fields, slog.String("session_id", "abc"), nil)
	addAttrToFields(fields, slog.Int("frames", 12), nil)
	addAttrToFields(fields, slog.Bool("flip", true), []string{"transform"})
	addAttrToFields(fields, slog.Group("size", slog.Int("w", 640)), nil)

	want := map[string]string{
		"SESSION_ID":     "abc",
		"FRAMES":         "12",
		"TRANSFORM_FLIP": "true",
		"SIZE_W":         "640",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%q] = %q, want %q", k, fields[k], v)
		}
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{" info ", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			if tt.isNil {
				if got != nil {
					t.Errorf("parseLevel(%q) = %v, want nil", tt.input, *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
