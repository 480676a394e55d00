package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig    Config
	globalLevelVar  = &slog.LevelVar{} // default level
	isInitialized   bool
	mutex           sync.RWMutex
)

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// Initialize sets up the logging system. Loggers handed out before this call
// are rebuilt so they pick up the configured format and outputs.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	isInitialized = true

	globalLevelVar.Set(levelOrDefault(config.Level, slog.LevelInfo))

	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(config, module))
		moduleLoggers[module] = slog.New(createHandler(config.Format, levelVar)).With("module", module)
	}

	slog.SetDefault(slog.New(createHandler(config.Format, globalLevelVar)))
}

// Reconfigure applies new global and per-module levels to every existing
// logger without rebuilding handlers. The output format is fixed at Initialize.
func Reconfigure(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	config.Format = globalConfig.Format
	globalConfig = config

	globalLevelVar.Set(levelOrDefault(config.Level, slog.LevelInfo))
	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(config, module))
	}
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	if logger, exists := moduleLoggers[module]; exists {
		mutex.RUnlock()
		return logger
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()

	// Double-check in case another goroutine created it
	if logger, exists := moduleLoggers[module]; exists {
		return logger
	}

	levelVar := &slog.LevelVar{}
	format := "text"
	if isInitialized {
		levelVar.Set(moduleLevel(globalConfig, module))
		format = globalConfig.Format
	} else {
		levelVar.Set(slog.LevelInfo)
	}

	logger := slog.New(createHandler(format, levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

// moduleLevel resolves the effective level of module under config.
func moduleLevel(config Config, module string) slog.Level {
	level := levelOrDefault(config.Level, slog.LevelInfo)
	if levelStr, exists := config.Modules[module]; exists {
		level = levelOrDefault(levelStr, level)
	}
	return level
}

func levelOrDefault(level string, fallback slog.Level) slog.Level {
	if parsed := parseLevel(level); parsed != nil {
		return *parsed
	}
	return fallback
}

// createHandler creates a slog handler with the specified format and level.
// Logs go to stdout and, when available, the systemd journal.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdoutHandler slog.Handler
	if format == "json" {
		stdoutHandler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdoutHandler = slog.NewTextHandler(os.Stdout, opts)
	}

	var handlers []slog.Handler
	if isStdoutAvailable() {
		handlers = append(handlers, stdoutHandler)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}

	switch len(handlers) {
	case 0:
		return stdoutHandler // Fallback
	case 1:
		return handlers[0]
	default:
		return NewMultiHandler(handlers...)
	}
}

// isStdoutAvailable checks if stdout is connected to a terminal, pipe, socket, or file.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	// Available if terminal, pipe, socket, or regular file (not /dev/null which is ModeDevice)
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}
