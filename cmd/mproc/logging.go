package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"mproc/internal/config"
)

const logLevelEnvKey = "MPROC_LOG_LEVEL"

var logLevelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// configureLoggerForCLI installs the default logger. An invalid --log-level is
// an error; an invalid env or config value falls back to the default level and
// comes back as a warning for the caller to print.
func configureLoggerForCLI(flagLevel, configLevel string) (string, error) {
	envLevel := os.Getenv(logLevelEnvKey)
	raw, source := selectedLogLevel(flagLevel, envLevel, configLevel)

	level, err := parseLogLevel(raw)
	if err == nil {
		slog.SetDefault(newLogger(level))
		return "", nil
	}

	var warning string
	switch source {
	case "flag":
		return "", fmt.Errorf("invalid --log-level %q", flagLevel)
	case "env":
		warning = fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", logLevelEnvKey, envLevel, config.DefaultLogLevel)
	case "config":
		warning = fmt.Sprintf("warning: invalid log_level=%q; defaulting to %s", configLevel, config.DefaultLogLevel)
	}
	fallback, _ := parseLogLevel("")
	slog.SetDefault(newLogger(fallback))
	return warning, nil
}

// selectedLogLevel picks the first non-blank level: flag, then env, then config.
func selectedLogLevel(flagLevel, envLevel, configLevel string) (string, string) {
	candidates := []struct{ source, value string }{
		{"flag", flagLevel},
		{"env", envLevel},
		{"config", configLevel},
	}
	for _, c := range candidates {
		if strings.TrimSpace(c.value) != "" {
			return c.value, c.source
		}
	}
	return "", "default"
}

// parseLogLevel accepts level names (case-insensitive, "warning" included) or
// a numeric slog level. Blank means config.DefaultLogLevel.
func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		value = config.DefaultLogLevel
	}
	if level, ok := logLevelNames[value]; ok {
		return level, nil
	}
	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
