package rebind

import (
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ConfigureLogging routes the process's slog output to a rotating log file so
// substitution diagnostics do not interleave with test output. Rotation knobs
// come from config/env (REBIND_LOG_MAX_SIZE and friends).
//
// By default it logs at Info; if verbose is true it logs at Debug, which
// includes one line per Enter/Exit with the activation ID.
func ConfigureLogging(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = config.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(config.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    config.GetInt(logMaxSizeKey),
		MaxBackups: config.GetInt(logMaxBackupsKey),
		MaxAge:     config.GetInt(logMaxAgeKey),
		Compress:   config.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	slog.SetDefault(slog.New(handler))
}
