package rebind

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"gooze.dev/pkg/rebind/internal/access"
)

const (
	configBaseName   = "rebind"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	envPrefix = "REBIND"

	lockModeKey = "lock.mode"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLockMode = string(access.LockOff)

	defaultLogFilename   = ".rebind.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

// config is a private viper instance so the library never collides with the
// host test suite's own viper globals.
var config = viper.New()

func init() {
	config.SetConfigName(configBaseName)
	config.SetConfigType("yaml")
	config.AddConfigPath(configFolderPath)
	config.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	config.AutomaticEnv()
	config.SetEnvPrefix(envPrefix)
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	config.SetDefault(lockModeKey, defaultLockMode)

	config.SetDefault(logFilenameKey, defaultLogFilename)
	config.SetDefault(logLevelKey, defaultLogLevel)
	config.SetDefault(logVerboseKey, defaultLogVerbose)
	config.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	config.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	config.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	config.SetDefault(logCompressKey, defaultLogCompress)

	if err := config.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Debug("Failed to read rebind config file", "file", configFileName, "error", err)
		}
	}
}

// lockMode reads the configured per-binding lock mode. It is consulted on
// every Enter so env overrides apply without re-building scopes.
func lockMode() access.LockMode {
	return access.ParseLockMode(config.GetString(lockModeKey))
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}
