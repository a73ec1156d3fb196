package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cogscreen-go/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var fileLevels = []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}

// NewConsole returns a console-only logger, used before the configuration
// is loaded and by short-lived CLI commands.
func NewConsole() *zap.Logger {
	return zap.New(newConsoleCore(zapcore.DebugLevel), zap.AddCaller())
}

// Init builds the server logger: one rotating JSON file per level under
// cfg.Directory, named <date>-<level>.log, plus a coloured console core
// filtered at cfg.ConsoleLevel.
func Init(cfg config.LoggingConfig) (*zap.Logger, error) {
	if cfg.Directory == "" {
		cfg.Directory = "logs"
	}
	consoleLevel := zapcore.DebugLevel
	if cfg.ConsoleLevel != "" {
		lvl, err := zapcore.ParseLevel(cfg.ConsoleLevel)
		if err != nil {
			return nil, fmt.Errorf("logging.console_level: %w", err)
		}
		consoleLevel = lvl
	}
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("could not create log directory: %w", err)
	}

	day := time.Now().Format("2006-01-02")
	cores := make([]zapcore.Core, 0, len(fileLevels)+1)
	for _, level := range fileLevels {
		cores = append(cores, newFileCore(cfg, filepath.Join(cfg.Directory, day+"-"+level.String()+".log"), level))
	}
	cores = append(cores, newConsoleCore(consoleLevel))

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// newFileCore writes entries of exactly one level to a rotating file.
func newFileCore(cfg config.LoggingConfig, fileName string, level zapcore.Level) zapcore.Core {
	encoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		MessageKey:   "message",
		LevelKey:     "level",
		TimeKey:      "time",
		CallerKey:    "caller",
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	})
	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   fileName,
		MaxSize:    cfg.MaxSize, // megabytes
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // days
		Compress:   cfg.Compress,
	})
	return zapcore.NewCore(encoder, writer, zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l == level
	}))
}

func newConsoleCore(min zapcore.Level) zapcore.Core {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		min,
	)
}
