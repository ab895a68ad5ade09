package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	once         sync.Once
)

// Init initializes the global logger
func Init(level string) error {
	var err error
	once.Do(func() {
		globalLogger, err = newLogger(level)
	})
	return err
}

// Get returns the global logger instance
func Get() *zap.Logger {
	if globalLogger == nil {
		_ = Init(getDefaultLevel())
	}
	return globalLogger
}

// Sync flushes any buffered log entries
func Sync() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}

// User returns a field carrying a masked WhatsApp number. Full numbers never
// reach the logs.
func User(userID string) zap.Field {
	return zap.String("user", MaskPhone(userID))
}

// MaskPhone keeps the country code and the last four digits.
func MaskPhone(phone string) string {
	r := []rune(phone)
	if len(r) <= 6 {
		return phone
	}
	masked := make([]rune, len(r))
	for i := range r {
		if i < 2 || i >= len(r)-4 {
			masked[i] = r[i]
		} else {
			masked[i] = '*'
		}
	}
	return string(masked)
}

func newLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.MessageKey = "message"
	config.EncoderConfig.LevelKey = "level"
	config.EncoderConfig.CallerKey = "caller"
	config.InitialFields = map[string]interface{}{"service": "finbot"}

	return config.Build()
}

func getDefaultLevel() string {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		return level
	}
	return "info"
}
