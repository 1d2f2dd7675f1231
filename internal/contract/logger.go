package contract

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Log format names accepted by NewLogger.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

var (
	rootLogger     *logrus.Logger
	rootLoggerOnce sync.Once
)

// NewLogger creates a logrus logger writing to out with the given level and format.
func NewLogger(out io.Writer, level logrus.Level, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(level)
	log.SetFormatter(newFormatter(format))
	return log
}

func newFormatter(format string) logrus.Formatter {
	if format == LogFormatJSON {
		return &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		}
	}
	return &logrus.TextFormatter{FullTimestamp: true}
}

// Logger returns the CLI's root logger. It writes info level text to stderr
// until ConfigureLogger is called.
func Logger() *logrus.Logger {
	rootLoggerOnce.Do(func() {
		rootLogger = NewLogger(os.Stderr, logrus.InfoLevel, LogFormatText)
	})
	return rootLogger
}

// ConfigureLogger applies the validated config to the root logger.
func ConfigureLogger(cfg *Config) *logrus.Logger {
	log := Logger()
	log.SetLevel(cfg.LogLevel)
	log.SetFormatter(newFormatter(cfg.LogFormat))
	return log
}

// NopLogger returns a logger that discards everything.
func NopLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
