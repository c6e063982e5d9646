package utils

import (
	"os"

	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Logger
	// Log is the shared entry every package logs through.
	Log *logrus.Entry
)

// Initialized here so tests and library callers get a usable logger without
// going through a main function.
func init() {
	InitLogger("yap-client", os.Getenv("LOG_LEVEL"))
}

// InitLogger (re)configures the shared logger. An unparsable level falls back
// to info.
func InitLogger(service string, level string) {
	logger = logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	Log = logger.WithFields(logrus.Fields{"service": service})
}

// SetLevel changes the level of the shared logger.
func SetLevel(level logrus.Level) {
	logger.SetLevel(level)
}
