package grid

import (
	"log/slog"
	"os"
	"sync/atomic"
)

var logLevel = new(slog.LevelVar)

var customLogger atomic.Pointer[slog.Logger]

// ConfigureLogging sets up the global default logger with a TextHandler
// and configures the log level based on the GRID_LOG_LEVEL environment variable.
// It defaults to Info level if not specified.
//
// This function should be called by the application at startup if it wants
// to use the default logging configuration.
func ConfigureLogging() {
	logLevel.Set(slog.LevelInfo)

	switch os.Getenv("GRID_LOG_LEVEL") {
	case "DEBUG":
		logLevel.Set(slog.LevelDebug)
	case "WARN":
		logLevel.Set(slog.LevelWarn)
	case "ERROR":
		logLevel.Set(slog.LevelError)
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// SetLogLevel sets the logging level for the logger configured by ConfigureLogging.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// SetLogger replaces the logger used by the grid packages. Passing nil
// reverts to slog.Default().
func SetLogger(l *slog.Logger) {
	customLogger.Store(l)
}

// Logger returns the logger used by the grid packages.
func Logger() *slog.Logger {
	if l := customLogger.Load(); l != nil {
		return l
	}
	return slog.Default()
}
