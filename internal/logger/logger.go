package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the application logger instance
var Logger zerolog.Logger

// Init initializes the logger with the given level and format (json or console)
func Init(level, format string) zerolog.Logger {
	Logger = New(os.Stdout, level, format)
	log.Logger = Logger
	return Logger
}

// New builds a logger writing to w without touching the global one
func New(w io.Writer, level, format string) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLogLevel(level))

	if strings.ToLower(format) != "json" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(w).With().
		Timestamp().
		Caller().
		Logger()
}

// parseLogLevel parses string log level to zerolog level
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// GetLogger returns the configured logger instance
func GetLogger() zerolog.Logger {
	return Logger
}

// Asynq adapts a zerolog logger to asynq's Logger interface
type Asynq struct {
	Log zerolog.Logger
}

func (l Asynq) Debug(args ...interface{}) {
	l.Log.Debug().Msg(fmt.Sprint(args...))
}

func (l Asynq) Info(args ...interface{}) {
	l.Log.Info().Msg(fmt.Sprint(args...))
}

func (l Asynq) Warn(args ...interface{}) {
	l.Log.Warn().Msg(fmt.Sprint(args...))
}

func (l Asynq) Error(args ...interface{}) {
	l.Log.Error().Msg(fmt.Sprint(args...))
}

func (l Asynq) Fatal(args ...interface{}) {
	l.Log.Fatal().Msg(fmt.Sprint(args...))
}
