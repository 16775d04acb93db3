package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultLevel = zerolog.InfoLevel

var (
	rootLogger  zerolog.Logger
	initLogOnce sync.Once
)

// initRootLogger builds the process-wide logger. Output is JSON on stderr
// unless LOG_FORMAT=console requests the human-readable writer.
func initRootLogger() {
	var out io.Writer = os.Stderr
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "console") {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli}
	}

	level := defaultLevel
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(env)); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)

	rootLogger = zerolog.New(out).With().Timestamp().Logger()
}

// GetDefaultLogger returns the process-wide logger. Callers scope it with
// With().Str("component", ...).Logger().
func GetDefaultLogger() *zerolog.Logger {
	initLogOnce.Do(initRootLogger)
	return &rootLogger
}

// GetSubsystemLogger returns a child logger tagged with a component name.
func GetSubsystemLogger(subsystem string) *zerolog.Logger {
	l := GetDefaultLogger().With().Str("component", subsystem).Logger()
	return &l
}

// SetLevel adjusts the global log level at runtime. Unknown names are
// ignored rather than silencing the process.
func SetLevel(level string) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		GetDefaultLogger().Warn().Str("level", level).Msg("unknown log level")
		return
	}
	zerolog.SetGlobalLevel(parsed)
}
