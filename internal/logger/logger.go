// Package logger is the process-wide tagged console logger.
//
// Every message carries a short tag naming the subsystem ("ESI", "DB", "Resolver", ...).
// Output goes through zerolog: a human-readable console writer by default, JSON lines
// when configured for machine consumption.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = newLogger(zerolog.InfoLevel, "console")
)

// stdout resolves os.Stdout on every write so redirections after init are honoured.
type stdout struct{}

func (stdout) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func newLogger(level zerolog.Level, format string) zerolog.Logger {
	var out io.Writer = stdout{}
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Setup replaces the process logger. level is one of debug, info, warn, error;
// format is "console" or "json".
func Setup(level, format string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	l := newLogger(lvl, format)
	mu.Lock()
	log = l
	mu.Unlock()
	return nil
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := log
	return &l
}

// Debug logs verbose diagnostics.
func Debug(tag, msg string) {
	current().Debug().Str("tag", tag).Msg(msg)
}

// Info logs a progress message.
func Info(tag, msg string) {
	current().Info().Str("tag", tag).Msg(msg)
}

// Success logs a completed step.
func Success(tag, msg string) {
	current().Info().Str("tag", tag).Bool("ok", true).Msg(msg)
}

// Warn logs a skipped or degraded unit of work.
func Warn(tag, msg string) {
	current().Warn().Str("tag", tag).Msg(msg)
}

// Error logs a failure.
func Error(tag, msg string) {
	current().Error().Str("tag", tag).Msg(msg)
}

// Banner prints the startup banner.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	current().Info().Str("version", version).Msg("=== EVE Market Analyzer ===")
}

// Section marks the start of a run phase.
func Section(title string) {
	current().Info().Str("tag", "Run").Msg("--- " + title + " ---")
}

// Stats logs a single key/value statistic.
func Stats(key string, value interface{}) {
	current().Info().Str("tag", "Stats").Interface(key, value).Msg(key)
}

// Server logs the listen address of the query service.
func Server(addr string) {
	current().Info().Str("tag", "Server").Str("addr", addr).Msg("listening on http://" + addr)
}
