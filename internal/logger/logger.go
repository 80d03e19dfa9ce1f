package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

var log = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init configures the global level and output format. Unknown levels fall back to info.
func Init(level, format string) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var out io.Writer = os.Stdout
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	log = zerolog.New(out).With().Timestamp().Logger()
	zlog.Logger = log

	if err != nil && level != "" {
		log.Warn().Err(err).Str("level", level).Msg("Invalid log level, defaulting to info")
	}
}

func GetLogger() *zerolog.Logger {
	return &log
}

// WithContext attaches the global logger to ctx so zerolog.Ctx finds it downstream.
func WithContext(ctx context.Context) context.Context {
	return log.WithContext(ctx)
}
