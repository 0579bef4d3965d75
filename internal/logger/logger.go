package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"clinsight/internal/config"
)

// Init configures the global zerolog logger from cfg. Console format is
// meant for local development; anything else writes JSON lines.
func Init(cfg config.LogConfig, environment string) {
	InitWithWriter(cfg, environment, os.Stdout)
}

// InitWithWriter is Init with an explicit output.
func InitWithWriter(cfg config.LogConfig, environment string, out io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	if strings.EqualFold(cfg.Format, "console") {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}).With().
			Timestamp().
			Str("service", "clinsight").
			Logger()
		return
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(out).
		With().
		Timestamp().
		Caller().
		Str("service", "clinsight").
		Str("env", environment).
		Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
