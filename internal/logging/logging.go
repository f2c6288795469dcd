// Package logging builds the zerolog logger shared by every server in the
// binary, the way the teacher's ws/ server builds its logger from
// LOG_LEVEL and LOG_FORMAT.
package logging

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/pocams/protohackers/internal/config"
)

// New builds a zerolog.Logger configured per cfg.LogLevel / cfg.LogFormat.
func New(cfg config.Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var writer interface {
		Write([]byte) (int, error)
	} = os.Stdout

	if cfg.LogFormat == "console" {
		writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()

	return logger, nil
}
