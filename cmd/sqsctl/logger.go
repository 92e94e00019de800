package main

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

func newLogger(out io.Writer, level zerolog.Level) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(level).With().Timestamp().Str("app", "sqsctl").Logger()
}

// clientLogger adapts a zerolog.Logger to sqs.Logger. Arguments are
// alternating keys and values, as with log/slog.
type clientLogger struct {
	logger zerolog.Logger
}

func (l clientLogger) Debug(msg string, args ...any) { l.logger.Debug().Fields(args).Msg(msg) }
func (l clientLogger) Info(msg string, args ...any)  { l.logger.Info().Fields(args).Msg(msg) }
func (l clientLogger) Warn(msg string, args ...any)  { l.logger.Warn().Fields(args).Msg(msg) }
func (l clientLogger) Error(msg string, args ...any) { l.logger.Error().Fields(args).Msg(msg) }
