package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/assettrack/internal/apperr"
	"github.com/wolfeidau/assettrack/internal/tenant"
)

func Setup(dev bool) zerolog.Logger {
	logger := New(os.Stderr, dev)

	// loggers pulled from a context without one attached fall back to this
	zerolog.DefaultContextLogger = &logger

	return logger
}

func New(out io.Writer, dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(out).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

// Commands logs the outcome and duration of every command run through it.
type Commands struct {
	logger zerolog.Logger
}

func NewCommands(logger zerolog.Logger) *Commands {
	return &Commands{logger: logger}
}

// Run attaches a command scoped logger to ctx and calls fn with it.
func (c *Commands) Run(ctx context.Context, command string, fn func(ctx context.Context) error) error {
	started := time.Now()

	lctx := c.logger.With().Str("command", command)
	if name, ok := tenant.FromContext(ctx); ok {
		lctx = lctx.Str("tenant", name)
	}
	ctx = lctx.Logger().WithContext(ctx)

	err := fn(ctx)
	if err != nil {
		code, _ := apperr.Public(err)
		event := zerolog.Ctx(ctx).Error()
		if kind := apperr.KindOf(err); kind == apperr.KindValidation || kind == apperr.KindNotFound || kind == apperr.KindBusinessRule {
			event = zerolog.Ctx(ctx).Warn()
		}
		event.Err(err).
			Str("code", code).
			Dur("duration", time.Since(started)).
			Msg("command failed")

		return err
	}

	zerolog.Ctx(ctx).Info().
		Dur("duration", time.Since(started)).
		Msg("command finished")

	return nil
}
