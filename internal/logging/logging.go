package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"spng.adpollak.net/internal/oops"
)

func init() {
	zerolog.ErrorStackMarshaler = oops.ZerologStackMarshaler
	log.Logger = log.Output(NewConsoleWriter(os.Stderr))
}

// NewConsoleWriter is the human readable output used by the command line
// tools.
func NewConsoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.TimeOnly,
	}
}

// SetLevel parses a level name such as "debug" and applies it globally.
// An empty name leaves the default of info.
func SetLevel(name string) error {
	if name == "" {
		name = zerolog.InfoLevel.String()
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return oops.New(oops.UsageError, oops.CodeInvalidArg, err, "log level %q", name)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

func GlobalLogger() *zerolog.Logger {
	return &log.Logger
}

func Debug() *zerolog.Event {
	return log.Debug().Timestamp()
}

func Info() *zerolog.Event {
	return log.Info().Timestamp()
}

// Error logs with the error's stack when it carries one.
func Error() *zerolog.Event {
	return log.Error().Timestamp().Stack()
}
