// Package logging builds the process logger and adapts it for whatsmeow.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// New returns a zerolog logger. format is "json" or "console"; anything
// else falls back to console output.
func New(level, format string, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var w io.Writer = out
	if strings.ToLower(format) != "json" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

type waLogger struct {
	base   zerolog.Logger
	log    zerolog.Logger
	module string
}

// WA exposes logger as a whatsmeow logger tagged with module.
func WA(logger zerolog.Logger, module string) waLog.Logger {
	return &waLogger{
		base:   logger,
		log:    logger.With().Str("module", module).Logger(),
		module: module,
	}
}

func (l *waLogger) Warnf(msg string, args ...interface{}) {
	l.log.Warn().Msg(fmt.Sprintf(msg, args...))
}
func (l *waLogger) Errorf(msg string, args ...interface{}) {
	l.log.Error().Msg(fmt.Sprintf(msg, args...))
}
func (l *waLogger) Infof(msg string, args ...interface{}) {
	l.log.Info().Msg(fmt.Sprintf(msg, args...))
}
func (l *waLogger) Debugf(msg string, args ...interface{}) {
	l.log.Debug().Msg(fmt.Sprintf(msg, args...))
}

func (l *waLogger) Sub(module string) waLog.Logger {
	return WA(l.base, l.module+"/"+module)
}
