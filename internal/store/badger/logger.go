package badger

import (
	"strings"

	"github.com/rs/zerolog"
)

// zerologAdapter routes badger's internal logging through zerolog.
type zerologAdapter struct {
	log zerolog.Logger
}

func newLogger(logger *zerolog.Logger) *zerologAdapter {
	if logger == nil {
		return &zerologAdapter{log: zerolog.Nop()}
	}
	return &zerologAdapter{log: logger.With().Str("component", "badger").Logger()}
}

func (l *zerologAdapter) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(strings.TrimSuffix(format, "\n"), args...)
}

func (l *zerologAdapter) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msgf(strings.TrimSuffix(format, "\n"), args...)
}

func (l *zerologAdapter) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf(strings.TrimSuffix(format, "\n"), args...)
}

func (l *zerologAdapter) Debugf(format string, args ...interface{}) {
	l.log.Debug().Msgf(strings.TrimSuffix(format, "\n"), args...)
}
