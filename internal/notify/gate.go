package notify

import (
	"time"

	"github.com/rs/zerolog"
)

const defaultCadenceMinutes = 15

// Gate rate-limits outbound notifications by wall-clock minute, independent of
// how often analysis runs.
type Gate struct {
	cadence int
	logger  zerolog.Logger
}

func NewGate(cadenceMinutes int, logger zerolog.Logger) *Gate {
	if cadenceMinutes <= 0 {
		cadenceMinutes = defaultCadenceMinutes
	}
	return &Gate{
		cadence: cadenceMinutes,
		logger:  logger.With().Str("component", "notify-gate").Logger(),
	}
}

// CadenceMinutes returns the effective cadence.
func (g *Gate) CadenceMinutes() int {
	return g.cadence
}

// ShouldNotify is true when the minute of now is a multiple of the cadence.
func (g *Gate) ShouldNotify(now time.Time) bool {
	open := now.Minute()%g.cadence == 0
	g.logger.Debug().
		Time("at", now).
		Int("minute", now.Minute()).
		Int("cadence", g.cadence).
		Bool("open", open).
		Msg("gate check")
	return open
}
