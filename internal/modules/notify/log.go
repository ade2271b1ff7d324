// README: Log-only notifier for local runs without a push backend.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

type Log struct {
	log zerolog.Logger
}

func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Send(_ context.Context, m Message) error {
	if m.Token == "" {
		return ErrEmptyToken
	}
	l.log.Info().
		Str("token", m.Token).
		Str("order_id", string(m.Data.OrderID)).
		Str("assignment_id", string(m.Data.AssignmentID)).
		Float64("distance_km", m.Data.DistanceKm).
		Msg(m.Title)
	return nil
}
