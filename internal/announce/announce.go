// Package announce forwards resolved transcriptions to places other than the
// client that produced them: remote viewers on the LAN and a Discord channel.
package announce

import (
	"context"
	"log/slog"

	"github.com/MrWong99/pulpit/internal/resolve"
)

// Sink receives every resolved transcription of every session.
type Sink interface {
	Name() string
	Announce(ctx context.Context, res resolve.Result) error
}

// Announcer fans a result out to all sinks. A failing sink is logged and
// does not affect the others.
type Announcer struct {
	sinks []Sink
}

// New creates an Announcer. Nil sinks are skipped.
func New(sinks ...Sink) *Announcer {
	a := &Announcer{}
	for _, s := range sinks {
		if s != nil {
			a.sinks = append(a.sinks, s)
		}
	}
	return a
}

// Len returns the number of sinks.
func (a *Announcer) Len() int { return len(a.sinks) }

// Announce delivers res to every sink in order.
func (a *Announcer) Announce(ctx context.Context, res resolve.Result) {
	for _, s := range a.sinks {
		if err := s.Announce(ctx, res); err != nil {
			slog.Warn("announce: sink failed", "sink", s.Name(), "err", err)
		}
	}
}
