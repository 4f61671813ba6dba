package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Purgeable is a storage that keeps expired records until told to drop them.
type Purgeable interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Purger periodically removes expired sessions from durable storage.
type Purger struct {
	store Purgeable
	tick  time.Duration
	log   zerolog.Logger
}

func NewPurger(store Purgeable, tick time.Duration, log zerolog.Logger) *Purger {
	if tick <= 0 {
		tick = time.Hour
	}
	return &Purger{store: store, tick: tick, log: log.With().Str("component", "session-purger").Logger()}
}

// Run purges once immediately and then on every tick until ctx is done.
func (p *Purger) Run(ctx context.Context) {
	p.purge(ctx)

	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.purge(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Purger) purge(ctx context.Context) {
	n, err := p.store.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn().Err(err).Msg("purge expired sessions failed")
		}
		return
	}
	if n > 0 {
		p.log.Info().Int64("rows", n).Msg("purged expired sessions")
	}
}
