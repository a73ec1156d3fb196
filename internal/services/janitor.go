package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor periodically evicts abandoned trail making sessions.
type Janitor struct {
	log      *zap.Logger
	sessions *SessionRegistry
	idle     time.Duration
	interval time.Duration
}

func NewJanitor(log *zap.Logger, sessions *SessionRegistry, idle time.Duration) *Janitor {
	return &Janitor{
		log:      log,
		sessions: sessions,
		idle:     idle,
		interval: time.Minute,
	}
}

// Start runs the janitor in a goroutine until ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	if j.idle <= 0 {
		j.log.Info("Session janitor disabled")
		return
	}
	j.log.Info("Starting session janitor...", zap.Duration("idle_timeout", j.idle))
	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.sweep()
			}
		}
	}()
}

func (j *Janitor) sweep() int {
	n := j.sessions.EvictIdle(j.idle)
	if n > 0 {
		j.log.Debug("Evicted idle trail making sessions", zap.Int("count", n), zap.Int("live", j.sessions.Len()))
	}
	return n
}
