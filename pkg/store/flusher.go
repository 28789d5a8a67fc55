package store

import (
	"time"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/rs/zerolog"
)

// DefaultFlushInterval is the checkpoint cadence used when the configuration
// does not name one.
const DefaultFlushInterval = 5 * time.Second

// Flusher periodically checkpoints the store. It never invokes Flush
// concurrently with itself, and stopping it waits for the loop to exit without
// performing a partial flush.
type Flusher struct {
	store    *Store
	interval time.Duration
	logger   zerolog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewFlusher creates a flusher with the given cadence. A non-positive
// interval falls back to DefaultFlushInterval.
func NewFlusher(s *Store, interval time.Duration) *Flusher {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Flusher{
		store:    s,
		interval: interval,
		logger:   log.WithComponent("flusher"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the flush loop.
func (f *Flusher) Start() {
	go f.run()
}

// Stop signals the loop to exit and joins it.
func (f *Flusher) Stop() {
	close(f.stopCh)
	<-f.doneCh
}

func (f *Flusher) run() {
	defer close(f.doneCh)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := f.store.Flush(); err != nil {
				// Pending changes are kept; the next tick
				// retries them along with anything new.
				f.logger.Error().Err(err).Msg("flush failed")
			}
		case <-f.stopCh:
			f.logger.Info().Msg("flusher stopped")
			return
		}
	}
}
