package forwarder

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// DefaultFlushSchedule is used when no cron spec is configured
const DefaultFlushSchedule = "@every 30s"

// Flusher is the slice of the forwarder the scheduler drives
type Flusher interface {
	Flush(ctx context.Context) error
}

// FlushScheduler periodically triggers Flush on a forwarder.
//
// The queue design deliberately carries no backoff or retry bookkeeping;
// the flush cadence IS the retry policy, and it lives here, outside the
// forwarder. A failed delivery simply leaves the queue intact for the
// next tick.
type FlushScheduler struct {
	cron    *cron.Cron
	flusher Flusher
}

// NewFlushScheduler creates a scheduler firing Flush per the given cron
// spec (robfig/cron syntax with seconds, e.g. "@every 30s" or
// "*/15 * * * * *"). An empty spec selects DefaultFlushSchedule.
func NewFlushScheduler(flusher Flusher, spec string) (*FlushScheduler, error) {
	if spec == "" {
		spec = DefaultFlushSchedule
	}

	s := &FlushScheduler{
		cron:    cron.New(cron.WithSeconds()),
		flusher: flusher,
	}

	if _, err := s.cron.AddFunc(spec, s.runFlush); err != nil {
		return nil, fmt.Errorf("invalid flush schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing flushes in the background
func (s *FlushScheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for an in-flight flush to finish
func (s *FlushScheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *FlushScheduler) runFlush() {
	// Flush absorbs network failures itself; an error here means storage
	// trouble, which the next tick will retry anyway
	if err := s.flusher.Flush(context.Background()); err != nil {
		log.Printf("Scheduled flush failed: %v", err)
	}
}
