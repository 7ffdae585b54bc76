package forwarder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// notifyingFlusher signals every Flush invocation
type notifyingFlusher struct {
	fired chan struct{}
}

func (f *notifyingFlusher) Flush(context.Context) error {
	select {
	case f.fired <- struct{}{}:
	default:
	}
	return nil
}

func TestFlushScheduler_FiresFlush(t *testing.T) {
	flusher := &notifyingFlusher{fired: make(chan struct{}, 1)}

	sched, err := NewFlushScheduler(flusher, "@every 1s")
	require.NoError(t, err)

	sched.Start()
	defer sched.Stop()

	select {
	case <-flusher.fired:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler did not fire a flush within 3s")
	}
}

func TestFlushScheduler_RejectsInvalidSpec(t *testing.T) {
	_, err := NewFlushScheduler(&notifyingFlusher{fired: make(chan struct{}, 1)}, "definitely not cron")
	assert.Error(t, err)
}

func TestFlushScheduler_EmptySpecUsesDefault(t *testing.T) {
	sched, err := NewFlushScheduler(&notifyingFlusher{fired: make(chan struct{}, 1)}, "")
	require.NoError(t, err)
	require.NotNil(t, sched)
}
