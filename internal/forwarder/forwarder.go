package forwarder

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"

	"github.com/phishguard/threatpipeline/internal/domain"
	"github.com/phishguard/threatpipeline/internal/ports"
)

// Status is the forwarder's advisory delivery state. It is observational
// only: ERROR does not gate future QueueAlert or Flush calls.
type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusSending Status = "SENDING"
	StatusError   Status = "ERROR"
)

// queueKey is the single logical storage key the alert queue lives under
const queueKey = "phishguard:alert_queue"

// maxPageTitleLen caps the page title sent to the collector
const maxPageTitleLen = 100

// alertBatch is the request body shape the collector expects
type alertBatch struct {
	Alerts []domain.ThreatAlert `json:"alerts"`
}

// Forwarder accepts confirmed threat alerts, persists them in a durable
// queue, and delivers them to a remote collector in sanitized batches.
//
// Delivery guarantees:
//   - An alert leaves the queue only after the collector confirmed the
//     batch; any transmission failure retains the whole queue intact
//   - Sanitization applies to the outgoing payload only; queued originals
//     are never modified
//   - Network failures never surface as errors from Flush, only as
//     retained queue length and ERROR status
//
// A mutex serializes queue operations within one instance, so a single
// Forwarder may be shared across goroutines. Two forwarder instances (or
// processes) sharing one storage key still race read-modify-write and
// need external coordination; run one logical forwarder per process.
type Forwarder struct {
	store             ports.KeyValueStore
	transport         ports.AlertTransport
	endpoint          string
	enterpriseEnabled bool

	mu     sync.Mutex
	status Status
}

// New creates an alert forwarder with dependency injection.
// enterpriseEnabled gates transmission: a disabled forwarder still queues
// but Flush is a silent no-op (privacy opt-in, only enterprise deployments
// report back to a console).
func New(store ports.KeyValueStore, transport ports.AlertTransport, endpoint string, enterpriseEnabled bool) *Forwarder {
	return &Forwarder{
		store:             store,
		transport:         transport,
		endpoint:          endpoint,
		enterpriseEnabled: enterpriseEnabled,
		status:            StatusIdle,
	}
}

// QueueAlert appends an alert to the durable queue and returns the new
// queue length. There is no size cap and no dedup: the caller decides
// what is worth queuing. Storage failures propagate.
func (f *Forwarder) QueueAlert(ctx context.Context, alert domain.ThreatAlert) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	queue, err := f.loadQueue(ctx)
	if err != nil {
		return 0, err
	}

	queue = append(queue, alert)
	if err := f.saveQueue(ctx, queue); err != nil {
		return 0, err
	}

	return len(queue), nil
}

// QueueLength reports how many alerts are waiting for delivery
func (f *Forwarder) QueueLength(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	queue, err := f.loadQueue(ctx)
	if err != nil {
		return 0, err
	}
	return len(queue), nil
}

// Status returns the current advisory delivery state
func (f *Forwarder) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Flush attempts to deliver all queued alerts as one sanitized batch.
//
// Error handling strategy:
//   - Enterprise disabled: silent no-op, storage is not even read
//   - Storage failures propagate to the caller (nothing to recover with)
//   - Transmission failures (transport error or non-2xx) are absorbed:
//     the queue is left untouched for the next Flush, status becomes
//     ERROR, and Flush returns nil
//
// Scheduling of retries is the caller's concern (see FlushScheduler);
// this layer keeps no per-item retry counters and no backoff.
func (f *Forwarder) Flush(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.enterpriseEnabled {
		return nil
	}

	queue, err := f.loadQueue(ctx)
	if err != nil {
		return err
	}
	if len(queue) == 0 {
		return nil
	}

	f.status = StatusSending

	sanitized := make([]domain.ThreatAlert, len(queue))
	for i := range queue {
		sanitized[i] = sanitizeAlert(queue[i])
	}

	body, err := json.Marshal(alertBatch{Alerts: sanitized})
	if err != nil {
		return fmt.Errorf("encode alert batch: %w", err)
	}

	resp, err := f.transport.Post(ctx, f.endpoint, body)
	if err != nil {
		log.Printf("Alert delivery failed, retaining %d queued alerts: %v", len(queue), err)
		f.status = StatusError
		return nil
	}
	if !resp.OK {
		log.Printf("Collector rejected alert batch (status %d), retaining %d queued alerts", resp.StatusCode, len(queue))
		f.status = StatusError
		return nil
	}

	// Only a confirmed delivery clears the queue
	if err := f.saveQueue(ctx, []domain.ThreatAlert{}); err != nil {
		return err
	}

	f.status = StatusIdle
	return nil
}

// loadQueue reads the persisted queue. An absent key or a value that does
// not decode as an alert array yields an empty queue, never an error:
// corrupt storage state must not wedge the pipeline.
func (f *Forwarder) loadQueue(ctx context.Context) ([]domain.ThreatAlert, error) {
	raw, err := f.store.Get(ctx, queueKey)
	if err != nil {
		return nil, fmt.Errorf("read alert queue: %w", err)
	}
	if raw == nil {
		return []domain.ThreatAlert{}, nil
	}

	var queue []domain.ThreatAlert
	if err := json.Unmarshal(raw, &queue); err != nil || queue == nil {
		return []domain.ThreatAlert{}, nil
	}
	return queue, nil
}

func (f *Forwarder) saveQueue(ctx context.Context, queue []domain.ThreatAlert) error {
	raw, err := json.Marshal(queue)
	if err != nil {
		return fmt.Errorf("encode alert queue: %w", err)
	}
	if err := f.store.Set(ctx, queueKey, raw); err != nil {
		return fmt.Errorf("persist alert queue: %w", err)
	}
	return nil
}

// sanitizeAlert returns a transmission-safe copy of an alert:
//   - the URL loses its query string and fragment (query parameters on
//     phishing URLs routinely carry victim email addresses and session
//     tokens); an unparseable URL is passed through as-is
//   - the page title is capped at 100 characters
//
// The queued original is not touched.
func sanitizeAlert(alert domain.ThreatAlert) domain.ThreatAlert {
	out := alert

	if u, err := url.Parse(alert.URL); err == nil {
		u.RawQuery = ""
		u.Fragment = ""
		u.RawFragment = ""
		out.URL = u.String()
	}

	if title := []rune(alert.PageTitle); len(title) > maxPageTitleLen {
		out.PageTitle = string(title[:maxPageTitleLen])
	}

	return out
}
