package forwarder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phishguard/threatpipeline/internal/adapters/storage"
	"github.com/phishguard/threatpipeline/internal/domain"
	"github.com/phishguard/threatpipeline/internal/ports"
)

// fakeTransport records calls and answers with a canned response
type fakeTransport struct {
	calls        int
	lastEndpoint string
	lastBody     []byte
	resp         ports.TransportResponse
	err          error
}

func (t *fakeTransport) Post(_ context.Context, endpoint string, body []byte) (ports.TransportResponse, error) {
	t.calls++
	t.lastEndpoint = endpoint
	t.lastBody = body
	return t.resp, t.err
}

// countingStore wraps a real store and counts reads
type countingStore struct {
	ports.KeyValueStore
	gets int
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.gets++
	return s.KeyValueStore.Get(ctx, key)
}

// failingStore errors on every operation
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("storage down")
}
func (failingStore) Set(context.Context, string, []byte) error { return errors.New("storage down") }
func (failingStore) Close() error                              { return nil }

func makeAlert(url, title string) domain.ThreatAlert {
	return domain.NewThreatAlert(domain.ThreatAssessment{
		Score:            81,
		Level:            domain.LevelConfirmedPhishing,
		Confidence:       0.9,
		TriggeredSignals: []string{"url:homoglyph"},
		Reasoning:        "test alert",
	}, url, title)
}

func TestForwarder_QueueAlertIncrementsLength(t *testing.T) {
	ctx := context.Background()
	fwd := New(storage.NewMemoryStore(), &fakeTransport{}, "https://console.test/alerts", true)

	for i := 1; i <= 5; i++ {
		n, err := fwd.QueueAlert(ctx, makeAlert(fmt.Sprintf("https://evil%d.test/", i), "page"))
		require.NoError(t, err)
		assert.Equal(t, i, n, "queue length after %d appends", i)
	}

	n, err := fwd.QueueLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestForwarder_FlushSuccessClearsQueue(t *testing.T) {
	ctx := context.Background()
	transport := &fakeTransport{resp: ports.TransportResponse{OK: true, StatusCode: 200}}
	fwd := New(storage.NewMemoryStore(), transport, "https://console.test/alerts", true)

	_, err := fwd.QueueAlert(ctx, makeAlert("https://evil.test/a", "A"))
	require.NoError(t, err)
	_, err = fwd.QueueAlert(ctx, makeAlert("https://evil.test/b", "B"))
	require.NoError(t, err)

	require.NoError(t, fwd.Flush(ctx))

	n, err := fwd.QueueLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "queue should be empty after confirmed delivery")
	assert.Equal(t, StatusIdle, fwd.Status())

	assert.Equal(t, 1, transport.calls, "one batched POST")
	assert.Equal(t, "https://console.test/alerts", transport.lastEndpoint)

	var batch struct {
		Alerts []domain.ThreatAlert `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(transport.lastBody, &batch))
	assert.Len(t, batch.Alerts, 2)
}

func TestForwarder_FlushFailureRetainsQueue(t *testing.T) {
	tests := []struct {
		name      string
		transport *fakeTransport
	}{
		{
			name:      "Collector rejects batch",
			transport: &fakeTransport{resp: ports.TransportResponse{OK: false, StatusCode: 503}},
		},
		{
			name:      "Transport-level failure",
			transport: &fakeTransport{err: errors.New("connection refused")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fwd := New(storage.NewMemoryStore(), tt.transport, "https://console.test/alerts", true)

			_, err := fwd.QueueAlert(ctx, makeAlert("https://evil.test/x", "X"))
			require.NoError(t, err)
			_, err = fwd.QueueAlert(ctx, makeAlert("https://evil.test/y", "Y"))
			require.NoError(t, err)

			// Delivery failure is absorbed, never returned
			require.NoError(t, fwd.Flush(ctx))

			n, err := fwd.QueueLength(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n, "queue must survive a failed flush intact")
			assert.Equal(t, StatusError, fwd.Status())

			// Later success recovers
			tt.transport.resp = ports.TransportResponse{OK: true, StatusCode: 202}
			tt.transport.err = nil
			require.NoError(t, fwd.Flush(ctx))
			assert.Equal(t, StatusIdle, fwd.Status())
		})
	}
}

func TestForwarder_FlushEnterpriseDisabled(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{KeyValueStore: storage.NewMemoryStore()}
	transport := &fakeTransport{resp: ports.TransportResponse{OK: true, StatusCode: 200}}
	fwd := New(store, transport, "https://console.test/alerts", false)

	// Queuing still works with the enterprise flag off
	n, err := fwd.QueueAlert(ctx, makeAlert("https://evil.test/", "page"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	store.gets = 0
	require.NoError(t, fwd.Flush(ctx))

	assert.Equal(t, 0, transport.calls, "disabled forwarder must never transmit")
	assert.Equal(t, 0, store.gets, "disabled flush must not even read storage")
	assert.Equal(t, StatusIdle, fwd.Status())
}

func TestForwarder_FlushEmptyQueueIsNoop(t *testing.T) {
	transport := &fakeTransport{resp: ports.TransportResponse{OK: true, StatusCode: 200}}
	fwd := New(storage.NewMemoryStore(), transport, "https://console.test/alerts", true)

	require.NoError(t, fwd.Flush(context.Background()))
	assert.Equal(t, 0, transport.calls)
	assert.Equal(t, StatusIdle, fwd.Status())
}

func TestForwarder_SanitizesOutgoingPayloadOnly(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	// Rejecting transport: the queue survives, so we can compare the
	// sanitized wire payload against the untouched stored originals
	transport := &fakeTransport{resp: ports.TransportResponse{OK: false, StatusCode: 500}}
	fwd := New(store, transport, "https://console.test/alerts", true)

	longTitle := strings.Repeat("Verify your account! ", 10) // 210 chars
	_, err := fwd.QueueAlert(ctx, makeAlert(
		"https://evil.test/login?email=user@example.com&session=abc123#token",
		longTitle,
	))
	require.NoError(t, err)

	require.NoError(t, fwd.Flush(ctx))

	var batch struct {
		Alerts []domain.ThreatAlert `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(transport.lastBody, &batch))
	require.Len(t, batch.Alerts, 1)

	sent := batch.Alerts[0]
	assert.Equal(t, "https://evil.test/login", sent.URL, "query and fragment must be stripped")
	assert.Len(t, []rune(sent.PageTitle), 100, "title must be truncated to exactly 100")

	raw, err := store.Get(ctx, queueKey)
	require.NoError(t, err)
	var stored []domain.ThreatAlert
	require.NoError(t, json.Unmarshal(raw, &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, "https://evil.test/login?email=user@example.com&session=abc123#token", stored[0].URL,
		"queued original must stay unsanitized")
	assert.Equal(t, longTitle, stored[0].PageTitle)
}

func TestForwarder_SanitizeKeepsUnparseableURL(t *testing.T) {
	// %zz is an invalid escape, so url.Parse fails and the raw string
	// passes through untouched
	alert := makeAlert("https://evil.test/%zzpath?x=1", "page")
	out := sanitizeAlert(alert)
	assert.Equal(t, "https://evil.test/%zzpath?x=1", out.URL)
}

func TestForwarder_CorruptStoredQueueTreatedAsEmpty(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		stored string
	}{
		{"Object instead of array", `{"not":"an array"}`},
		{"Scalar", `42`},
		{"Garbage", `not json at all`},
		{"Null", `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			require.NoError(t, store.Set(ctx, queueKey, []byte(tt.stored)))

			fwd := New(store, &fakeTransport{}, "https://console.test/alerts", true)

			n, err := fwd.QueueLength(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, n)

			// Queuing on top of the corrupt value starts a fresh queue
			n, err = fwd.QueueAlert(ctx, makeAlert("https://evil.test/", "page"))
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestForwarder_StorageErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	fwd := New(failingStore{}, &fakeTransport{}, "https://console.test/alerts", true)

	_, err := fwd.QueueAlert(ctx, makeAlert("https://evil.test/", "page"))
	assert.Error(t, err)

	_, err = fwd.QueueLength(ctx)
	assert.Error(t, err)

	assert.Error(t, fwd.Flush(ctx))
}
