package ports

import "context"

// TransportResponse is the minimal view of a collector response the
// forwarder needs: whether the collector accepted the batch.
type TransportResponse struct {
	OK         bool
	StatusCode int
}

// AlertTransport defines the contract for delivering an alert batch to
// the remote console. Implementations POST the given JSON body to the
// endpoint and report acceptance; they return an error only for
// transport-level failures (DNS, connect, timeout), never for a
// well-formed rejection.
type AlertTransport interface {
	Post(ctx context.Context, endpoint string, body []byte) (TransportResponse, error)
}
