package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tillpoint/internal/domain"
)

// Transport delivers one queued submission to the server. Implementations
// must treat any non-2xx outcome as a failure; the caller decides scheduling.
type Transport interface {
	Deliver(ctx context.Context, rec domain.OfflineSaleRecord) (domain.SaleConfirmation, error)
}

// HTTPTransport posts the frozen payload with its Idempotency-Key header.
// Once the request leaves the client the key is the only protection against
// duplicate server-side effects; there is no cancellation of a sent request.
type HTTPTransport struct {
	Client *http.Client
}

func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{Client: &http.Client{Timeout: timeout}}
}

func (t *HTTPTransport) Deliver(ctx context.Context, rec domain.OfflineSaleRecord) (domain.SaleConfirmation, error) {
	method := rec.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, rec.URL, bytes.NewReader(rec.Payload))
	if err != nil {
		return domain.SaleConfirmation{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", rec.IdempotencyKey)
	for k, v := range rec.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return domain.SaleConfirmation{}, fmt.Errorf("submit sale: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.SaleConfirmation{}, fmt.Errorf("submit sale: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var conf domain.SaleConfirmation
	if err := json.NewDecoder(resp.Body).Decode(&conf); err != nil {
		// A 2xx with an unreadable body is still an acknowledgment.
		conf = domain.SaleConfirmation{}
	}
	return conf, nil
}
