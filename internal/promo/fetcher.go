package promo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"tillpoint/internal/domain"
)

// HTTPFetcher talks to the store server's batch promotion endpoint. The
// endpoint is CSRF-protected; tokens come from a separate endpoint and are
// cached for a few minutes.
type HTTPFetcher struct {
	BatchURL string
	TokenURL string
	StoreID  string
	Client   *http.Client

	TokenTTL time.Duration
	clock    Clock

	mu      sync.Mutex
	token   string
	tokenAt time.Time
}

func NewHTTPFetcher(batchURL, tokenURL, storeID string, timeout, tokenTTL time.Duration, clock Clock) *HTTPFetcher {
	if clock == nil {
		clock = time.Now
	}
	return &HTTPFetcher{
		BatchURL: batchURL,
		TokenURL: tokenURL,
		StoreID:  storeID,
		Client:   &http.Client{Timeout: timeout},
		TokenTTL: tokenTTL,
		clock:    clock,
	}
}

type batchRequest struct {
	ProductIDs []string `json:"productIds"`
	StoreID    string   `json:"storeId"`
}

type batchResponse struct {
	Promotions map[string]domain.Promotion `json:"promotions"`
}

func (f *HTTPFetcher) FetchBatch(ctx context.Context, productIDs []string) (map[string]domain.Promotion, error) {
	token, err := f.csrfToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("csrf token: %w", err)
	}

	body, err := json.Marshal(batchRequest{ProductIDs: productIDs, StoreID: f.StoreID})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.BatchURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", token)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("batch-check request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("batch-check status %d", resp.StatusCode)
	}

	var out batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode batch-check: %w", err)
	}
	if out.Promotions == nil {
		out.Promotions = map[string]domain.Promotion{}
	}
	return out.Promotions, nil
}

type tokenResponse struct {
	CSRFToken string `json:"csrfToken"`
}

func (f *HTTPFetcher) csrfToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token != "" && f.clock().Sub(f.tokenAt) < f.TokenTTL {
		return f.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.TokenURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("token endpoint status %d", resp.StatusCode)
	}
	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	f.token = out.CSRFToken
	f.tokenAt = f.clock()
	return f.token, nil
}
