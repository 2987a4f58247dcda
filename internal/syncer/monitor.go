package syncer

import (
	"context"
	"net/http"
	"time"
)

// Monitor probes the store server's health endpoint and feeds the driver's
// online/offline state. It is the authoritative connectivity signal; wake
// hints from elsewhere are only nudges on top of it.
type Monitor struct {
	Driver   *Driver
	URL      string
	Interval time.Duration
	Client   *http.Client
}

func NewMonitor(d *Driver, url string, interval, timeout time.Duration) *Monitor {
	return &Monitor{
		Driver:   d,
		URL:      url,
		Interval: interval,
		Client:   &http.Client{Timeout: timeout},
	}
}

func (m *Monitor) Run(ctx context.Context) {
	m.Driver.SetOnline(m.probe(ctx))
	t := time.NewTicker(m.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Driver.SetOnline(m.probe(ctx))
		}
	}
}

func (m *Monitor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
	if err != nil {
		return false
	}
	resp, err := m.Client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}
