package aprsis

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Prober reports whether the Internet can be reached at all.
type Prober interface {
	Reachable(ctx context.Context) bool
}

// HTTPProbe treats any 2xx answer from URL as connectivity.
type HTTPProbe struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

func (p HTTPProbe) Reachable(ctx context.Context) bool {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
