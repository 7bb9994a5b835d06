package source

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxBodyBytes     = 8 << 20
)

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// httpDoer holds the client plus request defaults shared by the adapters.
type httpDoer struct {
	name      string
	client    *http.Client
	userAgent string
}

func newHTTPDoer(name string, c Config) httpDoer {
	ua := strings.TrimSpace(c.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	return httpDoer{name: name, client: newHTTPClient(c.Timeout), userAgent: ua}
}

// do sends the request and returns the body of a 2xx answer. Every failure
// is a *FetchError.
func (d httpDoer) do(ctx context.Context, method, url string, body io.Reader, hdr map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fetchErr(d.name, "build request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fetchErr(d.name, "%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fetchErr(d.name, "read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fetchErr(d.name, "http %d", resp.StatusCode)
	}
	return b, nil
}

func baseURL(configured, def string) string {
	if s := strings.TrimRight(strings.TrimSpace(configured), "/"); s != "" {
		return s
	}
	return def
}
