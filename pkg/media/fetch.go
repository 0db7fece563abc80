package media

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultFetchTimeout = 20 * time.Second
	defaultMaxBytes     = 15 << 20
)

// safeTransport returns an http.Transport with a DialContext that prevents SSRF.
// Generator URLs are untrusted input, so every resolved IP is checked and the
// connection goes to the checked IP directly (no DNS rebinding window).
func safeTransport(allowLocalIPs bool, dialTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: nil,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, fmt.Errorf("invalid address: %w", err)
			}

			ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve host: %w", err)
			}

			var safeIP net.IP
			for _, ip := range ips {
				if !allowLocalIPs && isRestricted(ip) {
					continue
				}
				safeIP = ip
				break
			}

			if safeIP == nil {
				return nil, fmt.Errorf("blocked access to restricted IP(s) for host: %s", host)
			}

			dialer := &net.Dialer{
				Timeout:   dialTimeout,
				KeepAlive: 30 * time.Second,
			}
			return dialer.DialContext(ctx, network, net.JoinHostPort(safeIP.String(), port))
		},
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
	}
}

func isRestricted(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// Fetched is a downloaded image before validation.
type Fetched struct {
	Data        []byte
	ContentType string // declared, parameters stripped, lower-case
}

// Fetcher performs one bounded-timeout GET per call. No retries: generator
// URLs expire, so a retry loop would only delay the fallback.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

type FetcherOptions struct {
	Timeout       time.Duration
	MaxBytes      int64
	AllowLocalIPs bool // tests only
}

func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultFetchTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	return &Fetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: safeTransport(opts.AllowLocalIPs, opts.Timeout),
		},
		maxBytes: opts.MaxBytes,
	}
}

// Fetch downloads sourceURL. Any failure is returned as a plain error; the
// ingester classifies it.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL string) (*Fetched, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "image/png,image/jpeg,image/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image (status %d)", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("image larger than %d bytes", f.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}

	return &Fetched{Data: data, ContentType: strings.TrimSpace(contentType)}, nil
}
