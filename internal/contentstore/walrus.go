package contentstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WalrusReader reads blobs through a Walrus aggregator's HTTP API.
type WalrusReader struct {
	baseURL  string
	maxBytes int64
	timeout  time.Duration
	client   *http.Client
}

// NewWalrusReader returns a reader for cfg.AggregatorURL. A nil client gets a
// dedicated transport.
func NewWalrusReader(cfg Config, client *http.Client) (*WalrusReader, error) {
	if err := validateBaseURL(cfg.AggregatorURL); err != nil {
		return nil, fmt.Errorf("aggregator url: %w", err)
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBlobBytes
	}
	if client == nil {
		client = &http.Client{Transport: newTransport()}
	}
	return &WalrusReader{
		baseURL:  strings.TrimRight(cfg.AggregatorURL, "/"),
		maxBytes: maxBytes,
		timeout:  cfg.Timeout,
		client:   client,
	}, nil
}

func (r *WalrusReader) ReadBlob(ctx context.Context, blobID string) ([]byte, error) {
	blobID, err := cleanBlobID(blobID)
	if err != nil {
		return nil, err
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	endpoint := r.baseURL + "/v1/blobs/" + url.PathEscape(blobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build aggregator request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch blob %s: %w", blobID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, blobID)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("aggregator returned %d for %s: %s", resp.StatusCode, blobID, strings.TrimSpace(string(snippet)))
	}

	data, err := readLimited(resp.Body, r.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", blobID, err)
	}
	return data, nil
}

func (r *WalrusReader) String() string {
	return "walrus(" + r.baseURL + ")"
}

func validateBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https: %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url host is required: %q", raw)
	}
	return nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
}
