// Package contentstore fetches program blobs from content-addressed storage.
package contentstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nereus-labs/nautilus-go/internal/platform/env"
)

const (
	BackendWalrus = "walrus"
	BackendMinio  = "minio"

	DefaultAggregatorURL = "https://aggregator.testnet.walrus.atalma.io"
	DefaultPublisherURL  = "https://publisher.walrus-01.tududes.com"
	DefaultMaxBlobBytes  = 4 << 20
)

var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrBlobTooLarge = errors.New("blob exceeds size limit")
)

// BlobReader returns the raw bytes stored under a blob id.
type BlobReader interface {
	ReadBlob(ctx context.Context, blobID string) ([]byte, error)
}

type Config struct {
	Backend string
	// AggregatorURL serves reads for the walrus backend.
	AggregatorURL string
	// PublisherURL is carried for deployments that also publish blobs.
	PublisherURL string
	MaxBytes     int64
	Timeout      time.Duration
}

func ConfigFromEnv() (Config, error) {
	timeout, err := env.Duration("RUNTIME_BLOB_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	maxBytes, err := env.Int64("RUNTIME_BLOB_MAX_BYTES", DefaultMaxBlobBytes)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Backend:       strings.ToLower(strings.TrimSpace(env.FirstString(BackendWalrus, "RUNTIME_CONTENT_STORE"))),
		AggregatorURL: strings.TrimRight(strings.TrimSpace(env.FirstString(DefaultAggregatorURL, "AGGREGATOR")), "/"),
		PublisherURL:  strings.TrimRight(strings.TrimSpace(env.FirstString(DefaultPublisherURL, "PUBLISHER")), "/"),
		MaxBytes:      maxBytes,
		Timeout:       timeout,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendWalrus:
		if err := validateBaseURL(c.AggregatorURL); err != nil {
			return fmt.Errorf("AGGREGATOR: %w", err)
		}
	case BackendMinio:
	default:
		return fmt.Errorf("RUNTIME_CONTENT_STORE must be %q or %q (got %q)", BackendWalrus, BackendMinio, c.Backend)
	}
	if c.MaxBytes <= 0 {
		return errors.New("RUNTIME_BLOB_MAX_BYTES must be positive")
	}
	if c.Timeout < 0 {
		return errors.New("RUNTIME_BLOB_TIMEOUT must be non-negative")
	}
	return nil
}

// readLimited reads r fully, failing once more than max bytes arrive.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBlobTooLarge, max)
	}
	return data, nil
}

func cleanBlobID(blobID string) (string, error) {
	blobID = strings.TrimSpace(blobID)
	if blobID == "" {
		return "", errors.New("blob id is required")
	}
	return blobID, nil
}
