package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nereus-labs/nautilus-go/internal/platform/env"
)

// Config describes the S3-compatible bucket that holds program blobs.
type Config struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Region         string
	UseSSL         bool
	BucketPrograms string
}

func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("RUNTIME_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:       env.String("RUNTIME_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:      env.String("RUNTIME_MINIO_ACCESS_KEY", "nautilus"),
		SecretKey:      env.String("RUNTIME_MINIO_SECRET_KEY", "nautilusminio"),
		Region:         env.String("RUNTIME_MINIO_REGION", "us-east-1"),
		UseSSL:         useSSL,
		BucketPrograms: env.String("RUNTIME_MINIO_BUCKET_PROGRAMS", "programs"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.BucketPrograms) == "" {
		return errors.New("programs bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}
