package contentstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/nereus-labs/nautilus-go/internal/platform/objectstore"
)

// MinioReader reads blobs stored as objects named by blob id in the programs
// bucket.
type MinioReader struct {
	client   *minio.Client
	storeCfg objectstore.Config
	maxBytes int64
}

func NewMinioReader(client *minio.Client, storeCfg objectstore.Config, maxBytes int64) (*MinioReader, error) {
	if client == nil {
		return nil, errors.New("minio client is required")
	}
	if err := storeCfg.Validate(); err != nil {
		return nil, err
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBlobBytes
	}
	return &MinioReader{client: client, storeCfg: storeCfg, maxBytes: maxBytes}, nil
}

func (r *MinioReader) ReadBlob(ctx context.Context, blobID string) ([]byte, error) {
	blobID, err := cleanBlobID(blobID)
	if err != nil {
		return nil, err
	}
	obj, err := r.client.GetObject(ctx, r.storeCfg.BucketPrograms, blobID, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", blobID, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, blobID)
		}
		return nil, fmt.Errorf("stat object %s: %w", blobID, err)
	}
	if info.Size > r.maxBytes {
		return nil, fmt.Errorf("read blob %s: %w (%d bytes)", blobID, ErrBlobTooLarge, r.maxBytes)
	}
	data, err := readLimited(obj, r.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", blobID, err)
	}
	return data, nil
}

// Check reports whether the programs bucket is reachable.
func (r *MinioReader) Check(ctx context.Context) error {
	return objectstore.CheckBucket(ctx, r.client, r.storeCfg)
}

func (r *MinioReader) String() string {
	return "minio(" + strings.TrimSpace(r.storeCfg.BucketPrograms) + ")"
}
