package publishtarget

import (
	"bytes"
	"context"
	"fmt"

	"github.com/conveyor-ci/conveyor/pkg/protocol"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore publishes artifact files to an S3-compatible bucket under a
// location prefix.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

// ObjectStoreConfig carries the connection settings for an S3-compatible
// endpoint.
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func NewObjectStore(ctx context.Context, cfg ObjectStoreConfig) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize publish target: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize publish target: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to initialize publish target: %w", err)
		}
	}

	return &ObjectStore{client: client, bucket: cfg.Bucket}, nil
}

func (t *ObjectStore) Publish(ctx context.Context, location string, files map[string][]byte) error {
	for name, data := range files {
		_, err := t.client.PutObject(
			ctx,
			t.bucket,
			location+"/"+name,
			bytes.NewReader(data),
			int64(len(data)),
			minio.PutObjectOptions{ContentType: "application/octet-stream"},
		)
		if err != nil {
			if isAccessDenied(err) {
				return fmt.Errorf("%w: %s", protocol.ErrWriteDenied, location)
			}

			return fmt.Errorf("failed to publish %s: %w", name, err)
		}
	}

	return nil
}

func isAccessDenied(err error) bool {
	resp := minio.ToErrorResponse(err)

	return resp.Code == "AccessDenied"
}
