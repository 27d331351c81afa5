package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/conveyor-ci/conveyor/pkg/artifact"
)

// NewArtifactStore creates an artifact store from a URL. s3://<bucket> gets
// the object store, with the endpoint and credentials read from S3_ENDPOINT,
// S3_ACCESS_KEY and S3_SECRET_KEY; anything else is a directory path for the
// filesystem store.
func NewArtifactStore(ctx context.Context, storeURL string) artifact.Store {
	if bucket, ok := strings.CutPrefix(storeURL, "s3://"); ok {
		store, err := artifact.NewObjectStore(ctx, artifact.ObjectStoreConfig{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Bucket:    bucket,
			UseSSL:    os.Getenv("S3_USE_SSL") == "true",
		})
		if err != nil {
			panic(fmt.Errorf("failed to initialize artifact store: %w", err))
		}

		return store
	}

	store, err := artifact.NewFilesystemStore(strings.TrimPrefix(storeURL, "file://"))
	if err != nil {
		panic(fmt.Errorf("failed to initialize artifact store: %w", err))
	}

	return store
}
