package artifact

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/conveyor-ci/conveyor/pkg/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore implements Store on an S3-compatible object store. Blobs are
// stored under blobs/<ref>; (run, name) bindings are small pointer objects
// under runs/<run>/<name>. Durability on Put relies on the object store
// acknowledging the write.
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

// NewObjectStore connects to the object store and ensures the bucket exists.
func NewObjectStore(ctx context.Context, cfg ObjectStoreConfig) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, &StoreError{Op: "Init", Err: err}
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, &StoreError{Op: "Init", Err: err}
	}

	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, &StoreError{Op: "Init", Err: err}
		}
	}

	return &ObjectStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *ObjectStore) Put(ctx context.Context, runID, name string, data []byte) (models.Artifact, error) {
	ref := ContentRef(data)

	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		blobKey(ref),
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"},
	)
	if err != nil {
		return models.Artifact{}, &StoreError{Op: "Put", RunID: runID, Name: name, Err: err}
	}

	_, err = s.client.PutObject(
		ctx,
		s.bucket,
		pointerKey(runID, name),
		bytes.NewReader([]byte(ref)),
		int64(len(ref)),
		minio.PutObjectOptions{ContentType: "text/plain"},
	)
	if err != nil {
		return models.Artifact{}, &StoreError{Op: "Put", RunID: runID, Name: name, Err: err}
	}

	return models.Artifact{
		RunID:      runID,
		Name:       name,
		ContentRef: ref,
		Size:       int64(len(data)),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (s *ObjectStore) Get(ctx context.Context, runID, name string) ([]byte, error) {
	art, err := s.Stat(ctx, runID, name)
	if err != nil {
		return nil, err
	}

	data, err := s.readObject(ctx, blobKey(art.ContentRef))
	if err != nil {
		return nil, &StoreError{Op: "Get", RunID: runID, Name: name, Err: err}
	}

	return data, nil
}

func (s *ObjectStore) Stat(ctx context.Context, runID, name string) (models.Artifact, error) {
	refBytes, err := s.readObject(ctx, pointerKey(runID, name))
	if err != nil {
		if isNoSuchKey(err) {
			err = ErrNotFound
		}

		return models.Artifact{}, &StoreError{Op: "Stat", RunID: runID, Name: name, Err: err}
	}

	ref := string(refBytes)

	info, err := s.client.StatObject(ctx, s.bucket, blobKey(ref), minio.StatObjectOptions{})
	if err != nil {
		return models.Artifact{}, &StoreError{Op: "Stat", RunID: runID, Name: name, Err: err}
	}

	return models.Artifact{
		RunID:      runID,
		Name:       name,
		ContentRef: ref,
		Size:       info.Size,
		CreatedAt:  info.LastModified.UTC(),
	}, nil
}

func (s *ObjectStore) Extract(ctx context.Context, contentRef string) (map[string][]byte, error) {
	data, err := s.readObject(ctx, blobKey(contentRef))
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return Unpack(data)
}

func (s *ObjectStore) Close(_ context.Context) error {
	return nil
}

func (s *ObjectStore) readObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		return nil, err
	}

	return io.ReadAll(obj)
}

func blobKey(ref string) string {
	return "blobs/" + ref
}

func pointerKey(runID, name string) string {
	return "runs/" + runID + "/" + name
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)

	return resp.Code == "NoSuchKey"
}
