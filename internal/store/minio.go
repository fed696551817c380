package store

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/samber/oops"

	"github.com/ayush/research-hub/internal/apperr"
)

// MinioStore archives generated artifacts (AI summaries) in a MinIO bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, oops.In("minio").With("endpoint", endpoint).Wrap(err)
	}

	// Ensure bucket exists
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, oops.In("minio").With("bucket", bucket).Wrap(err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, oops.In("minio").With("bucket", bucket).Wrap(err)
		}
	}

	return &MinioStore{client: client, bucket: bucket}, nil
}

// Upload stores bytes under the given object key.
func (s *MinioStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return oops.In("minio").With("key", key).Wrap(err)
	}
	return nil
}

// Download retrieves the object bytes and content type. A missing object is
// a NOT_FOUND error.
func (s *MinioStore) Download(ctx context.Context, key string) ([]byte, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", s.downloadErr(key, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, "", s.downloadErr(key, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", s.downloadErr(key, err)
	}
	return data, info.ContentType, nil
}

// Remove deletes an object.
func (s *MinioStore) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return oops.In("minio").With("key", key).Wrap(err)
	}
	return nil
}

func (s *MinioStore) downloadErr(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return apperr.NotFound("Summary not found")
	}
	return oops.In("minio").With("key", key).Wrap(err)
}
