package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig addresses one object in an S3-compatible bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Object    string
}

// MinioSlot stores the enrollment document as a single object.
type MinioSlot struct {
	client *minio.Client
	bucket string
	object string
}

// NewMinioSlot connects to the endpoint and creates the bucket if it does not exist yet.
func NewMinioSlot(ctx context.Context, cfg MinioConfig) (*MinioSlot, error) {
	if cfg.Bucket == "" || cfg.Object == "" {
		return nil, fmt.Errorf("minio bucket and object are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioSlot{client: client, bucket: cfg.Bucket, object: cfg.Object}, nil
}

func (m *MinioSlot) Get(ctx context.Context) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, m.object, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.translate(err)
	}
	defer obj.Close()

	// GetObject is lazy: a missing key only surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, m.translate(err)
	}
	return data, nil
}

func (m *MinioSlot) Put(ctx context.Context, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, m.object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (m *MinioSlot) Delete(ctx context.Context) error {
	return m.client.RemoveObject(ctx, m.bucket, m.object, minio.RemoveObjectOptions{})
}

func (m *MinioSlot) Close(context.Context) error { return nil }

func (m *MinioSlot) translate(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrSlotEmpty
	}
	return err
}
