package minio

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"clinsight/internal/config"
	"clinsight/internal/port"
)

// Store keeps case images in a MinIO (or other S3-compatible) bucket.
type Store struct {
	client        *minio.Client
	bucket        string
	presignExpiry time.Duration
}

// NewStore connects to MinIO and makes sure bucket exists.
func NewStore(ctx context.Context, cfg *config.MinioConfig, bucket string) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
		log.Info().Str("bucket", bucket).Msg("minio.NewStore: created bucket")
	}

	expiry := time.Duration(cfg.PresignExpiry) * time.Second
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &Store{client: client, bucket: bucket, presignExpiry: expiry}, nil
}

var _ port.ObjectStorage = (*Store)(nil)

func (s *Store) Put(ctx context.Context, input port.PutObjectInput) (*port.StoredObject, error) {
	size := input.Size
	if size <= 0 {
		size = -1
	}
	info, err := s.client.PutObject(ctx, s.bucket, input.Key, input.Body, size, minio.PutObjectOptions{
		ContentType:  input.ContentType,
		UserMetadata: input.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("minio put %s: %w", input.Key, err)
	}
	return &port.StoredObject{Key: input.Key, Location: info.Location, ETag: info.ETag}, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) PresignGet(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("minio presign %s: %w", key, err)
	}
	return u.String(), nil
}
