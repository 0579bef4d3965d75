package s3

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"clinsight/internal/config"
	"clinsight/internal/port"
)

// Store keeps case images in a single S3 bucket with server-side encryption.
type Store struct {
	client        *s3.Client
	presigner     *s3.PresignClient
	uploader      *manager.Uploader
	bucket        string
	presignExpiry time.Duration
}

// NewStore creates an S3-backed ObjectStorage bound to bucket.
func NewStore(ctx context.Context, cfg *config.S3Config, bucket string) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	expiry := time.Duration(cfg.PresignExpiry) * time.Second
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return &Store{
		client:        client,
		presigner:     s3.NewPresignClient(client),
		uploader:      manager.NewUploader(client),
		bucket:        bucket,
		presignExpiry: expiry,
	}, nil
}

var _ port.ObjectStorage = (*Store)(nil)

func (s *Store) Put(ctx context.Context, input port.PutObjectInput) (*port.StoredObject, error) {
	result, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(input.Key),
		Body:                 input.Body,
		ContentType:          aws.String(input.ContentType),
		Metadata:             input.Metadata,
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 put %s: %w", input.Key, err)
	}

	etag := ""
	if result.ETag != nil {
		etag = *result.ETag
	}
	return &port.StoredObject{Key: input.Key, Location: result.Location, ETag: etag}, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) PresignGet(ctx context.Context, key string) (string, error) {
	result, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignExpiry))
	if err != nil {
		return "", fmt.Errorf("s3 presign %s: %w", key, err)
	}
	return result.URL, nil
}
