package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultLinkExpiry = time.Hour

type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store uploads finished bundles to a bucket under an optional prefix.
type S3Store struct {
	client  PutObjectAPI
	presign PresignAPI
	bucket  string
	prefix  string
	logger  *slog.Logger
}

func NewS3Store(client PutObjectAPI, presign PresignAPI, bucket, prefix string, logger *slog.Logger) *S3Store {
	return &S3Store{
		client:  client,
		presign: presign,
		bucket:  bucket,
		prefix:  prefix,
		logger:  logger.With("component", "s3_store"),
	}
}

// NewS3StoreFromEnv builds a store from the default AWS credential chain.
func NewS3StoreFromEnv(ctx context.Context, region, bucket, prefix string, logger *slog.Logger) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return NewS3Store(client, s3.NewPresignClient(client), bucket, prefix, logger), nil
}

// Upload stores body under prefix/name and returns the object key.
func (s *S3Store) Upload(ctx context.Context, name string, body io.Reader) (string, error) {
	key := name
	if s.prefix != "" {
		key = path.Join(s.prefix, name)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.bucket),
		Key:                aws.String(key),
		Body:               body,
		ContentType:        aws.String("application/zip"),
		ContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", path.Base(name))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload bundle to S3: %w", err)
	}

	s.logger.Info("bundle uploaded", "bucket", s.bucket, "key", key)
	return key, nil
}

// PresignedURL returns a time-limited download link for key.
func (s *S3Store) PresignedURL(ctx context.Context, key string) (string, error) {
	if s.presign == nil {
		return "", fmt.Errorf("presigning is not configured")
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(defaultLinkExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %w", err)
	}

	return req.URL, nil
}
