package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/djpapzin/papzincrew/internal/config"
)

// B2Backend stores objects in a Backblaze B2 bucket through the S3-compatible
// API. Any S3-compatible endpoint works; only the endpoint override and
// static credentials distinguish it from stock S3.
type B2Backend struct {
	client *s3.Client
	bucket string
	region string
}

// NewB2Backend builds the S3 client against the configured endpoint. It does
// not probe connectivity; the first Store call surfaces reachability errors.
func NewB2Backend(ctx context.Context, cfg *config.StorageConfig) (*B2Backend, error) {
	if !cfg.RemoteConfigured() {
		return nil, fmt.Errorf("remote storage credentials not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.B2Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.B2AccessKeyID,
			cfg.B2SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load storage credentials: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.B2Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.B2Endpoint)
		}
	})

	return &B2Backend{
		client: client,
		bucket: cfg.B2Bucket,
		region: cfg.B2Region,
	}, nil
}

func (b *B2Backend) Name() string { return BackendRemote }

func (b *B2Backend) Store(ctx context.Context, key string, data []byte) (string, error) {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return b.URLFor(key), nil
}

func (b *B2Backend) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", key, err)
	}
	return out.Body, nil
}

func (b *B2Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (b *B2Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListKeys returns all object keys under a prefix. Used by the orphan
// scanner to reconcile bucket contents against the catalog.
func (b *B2Backend) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}
	return keys, nil
}

// URLFor builds the public download URL for a stored key.
func (b *B2Backend) URLFor(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.backblazeb2.com/%s", b.bucket, b.region, key)
}

func isNoSuchKey(err error) bool {
	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NoSuchKey"
	}
	return false
}

func isNotFound(err error) bool {
	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return strings.Contains(err.Error(), "404")
}
