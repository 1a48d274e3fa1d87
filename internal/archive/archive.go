// Package archive uploads finished export bundles to S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pavelanni/examgen/internal/config"
)

// Client uploads bundles to one bucket.
type Client struct {
	s3     *s3.Client
	bucket string
	prefix string
}

// New returns a client for the configured bucket, or nil and no error when
// archiving is not configured.
func New(ctx context.Context, cfg config.Archive) (*Client, error) {
	if cfg.Bucket == "" {
		slog.Debug("bundle archiving disabled: no bucket configured")
		return nil, nil
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	slog.Info("bundle archiving enabled", "bucket", cfg.Bucket, "endpoint", cfg.Endpoint)
	return &Client{s3: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Key returns the object key for a file of a run.
func (c *Client) Key(runID, name string) string {
	return path.Join(c.prefix, runID, name)
}

// Upload stores data under the run's key and returns the s3:// location.
// Uploading with a nil client is a no-op.
func (c *Client) Upload(ctx context.Context, runID, name, contentType string, data []byte) (string, error) {
	if c == nil {
		return "", nil
	}
	key := c.Key(runID, name)
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	loc := "s3://" + c.bucket + "/" + key
	slog.Info("archived bundle", "run_id", runID, "location", loc, "bytes", len(data))
	return loc, nil
}
