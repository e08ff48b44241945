// Package objectstore wraps the S3-compatible blob store that holds raw
// uploads and derived artifacts.
//
// Objects are addressed by (bucket, key). The bucket encodes the object's
// role in the pipeline (raw upload, processed output, thumbnail, encrypted
// container) and the key encodes ownership: "<owner_id>/<file_id>_<name>".
// The database rows in pkg/store carry both halves, so nothing here ever
// parses a key.
//
// The client targets MinIO in development and any S3-compatible endpoint in
// production. Path-style addressing is the default because MinIO requires
// it.
package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/filemill/filemill/internal/logger"
	"github.com/filemill/filemill/pkg/config"
)

// Bucket names. Every object the platform writes lands in one of these;
// they are created on startup by EnsureBuckets.
const (
	// BucketRaw holds original uploads exactly as received.
	BucketRaw = "raw"

	// BucketProcessed holds derived artifacts: conversions, compressed
	// copies, decrypted plaintext, video previews.
	BucketProcessed = "processed"

	// BucketThumbnails holds image and video thumbnails.
	BucketThumbnails = "thumbnails"

	// BucketTemp holds short-lived intermediates. Nothing durable lives
	// here.
	BucketTemp = "temp"

	// BucketEncrypted holds encrypted containers produced by ENCRYPT jobs.
	BucketEncrypted = "encrypted"
)

// AllBuckets returns every bucket the platform uses, in creation order.
func AllBuckets() []string {
	return []string{BucketRaw, BucketProcessed, BucketThumbnails, BucketTemp, BucketEncrypted}
}

var (
	// ErrNotFound is returned when the requested object or bucket does not
	// exist.
	ErrNotFound = errors.New("object not found")

	// ErrStorageUnavailable is returned by Ping when the endpoint cannot be
	// reached. Readiness probes report it as a dependency failure.
	ErrStorageUnavailable = errors.New("object storage unavailable")
)

// Client is the S3 client used by the API server, the dispatcher, and the
// worker fleets. It is safe for concurrent use.
type Client struct {
	s3      *s3.Client
	presign *s3.PresignClient
	cfg     config.ObjectStoreConfig
}

// New creates a Client from configuration. It only builds the SDK client;
// no network traffic happens until the first call. Run EnsureBuckets once
// at startup to create the bucket set.
func New(ctx context.Context, cfg config.ObjectStoreConfig) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"", // session token (empty for static credentials)
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := cfg.URL()
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an already-configured SDK client. Used by tests and
// by callers that need custom HTTP transport options.
func NewWithClient(client *s3.Client, cfg config.ObjectStoreConfig) *Client {
	return &Client{
		s3:      client,
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
	}
}

// EnsureBuckets creates every bucket in AllBuckets that does not already
// exist. Safe to call on every startup; existing buckets are left alone.
func (c *Client) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range AllBuckets() {
		_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(bucket),
		})
		if err == nil {
			continue
		}

		logger.InfoCtx(ctx, "Creating bucket", logger.Bucket(bucket))

		input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
		// us-east-1 is the one region S3 rejects as an explicit location
		// constraint.
		if c.cfg.Region != "" && c.cfg.Region != "us-east-1" {
			input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
				LocationConstraint: types.BucketLocationConstraint(c.cfg.Region),
			}
		}

		if _, err := c.s3.CreateBucket(ctx, input); err != nil {
			var owned *types.BucketAlreadyOwnedByYou
			var exists *types.BucketAlreadyExists
			if errors.As(err, &owned) || errors.As(err, &exists) {
				continue // lost a startup race with another instance
			}
			return fmt.Errorf("failed to create bucket %q: %w", bucket, err)
		}
	}

	return nil
}

// Ping verifies the endpoint is reachable. Used by readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(BucketRaw),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// convertObjectError maps SDK not-found variants onto ErrNotFound so
// callers can errors.Is against a single sentinel.
func convertObjectError(err error) error {
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &noBucket) || errors.As(err, &notFound) {
		return ErrNotFound
	}
	return err
}
