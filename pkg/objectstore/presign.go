package objectstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/filemill/filemill/internal/telemetry"
)

// PresignGet returns a time-limited download URL for an object. The URL is
// valid for the configured presign TTL and needs no authentication, so it
// can be handed straight to a browser.
func (c *Client) PresignGet(ctx context.Context, bucket, key string) (string, error) {
	ctx, span := telemetry.StartObjectSpan(ctx, "presign_get", bucket, key)
	defer span.End()

	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(c.cfg.PresignTTL))
	if err != nil {
		telemetry.RecordError(ctx, err)
		return "", fmt.Errorf("failed to presign download of %s/%s: %w", bucket, key, err)
	}
	return c.rewriteURL(req.URL), nil
}

// PresignPut returns a time-limited upload URL for an object.
func (c *Client) PresignPut(ctx context.Context, bucket, key string) (string, error) {
	ctx, span := telemetry.StartObjectSpan(ctx, "presign_put", bucket, key)
	defer span.End()

	req, err := c.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(c.cfg.PresignTTL))
	if err != nil {
		telemetry.RecordError(ctx, err)
		return "", fmt.Errorf("failed to presign upload to %s/%s: %w", bucket, key, err)
	}
	return c.rewriteURL(req.URL), nil
}

// rewriteURL applies the configured from -> to substitution. Presigned
// URLs embed the store's internal endpoint, which browsers often cannot
// reach (a compose hostname like "minio:9000"); the rewrite swaps in the
// externally routable prefix. The signature stays valid as long as the
// proxy forwards the original Host header.
func (c *Client) rewriteURL(u string) string {
	rw := c.cfg.URLRewrite
	if rw.From == "" {
		return u
	}
	return strings.Replace(u, rw.From, rw.To, 1)
}
