package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"

	"github.com/filemill/filemill/internal/telemetry"
)

// ObjectInfo describes a stored object as reported by the store.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// Put uploads a local file. When contentType is empty the type is sniffed
// from the file contents, falling back to application/octet-stream.
//
// Uploads are single PutObject calls. The platform caps upload size well
// below the 5 GiB single-put limit, so multipart is never needed.
func (c *Client) Put(ctx context.Context, bucket, key, localPath, contentType string) error {
	if contentType == "" {
		if mt, err := mimetype.DetectFile(localPath); err == nil {
			contentType = mt.String()
		} else {
			contentType = "application/octet-stream"
		}
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	return c.PutReader(ctx, bucket, key, f, info.Size(), contentType)
}

// PutReader uploads from a stream. Pass size < 0 when the length is
// unknown; the body must then be seekable so the SDK can sign it.
func (c *Client) PutReader(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	ctx, span := telemetry.StartObjectSpan(ctx, "put", bucket, key)
	defer span.End()
	if size >= 0 {
		telemetry.SetAttributes(ctx, telemetry.FileSize(size))
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := c.s3.PutObject(ctx, input); err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("failed to store %s/%s: %w", bucket, key, convertObjectError(err))
	}
	return nil
}

// Get downloads an object to a local file. A partial download never
// survives: on copy failure the local file is removed.
func (c *Client) Get(ctx context.Context, bucket, key, localPath string) error {
	body, _, err := c.GetReader(ctx, bucket, key)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(localPath)
		return fmt.Errorf("failed to write %s: %w", localPath, err)
	}

	return f.Close()
}

// GetReader streams an object. The caller owns the returned body and must
// close it. The span covers fetching the headers, not draining the body.
func (c *Client) GetReader(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error) {
	ctx, span := telemetry.StartObjectSpan(ctx, "get", bucket, key)
	defer span.End()

	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, ObjectInfo{}, fmt.Errorf("failed to fetch %s/%s: %w", bucket, key, convertObjectError(err))
	}

	info := ObjectInfo{
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}
	return out.Body, info, nil
}

// Delete removes an object. Deleting a missing object is not an error;
// S3 semantics make the operation idempotent and the delete cascade relies
// on that.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	ctx, span := telemetry.StartObjectSpan(ctx, "delete", bucket, key)
	defer span.End()

	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("failed to delete %s/%s: %w", bucket, key, err)
	}
	return nil
}
