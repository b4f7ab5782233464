package s3blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	// multipartThreshold switches uploads to the multipart path. Archive
	// dumps are usually well under this; a heavy trading day is not.
	multipartThreshold = 8 * 1024 * 1024
	// partSize is the multipart chunk size (the S3 minimum is 5 MiB).
	partSize int64 = 5 * 1024 * 1024
)

// Writer uploads archive objects into the client's bucket, choosing between
// single-shot and multipart based on payload size.
type Writer struct {
	client *s3.Client
	bucket string
}

// NewWriter creates a Writer over the given client.
func NewWriter(c *Client) *Writer {
	return &Writer{client: c.S3(), bucket: c.Bucket()}
}

// Upload stores buf under key. Payloads at or above the multipart threshold
// go through the SDK upload manager, which splits and uploads parts
// concurrently.
func (w *Writer) Upload(ctx context.Context, key string, buf []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf),
		ContentType: aws.String(contentType),
	}

	if len(buf) >= multipartThreshold {
		uploader := manager.NewUploader(w.client, func(u *manager.Uploader) {
			u.PartSize = partSize
		})
		if _, err := uploader.Upload(ctx, input); err != nil {
			return fmt.Errorf("s3blob: multipart upload %s: %w", key, err)
		}
		return nil
	}

	if _, err := w.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3blob: put %s: %w", key, err)
	}
	return nil
}
