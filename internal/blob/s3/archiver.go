package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/polytrack/internal/domain"
)

// Archiver uploads snapshot copies under a date-partitioned key layout:
// snapshots/<name>/<yyyy-mm-dd>/<hhmmss>.json. Uploads are best-effort; the
// local atomic write remains the source of truth.
type Archiver struct {
	client *Client
}

// NewArchiver creates an Archiver over the given client.
func NewArchiver(client *Client) *Archiver {
	return &Archiver{client: client}
}

// ArchiveSnapshot uploads one snapshot payload.
func (a *Archiver) ArchiveSnapshot(ctx context.Context, name string, data []byte, at time.Time) error {
	key := fmt.Sprintf("snapshots/%s/%s/%s.json",
		name,
		at.UTC().Format("2006-01-02"),
		at.UTC().Format("150405"),
	)

	_, err := a.client.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.client.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3blob: archive snapshot %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SnapshotArchiver = (*Archiver)(nil)
