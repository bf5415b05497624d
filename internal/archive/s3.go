// Package archive writes verified raw notification envelopes to S3 for
// later investigation. Archival is best effort: a failed write is logged
// and never affects the record's processing outcome.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ignite/feedback-processor/internal/pkg/logger"
)

// ObjectPutter is the subset of the S3 client the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver stores raw envelopes under feedback/<yyyy/mm/dd>/<messageId>.json.
type S3Archiver struct {
	client ObjectPutter
	bucket string
	now    func() time.Time
}

// NewS3Archiver creates an archiver for the given bucket.
func NewS3Archiver(client ObjectPutter, bucket string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, now: time.Now}
}

// Archive writes one raw envelope body. Errors are swallowed after logging.
func (a *S3Archiver) Archive(ctx context.Context, messageID string, raw []byte) {
	key := fmt.Sprintf("feedback/%s/%s.json", a.now().UTC().Format("2006/01/02"), messageID)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		logger.Warn("envelope archive failed", "key", key, "error", err.Error())
	}
}
