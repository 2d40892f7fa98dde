package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the part of the S3 client a destination needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Destination uploads reports to an S3-compatible bucket.
type S3Destination struct {
	client ObjectPutter
	bucket string
	key    string
	now    func() time.Time
}

// NewS3Destination creates an S3 destination. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
//
// A key ending in "/" is a prefix: each report gets its own timestamped
// object under it. Any other key is overwritten by every report.
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return NewS3DestinationWithClient(s3.NewFromConfig(cfg, s3opts...), bucket, key), nil
}

// NewS3DestinationWithClient uses an existing client.
func NewS3DestinationWithClient(client ObjectPutter, bucket, key string) *S3Destination {
	return &S3Destination{client: client, bucket: bucket, key: key, now: time.Now}
}

func (d *S3Destination) Name() string {
	return "s3://" + d.bucket + "/" + d.key
}

// objectKey returns the key the next report is written to.
func (d *S3Destination) objectKey() string {
	return reportKey(d.key, d.now())
}

func reportKey(key string, t time.Time) string {
	if key == "" || strings.HasSuffix(key, "/") {
		return key + "reconcile-" + t.UTC().Format("20060102T150405Z") + ".jsonl"
	}
	return key
}

// Write uploads data as one object.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	key := d.objectKey()
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}
