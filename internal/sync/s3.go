package sync

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const ndjsonContentType = "application/x-ndjson"

// s3API is the part of *s3.Client the destination calls.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Destination uploads each snapshot as one object.
//
// The key may contain {base}, {table} and {date} placeholders, filled from
// the snapshot header ({date} is the export day, YYYY-MM-DD). A key without
// placeholders is overwritten on every export. The header's base, table and
// record count are also stored as object metadata.
type S3Destination struct {
	client s3API
	bucket string
	key    string
}

// NewS3Destination builds a client from the default AWS credential chain.
// A non-empty endpoint switches to path-style addressing, which MinIO and
// most other S3-compatible stores need.
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Destination(client, bucket, key), nil
}

func newS3Destination(client s3API, bucket, key string) *S3Destination {
	return &S3Destination{client: client, bucket: bucket, key: key}
}

func (d *S3Destination) String() string { return "s3://" + d.bucket + "/" + d.key }

func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ndjsonContentType),
	}
	if h, ok := readHeader(data); ok {
		in.Key = aws.String(objectKey(d.key, h))
		in.Metadata = map[string]string{
			"airpuck-base":         h.BaseID,
			"airpuck-table":        h.Table,
			"airpuck-record-count": strconv.Itoa(h.RecordCount),
		}
	}
	if _, err := d.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("uploading %s/%s: %w", d.bucket, *in.Key, err)
	}
	return nil
}

// objectKey fills the key template from h. Values are used as-is, so a table
// name containing "/" adds a key segment.
func objectKey(template string, h header) string {
	date := ""
	if !h.Timestamp.IsZero() {
		date = h.Timestamp.UTC().Format("2006-01-02")
	}
	return strings.NewReplacer(
		"{base}", h.BaseID,
		"{table}", h.Table,
		"{date}", date,
	).Replace(template)
}
