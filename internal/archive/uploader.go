// Package archive uploads finalized report documents to S3-compatible object
// storage (R2) so submitted reports survive independently of the database.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Uploader struct {
	client *s3.Client
	bucket string
}

// Options configures the S3-compatible endpoint. Endpoint is the R2/MinIO
// base URL; leave empty for plain AWS S3.
type Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// New builds an uploader. Returns nil (archiving disabled) when the bucket or
// credentials are not configured.
func New(opts Options) *Uploader {
	if opts.Bucket == "" || opts.AccessKey == "" || opts.SecretKey == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)),
		awsconfig.WithRegion(opts.Region),
	)
	if err != nil {
		log.Printf("[Archive] Failed to configure S3 client: %v", err)
		return nil
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	return &Uploader{client: client, bucket: opts.Bucket}
}

// Put stores a document under reports/<project>/<date>/<name>.
func (u *Uploader) Put(ctx context.Context, project, dateKey, name, contentType string, body []byte) error {
	key := fmt.Sprintf("reports/%s/%s/%s", project, dateKey, name)
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	return err
}
