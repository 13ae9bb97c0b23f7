package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configures an S3-compatible bucket (AWS, R2, MinIO).
type S3Options struct {
	Bucket        string
	Endpoint      string
	Region        string
	AccessKeyID   string
	SecretKey     string
	PublicBaseURL string
}

// S3 uploads objects through the S3 API.
type S3 struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewS3 builds a client. A custom endpoint switches to path-style addressing.
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("archive: S3_BUCKET is required")
	}
	region := opts.Region
	if region == "" {
		region = "auto"
	}
	loaders := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if opts.AccessKeyID != "" && opts.SecretKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("archive: s3 config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	baseURL := strings.TrimRight(opts.PublicBaseURL, "/")
	if baseURL == "" && opts.Endpoint != "" {
		baseURL = strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
	}
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, region)
	}
	return &S3{client: client, bucket: opts.Bucket, baseURL: baseURL}, nil
}

func (s *S3) Put(ctx context.Context, key, contentType string, data []byte) (Object, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return Object{}, fmt.Errorf("archive: s3 put %s: %w", key, err)
	}
	return Object{
		Key:         key,
		URL:         s.baseURL + "/" + key,
		ContentType: contentType,
		Size:        int64(len(data)),
		StoredAt:    time.Now().UTC(),
	}, nil
}
