package storage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Storage stores artifacts in an AWS S3 bucket that is publicly readable
// through its bucket policy.
type S3Storage struct {
	client     s3API
	presigner  presignAPI
	bucket     string
	region     string
	publicBase string

	logger *slog.Logger
}

// NewS3Client builds an S3 client from the default AWS credential chain. A
// non-empty endpoint switches to path-style addressing against that endpoint
// (localstack and other S3 look-alikes).
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewS3Storage(client *s3.Client, bucket, region, publicBase string, l *slog.Logger) *S3Storage {
	return newS3Storage(client, s3.NewPresignClient(client), bucket, region, publicBase, l)
}

func newS3Storage(client s3API, presigner presignAPI, bucket, region, publicBase string, l *slog.Logger) *S3Storage {
	if l == nil {
		l = slog.Default()
	}
	return &S3Storage{
		client:     client,
		presigner:  presigner,
		bucket:     bucket,
		region:     region,
		publicBase: strings.TrimSpace(publicBase),
		logger:     l.With("component", "s3"),
	}
}

func (s *S3Storage) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		s.logger.Error("put object failed", "bucket", s.bucket, "key", key, "error", err)
		return "", &UnavailableError{Op: "put", Key: key, Code: errorCode(err), Err: err}
	}
	s.logger.Info("object stored", "bucket", s.bucket, "key", key, "size", len(data), "content_type", contentType)
	return s.PublicURL(key), nil
}

func (s *S3Storage) HealthCheck(ctx context.Context) Health {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		s.logger.Warn("s3 health check failed", "bucket", s.bucket, "error", err)
		return Health{Healthy: false, Detail: (&UnavailableError{Op: "head bucket", Code: errorCode(err), Err: err}).Error()}
	}
	return Health{Healthy: true, Detail: "ok"}
}

func (s *S3Storage) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", &UnavailableError{Op: "presign", Key: key, Code: errorCode(err), Err: err}
	}
	return req.URL, nil
}

func (s *S3Storage) PublicURL(key string) string {
	if s.publicBase != "" {
		return joinURL(s.publicBase, key)
	}
	return VirtualHostedURL(s.bucket, s.region, key)
}

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
