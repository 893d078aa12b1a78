package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage is a Store backed by minio-go, for MinIO and other
// self-hosted S3 endpoints.
type MinioStorage struct {
	client     *minio.Client
	bucket     string
	publicBase string

	logger *slog.Logger
}

// NewMinioStorage connects to endpoint and makes sure bucket exists and is
// publicly readable.
func NewMinioStorage(ctx context.Context, endpoint, accessKey, secretKey, bucket, publicBase string, useSSL bool, l *slog.Logger) (*MinioStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	s := newMinioStorage(client, bucket, minioPublicBase(endpoint, bucket, publicBase, useSSL), l)
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func newMinioStorage(client *minio.Client, bucket, publicBase string, l *slog.Logger) *MinioStorage {
	if l == nil {
		l = slog.Default()
	}
	return &MinioStorage{
		client:     client,
		bucket:     bucket,
		publicBase: publicBase,
		logger:     l.With("component", "minio"),
	}
}

// minioPublicBase falls back to path-style URLs on the API endpoint.
func minioPublicBase(endpoint, bucket, publicBase string, useSSL bool) string {
	if publicBase != "" {
		return publicBase
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, endpoint, bucket)
}

func (s *MinioStorage) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %q: %w", s.bucket, err)
		}
		s.logger.Info("created bucket", "bucket", s.bucket)
	}
	policy, err := publicReadPolicy(s.bucket)
	if err != nil {
		return err
	}
	if err := s.client.SetBucketPolicy(ctx, s.bucket, policy); err != nil {
		return fmt.Errorf("set policy on bucket %q: %w", s.bucket, err)
	}
	return nil
}

func (s *MinioStorage) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		s.logger.Error("put object failed", "bucket", s.bucket, "key", key, "error", err)
		return "", &UnavailableError{Op: "put", Key: key, Code: minio.ToErrorResponse(err).Code, Err: err}
	}
	s.logger.Info("object stored", "bucket", s.bucket, "key", key, "size", len(data), "content_type", contentType)
	return s.PublicURL(key), nil
}

func (s *MinioStorage) HealthCheck(ctx context.Context) Health {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		s.logger.Warn("minio health check failed", "bucket", s.bucket, "error", err)
		return Health{Healthy: false, Detail: (&UnavailableError{Op: "bucket exists", Code: minio.ToErrorResponse(err).Code, Err: err}).Error()}
	}
	if !exists {
		return Health{Healthy: false, Detail: fmt.Sprintf("bucket %q does not exist", s.bucket)}
	}
	return Health{Healthy: true, Detail: "ok"}
}

func (s *MinioStorage) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, nil)
	if err != nil {
		return "", &UnavailableError{Op: "presign", Key: key, Err: err}
	}
	return u.String(), nil
}

func (s *MinioStorage) PublicURL(key string) string {
	return joinURL(s.publicBase, key)
}

type policyStatement struct {
	Effect    string `json:"Effect"`
	Principal string `json:"Principal"`
	Action    string `json:"Action"`
	Resource  string `json:"Resource"`
}

type bucketPolicy struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

// publicReadPolicy grants anonymous s3:GetObject on every key in bucket.
func publicReadPolicy(bucket string) (string, error) {
	b, err := json.Marshal(bucketPolicy{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: "*",
			Action:    "s3:GetObject",
			Resource:  "arn:aws:s3:::" + bucket + "/*",
		}},
	})
	if err != nil {
		return "", fmt.Errorf("encode bucket policy: %w", err)
	}
	return string(b), nil
}
