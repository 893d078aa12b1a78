// Package storage puts artifact bytes into an object store and derives their
// public URLs. Implementations are safe for concurrent use.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store is the artifact store contract used by the upload pipeline.
type Store interface {
	// Put writes data under key and returns the object's public URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// HealthCheck performs a cheap read-only call against the backend.
	HealthCheck(ctx context.Context) Health
	// PresignGet returns a time-limited GET link for key.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	// PublicURL derives the public URL for key without any I/O.
	PublicURL(key string) string
}

type Health struct {
	Healthy bool
	Detail  string
}

// UnavailableError wraps any failure of the backend to accept a call.
type UnavailableError struct {
	Op   string
	Key  string
	Code string // backend error code, when the SDK exposes one
	Err  error
}

func (e *UnavailableError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "storage %s", e.Op)
	if e.Key != "" {
		fmt.Fprintf(&b, " %q", e.Key)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// VirtualHostedURL is the standard public URL of an S3 object.
func VirtualHostedURL(bucket, region, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
