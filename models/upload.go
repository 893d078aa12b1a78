package models

import (
	"errors"
	"fmt"
	"strings"
)

// SourceKind tags where the bytes of an UploadRequest come from.
type SourceKind string

const (
	SourceRaw     SourceKind = "raw"
	SourceBase64  SourceKind = "base64"
	SourceURL     SourceKind = "url"
	SourceCode    SourceKind = "code"
	SourceDiagram SourceKind = "diagram"
)

// Rendered reports whether the kind produces its bytes through a renderer.
func (k SourceKind) Rendered() bool {
	return k == SourceCode || k == SourceDiagram
}

// Media families an endpoint may restrict uploads to.
const (
	MediaAny   = ""
	MediaImage = "image"
	MediaAudio = "audio"
)

// RenderSpec describes something to rasterize. Language holds the programming
// language for code and the diagram dialect for diagrams.
type RenderSpec struct {
	Content         string
	Language        string
	Style           string
	ShowLineNumbers bool
}

// UploadRequest is one upload, tagged by Kind. Only the payload field that
// matches Kind is read.
type UploadRequest struct {
	Kind          SourceKind
	Category      string
	OwnerID       string
	Filename      string
	ContentType   string
	ExpectedMedia string

	Data      []byte
	Base64    string
	SourceURL string
	Render    *RenderSpec
}

// Validate checks that the payload for Kind is present and that the declared
// content type fits ExpectedMedia.
func (r UploadRequest) Validate() error {
	if strings.TrimSpace(r.Category) == "" {
		return errors.New("category is required")
	}
	switch r.Kind {
	case SourceRaw:
		if len(r.Data) == 0 {
			return errors.New("file is empty")
		}
	case SourceBase64:
		if strings.TrimSpace(r.Base64) == "" {
			return errors.New("no image data provided, use the 'file_base64' field")
		}
	case SourceURL:
		if strings.TrimSpace(r.SourceURL) == "" {
			return errors.New("source_url is required")
		}
		if !strings.HasPrefix(r.SourceURL, "http://") && !strings.HasPrefix(r.SourceURL, "https://") {
			return fmt.Errorf("source_url must be an http(s) URL")
		}
	case SourceCode, SourceDiagram:
		if r.Render == nil || strings.TrimSpace(r.Render.Content) == "" {
			return fmt.Errorf("%s content is required", r.Kind)
		}
	default:
		return fmt.Errorf("unknown source kind %q", r.Kind)
	}
	if r.Kind != SourceURL && !MatchesMedia(r.ContentType, r.ExpectedMedia) {
		return fmt.Errorf("content type %q is not %s", r.ContentType, r.ExpectedMedia)
	}
	return nil
}

// MatchesMedia reports whether contentType belongs to the media family. An
// undeclared content type or family always matches; callers sniff later.
func MatchesMedia(contentType, media string) bool {
	if media == MediaAny || Undeclared(contentType) {
		return true
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), media+"/")
}

// Undeclared reports whether contentType carries no information about the bytes.
func Undeclared(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return ct == "" || ct == "application/octet-stream"
}

// UploadResult is what a successful upload reports back to the caller.
type UploadResult struct {
	Success    bool   `json:"success"`
	URL        string `json:"url"`
	StorageKey string `json:"storage_key"`
	Message    string `json:"message"`
}
