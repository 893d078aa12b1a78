package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Artifact is the catalog record of an object written to the store.
type Artifact struct {
	ID          bson.ObjectID `json:"id" bson:"_id,omitempty"`
	Category    string        `json:"category" bson:"category"` // e.g. "images", "generated/code"
	OwnerID     string        `json:"owner_id,omitempty" bson:"owner_id,omitempty"`
	FileName    string        `json:"file_name" bson:"file_name"`
	StorageKey  string        `json:"storage_key" bson:"storage_key"` // images/20250101_120000_<uuid>_cat.png
	URL         string        `json:"url" bson:"url"`
	ContentType string        `json:"content_type" bson:"content_type"`
	Size        int64         `json:"size" bson:"size"`
	SourceKind  SourceKind    `json:"source_kind" bson:"source_kind"`
	UploadedAt  time.Time     `json:"uploaded_at" bson:"uploaded_at"`
}

// ArtifactResponse is an Artifact as returned by listings, with a short-lived GET link.
type ArtifactResponse struct {
	Category    string    `json:"category"`
	OwnerID     string    `json:"owner_id,omitempty"`
	FileName    string    `json:"file_name"`
	StorageKey  string    `json:"storage_key"`
	URL         string    `json:"url"`
	SignedURL   string    `json:"signed_url"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
