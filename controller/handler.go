// Package controller exposes the upload pipeline and the artifact catalog over
// gin.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"mediastore/database"
	"mediastore/models"
	"mediastore/pipeline"
	"mediastore/storage"
)

var validate = validator.New()

// Uploader runs one upload request to completion.
type Uploader interface {
	Run(ctx context.Context, req models.UploadRequest) (models.UploadResult, error)
}

// Catalog serves artifact listings.
type Catalog interface {
	List(ctx context.Context, category string, page database.Page) ([]models.Artifact, int64, error)
	Search(ctx context.Context, name string, page database.Page) ([]models.Artifact, int64, error)
}

type Options struct {
	ServiceName    string
	Version        string
	MaxUploadBytes int64
	PresignTTL     time.Duration
	HealthTimeout  time.Duration
}

type Handler struct {
	uploader Uploader
	store    storage.Store
	catalog  Catalog
	opts     Options
	logger   *slog.Logger
}

// NewHandler wires the handlers. catalog may be nil, in which case listing
// endpoints answer 503.
func NewHandler(uploader Uploader, store storage.Store, catalog Catalog, opts Options, logger *slog.Logger) *Handler {
	if opts.ServiceName == "" {
		opts.ServiceName = "S3 Media Upload Service"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 << 20
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 10 * time.Minute
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		uploader: uploader,
		store:    store,
		catalog:  catalog,
		opts:     opts,
		logger:   logger.With("component", "controller"),
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
}

// run hands req to the pipeline on a context that outlives the client
// connection and writes the error response on failure.
func (h *Handler) run(c *gin.Context, req models.UploadRequest) (models.UploadResult, bool) {
	ctx := context.WithoutCancel(c.Request.Context())
	res, err := h.uploader.Run(ctx, req)
	if err != nil {
		h.fail(c, err)
		return models.UploadResult{}, false
	}
	return res, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	var pErr *pipeline.Error
	if errors.As(err, &pErr) {
		c.JSON(pErr.Kind.HTTPStatus(), errorResponse{Error: string(pErr.Kind), Detail: pErr.Message()})
		return
	}
	h.logger.Error("unclassified upload error", "error", err)
	c.JSON(http.StatusInternalServerError, errorResponse{Error: "InternalError", Detail: err.Error()})
}

func badRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: string(pipeline.ValidationFailed), Detail: detail})
}
