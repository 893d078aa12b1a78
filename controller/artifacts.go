package controller

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"mediastore/database"
	"mediastore/models"
)

const listTimeout = 10 * time.Second

type listFunc func(ctx context.Context, page database.Page) ([]models.Artifact, int64, error)

// ListArtifacts lists every artifact, or those of the optional category query
// value. Nested categories such as generated/code can only be named that way.
func (h *Handler) ListArtifacts(c *gin.Context) {
	category := strings.Trim(c.Query("category"), "/")
	h.list(c, func(ctx context.Context, page database.Page) ([]models.Artifact, int64, error) {
		return h.catalog.List(ctx, category, page)
	})
}

func (h *Handler) ListArtifactsByCategory(c *gin.Context) {
	category := strings.Trim(c.Param("category"), "/")
	h.list(c, func(ctx context.Context, page database.Page) ([]models.Artifact, int64, error) {
		return h.catalog.List(ctx, category, page)
	})
}

func (h *Handler) SearchArtifacts(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		badRequest(c, "missing 'name' query parameter")
		return
	}
	h.list(c, func(ctx context.Context, page database.Page) ([]models.Artifact, int64, error) {
		return h.catalog.Search(ctx, name, page)
	})
}

func (h *Handler) list(c *gin.Context, find listFunc) {
	if h.catalog == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "CatalogDisabled", Detail: "artifact catalog is not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), listTimeout)
	defer cancel()

	page := database.ParsePage(c.DefaultQuery("page", "1"), c.DefaultQuery("limit", "6"))
	artifacts, total, err := find(ctx, page)
	if err != nil {
		h.logger.Error("catalog query failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "CatalogUnavailable", Detail: "error listing artifacts"})
		return
	}

	out := make([]models.ArtifactResponse, 0, len(artifacts))
	for _, a := range artifacts {
		signedURL, err := h.store.PresignGet(ctx, a.StorageKey, h.opts.PresignTTL)
		if err != nil {
			h.logger.Warn("presign failed, falling back to public url", "key", a.StorageKey, "error", err)
			signedURL = a.URL
		}
		out = append(out, models.ArtifactResponse{
			Category:    a.Category,
			OwnerID:     a.OwnerID,
			FileName:    a.FileName,
			StorageKey:  a.StorageKey,
			URL:         a.URL,
			SignedURL:   signedURL,
			ContentType: a.ContentType,
			Size:        a.Size,
			UploadedAt:  a.UploadedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"artifacts":  out,
		"total":      total,
		"page":       page.Page,
		"limit":      page.Limit,
		"totalPages": page.TotalPages(total),
	})
}
