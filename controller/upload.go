package controller

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mediastore/models"
)

const (
	categoryImages = "images"
	categoryAudio  = "audio"
)

type ImageUploadRequest struct {
	FileName    string `json:"file_name" validate:"required"`
	FileBase64  string `json:"file_base64" validate:"required"`
	ContentType string `json:"content_type"`
	UserID      string `json:"user_id"`
}

type AudioURLRequest struct {
	SourceURL   string `json:"source_url" validate:"required,url"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	UserID      string `json:"user_id"`
}

// Upload stores any file under the category given in the form.
func (h *Handler) Upload(c *gin.Context) {
	category := strings.TrimSpace(c.PostForm("category"))
	if category == "" {
		category = strings.TrimSpace(c.PostForm("file_type"))
	}
	if category == "" {
		badRequest(c, "category is required")
		return
	}

	req, ok := h.multipartRequest(c, category, models.MediaAny)
	if !ok {
		return
	}
	res, ok := h.run(c, req)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"storage_key": res.StorageKey,
		"public_url":  res.URL,
		"message":     "Upload successful and file is public",
	})
}

// UploadImage stores a base64 encoded image sent as JSON.
func (h *Handler) UploadImage(c *gin.Context) {
	var body ImageUploadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload: "+err.Error())
		return
	}
	if err := validate.Struct(body); err != nil {
		if strings.TrimSpace(body.FileBase64) == "" {
			badRequest(c, "no image data provided, use the 'file_base64' field")
			return
		}
		badRequest(c, err.Error())
		return
	}

	res, ok := h.run(c, models.UploadRequest{
		Kind:          models.SourceBase64,
		Category:      categoryImages,
		OwnerID:       body.UserID,
		Filename:      body.FileName,
		ContentType:   body.ContentType,
		ExpectedMedia: models.MediaImage,
		Base64:        body.FileBase64,
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UploadImageFile(c *gin.Context) {
	req, ok := h.multipartRequest(c, categoryImages, models.MediaImage)
	if !ok {
		return
	}
	res, ok := h.run(c, req)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, res)
}

// UploadAudio accepts either a multipart audio file or a JSON body naming a
// source_url to download.
func (h *Handler) UploadAudio(c *gin.Context) {
	var req models.UploadRequest
	if strings.HasPrefix(c.ContentType(), gin.MIMEJSON) {
		var body AudioURLRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "invalid payload: "+err.Error())
			return
		}
		if err := validate.Struct(body); err != nil {
			badRequest(c, err.Error())
			return
		}
		req = models.UploadRequest{
			Kind:          models.SourceURL,
			Category:      categoryAudio,
			OwnerID:       body.UserID,
			Filename:      body.FileName,
			ContentType:   body.ContentType,
			ExpectedMedia: models.MediaAudio,
			SourceURL:     body.SourceURL,
		}
	} else {
		var ok bool
		if req, ok = h.multipartRequest(c, categoryAudio, models.MediaAudio); !ok {
			return
		}
	}

	res, ok := h.run(c, req)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, res)
}

// multipartRequest reads the "file" part and the optional "user_id" field.
func (h *Handler) multipartRequest(c *gin.Context, category, media string) (models.UploadRequest, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "no file provided, use the 'file' field")
		return models.UploadRequest{}, false
	}
	if fh.Size > h.opts.MaxUploadBytes {
		badRequest(c, fmt.Sprintf("file of %d bytes exceeds the %d byte limit", fh.Size, h.opts.MaxUploadBytes))
		return models.UploadRequest{}, false
	}
	data, err := readPart(fh, h.opts.MaxUploadBytes)
	if err != nil {
		h.logger.Warn("reading multipart file failed", "file", fh.Filename, "error", err)
		badRequest(c, "could not read uploaded file")
		return models.UploadRequest{}, false
	}
	return models.UploadRequest{
		Kind:          models.SourceRaw,
		Category:      category,
		OwnerID:       c.PostForm("user_id"),
		Filename:      fh.Filename,
		ContentType:   fh.Header.Get("Content-Type"),
		ExpectedMedia: media,
		Data:          data,
	}, true
}

func readPart(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit+1))
}
