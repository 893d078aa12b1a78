package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mediastore/models"
)

const (
	categoryCode    = "generated/code"
	categoryMermaid = "generated/mermaid"
)

type CodeRenderRequest struct {
	Code            string `json:"code" validate:"required"`
	Language        string `json:"language"`
	Style           string `json:"style"`
	ShowLineNumbers *bool  `json:"show_line_numbers"` // defaults to true
	FileName        string `json:"file_name"`
	UserID          string `json:"user_id"`
}

type MermaidRenderRequest struct {
	MermaidCode string `json:"mermaid_code" validate:"required"`
	Style       string `json:"style"`
	FileName    string `json:"file_name"`
	UserID      string `json:"user_id"`
}

func (h *Handler) RenderCode(c *gin.Context) {
	var body CodeRenderRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload: "+err.Error())
		return
	}
	if err := validate.Struct(body); err != nil {
		badRequest(c, err.Error())
		return
	}

	lineNumbers := true
	if body.ShowLineNumbers != nil {
		lineNumbers = *body.ShowLineNumbers
	}
	res, ok := h.run(c, models.UploadRequest{
		Kind:     models.SourceCode,
		Category: categoryCode,
		OwnerID:  body.UserID,
		Filename: body.FileName,
		Render: &models.RenderSpec{
			Content:         body.Code,
			Language:        body.Language,
			Style:           body.Style,
			ShowLineNumbers: lineNumbers,
		},
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) RenderMermaid(c *gin.Context) {
	var body MermaidRenderRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload: "+err.Error())
		return
	}
	if err := validate.Struct(body); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, ok := h.run(c, models.UploadRequest{
		Kind:     models.SourceDiagram,
		Category: categoryMermaid,
		OwnerID:  body.UserID,
		Filename: body.FileName,
		Render: &models.RenderSpec{
			Content:  body.MermaidCode,
			Language: "mermaid",
			Style:    body.Style,
		},
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, res)
}
