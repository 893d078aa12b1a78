package controller_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediastore/controller"
	"mediastore/database"
	"mediastore/models"
	"mediastore/pipeline"
	"mediastore/render"
	"mediastore/route"
	"mediastore/storage"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nrendered")

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	healthy bool
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, healthy: true}
}

func (s *memStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return s.PublicURL(key), nil
}

func (s *memStore) HealthCheck(context.Context) storage.Health {
	if !s.healthy {
		return storage.Health{Healthy: false, Detail: "dial tcp: connection refused"}
	}
	return storage.Health{Healthy: true}
}

func (s *memStore) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return s.PublicURL(key) + "?X-Amz-Expires=" + ttl.String(), nil
}

func (s *memStore) PublicURL(key string) string {
	return storage.VirtualHostedURL("media", "us-east-1", key)
}

type stubRenderer struct {
	out []byte
	err error
}

func (r stubRenderer) Render(context.Context, models.RenderSpec) ([]byte, error) {
	return r.out, r.err
}

type stubCatalog struct {
	artifacts []models.Artifact
	lastQuery string
	lastPage  database.Page
}

func (c *stubCatalog) List(_ context.Context, category string, page database.Page) ([]models.Artifact, int64, error) {
	c.lastQuery, c.lastPage = category, page
	return c.artifacts, int64(len(c.artifacts)), nil
}

func (c *stubCatalog) Search(_ context.Context, name string, page database.Page) ([]models.Artifact, int64, error) {
	c.lastQuery, c.lastPage = name, page
	return c.artifacts, int64(len(c.artifacts)), nil
}

type fixture struct {
	router *gin.Engine
	store  *memStore
}

func newFixture(t *testing.T, diagram render.Renderer, catalog controller.Catalog) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newMemStore()
	p := pipeline.New(store, stubRenderer{out: pngBytes}, diagram, pipeline.Config{}, pipeline.WithLogger(logger))
	h := controller.NewHandler(p, store, catalog, controller.Options{MaxUploadBytes: 1 << 20}, logger)

	r := gin.New()
	route.Upload(r, h)
	route.Public(r, h)
	return fixture{router: r, store: store}
}

func (f fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, path, filename, contentType string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestUploadImageFile(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(multipartRequest(t, "/upload/image/file", "cat.png", "image/png", []byte("0123456789"), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.True(t, strings.HasSuffix(body["url"].(string), "cat.png"))
	assert.Regexp(t, `^images/\d{8}_\d{6}_[0-9a-f-]{36}_cat\.png$`, body["storage_key"])
	assert.Len(t, f.store.objects, 1)
}

func TestUploadImageFile_RejectsAudio(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(multipartRequest(t, "/upload/image/file", "song.mp3", "audio/mpeg", []byte("ID3"), nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ValidationFailed", decode(t, w)["error"])
	assert.Empty(t, f.store.objects)
}

func TestUploadImageFile_MissingFile(t *testing.T) {
	f := newFixture(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/upload/image/file", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w := f.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadGeneric_FileTypeAlias(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(multipartRequest(t, "/upload/", "report.pdf", "application/pdf", []byte("%PDF-1.4"),
		map[string]string{"file_type": "documents", "user_id": "u7"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Regexp(t, `^documents/u7/\d{8}_\d{6}_[0-9a-f-]{36}_report\.pdf$`, body["storage_key"])
	assert.Equal(t, "https://media.s3.us-east-1.amazonaws.com/"+body["storage_key"].(string), body["public_url"])
	assert.Equal(t, "Upload successful and file is public", body["message"])
}

func TestUploadGeneric_MissingCategory(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(multipartRequest(t, "/upload/", "a.txt", "text/plain", []byte("a"), nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadImage_Base64(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(jsonRequest(t, "/upload/image", map[string]string{
		"file_name":    "pixel.png",
		"file_base64":  base64.StdEncoding.EncodeToString(pngBytes),
		"content_type": "image/png",
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, strings.HasSuffix(decode(t, w)["url"].(string), "_pixel.png"))
}

func TestUploadImage_NonImageContentType(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(jsonRequest(t, "/upload/image", map[string]string{
		"file_name":    "notes.txt",
		"file_base64":  base64.StdEncoding.EncodeToString([]byte("hello")),
		"content_type": "text/plain",
	}))
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "ValidationFailed", body["error"])
	assert.Empty(t, f.store.objects)
}

func TestUploadImage_MissingPayload(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(jsonRequest(t, "/upload/image", map[string]string{"file_name": "a.png"}))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["detail"], "file_base64")
}

func TestUploadAudio_SourceURL(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3 audio"))
	}))
	defer upstream.Close()

	f := newFixture(t, nil, nil)
	w := f.do(jsonRequest(t, "/upload/audio", map[string]string{
		"source_url": upstream.URL + "/tts/greeting.mp3",
		"user_id":    "u1",
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Regexp(t, `^audio/u1/.*_greeting\.mp3$`, decode(t, w)["storage_key"])
}

func TestUploadAudio_UpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()

	f := newFixture(t, nil, nil)
	w := f.do(jsonRequest(t, "/upload/audio", map[string]string{"source_url": upstream.URL + "/a.mp3"}))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "UpstreamFetchFailed", decode(t, w)["error"])
}

func TestUploadAudio_Multipart(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(multipartRequest(t, "/upload/audio", "clip.wav", "audio/wav", []byte("RIFF"), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Regexp(t, `^audio/.*_clip\.wav$`, decode(t, w)["storage_key"])
}

func TestRenderCode(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(jsonRequest(t, "/render-and-upload/code", map[string]string{
		"code":     "print(1)",
		"language": "python",
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.True(t, strings.HasSuffix(body["url"].(string), ".png"))
	assert.Regexp(t, `^generated/code/`, body["storage_key"])
}

func TestRenderCode_MissingCode(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(jsonRequest(t, "/render-and-upload/code", map[string]string{"language": "go"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRenderMermaid(t *testing.T) {
	f := newFixture(t, stubRenderer{out: pngBytes}, nil)

	w := f.do(jsonRequest(t, "/render-and-upload/mermaid", map[string]string{
		"mermaid_code": "graph TD; A-->B",
		"file_name":    "flow",
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Regexp(t, `^generated/mermaid/.*_flow\.png$`, decode(t, w)["storage_key"])
}

func TestRenderMermaid_RenderFailure(t *testing.T) {
	failing := stubRenderer{err: &render.Error{Op: "mermaid.ink", Status: http.StatusBadRequest, Detail: "Parse error"}}
	f := newFixture(t, failing, nil)

	w := f.do(jsonRequest(t, "/render-and-upload/mermaid", map[string]string{"mermaid_code": "graph TD; A--"}))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	body := decode(t, w)
	assert.Equal(t, "RenderFailed", body["error"])
	assert.Contains(t, body["detail"], "Parse error")
	assert.Empty(t, f.store.objects)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	f.store.healthy = false
	w = f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "error", body["store"])
	assert.Contains(t, body["detail"], "connection refused")
}

func TestRoot(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "S3 Media Upload Service", body["service_name"])
	assert.Equal(t, "1.0.0", body["version"])
	assert.Contains(t, body["endpoints"], "POST /render-and-upload/code")
}

func TestArtifacts_NoCatalog(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.do(httptest.NewRequest(http.MethodGet, "/artifacts", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestArtifacts_ListByCategory(t *testing.T) {
	catalog := &stubCatalog{artifacts: []models.Artifact{{
		Category:   "images",
		FileName:   "cat.png",
		StorageKey: "images/20240501_123045_id_cat.png",
		URL:        "https://media.s3.us-east-1.amazonaws.com/images/20240501_123045_id_cat.png",
	}}}
	f := newFixture(t, nil, catalog)

	w := f.do(httptest.NewRequest(http.MethodGet, "/artifacts/images?page=2&limit=3", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "images", catalog.lastQuery)
	assert.Equal(t, database.Page{Page: 2, Limit: 3}, catalog.lastPage)

	body := decode(t, w)
	items := body["artifacts"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Contains(t, item["signed_url"], "X-Amz-Expires=10m0s")
	assert.Equal(t, float64(1), body["total"])
}

func TestArtifacts_NestedCategoryQuery(t *testing.T) {
	catalog := &stubCatalog{}
	f := newFixture(t, nil, catalog)

	w := f.do(httptest.NewRequest(http.MethodGet, "/artifacts?category=generated/code", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "generated/code", catalog.lastQuery)
	assert.Equal(t, database.Page{Page: 1, Limit: 6}, catalog.lastPage)
}

func TestArtifacts_Search(t *testing.T) {
	catalog := &stubCatalog{}
	f := newFixture(t, nil, catalog)

	w := f.do(httptest.NewRequest(http.MethodGet, "/artifacts/search?name=god+war", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "god war", catalog.lastQuery)

	w = f.do(httptest.NewRequest(http.MethodGet, "/artifacts/search", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type errUploader struct{}

func (errUploader) Run(context.Context, models.UploadRequest) (models.UploadResult, error) {
	return models.UploadResult{}, errors.New("unexpected")
}

func TestUnclassifiedErrorIs500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := controller.NewHandler(errUploader{}, newMemStore(), nil, controller.Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := gin.New()
	route.Upload(r, h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(t, "/render-and-upload/code", map[string]string{"code": "x"}))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
