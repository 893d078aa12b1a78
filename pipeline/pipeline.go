// Package pipeline runs a single upload from request to stored artifact:
//
//	Received -> Validated -> PayloadObtained -> KeyAssigned -> Stored -> Responded
//
// Any stage may end the run with an *Error. Nothing is retried.
package pipeline

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"mediastore/models"
	"mediastore/render"
	"mediastore/storage"
	"mediastore/utils"
)

type Stage string

const (
	StageReceived        Stage = "received"
	StageValidated       Stage = "validated"
	StagePayloadObtained Stage = "payload_obtained"
	StageKeyAssigned     Stage = "key_assigned"
	StageStored          Stage = "stored"
	StageResponded       Stage = "responded"
)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultStoreTimeout = 60 * time.Second
	defaultMaxPayload   = 50 << 20
	catalogTimeout      = 5 * time.Second
)

// Recorder receives a record of every stored artifact.
type Recorder interface {
	Record(ctx context.Context, a models.Artifact) error
}

type Config struct {
	FetchTimeout    time.Duration
	StoreTimeout    time.Duration
	MaxPayloadBytes int64
}

type Pipeline struct {
	store   storage.Store
	code    render.Renderer
	diagram render.Renderer
	catalog Recorder

	namer  utils.KeyNamer
	client *http.Client
	cfg    Config
	logger *slog.Logger
}

type Option func(*Pipeline)

// WithCatalog records stored artifacts in c.
func WithCatalog(c Recorder) Option {
	return func(p *Pipeline) { p.catalog = c }
}

func WithKeyNamer(n utils.KeyNamer) Option {
	return func(p *Pipeline) { p.namer = n }
}

// WithHTTPClient sets the client used to download source URLs. Its own
// timeout is kept; the fetch timeout still applies through the context.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) { p.client = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func New(store storage.Store, code, diagram render.Renderer, cfg Config, opts ...Option) *Pipeline {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = defaultMaxPayload
	}
	p := &Pipeline{
		store:   store,
		code:    code,
		diagram: diagram,
		cfg:     cfg,
		client:  &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "pipeline")
	return p
}

// payload is the output of the PayloadObtained stage.
type payload struct {
	data        []byte
	contentType string
	filename    string
	ext         string
}

// Run executes one upload. On failure the returned result is the zero value
// and err is an *Error.
func (p *Pipeline) Run(ctx context.Context, req models.UploadRequest) (models.UploadResult, error) {
	start := time.Now()
	res, size, err := p.run(ctx, req)
	if err != nil {
		pErr := err.(*Error)
		uploadsTotal.WithLabelValues(string(req.Kind), string(pErr.Kind)).Inc()
		p.logger.Error("upload failed",
			"kind", req.Kind, "category", req.Category, "stage", pErr.Stage,
			"error_kind", pErr.Kind, "error", pErr.Message(), "elapsed", time.Since(start))
		return models.UploadResult{}, err
	}
	uploadsTotal.WithLabelValues(string(req.Kind), "ok").Inc()
	uploadBytes.WithLabelValues(string(req.Kind)).Observe(float64(size))
	p.logger.Info("upload stored",
		"kind", req.Kind, "key", res.StorageKey, "size", size, "elapsed", time.Since(start))
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, req models.UploadRequest) (models.UploadResult, int, error) {
	if err := req.Validate(); err != nil {
		return models.UploadResult{}, 0, fail(ValidationFailed, StageValidated, nil, "%s", err.Error())
	}

	t := time.Now()
	pl, pErr := p.obtain(ctx, req)
	stageSeconds.WithLabelValues(string(StagePayloadObtained)).Observe(time.Since(t).Seconds())
	if pErr != nil {
		return models.UploadResult{}, 0, pErr
	}
	if int64(len(pl.data)) > p.cfg.MaxPayloadBytes {
		return models.UploadResult{}, 0, fail(ValidationFailed, StagePayloadObtained, nil,
			"payload of %d bytes exceeds the %d byte limit", len(pl.data), p.cfg.MaxPayloadBytes)
	}

	key := p.namer.ObjectKey(req.Category, req.OwnerID, pl.filename, pl.ext)

	t = time.Now()
	storeCtx, cancel := context.WithTimeout(ctx, p.cfg.StoreTimeout)
	publicURL, err := p.store.Put(storeCtx, key, pl.data, pl.contentType)
	cancel()
	stageSeconds.WithLabelValues(string(StageStored)).Observe(time.Since(t).Seconds())
	if err != nil {
		return models.UploadResult{}, 0, fail(StoreUnavailable, StageStored, err, "failed to store %s", key)
	}

	p.record(ctx, req, pl, key, publicURL)

	return models.UploadResult{
		Success:    true,
		URL:        publicURL,
		StorageKey: key,
		Message:    successMessage(req.Kind),
	}, len(pl.data), nil
}

func (p *Pipeline) obtain(ctx context.Context, req models.UploadRequest) (payload, *Error) {
	switch req.Kind {
	case models.SourceRaw:
		return p.typed(req, req.Data, req.ContentType)

	case models.SourceBase64:
		data, err := utils.DecodeBase64(req.Base64)
		if err != nil {
			return payload{}, fail(ValidationFailed, StagePayloadObtained, err, "invalid base64 payload")
		}
		declared := req.ContentType
		if models.Undeclared(declared) {
			declared = utils.DataURLType(req.Base64)
		}
		return p.typed(req, data, declared)

	case models.SourceURL:
		return p.fetch(ctx, req)

	case models.SourceCode:
		return p.rendered(ctx, req, p.code, "code.png")

	case models.SourceDiagram:
		return p.rendered(ctx, req, p.diagram, "diagram.png")
	}
	return payload{}, fail(ValidationFailed, StagePayloadObtained, nil, "unknown source kind %q", req.Kind)
}

// typed settles the content type of uploaded bytes, sniffing when the client
// declared none, and enforces the endpoint's media family.
func (p *Pipeline) typed(req models.UploadRequest, data []byte, declared string) (payload, *Error) {
	contentType := strings.TrimSpace(declared)
	if models.Undeclared(contentType) {
		contentType = mimetype.Detect(data).String()
	}
	if !models.MatchesMedia(contentType, req.ExpectedMedia) {
		return payload{}, fail(ValidationFailed, StagePayloadObtained, nil,
			"content type %q is not %s", contentType, req.ExpectedMedia)
	}
	return payload{data: data, contentType: contentType, filename: req.Filename}, nil
}

func (p *Pipeline) rendered(ctx context.Context, req models.UploadRequest, r render.Renderer, fallbackName string) (payload, *Error) {
	if r == nil {
		return payload{}, fail(RenderFailed, StagePayloadObtained, nil, "no %s renderer configured", req.Kind)
	}
	data, err := r.Render(ctx, *req.Render)
	if err != nil {
		return payload{}, fail(RenderFailed, StagePayloadObtained, err, "failed to render %s", req.Kind)
	}
	if !render.IsPNG(data) {
		return payload{}, fail(RenderFailed, StagePayloadObtained, nil, "%s renderer did not return a PNG image", req.Kind)
	}
	name := req.Filename
	if strings.TrimSpace(name) == "" {
		name = fallbackName
	}
	return payload{data: data, contentType: "image/png", filename: name, ext: ".png"}, nil
}

// fetch downloads req.SourceURL. A response whose content type does not match
// the expected media is logged and still accepted.
func (p *Pipeline) fetch(ctx context.Context, req models.UploadRequest) (payload, *Error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, req.SourceURL, nil)
	if err != nil {
		return payload{}, fail(ValidationFailed, StagePayloadObtained, err, "invalid source_url")
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return payload{}, fail(UpstreamFetchFailed, StagePayloadObtained, err, "failed to download %s", req.SourceURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return payload{}, fail(UpstreamFetchFailed, StagePayloadObtained, nil,
			"failed to download %s: upstream status %d", req.SourceURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.cfg.MaxPayloadBytes+1))
	if err != nil {
		return payload{}, fail(UpstreamFetchFailed, StagePayloadObtained, err, "failed to read %s", req.SourceURL)
	}

	served := resp.Header.Get("Content-Type")
	if !models.MatchesMedia(served, req.ExpectedMedia) {
		p.logger.Warn("source content type does not match the expected media",
			"url", req.SourceURL, "content_type", served, "expected", req.ExpectedMedia)
	}

	contentType := strings.TrimSpace(req.ContentType)
	if models.Undeclared(contentType) {
		contentType = served
	}
	if models.Undeclared(contentType) {
		contentType = mimetype.Detect(data).String()
	}

	name := req.Filename
	if strings.TrimSpace(name) == "" {
		name = filenameFromURL(req.SourceURL)
	}
	return payload{data: data, contentType: contentType, filename: name}, nil
}

func (p *Pipeline) record(ctx context.Context, req models.UploadRequest, pl payload, key, publicURL string) {
	if p.catalog == nil {
		return
	}
	name := utils.SanitizeFilename(pl.filename)
	if pl.ext != "" && !strings.HasSuffix(strings.ToLower(name), pl.ext) {
		name += pl.ext
	}
	recCtx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()
	err := p.catalog.Record(recCtx, models.Artifact{
		Category:    req.Category,
		OwnerID:     req.OwnerID,
		FileName:    name,
		StorageKey:  key,
		URL:         publicURL,
		ContentType: pl.contentType,
		Size:        int64(len(pl.data)),
		SourceKind:  req.Kind,
		UploadedAt:  time.Now().UTC(),
	})
	if err != nil {
		p.logger.Warn("catalog record failed", "key", key, "error", err)
	}
}

func filenameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return path.Base(u.Path)
}

func successMessage(kind models.SourceKind) string {
	switch kind {
	case models.SourceCode:
		return "Code snippet rendered and uploaded successfully"
	case models.SourceDiagram:
		return "Mermaid diagram rendered and uploaded successfully"
	default:
		return "Upload successful"
	}
}
