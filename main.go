package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"mediastore/config"
	"mediastore/controller"
	"mediastore/database"
	"mediastore/middlewares"
	"mediastore/pipeline"
	"mediastore/render"
	"mediastore/route"
	"mediastore/storage"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("object storage init failed", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}

	browser := render.Browser{
		ChromePath:  cfg.ChromePath,
		WaitTimeout: cfg.RenderWaitTimeout,
	}
	if !browser.ChromeAvailable() {
		logger.Warn("no Chrome binary found, browser rendering is unavailable", "code_renderer", cfg.CodeRenderer)
	}
	codeRenderer, err := render.NewCodeRendererFor(cfg.CodeRenderer, browser)
	if err != nil {
		logger.Error("code renderer init failed", "error", err)
		os.Exit(1)
	}
	diagramRenderer, err := render.NewDiagramRenderer(cfg.DiagramRenderer, cfg.MermaidInkURL, cfg.RemoteRenderTimeout, browser)
	if err != nil {
		logger.Error("diagram renderer init failed", "error", err)
		os.Exit(1)
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	var catalog controller.Catalog
	if cfg.MongoURI != "" {
		client, err := database.Connect(ctx, cfg.MongoURI)
		if err != nil {
			logger.Error("failed to connect to MongoDB", "error", err)
			os.Exit(1)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()

		artifacts := database.NewArtifactCatalog(client, cfg.MongoDatabase)
		if err := artifacts.EnsureIndexes(ctx); err != nil {
			logger.Warn("creating catalog indexes failed", "error", err)
		}
		catalog = artifacts
		opts = append(opts, pipeline.WithCatalog(artifacts))
	} else {
		logger.Info("MONGO_URI not set, artifact catalog disabled")
	}

	uploads := pipeline.New(store, codeRenderer, diagramRenderer, pipeline.Config{
		FetchTimeout:    cfg.FetchTimeout,
		StoreTimeout:    cfg.StoreTimeout,
		MaxPayloadBytes: cfg.MaxUploadBytes,
	}, opts...)

	handler := controller.NewHandler(uploads, store, catalog, controller.Options{
		Version:        version,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.MaxMultipartMemory = 32 << 20
	router.Use(gin.Recovery(), middlewares.Logger(logger), middlewares.Metrics())
	router.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return strings.HasPrefix(origin, "http://") || strings.HasPrefix(origin, "https://")
		},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Content-Length", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	route.Upload(router, handler)
	route.Public(router, handler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.AppEnv,
			"storage", cfg.StorageBackend, "bucket", cfg.Bucket, "code_renderer", cfg.CodeRenderer, "diagram_renderer", cfg.DiagramRenderer)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	logger.Info("shutting down gracefully...")

	// uploads run detached from their requests and may take up to the store timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout+cfg.FetchTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	logger.Info("server stopped")
}

func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.StorageBackend == config.BackendMinio {
		store, err := storage.NewMinioStorage(ctx,
			cfg.StorageEndpoint,
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			cfg.Bucket,
			cfg.StoragePublicBase,
			cfg.StorageUseSSL,
			logger,
		)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	client, err := storage.NewS3Client(ctx, cfg.Region, cfg.StorageEndpoint)
	if err != nil {
		return nil, err
	}
	return storage.NewS3Storage(client, cfg.Bucket, cfg.Region, cfg.StoragePublicBase, logger), nil
}
