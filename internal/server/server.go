// Package server exposes the suggestion pipeline over HTTP and keeps
// the index fresh on a cron schedule.
package server

import (
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/anchormap/anchormap/config"
	"github.com/anchormap/anchormap/internal/cache"
	"github.com/anchormap/anchormap/internal/fetch"
	"github.com/anchormap/anchormap/internal/pipeline"
	"github.com/anchormap/anchormap/internal/provider"
	"github.com/anchormap/anchormap/internal/rationale"
	"github.com/anchormap/anchormap/internal/search"
	"github.com/anchormap/anchormap/internal/store"
	"github.com/anchormap/anchormap/internal/telemetry"
)

// Run assembles the full pipeline and serves it until the process
// exits.
func Run(cfg *config.Config) error {
	st, err := store.Open(cfg.Storage.DataDir, cfg.Embedding.Dimensions)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	idx, err := search.Open(filepath.Join(cfg.Storage.DataDir, "keyword.bleve"))
	if err != nil {
		return fmt.Errorf("open keyword index: %w", err)
	}
	defer idx.Close()

	embedder, err := provider.NewEmbeddingProvider(cfg.Embedding, cfg.Retry, cfg.Site.RequestTimeout)
	if err != nil {
		return err
	}
	chat, err := provider.NewChatProvider(cfg.Generation, cfg.Retry, cfg.Site.RequestTimeout)
	if err != nil {
		return err
	}

	var fetcher fetch.Fetcher = fetch.ChromeFetcher{
		Timeout:  cfg.Site.RequestTimeout,
		MaxChars: cfg.Site.MaxContentLength,
	}
	fetcher = fetch.CachedFetcher{
		Inner:  fetcher,
		Cache:  cache.New(cfg.Storage.Redis),
		TTL:    cfg.Storage.CacheTTL,
		Logger: log.New(log.Writer(), "[CACHE] ", log.LstdFlags),
	}

	metrics := telemetry.New()
	p := pipeline.New(cfg, st, idx, embedder, fetcher, rationale.NewGenerator(chat), metrics)

	e := newEcho()
	h := &Handlers{Svc: p, Store: st, Logger: log.New(log.Writer(), "[HTTP] ", log.LstdFlags)}
	h.Register(e.Group("/api"))
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	if cfg.Server.RefreshCron != "" {
		sched := &Scheduler{
			Cron:   cfg.Server.RefreshCron,
			Store:  st,
			Svc:    p,
			Stop:   make(chan struct{}),
			Logger: log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
		}
		sched.Start()
		defer close(sched.Stop)
	}

	log.Printf("listening on %s", cfg.Server.Address)
	return e.Start(cfg.Server.Address)
}

// newEcho builds the echo instance with recovery, CORS and a unified
// JSON error handler.
func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))
	e.Server.ReadHeaderTimeout = 5 * time.Second
	return e
}
