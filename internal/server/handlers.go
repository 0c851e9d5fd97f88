package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync/atomic"

	"github.com/labstack/echo/v4"

	"github.com/anchormap/anchormap/internal/pipeline"
	"github.com/anchormap/anchormap/internal/search"
	"github.com/anchormap/anchormap/internal/store"
	"github.com/anchormap/anchormap/internal/suggest"
)

// Service is the slice of the pipeline the HTTP layer needs.
type Service interface {
	Build(ctx context.Context) (pipeline.BuildSummary, error)
	Suggest(ctx context.Context, sourceURL string) ([]suggest.Suggestion, error)
	FindPosts(ctx context.Context, query string, limit int) ([]search.Hit, error)
}

// Handlers holds the API route handlers.
type Handlers struct {
	Svc      Service
	Store    *store.Store
	Logger   *log.Logger
	building atomic.Bool
}

func (h *Handlers) Register(g *echo.Group) {
	g.GET("/posts", h.listPosts)
	g.GET("/posts/search", h.searchPosts)
	g.POST("/suggest", h.suggestLinks)
	g.POST("/build", h.startBuild)
	g.GET("/builds/latest", h.latestBuild)
	g.GET("/builds/:id", h.getBuild)
}

func (h *Handlers) listPosts(c echo.Context) error {
	urls, err := h.Store.ListURLs(c.Request().Context())
	if err != nil {
		return err
	}
	if urls == nil {
		urls = []string{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"count": len(urls), "posts": urls})
}

func (h *Handlers) searchPosts(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing query parameter q")
	}
	hits, err := h.Svc.FindPosts(c.Request().Context(), query, 10)
	if err != nil {
		return err
	}
	if hits == nil {
		hits = []search.Hit{}
	}
	return c.JSON(http.StatusOK, hits)
}

type suggestRequest struct {
	URL string `json:"url"`
}

func (h *Handlers) suggestLinks(c echo.Context) error {
	var req suggestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.URL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing url")
	}

	suggestions, err := h.Svc.Suggest(c.Request().Context(), req.URL)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrStoreEmpty):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, store.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		default:
			return err
		}
	}
	return c.JSON(http.StatusOK, suggestions)
}

// startBuild kicks off an index build in the background. A second
// build request while one is running gets a 409.
func (h *Handlers) startBuild(c echo.Context) error {
	if !h.building.CompareAndSwap(false, true) {
		return echo.NewHTTPError(http.StatusConflict, "a build is already running")
	}
	go func() {
		defer h.building.Store(false)
		summary, err := h.Svc.Build(context.Background())
		if err != nil {
			h.Logger.Printf("background build failed: %v", err)
			return
		}
		h.Logger.Printf("background build %s: %d indexed, %d failed", summary.RunID, summary.PagesIndexed, summary.PagesFailed)
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *Handlers) latestBuild(c echo.Context) error {
	run, err := h.Store.LatestBuildRun(c.Request().Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no build has run yet")
		}
		return err
	}
	return c.JSON(http.StatusOK, run)
}

func (h *Handlers) getBuild(c echo.Context) error {
	run, err := h.Store.GetBuildRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "unknown build run")
		}
		return err
	}
	return c.JSON(http.StatusOK, run)
}
