package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

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

func main() {
	var cfgPath string
	root := &cobra.Command{
		Use:   "anchormap",
		Short: "Suggest internal links between posts on a site",
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config.json)")

	root.AddCommand(buildCMD(&cfgPath), suggestCMD(&cfgPath), serveCMD(&cfgPath), statsCMD(&cfgPath))
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles everything a command needs plus cleanup.
type app struct {
	cfg      *config.Config
	store    *store.Store
	index    *search.Index
	pipeline *pipeline.Pipeline
}

func (a *app) close() {
	a.index.Close()
	a.store.Close()
}

func openApp(cfgPath string) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Storage.DataDir, cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	idx, err := search.Open(indexPath(cfg))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open keyword index: %w", err)
	}

	embedder, err := provider.NewEmbeddingProvider(cfg.Embedding, cfg.Retry, cfg.Site.RequestTimeout)
	if err != nil {
		idx.Close()
		st.Close()
		return nil, err
	}
	chat, err := provider.NewChatProvider(cfg.Generation, cfg.Retry, cfg.Site.RequestTimeout)
	if err != nil {
		idx.Close()
		st.Close()
		return nil, err
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

	p := pipeline.New(cfg, st, idx, embedder, fetcher, rationale.NewGenerator(chat), telemetry.New())
	return &app{cfg: cfg, store: st, index: idx, pipeline: p}, nil
}

func indexPath(cfg *config.Config) string {
	return filepath.Join(cfg.Storage.DataDir, "keyword.bleve")
}
