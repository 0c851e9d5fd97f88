// Package pipeline wires sitemap discovery, fetching, embedding and
// suggestion generation into the two top-level flows: building the
// index and suggesting links for one post.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/anchormap/anchormap/config"
	"github.com/anchormap/anchormap/internal/fetch"
	"github.com/anchormap/anchormap/internal/provider"
	"github.com/anchormap/anchormap/internal/ranker"
	"github.com/anchormap/anchormap/internal/rationale"
	"github.com/anchormap/anchormap/internal/search"
	"github.com/anchormap/anchormap/internal/store"
	"github.com/anchormap/anchormap/internal/suggest"
	"github.com/anchormap/anchormap/internal/telemetry"
)

// ErrSitemapEmpty is returned when the sitemap parses but lists no
// usable page URLs.
var ErrSitemapEmpty = errors.New("sitemap contains no page URLs")

// embedBatchSize bounds how many page texts go into one embedding
// request.
const embedBatchSize = 16

// Pipeline holds everything the build and suggest flows need.
type Pipeline struct {
	cfg       *config.Config
	store     *store.Store
	index     *search.Index
	embedder  provider.EmbeddingProvider
	fetcher   fetch.Fetcher
	generator *rationale.Generator
	metrics   *telemetry.Metrics
	client    *http.Client
	logger    *log.Logger
}

func New(cfg *config.Config, st *store.Store, idx *search.Index, embedder provider.EmbeddingProvider, fetcher fetch.Fetcher, gen *rationale.Generator, metrics *telemetry.Metrics) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		index:     idx,
		embedder:  embedder,
		fetcher:   fetcher,
		generator: gen,
		metrics:   metrics,
		client:    &http.Client{Timeout: cfg.Site.RequestTimeout},
		logger:    log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags),
	}
}

// BuildSummary reports what a build run accomplished.
type BuildSummary struct {
	RunID           string        `json:"run_id"`
	PagesDiscovered int           `json:"pages_discovered"`
	PagesIndexed    int           `json:"pages_indexed"`
	PagesFailed     int           `json:"pages_failed"`
	Duration        time.Duration `json:"duration"`
}

// Build crawls the sitemap, extracts and embeds every page, and
// upserts articles into the vector store and keyword index. Pages that
// fail to fetch or embed are logged and skipped; the build succeeds as
// long as the sitemap itself was readable.
func (p *Pipeline) Build(ctx context.Context) (BuildSummary, error) {
	started := time.Now()
	runID, err := p.store.StartBuildRun(ctx)
	if err != nil {
		return BuildSummary{}, fmt.Errorf("start build run: %w", err)
	}
	summary := BuildSummary{RunID: runID}

	fail := func(cause error) (BuildSummary, error) {
		if ferr := p.store.FinishBuildRun(ctx, runID, store.BuildStatusFailed, summary.PagesIndexed, summary.PagesFailed); ferr != nil {
			p.logger.Printf("finish build run %s: %v", runID, ferr)
		}
		return summary, cause
	}

	urls, err := fetch.FetchSitemap(ctx, p.client, p.cfg.Site.SitemapURL)
	if err != nil {
		return fail(fmt.Errorf("fetch sitemap: %w", err))
	}
	if len(urls) == 0 {
		return fail(ErrSitemapEmpty)
	}
	summary.PagesDiscovered = len(urls)
	p.logger.Printf("sitemap %s: %d pages", p.cfg.Site.SitemapURL, len(urls))

	batch := fetch.FetchAll(ctx, p.fetcher, urls, fetch.BatchOptions{
		Concurrency: p.cfg.Site.MaxConcurrentFetches,
		TaskTimeout: p.cfg.Site.RequestTimeout,
		Delay:       p.cfg.Site.FetchDelay,
	}, p.logger)
	summary.PagesFailed = len(batch.Failures)
	p.metrics.PagesFetched.Add(float64(len(batch.Pages)))
	p.metrics.PagesFailed.Add(float64(len(batch.Failures)))

	for start := 0; start < len(batch.Pages); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(batch.Pages) {
			end = len(batch.Pages)
		}
		chunk := batch.Pages[start:end]

		texts := make([]string, len(chunk))
		for i, page := range chunk {
			texts[i] = embedText(page)
		}
		vectors, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			// The whole chunk is lost but the build carries on with
			// the rest of the site.
			p.logger.Printf("embed batch of %d pages: %v", len(chunk), err)
			p.metrics.EmbeddingsFailed.Add(float64(len(chunk)))
			summary.PagesFailed += len(chunk)
			continue
		}

		for i, page := range chunk {
			article := store.Article{URL: page.URL, Title: page.Title, Content: page.Content, FetchedAt: page.FetchedAt}
			if err := p.storePage(ctx, article, vectors[i]); err != nil {
				p.logger.Printf("store %s: %v", page.URL, err)
				summary.PagesFailed++
				continue
			}
			p.metrics.EmbeddingsCreated.Inc()
			summary.PagesIndexed++
		}
	}

	summary.Duration = time.Since(started)
	p.metrics.BuildDuration.Observe(summary.Duration.Seconds())
	if err := p.store.FinishBuildRun(ctx, runID, store.BuildStatusSucceeded, summary.PagesIndexed, summary.PagesFailed); err != nil {
		return summary, fmt.Errorf("finish build run: %w", err)
	}
	p.logger.Printf("build %s: %d indexed, %d failed in %s", runID, summary.PagesIndexed, summary.PagesFailed, summary.Duration.Round(time.Second))
	return summary, nil
}

func (p *Pipeline) storePage(ctx context.Context, article store.Article, vector []float32) error {
	if err := p.store.UpsertArticle(ctx, article); err != nil {
		return err
	}
	if err := p.store.UpsertEmbedding(ctx, article.URL, p.embedder.Model(), vector); err != nil {
		return err
	}
	return p.index.IndexArticle(article)
}

// Suggest ranks link candidates for sourceURL and annotates each with
// a reason and anchor text. An empty slice means nothing cleared the
// similarity threshold.
func (p *Pipeline) Suggest(ctx context.Context, sourceURL string) ([]suggest.Suggestion, error) {
	p.metrics.SuggestRequests.Inc()

	r := &ranker.Ranker{
		Store:            p.store,
		TopK:             p.cfg.Search.TopK,
		MinSimilarity:    p.cfg.Search.MinSimilarity,
		FinalSuggestions: p.cfg.Search.FinalSuggestions,
	}
	candidates, err := r.Rank(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []suggest.Suggestion{}, nil
	}

	source, err := p.store.Article(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("load source post: %w", err)
	}

	suggestions := p.generator.Annotate(ctx, p.store, source, candidates)
	for _, s := range suggestions {
		if s.Incomplete {
			p.metrics.GenerationsFailed.Inc()
		} else {
			p.metrics.GenerationsOK.Inc()
		}
	}
	return suggestions, nil
}

// FindPosts resolves free-text words to indexed posts by title and
// body keywords.
func (p *Pipeline) FindPosts(ctx context.Context, query string, limit int) ([]search.Hit, error) {
	return p.index.FindPosts(query, limit)
}

// embedText is what the model sees for one page: the title carries a
// lot of signal on short posts, so it goes in front of the body.
func embedText(page fetch.Page) string {
	if page.Title == "" {
		return page.Content
	}
	return page.Title + "\n\n" + page.Content
}
