package fetch

import (
	"context"
	"log"
	"sync"
	"time"
)

// Failure records one page that could not be fetched during a batch.
type Failure struct {
	URL string
	Err error
}

// BatchResult holds the pages that fetched successfully and the
// failures that were skipped. Page order follows completion order, not
// input order.
type BatchResult struct {
	Pages    []Page
	Failures []Failure
}

// BatchOptions bound a batch fetch.
type BatchOptions struct {
	Concurrency int           // maximum in-flight fetches
	TaskTimeout time.Duration // per-page timeout; a stalled fetch never blocks the batch
	Delay       time.Duration // politeness pause after each fetch per worker slot
}

// FetchAll fetches all URLs through a semaphore-bounded set of
// goroutines. Individual failures are logged and skipped; the batch
// always completes.
func FetchAll(ctx context.Context, fetcher Fetcher, urls []string, opts BatchOptions, logger *log.Logger) BatchResult {
	if logger == nil {
		logger = log.New(log.Writer(), "[FETCH] ", log.LstdFlags)
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	var (
		mu     sync.Mutex
		result BatchResult
		wg     sync.WaitGroup
	)
	semaphore := make(chan struct{}, concurrency)

	for _, pageURL := range urls {
		select {
		case <-ctx.Done():
			mu.Lock()
			result.Failures = append(result.Failures, Failure{URL: pageURL, Err: ctx.Err()})
			mu.Unlock()
			continue
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(pageURL string) {
			defer wg.Done()
			defer func() {
				if opts.Delay > 0 {
					time.Sleep(opts.Delay)
				}
				<-semaphore
			}()

			taskCtx := ctx
			if opts.TaskTimeout > 0 {
				var cancel context.CancelFunc
				taskCtx, cancel = context.WithTimeout(ctx, opts.TaskTimeout)
				defer cancel()
			}

			page, err := fetcher.Fetch(taskCtx, pageURL)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Printf("skipping %s: %v", pageURL, err)
				result.Failures = append(result.Failures, Failure{URL: pageURL, Err: err})
				return
			}
			result.Pages = append(result.Pages, page)
		}(pageURL)
	}

	wg.Wait()
	return result
}

// PageCache caches fetched pages keyed by URL.
type PageCache interface {
	Get(ctx context.Context, pageURL string) (Page, bool, error)
	Set(ctx context.Context, pageURL string, page Page, ttl time.Duration) error
}

// CachedFetcher consults a PageCache before hitting the network and
// stores fresh pages back with a TTL. Cache errors degrade to a plain
// fetch.
type CachedFetcher struct {
	Inner  Fetcher
	Cache  PageCache
	TTL    time.Duration
	Logger *log.Logger
}

func (c CachedFetcher) Fetch(ctx context.Context, pageURL string) (Page, error) {
	if c.Cache != nil {
		page, ok, err := c.Cache.Get(ctx, pageURL)
		if err != nil && c.Logger != nil {
			c.Logger.Printf("cache read failed for %s: %v", pageURL, err)
		}
		if ok {
			return page, nil
		}
	}

	page, err := c.Inner.Fetch(ctx, pageURL)
	if err != nil {
		return Page{}, err
	}
	if c.Cache != nil {
		if err := c.Cache.Set(ctx, pageURL, page, c.TTL); err != nil && c.Logger != nil {
			c.Logger.Printf("cache write failed for %s: %v", pageURL, err)
		}
	}
	return page, nil
}
