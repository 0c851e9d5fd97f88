// Package ranker turns a stored post embedding into a ranked list of
// link candidates from the rest of the corpus.
package ranker

import (
	"context"
	"errors"
	"fmt"

	"github.com/anchormap/anchormap/internal/store"
)

// Store is the slice of the vector store the ranker needs.
type Store interface {
	Count(ctx context.Context) (int, error)
	Embedding(ctx context.Context, url string) ([]float32, string, error)
	Search(ctx context.Context, vector []float32, k int) ([]store.SearchResult, error)
}

// Candidate is one ranked link target.
type Candidate struct {
	URL   string
	Title string
	Score float64
}

// Ranker ranks link candidates for a source post by cosine similarity
// against stored embeddings.
type Ranker struct {
	Store            Store
	TopK             int
	MinSimilarity    float64
	FinalSuggestions int
}

// Rank returns up to FinalSuggestions candidates for sourceURL, sorted
// by similarity descending. An empty result is valid: it means nothing
// in the corpus cleared the similarity threshold.
func (r *Ranker) Rank(ctx context.Context, sourceURL string) ([]Candidate, error) {
	n, err := r.Store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}
	if n == 0 {
		return nil, store.ErrStoreEmpty
	}

	vector, _, err := r.Store.Embedding(ctx, sourceURL)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("post %s is not in the index: %w", sourceURL, err)
		}
		return nil, fmt.Errorf("load embedding for %s: %w", sourceURL, err)
	}

	// Ask for one extra so the source post itself can be dropped.
	results, err := r.Store.Search(ctx, vector, r.TopK+1)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	candidates := make([]Candidate, 0, r.FinalSuggestions)
	for _, res := range results {
		if res.URL == sourceURL {
			continue
		}
		if res.Score < r.MinSimilarity {
			continue
		}
		candidates = append(candidates, Candidate{URL: res.URL, Title: res.Title, Score: res.Score})
		if len(candidates) == r.FinalSuggestions {
			break
		}
	}
	return candidates, nil
}
