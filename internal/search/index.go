// Package search maintains a bleve keyword index over indexed posts so
// a post can be found by words in its title when the exact URL is not
// at hand.
package search

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/anchormap/anchormap/internal/store"
)

// Index wraps a bleve search index keyed by article URL.
type Index struct {
	index bleve.Index
}

// indexedArticle is the document shape stored in bleve.
type indexedArticle struct {
	URL     string
	Title   string
	Content string
}

// Hit is one keyword search result.
type Hit struct {
	URL   string
	Title string
	Score float64
}

// Open opens or creates a bleve index at path.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return &Index{index: idx}, nil
}

// Remove deletes the index directory so a rebuild starts clean.
func Remove(path string) error {
	return os.RemoveAll(path)
}

func buildIndexMapping() mapping.IndexMapping {
	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = "en"

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("URL", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Title", titleFieldMapping)
	docMapping.AddFieldMappingsAt("Content", bleve.NewTextFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}

func (i *Index) Close() error { return i.index.Close() }

// IndexArticle adds or updates one article in the index.
func (i *Index) IndexArticle(a store.Article) error {
	return i.index.Index(a.URL, indexedArticle{URL: a.URL, Title: a.Title, Content: a.Content})
}

// IndexBatch indexes a set of articles in one bleve batch.
func (i *Index) IndexBatch(articles []store.Article) error {
	batch := i.index.NewBatch()
	for _, a := range articles {
		if err := batch.Index(a.URL, indexedArticle{URL: a.URL, Title: a.Title, Content: a.Content}); err != nil {
			return fmt.Errorf("batch index %s: %w", a.URL, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// FindPosts searches titles (boosted) and content for the query words.
func (i *Index) FindPosts(query string, limit int) ([]Hit, error) {
	titleQuery := bleve.NewMatchQuery(query)
	titleQuery.SetField("Title")
	titleQuery.SetBoost(3)
	contentQuery := bleve.NewMatchQuery(query)
	contentQuery.SetField("Content")

	search := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(titleQuery, contentQuery), limit, 0, false)
	search.Fields = []string{"Title"}

	results, err := i.index.Search(search)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var hits []Hit
	for _, hit := range results.Hits {
		h := Hit{URL: hit.ID, Score: hit.Score}
		if title, ok := hit.Fields["Title"].(string); ok {
			h.Title = title
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// Count returns the number of indexed documents.
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}
