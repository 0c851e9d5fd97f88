package search

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/anchormap/anchormap/internal/store"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "keyword.bleve"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func article(url, title, content string) store.Article {
	return store.Article{URL: url, Title: title, Content: content, FetchedAt: time.Now()}
}

func TestFindPostsByTitle(t *testing.T) {
	idx := openTestIndex(t)
	err := idx.IndexBatch([]store.Article{
		article("https://blog.example.com/go-profiling", "Profiling Go Services", "pprof and flame graphs"),
		article("https://blog.example.com/terraform-modules", "Reusable Terraform Modules", "module registries"),
		article("https://blog.example.com/sql-indexing", "Indexing Strategies in Postgres", "btree and gin indexes"),
	})
	if err != nil {
		t.Fatalf("index batch: %v", err)
	}

	hits, err := idx.FindPosts("profiling", 5)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one hit")
	}
	if hits[0].URL != "https://blog.example.com/go-profiling" {
		t.Errorf("top hit = %s, want go-profiling post", hits[0].URL)
	}
	if hits[0].Title != "Profiling Go Services" {
		t.Errorf("top hit title = %q", hits[0].Title)
	}
}

func TestTitleMatchOutranksContentMatch(t *testing.T) {
	idx := openTestIndex(t)
	err := idx.IndexBatch([]store.Article{
		article("https://blog.example.com/a", "Kubernetes Operators Explained", "controllers reconcile state"),
		article("https://blog.example.com/b", "A Week of Incidents", "one outage involved kubernetes briefly"),
	})
	if err != nil {
		t.Fatalf("index batch: %v", err)
	}

	hits, err := idx.FindPosts("kubernetes", 5)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(hits) < 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].URL != "https://blog.example.com/a" {
		t.Errorf("title match should rank first, got %s", hits[0].URL)
	}
}

func TestFindPostsRespectsLimit(t *testing.T) {
	idx := openTestIndex(t)
	articles := []store.Article{
		article("https://blog.example.com/1", "Caching Basics", "caching layers"),
		article("https://blog.example.com/2", "Caching Pitfalls", "caching mistakes"),
		article("https://blog.example.com/3", "Caching at Scale", "caching clusters"),
	}
	if err := idx.IndexBatch(articles); err != nil {
		t.Fatalf("index batch: %v", err)
	}

	hits, err := idx.FindPosts("caching", 2)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("got %d hits, want 2", len(hits))
	}
}

func TestReindexReplacesDocument(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.IndexArticle(article("https://blog.example.com/p", "Old Title", "old body")); err != nil {
		t.Fatalf("index: %v", err)
	}
	if err := idx.IndexArticle(article("https://blog.example.com/p", "New Title", "new body")); err != nil {
		t.Fatalf("reindex: %v", err)
	}

	count, err := idx.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("doc count = %d, want 1", count)
	}

	hits, err := idx.FindPosts("new", 5)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(hits) != 1 || hits[0].Title != "New Title" {
		t.Errorf("expected updated title, got %+v", hits)
	}
}
