package rationale

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anchormap/anchormap/internal/ranker"
	"github.com/anchormap/anchormap/internal/store"
)

type scriptedChat struct {
	replies map[string]string
	failOn  string
	calls   int
}

func (c *scriptedChat) Complete(ctx context.Context, system, user string) (string, error) {
	c.calls++
	if c.failOn != "" && strings.Contains(user, c.failOn) {
		return "", errors.New("model unavailable")
	}
	if strings.Contains(system, "anchor text") {
		return c.replies["anchor"], nil
	}
	return c.replies["reason"], nil
}

type mapArticles map[string]store.Article

func (m mapArticles) Article(ctx context.Context, url string) (store.Article, error) {
	a, ok := m[url]
	if !ok {
		return store.Article{}, store.ErrNotFound
	}
	return a, nil
}

func testCorpus() mapArticles {
	return mapArticles{
		"https://b.test/pooling": {URL: "https://b.test/pooling", Title: "Connection Pooling", Content: "pool sizing and pgbouncer"},
		"https://b.test/retries": {URL: "https://b.test/retries", Title: "Retry Budgets", Content: "backoff and jitter"},
	}
}

func TestAnnotateFillsReasonAndAnchor(t *testing.T) {
	chat := &scriptedChat{replies: map[string]string{
		"reason": "Both posts discuss database connection management.",
		"anchor": `"connection pooling deep dive"`,
	}}
	g := NewGenerator(chat)
	source := store.Article{URL: "https://b.test/src", Title: "Postgres Tuning", Content: "tuning notes"}

	got := g.Annotate(context.Background(), testCorpus(), source, []ranker.Candidate{
		{URL: "https://b.test/pooling", Title: "Connection Pooling", Score: 0.87},
	})
	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(got))
	}
	s := got[0]
	if s.Incomplete {
		t.Fatalf("unexpected incomplete: %s", s.Error)
	}
	if s.Reason != "Both posts discuss database connection management." {
		t.Errorf("reason = %q", s.Reason)
	}
	if s.AnchorText != "connection pooling deep dive" {
		t.Errorf("anchor = %q, quotes should be stripped", s.AnchorText)
	}
	if s.SimilarityScore != "87.0%" {
		t.Errorf("similarity = %q", s.SimilarityScore)
	}
}

func TestAnnotateKeepsFailedCandidateAsIncomplete(t *testing.T) {
	chat := &scriptedChat{
		replies: map[string]string{"reason": "They overlap.", "anchor": "retry budget basics"},
		failOn:  "Retry Budgets",
	}
	g := NewGenerator(chat)
	source := store.Article{URL: "https://b.test/src", Title: "Postgres Tuning", Content: "tuning notes"}

	got := g.Annotate(context.Background(), testCorpus(), source, []ranker.Candidate{
		{URL: "https://b.test/pooling", Score: 0.9},
		{URL: "https://b.test/retries", Score: 0.8},
	})
	if len(got) != 2 {
		t.Fatalf("got %d suggestions, want 2 (failures stay in the list)", len(got))
	}
	if got[0].Incomplete {
		t.Errorf("first suggestion should be complete: %s", got[0].Error)
	}
	if !got[1].Incomplete {
		t.Error("second suggestion should be marked incomplete")
	}
	if got[1].Error == "" {
		t.Error("incomplete suggestion must carry the error")
	}
	if got[1].SimilarityScore != "80.0%" {
		t.Errorf("incomplete suggestion keeps its score, got %q", got[1].SimilarityScore)
	}
}

func TestAnnotateMissingTargetArticle(t *testing.T) {
	chat := &scriptedChat{replies: map[string]string{"reason": "x", "anchor": "y z w"}}
	g := NewGenerator(chat)
	source := store.Article{URL: "https://b.test/src", Title: "Src"}

	got := g.Annotate(context.Background(), testCorpus(), source, []ranker.Candidate{
		{URL: "https://b.test/gone", Score: 0.7},
	})
	if len(got) != 1 || !got[0].Incomplete {
		t.Fatalf("missing article should yield one incomplete suggestion, got %+v", got)
	}
	if chat.calls != 0 {
		t.Errorf("no chat calls expected for a missing article, got %d", chat.calls)
	}
}

func TestCleanAnchor(t *testing.T) {
	cases := map[string]string{
		`"quoted anchor text"`:   "quoted anchor text",
		"'single quoted'":        "single quoted",
		"  spaced   out  words ": "spaced out words",
		"multi\nline\nanswer":    "multi line answer",
		"`backticked phrase`":    "backticked phrase",
		"plain anchor":           "plain anchor",
	}
	for in, want := range cases {
		if got := cleanAnchor(in); got != want {
			t.Errorf("cleanAnchor(%q) = %q, want %q", in, got, want)
		}
	}
}
