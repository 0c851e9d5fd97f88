package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrStoreEmpty indicates the vector store has no indexed articles; the
// user has to run a build first.
var ErrStoreEmpty = errors.New("vector store is empty: run `anchormap build` to index the site")

// ErrNotFound indicates the requested record is not in the store.
var ErrNotFound = errors.New("not found in store")

// Build run statuses persisted for batch builds.
const (
	BuildStatusRunning   = "running"
	BuildStatusSucceeded = "succeeded"
	BuildStatusFailed    = "failed"
)

// Article is an extracted blog post. Re-fetching supersedes the stored
// row rather than merging into it.
type Article struct {
	URL       string
	Title     string
	Content   string
	FetchedAt time.Time
}

// SearchResult is one nearest-neighbor hit.
type SearchResult struct {
	URL   string
	Title string
	Score float64
}

// BuildRun records one batch build of the store.
type BuildRun struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	PagesIndexed int        `json:"pages_indexed"`
	PagesFailed  int        `json:"pages_failed"`
}

// Store persists articles and their embedding vectors in a SQLite
// database under the configured data directory. Similarity queries are
// brute-force cosine over all stored vectors.
type Store struct {
	db   *sql.DB
	dims int
}

// Open opens or creates the store at dataDir/anchormap.db. dims is the
// configured vector dimensionality; vectors of any other length are
// rejected on upsert.
func Open(dataDir string, dims int) (*Store, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be > 0, got %d", dims)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(dataDir, "anchormap.db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &Store{db: db, dims: dims}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Dimensions returns the configured vector dimensionality.
func (s *Store) Dimensions() int { return s.dims }

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		url TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		fetched_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS embeddings (
		url TEXT PRIMARY KEY REFERENCES articles(url) ON DELETE CASCADE,
		model TEXT NOT NULL,
		dims INTEGER NOT NULL,
		vector BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS build_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		pages_indexed INTEGER NOT NULL DEFAULT 0,
		pages_failed INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UpsertArticle stores an article, replacing any previous row for the
// same URL.
func (s *Store) UpsertArticle(ctx context.Context, a Article) error {
	if a.URL == "" {
		return errors.New("article url required")
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO articles (url, title, content, fetched_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET title=excluded.title, content=excluded.content, fetched_at=excluded.fetched_at`,
		a.URL, a.Title, a.Content, a.FetchedAt)
	if err != nil {
		return fmt.Errorf("upsert article %s: %w", a.URL, err)
	}
	return nil
}

// UpsertEmbedding stores the vector for an article. Vectors whose
// length does not match the store's configured dimensionality are
// rejected rather than silently stored.
func (s *Store) UpsertEmbedding(ctx context.Context, url, model string, vec []float32) error {
	if len(vec) == 0 {
		return errors.New("embedding vector required")
	}
	if len(vec) != s.dims {
		return fmt.Errorf("embedding for %s has %d dimensions, store expects %d", url, len(vec), s.dims)
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO embeddings (url, model, dims, vector, created_at) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET model=excluded.model, dims=excluded.dims, vector=excluded.vector, created_at=excluded.created_at`,
		url, model, len(vec), SerializeVector(vec), time.Now())
	if err != nil {
		return fmt.Errorf("upsert embedding %s: %w", url, err)
	}
	return nil
}

// Article returns the stored article for a URL.
func (s *Store) Article(ctx context.Context, url string) (Article, error) {
	var a Article
	err := s.db.QueryRowContext(ctx,
		`SELECT url, title, content, fetched_at FROM articles WHERE url = ?`, url).
		Scan(&a.URL, &a.Title, &a.Content, &a.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Article{}, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if err != nil {
		return Article{}, fmt.Errorf("load article %s: %w", url, err)
	}
	return a, nil
}

// Embedding returns the stored vector and source model for a URL.
func (s *Store) Embedding(ctx context.Context, url string) ([]float32, string, error) {
	var blob []byte
	var model string
	err := s.db.QueryRowContext(ctx,
		`SELECT vector, model FROM embeddings WHERE url = ?`, url).Scan(&blob, &model)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if err != nil {
		return nil, "", fmt.Errorf("load embedding %s: %w", url, err)
	}
	vec := DeserializeVector(blob)
	if vec == nil {
		return nil, "", fmt.Errorf("corrupt embedding for %s", url)
	}
	return vec, model, nil
}

// ListURLs returns all indexed article URLs in insertion order.
func (s *Store) ListURLs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM articles ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// Count returns the number of indexed articles.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

// Reset clears articles and embeddings for a full rebuild. Build run
// history is kept.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM embeddings`); err != nil {
		return fmt.Errorf("reset embeddings: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM articles`); err != nil {
		return fmt.Errorf("reset articles: %w", err)
	}
	return nil
}

// Search returns the k nearest stored vectors to the query vector by
// cosine similarity, highest first. Ties keep insertion order. Scores
// are clamped to [0,1].
func (s *Store) Search(ctx context.Context, vec []float32, k int) ([]SearchResult, error) {
	if len(vec) != s.dims {
		return nil, fmt.Errorf("query vector has %d dimensions, store expects %d", len(vec), s.dims)
	}
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT e.url, a.title, e.vector
	FROM embeddings e JOIN articles a ON a.url = e.url
	ORDER BY e.rowid`)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var url, title string
		var blob []byte
		if err := rows.Scan(&url, &title, &blob); err != nil {
			return nil, err
		}
		stored := DeserializeVector(blob)
		if stored == nil {
			continue
		}
		score := CosineSimilarity(vec, stored)
		if score < 0 {
			score = 0
		}
		results = append(results, SearchResult{URL: url, Title: title, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// StartBuildRun records the beginning of a batch build and returns its id.
func (s *Store) StartBuildRun(ctx context.Context) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO build_runs (id, status, started_at) VALUES (?, ?, ?)`,
		id, BuildStatusRunning, time.Now())
	if err != nil {
		return "", fmt.Errorf("start build run: %w", err)
	}
	return id, nil
}

// FinishBuildRun closes out a build run with its final status and counters.
func (s *Store) FinishBuildRun(ctx context.Context, id, status string, indexed, failed int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE build_runs SET status=?, finished_at=?, pages_indexed=?, pages_failed=? WHERE id=?`,
		status, time.Now(), indexed, failed, id)
	if err != nil {
		return fmt.Errorf("finish build run %s: %w", id, err)
	}
	return nil
}

// GetBuildRun loads one build run by id.
func (s *Store) GetBuildRun(ctx context.Context, id string) (BuildRun, error) {
	return scanBuildRun(s.db.QueryRowContext(ctx,
		`SELECT id, status, started_at, finished_at, pages_indexed, pages_failed FROM build_runs WHERE id=?`, id))
}

// LatestBuildRun returns the most recently started build run, or
// ErrNotFound if no build has ever run.
func (s *Store) LatestBuildRun(ctx context.Context) (BuildRun, error) {
	return scanBuildRun(s.db.QueryRowContext(ctx,
		`SELECT id, status, started_at, finished_at, pages_indexed, pages_failed
		 FROM build_runs ORDER BY started_at DESC LIMIT 1`))
}

func scanBuildRun(row *sql.Row) (BuildRun, error) {
	var r BuildRun
	var finished sql.NullTime
	err := row.Scan(&r.ID, &r.Status, &r.StartedAt, &finished, &r.PagesIndexed, &r.PagesFailed)
	if errors.Is(err, sql.ErrNoRows) {
		return BuildRun{}, ErrNotFound
	}
	if err != nil {
		return BuildRun{}, fmt.Errorf("load build run: %w", err)
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	return r, nil
}
