package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anchormap/anchormap/internal/pipeline"
	"github.com/anchormap/anchormap/internal/search"
	"github.com/anchormap/anchormap/internal/store"
	"github.com/anchormap/anchormap/internal/suggest"
)

type fakeService struct {
	mu          sync.Mutex
	suggestions []suggest.Suggestion
	suggestErr  error
	hits        []search.Hit
	builds      int
	buildDone   chan struct{}
}

func (f *fakeService) Build(ctx context.Context) (pipeline.BuildSummary, error) {
	f.mu.Lock()
	f.builds++
	f.mu.Unlock()
	if f.buildDone != nil {
		close(f.buildDone)
	}
	return pipeline.BuildSummary{RunID: "run-1", PagesIndexed: 2}, nil
}

func (f *fakeService) Suggest(ctx context.Context, sourceURL string) ([]suggest.Suggestion, error) {
	if f.suggestErr != nil {
		return nil, f.suggestErr
	}
	return f.suggestions, nil
}

func (f *fakeService) FindPosts(ctx context.Context, query string, limit int) ([]search.Hit, error) {
	return f.hits, nil
}

func newTestServer(t *testing.T, svc *fakeService) (*echo.Echo, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir(), 4)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	e := newEcho()
	h := &Handlers{Svc: svc, Store: st, Logger: log.New(log.Writer(), "[HTTP] ", log.LstdFlags)}
	h.Register(e.Group("/api"))
	return e, st
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSuggestEndpoint(t *testing.T) {
	svc := &fakeService{suggestions: []suggest.Suggestion{{
		FromPost:        "https://b.test/a",
		ToPost:          "https://b.test/b",
		Reason:          "They overlap.",
		AnchorText:      "overlap guide",
		SimilarityScore: "87.5%",
	}}}
	e, _ := newTestServer(t, svc)

	rec := doJSON(t, e, http.MethodPost, "/api/suggest", `{"url":"https://b.test/a"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got []suggest.Suggestion
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 || got[0].ToPost != "https://b.test/b" {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestSuggestMissingURL(t *testing.T) {
	e, _ := newTestServer(t, &fakeService{})
	rec := doJSON(t, e, http.MethodPost, "/api/suggest", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSuggestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{store.ErrStoreEmpty, http.StatusConflict},
		{store.ErrNotFound, http.StatusNotFound},
	}
	for _, c := range cases {
		e, _ := newTestServer(t, &fakeService{suggestErr: c.err})
		rec := doJSON(t, e, http.MethodPost, "/api/suggest", `{"url":"https://b.test/a"}`)
		if rec.Code != c.want {
			t.Errorf("%v: status = %d, want %d", c.err, rec.Code, c.want)
		}
		if !strings.Contains(rec.Body.String(), "error") {
			t.Errorf("%v: missing error field: %s", c.err, rec.Body.String())
		}
	}
}

func TestBuildEndpointStartsBackgroundBuild(t *testing.T) {
	svc := &fakeService{buildDone: make(chan struct{})}
	e, _ := newTestServer(t, svc)

	rec := doJSON(t, e, http.MethodPost, "/api/build", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	select {
	case <-svc.buildDone:
	case <-time.After(2 * time.Second):
		t.Fatal("background build never started")
	}
}

func TestListPostsEmpty(t *testing.T) {
	e, _ := newTestServer(t, &fakeService{})
	rec := doJSON(t, e, http.MethodGet, "/api/posts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Count int      `json:"count"`
		Posts []string `json:"posts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Count != 0 || body.Posts == nil {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	e, _ := newTestServer(t, &fakeService{})
	rec := doJSON(t, e, http.MethodGet, "/api/posts/search", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLatestBuildBeforeAnyRun(t *testing.T) {
	e, _ := newTestServer(t, &fakeService{})
	rec := doJSON(t, e, http.MethodGet, "/api/builds/latest", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestLatestBuildAfterRun(t *testing.T) {
	e, st := newTestServer(t, &fakeService{})
	id, err := st.StartBuildRun(context.Background())
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	if err := st.FinishBuildRun(context.Background(), id, store.BuildStatusSucceeded, 5, 0); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	rec := doJSON(t, e, http.MethodGet, "/api/builds/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var run store.BuildRun
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if run.ID != id || run.Status != store.BuildStatusSucceeded {
		t.Errorf("unexpected run: %+v", run)
	}
}

func TestIsDue(t *testing.T) {
	hourAgo := time.Now().Add(-time.Hour)
	twoDaysAgo := time.Now().Add(-48 * time.Hour)
	justNow := time.Now().Add(-time.Minute)

	if !isDue("@daily", nil) {
		t.Error("never-built should be due")
	}
	if isDue("@daily", &hourAgo) {
		t.Error("daily schedule should not be due after an hour")
	}
	if !isDue("@daily", &twoDaysAgo) {
		t.Error("daily schedule should be due after two days")
	}
	if !isDue("@hourly", &hourAgo) {
		t.Error("hourly schedule should be due after an hour")
	}
	if !isDue("0 3 * * *", &twoDaysAgo) {
		t.Error("cron schedule should be due when next fire time has passed")
	}
	if isDue("0 3 * * *", &justNow) && time.Now().Hour() != 3 {
		t.Error("cron schedule should not be due a minute after running")
	}
}
