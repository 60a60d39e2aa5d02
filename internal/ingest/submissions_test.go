package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"reviewhunter/internal/config"
	"reviewhunter/internal/store"
	"reviewhunter/internal/upstream"
)

func TestSubmissions_IngestsAllPages(t *testing.T) {
	st := newTestStore(t)
	server := redditServer(t, map[string]listingPage{
		"":       {ids: []string{"ccc", "bbb"}, times: []int64{1500000200, 1500000100}, after: "t3_bbb"},
		"t3_bbb": {ids: []string{"aaa"}, times: []int64{1500000000}},
	})
	defer server.Close()

	client := newRedditClient(server.URL)
	outcome, err := Run(context.Background(), st, discardLogger(), func(ctx context.Context, tx *store.Store) error {
		return Submissions(ctx, tx, client, discardLogger(), "viberg", false)
	})
	if err != nil || outcome != Committed {
		t.Fatalf("run: (%v, %v)", outcome, err)
	}

	oldest, err := st.OldestSubmissionID(context.Background(), "viberg")
	if err != nil {
		t.Fatalf("oldest: %v", err)
	}
	if oldest != "aaa" {
		t.Fatalf("expected oldest saved id aaa, got %q", oldest)
	}
	if n := countSubmissions(t, st); n != 3 {
		t.Fatalf("expected 3 submissions, got %d", n)
	}
}

func TestSubmissions_ResumeStartsAfterOldestSaved(t *testing.T) {
	st := newTestStore(t)
	server := redditServer(t, map[string]listingPage{
		"":       {ids: []string{"bbb"}, times: []int64{1500000100}},
		"t3_bbb": {ids: []string{"aaa"}, times: []int64{1500000000}},
		"t3_aaa": {},
	})
	defer server.Close()

	client := newRedditClient(server.URL)
	run := func(resume bool) {
		t.Helper()
		outcome, err := Run(context.Background(), st, discardLogger(), func(ctx context.Context, tx *store.Store) error {
			return Submissions(ctx, tx, client, discardLogger(), "viberg", resume)
		})
		if err != nil || outcome != Committed {
			t.Fatalf("run: (%v, %v)", outcome, err)
		}
	}

	run(false)
	if n := countSubmissions(t, st); n != 1 {
		t.Fatalf("first run: expected 1 submission, got %d", n)
	}

	run(true)
	if n := countSubmissions(t, st); n != 2 {
		t.Fatalf("resumed run: expected 2 submissions, got %d", n)
	}

	run(true)
	if n := countSubmissions(t, st); n != 2 {
		t.Fatalf("third run found nothing new, expected 2 submissions, got %d", n)
	}
}

func TestSubmissions_PageFailureCommitsSavedPages(t *testing.T) {
	st := newTestStore(t)
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		children := []map[string]any{
			{"data": map[string]any{"id": "bbb", "subreddit": "goodyearwelt", "title": "post bbb", "created_utc": 1500000100.0, "selftext_html": "<div>b</div>"}},
			{"data": map[string]any{"id": "aaa", "subreddit": "goodyearwelt", "title": "post aaa", "created_utc": 1500000000.0, "selftext_html": "<div>a</div>"}},
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"children": children, "after": "t3_aaa"}})
	}))
	defer server.Close()

	client := newRedditClient(server.URL)
	outcome, err := Run(context.Background(), st, discardLogger(), func(ctx context.Context, tx *store.Store) error {
		return Submissions(ctx, tx, client, discardLogger(), "viberg", false)
	})
	if err != nil {
		t.Fatalf("page failure must not abort the run: %v", err)
	}
	if outcome != Committed {
		t.Fatalf("expected Committed with saved pages, got %v", outcome)
	}
	if n := countSubmissions(t, st); n != 2 {
		t.Fatalf("expected the 2 rows from the good page, got %d", n)
	}
}

func TestSubmissions_RerunIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	server := redditServer(t, map[string]listingPage{
		"": {ids: []string{"bbb", "aaa"}, times: []int64{1500000100, 1500000000}},
	})
	defer server.Close()

	client := newRedditClient(server.URL)
	for i := 0; i < 2; i++ {
		outcome, err := Run(context.Background(), st, discardLogger(), func(ctx context.Context, tx *store.Store) error {
			return Submissions(ctx, tx, client, discardLogger(), "viberg", false)
		})
		if err != nil || outcome != Committed {
			t.Fatalf("run %d: (%v, %v)", i, outcome, err)
		}
	}

	if n := countSubmissions(t, st); n != 2 {
		t.Fatalf("expected 2 submissions after rerun, got %d", n)
	}
}

type listingPage struct {
	ids   []string
	times []int64
	after string
}

func redditServer(t *testing.T, pages map[string]listingPage) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, ok := pages[r.URL.Query().Get("after")]
		if !ok {
			t.Errorf("unexpected cursor: %q", r.URL.Query().Get("after"))
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		children := make([]map[string]any, 0, len(page.ids))
		for i, id := range page.ids {
			body := "<div>self text</div>"
			children = append(children, map[string]any{
				"data": map[string]any{
					"id":            id,
					"subreddit":     "goodyearwelt",
					"title":         "post " + id,
					"created_utc":   float64(page.times[i]),
					"selftext_html": body,
				},
			})
		}
		data := map[string]any{"children": children}
		if page.after != "" {
			data["after"] = page.after
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
}

func newRedditClient(baseURL string) *upstream.RedditClient {
	return upstream.NewRedditClient(
		config.RedditConfig{BaseURL: baseURL, Subreddit: "goodyearwelt", PageLimit: 100},
		config.AppConfig{UserAgent: "test-agent"},
		discardLogger(),
	)
}
