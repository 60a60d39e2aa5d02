package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"reviewhunter/internal/model"
	"reviewhunter/internal/store"
	"reviewhunter/internal/upstream"
)

func TestRun_CommitsOnSuccess(t *testing.T) {
	st := newTestStore(t)

	outcome, err := Run(context.Background(), st, discardLogger(), func(ctx context.Context, tx *store.Store) error {
		return tx.InsertSubmission(ctx, testSubmission("aaa111"))
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome != Committed {
		t.Fatalf("expected Committed, got %v", outcome)
	}
	if n := countSubmissions(t, st); n != 1 {
		t.Fatalf("expected 1 committed row, got %d", n)
	}
}

func TestRun_ThrottleCommitsPartialProgress(t *testing.T) {
	st := newTestStore(t)

	outcome, err := Run(context.Background(), st, discardLogger(), func(ctx context.Context, tx *store.Store) error {
		if err := tx.InsertSubmission(ctx, testSubmission("aaa111")); err != nil {
			return err
		}
		return &upstream.ThrottledError{Source: "imgur"}
	})
	if !upstream.IsThrottled(err) {
		t.Fatalf("expected original throttle error, got %v", err)
	}
	if outcome != PartiallyCommitted {
		t.Fatalf("expected PartiallyCommitted, got %v", outcome)
	}
	if n := countSubmissions(t, st); n != 1 {
		t.Fatalf("throttle must keep completed writes, got %d rows", n)
	}
}

func TestRun_FailureRollsBack(t *testing.T) {
	st := newTestStore(t)

	outcome, err := Run(context.Background(), st, discardLogger(), func(ctx context.Context, tx *store.Store) error {
		if err := tx.InsertSubmission(ctx, testSubmission("aaa111")); err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if outcome != Aborted {
		t.Fatalf("expected Aborted, got %v", outcome)
	}
	if n := countSubmissions(t, st); n != 0 {
		t.Fatalf("abort must discard writes, got %d rows", n)
	}
}

func TestRun_WrappedThrottleStillPartial(t *testing.T) {
	st := newTestStore(t)

	wrapped := &upstream.ThrottledError{Source: "zappos"}
	outcome, _ := Run(context.Background(), st, discardLogger(), func(ctx context.Context, tx *store.Store) error {
		return errors.Join(errors.New("page 3 failed"), wrapped)
	})
	if outcome != PartiallyCommitted {
		t.Fatalf("expected PartiallyCommitted for wrapped throttle, got %v", outcome)
	}
}

func testSubmission(id string) *model.Submission {
	body := "<div>body of " + id + "</div>"
	return &model.Submission{
		ID:           id,
		Subreddit:    "goodyearwelt",
		Title:        "post " + id,
		CreatedUTC:   1500000000,
		SelftextHTML: &body,
		SearchQuery:  "viberg",
	}
}

func countSubmissions(t *testing.T, st *store.Store) int {
	t.Helper()
	bodies, err := st.SubmissionBodies(context.Background())
	if err != nil {
		t.Fatalf("query submissions: %v", err)
	}
	return len(bodies)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	st, err := store.Open(dsn, discardLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return st
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
