package ingest

import (
	"context"
	"testing"

	"reviewhunter/internal/model"
	"reviewhunter/internal/store"
)

func TestLinks_RegistersBodyMediaLinks(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	body := "&lt;p&gt;album here: &lt;a href=\"https://imgur.com/a/xyz789\"&gt;pics&lt;/a&gt;&lt;/p&gt;"
	sub := &model.Submission{
		ID:           "aaa111",
		Subreddit:    "goodyearwelt",
		Title:        "review",
		CreatedUTC:   1500000000,
		SelftextHTML: &body,
		SearchQuery:  "viberg",
	}
	if err := st.InsertSubmission(ctx, sub); err != nil {
		t.Fatalf("insert: %v", err)
	}

	outcome, err := Run(ctx, st, discardLogger(), func(ctx context.Context, tx *store.Store) error {
		return Links(ctx, tx, discardLogger())
	})
	if err != nil || outcome != Committed {
		t.Fatalf("run: (%v, %v)", outcome, err)
	}

	backlog, err := st.UnresolvedMedia(ctx)
	if err != nil {
		t.Fatalf("backlog: %v", err)
	}
	if len(backlog) != 1 || backlog[0].URL != "https://imgur.com/a/xyz789" {
		t.Fatalf("expected extracted link in backlog, got %+v", backlog)
	}
}
