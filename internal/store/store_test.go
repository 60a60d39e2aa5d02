package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"reviewhunter/internal/model"
)

func TestInsertSubmission_IgnoresDuplicates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sub := &model.Submission{
		ID:          "aaa111",
		Subreddit:   "goodyearwelt",
		Title:       "first title",
		CreatedUTC:  1500000000,
		SearchQuery: "viberg",
	}
	if err := st.InsertSubmission(ctx, sub); err != nil {
		t.Fatalf("insert: %v", err)
	}

	dup := &model.Submission{
		ID:          "aaa111",
		Subreddit:   "goodyearwelt",
		Title:       "changed title",
		CreatedUTC:  1500000000,
		SearchQuery: "viberg",
	}
	if err := st.InsertSubmission(ctx, dup); err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}

	var got model.Submission
	if err := st.db.First(&got, "id = ?", "aaa111").Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got.Title != "first title" {
		t.Fatalf("duplicate insert must not update, got title %q", got.Title)
	}

	var count int64
	if err := st.db.Model(&model.Submission{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}
}

func TestInsertSubmissionFact_SameIDDifferentQuery(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, query := range []string{"viberg", "service boot"} {
		fact := &model.SubmissionFact{
			ID:          "aaa111",
			Title:       "review",
			CreatedUTC:  1500000000,
			SearchQuery: query,
		}
		if err := st.InsertSubmissionFact(ctx, fact); err != nil {
			t.Fatalf("insert fact for %q: %v", query, err)
		}
	}

	var count int64
	if err := st.db.Model(&model.SubmissionFact{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 fact rows, got %d", count)
	}
}

func TestOldestSubmissionID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if id, err := st.OldestSubmissionID(ctx, "viberg"); err != nil || id != "" {
		t.Fatalf("empty table: got (%q, %v)", id, err)
	}

	facts := []model.SubmissionFact{
		{ID: "new111", Title: "t", CreatedUTC: 1500000100, SearchQuery: "viberg"},
		{ID: "old222", Title: "t", CreatedUTC: 1500000000, SearchQuery: "viberg"},
		{ID: "xxx333", Title: "t", CreatedUTC: 1400000000, SearchQuery: "other"},
	}
	for i := range facts {
		if err := st.InsertSubmissionFact(ctx, &facts[i]); err != nil {
			t.Fatalf("insert fact: %v", err)
		}
	}

	id, err := st.OldestSubmissionID(ctx, "viberg")
	if err != nil {
		t.Fatalf("oldest: %v", err)
	}
	if id != "old222" {
		t.Fatalf("expected oldest id for query, got %q", id)
	}
}

func TestUnresolvedMedia(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	resolved := &model.Media{SubmissionID: "aaa111", URL: "https://imgur.com/done", IsDirect: true}
	pending := &model.Media{SubmissionID: "aaa111", URL: "https://imgur.com/todo", IsDirect: true}
	if err := st.InsertMedia(ctx, resolved); err != nil {
		t.Fatalf("insert media: %v", err)
	}
	if err := st.InsertMedia(ctx, pending); err != nil {
		t.Fatalf("insert media: %v", err)
	}
	if err := st.InsertImage(ctx, &model.Image{ID: "img1", MediaID: resolved.ID, URL: "https://i.imgur.com/img1.jpg"}); err != nil {
		t.Fatalf("insert image: %v", err)
	}

	backlog, err := st.UnresolvedMedia(ctx)
	if err != nil {
		t.Fatalf("unresolved: %v", err)
	}
	if len(backlog) != 1 {
		t.Fatalf("expected 1 pending media, got %d", len(backlog))
	}
	if backlog[0].URL != "https://imgur.com/todo" {
		t.Fatalf("wrong pending media: %+v", backlog[0])
	}
}

func TestSubmissionBodies(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	body := "<div>text</div>"
	withBody := &model.Submission{ID: "aaa111", Subreddit: "s", Title: "t", CreatedUTC: 1, SearchQuery: "q", SelftextHTML: &body}
	withoutBody := &model.Submission{ID: "bbb222", Subreddit: "s", Title: "t", CreatedUTC: 1, SearchQuery: "q"}
	for _, sub := range []*model.Submission{withBody, withoutBody} {
		if err := st.InsertSubmission(ctx, sub); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	bodies, err := st.SubmissionBodies(ctx)
	if err != nil {
		t.Fatalf("bodies: %v", err)
	}
	if len(bodies) != 1 {
		t.Fatalf("expected 1 body, got %d", len(bodies))
	}
	if bodies[0].ID != "aaa111" || bodies[0].SelftextHTML != body {
		t.Fatalf("unexpected body row: %+v", bodies[0])
	}
}

func TestPendingProducts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	results := []model.ProductSearchResult{
		{Brand: "Acme", ProductID: 100, ProductName: "Derby", SearchQuery: "derby"},
		{Brand: "Acme", ProductID: 100, ProductName: "Derby", SearchQuery: "leather"},
		{Brand: "Acme Kids", ProductID: 200, ProductName: "Small Derby", SearchQuery: "derby"},
		{Brand: "Generic Boots", ProductID: 300, ProductName: "Boot", SearchQuery: "boot"},
		{Brand: "Acme", ProductID: 400, ProductName: "Oxford", SearchQuery: "oxford"},
	}
	for i := range results {
		if err := st.InsertSearchResult(ctx, &results[i]); err != nil {
			t.Fatalf("insert result: %v", err)
		}
	}
	if err := st.InsertProduct(ctx, &model.Product{ID: 400, Brand: "Acme", Name: "Oxford"}); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	pending, err := st.PendingProducts(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending product, got %d: %+v", len(pending), pending)
	}
	if pending[0].ProductID != 100 || pending[0].Brand != "Acme" {
		t.Fatalf("unexpected pending product: %+v", pending[0])
	}
}

func TestInsertSearchResult_DuplicatePerQueryIgnored(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		r := &model.ProductSearchResult{Brand: "Acme", ProductID: 100, ProductName: "Derby", SearchQuery: "derby"}
		if err := st.InsertSearchResult(ctx, r); err != nil {
			t.Fatalf("insert result: %v", err)
		}
	}

	var count int64
	if err := st.db.Model(&model.ProductSearchResult{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 result row, got %d", count)
	}
}

func TestTransactionRollback(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	tx, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	sub := &model.Submission{ID: "aaa111", Subreddit: "s", Title: "t", CreatedUTC: 1, SearchQuery: "q"}
	if err := tx.InsertSubmission(ctx, sub); err != nil {
		t.Fatalf("insert in tx: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	var count int64
	if err := st.db.Model(&model.Submission{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback to discard writes, got %d rows", count)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	// 每个测试独立的共享内存库，避免连接池拿到空库
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	st, err := Open(dsn, discard)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return st
}
