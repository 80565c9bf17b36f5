package vectorstore_test

import (
	"context"
	"testing"

	"github.com/kubesage/kubesage/internal/log"
	"github.com/kubesage/kubesage/internal/testutil"
	"github.com/kubesage/kubesage/internal/vectorstore"
)

// makeEmbedding returns a 768-wide vector with a single distinguishing
// component so cosine ordering between test documents is predictable.
func makeEmbedding(hot int) []float32 {
	v := make([]float32, 768)
	v[hot] = 1
	return v
}

func TestPgvectorStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store, err := vectorstore.NewPgvector(tdb.Pool, "test-ns", 768, log.NewNop())
	if err != nil {
		t.Fatalf("NewPgvector() error: %v", err)
	}

	docs := []vectorstore.Document{
		{ID: "a-1", Content: "alpha chunk", Embedding: makeEmbedding(0), Metadata: map[string]string{"fileName": "a.yaml", "format": "yaml"}},
		{ID: "a-2", Content: "alpha second", Embedding: makeEmbedding(1), Metadata: map[string]string{"fileName": "a.yaml", "format": "yaml"}},
		{ID: "b-1", Content: "beta chunk", Embedding: makeEmbedding(2), Metadata: map[string]string{"fileName": "b.txt", "format": "text"}},
	}
	if err := store.Upsert(ctx, docs); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	// Upsert again with same IDs must not duplicate.
	if err := store.Upsert(ctx, docs[:1]); err != nil {
		t.Fatalf("re-Upsert() error: %v", err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.TotalDocuments != 3 {
		t.Errorf("TotalDocuments = %d, want 3", stats.TotalDocuments)
	}

	// Query nearest to a-1's embedding with a metadata filter.
	matches, err := store.Query(ctx, makeEmbedding(0), 5, map[string]string{"format": "yaml"})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2 yaml chunks", len(matches))
	}
	if matches[0].ID != "a-1" {
		t.Errorf("nearest = %s, want a-1", matches[0].ID)
	}
	if matches[0].Score <= matches[1].Score {
		t.Errorf("scores not descending: %v, %v", matches[0].Score, matches[1].Score)
	}

	// Paginate IDs with page size 2.
	page1, err := store.ListIDs(ctx, 2, "", "")
	if err != nil {
		t.Fatalf("ListIDs() error: %v", err)
	}
	if len(page1.IDs) != 2 || page1.NextToken == "" {
		t.Fatalf("page1 = %+v", page1)
	}
	page2, err := store.ListIDs(ctx, 2, page1.NextToken, "")
	if err != nil {
		t.Fatalf("ListIDs() page2 error: %v", err)
	}
	if len(page2.IDs) != 1 {
		t.Fatalf("page2 = %+v", page2)
	}

	fetched, err := store.FetchByIDs(ctx, []string{"a-1", "nope"}, "")
	if err != nil {
		t.Fatalf("FetchByIDs() error: %v", err)
	}
	if len(fetched) != 1 || fetched[0].Metadata["fileName"] != "a.yaml" {
		t.Fatalf("fetched = %+v", fetched)
	}

	// Fast-path delete by metadata.
	deleted, err := store.DeleteByMetadata(ctx, "fileName", "a.yaml", "")
	if err != nil {
		t.Fatalf("DeleteByMetadata() error: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	// Deleting already-deleted IDs is a no-op.
	if err := store.Delete(ctx, []string{"a-1", "a-2"}); err != nil {
		t.Fatalf("Delete() of absent ids error: %v", err)
	}

	stats, err = store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.TotalDocuments != 1 {
		t.Errorf("TotalDocuments after delete = %d, want 1", stats.TotalDocuments)
	}

	if !store.HealthCheck(ctx) {
		t.Error("HealthCheck() = false")
	}
}
