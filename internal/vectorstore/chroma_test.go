package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kubesage/kubesage/internal/log"
)

const testCollectionID = "coll-123"

// newChromaTestServer wires a fake Chroma server that always resolves the
// collection and dispatches collection sub-paths to handlers.
func newChromaTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *ChromaStore {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name        string `json:"name"`
			GetOrCreate bool   `json:"get_or_create"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding collections body: %v", err)
		}
		if !body.GetOrCreate {
			t.Error("expected get_or_create=true")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": testCollectionID})
	})
	for sub, h := range handlers {
		mux.HandleFunc("/api/v1/collections/"+testCollectionID+"/"+sub, h)
	}
	mux.HandleFunc("/api/v1/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int64{"nanosecond heartbeat": 1})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	store, err := NewChroma(srv.URL, "kubesage", "ns1", 768, log.NewNop())
	if err != nil {
		t.Fatalf("NewChroma() error: %v", err)
	}
	return store
}

func TestChromaUpsertCarriesNamespace(t *testing.T) {
	var got struct {
		IDs       []string            `json:"ids"`
		Documents []string            `json:"documents"`
		Metadatas []map[string]string `json:"metadatas"`
	}
	store := newChromaTestServer(t, map[string]http.HandlerFunc{
		"upsert": func(w http.ResponseWriter, r *http.Request) {
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("decoding upsert: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		},
	})

	docs := []Document{{ID: "x-1", Content: "text", Embedding: []float32{1}, Metadata: map[string]string{"fileName": "x.md"}}}
	if err := store.Upsert(context.Background(), docs); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if len(got.IDs) != 1 || got.IDs[0] != "x-1" {
		t.Fatalf("ids = %v", got.IDs)
	}
	if got.Documents[0] != "text" {
		t.Errorf("documents[0] = %q", got.Documents[0])
	}
	if got.Metadatas[0][namespaceKey] != "ns1" {
		t.Errorf("namespace metadata = %q, want ns1", got.Metadatas[0][namespaceKey])
	}
}

func TestChromaQueryScoresFromDistances(t *testing.T) {
	store := newChromaTestServer(t, map[string]http.HandlerFunc{
		"query": func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ids":       [][]string{{"x-1", "x-2"}},
				"documents": [][]string{{"one", "two"}},
				"metadatas": [][]map[string]string{{
					{"fileName": "x.md", namespaceKey: "ns1"},
					{"fileName": "y.md", namespaceKey: "ns1"},
				}},
				"distances": [][]float64{{0.1, 0.4}},
			})
		},
	})

	matches, err := store.Query(context.Background(), []float32{1}, 2, nil)
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches", len(matches))
	}
	if matches[0].Score != 0.9 {
		t.Errorf("score = %v, want 1-distance = 0.9", matches[0].Score)
	}
	if _, ok := matches[0].Metadata[namespaceKey]; ok {
		t.Error("namespace key should be stripped from metadata")
	}
}

func TestChromaDeleteByMetadataCountsServerIDs(t *testing.T) {
	var got struct {
		Where map[string]any `json:"where"`
	}
	store := newChromaTestServer(t, map[string]http.HandlerFunc{
		"delete": func(w http.ResponseWriter, r *http.Request) {
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("decoding delete: %v", err)
			}
			_ = json.NewEncoder(w).Encode([]string{"x-1", "x-2"})
		},
	})

	deleted, err := store.DeleteByMetadata(context.Background(), "fileName", "a.yaml", "")
	if err != nil {
		t.Fatalf("DeleteByMetadata() error: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	// Configured namespace joins the attribute filter server-side.
	and, ok := got.Where["$and"].([]any)
	if !ok || len(and) != 2 {
		t.Fatalf("where = %v, want $and of filter and namespace", got.Where)
	}
}

func TestChromaListIDsOffsetTokens(t *testing.T) {
	store := newChromaTestServer(t, map[string]http.HandlerFunc{
		"get": func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Limit  int `json:"limit"`
				Offset int `json:"offset"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decoding get: %v", err)
			}
			ids := []string{}
			if body.Offset == 0 {
				ids = []string{"x-1", "x-2"}
			} else if body.Offset == 2 {
				ids = []string{"x-3"}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"ids": ids})
		},
	})

	page1, err := store.ListIDs(context.Background(), 2, "", "")
	if err != nil {
		t.Fatalf("ListIDs() error: %v", err)
	}
	if page1.NextToken != "2" {
		t.Fatalf("page1 token = %q, want offset 2", page1.NextToken)
	}

	page2, err := store.ListIDs(context.Background(), 2, page1.NextToken, "")
	if err != nil {
		t.Fatalf("ListIDs() page 2 error: %v", err)
	}
	if len(page2.IDs) != 1 || page2.NextToken != "" {
		t.Fatalf("page2 = %+v", page2)
	}
}

func TestChromaListIDsRejectsBadToken(t *testing.T) {
	store := newChromaTestServer(t, map[string]http.HandlerFunc{})
	if _, err := store.ListIDs(context.Background(), 10, "not-a-number", ""); err == nil {
		t.Fatal("expected error for malformed page token")
	}
}

func TestChromaStats(t *testing.T) {
	store := newChromaTestServer(t, map[string]http.HandlerFunc{
		"count": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("7"))
		},
	})

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.TotalDocuments != 7 {
		t.Errorf("total = %d, want 7", stats.TotalDocuments)
	}
	if stats.Dimensions != 768 {
		t.Errorf("dimensions = %d, want configured 768", stats.Dimensions)
	}
}

func TestChromaHealthCheck(t *testing.T) {
	store := newChromaTestServer(t, nil)
	if !store.HealthCheck(context.Background()) {
		t.Error("HealthCheck() = false against live server")
	}

	down, err := NewChroma("http://127.0.0.1:1", "kubesage", "", 768, log.NewNop())
	if err != nil {
		t.Fatalf("NewChroma() error: %v", err)
	}
	if down.HealthCheck(context.Background()) {
		t.Error("HealthCheck() = true against unreachable server")
	}
}

func TestChromaBuildWhere(t *testing.T) {
	store := &ChromaStore{namespace: "ns1"}

	tests := []struct {
		name      string
		filter    map[string]string
		namespace string
		wantNil   bool
		wantAnd   bool
	}{
		{"no filter no namespace", nil, "", false, false}, // configured ns1 still applies
		{"filter plus namespace", map[string]string{"format": "yaml"}, "ns2", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where := store.buildWhere(tt.filter, tt.namespace)
			if tt.wantNil {
				if where != nil {
					t.Fatalf("buildWhere() = %v, want nil", where)
				}
				return
			}
			if where == nil {
				t.Fatal("buildWhere() = nil")
			}
			_, hasAnd := where["$and"]
			if hasAnd != tt.wantAnd {
				t.Errorf("has $and = %v, want %v (where=%v)", hasAnd, tt.wantAnd, where)
			}
		})
	}

	bare := &ChromaStore{}
	if where := bare.buildWhere(nil, ""); where != nil {
		t.Errorf("buildWhere() with nothing to filter = %v, want nil", where)
	}
}

func TestChromaCollectionResolutionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	store, err := NewChroma(srv.URL, "kubesage", "", 768, log.NewNop())
	if err != nil {
		t.Fatalf("NewChroma() error: %v", err)
	}
	_, err = store.Query(context.Background(), []float32{1}, 1, nil)
	if err == nil || !strings.Contains(err.Error(), "kubesage") {
		t.Fatalf("expected collection resolution error, got %v", err)
	}
}
