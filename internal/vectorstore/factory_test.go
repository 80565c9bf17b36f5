package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/kubesage/kubesage/internal/config"
	"github.com/kubesage/kubesage/internal/log"
)

func TestNewSelectsBackend(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.Config
		wantType any
		wantErr  error
	}{
		{
			name: "pinecone",
			cfg: &config.Config{
				VectorStore:         config.StorePinecone,
				Pinecone:            config.PineconeConfig{APIKey: "pc-key", IndexHost: "https://idx.pinecone.io"},
				EmbeddingDimensions: 768,
			},
			wantType: &PineconeStore{},
		},
		{
			name: "chroma",
			cfg: &config.Config{
				VectorStore:         config.StoreChroma,
				Chroma:              config.ChromaConfig{BaseURL: "http://localhost:8000", Collection: "kubesage"},
				EmbeddingDimensions: 768,
			},
			wantType: &ChromaStore{},
		},
		{
			name:    "unknown backend",
			cfg:     &config.Config{VectorStore: "weaviate"},
			wantErr: ErrUnsupportedStore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, closeFn, err := New(context.Background(), tt.cfg, log.NewNop())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			defer closeFn()

			switch tt.wantType.(type) {
			case *PineconeStore:
				if _, ok := store.(*PineconeStore); !ok {
					t.Errorf("New() = %T, want *PineconeStore", store)
				}
			case *ChromaStore:
				if _, ok := store.(*ChromaStore); !ok {
					t.Errorf("New() = %T, want *ChromaStore", store)
				}
			}
		})
	}
}

func TestNewNilConfig(t *testing.T) {
	if _, _, err := New(context.Background(), nil, log.NewNop()); !errors.Is(err, config.ErrConfigNil) {
		t.Fatalf("New(nil) error = %v, want ErrConfigNil", err)
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 1},
		{-5, 1},
		{50, 50},
		{MaxPageSize, MaxPageSize},
		{MaxPageSize + 1, MaxPageSize},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
