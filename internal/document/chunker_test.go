package document

import (
	"errors"
	"strings"
	"testing"
)

func TestChunkSettingsValidate(t *testing.T) {
	tests := []struct {
		name     string
		settings ChunkSettings
		wantErr  bool
	}{
		{"valid", ChunkSettings{MaxChunkLength: 1000, ChunkOverlap: 100}, false},
		{"zero overlap", ChunkSettings{MaxChunkLength: 10}, false},
		{"zero max length", ChunkSettings{MaxChunkLength: 0}, true},
		{"negative overlap", ChunkSettings{MaxChunkLength: 10, ChunkOverlap: -1}, true},
		{"overlap equals max", ChunkSettings{MaxChunkLength: 10, ChunkOverlap: 10}, true},
		{"overlap exceeds max", ChunkSettings{MaxChunkLength: 10, ChunkOverlap: 20}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.settings.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidChunkSettings) {
				t.Errorf("Validate() error = %v, want ErrInvalidChunkSettings", err)
			}
		})
	}
}

func TestChunkEmptyInput(t *testing.T) {
	if got := Chunk("", ChunkSettings{MaxChunkLength: 100}); len(got) != 0 {
		t.Errorf("Chunk(\"\") = %v, want no chunks", got)
	}
}

func TestChunkSingleSmallInput(t *testing.T) {
	got := Chunk("hello world", ChunkSettings{MaxChunkLength: 100})
	if len(got) != 1 || got[0] != "hello world" {
		t.Errorf("Chunk() = %v, want single unchanged chunk", got)
	}
}

// Rejoining the chunks with the delimiter must reconstruct the input when
// overlap is disabled.
func TestChunkCoverage(t *testing.T) {
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = strings.Repeat("x", 7+i%13)
	}
	text := strings.Join(lines, "\n")

	chunks := Chunk(text, ChunkSettings{MaxChunkLength: 40})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if rejoined := strings.Join(chunks, "\n"); rejoined != text {
		t.Errorf("rejoined chunks differ from input:\ngot  %q\nwant %q", rejoined, text)
	}
}

func TestChunkSizeBound(t *testing.T) {
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = strings.Repeat("a", 1+i%20)
	}
	text := strings.Join(lines, "\n")

	maxLen := 50
	for _, chunk := range Chunk(text, ChunkSettings{MaxChunkLength: maxLen}) {
		if len(chunk) > maxLen {
			t.Errorf("chunk length %d exceeds budget %d: %q", len(chunk), maxLen, chunk)
		}
	}
}

func TestChunkOversizedLinePreserved(t *testing.T) {
	long := strings.Repeat("z", 200)
	text := "short\n" + long + "\ntail"

	chunks := Chunk(text, ChunkSettings{MaxChunkLength: 50})
	found := false
	for _, chunk := range chunks {
		if chunk == long {
			found = true
		}
	}
	if !found {
		t.Errorf("oversized line was broken apart: %v", chunks)
	}
}

func TestChunkHardSplit(t *testing.T) {
	long := strings.Repeat("z", 200)
	chunks := Chunk(long, ChunkSettings{MaxChunkLength: 50, HardSplit: true})
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4", len(chunks))
	}
	for _, chunk := range chunks {
		if len(chunk) > 50 {
			t.Errorf("chunk length %d exceeds budget with HardSplit", len(chunk))
		}
	}
	if strings.Join(chunks, "") != long {
		t.Error("hard-split chunks do not reconstruct the input")
	}
}

func TestChunkOverlap(t *testing.T) {
	text := "aaaaaaaaaa\nbbbbbbbbbb\ncccccccccc"
	chunks := Chunk(text, ChunkSettings{MaxChunkLength: 10, ChunkOverlap: 4})
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3: %v", len(chunks), chunks)
	}

	if chunks[0] != "aaaaaaaaaa" {
		t.Errorf("chunks[0] = %q, first chunk must be untouched", chunks[0])
	}
	if chunks[1] != "aaaabbbbbbbbbb" {
		t.Errorf("chunks[1] = %q, want predecessor tail prefixed", chunks[1])
	}
	// Overlap must come from the pre-overlap predecessor, not cascade.
	if chunks[2] != "bbbbcccccccccc" {
		t.Errorf("chunks[2] = %q, overlap cascaded", chunks[2])
	}
}

func TestChunkOverlapShortPredecessor(t *testing.T) {
	text := "ab\ncccccccccc"
	chunks := Chunk(text, ChunkSettings{MaxChunkLength: 10, ChunkOverlap: 8})
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %v", len(chunks), chunks)
	}
	if chunks[1] != "abcccccccccc" {
		t.Errorf("chunks[1] = %q, want whole short predecessor prefixed", chunks[1])
	}
}

func TestChunkCustomDelimiter(t *testing.T) {
	text := "alpha---beta---gamma"
	chunks := Chunk(text, ChunkSettings{MaxChunkLength: 12, Delimiter: "---"})
	want := []string{"alpha---", "beta---", "gamma---"}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d: %v", len(chunks), len(want), chunks)
	}
	// Every piece keeps the delimiter as a trailing suffix, the last
	// included, and the suffix counts against the length check.
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunks[%d] = %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestChunkCustomDelimiterPacks(t *testing.T) {
	text := "a.b.c.d"
	chunks := Chunk(text, ChunkSettings{MaxChunkLength: 4, Delimiter: "."})
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %v", len(chunks), chunks)
	}
	if chunks[0] != "a.b." {
		t.Errorf("chunks[0] = %q, want two packed pieces", chunks[0])
	}
	if chunks[1] != "c.d." {
		t.Errorf("chunks[1] = %q", chunks[1])
	}
}

func TestChunkCustomDelimiterTrailingSuffix(t *testing.T) {
	chunks := Chunk("alpha---beta", ChunkSettings{MaxChunkLength: 50, Delimiter: "---"})
	if len(chunks) != 1 || chunks[0] != "alpha---beta---" {
		t.Errorf("Chunk() = %v, want single chunk with trailing delimiter", chunks)
	}
}

func TestChunkWhitespaceOnlyWithCustomDelimiter(t *testing.T) {
	if got := Chunk("  \t ", ChunkSettings{MaxChunkLength: 10, Delimiter: " "}); len(got) != 0 {
		t.Errorf("Chunk(whitespace) = %v, want no chunks", got)
	}
}
