package document

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kubesage/kubesage/internal/log"
	"github.com/kubesage/kubesage/internal/vectorstore"
)

// pageSize is the ID page size used while walking the whole index.
const pageSize = vectorstore.MaxPageSize

// Embedder is the slice of the embedding provider the pipeline needs.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the slice of the vector store the pipeline needs.
type Store interface {
	Upsert(ctx context.Context, docs []vectorstore.Document) error
	Delete(ctx context.Context, ids []string) error
	ListIDs(ctx context.Context, limit int, pageToken, namespace string) (vectorstore.ListPage, error)
	FetchByIDs(ctx context.Context, ids []string, namespace string) ([]vectorstore.Document, error)
}

// UploadedDocument summarizes one successful ingestion.
type UploadedDocument struct {
	FileName   string    `json:"fileName"`
	FileSize   int       `json:"fileSize"`
	ChunkCount int       `json:"chunkCount"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// FileUpload is one file handed to the pipeline.
type FileUpload struct {
	FileName string `json:"fileName"`
	Content  string `json:"content"`
}

// BatchResult reports a multi-file ingestion. Failed files are logged and
// skipped; they never abort the batch.
type BatchResult struct {
	Uploaded []UploadedDocument `json:"uploaded"`
	Failed   []string           `json:"failed,omitempty"`
}

// DocumentInfo is one logical document in the catalog, aggregated from
// its chunks.
type DocumentInfo struct {
	FileName   string            `json:"fileName"`
	Format     Format            `json:"format"`
	ChunkCount int               `json:"chunkCount"`
	TotalSize  int               `json:"totalSize"`
	UploadedAt string            `json:"uploadedAt"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Service runs the ingestion pipeline and maintains the logical-document
// view of the vector store.
type Service struct {
	store     Store
	embedder  Embedder
	extractor *Extractor
	logger    log.Logger
}

// NewService creates the document service.
func NewService(store Store, embedder Embedder, logger log.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{
		store:     store,
		embedder:  embedder,
		extractor: NewExtractor(logger),
		logger:    logger,
	}, nil
}

// Ingest chunks, embeds and stores one file. Every chunk gets a fresh ID
// of the form "<fileName>-<uuid>", so re-uploading a file adds new chunks
// rather than replacing old ones; callers delete first to replace.
func (s *Service) Ingest(ctx context.Context, file FileUpload, settings ChunkSettings) (UploadedDocument, error) {
	if err := settings.Validate(); err != nil {
		return UploadedDocument{}, err
	}

	format := DetectFormat(file.FileName)
	base := s.extractor.Extract(file.Content, file.FileName, format)
	chunks := Chunk(file.Content, settings)

	result := UploadedDocument{
		FileName:   file.FileName,
		FileSize:   len(file.Content),
		UploadedAt: time.Now().UTC(),
	}
	if len(chunks) == 0 {
		s.logger.Warn("file produced no chunks", "fileName", file.FileName)
		return result, nil
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return UploadedDocument{}, fmt.Errorf("embedding %q: %w", file.FileName, err)
	}
	if len(embeddings) != len(chunks) {
		return UploadedDocument{}, fmt.Errorf("embedding %q: got %d vectors for %d chunks", file.FileName, len(embeddings), len(chunks))
	}

	docs := make([]vectorstore.Document, len(chunks))
	for i, chunk := range chunks {
		meta := make(map[string]string, len(base)+2)
		for k, v := range base {
			meta[k] = v
		}
		meta[MetaChunkIndex] = strconv.Itoa(i)
		meta[MetaTotalChunks] = strconv.Itoa(len(chunks))

		docs[i] = vectorstore.Document{
			ID:        file.FileName + "-" + uuid.NewString(),
			Content:   chunk,
			Embedding: embeddings[i],
			Metadata:  meta,
		}
	}

	if err := s.store.Upsert(ctx, docs); err != nil {
		return UploadedDocument{}, fmt.Errorf("storing %q: %w", file.FileName, err)
	}

	s.logger.Info("document ingested", "fileName", file.FileName, "chunks", len(chunks), "format", format)
	result.ChunkCount = len(chunks)
	return result, nil
}

// IngestAll ingests multiple files with per-file isolation: one failing
// file is recorded in Failed and the rest still go through.
func (s *Service) IngestAll(ctx context.Context, files []FileUpload, settings ChunkSettings) (BatchResult, error) {
	if err := settings.Validate(); err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	for _, file := range files {
		uploaded, err := s.Ingest(ctx, file, settings)
		if err != nil {
			s.logger.Error("ingestion failed", "fileName", file.FileName, "error", err)
			result.Failed = append(result.Failed, file.FileName)
			continue
		}
		result.Uploaded = append(result.Uploaded, uploaded)
	}
	return result, nil
}

// List walks the whole index and folds chunks into logical documents
// keyed by file name, in first-seen order. Chunks without a fileName are
// logged and skipped.
func (s *Service) List(ctx context.Context, namespace string) ([]DocumentInfo, error) {
	byName := make(map[string]*DocumentInfo)
	var order []string

	token := ""
	for {
		page, err := s.store.ListIDs(ctx, pageSize, token, namespace)
		if err != nil {
			return nil, fmt.Errorf("listing document ids: %w", err)
		}
		if len(page.IDs) > 0 {
			docs, err := s.store.FetchByIDs(ctx, page.IDs, namespace)
			if err != nil {
				return nil, fmt.Errorf("fetching documents: %w", err)
			}
			for _, doc := range docs {
				s.foldChunk(doc, byName, &order)
			}
		}
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	infos := make([]DocumentInfo, 0, len(order))
	for _, name := range order {
		infos = append(infos, *byName[name])
	}
	return infos, nil
}

// foldChunk merges one stored chunk into its logical document.
func (s *Service) foldChunk(doc vectorstore.Document, byName map[string]*DocumentInfo, order *[]string) {
	fileName := doc.Metadata[MetaFileName]
	if fileName == "" {
		s.logger.Warn("chunk missing fileName metadata", "id", doc.ID)
		return
	}

	info, ok := byName[fileName]
	if !ok {
		info = &DocumentInfo{
			FileName:   fileName,
			Format:     Format(doc.Metadata[MetaFormat]),
			UploadedAt: doc.Metadata[MetaUploadedAt],
			Metadata:   documentMetadata(doc.Metadata),
		}
		byName[fileName] = info
		*order = append(*order, fileName)
	}
	info.ChunkCount++
	info.TotalSize += len(doc.Content)
}

// documentMetadata strips the per-chunk and already-promoted keys, leaving
// the format-specific fields.
func documentMetadata(meta map[string]string) map[string]string {
	out := make(map[string]string)
	for k, v := range meta {
		switch k {
		case MetaFileName, MetaFormat, MetaUploadedAt, MetaChunkIndex, MetaTotalChunks:
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Delete removes every chunk of the named document and returns how many
// were deleted. Backends with a metadata index take a single-statement
// fast path; the rest fall back to a full scan, which is O(total
// documents in the namespace).
func (s *Service) Delete(ctx context.Context, fileName, namespace string) (int, error) {
	if md, ok := s.store.(vectorstore.MetadataDeleter); ok {
		deleted, err := md.DeleteByMetadata(ctx, MetaFileName, fileName, namespace)
		if err != nil {
			return 0, fmt.Errorf("deleting %q: %w", fileName, err)
		}
		s.logger.Info("document deleted", "fileName", fileName, "chunks", deleted)
		return deleted, nil
	}

	var ids []string
	token := ""
	for {
		page, err := s.store.ListIDs(ctx, pageSize, token, namespace)
		if err != nil {
			return 0, fmt.Errorf("listing document ids: %w", err)
		}
		if len(page.IDs) > 0 {
			docs, err := s.store.FetchByIDs(ctx, page.IDs, namespace)
			if err != nil {
				return 0, fmt.Errorf("fetching documents: %w", err)
			}
			for _, doc := range docs {
				if doc.Metadata[MetaFileName] == fileName {
					ids = append(ids, doc.ID)
				}
			}
		}
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.store.Delete(ctx, ids); err != nil {
		return 0, fmt.Errorf("deleting %q: %w", fileName, err)
	}
	s.logger.Info("document deleted", "fileName", fileName, "chunks", len(ids))
	return len(ids), nil
}
