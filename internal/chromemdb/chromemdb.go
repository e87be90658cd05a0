package chromemdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"study-assistant/internal/apperr"
	"study-assistant/internal/embedding"
	"study-assistant/internal/helper"
	"study-assistant/internal/models"
)

const (
	compress     = false
	dbDirName    = "chromem"
	metadataFile = "metadata.json"

	metaSource       = "source"
	metaPage         = "page"
	metaDocumentType = "document_type"
)

// StoreMetadata is the sidecar record written next to each store.
type StoreMetadata struct {
	NumDocuments int      `json:"num_documents"`
	Sources      []string `json:"sources"`
	StoreName    string   `json:"store_name"`
}

// Indexer creates, extends and opens named stores under a root directory,
// one subdirectory per store.
type Indexer struct {
	root          string
	embedder      embeddings.Embedder
	encryptionKey string
}

func NewIndexer(root string, embedder embeddings.Embedder, encryptionKey string) *Indexer {
	return &Indexer{root: root, embedder: embedder, encryptionKey: encryptionKey}
}

// Store is an open named collection.
type Store struct {
	name          string
	dir           string
	db            *chromem.DB
	collection    *chromem.Collection
	embedder      embeddings.Embedder
	meta          StoreMetadata
	encryptionKey string
}

func (ix *Indexer) storeDir(name string) string {
	return filepath.Join(ix.root, name)
}

// Exists reports whether a store directory is present for name.
func (ix *Indexer) Exists(name string) bool {
	info, err := os.Stat(ix.storeDir(name))
	return err == nil && info.IsDir()
}

// Create embeds every chunk and persists it into a fresh collection, replacing any previous
// store with the same name.
func (ix *Indexer) Create(ctx context.Context, chunks []models.Chunk, name string) (*Store, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no documents to index", apperr.ErrStorage)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: store name is required", apperr.ErrInvalidInput)
	}

	dir := ix.storeDir(name)
	log.Info().Str("store", name).Str("path", dir).Int("chunks", len(chunks)).Msg("Creating vector store")
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("%w: failed to clear %s: %v", apperr.ErrStorage, dir, err)
	}

	store, err := ix.open(name)
	if err != nil {
		return nil, err
	}
	store.meta = StoreMetadata{StoreName: name}
	if err := store.Add(ctx, chunks); err != nil {
		return nil, err
	}
	log.Info().Str("store", name).Int("indexed", store.Count()).Msg("Vector store created")
	return store, nil
}

// Add appends chunks to an existing store, creating it when absent.
func (ix *Indexer) Add(ctx context.Context, chunks []models.Chunk, name string) (*Store, error) {
	store, err := ix.Load(name)
	if errors.Is(err, apperr.ErrStoreNotFound) {
		log.Info().Str("store", name).Msg("No existing store found, creating a new one")
		return ix.Create(ctx, chunks, name)
	}
	if err != nil {
		return nil, err
	}
	if err := store.Add(ctx, chunks); err != nil {
		return nil, err
	}
	return store, nil
}

// Load opens an existing store. A missing store yields apperr.ErrStoreNotFound.
func (ix *Indexer) Load(name string) (*Store, error) {
	if !ix.Exists(name) {
		return nil, fmt.Errorf("%w: %s", apperr.ErrStoreNotFound, ix.storeDir(name))
	}
	store, err := ix.open(name)
	if err != nil {
		return nil, err
	}
	if store.collection.Count() == 0 && !fileExists(store.metadataPath()) {
		return nil, fmt.Errorf("%w: %s holds no collection", apperr.ErrStoreNotFound, store.dir)
	}

	meta, err := readMetadata(store.metadataPath())
	if err != nil {
		log.Warn().Err(err).Str("store", name).Msg("Sidecar metadata unreadable, rebuilding from collection")
		meta = StoreMetadata{StoreName: name}
	}
	meta.NumDocuments = store.collection.Count()
	store.meta = meta
	log.Debug().Str("store", name).Int("chunks", meta.NumDocuments).Msg("Vector store loaded")
	return store, nil
}

// Reset deletes the named store from disk. Deleting a missing store is not an error.
func (ix *Indexer) Reset(name string) error {
	dir := ix.storeDir(name)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: failed to delete %s: %v", apperr.ErrStorage, dir, err)
	}
	log.Info().Str("store", name).Msg("Vector store deleted")
	return nil
}

func (ix *Indexer) open(name string) (*Store, error) {
	dir := ix.storeDir(name)
	if err := helper.CreateFolder(dir); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	db, err := chromem.NewPersistentDB(filepath.Join(dir, dbDirName), compress)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", apperr.ErrStorage, err)
	}
	c, err := db.GetOrCreateCollection(name, nil, embedding.EmbeddingFunc(ix.embedder))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create/get collection: %v", apperr.ErrStorage, err)
	}
	return &Store{
		name:          name,
		dir:           dir,
		db:            db,
		collection:    c,
		embedder:      ix.embedder,
		encryptionKey: ix.encryptionKey,
	}, nil
}

func (s *Store) Name() string {
	return s.name
}

// Count is the number of chunks held by the collection.
func (s *Store) Count() int {
	return s.collection.Count()
}

// Metadata returns a copy of the sidecar record.
func (s *Store) Metadata() StoreMetadata {
	meta := s.meta
	meta.Sources = append([]string(nil), s.meta.Sources...)
	return meta
}

// Add embeds chunks one at a time and appends them to the collection, then rewrites the sidecar.
func (s *Store) Add(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no documents to index", apperr.ErrStorage)
	}

	vectors, err := embedding.GenerateEmbeddings(ctx, s.embedder, chunks)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrStorage, err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		id, err := helper.GenerateUUID()
		if err != nil {
			return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
		}
		docs[i] = chromem.Document{
			ID:        id,
			Content:   chunk.Content,
			Metadata:  chunkMetadata(chunk),
			Embedding: vectors[i],
		}
	}

	log.Info().Str("store", s.name).Int("chunks", len(docs)).Msg("Adding documents to vector database")
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("%w: failed to add documents: %v", apperr.ErrStorage, err)
	}

	s.meta.StoreName = s.name
	s.meta.NumDocuments = s.collection.Count()
	s.meta.Sources = mergeSources(s.meta.Sources, chunks)
	return writeMetadata(s.metadataPath(), s.meta)
}

// Search returns at most k chunks ordered by descending similarity. An empty store
// yields an empty result.
func (s *Store) Search(ctx context.Context, query string, k int) (models.RetrievalResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", apperr.ErrInvalidInput, k)
	}
	n := s.collection.Count()
	if n == 0 {
		return models.RetrievalResult{}, nil
	}
	if k > n {
		k = n
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", apperr.ErrStorage, err)
	}
	results, err := s.collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query by similarity: %v", apperr.ErrStorage, err)
	}

	out := make(models.RetrievalResult, 0, len(results))
	for _, r := range results {
		out = append(out, models.ScoredChunk{Chunk: resultChunk(r), Similarity: r.Similarity})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	log.Debug().Str("store", s.name).Int("k", k).Int("results", len(out)).Msg("Similarity search")
	return out, nil
}

func (s *Store) metadataPath() string {
	return filepath.Join(s.dir, metadataFile)
}

func chunkMetadata(c models.Chunk) map[string]string {
	m := map[string]string{
		metaSource:       c.Source,
		metaDocumentType: string(c.Type),
	}
	if c.Page != nil {
		m[metaPage] = strconv.Itoa(*c.Page)
	}
	return m
}

func resultChunk(r chromem.Result) models.Chunk {
	c := models.Chunk{
		Content: r.Content,
		Source:  r.Metadata[metaSource],
		Type:    models.DocumentType(r.Metadata[metaDocumentType]),
	}
	if c.Source == "" {
		c.Source = "unknown"
	}
	if p, err := strconv.Atoi(r.Metadata[metaPage]); err == nil {
		c.Page = models.IntPtr(p)
	}
	return c
}

func mergeSources(existing []string, chunks []models.Chunk) []string {
	set := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		set[s] = struct{}{}
	}
	for _, c := range chunks {
		set[c.Source] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func readMetadata(path string) (StoreMetadata, error) {
	var meta StoreMetadata
	data, err := os.ReadFile(path)
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("invalid %s: %w", path, err)
	}
	return meta, nil
}

func writeMetadata(path string, meta StoreMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: failed to write metadata: %v", apperr.ErrStorage, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
