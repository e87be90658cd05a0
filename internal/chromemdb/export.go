package chromemdb

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"study-assistant/internal/apperr"
	"study-assistant/internal/embedding"
	"study-assistant/internal/helper"
)

const sidecarSuffix = ".meta.json"

// Export writes the collection to a single encrypted file, with the sidecar next to it.
func (s *Store) Export(filePath string) error {
	if err := checkKey(s.encryptionKey); err != nil {
		return err
	}
	if filePath == "" {
		return fmt.Errorf("%w: export path is required", apperr.ErrInvalidInput)
	}
	if err := helper.CreateFolder(filepath.Dir(filePath)); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}

	log.Debug().Str("store", s.name).Str("file", filePath).Bool("compress", compress).Msg("Exporting collection")
	if err := s.db.ExportToFile(filePath, compress, s.encryptionKey, s.name); err != nil {
		return fmt.Errorf("%w: failed to export database: %v", apperr.ErrStorage, err)
	}
	return writeMetadata(filePath+sidecarSuffix, s.Metadata())
}

// Import replaces the named store with the collection of the same name from an exported file.
func (ix *Indexer) Import(filePath, name string) (*Store, error) {
	if err := checkKey(ix.encryptionKey); err != nil {
		return nil, err
	}
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	if err := ix.Reset(name); err != nil {
		return nil, err
	}

	dir := ix.storeDir(name)
	if err := helper.CreateFolder(dir); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	db, err := chromem.NewPersistentDB(filepath.Join(dir, dbDirName), compress)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", apperr.ErrStorage, err)
	}
	if err := db.ImportFromFile(filePath, ix.encryptionKey, name); err != nil {
		_ = ix.Reset(name)
		return nil, fmt.Errorf("%w: failed to import database: %v", apperr.ErrStorage, err)
	}

	c := db.GetCollection(name, embedding.EmbeddingFunc(ix.embedder))
	if c == nil {
		_ = ix.Reset(name)
		return nil, fmt.Errorf("%w: collection %q not found in %s", apperr.ErrStoreNotFound, name, filePath)
	}

	meta, err := readMetadata(filePath + sidecarSuffix)
	if err != nil {
		log.Warn().Err(err).Str("file", filePath).Msg("No sidecar next to export, sources unknown")
	}
	meta.StoreName = name
	meta.NumDocuments = c.Count()
	store := &Store{
		name:          name,
		dir:           dir,
		db:            db,
		collection:    c,
		embedder:      ix.embedder,
		meta:          meta,
		encryptionKey: ix.encryptionKey,
	}
	if err := writeMetadata(store.metadataPath(), meta); err != nil {
		return nil, err
	}
	log.Info().Str("store", name).Str("file", filePath).Int("chunks", meta.NumDocuments).Msg("Imported collection")
	return store, nil
}

func checkKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: encryption key is required", apperr.ErrInvalidInput)
	}
	if len(key) != 32 {
		return fmt.Errorf("%w: encryption key must be 32 bytes", apperr.ErrInvalidInput)
	}
	return nil
}
