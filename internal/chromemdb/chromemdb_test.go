package chromemdb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-assistant/internal/apperr"
	"study-assistant/internal/embedding"
	"study-assistant/internal/models"
)

const testKey = "0123456789abcdef0123456789abcdef"

func testChunks() []models.Chunk {
	return []models.Chunk{
		{Content: "Gradient descent minimizes the cost function by stepping against the gradient.", Source: "ml.txt", Type: models.DocumentTypeText},
		{Content: "Overfitting happens when a model memorizes noise in the training data.", Source: "ml.txt", Type: models.DocumentTypeText},
		{Content: "Mitochondria produce most of the chemical energy in a cell.", Source: "bio.pdf", Page: models.IntPtr(4), Type: models.DocumentTypePDF},
		{Content: "Photosynthesis converts light energy into chemical energy in plants.", Source: "bio.pdf", Page: models.IntPtr(7), Type: models.DocumentTypePDF},
	}
}

func newTestIndexer(t *testing.T) (*Indexer, *embedding.MockEmbedder, string) {
	t.Helper()
	root := t.TempDir()
	m := embedding.NewMockEmbedder(64)
	return NewIndexer(root, m, testKey), m, root
}

func TestCreateWritesStoreAndSidecar(t *testing.T) {
	ix, m, root := newTestIndexer(t)
	chunks := testChunks()

	store, err := ix.Create(context.Background(), chunks, "study")
	require.NoError(t, err)

	assert.Equal(t, len(chunks), store.Count())
	assert.Equal(t, len(chunks), m.Calls(), "one embedding call per chunk")
	meta := store.Metadata()
	assert.Equal(t, len(chunks), meta.NumDocuments)
	assert.Equal(t, []string{"bio.pdf", "ml.txt"}, meta.Sources)
	assert.Equal(t, "study", meta.StoreName)

	onDisk, err := readMetadata(filepath.Join(root, "study", metadataFile))
	require.NoError(t, err)
	assert.Equal(t, meta, onDisk)
}

func TestCreateRejectsEmpty(t *testing.T) {
	ix, _, _ := newTestIndexer(t)
	_, err := ix.Create(context.Background(), nil, "study")
	assert.ErrorIs(t, err, apperr.ErrStorage)
}

func TestCreateReplacesExistingStore(t *testing.T) {
	ix, _, _ := newTestIndexer(t)
	_, err := ix.Create(context.Background(), testChunks(), "study")
	require.NoError(t, err)

	store, err := ix.Create(context.Background(), testChunks()[:1], "study")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Count())
	assert.Equal(t, []string{"ml.txt"}, store.Metadata().Sources)
}

func TestLoadMissingStore(t *testing.T) {
	ix, _, _ := newTestIndexer(t)
	_, err := ix.Load("nope")
	assert.ErrorIs(t, err, apperr.ErrStoreNotFound)
	assert.False(t, ix.Exists("nope"))
}

func TestLoadPersistedStore(t *testing.T) {
	ix, _, _ := newTestIndexer(t)
	_, err := ix.Create(context.Background(), testChunks(), "study")
	require.NoError(t, err)

	loaded, err := ix.Load("study")
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Count())
	assert.Equal(t, []string{"bio.pdf", "ml.txt"}, loaded.Metadata().Sources)

	res, err := loaded.Search(context.Background(), "mitochondria energy cell", 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "bio.pdf", res[0].Chunk.Source)
	require.NotNil(t, res[0].Chunk.Page)
	assert.Equal(t, 4, *res[0].Chunk.Page)
	assert.Equal(t, models.DocumentTypePDF, res[0].Chunk.Type)
}

func TestAddAppendsAndCreatesWhenMissing(t *testing.T) {
	ix, _, _ := newTestIndexer(t)
	chunks := testChunks()

	store, err := ix.Add(context.Background(), chunks[:2], "study")
	require.NoError(t, err)
	assert.Equal(t, 2, store.Count())
	assert.Equal(t, []string{"ml.txt"}, store.Metadata().Sources)

	store, err = ix.Add(context.Background(), chunks[2:], "study")
	require.NoError(t, err)
	assert.Equal(t, 4, store.Count())
	assert.Equal(t, []string{"bio.pdf", "ml.txt"}, store.Metadata().Sources)

	// same content added twice is stored twice; stores are additive only
	store, err = ix.Add(context.Background(), chunks[:1], "study")
	require.NoError(t, err)
	assert.Equal(t, 5, store.Count())
}

func TestSearchOrderingAndBounds(t *testing.T) {
	ix, _, _ := newTestIndexer(t)
	store, err := ix.Create(context.Background(), testChunks(), "study")
	require.NoError(t, err)

	res, err := store.Search(context.Background(), "gradient descent cost function", 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Contains(t, res[0].Chunk.Content, "Gradient descent")
	for i := 1; i < len(res); i++ {
		assert.GreaterOrEqual(t, res[i-1].Similarity, res[i].Similarity)
	}

	res, err = store.Search(context.Background(), "anything", 50)
	require.NoError(t, err)
	assert.Len(t, res, 4, "k larger than the store is clamped")

	_, err = store.Search(context.Background(), "anything", 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestSearchEmptyStore(t *testing.T) {
	ix, _, _ := newTestIndexer(t)
	store, err := ix.open("empty")
	require.NoError(t, err)

	res, err := store.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestEmbeddingFailureIsStorageError(t *testing.T) {
	ix, m, _ := newTestIndexer(t)
	m.FailWith(errors.New("embedding server down"))

	_, err := ix.Create(context.Background(), testChunks(), "study")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrStorage)
	assert.Contains(t, err.Error(), "embedding server down")
}

func TestReset(t *testing.T) {
	ix, _, root := newTestIndexer(t)
	_, err := ix.Create(context.Background(), testChunks(), "study")
	require.NoError(t, err)

	require.NoError(t, ix.Reset("study"))
	_, err = os.Stat(filepath.Join(root, "study"))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, ix.Reset("study"))
}

func TestExportImport(t *testing.T) {
	ix, _, _ := newTestIndexer(t)
	store, err := ix.Create(context.Background(), testChunks(), "study")
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "backup", "study.gob.enc")
	require.NoError(t, store.Export(file))

	require.NoError(t, ix.Reset("study"))
	imported, err := ix.Import(file, "study")
	require.NoError(t, err)
	assert.Equal(t, 4, imported.Count())
	assert.Equal(t, []string{"bio.pdf", "ml.txt"}, imported.Metadata().Sources)
	assert.Equal(t, "study", imported.Metadata().StoreName)

	res, err := imported.Search(context.Background(), "photosynthesis light plants", 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Contains(t, res[0].Chunk.Content, "Photosynthesis")

	_, err = ix.Import(file, "other")
	assert.Error(t, err)
	assert.False(t, ix.Exists("other"))
}

func TestExportRequiresKey(t *testing.T) {
	root := t.TempDir()
	ix := NewIndexer(root, embedding.NewMockEmbedder(16), "")
	store, err := ix.Create(context.Background(), testChunks(), "study")
	require.NoError(t, err)

	err = store.Export(filepath.Join(root, "x.enc"))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}
