package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"

	"study-assistant/internal/apperr"
	"study-assistant/internal/config"
	"study-assistant/internal/models"
)

// Separators are tried in priority order: paragraph, line, sentence end, word, character.
var Separators = []string{"\n\n", "\n", ".", " ", ""}

type Chunker struct {
	splitter  textsplitter.RecursiveCharacter
	minLength int
}

func NewChunker(cfg config.RAGConfig) *Chunker {
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
			textsplitter.WithSeparators(Separators),
		),
		minLength: cfg.MinChunkLength,
	}
}

// Split cleans each document and splits it into overlapping chunks. Documents and chunks
// shorter than the minimum length are dropped. Zero resulting chunks is an error.
func (c *Chunker) Split(docs []models.RawDocument) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, doc := range docs {
		cleaned := CleanText(doc.Content)
		if utf8.RuneCountInString(cleaned) < c.minLength {
			log.Debug().Str("source", doc.Source).Str("page", models.Chunk{Page: doc.Page}.PageLabel()).Msg("Skipping short document")
			continue
		}

		pieces, err := c.splitter.SplitText(cleaned)
		if err != nil {
			return nil, fmt.Errorf("failed to split %s: %w", doc.Source, err)
		}
		for _, piece := range pieces {
			piece = strings.TrimSpace(piece)
			if utf8.RuneCountInString(piece) < c.minLength {
				continue
			}
			chunks = append(chunks, models.Chunk{
				Content: piece,
				Source:  doc.Source,
				Page:    doc.Page,
				Type:    doc.Type,
			})
		}
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks above %d characters", apperr.ErrNoContent, c.minLength)
	}
	log.Debug().Int("documents", len(docs)).Int("chunks", len(chunks)).Msg("Split documents")
	return chunks, nil
}

// ProcessFile extracts, cleans and chunks a single uploaded file.
func (c *Chunker) ProcessFile(filePath string) ([]models.Chunk, error) {
	docs, err := ExtractDocuments(filePath)
	if err != nil {
		return nil, err
	}
	return c.Split(docs)
}
