package models

import (
	"fmt"
	"strconv"
)

type DocumentType string

const (
	DocumentTypePDF  DocumentType = "pdf"
	DocumentTypeText DocumentType = "text"
)

// RawDocument is extracted text before cleanup and splitting. PDFs yield one per page.
type RawDocument struct {
	Content string
	Source  string
	Page    *int
	Type    DocumentType
}

// Chunk is the unit of retrieval. Chunks are immutable once created.
type Chunk struct {
	Content string       `json:"content"`
	Source  string       `json:"source"`
	Page    *int         `json:"page,omitempty"`
	Type    DocumentType `json:"document_type"`
}

// PageLabel renders the page for prompt tags, "N/A" for unpaginated sources.
func (c Chunk) PageLabel() string {
	if c.Page == nil {
		return "N/A"
	}
	return strconv.Itoa(*c.Page)
}

// SourceTag is the provenance prefix placed in front of answer context.
func (c Chunk) SourceTag() string {
	return fmt.Sprintf("[Source: %s, Page: %s]", c.Source, c.PageLabel())
}

// ScoredChunk pairs a chunk with its similarity to the query.
type ScoredChunk struct {
	Chunk      Chunk
	Similarity float32
}

// RetrievalResult is ordered by descending similarity.
type RetrievalResult []ScoredChunk

func (r RetrievalResult) Chunks() []Chunk {
	out := make([]Chunk, len(r))
	for i, sc := range r {
		out[i] = sc.Chunk
	}
	return out
}

// Sources returns distinct source names in first-seen order, at most limit (0 means all).
func (r RetrievalResult) Sources(limit int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, sc := range r {
		if _, ok := seen[sc.Chunk.Source]; ok {
			continue
		}
		seen[sc.Chunk.Source] = struct{}{}
		out = append(out, sc.Chunk.Source)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func IntPtr(i int) *int {
	return &i
}
