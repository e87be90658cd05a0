package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"study-assistant/internal/apperr"
	"study-assistant/internal/models"
)

// ValidateExtension is the upload boundary: only .pdf and .txt files are accepted.
func ValidateExtension(filename string) (models.DocumentType, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return models.DocumentTypePDF, nil
	case ".txt":
		return models.DocumentTypeText, nil
	default:
		return "", fmt.Errorf("%w: %q, only .pdf and .txt are supported", apperr.ErrUnsupportedFileType, ext)
	}
}

// ExtractDocuments reads the file at filePath into raw documents, one per PDF page
// or a single one for plain text.
func ExtractDocuments(filePath string) ([]models.RawDocument, error) {
	docType, err := ValidateExtension(filePath)
	if err != nil {
		return nil, err
	}

	var docs []models.RawDocument
	switch docType {
	case models.DocumentTypePDF:
		docs, err = parsePDF(filePath)
	case models.DocumentTypeText:
		docs, err = parseText(filePath)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrNoContent, filepath.Base(filePath), err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", apperr.ErrNoContent, filepath.Base(filePath))
	}
	return docs, nil
}

func parsePDF(filePath string) ([]models.RawDocument, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	source := filepath.Base(filePath)
	numPages := reader.NumPage()
	var docs []models.RawDocument
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		docs = append(docs, models.RawDocument{
			Content: pageText,
			Source:  source,
			Page:    models.IntPtr(i),
			Type:    models.DocumentTypePDF,
		})
	}
	log.Debug().Str("source", source).Int("pages", numPages).Int("extracted", len(docs)).Msg("Extracted PDF")
	return docs, nil
}

func parseText(filePath string) ([]models.RawDocument, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	source := filepath.Base(filePath)
	log.Debug().Str("source", source).Int("chars", len(data)).Msg("Read text file")
	return []models.RawDocument{{
		Content: string(data),
		Source:  source,
		Type:    models.DocumentTypeText,
	}}, nil
}

// CleanText strips control characters, collapses whitespace runs to single spaces and trims.
func CleanText(text string) string {
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(text), " ")
}
