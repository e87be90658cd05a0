// Package apperr holds the error taxonomy shared by the ingestion, retrieval and generation packages.
package apperr

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrNoContent           = errors.New("no content extracted from document")
	ErrNoDocuments         = errors.New("no documents uploaded yet")
	ErrStoreNotFound       = errors.New("vector store not found")
	ErrStorage             = errors.New("vector store failure")
	ErrService             = errors.New("model service failure")
	ErrParse               = errors.New("failed to parse model output")
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindCollaborator
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindCollaborator:
		return "collaborator"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// KindOf classifies err by the sentinel it wraps.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnsupportedFileType), errors.Is(err, ErrNoContent):
		return KindValidation
	case errors.Is(err, ErrNoDocuments), errors.Is(err, ErrStoreNotFound):
		return KindNotFound
	case errors.Is(err, ErrStorage), errors.Is(err, ErrService):
		return KindCollaborator
	case errors.Is(err, ErrParse):
		return KindParse
	default:
		return KindUnknown
	}
}

func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
