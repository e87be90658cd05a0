package models

import (
	"fmt"

	"study-assistant/internal/apperr"
)

type SummaryStyle string

const (
	SummaryShort    SummaryStyle = "short"
	SummaryBullets  SummaryStyle = "bullets"
	SummaryDetailed SummaryStyle = "detailed"
	SummaryELI15    SummaryStyle = "eli15"
)

func ParseSummaryStyle(s string) (SummaryStyle, error) {
	switch st := SummaryStyle(s); st {
	case SummaryShort, SummaryBullets, SummaryDetailed, SummaryELI15:
		return st, nil
	case "":
		return SummaryBullets, nil
	default:
		return "", fmt.Errorf("%w: unknown summary style %q (want short, bullets, detailed or eli15)", apperr.ErrInvalidInput, s)
	}
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(s); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	case "":
		return DifficultyMedium, nil
	default:
		return "", fmt.Errorf("%w: unknown difficulty %q (want easy, medium or hard)", apperr.ErrInvalidInput, s)
	}
}

// SourceRef cites a chunk used to produce an answer.
type SourceRef struct {
	Source  string `json:"source"`
	Page    string `json:"page"`
	Excerpt string `json:"excerpt"`
}

type Answer struct {
	Answer  string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
}

type Summary struct {
	Summary string   `json:"summary"`
	Sources []string `json:"sources"`
}

type Definitions struct {
	Definitions string   `json:"definitions"`
	Sources     []string `json:"sources"`
}
