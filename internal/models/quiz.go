package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Option is one labelled choice of a multiple-choice question.
type Option struct {
	Label string
	Text  string
}

// Options keeps presentation order. It encodes as a JSON object whose key order is preserved.
type Options []Option

func (o Options) Get(label string) (string, bool) {
	for _, opt := range o {
		if opt.Label == label {
			return opt.Text, true
		}
	}
	return "", false
}

func (o Options) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, opt := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(opt.Label)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(opt.Text)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *Options) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("options must be a JSON object, got %v", tok)
	}
	var out Options
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		label := tok.(string)
		var value any
		if err := dec.Decode(&value); err != nil {
			return err
		}
		text, ok := value.(string)
		if !ok {
			text = fmt.Sprint(value)
		}
		out = append(out, Option{Label: label, Text: text})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = out
	return nil
}

type Question struct {
	Question      string  `json:"question"`
	Options       Options `json:"options"`
	CorrectAnswer string  `json:"correct_answer"`
	Explanation   string  `json:"explanation"`
}

type QuizMetadata struct {
	Topic        string     `json:"topic"`
	Difficulty   Difficulty `json:"difficulty"`
	NumQuestions int        `json:"num_questions"`
	Sources      []string   `json:"sources"`
}

type Quiz struct {
	Questions []Question   `json:"questions"`
	Metadata  QuizMetadata `json:"metadata"`
}

type QuestionResult struct {
	QuestionNumber int    `json:"question_number"`
	Question       string `json:"question"`
	UserAnswer     string `json:"user_answer"`
	CorrectAnswer  string `json:"correct_answer"`
	IsCorrect      bool   `json:"is_correct"`
	Explanation    string `json:"explanation"`
}

type GradingResult struct {
	Score      float64          `json:"score"`
	Correct    int              `json:"correct"`
	Total      int              `json:"total"`
	Percentage string           `json:"percentage"`
	Results    []QuestionResult `json:"results"`
}
