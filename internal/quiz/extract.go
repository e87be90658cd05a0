package quiz

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"study-assistant/internal/models"
)

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON recovers the JSON object embedded in free-form model output.
// A ```json fence wins, then the first fence holding braces. The result is
// narrowed to the span from the first '{' to the last '}'.
func ExtractJSON(text string) string {
	if _, after, ok := strings.Cut(text, "```json"); ok {
		text, _, _ = strings.Cut(after, "```")
	} else if strings.Contains(text, "```") {
		parts := strings.Split(text, "```")
		for i := 1; i < len(parts); i += 2 {
			if strings.Contains(parts[i], "{") && strings.Contains(parts[i], "}") {
				text = parts[i]
				break
			}
		}
	}
	if m := jsonObject.FindString(text); m != "" {
		text = m
	}
	return strings.TrimSpace(text)
}

// Parse turns raw model output into a quiz. Metadata is left for the caller.
func Parse(raw string) (*models.Quiz, error) {
	candidate := ExtractJSON(raw)

	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
		return nil, &Error{Kind: KindParse, Reason: err.Error(), Raw: raw}
	}
	rawQuestions, ok := doc["questions"]
	if !ok {
		return nil, &Error{Kind: KindMalformed, Reason: `missing "questions" key`, Raw: raw}
	}
	var questions []models.Question
	if err := json.Unmarshal(rawQuestions, &questions); err != nil {
		return nil, &Error{Kind: KindMalformed, Reason: fmt.Sprintf(`"questions" is not a list of questions: %v`, err), Raw: raw}
	}
	if questions == nil {
		return nil, &Error{Kind: KindMalformed, Reason: `"questions" is not a list`, Raw: raw}
	}
	for i := range questions {
		if err := normalize(&questions[i]); err != nil {
			return nil, &Error{Kind: KindMalformed, Reason: fmt.Sprintf("question %d: %v", i+1, err), Raw: raw}
		}
	}
	return &models.Quiz{Questions: questions}, nil
}

// normalize checks the answer key against the option labels and rewrites it to the matching label.
func normalize(q *models.Question) error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("empty question text")
	}
	if len(q.Options) == 0 {
		return fmt.Errorf("no options")
	}
	seen := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		label := strings.ToUpper(strings.TrimSpace(opt.Label))
		if label == "" {
			return fmt.Errorf("empty option label")
		}
		if _, dup := seen[label]; dup {
			return fmt.Errorf("duplicate option label %q", opt.Label)
		}
		seen[label] = struct{}{}
	}
	answer := strings.ToUpper(strings.TrimSpace(q.CorrectAnswer))
	for _, opt := range q.Options {
		if strings.ToUpper(strings.TrimSpace(opt.Label)) == answer {
			q.CorrectAnswer = opt.Label
			return nil
		}
	}
	return fmt.Errorf("correct_answer %q is not one of the options", q.CorrectAnswer)
}
