package quiz

import (
	"fmt"
	"math"
	"strings"

	"study-assistant/internal/models"
)

// Grade scores answers, keyed by zero-based question index, against the quiz answer key.
// A missing answer counts as incorrect.
func Grade(questions []models.Question, answers map[int]string) models.GradingResult {
	results := make([]models.QuestionResult, 0, len(questions))
	correct := 0
	for i, q := range questions {
		answer, ok := answers[i]
		if !ok {
			answer = models.NotAnswered
		}
		isCorrect := ok && strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.CorrectAnswer))
		if isCorrect {
			correct++
		}
		results = append(results, models.QuestionResult{
			QuestionNumber: i + 1,
			Question:       q.Question,
			UserAnswer:     answer,
			CorrectAnswer:  q.CorrectAnswer,
			IsCorrect:      isCorrect,
			Explanation:    q.Explanation,
		})
	}

	var score float64
	if len(questions) > 0 {
		score = math.Round(1000*float64(correct)/float64(len(questions))) / 10
	}
	return models.GradingResult{
		Score:      score,
		Correct:    correct,
		Total:      len(questions),
		Percentage: fmt.Sprintf("%.1f%%", score),
		Results:    results,
	}
}
