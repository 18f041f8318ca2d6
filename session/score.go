package session

import (
	"math"

	"avtotest/models"
)

// Grade is the scored outcome of one attempt.
type Grade struct {
	Correct  int
	Total    int
	Score    int
	Outcomes []models.AnswerOutcome
}

// GradeAnswers compares every question, in the given order, with the answer
// recorded at its position. A missing answer never matches.
func GradeAnswers(questions []models.Question, answers map[int]string) Grade {
	g := Grade{
		Total:    len(questions),
		Outcomes: make([]models.AnswerOutcome, len(questions)),
	}
	for i, q := range questions {
		outcome := models.AnswerOutcome{QuestionID: q.ID}
		if selected, ok := answers[i]; ok {
			s := selected
			outcome.Selected = &s
			outcome.Correct = selected == q.CorrectAnswer
		}
		if outcome.Correct {
			g.Correct++
		}
		g.Outcomes[i] = outcome
	}
	g.Score = Percent(g.Correct, g.Total)
	return g
}

// Percent returns round(100 * correct / total), or 0 for an empty set.
func Percent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}
