package services

import (
	"context"
	"testing"
	"time"

	"avtotest/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveResultIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewResultService(db)
	ticket := models.Ticket{TicketNumber: 1, Title: "Bilet 1"}
	require.NoError(t, db.Create(&ticket).Error)

	selected := "A"
	result := &models.Result{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		TicketID:       ticket.ID,
		Score:          50,
		TotalQuestions: 2,
		CorrectAnswers: 1,
		Answers: []models.AnswerOutcome{
			{QuestionID: uuid.New(), Selected: &selected, Correct: true},
			{QuestionID: uuid.New(), Correct: false},
		},
		TimeSpentSeconds: 12,
		CompletedAt:      time.Now().UTC(),
	}

	require.NoError(t, svc.SaveResult(context.Background(), result))
	require.NoError(t, svc.SaveResult(context.Background(), result))

	var count int64
	require.NoError(t, db.Model(&models.Result{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	results, err := svc.ListUserResults(context.Background(), result.UserID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].Answers, 2)
	assert.Equal(t, "A", *results[0].Answers[0].Selected)
	assert.Nil(t, results[0].Answers[1].Selected)
	require.NotNil(t, results[0].Ticket)
	assert.Equal(t, "Bilet 1", results[0].Ticket.Title)
}

func TestListUserResultsNewestFirst(t *testing.T) {
	db := newTestDB(t)
	svc := NewResultService(db)
	ticket := models.Ticket{TicketNumber: 1, Title: "Bilet 1"}
	require.NoError(t, db.Create(&ticket).Error)

	userID := uuid.New()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, score := range []int{20, 80, 50} {
		require.NoError(t, svc.SaveResult(context.Background(), &models.Result{
			ID: uuid.New(), UserID: userID, TicketID: ticket.ID, Score: score,
			TotalQuestions: 10, Answers: []models.AnswerOutcome{},
			CompletedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, svc.SaveResult(context.Background(), &models.Result{
		ID: uuid.New(), UserID: uuid.New(), TicketID: ticket.ID, Answers: []models.AnswerOutcome{}, CompletedAt: base,
	}))

	results, err := svc.ListUserResults(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 50, results[0].Score)
	assert.Equal(t, 20, results[2].Score)
}
