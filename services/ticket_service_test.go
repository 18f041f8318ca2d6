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

func importRequest(number int, questions ...string) *ImportTicketRequest {
	req := &ImportTicketRequest{TicketNumber: number, Title: "Bilet"}
	for i, text := range questions {
		order := len(questions) - i
		req.Questions = append(req.Questions, ImportQuestionRequest{
			QuestionText:  text,
			Options:       []string{"A", "B", "C"},
			CorrectAnswer: "B",
			OrderNum:      &order,
		})
	}
	return req
}

func TestImportTicketAndLoadQuestions(t *testing.T) {
	svc := NewTicketService(newTestDB(t))

	ticket, err := svc.ImportTicket(context.Background(), importRequest(1, "third", "second", "first"))
	require.NoError(t, err)

	questions, err := svc.GetTicketQuestions(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, questions, 3)
	assert.Equal(t, "first", questions[0].QuestionText)
	assert.Equal(t, "third", questions[2].QuestionText)
	assert.Equal(t, []string{"A", "B", "C"}, []string(questions[0].Options))
}

func TestImportTicketReplacesQuestions(t *testing.T) {
	svc := NewTicketService(newTestDB(t))

	first, err := svc.ImportTicket(context.Background(), importRequest(7, "old one", "old two"))
	require.NoError(t, err)

	req := importRequest(7, "new")
	req.Title = "Bilet 7"
	second, err := svc.ImportTicket(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	questions, err := svc.GetTicketQuestions(context.Background(), second.ID)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "new", questions[0].QuestionText)
}

func TestImportTicketRejectsUnknownCorrectAnswer(t *testing.T) {
	svc := NewTicketService(newTestDB(t))

	req := importRequest(1, "q")
	req.Questions[0].CorrectAnswer = "D"
	_, err := svc.ImportTicket(context.Background(), req)
	assert.True(t, IsKind(err, KindInvalidInput))
}

func TestImportTicketValidatesFields(t *testing.T) {
	db := newTestDB(t)
	svc := NewTicketService(db)

	tests := []struct {
		name   string
		mutate func(req *ImportTicketRequest)
	}{
		{"empty title", func(req *ImportTicketRequest) { req.Title = "" }},
		{"missing ticket number", func(req *ImportTicketRequest) { req.TicketNumber = 0 }},
		{"no questions", func(req *ImportTicketRequest) { req.Questions = nil }},
		{"empty question text", func(req *ImportTicketRequest) { req.Questions[0].QuestionText = "" }},
		{"single option", func(req *ImportTicketRequest) {
			req.Questions[0].Options = []string{"only"}
			req.Questions[0].CorrectAnswer = "only"
		}},
		{"empty option", func(req *ImportTicketRequest) {
			req.Questions[0].Options = []string{"B", ""}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := importRequest(1, "q")
			tt.mutate(req)

			_, err := svc.ImportTicket(context.Background(), req)
			assert.True(t, IsKind(err, KindInvalidInput), "got %v", err)
		})
	}

	var count int64
	require.NoError(t, db.Model(&models.Ticket{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestImportTicketQuestionOrder(t *testing.T) {
	svc := NewTicketService(newTestDB(t))
	zero, five := 0, 5

	req := importRequest(1, "first", "second", "third", "fourth")
	req.Questions[0].OrderNum = &zero
	req.Questions[1].OrderNum = nil
	req.Questions[2].OrderNum = &five
	req.Questions[3].OrderNum = nil

	ticket, err := svc.ImportTicket(context.Background(), req)
	require.NoError(t, err)

	questions, err := svc.GetTicketQuestions(context.Background(), ticket.ID)
	require.NoError(t, err)
	orders := make([]int, len(questions))
	for i, q := range questions {
		orders[i] = q.OrderNum
	}
	assert.Equal(t, []int{0, 1, 5, 6}, orders)
	assert.Equal(t, "fourth", questions[3].QuestionText)
}

func TestImportTicketRejectsSharedOrder(t *testing.T) {
	svc := NewTicketService(newTestDB(t))
	two := 2

	req := importRequest(1, "a", "b", "c")
	req.Questions[0].OrderNum = nil
	req.Questions[1].OrderNum = nil
	req.Questions[2].OrderNum = &two

	_, err := svc.ImportTicket(context.Background(), req)
	assert.True(t, IsKind(err, KindInvalidInput))
}

func TestGetTicketQuestionsUnknownTicket(t *testing.T) {
	svc := NewTicketService(newTestDB(t))

	_, err := svc.GetTicketQuestions(context.Background(), uuid.New())
	assert.True(t, IsKind(err, KindNotFound))
}

func TestListTicketsWithLastScore(t *testing.T) {
	db := newTestDB(t)
	svc := NewTicketService(db)
	results := NewResultService(db)
	ctx := context.Background()

	second, err := svc.ImportTicket(ctx, importRequest(2, "a", "b"))
	require.NoError(t, err)
	first, err := svc.ImportTicket(ctx, importRequest(1, "a", "b", "c"))
	require.NoError(t, err)

	userID := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, score := range []int{33, 100} {
		require.NoError(t, results.SaveResult(ctx, &models.Result{
			ID: uuid.New(), UserID: userID, TicketID: first.ID, Score: score,
			TotalQuestions: 3, Answers: []models.AnswerOutcome{},
			CompletedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	// Another user's attempt is not the caller's last score.
	require.NoError(t, results.SaveResult(ctx, &models.Result{
		ID: uuid.New(), UserID: uuid.New(), TicketID: second.ID, Score: 50,
		Answers: []models.AnswerOutcome{}, CompletedAt: base,
	}))

	tickets, err := svc.ListTickets(ctx, userID)
	require.NoError(t, err)
	require.Len(t, tickets, 2)

	assert.Equal(t, 1, tickets[0].TicketNumber)
	assert.Equal(t, 3, tickets[0].QuestionCount)
	require.NotNil(t, tickets[0].LastScore)
	assert.Equal(t, 100, *tickets[0].LastScore)

	assert.Equal(t, 2, tickets[1].TicketNumber)
	assert.Equal(t, 2, tickets[1].QuestionCount)
	assert.Nil(t, tickets[1].LastScore)
}
