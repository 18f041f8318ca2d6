package services

import (
	"context"
	"errors"
	"fmt"

	"avtotest/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TicketService struct {
	db       *gorm.DB
	validate *validator.Validate
}

func NewTicketService(db *gorm.DB) *TicketService {
	// Same tags as gin binding, so imports from files are checked like
	// request bodies.
	validate := validator.New()
	validate.SetTagName("binding")
	return &TicketService{db: db, validate: validate}
}

type TicketSummary struct {
	models.Ticket
	QuestionCount int  `json:"question_count"`
	LastScore     *int `json:"last_score"`
}

type ImportTicketRequest struct {
	TicketNumber int                     `json:"ticket_number" binding:"required,min=1"`
	Title        string                  `json:"title" binding:"required"`
	Questions    []ImportQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}

type ImportQuestionRequest struct {
	QuestionText  string   `json:"question_text" binding:"required"`
	ImageURL      *string  `json:"image_url"`
	Options       []string `json:"options" binding:"required,min=2,dive,required"`
	CorrectAnswer string   `json:"correct_answer" binding:"required"`
	Explanation   *string  `json:"explanation"`
	// OrderNum is optional; a missing value follows the question before it.
	OrderNum      *int     `json:"order_num"`
}

// ListTickets returns every ticket by number, each with the user's most
// recent score on it.
func (s *TicketService) ListTickets(ctx context.Context, userID uuid.UUID) ([]TicketSummary, error) {
	var tickets []models.Ticket
	if err := s.db.WithContext(ctx).Order("ticket_number").Find(&tickets).Error; err != nil {
		return nil, err
	}

	type questionCount struct {
		TicketID uuid.UUID
		Count    int
	}
	var counts []questionCount
	if err := s.db.WithContext(ctx).Model(&models.Question{}).
		Select("ticket_id, COUNT(*) AS count").
		Group("ticket_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	countByTicket := make(map[uuid.UUID]int, len(counts))
	for _, c := range counts {
		countByTicket[c.TicketID] = c.Count
	}

	var results []models.Result
	if err := s.db.WithContext(ctx).
		Select("ticket_id", "score", "completed_at").
		Where("user_id = ?", userID).
		Order("completed_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	lastScore := make(map[uuid.UUID]int, len(results))
	for _, r := range results {
		if _, seen := lastScore[r.TicketID]; !seen {
			lastScore[r.TicketID] = r.Score
		}
	}

	summaries := make([]TicketSummary, len(tickets))
	for i, t := range tickets {
		summaries[i] = TicketSummary{Ticket: t, QuestionCount: countByTicket[t.ID]}
		if score, ok := lastScore[t.ID]; ok {
			score := score
			summaries[i].LastScore = &score
		}
	}
	return summaries, nil
}

// GetTicketQuestions loads a ticket's questions in display order.
func (s *TicketService) GetTicketQuestions(ctx context.Context, ticketID uuid.UUID) ([]models.Question, error) {
	var ticket models.Ticket
	err := s.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.order_num")
		}).
		First(&ticket, "id = ?", ticketID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFoundError("ticket not found")
	}
	if err != nil {
		return nil, err
	}
	return ticket.Questions, nil
}

// ImportTicket replaces the ticket with the given number, and all of its
// questions, in one transaction.
func (s *TicketService) ImportTicket(ctx context.Context, req *ImportTicketRequest) (*models.Ticket, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, &Error{Kind: KindInvalidInput, Message: fmt.Sprintf("ticket %d: %v", req.TicketNumber, err), Err: err}
	}
	for i, q := range req.Questions {
		if !containsString(q.Options, q.CorrectAnswer) {
			return nil, NewInvalidInputError(fmt.Sprintf("ticket %d question %d: correct answer is not one of the options", req.TicketNumber, i+1))
		}
	}
	orders, err := questionOrders(req)
	if err != nil {
		return nil, err
	}

	var ticket models.Ticket
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("ticket_number = ?", req.TicketNumber).First(&ticket).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			ticket = models.Ticket{TicketNumber: req.TicketNumber, Title: req.Title}
			if err := tx.Create(&ticket).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.Model(&ticket).Update("title", req.Title).Error; err != nil {
				return err
			}
			if err := tx.Where("ticket_id = ?", ticket.ID).Delete(&models.Question{}).Error; err != nil {
				return err
			}
		}

		questions := make([]models.Question, len(req.Questions))
		for i, q := range req.Questions {
			questions[i] = models.Question{
				TicketID:      ticket.ID,
				QuestionText:  q.QuestionText,
				ImageURL:      q.ImageURL,
				Options:       q.Options,
				CorrectAnswer: q.CorrectAnswer,
				Explanation:   q.Explanation,
				OrderNum:      orders[i],
			}
		}
		return tx.Omit(clause.Associations).Create(&questions).Error
	})
	if err != nil {
		return nil, err
	}

	ticket.Title = req.Title
	return &ticket, nil
}

// questionOrders resolves the display order of each question. A missing
// order_num is one more than the question before it (the first defaults to
// 1). Two questions may not share an order.
func questionOrders(req *ImportTicketRequest) ([]int, error) {
	orders := make([]int, len(req.Questions))
	seen := make(map[int]int, len(req.Questions))
	for i, q := range req.Questions {
		switch {
		case q.OrderNum != nil:
			orders[i] = *q.OrderNum
		case i == 0:
			orders[i] = 1
		default:
			orders[i] = orders[i-1] + 1
		}
		if prev, dup := seen[orders[i]]; dup {
			return nil, NewInvalidInputError(fmt.Sprintf("ticket %d: questions %d and %d share order %d", req.TicketNumber, prev+1, i+1, orders[i]))
		}
		seen[orders[i]] = i
	}
	return orders, nil
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
