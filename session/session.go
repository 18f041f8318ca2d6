// Package session holds the test-taking state machine: a user browses
// tickets, answers a ticket's questions one at a time, then reviews the
// graded attempt. It does no I/O; callers load and store sessions.
package session

import (
	"errors"
	"math"
	"sort"
	"time"

	"avtotest/models"

	"github.com/google/uuid"
)

type Phase string

const (
	Browsing   Phase = "browsing"
	InProgress Phase = "in_progress"
	Reviewing  Phase = "reviewing"
)

var (
	ErrWrongPhase       = errors.New("operation not allowed in the current test phase")
	ErrNoQuestions      = errors.New("ticket has no questions")
	ErrUnknownOption    = errors.New("option is not offered by the current question")
	ErrFinishNotAllowed = errors.New("test can only be finished from the last question after answering at least one question")
)

// Session is one user's test-taking state. Answers is keyed by the 0-based
// position of the question within Questions.
type Session struct {
	UserID    uuid.UUID         `json:"user_id"`
	Phase     Phase             `json:"phase"`
	TicketID  uuid.UUID         `json:"ticket_id"`
	Questions []models.Question `json:"questions,omitempty"`
	Current   int               `json:"current"`
	Answers   map[int]string    `json:"answers,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	Result    *models.Result    `json:"result,omitempty"`
	Synced    bool              `json:"synced"`
}

func New(userID uuid.UUID) *Session {
	return &Session{
		UserID:  userID,
		Phase:   Browsing,
		Answers: map[int]string{},
	}
}

// Start opens a ticket. Questions are shown in ascending order_num.
func (s *Session) Start(ticketID uuid.UUID, questions []models.Question, now time.Time) error {
	if s.Phase != Browsing {
		return ErrWrongPhase
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	ordered := make([]models.Question, len(questions))
	copy(ordered, questions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OrderNum < ordered[j].OrderNum
	})

	s.Phase = InProgress
	s.TicketID = ticketID
	s.Questions = ordered
	s.Current = 0
	s.Answers = map[int]string{}
	s.StartedAt = now
	s.Result = nil
	s.Synced = false
	return nil
}

// Select records option as the answer to the current question, replacing
// any earlier choice for that question.
func (s *Session) Select(option string) error {
	if s.Phase != InProgress {
		return ErrWrongPhase
	}
	if !s.Questions[s.Current].HasOption(option) {
		return ErrUnknownOption
	}
	if s.Answers == nil {
		s.Answers = map[int]string{}
	}
	s.Answers[s.Current] = option
	return nil
}

func (s *Session) Next() error {
	if s.Phase != InProgress {
		return ErrWrongPhase
	}
	if s.Current < len(s.Questions)-1 {
		s.Current++
	}
	return nil
}

func (s *Session) Prev() error {
	if s.Phase != InProgress {
		return ErrWrongPhase
	}
	if s.Current > 0 {
		s.Current--
	}
	return nil
}

func (s *Session) OnLastQuestion() bool {
	return s.Phase == InProgress && s.Current == len(s.Questions)-1
}

// CanFinish mirrors the finish button: enabled on the last question once
// any question has been answered. Unanswered questions grade as incorrect.
func (s *Session) CanFinish() bool {
	return s.OnLastQuestion() && len(s.Answers) > 0
}

// Finish grades the attempt, builds its Result and moves to Reviewing. The
// Result is not yet stored; Synced stays false until the caller confirms a
// durable write with MarkSynced.
func (s *Session) Finish(now time.Time) (*models.Result, error) {
	if s.Phase != InProgress {
		return nil, ErrWrongPhase
	}
	if !s.CanFinish() {
		return nil, ErrFinishNotAllowed
	}

	grade := GradeAnswers(s.Questions, s.Answers)
	result := &models.Result{
		ID:               uuid.New(),
		UserID:           s.UserID,
		TicketID:         s.TicketID,
		Score:            grade.Score,
		TotalQuestions:   grade.Total,
		CorrectAnswers:   grade.Correct,
		Answers:          grade.Outcomes,
		TimeSpentSeconds: elapsedSeconds(s.StartedAt, now),
		CompletedAt:      now,
	}

	s.Phase = Reviewing
	s.Result = result
	s.Synced = false
	return result, nil
}

// MarkSynced records that resultID is durably stored. It reports false when
// the session has moved on to another attempt.
func (s *Session) MarkSynced(resultID uuid.UUID) bool {
	if s.Phase != Reviewing || s.Result == nil || s.Result.ID != resultID {
		return false
	}
	s.Synced = true
	return true
}

// Reset discards the attempt and returns to the ticket list.
func (s *Session) Reset() {
	s.Phase = Browsing
	s.TicketID = uuid.Nil
	s.Questions = nil
	s.Current = 0
	s.Answers = map[int]string{}
	s.StartedAt = time.Time{}
	s.Result = nil
	s.Synced = false
}

func elapsedSeconds(start, end time.Time) int {
	if start.IsZero() || end.Before(start) {
		return 0
	}
	return int(math.Round(end.Sub(start).Seconds()))
}
