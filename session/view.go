package session

import (
	"avtotest/models"

	"github.com/google/uuid"
)

// QuestionView is a question as the client may see it. CorrectAnswer,
// Explanation and Correct are only filled in during review.
type QuestionView struct {
	ID            uuid.UUID `json:"id"`
	Position      int       `json:"position"`
	QuestionText  string    `json:"question_text"`
	ImageURL      *string   `json:"image_url"`
	Options       []string  `json:"options"`
	Selected      *string   `json:"selected"`
	CorrectAnswer *string   `json:"correct_answer,omitempty"`
	Explanation   *string   `json:"explanation,omitempty"`
	Correct       *bool     `json:"correct,omitempty"`
}

type Review struct {
	Result    *models.Result `json:"result"`
	Synced    bool           `json:"synced"`
	Questions []QuestionView `json:"questions"`
}

type View struct {
	Phase     Phase         `json:"phase"`
	TicketID  *uuid.UUID    `json:"ticket_id,omitempty"`
	Current   int           `json:"current"`
	Total     int           `json:"total"`
	Answered  int           `json:"answered"`
	CanFinish bool          `json:"can_finish"`
	Question  *QuestionView `json:"question,omitempty"`
	Review    *Review       `json:"review,omitempty"`
}

func (s *Session) View() View {
	v := View{Phase: s.Phase}
	if s.Phase == Browsing {
		return v
	}

	ticketID := s.TicketID
	v.TicketID = &ticketID
	v.Current = s.Current
	v.Total = len(s.Questions)
	v.Answered = len(s.Answers)
	v.CanFinish = s.CanFinish()

	switch s.Phase {
	case InProgress:
		q := s.questionView(s.Current, false)
		v.Question = &q
	case Reviewing:
		review := &Review{
			Result:    s.Result,
			Synced:    s.Synced,
			Questions: make([]QuestionView, len(s.Questions)),
		}
		for i := range s.Questions {
			review.Questions[i] = s.questionView(i, true)
		}
		v.Review = review
	}
	return v
}

func (s *Session) questionView(i int, reveal bool) QuestionView {
	q := s.Questions[i]
	qv := QuestionView{
		ID:           q.ID,
		Position:     i,
		QuestionText: q.QuestionText,
		ImageURL:     q.ImageURL,
		Options:      append([]string(nil), q.Options...),
	}
	if selected, ok := s.Answers[i]; ok {
		sel := selected
		qv.Selected = &sel
	}
	if reveal {
		correctAnswer := q.CorrectAnswer
		correct := qv.Selected != nil && *qv.Selected == q.CorrectAnswer
		qv.CorrectAnswer = &correctAnswer
		qv.Explanation = q.Explanation
		qv.Correct = &correct
	}
	return qv
}
