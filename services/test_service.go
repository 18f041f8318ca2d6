package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"avtotest/models"
	"avtotest/session"

	"github.com/google/uuid"
)

type QuestionSource interface {
	GetTicketQuestions(ctx context.Context, ticketID uuid.UUID) ([]models.Question, error)
}

type ResultDispatcher interface {
	Enqueue(result *models.Result)
}

type StartTestRequest struct {
	TicketID uuid.UUID `json:"ticket_id" binding:"required"`
}

type AnswerRequest struct {
	Option string `json:"option" binding:"required"`
}

// TestService runs each user's test session against the session store.
// Calls for the same user are serialized.
type TestService struct {
	questions QuestionSource
	store     SessionStore
	results   ResultDispatcher
	now       func() time.Time

	locksMu sync.Mutex
	locks   map[uuid.UUID]*userLock
}

// userLock serializes one user's calls. refs counts holders and waiters so
// the entry can be dropped when nobody needs it.
type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewTestService(questions QuestionSource, store SessionStore, results ResultDispatcher) *TestService {
	return &TestService{
		questions: questions,
		store:     store,
		results:   results,
		now:       func() time.Time { return time.Now().UTC() },
		locks:     make(map[uuid.UUID]*userLock),
	}
}

func (s *TestService) GetSession(ctx context.Context, userID uuid.UUID) (*session.View, error) {
	unlock := s.lock(userID)
	defer unlock()

	sess, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := sess.View()
	return &view, nil
}

func (s *TestService) Start(ctx context.Context, userID uuid.UUID, req *StartTestRequest) (*session.View, error) {
	// Load questions before taking the lock; they are immutable.
	questions, err := s.questions.GetTicketQuestions(ctx, req.TicketID)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, userID, func(sess *session.Session) error {
		return sess.Start(req.TicketID, questions, s.now())
	})
}

func (s *TestService) Answer(ctx context.Context, userID uuid.UUID, req *AnswerRequest) (*session.View, error) {
	return s.mutate(ctx, userID, func(sess *session.Session) error {
		return sess.Select(req.Option)
	})
}

func (s *TestService) Next(ctx context.Context, userID uuid.UUID) (*session.View, error) {
	return s.mutate(ctx, userID, (*session.Session).Next)
}

func (s *TestService) Prev(ctx context.Context, userID uuid.UUID) (*session.View, error) {
	return s.mutate(ctx, userID, (*session.Session).Prev)
}

// Finish grades the attempt and returns the review at once. Storing the
// result happens in the background; the review reports it as unsynced until
// the write is confirmed.
func (s *TestService) Finish(ctx context.Context, userID uuid.UUID) (*session.View, error) {
	var result *models.Result
	view, err := s.mutate(ctx, userID, func(sess *session.Session) error {
		var err error
		result, err = sess.Finish(s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("User %s finished ticket %s: %d/%d correct, score %d", userID, result.TicketID, result.CorrectAnswers, result.TotalQuestions, result.Score)
	s.results.Enqueue(result)
	return view, nil
}

func (s *TestService) Reset(ctx context.Context, userID uuid.UUID) (*session.View, error) {
	unlock := s.lock(userID)
	defer unlock()

	if err := s.store.Delete(ctx, userID); err != nil {
		return nil, err
	}
	view := session.New(userID).View()
	return &view, nil
}

// MarkResultSynced flags the review of a stored result as synced, if the
// user is still looking at it.
func (s *TestService) MarkResultSynced(ctx context.Context, result *models.Result) error {
	unlock := s.lock(result.UserID)
	defer unlock()

	sess, err := s.store.Load(ctx, result.UserID)
	if err != nil || sess == nil {
		return err
	}
	if !sess.MarkSynced(result.ID) {
		return nil
	}
	return s.store.Save(ctx, sess)
}

func (s *TestService) mutate(ctx context.Context, userID uuid.UUID, fn func(*session.Session) error) (*session.View, error) {
	unlock := s.lock(userID)
	defer unlock()

	sess, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, sessionError(err)
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	view := sess.View()
	return &view, nil
}

func (s *TestService) load(ctx context.Context, userID uuid.UUID) (*session.Session, error) {
	sess, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		sess = session.New(userID)
	}
	return sess, nil
}

func (s *TestService) lock(userID uuid.UUID) func() {
	s.locksMu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, userID)
		}
		s.locksMu.Unlock()
	}
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrWrongPhase), errors.Is(err, session.ErrFinishNotAllowed):
		return NewInvalidStateError(err.Error())
	case errors.Is(err, session.ErrNoQuestions), errors.Is(err, session.ErrUnknownOption):
		return NewInvalidInputError(err.Error())
	}
	return err
}
