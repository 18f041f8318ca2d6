package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"avtotest/models"
	"avtotest/session"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSessionStore round-trips sessions through JSON, as the Redis store does.
type memSessionStore struct {
	mu   sync.Mutex
	data map[uuid.UUID][]byte
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{data: map[uuid.UUID][]byte{}}
}

func (m *memSessionStore) Load(ctx context.Context, userID uuid.UUID) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[userID]
	if !ok {
		return nil, nil
	}
	var sess session.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (m *memSessionStore) Save(ctx context.Context, sess *session.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[sess.UserID] = raw
	m.mu.Unlock()
	return nil
}

func (m *memSessionStore) Delete(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	delete(m.data, userID)
	m.mu.Unlock()
	return nil
}

type stubQuestions map[uuid.UUID][]models.Question

func (s stubQuestions) GetTicketQuestions(ctx context.Context, ticketID uuid.UUID) ([]models.Question, error) {
	qs, ok := s[ticketID]
	if !ok {
		return nil, NewNotFoundError("ticket not found")
	}
	return qs, nil
}

type recordingDispatcher struct {
	results []*models.Result
}

func (d *recordingDispatcher) Enqueue(result *models.Result) {
	d.results = append(d.results, result)
}

type testServiceFixture struct {
	svc      *TestService
	store    *memSessionStore
	results  *recordingDispatcher
	ticketID uuid.UUID
	userID   uuid.UUID
	clock    time.Time
}

func newTestServiceFixture(t *testing.T) *testServiceFixture {
	t.Helper()
	ticketID := uuid.New()
	questions := stubQuestions{
		ticketID: {
			{ID: uuid.New(), TicketID: ticketID, QuestionText: "Q3", Options: []string{"C", "X"}, CorrectAnswer: "C", OrderNum: 3},
			{ID: uuid.New(), TicketID: ticketID, QuestionText: "Q1", Options: []string{"A", "X"}, CorrectAnswer: "A", OrderNum: 1},
			{ID: uuid.New(), TicketID: ticketID, QuestionText: "Q2", Options: []string{"B", "X"}, CorrectAnswer: "B", OrderNum: 2},
		},
		uuid.Nil: {},
	}

	f := &testServiceFixture{
		store:    newMemSessionStore(),
		results:  &recordingDispatcher{},
		ticketID: ticketID,
		userID:   uuid.New(),
		clock:    time.Unix(1000, 0).UTC(),
	}
	f.svc = NewTestService(questions, f.store, f.results)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func TestTestSessionFullAttempt(t *testing.T) {
	f := newTestServiceFixture(t)
	ctx := context.Background()

	view, err := f.svc.Start(ctx, f.userID, &StartTestRequest{TicketID: f.ticketID})
	require.NoError(t, err)
	assert.Equal(t, session.InProgress, view.Phase)
	assert.Equal(t, "Q1", view.Question.QuestionText)
	assert.Nil(t, view.Question.CorrectAnswer)

	_, err = f.svc.Answer(ctx, f.userID, &AnswerRequest{Option: "A"})
	require.NoError(t, err)
	_, err = f.svc.Next(ctx, f.userID)
	require.NoError(t, err)
	_, err = f.svc.Answer(ctx, f.userID, &AnswerRequest{Option: "X"})
	require.NoError(t, err)
	_, err = f.svc.Next(ctx, f.userID)
	require.NoError(t, err)
	view, err = f.svc.Answer(ctx, f.userID, &AnswerRequest{Option: "C"})
	require.NoError(t, err)
	assert.True(t, view.CanFinish)

	f.clock = f.clock.Add(42600 * time.Millisecond)
	view, err = f.svc.Finish(ctx, f.userID)
	require.NoError(t, err)
	require.Equal(t, session.Reviewing, view.Phase)
	require.NotNil(t, view.Review)
	assert.False(t, view.Review.Synced)
	assert.Equal(t, 67, view.Review.Result.Score)
	assert.Equal(t, 43, view.Review.Result.TimeSpentSeconds)
	require.Len(t, view.Review.Questions, 3)
	assert.Equal(t, "B", *view.Review.Questions[1].CorrectAnswer)

	require.Len(t, f.results.results, 1)
	result := f.results.results[0]
	assert.Equal(t, f.userID, result.UserID)
	assert.Equal(t, f.ticketID, result.TicketID)
	assert.Equal(t, 2, result.CorrectAnswers)
	assert.Equal(t, 3, result.TotalQuestions)

	require.NoError(t, f.svc.MarkResultSynced(ctx, result))
	view, err = f.svc.GetSession(ctx, f.userID)
	require.NoError(t, err)
	assert.True(t, view.Review.Synced)
}

func TestTestSessionRejections(t *testing.T) {
	f := newTestServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, f.userID, &StartTestRequest{TicketID: uuid.New()})
	assert.True(t, IsKind(err, KindNotFound))

	_, err = f.svc.Start(ctx, f.userID, &StartTestRequest{TicketID: uuid.Nil})
	assert.True(t, IsKind(err, KindInvalidInput))

	_, err = f.svc.Answer(ctx, f.userID, &AnswerRequest{Option: "A"})
	assert.True(t, IsKind(err, KindInvalidState))

	_, err = f.svc.Start(ctx, f.userID, &StartTestRequest{TicketID: f.ticketID})
	require.NoError(t, err)
	_, err = f.svc.Start(ctx, f.userID, &StartTestRequest{TicketID: f.ticketID})
	assert.True(t, IsKind(err, KindInvalidState))

	_, err = f.svc.Answer(ctx, f.userID, &AnswerRequest{Option: "Z"})
	assert.True(t, IsKind(err, KindInvalidInput))

	// Not on the last question yet.
	_, err = f.svc.Answer(ctx, f.userID, &AnswerRequest{Option: "A"})
	require.NoError(t, err)
	_, err = f.svc.Finish(ctx, f.userID)
	assert.True(t, IsKind(err, KindInvalidState))
	assert.Empty(t, f.results.results)
}

func TestTestSessionFinishNeedsAnAnswer(t *testing.T) {
	f := newTestServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, f.userID, &StartTestRequest{TicketID: f.ticketID})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = f.svc.Next(ctx, f.userID)
		require.NoError(t, err)
	}

	view, err := f.svc.GetSession(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Current)
	assert.False(t, view.CanFinish)

	_, err = f.svc.Finish(ctx, f.userID)
	assert.True(t, IsKind(err, KindInvalidState))
	assert.Empty(t, f.results.results)
}

func TestTestSessionReset(t *testing.T) {
	f := newTestServiceFixture(t)
	ctx := context.Background()

	view, err := f.svc.GetSession(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, session.Browsing, view.Phase)

	_, err = f.svc.Start(ctx, f.userID, &StartTestRequest{TicketID: f.ticketID})
	require.NoError(t, err)

	view, err = f.svc.Reset(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, session.Browsing, view.Phase)

	stored, err := f.store.Load(ctx, f.userID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	_, err = f.svc.Start(ctx, f.userID, &StartTestRequest{TicketID: f.ticketID})
	assert.NoError(t, err)
}

func TestMarkResultSyncedIgnoresOtherAttempts(t *testing.T) {
	f := newTestServiceFixture(t)
	ctx := context.Background()

	// No session at all.
	require.NoError(t, f.svc.MarkResultSynced(ctx, &models.Result{ID: uuid.New(), UserID: f.userID}))

	_, err := f.svc.Start(ctx, f.userID, &StartTestRequest{TicketID: f.ticketID})
	require.NoError(t, err)
	require.NoError(t, f.svc.MarkResultSynced(ctx, &models.Result{ID: uuid.New(), UserID: f.userID}))

	view, err := f.svc.GetSession(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, session.InProgress, view.Phase)
}

func TestTestSessionConcurrentAnswers(t *testing.T) {
	f := newTestServiceFixture(t)
	ctx := context.Background()
	_, err := f.svc.Start(ctx, f.userID, &StartTestRequest{TicketID: f.ticketID})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			option := "A"
			if i%2 == 0 {
				option = "X"
			}
			_, err := f.svc.Answer(ctx, f.userID, &AnswerRequest{Option: option})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	view, err := f.svc.GetSession(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Answered)

	f.svc.locksMu.Lock()
	defer f.svc.locksMu.Unlock()
	assert.Empty(t, f.svc.locks)
}

func TestUserLocksAreReleased(t *testing.T) {
	f := newTestServiceFixture(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		_, err := f.svc.GetSession(ctx, uuid.New())
		require.NoError(t, err)
	}

	f.svc.locksMu.Lock()
	assert.Empty(t, f.svc.locks)
	f.svc.locksMu.Unlock()

	// A waiting caller keeps the entry alive for the next holder.
	unlock := f.svc.lock(f.userID)
	acquired := make(chan struct{})
	go func() {
		release := f.svc.lock(f.userID)
		close(acquired)
		release()
	}()

	assert.Eventually(t, func() bool {
		f.svc.locksMu.Lock()
		defer f.svc.locksMu.Unlock()
		return f.svc.locks[f.userID] != nil && f.svc.locks[f.userID].refs == 2
	}, time.Second, 5*time.Millisecond)
	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second caller never acquired the lock")
	}
	assert.Eventually(t, func() bool {
		f.svc.locksMu.Lock()
		defer f.svc.locksMu.Unlock()
		return len(f.svc.locks) == 0
	}, time.Second, 5*time.Millisecond)
}
