package services

import (
	"context"
	"log"
	"sync"
	"time"

	"avtotest/models"
)

// maxResultAttempts bounds how often one result is written before it is
// moved to the dead-letter list.
const maxResultAttempts = 10

type ResultWriter interface {
	SaveResult(ctx context.Context, result *models.Result) error
}

// ResultListener is called once a result is durably stored.
type ResultListener func(result *models.Result)

// ResultSyncer writes finished attempts in the background so that finishing
// a test never waits on storage. Failed writes go to the outbox and are
// retried by Reconcile.
type ResultSyncer struct {
	writer       ResultWriter
	outbox       ResultOutbox
	queue        chan *models.Result
	done         chan struct{}
	writeTimeout time.Duration
	maxAttempts  int

	mutex     sync.RWMutex
	listeners []ResultListener
}

func NewResultSyncer(writer ResultWriter, outbox ResultOutbox, queueSize int) *ResultSyncer {
	return &ResultSyncer{
		writer:       writer,
		outbox:       outbox,
		queue:        make(chan *models.Result, queueSize),
		done:         make(chan struct{}),
		writeTimeout: 10 * time.Second,
		maxAttempts:  maxResultAttempts,
	}
}

func (s *ResultSyncer) OnSynced(listener ResultListener) {
	s.mutex.Lock()
	s.listeners = append(s.listeners, listener)
	s.mutex.Unlock()
}

// Done is closed once Run has returned and every queued result has been
// written or moved to the outbox.
func (s *ResultSyncer) Done() <-chan struct{} {
	return s.done
}

// Enqueue never blocks: with a full queue, or after Run has stopped, the
// result goes straight to the outbox.
func (s *ResultSyncer) Enqueue(result *models.Result) {
	select {
	case <-s.done:
		s.postpone(context.Background(), &PendingResult{Result: result})
		return
	default:
	}

	select {
	case s.queue <- result:
	default:
		log.Printf("Result queue full, deferring result %s", result.ID)
		s.postpone(context.Background(), &PendingResult{Result: result})
	}
}

// Run processes queued results until ctx is done. A write in flight at
// cancellation is allowed to finish; whatever is still queued is moved to
// the outbox before Done is closed.
func (s *ResultSyncer) Run(ctx context.Context) {
	defer close(s.done)

	writeCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			s.drain(writeCtx)
			return
		case result := <-s.queue:
			pending := &PendingResult{Result: result}
			if err := s.write(writeCtx, pending); err != nil {
				log.Printf("Persistence failure for result %s (user %s): %v", result.ID, result.UserID, err)
				s.postpone(writeCtx, pending)
			}
		}
	}
}

// Reconcile retries every result that was in the outbox when it started.
// Results that fail again are put back until they run out of attempts.
func (s *ResultSyncer) Reconcile(ctx context.Context) (synced int, err error) {
	pending, err := s.outbox.Len(ctx)
	if err != nil {
		return 0, err
	}

	for i := int64(0); i < pending; i++ {
		entry, err := s.outbox.Pop(ctx)
		if err != nil {
			return synced, err
		}
		if entry == nil {
			break
		}
		if err := s.write(ctx, entry); err != nil {
			log.Printf("Retry %d failed for result %s: %v", entry.Attempts, entry.Result.ID, err)
			s.postpone(ctx, entry)
			continue
		}
		synced++
	}

	if synced > 0 {
		log.Printf("Reconciled %d pending results", synced)
	}
	return synced, nil
}

func (s *ResultSyncer) write(ctx context.Context, entry *PendingResult) error {
	writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	entry.Attempts++
	if err := s.writer.SaveResult(writeCtx, entry.Result); err != nil {
		return NewPersistenceError(err)
	}

	s.mutex.RLock()
	listeners := append([]ResultListener(nil), s.listeners...)
	s.mutex.RUnlock()
	for _, listener := range listeners {
		listener(entry.Result)
	}
	return nil
}

func (s *ResultSyncer) postpone(ctx context.Context, entry *PendingResult) {
	if entry.Attempts >= s.maxAttempts {
		log.Printf("Result %s failed %d times, moving to dead letters", entry.Result.ID, entry.Attempts)
		if err := s.outbox.DeadLetter(ctx, entry); err != nil {
			log.Printf("Result %s lost: failed to store dead letter: %v", entry.Result.ID, err)
		}
		return
	}
	if err := s.outbox.Push(ctx, entry); err != nil {
		log.Printf("Result %s lost: failed to queue for retry: %v", entry.Result.ID, err)
	}
}

func (s *ResultSyncer) drain(ctx context.Context) {
	for {
		select {
		case result := <-s.queue:
			s.postpone(ctx, &PendingResult{Result: result})
		default:
			return
		}
	}
}
