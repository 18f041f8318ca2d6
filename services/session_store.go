package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"avtotest/models"
	"avtotest/session"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "test_session:"
	pendingResultKey = "results:pending"
	deadResultKey    = "results:dead"
)

type SessionStore interface {
	// Load returns nil, nil when the user has no stored session.
	Load(ctx context.Context, userID uuid.UUID) (*session.Session, error)
	Save(ctx context.Context, s *session.Session) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

// PendingResult is a result waiting in the outbox with the number of
// writes already tried.
type PendingResult struct {
	Result   *models.Result `json:"result"`
	Attempts int            `json:"attempts"`
}

// ResultOutbox holds results whose write failed until they are retried.
// Results past their last attempt go to a dead-letter list for inspection.
type ResultOutbox interface {
	Push(ctx context.Context, entry *PendingResult) error
	// Pop returns nil, nil when the outbox is empty.
	Pop(ctx context.Context) (*PendingResult, error)
	Len(ctx context.Context) (int64, error)
	DeadLetter(ctx context.Context, entry *PendingResult) error
}

type RedisSessionStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{redis: client, ttl: ttl}
}

func (s *RedisSessionStore) Load(ctx context.Context, userID uuid.UUID) (*session.Session, error) {
	data, err := s.redis.Get(ctx, sessionKeyPrefix+userID.String()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load test session: %w", err)
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		log.Printf("Discarding unreadable test session for %s: %v", userID, err)
		return nil, nil
	}
	return &sess, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, sess *session.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal test session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKeyPrefix+sess.UserID.String(), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store test session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, userID uuid.UUID) error {
	return s.redis.Del(ctx, sessionKeyPrefix+userID.String()).Err()
}

type RedisResultOutbox struct {
	redis *redis.Client
}

func NewRedisResultOutbox(client *redis.Client) *RedisResultOutbox {
	return &RedisResultOutbox{redis: client}
}

func (o *RedisResultOutbox) Push(ctx context.Context, entry *PendingResult) error {
	return o.push(ctx, pendingResultKey, entry)
}

func (o *RedisResultOutbox) DeadLetter(ctx context.Context, entry *PendingResult) error {
	return o.push(ctx, deadResultKey, entry)
}

func (o *RedisResultOutbox) push(ctx context.Context, key string, entry *PendingResult) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return o.redis.RPush(ctx, key, data).Err()
}

func (o *RedisResultOutbox) Pop(ctx context.Context) (*PendingResult, error) {
	data, err := o.redis.LPop(ctx, pendingResultKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entry PendingResult
	if err := json.Unmarshal(data, &entry); err != nil || entry.Result == nil {
		log.Printf("Moving unreadable pending result to dead letters: %v", err)
		if err := o.redis.RPush(ctx, deadResultKey, data).Err(); err != nil {
			return nil, err
		}
		return o.Pop(ctx)
	}
	return &entry, nil
}

func (o *RedisResultOutbox) Len(ctx context.Context) (int64, error) {
	return o.redis.LLen(ctx, pendingResultKey).Result()
}
