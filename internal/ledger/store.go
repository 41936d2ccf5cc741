package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CriteriaStore persists the filter fields of one scope. Category is never
// persisted and always loads as CategoryNone.
type CriteriaStore interface {
	Load(ctx context.Context, scope string) (Criteria, error)
	Save(ctx context.Context, scope string, criteria Criteria) error
	Clear(ctx context.Context, scope string) error
}

const (
	fieldPeriod      = "period"
	fieldSubjectCode = "subjectCode"
	fieldKeyword     = "keyword"
)

// ScopeKey derives the persistence scope for a session and entity.
func ScopeKey(sessionID, entityID string) string {
	return sessionID + ":" + entityID
}

// RedisCriteriaStore keeps criteria in a Redis hash per scope.
type RedisCriteriaStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCriteriaStore constructs the store. A zero ttl keeps keys forever.
func NewRedisCriteriaStore(client *redis.Client, ttl time.Duration) *RedisCriteriaStore {
	return &RedisCriteriaStore{client: client, ttl: ttl}
}

func criteriaKey(scope string) string {
	return "ledger:criteria:" + scope
}

// Load returns the stored criteria, or zero criteria for an unknown scope.
func (s *RedisCriteriaStore) Load(ctx context.Context, scope string) (Criteria, error) {
	values, err := s.client.HGetAll(ctx, criteriaKey(scope)).Result()
	if err != nil {
		return Criteria{}, fmt.Errorf("ledger: load criteria: %w", err)
	}
	return Criteria{
		Period:      values[fieldPeriod],
		SubjectCode: values[fieldSubjectCode],
		Keyword:     values[fieldKeyword],
	}, nil
}

// Save writes the three persisted fields and refreshes the TTL.
func (s *RedisCriteriaStore) Save(ctx context.Context, scope string, criteria Criteria) error {
	key := criteriaKey(scope)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldPeriod, criteria.Period,
			fieldSubjectCode, criteria.SubjectCode,
			fieldKeyword, criteria.Keyword,
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledger: save criteria: %w", err)
	}
	return nil
}

// Clear removes the scope entirely.
func (s *RedisCriteriaStore) Clear(ctx context.Context, scope string) error {
	if err := s.client.Del(ctx, criteriaKey(scope)).Err(); err != nil {
		return fmt.Errorf("ledger: clear criteria: %w", err)
	}
	return nil
}
