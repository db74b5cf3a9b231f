package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smallbiznis/canvas-auth/internal/domain/oauth"
	"github.com/smallbiznis/canvas-auth/internal/repository"
)

const (
	flowStatePrefix    = "canvas:flow:"
	canvasDomainPrefix = "canvas:domain:"
)

// RedisSessionStore implements repository.SessionStore backed by Redis.
type RedisSessionStore struct {
	client redis.UniversalClient
}

var _ repository.SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore constructs a Redis-backed session store.
func NewRedisSessionStore(client redis.UniversalClient) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

// SaveFlowState stores the encoded flow state for one session with TTL.
func (s *RedisSessionStore) SaveFlowState(ctx context.Context, sessionID string, state oauth.FlowState, ttl time.Duration) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal flow state: %w", err)
	}
	if err := s.client.Set(ctx, flowStatePrefix+sessionID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist flow state: %w", err)
	}
	return nil
}

// GetFlowState loads and decodes the flow state, nil when absent.
func (s *RedisSessionStore) GetFlowState(ctx context.Context, sessionID string) (*oauth.FlowState, error) {
	bytes, err := s.client.Get(ctx, flowStatePrefix+sessionID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("load flow state: %w", err)
	}
	var state oauth.FlowState
	if err := json.Unmarshal(bytes, &state); err != nil {
		return nil, fmt.Errorf("decode flow state: %w", err)
	}
	return &state, nil
}

// DeleteFlowState removes the persisted flow state key.
func (s *RedisSessionStore) DeleteFlowState(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, flowStatePrefix+sessionID).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("delete flow state: %w", err)
	}
	return nil
}

// SetCanvasDomain stores a per-session Canvas domain override.
func (s *RedisSessionStore) SetCanvasDomain(ctx context.Context, sessionID, domain string, ttl time.Duration) error {
	if err := s.client.Set(ctx, canvasDomainPrefix+sessionID, domain, ttl).Err(); err != nil {
		return fmt.Errorf("persist canvas domain: %w", err)
	}
	return nil
}

// GetCanvasDomain returns the session's domain override, empty when unset.
func (s *RedisSessionStore) GetCanvasDomain(ctx context.Context, sessionID string) (string, error) {
	value, err := s.client.Get(ctx, canvasDomainPrefix+sessionID).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("load canvas domain: %w", err)
	}
	return value, nil
}
