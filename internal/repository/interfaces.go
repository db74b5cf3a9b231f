package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/canvas-auth/internal/domain"
	"github.com/smallbiznis/canvas-auth/internal/domain/oauth"
)

// ErrTokenNotFound signals that no token row exists for the owner.
var ErrTokenNotFound = errors.New("repository: token not found")

// TokenRepository handles Canvas token persistence, one row per owner.
type TokenRepository interface {
	Find(ctx context.Context, ownerID string) (domain.CanvasToken, error)
	Create(ctx context.Context, token domain.CanvasToken) (domain.CanvasToken, error)
	Save(ctx context.Context, token domain.CanvasToken) error
	Delete(ctx context.Context, ownerID string) error
}

// SessionStore persists the short-lived per-session values that survive
// the authorization redirect round trip. GetFlowState and GetCanvasDomain
// report absence as a nil state / empty string, not an error.
type SessionStore interface {
	SaveFlowState(ctx context.Context, sessionID string, state oauth.FlowState, ttl time.Duration) error
	GetFlowState(ctx context.Context, sessionID string) (*oauth.FlowState, error)
	DeleteFlowState(ctx context.Context, sessionID string) error
	SetCanvasDomain(ctx context.Context, sessionID, domain string, ttl time.Duration) error
	GetCanvasDomain(ctx context.Context, sessionID string) (string, error)
}
