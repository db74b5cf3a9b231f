package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smallbiznis/canvas-auth/internal/adapter/canvas"
	"github.com/smallbiznis/canvas-auth/internal/config"
	"github.com/smallbiznis/canvas-auth/internal/domain"
	domainoauth "github.com/smallbiznis/canvas-auth/internal/domain/oauth"
	"github.com/smallbiznis/canvas-auth/internal/repository"
)

// FlowService orchestrates the Canvas OAuth2 token lifecycle: begin,
// callback, refresh, and expiry-aware token retrieval.
type FlowService interface {
	GetToken(ctx context.Context, req TokenRequest) (string, error)
	BeginAuthorization(ctx context.Context, in BeginAuthorizationInput) (string, error)
	HandleCallback(ctx context.Context, in HandleCallbackInput) (string, error)
	RefreshToken(ctx context.Context, req TokenRequest) (domain.CanvasToken, error)
}

// TokenRequest identifies the owner asking for a token. RedirectURI is the
// callback URI recomputed for this request; the token endpoint requires it
// to match the one used at authorization time.
type TokenRequest struct {
	OwnerID     string
	SessionID   string
	RedirectURI string
}

// BeginAuthorizationInput carries what the flow needs to start one
// authorization round trip.
type BeginAuthorizationInput struct {
	SessionID    string
	RequesterURI string
	RedirectURI  string
}

// HandleCallbackInput carries the provider callback parameters together
// with the requester's session and identity.
type HandleCallbackInput struct {
	SessionID string
	OwnerID   string
	Code      string
	State     string
}

type flowService struct {
	client   canvas.Client
	tokens   repository.TokenRepository
	sessions repository.SessionStore
	cfg      config.Config
	logger   *zap.Logger
	now      func() time.Time
	newState func() (string, error)
}

// NewFlowService wires the flow controller implementation.
func NewFlowService(
	client canvas.Client,
	tokens repository.TokenRepository,
	sessions repository.SessionStore,
	cfg config.Config,
	logger *zap.Logger,
) FlowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &flowService{
		client:   client,
		tokens:   tokens,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		newState: func() (string, error) { return secureRandomString(32) },
	}
}

// GetToken returns the owner's access token, refreshing it in line when it
// is within the configured expiration buffer. A missing record surfaces as
// ErrMissingToken without any network call; the dispatcher turns that into
// the start of the authorization flow. This method never redirects itself
// because it may run outside a redirect-capable context.
func (s *flowService) GetToken(ctx context.Context, req TokenRequest) (string, error) {
	token, err := s.tokens.Find(ctx, req.OwnerID)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			s.logger.Info("no token found for owner", zap.String("owner_id", req.OwnerID))
			return "", domainoauth.ErrMissingToken
		}
		return "", fmt.Errorf("lookup token: %w", err)
	}
	s.logger.Info("token found for owner", zap.String("owner_id", req.OwnerID))

	if token.ExpiresWithin(s.cfg.TokenExpirationBuffer, s.now()) {
		s.logger.Info("refreshing token for owner", zap.String("owner_id", req.OwnerID))
		token, err = s.RefreshToken(ctx, req)
		if err != nil {
			return "", err
		}
	}

	return token.AccessToken, nil
}

// BeginAuthorization generates the state nonce, persists the flow state in
// the session, and returns the Canvas authorize URL to redirect to.
func (s *flowService) BeginAuthorization(ctx context.Context, in BeginAuthorizationInput) (string, error) {
	state, err := s.newState()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}

	canvasDomain, err := s.resolveDomain(ctx, in.SessionID)
	if err != nil {
		return "", err
	}

	flowState := domainoauth.FlowState{
		RequestState: state,
		InitialURI:   in.RequesterURI,
		RedirectURI:  in.RedirectURI,
		CanvasDomain: canvasDomain,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.sessions.SaveFlowState(ctx, in.SessionID, flowState, s.cfg.SessionTTL); err != nil {
		return "", fmt.Errorf("persist flow state: %w", err)
	}

	authorizeURL := s.client.AuthorizationURL(canvas.AuthorizeParams{
		Domain:      canvasDomain,
		ClientID:    s.cfg.CanvasClientID,
		RedirectURI: in.RedirectURI,
		State:       state,
		Scopes:      s.cfg.CanvasScopes,
	})

	s.logger.Info("redirecting owner to canvas", zap.String("authorize_url", authorizeURL))
	return authorizeURL, nil
}

// HandleCallback verifies the echoed state, exchanges the code, persists a
// fresh token record for the owner, and returns the URI the owner was
// originally trying to reach.
func (s *flowService) HandleCallback(ctx context.Context, in HandleCallbackInput) (string, error) {
	flowState, err := s.sessions.GetFlowState(ctx, in.SessionID)
	if err != nil {
		return "", fmt.Errorf("load flow state: %w", err)
	}
	if flowState == nil || in.State != flowState.RequestState {
		s.logger.Warn("oauth state mismatch", zap.String("owner_id", in.OwnerID))
		return "", domainoauth.ErrInvalidState
	}
	defer func() {
		if err := s.sessions.DeleteFlowState(ctx, in.SessionID); err != nil {
			s.logger.Warn("failed to clear flow state", zap.Error(err))
		}
	}()

	canvasDomain := flowState.CanvasDomain
	if canvasDomain == "" {
		canvasDomain = s.cfg.CanvasDomain
	}

	grant, err := s.client.ExchangeCode(ctx,
		canvasDomain,
		s.cfg.CanvasClientID,
		s.cfg.CanvasClientSecret,
		flowState.RedirectURI,
		in.Code,
	)
	if err != nil {
		return "", err
	}

	created, err := s.tokens.Create(ctx, domain.CanvasToken{
		OwnerID:      in.OwnerID,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    grant.ExpiresAt,
	})
	if err != nil {
		return "", fmt.Errorf("persist token: %w", err)
	}
	s.logger.Info("canvas token created",
		zap.Int64("token_id", created.ID),
		zap.String("owner_id", in.OwnerID),
	)

	s.logger.Info("redirecting owner back to initial uri", zap.String("initial_uri", flowState.InitialURI))
	return flowState.InitialURI, nil
}

// RefreshToken performs a refresh_token grant for the owner's stored token
// and overwrites the record's access token and expiry. Canvas may omit a
// rotated refresh token, in which case the stored one is kept. Concurrent
// refreshes for one owner are not serialized; the last writer wins.
func (s *flowService) RefreshToken(ctx context.Context, req TokenRequest) (domain.CanvasToken, error) {
	token, err := s.tokens.Find(ctx, req.OwnerID)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return domain.CanvasToken{}, domainoauth.ErrMissingToken
		}
		return domain.CanvasToken{}, fmt.Errorf("lookup token: %w", err)
	}

	canvasDomain, err := s.resolveDomain(ctx, req.SessionID)
	if err != nil {
		return domain.CanvasToken{}, err
	}

	grant, err := s.client.ExchangeRefreshToken(ctx,
		canvasDomain,
		s.cfg.CanvasClientID,
		s.cfg.CanvasClientSecret,
		req.RedirectURI,
		token.RefreshToken,
	)
	if err != nil {
		return domain.CanvasToken{}, err
	}

	token.AccessToken = grant.AccessToken
	token.ExpiresAt = grant.ExpiresAt
	if grant.RefreshToken != "" {
		token.RefreshToken = grant.RefreshToken
	}
	if err := s.tokens.Save(ctx, token); err != nil {
		return domain.CanvasToken{}, fmt.Errorf("save refreshed token: %w", err)
	}

	return token, nil
}

// resolveDomain prefers a per-session Canvas domain override, falling back
// to the configured domain.
func (s *flowService) resolveDomain(ctx context.Context, sessionID string) (string, error) {
	if sessionID != "" {
		override, err := s.sessions.GetCanvasDomain(ctx, sessionID)
		if err != nil {
			return "", fmt.Errorf("load canvas domain: %w", err)
		}
		if strings.TrimSpace(override) != "" {
			return override, nil
		}
	}
	return s.cfg.CanvasDomain, nil
}

func secureRandomString(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
