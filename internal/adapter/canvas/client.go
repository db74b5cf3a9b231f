package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	domainoauth "github.com/smallbiznis/canvas-auth/internal/domain/oauth"
)

const (
	authorizePathFormat = "https://%s/login/oauth2/auth"
	tokenPathFormat     = "https://%s/login/oauth2/token"

	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
)

// AuthorizeParams names the query parameters of the Canvas authorize
// endpoint. Empty optional fields are omitted from the URL entirely.
type AuthorizeParams struct {
	Domain      string
	ClientID    string
	RedirectURI string
	State       string
	Scopes      []string
	Purpose     string
	ForceLogin  string
}

// Client encapsulates outbound HTTP calls to the Canvas OAuth2 endpoints.
type Client interface {
	AuthorizationURL(p AuthorizeParams) string
	ExchangeCode(ctx context.Context, domain, clientID, clientSecret, redirectURI, code string) (domainoauth.TokenGrant, error)
	ExchangeRefreshToken(ctx context.Context, domain, clientID, clientSecret, redirectURI, refreshToken string) (domainoauth.TokenGrant, error)
}

// HTTPClient is the default Client implementation. The clock is injectable
// so expiry computation stays deterministic under test.
type HTTPClient struct {
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewHTTPClient constructs the default Canvas client. A nil http.Client gets
// a bounded timeout so a hanging Canvas call cannot occupy a worker forever.
func NewHTTPClient(client *http.Client, logger *zap.Logger) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{httpClient: client, logger: logger, now: time.Now}
}

// WithClock overrides the clock used for expiry computation.
func (c *HTTPClient) WithClock(now func() time.Time) *HTTPClient {
	c.now = now
	return c
}

// AuthorizationURL builds the GET URL for the Canvas authorize endpoint.
// url.Values encodes keys in sorted order, so the result is deterministic.
func (c *HTTPClient) AuthorizationURL(p AuthorizeParams) string {
	params := url.Values{}
	params.Set("client_id", p.ClientID)
	params.Set("redirect_uri", p.RedirectURI)
	params.Set("response_type", "code")
	if p.State != "" {
		params.Set("state", p.State)
	}
	if len(p.Scopes) > 0 {
		params.Set("scope", strings.Join(p.Scopes, " "))
	}
	if p.Purpose != "" {
		params.Set("purpose", p.Purpose)
	}
	if p.ForceLogin != "" {
		params.Set("force_login", p.ForceLogin)
	}
	return fmt.Sprintf(authorizePathFormat, p.Domain) + "?" + params.Encode()
}

// ExchangeCode performs the authorization_code grant. Canvas issues a
// refresh token on this grant type; its absence is a contract violation
// and fails the exchange.
func (c *HTTPClient) ExchangeCode(ctx context.Context, domain, clientID, clientSecret, redirectURI, code string) (domainoauth.TokenGrant, error) {
	data := url.Values{}
	data.Set("grant_type", grantAuthorizationCode)
	data.Set("client_id", clientID)
	data.Set("client_secret", clientSecret)
	data.Set("redirect_uri", redirectURI)
	data.Set("code", code)

	grant, err := c.exchange(ctx, domain, grantAuthorizationCode, data)
	if err != nil {
		return domainoauth.TokenGrant{}, err
	}
	if grant.RefreshToken == "" {
		return domainoauth.TokenGrant{}, &domainoauth.ExchangeError{
			GrantType: grantAuthorizationCode,
			Status:    http.StatusOK,
			Body:      "response missing refresh_token",
		}
	}
	return grant, nil
}

// ExchangeRefreshToken performs the refresh_token grant. Canvas does not
// rotate refresh tokens, so the response may omit one; the caller keeps the
// stored value in that case.
func (c *HTTPClient) ExchangeRefreshToken(ctx context.Context, domain, clientID, clientSecret, redirectURI, refreshToken string) (domainoauth.TokenGrant, error) {
	data := url.Values{}
	data.Set("grant_type", grantRefreshToken)
	data.Set("client_id", clientID)
	data.Set("client_secret", clientSecret)
	data.Set("redirect_uri", redirectURI)
	data.Set("refresh_token", refreshToken)

	return c.exchange(ctx, domain, grantRefreshToken, data)
}

func (c *HTTPClient) exchange(ctx context.Context, domain, grantType string, data url.Values) (domainoauth.TokenGrant, error) {
	endpoint := fmt.Sprintf(tokenPathFormat, domain)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return domainoauth.TokenGrant{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domainoauth.TokenGrant{}, &domainoauth.ExchangeError{GrantType: grantType, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domainoauth.TokenGrant{}, &domainoauth.ExchangeError{GrantType: grantType, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("canvas token exchange failed",
			zap.String("grant_type", grantType),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return domainoauth.TokenGrant{}, &domainoauth.ExchangeError{
			GrantType: grantType,
			Status:    resp.StatusCode,
			Body:      string(body),
		}
	}

	var raw struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return domainoauth.TokenGrant{}, &domainoauth.ExchangeError{
			GrantType: grantType,
			Status:    resp.StatusCode,
			Body:      string(body),
			Err:       fmt.Errorf("decode token response: %w", err),
		}
	}
	if raw.AccessToken == "" || raw.ExpiresIn == 0 {
		return domainoauth.TokenGrant{}, &domainoauth.ExchangeError{
			GrantType: grantType,
			Status:    resp.StatusCode,
			Body:      string(body),
			Err:       fmt.Errorf("response missing access_token or expires_in"),
		}
	}

	c.logger.Info("canvas token exchange succeeded",
		zap.String("grant_type", grantType),
		zap.Int64("expires_in", raw.ExpiresIn),
	)

	return domainoauth.TokenGrant{
		AccessToken:  raw.AccessToken,
		RefreshToken: raw.RefreshToken,
		ExpiresAt:    c.now().Add(time.Duration(raw.ExpiresIn) * time.Second),
	}, nil
}
