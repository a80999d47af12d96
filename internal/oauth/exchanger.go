package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boukath/cina/services/push_service/internal/credentials"
	"github.com/boukath/cina/services/push_service/pkg/pusherr"
)

// AccessToken is a bearer token held in memory only.
type AccessToken struct {
	Value     string
	Type      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Valid reports whether the token is usable at t.
func (t AccessToken) Valid(at time.Time) bool {
	return t.Value != "" && at.Before(t.ExpiresAt)
}

// Lifetime is the span between issue and expiry.
func (t AccessToken) Lifetime() time.Duration {
	return t.ExpiresAt.Sub(t.IssuedAt)
}

// Recorder observes exchanges; *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveTokenExchange(outcome string, took time.Duration)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Exchanger trades signed assertions for access tokens.
type Exchanger struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// ExchangerOption customises an Exchanger.
type ExchangerOption func(*Exchanger)

// WithClock overrides the time source used for iat/exp.
func WithClock(now func() time.Time) ExchangerOption {
	return func(e *Exchanger) { e.now = now }
}

// WithRecorder reports every exchange to r.
func WithRecorder(r Recorder) ExchangerOption {
	return func(e *Exchanger) { e.recorder = r }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) ExchangerOption {
	return func(e *Exchanger) { e.client = c }
}

func NewExchanger(endpoint string, timeout time.Duration, logger *slog.Logger, opts ...ExchangerOption) *Exchanger {
	if endpoint == "" {
		endpoint = DefaultTokenEndpoint
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	e := &Exchanger{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Endpoint is the token endpoint, also used as the assertion audience.
func (e *Exchanger) Endpoint() string {
	return e.endpoint
}

// Exchange performs exactly one token request for cred. It does not retry.
func (e *Exchanger) Exchange(ctx context.Context, cred *credentials.ServiceAccountCredential) (AccessToken, error) {
	started := time.Now()
	tok, err := e.exchange(ctx, cred)
	if e.recorder != nil {
		outcome := "success"
		if err != nil {
			outcome = string(pusherr.KindOf(err))
		}
		e.recorder.ObserveTokenExchange(outcome, time.Since(started))
	}
	return tok, err
}

func (e *Exchanger) exchange(ctx context.Context, cred *credentials.ServiceAccountCredential) (AccessToken, error) {
	now := e.now().Truncate(time.Second)

	assertion, err := BuildAssertion(cred, e.endpoint, now)
	if err != nil {
		return AccessToken{}, err
	}

	form := url.Values{}
	form.Set("grant_type", GrantType)
	form.Set("assertion", assertion.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return AccessToken{}, pusherr.Configuration("oauth.exchange", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.client.Do(req)
	if err != nil {
		return AccessToken{}, pusherr.Transport("oauth.exchange", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return AccessToken{}, pusherr.Transport("oauth.exchange", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e.logger.Warn("token exchange rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("issuer", cred.Issuer),
		)
		return AccessToken{}, pusherr.AuthExchange("oauth.exchange", resp.StatusCode, string(body))
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.AccessToken == "" {
		return AccessToken{}, pusherr.AuthExchange("oauth.exchange", resp.StatusCode, string(body))
	}

	expiresIn := time.Duration(parsed.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = AssertionLifetime
	}
	tokenType := parsed.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	e.logger.Debug("token exchange succeeded",
		slog.String("issuer", cred.Issuer),
		slog.Duration("expires_in", expiresIn),
	)

	return AccessToken{
		Value:     parsed.AccessToken,
		Type:      tokenType,
		IssuedAt:  now,
		ExpiresAt: now.Add(expiresIn),
	}, nil
}
