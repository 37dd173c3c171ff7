// Package api is the driven HTTP adapter for the NutriFacts backend. It
// implements the recognizer, history and account ports over the backend's
// REST endpoints.
package api

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"nutrifacts/internal/domain"
)

// DefaultBaseURL is the backend address used when none is configured.
const DefaultBaseURL = "http://localhost:8000/api"

const maxResponseBytes = 4 << 20

// Endpoint paths, relative to the base URL. The backend requires the
// trailing slash.
const (
	PathScanImage     = "/scan-image/"
	PathSaveNutrition = "/save-nutrition-data/"
	PathHistory       = "/nutrition-history/"
	PathLogin         = "/login/"
	PathRegister      = "/register/"
	PathRefreshToken  = "/token/refresh/"
)

const (
	requestIDHeader = "X-Request-ID"
	contentTypeJSON = "application/json"
	bearerTokenType = "Bearer"
)

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

var (
	_ domain.Recognizer        = (*Client)(nil)
	_ domain.HistoryRepository = (*Client)(nil)
	_ domain.Authenticator     = (*Client)(nil)
)

// New returns a Client for baseURL. timeout bounds every request at the
// transport level; the scan timeout is enforced separately by the caller.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: NewLoggingTransport(nil),
		},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set(requestIDHeader, uuid.NewString())
	return req, nil
}

// bearer checks that sess carries an access token, so an unauthenticated
// call never leaves the device.
func bearer(sess domain.Session) (*oauth2.Token, error) {
	if strings.TrimSpace(sess.AccessToken) == "" {
		return nil, domain.ErrUnauthenticated
	}
	tok := &oauth2.Token{AccessToken: sess.AccessToken, TokenType: bearerTokenType}
	if exp, ok := sess.ExpiresAt(); ok {
		tok.Expiry = exp
	}
	return tok, nil
}

func authorize(req *http.Request, tok *oauth2.Token) {
	if !tok.Valid() {
		log.Printf("warn: access token expired at %s, sending anyway", tok.Expiry.Format(time.RFC3339))
	}
	tok.SetAuthHeader(req)
}

// do sends req and returns the body of a 2xx response. Failures are
// *domain.RemoteError of the given kind, except 401 which is always
// domain.ErrUnauthenticated. A cancelled request context is returned as is.
func (c *Client) do(req *http.Request, kind error) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		return 0, nil, &domain.RemoteError{Kind: kind, Err: fmt.Errorf("%w: %w", domain.ErrNetwork, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		return resp.StatusCode, nil, &domain.RemoteError{Kind: kind, Status: resp.StatusCode, Err: fmt.Errorf("%w: reading response: %w", domain.ErrNetwork, err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return resp.StatusCode, body, &domain.RemoteError{Kind: domain.ErrUnauthenticated, Status: resp.StatusCode, Message: messageFrom(body)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return resp.StatusCode, body, &domain.RemoteError{Kind: kind, Status: resp.StatusCode, Message: messageFrom(body)}
	}
	return resp.StatusCode, body, nil
}
