package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"nutrifacts/internal/domain"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Login exchanges email and password for a token pair. Wrong credentials
// are reported as domain.ErrLoginRejected.
func (c *Client) Login(ctx context.Context, email, password string) (domain.Session, error) {
	var out loginResponse
	if err := c.postAccount(ctx, PathLogin, credentials{Email: email, Password: password}, &out); err != nil {
		var re *domain.RemoteError
		if errors.As(err, &re) && re.Status == http.StatusUnauthorized {
			re.Kind = domain.ErrLoginRejected
		}
		return domain.Session{}, err
	}
	if strings.TrimSpace(out.Access) == "" {
		return domain.Session{}, &domain.RemoteError{Kind: domain.ErrAccountFailed, Message: "login response carries no access token"}
	}
	return domain.Session{AccessToken: out.Access, RefreshToken: out.Refresh}, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, email, password string) error {
	return c.postAccount(ctx, PathRegister, credentials{Email: email, Password: password}, nil)
}

// Refresh trades a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", domain.ErrUnauthenticated
	}
	var out struct {
		Access string `json:"access"`
	}
	if err := c.postAccount(ctx, PathRefreshToken, map[string]string{"refresh": refreshToken}, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Access) == "" {
		return "", &domain.RemoteError{Kind: domain.ErrAccountFailed, Message: "refresh response carries no access token"}
	}
	return out.Access, nil
}

// postAccount posts an unauthenticated JSON request. A 400 is reported as
// domain.ErrValidation, a 401 as domain.ErrUnauthenticated.
func (c *Client) postAccount(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentTypeJSON)

	status, body, err := c.do(req, domain.ErrAccountFailed)
	if err != nil {
		var re *domain.RemoteError
		if errors.As(err, &re) && re.Status == http.StatusBadRequest {
			re.Kind = domain.ErrValidation
		}
		return err
	}
	if out == nil {
		return nil
	}
	if err := decodeJSON(body, out); err != nil {
		return &domain.RemoteError{Kind: domain.ErrAccountFailed, Status: status, Err: err}
	}
	return nil
}
