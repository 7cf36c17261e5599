package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AleksTheDev/snacker/internal/session"
)

// APIError is a non-2xx response from the auth endpoint
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth request failed (status %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("auth request failed (status %d): %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err means the credentials themselves were
// rejected, as opposed to a transport or server failure.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

// Client talks to a GoTrue-compatible auth endpoint
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// NewClient creates a new auth client for the project at baseURL
func NewClient(baseURL, anonKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// UserResponse is the user object returned by the auth endpoint
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// TokenResponse is returned by both token grants
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         UserResponse `json:"user"`
}

// Session converts the token grant into a session value. Missing expiry or
// user id fall back to the access token's claims.
func (t *TokenResponse) Session(now time.Time) *session.Session {
	s := &session.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		User: session.User{
			ID:    t.User.ID,
			Email: t.User.Email,
			Role:  t.User.Role,
		},
	}

	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0).UTC()
	case t.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second).UTC()
	}

	if s.ExpiresAt.IsZero() || s.User.ID == "" {
		if claims, err := ParseAccessToken(t.AccessToken); err == nil {
			if s.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
				s.ExpiresAt = claims.ExpiresAt.Time.UTC()
			}
			if s.User.ID == "" {
				s.User.ID = claims.Subject
			}
			if s.User.Email == "" {
				s.User.Email = claims.Email
			}
		}
	}

	return s
}

type passwordGrantRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshGrantRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SignInWithPassword exchanges email and password for a session
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*TokenResponse, error) {
	var resp TokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "",
		passwordGrantRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, fmt.Errorf("sign in failed: %w", err)
	}
	return &resp, nil
}

// RefreshSession exchanges a refresh token for a new session
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var resp TokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "",
		refreshGrantRequest{RefreshToken: refreshToken}, &resp)
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	return &resp, nil
}

// GetUser returns the user the access token belongs to
func (c *Client) GetUser(ctx context.Context, accessToken string) (*UserResponse, error) {
	var user UserResponse
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &user); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// SignOut revokes the session's refresh tokens on the server
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if err := c.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil); err != nil {
		return fmt.Errorf("sign out failed: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, accessToken string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", c.anonKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return decodeAPIError(resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeAPIError understands both the OAuth-style and the newer GoTrue
// error bodies, falling back to the raw body text.
func decodeAPIError(status int, body []byte) *APIError {
	var payload struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorCode        string `json:"error_code"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
	}

	apiErr := &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	if err := json.Unmarshal(body, &payload); err != nil {
		return apiErr
	}

	switch {
	case payload.ErrorCode != "":
		apiErr.Code = payload.ErrorCode
	case payload.Error != "":
		apiErr.Code = payload.Error
	}

	switch {
	case payload.ErrorDescription != "":
		apiErr.Message = payload.ErrorDescription
	case payload.Msg != "":
		apiErr.Message = payload.Msg
	case payload.Message != "":
		apiErr.Message = payload.Message
	}

	return apiErr
}
