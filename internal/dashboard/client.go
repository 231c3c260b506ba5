// Package dashboard is the admin client of the food rescue API: a typed HTTP
// client, a 5 second poller and the view helpers the console renders from.
package dashboard

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

	apperrors "rescueboard/internal/errors"
	"rescueboard/internal/model"
)

// Session is an authenticated admin session. It is passed explicitly to every call.
type Session struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
	Fields  map[string][]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Client talks to the /api endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for baseURL, e.g. "http://localhost:8080".
// A nil httpClient gets a 10 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/") + "/api", http: httpClient}
}

// Login opens a session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var sess Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/login", nil, body, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Logout revokes the session token. A session the server no longer knows is
// treated as already logged out.
func (c *Client) Logout(ctx context.Context, sess *Session) error {
	err := c.do(ctx, http.MethodPost, "/logout", sess, nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return nil
	}
	return err
}

// Me returns the user behind the session token.
func (c *Client) Me(ctx context.Context, sess *Session) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodGet, "/user", sess, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Stats fetches the per-status counts.
func (c *Client) Stats(ctx context.Context, sess *Session) (model.FoodStats, error) {
	var stats model.FoodStats
	err := c.do(ctx, http.MethodGet, "/foods/stats", sess, nil, &stats)
	return stats, err
}

// ListAll fetches every listing regardless of status.
func (c *Client) ListAll(ctx context.Context, sess *Session) ([]model.Food, error) {
	var foods []model.Food
	err := c.do(ctx, http.MethodGet, "/foods/all", sess, nil, &foods)
	return foods, err
}

// Delete removes a listing. Only admins succeed.
func (c *Client) Delete(ctx context.Context, sess *Session, id uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/foods/%d", id), sess, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, sess *Session, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess != nil && sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var er apperrors.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		if er.Message == "" {
			er.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: er.Message, Fields: er.Errors}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
