// Package backend is an HTTP client for the campus API. It satisfies the
// feed package's Session, VoteToggler and Loader interfaces.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/emilythestrangee/campus/backend/internal/middleware"
	"github.com/emilythestrangee/campus/backend/internal/models"
	"github.com/emilythestrangee/campus/backend/internal/realtime"
)

const (
	dialTimeout = 10 * time.Second
	reqTimeout  = 30 * time.Second
)

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL, token string) *Client {
	dialer := &net.Dialer{Timeout: dialTimeout}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: &http.Transport{DialContext: dialer.DialContext},
			Timeout:   reqTimeout,
		},
		token: token,
	}
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Viewer reports the user id carried by the current token. The signature is
// not checked here; an unexpired token is treated as a session and the API
// rejects forged ones.
func (c *Client) Viewer() (string, bool) {
	token := c.Token()
	if token == "" {
		return "", false
	}
	claims := &middleware.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", false
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return "", false
	}
	return claims.UserID, claims.UserID != ""
}

// Register creates an account and keeps the issued token on the client.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/register", req, &resp); err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return &resp, nil
}

// Login exchanges credentials for a token and keeps it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	req := models.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/login", req, &resp); err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return &resp, nil
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListRants returns the feed, newest first, with the viewer's votes.
func (c *Client) ListRants(ctx context.Context) ([]models.RantView, error) {
	return c.ListRantsIn(ctx, "")
}

// ListRantsIn returns the feed narrowed to one category. An empty category
// returns every rant.
func (c *Client) ListRantsIn(ctx context.Context, category string) ([]models.RantView, error) {
	path := "/api/rants"
	if category != "" {
		path += "?" + url.Values{"category": {category}}.Encode()
	}
	var rants []models.RantView
	if err := c.do(ctx, http.MethodGet, path, nil, &rants); err != nil {
		return nil, err
	}
	return rants, nil
}

func (c *Client) GetRant(ctx context.Context, rantID string) (*models.RantView, error) {
	var rant models.RantView
	if err := c.do(ctx, http.MethodGet, "/api/rants/"+url.PathEscape(rantID), nil, &rant); err != nil {
		return nil, err
	}
	return &rant, nil
}

func (c *Client) CreateRant(ctx context.Context, req models.CreateRantRequest) (*models.RantView, error) {
	var rant models.RantView
	if err := c.do(ctx, http.MethodPost, "/api/rants", req, &rant); err != nil {
		return nil, err
	}
	return &rant, nil
}

// ToggleVote calls the backend's atomic vote procedure.
func (c *Client) ToggleVote(ctx context.Context, rantID string, next models.VoteValue) (models.VoteTally, error) {
	var tally models.VoteTally
	req := models.ToggleVoteRequest{RantID: rantID, Value: &next}
	if err := c.do(ctx, http.MethodPost, "/api/rpc/toggle_vote", req, &tally); err != nil {
		return models.VoteTally{}, err
	}
	return tally, nil
}

func (c *Client) Notifications(ctx context.Context, unreadOnly bool) ([]models.Notification, error) {
	path := "/api/notifications"
	if unreadOnly {
		path += "?unread=true"
	}
	var notifications []models.Notification
	if err := c.do(ctx, http.MethodGet, path, nil, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (c *Client) MarkRead(ctx context.Context, notificationID string) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/"+url.PathEscape(notificationID)+"/read", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return apiError(resp.StatusCode, errBody)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func apiError(status int, body []byte) *APIError {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return &APIError{Status: status, Message: payload.Error}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}

// Subscribe streams realtime changes matching filter until ctx is done or
// the server closes the connection. The returned channel is closed then.
func (c *Client) Subscribe(ctx context.Context, filter realtime.Filter) (<-chan realtime.Change, error) {
	u, err := url.Parse(c.baseURL + "/api/realtime")
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := url.Values{"table": {filter.Table}}
	if filter.Field != "" {
		q.Set("field", filter.Field)
		q.Set("value", filter.Value)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	if token := c.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			errBody, _ := io.ReadAll(resp.Body)
			return nil, apiError(resp.StatusCode, errBody)
		}
		return nil, fmt.Errorf("dial realtime: %w", err)
	}

	changes := make(chan realtime.Change)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	go func() {
		defer close(changes)
		defer close(done)
		defer conn.Close()
		for {
			var change realtime.Change
			if err := conn.ReadJSON(&change); err != nil {
				return
			}
			select {
			case changes <- change:
			case <-ctx.Done():
				return
			}
		}
	}()
	return changes, nil
}
