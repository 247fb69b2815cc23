// Package bmlt is a client for the BMLT root server admin REST API.
package bmlt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bmlt-tools/naws-importer/internal/pkg/httpretry"
)

// Client is the root server API client.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient httpretry.HTTPDoer

	mu          sync.Mutex
	token       string
	tokenUserID int
	expiresAt   time.Time
}

// NewClient creates a root server client from config.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		password: cfg.Password,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: timeout,
		}, cfg.MaxRetries),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// ensureToken authenticates if no valid token is held.
func (c *Client) ensureToken(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expiresAt) {
		return nil
	}

	body, _ := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/auth/token", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading auth response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, respBody)
	}

	var tok tokenResponse
	if err := json.Unmarshal(respBody, &tok); err != nil {
		return fmt.Errorf("parsing auth response: %w", err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("auth response contained no token")
	}

	c.token = tok.AccessToken
	c.tokenUserID = tok.UserID
	if tok.ExpiresAt > 0 {
		// Refresh a minute early to avoid using a token at the edge.
		c.expiresAt = time.Unix(tok.ExpiresAt, 0).Add(-time.Minute)
	} else {
		c.expiresAt = time.Now().Add(30 * time.Minute)
	}
	return nil
}

// doRequest performs an authenticated request and returns the raw body.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.mu.Lock()
	req.Header.Set("Authorization", "Bearer "+c.token)
	c.mu.Unlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}

	return respBody, nil
}

// parseAPIError extracts a structured error from a failed response body.
func parseAPIError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	// Body may not be JSON at all; the bare status error still stands.
	_ = json.Unmarshal(body, apiErr)
	return apiErr
}

// GetServiceBodies retrieves all service bodies.
func (c *Client) GetServiceBodies(ctx context.Context) ([]ServiceBody, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/api/v1/servicebodies", nil)
	if err != nil {
		return nil, err
	}

	var bodies []ServiceBody
	if err := json.Unmarshal(respBody, &bodies); err != nil {
		return nil, fmt.Errorf("parsing service bodies: %w", err)
	}
	return bodies, nil
}

// CreateServiceBody creates a new service body and returns the created record.
func (c *Client) CreateServiceBody(ctx context.Context, spec ServiceBodyCreate) (*ServiceBody, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/api/v1/servicebodies", spec)
	if err != nil {
		return nil, err
	}

	var body ServiceBody
	if err := json.Unmarshal(respBody, &body); err != nil {
		return nil, fmt.Errorf("parsing created service body: %w", err)
	}
	return &body, nil
}

// GetFormats retrieves all meeting formats.
func (c *Client) GetFormats(ctx context.Context) ([]Format, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/api/v1/formats", nil)
	if err != nil {
		return nil, err
	}

	var formats []Format
	if err := json.Unmarshal(respBody, &formats); err != nil {
		return nil, fmt.Errorf("parsing formats: %w", err)
	}
	return formats, nil
}

// GetMeetings retrieves all meetings visible to the authenticated user.
func (c *Client) GetMeetings(ctx context.Context) ([]Meeting, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/api/v1/meetings", nil)
	if err != nil {
		return nil, err
	}

	var meetings []Meeting
	if err := json.Unmarshal(respBody, &meetings); err != nil {
		return nil, fmt.Errorf("parsing meetings: %w", err)
	}
	return meetings, nil
}

// CreateMeeting creates a new meeting and returns the created record.
func (c *Client) CreateMeeting(ctx context.Context, spec MeetingCreate) (*Meeting, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/api/v1/meetings", spec)
	if err != nil {
		return nil, err
	}

	var meeting Meeting
	if err := json.Unmarshal(respBody, &meeting); err != nil {
		return nil, fmt.Errorf("parsing created meeting: %w", err)
	}
	return &meeting, nil
}

// GetCurrentUser returns the user the client authenticated as.
func (c *Client) GetCurrentUser(ctx context.Context) (*User, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	userID := c.tokenUserID
	c.mu.Unlock()
	if userID == 0 {
		return nil, fmt.Errorf("token grant carried no user id")
	}

	respBody, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", userID), nil)
	if err != nil {
		return nil, err
	}

	var user User
	if err := json.Unmarshal(respBody, &user); err != nil {
		return nil, fmt.Errorf("parsing user: %w", err)
	}
	return &user, nil
}

// HealthCheck verifies the root server is reachable and credentials work.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.GetFormats(ctx)
	return err
}
