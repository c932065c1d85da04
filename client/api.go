// Package client is the consumer side of direct-chat: a REST client, a
// websocket push channel, and ChatState, which reconciles fetched
// history with pushed messages for the active conversation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"direct-chat/models"
)

// SendRequest is the body of a send call.
type SendRequest struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// API is the subset of the REST surface ChatState needs.
type API interface {
	Users(ctx context.Context) ([]models.User, error)
	History(ctx context.Context, otherUserID string) ([]models.Message, error)
	Send(ctx context.Context, receiverID string, req SendRequest) (*models.Message, error)
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("direct-chat error %d: %s", e.Status, e.Message)
}

// RESTClient talks to the direct-chat HTTP API.
type RESTClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewRESTClient creates a client for baseURL, e.g. "http://localhost:8082".
func NewRESTClient(baseURL string) *RESTClient {
	return &RESTClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// AuthResponse is returned by Login and Register.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login authenticates and stores the token on the client.
func (c *RESTClient) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	})
}

// Register creates an account and stores the token on the client.
func (c *RESTClient) Register(ctx context.Context, username, password, fullName string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/api/auth/register", map[string]string{
		"username": username,
		"password": password,
		"fullName": fullName,
	})
}

func (c *RESTClient) authenticate(ctx context.Context, path string, body any) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	c.Token = out.Token
	return &out, nil
}

// Users returns every user except the caller.
func (c *RESTClient) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/api/messages/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// History returns the caller's conversation with otherUserID.
func (c *RESTClient) History(ctx context.Context, otherUserID string) ([]models.Message, error) {
	var messages []models.Message
	if err := c.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(otherUserID), nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// Send posts a message to receiverID and returns the stored record.
func (c *RESTClient) Send(ctx context.Context, receiverID string, req SendRequest) (*models.Message, error) {
	var msg models.Message
	if err := c.do(ctx, http.MethodPost, "/api/messages/send/"+url.PathEscape(receiverID), req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// WebSocketURL returns the push endpoint for the current token.
func (c *RESTClient) WebSocketURL() (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {c.Token}}.Encode()
	return u.String(), nil
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &errResp)
		if errResp.Error == "" {
			errResp.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: errResp.Error}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}
