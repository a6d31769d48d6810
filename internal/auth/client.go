package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/msalah0e/mindmap/internal/apperr"
)

// Paths of the account endpoints on a document server.
const (
	RegisterPath = "/v1/auth/register"
	LoginPath    = "/v1/auth/login"
)

// LoginRequest is the body of a login call.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn is the answer to a successful register or login call.
type SignIn struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// accountsClient calls the account endpoints of a document server.
type accountsClient struct {
	base   string
	client *http.Client
}

func newAccountsClient(baseURL string, timeout time.Duration) *accountsClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &accountsClient{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (c *accountsClient) register(ctx context.Context, reg Registration) (User, string, error) {
	return c.post(ctx, "register", RegisterPath, reg)
}

func (c *accountsClient) login(ctx context.Context, email, password string) (User, string, error) {
	return c.post(ctx, "login", LoginPath, LoginRequest{Email: email, Password: password})
}

func (c *accountsClient) post(ctx context.Context, op, path string, body any) (User, string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return User{}, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return User{}, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return User{}, "", apperr.Unavailable(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		text := strings.TrimSpace(string(msg))
		switch resp.StatusCode {
		case http.StatusBadRequest:
			return User{}, "", apperr.Validation("%s", strings.TrimSuffix(text, ": "+apperr.ErrValidationFailed.Error()))
		case http.StatusUnauthorized:
			return User{}, "", apperr.Validation("invalid email or password")
		default:
			return User{}, "", apperr.Unavailable(op, fmt.Errorf("status %d: %s", resp.StatusCode, text))
		}
	}

	var out SignIn
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return User{}, "", apperr.Unavailable(op, fmt.Errorf("decode answer: %w", err))
	}
	if out.Token == "" {
		return User{}, "", apperr.Unavailable(op, fmt.Errorf("server returned no token"))
	}
	return out.User, out.Token, nil
}
