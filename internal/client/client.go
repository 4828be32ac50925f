// Package client is a Go client for the HocusFocus API. It keeps the login
// state in a session.Store and attaches the bearer token to every call.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/celiaho/HocusFocusToDo/internal/model"
	"github.com/celiaho/HocusFocusToDo/internal/session"
)

// ErrSuperseded is returned by Login when a newer login or logout started
// before its response arrived. The stored session is left to the newer call.
var ErrSuperseded = errors.New("login superseded by a newer session change")

// Client talks to the API on behalf of one signed-in user.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      session.Store
	logger     *slog.Logger
	now        func() time.Time

	// mu orders session changes; generation counts logins and logouts.
	mu         sync.Mutex
	generation uint64
}

// New creates a Client for the API at baseURL. A nil httpClient means
// http.DefaultClient and a nil logger means slog.Default.
func New(baseURL string, store session.Store, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		store:      store,
		logger:     logger,
		now:        time.Now,
	}
}

// APIError is a non-2xx answer from the API. It unwraps to the matching
// model error so callers can use errors.Is.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.StatusCode, e.Message)
}

var messageErrors = map[string]error{
	model.ErrInvalidCredentials.Error(): model.ErrInvalidCredentials,
	model.ErrInvalidResetCode.Error():   model.ErrInvalidResetCode,
	model.ErrSelfShare.Error():          model.ErrSelfShare,
	model.ErrDuplicateEmail.Error():     model.ErrDuplicateEmail,
}

// Unwrap maps the answer back to a model error.
func (e *APIError) Unwrap() error {
	if err, ok := messageErrors[e.Message]; ok {
		return err
	}
	switch e.StatusCode {
	case http.StatusBadRequest:
		return model.ErrValidation
	case http.StatusUnauthorized:
		return model.ErrAuthentication
	case http.StatusForbidden:
		return model.ErrForbidden
	case http.StatusNotFound:
		return model.ErrNotFound
	case http.StatusConflict:
		return model.ErrDuplicateEmail
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return model.ErrTransport
	}
	return nil
}

// Session returns the stored session, if any.
func (c *Client) Session() (session.Session, bool) {
	return c.store.Current()
}

// Authenticated reports whether a session usable right now is stored.
func (c *Client) Authenticated() bool {
	return c.store.IsValid(c.now())
}

// Login exchanges credentials for a token and stores the new session. The
// session is stored only if no newer Login or Logout started meanwhile and
// ctx is still live.
func (c *Client) Login(ctx context.Context, email, password string) (session.Session, error) {
	gen := c.begin()

	var resp model.LoginResponse
	req := model.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", req, &resp); err != nil {
		return session.Session{}, err
	}

	sess, err := session.FromToken(resp.Token)
	if err != nil {
		return session.Session{}, fmt.Errorf("%w: %v", model.ErrAuthentication, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return session.Session{}, err
	}
	if gen != c.generation {
		return session.Session{}, ErrSuperseded
	}
	if err := c.store.Save(sess); err != nil {
		return session.Session{}, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// Logout forgets the session and its drafts. Logins still in flight will
// not store their result.
func (c *Client) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return c.store.Clear()
}

func (c *Client) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return c.generation
}

// Signup registers an account. It does not sign in.
func (c *Client) Signup(ctx context.Context, req model.SignupRequest) (model.ProfileResponse, error) {
	var resp model.ProfileResponse
	err := c.do(ctx, http.MethodPost, "/auth/signup", "", req, &resp)
	return resp, err
}

// ForgotPassword asks for a reset code to be sent to email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/forgot-password", "", model.ForgotPasswordRequest{Email: email}, nil)
}

// ResetPassword redeems a reset code.
func (c *Client) ResetPassword(ctx context.Context, req model.ResetPasswordRequest) error {
	return c.do(ctx, http.MethodPost, "/auth/reset-password", "", req, nil)
}

// authed performs a call with the stored token. Without a usable session it
// fails with model.ErrAuthentication and sends nothing.
func (c *Client) authed(ctx context.Context, method, path string, body, out any) error {
	sess, ok := c.store.Current()
	if !ok || !sess.ValidAt(c.now()) {
		return model.ErrAuthentication
	}
	return c.do(ctx, method, path, sess.Token, body, out)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s %s: %v", model.ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		}
		if resp.StatusCode == http.StatusUnauthorized && token != "" {
			c.dropSession(token)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// dropSession clears the session after the server rejected token, unless a
// newer login already replaced it.
func (c *Client) dropSession(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.store.Current()
	if !ok || cur.Token != token {
		return
	}
	if err := c.store.Clear(); err != nil {
		c.logger.Warn("failed to clear rejected session", "error", err)
		return
	}
	c.logger.Info("session cleared after the server rejected its token")
}

func escape(s string) string {
	return url.PathEscape(s)
}
