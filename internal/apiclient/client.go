package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/abdelhadiDevWeb/labocart/internal/auth"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const DefaultBaseURL = "http://localhost:8000/api"

var (
	// ErrConnection means no response came back at all.
	ErrConnection       = errors.New("connection failed")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Response is the envelope every backend endpoint answers with.
type Response[T any] struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    *T       `json:"data,omitempty"`
	Token   string   `json:"token,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// RejectedError is a non-2xx answer from the backend.
type RejectedError struct {
	Status  int
	Message string
	Errors  []string
}

func (e *RejectedError) Error() string {
	return e.Message
}

// TokenStore holds the bearer token between calls.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(cl *Client) { cl.log = log }
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.http.Timeout = d }
}

// Client talks to the marketplace backend. Calls are single attempts; a
// failure is returned to the caller and never retried.
type Client struct {
	baseURL string
	tokens  TokenStore
	http    *http.Client
	log     logrus.FieldLogger
}

func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
		log: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health reports whether the backend answers its health endpoint.
func (c *Client) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warnf("backend health check failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// RegisterClient validates the form, signs the client up and keeps the
// returned token.
func (c *Client) RegisterClient(ctx context.Context, form ClientRegistration) (*Response[ClientData], error) {
	if err := Validate(form); err != nil {
		return nil, err
	}
	var out Response[ClientData]
	if err := c.do(ctx, http.MethodPost, "/client/register", form, false, "Registration failed", &out); err != nil {
		return nil, err
	}
	if err := c.keepToken(ctx, out.Token); err != nil {
		return &out, err
	}
	return &out, nil
}

// Login keeps the returned token on success.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Response[ClientData], error) {
	if err := Validate(creds); err != nil {
		return nil, err
	}
	var out Response[ClientData]
	if err := c.do(ctx, http.MethodPost, "/client/login", creds, false, "Login failed", &out); err != nil {
		return nil, err
	}
	if err := c.keepToken(ctx, out.Token); err != nil {
		return &out, err
	}
	return &out, nil
}

func (c *Client) Profile(ctx context.Context) (*Response[ClientData], error) {
	var out Response[ClientData]
	if err := c.do(ctx, http.MethodGet, "/client/profile", nil, true, "Failed to fetch profile", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, form ProfileUpdate) (*Response[ClientData], error) {
	if err := Validate(form); err != nil {
		return nil, err
	}
	var out Response[ClientData]
	if err := c.do(ctx, http.MethodPut, "/client/profile", form, true, "Failed to update profile", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdatePassword(ctx context.Context, form PasswordUpdate) (*Response[struct{}], error) {
	if err := Validate(form); err != nil {
		return nil, err
	}
	var out Response[struct{}]
	if err := c.do(ctx, http.MethodPut, "/client/password", form, true, "Failed to update password", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Devices(ctx context.Context) (*Response[DeviceList], error) {
	var out Response[DeviceList]
	if err := c.do(ctx, http.MethodGet, "/client/devices", nil, true, "Failed to fetch devices", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadSupplierDocuments sends the three supplier PDFs as one multipart
// form. All three must be present before anything is sent.
func (c *Client) UploadSupplierDocuments(ctx context.Context, docs SupplierDocuments) (*Response[struct{}], error) {
	if err := Validate(docs); err != nil {
		return nil, err
	}
	token, err := c.bearer(ctx)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	parts := []struct {
		field string
		doc   *Document
	}{
		{"Tax_number", docs.TaxNumber},
		{"identity", docs.Identity},
		{"commercial_register", docs.CommercialRegister},
	}
	for _, p := range parts {
		w, err := mw.CreateFormFile(p.field, p.doc.Name)
		if err != nil {
			return nil, fmt.Errorf("build upload form: %w", err)
		}
		if _, err := w.Write(p.doc.Data); err != nil {
			return nil, fmt.Errorf("build upload form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/supplier/documents", &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	var out Response[struct{}]
	if err := c.send(req, "Une erreur est survenue lors de l'upload", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) keepToken(ctx context.Context, token string) error {
	if token == "" || c.tokens == nil {
		return nil
	}
	if err := c.tokens.SetToken(ctx, token); err != nil {
		return fmt.Errorf("keep token: %w", err)
	}
	return nil
}

func (c *Client) bearer(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", ErrNotAuthenticated
	}
	token, err := c.tokens.Token(ctx)
	if errors.Is(err, auth.ErrNoToken) {
		return "", ErrNotAuthenticated
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, authed bool, fallback string, out any) error {
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
	req.Header.Set("Content-Type", "application/json")

	if authed {
		token, err := c.bearer(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.send(req, fallback, out)
}

func (c *Client) send(req *http.Request, fallback string, out any) error {
	c.log.Debugf("%s %s", req.Method, req.URL)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Errorf("%s %s: %v", req.Method, req.URL.Path, err)
		return fmt.Errorf("%w: %s: %w", ErrConnection, c.baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrConnection, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return rejected(resp, raw, fallback)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// rejected builds the error for a non-2xx answer: the body's message when
// there is one, the endpoint fallback when the body is JSON without one, and
// the bare status when the body is not JSON at all.
func rejected(resp *http.Response, raw []byte, fallback string) *RejectedError {
	var body struct {
		Message string   `json:"message"`
		Errors  []string `json:"errors"`
	}
	e := &RejectedError{Status: resp.StatusCode}

	if err := json.Unmarshal(raw, &body); err != nil {
		e.Message = fmt.Sprintf("Server error: %s", resp.Status)
	} else if body.Message != "" {
		e.Message = body.Message
	} else {
		e.Message = fmt.Sprintf("%s (%d)", fallback, resp.StatusCode)
	}

	e.Errors = body.Errors
	if len(e.Errors) == 0 {
		e.Errors = []string{e.Message}
	}
	return e
}
