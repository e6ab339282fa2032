// Package presupuestos is the HTTP client of the budget record collection.
// It maps CRUD calls onto {base}/presupuestos.json and
// {base}/presupuestos/{id}.json and returns the backend's replies untouched.
package presupuestos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"presupuestos/internal/core"
	applog "presupuestos/internal/log"
)

// Collection is the name of the budget collection on the backend.
const Collection = "presupuestos"

// Response is a raw backend reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       json.RawMessage
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Empty reports whether the body is missing or JSON null, which is how the
// backend answers reads of absent items.
func (r *Response) Empty() bool {
	b := bytes.TrimSpace(r.Body)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}

// CreatedID returns the id the backend assigned on create ({"name": id}).
func (r *Response) CreatedID() (string, error) {
	var reply struct {
		Name string `json:"name"`
	}
	if err := r.Decode(&reply); err != nil {
		return "", err
	}
	if reply.Name == "" {
		return "", errors.New("create response has no name")
	}
	return reply.Name, nil
}

// StatusError is returned with the response when the backend answers with a
// non-2xx status.
type StatusError struct {
	Method   string
	URL      string
	Response *Response
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Response.StatusCode,
		strings.TrimSpace(string(e.Response.Body)))
}

// Client issues the CRUD requests. It is stateless and safe for concurrent use.
type Client struct {
	base      *url.URL
	http      *http.Client
	authToken string
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a client for the collection rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:   u,
		http:   NewHTTPClient(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithAuth returns a copy that sends idToken as the auth query parameter.
func (c *Client) WithAuth(idToken string) *Client {
	cp := *c
	cp.authToken = idToken
	return &cp
}

// Create posts record to the collection. The assigned id is in the reply.
func (c *Client) Create(ctx context.Context, record core.Presupuesto) (*Response, error) {
	return c.send(ctx, http.MethodPost, c.collectionURL(), record, applog.OpCreate)
}

// List reads the whole collection, a mapping from id to record.
func (c *Client) List(ctx context.Context) (*Response, error) {
	return c.send(ctx, http.MethodGet, c.collectionURL(), nil, applog.OpList)
}

// Get reads one record.
func (c *Client) Get(ctx context.Context, id string) (*Response, error) {
	return c.send(ctx, http.MethodGet, c.itemURL(id), nil, applog.OpRead)
}

// Update replaces the record stored under id. The id is never taken from
// the record body.
func (c *Client) Update(ctx context.Context, record core.Presupuesto, id string) (*Response, error) {
	return c.send(ctx, http.MethodPut, c.itemURL(id), record, applog.OpUpdate)
}

// Delete removes the record stored under id.
func (c *Client) Delete(ctx context.Context, id string) (*Response, error) {
	return c.send(ctx, http.MethodDelete, c.itemURL(id), nil, applog.OpDelete)
}

func (c *Client) collectionURL() string {
	return c.resolve(Collection)
}

func (c *Client) itemURL(id string) string {
	return c.resolve(Collection, id)
}

// resolve joins escaped segments under the base path and appends .json.
func (c *Client) resolve(segments ...string) string {
	raw := strings.TrimRight(c.base.EscapedPath(), "/")
	for _, s := range segments {
		raw += "/" + url.PathEscape(s)
	}
	raw += ".json"

	u := *c.base
	u.RawPath = raw
	u.Path, _ = url.PathUnescape(raw)
	if c.authToken != "" {
		q := u.Query()
		q.Set("auth", c.authToken)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) send(ctx context.Context, method, target string, record core.Presupuesto, op string) (*Response, error) {
	var body io.Reader
	if method == http.MethodPost || method == http.MethodPut {
		payload, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("encode presupuesto: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       json.RawMessage(raw),
	}

	c.logger.DebugContext(ctx, "Presupuestos request completed",
		applog.FieldOperation, op,
		applog.FieldMethod, method,
		applog.FieldPath, req.URL.Path,
		applog.FieldStatusCode, resp.StatusCode,
		applog.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &StatusError{Method: method, URL: redact(req.URL), Response: out}
	}
	return out, nil
}

func redact(u *url.URL) string {
	cp := *u
	cp.RawQuery = ""
	return cp.String()
}

// NewHTTPClient returns a pooled client with connect and header timeouts.
// No overall timeout: callers bound requests with their context.
func NewHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{Transport: transport}
}
