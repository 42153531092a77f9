// Package api is a client for the wallet backend REST API.
//
// Every request identifies the user with the opaque Telegram init data string.
// The client has no cache of its own; package wallet puts one in front of it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/balansai/walletkit/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds every request so a hung backend never pins a fetch
	DefaultTimeout = 10 * time.Second

	HeaderInitData  = "X-Telegram-Init-Data"
	HeaderRequestID = "X-Request-ID"
)

// Client calls the wallet backend
type Client struct {
	http       *http.Client
	baseURL    *url.URL
	initData   string
	testUserID string
	timeout    time.Duration
	log        logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout bounds every request by d; non-positive values keep DefaultTimeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithInitData sets the Telegram WebApp init data sent with every request
func WithInitData(initData string) Option {
	return func(c *Client) { c.initData = initData }
}

// WithTestUserID impersonates a user on a backend running in debug mode.
// It is only sent while no init data is configured.
func WithTestUserID(id string) Option {
	return func(c *Client) { c.testUserID = id }
}

// WithLogger sets the logger; the default is logger.Default
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for the backend at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrEmptyBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, ErrInvalidBaseURL(baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, ErrInvalidBaseURL(baseURL, ErrEmptyBaseURL)
	}

	c := &Client{
		http:    http.DefaultClient,
		baseURL: u,
		timeout: DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	c.log = logger.Named(logger.OrDefault(c.log), "api")
	return c, nil
}

func (c *Client) newReq(ctx context.Context, method, p string, q url.Values, body any) (*http.Request, error) {
	u := *c.baseURL
	u.Path = path.Join(u.Path, p)

	qq := u.Query()
	for k, vs := range q {
		for _, v := range vs {
			qq.Add(k, v)
		}
	}
	if c.initData == "" && c.testUserID != "" {
		qq.Set("test_user_id", c.testUserID)
	}
	u.RawQuery = qq.Encode()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderInitData, c.initData)
	req.Header.Set(HeaderRequestID, uuid.NewString())
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, p string, q url.Values, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newReq(ctx, method, p, q, in)
	if err != nil {
		return ErrRequest(method, p, err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed",
			zap.String("method", method),
			zap.String("path", p),
			zap.String("request_id", req.Header.Get(HeaderRequestID)),
			zap.Error(err),
		)
		return ErrRequest(method, p, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ErrRequest(method, p, err)
	}

	c.log.Debug("request",
		zap.String("method", method),
		zap.String("path", p),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", req.Header.Get(HeaderRequestID)),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newError(method, p, resp.StatusCode, body)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return ErrDecode(p, err)
	}
	return nil
}

// newError turns an error response into *Error; the backend sends {"error": "..."}
func newError(method, p string, status int, body []byte) *Error {
	e := &Error{Method: method, Path: p, Status: status}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		e.Message = payload.Error
	} else {
		e.Message = strings.TrimSpace(string(body))
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}

	if status == http.StatusNotFound && e.Message == "User not found" {
		e.Code = CodeUserNotFound
	}
	return e
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
