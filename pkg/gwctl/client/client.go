package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/gwctl/gwctl/pkg/gwctl/errdefs"
	"github.com/gwctl/gwctl/pkg/gwctl/identity"
	"github.com/gwctl/gwctl/pkg/gwctl/logging"
)

const (
	DefaultStartLoginPath = "/api/cli/start-login"
	DefaultCheckLoginPath = "/api/cli/check-login"
)

// Poll statuses reported by check-login.
const (
	StatusPending       = "pending"
	StatusAuthenticated = "authenticated"
	StatusExpired       = "expired"
	StatusInvalid       = "invalid"
)

type StartLoginResponse struct {
	DeviceToken      string  `json:"device_token"`
	VerificationURL  string  `json:"verification_url"`
	ExpiresInSeconds float64 `json:"expires_in_seconds"`
}

// maxLifetimeSeconds keeps ExpiresIn within the range of time.Duration.
const maxLifetimeSeconds = math.MaxInt64 / int64(time.Second)

// ExpiresIn floors the advertised lifetime to whole seconds. Negative values
// become zero and very large ones saturate instead of overflowing.
func (r *StartLoginResponse) ExpiresIn() time.Duration {
	secs := math.Floor(r.ExpiresInSeconds)
	switch {
	case !(secs > 0):
		return 0
	case secs >= float64(maxLifetimeSeconds):
		return time.Duration(maxLifetimeSeconds) * time.Second
	}
	return time.Duration(secs) * time.Second
}

type CheckLoginResponse struct {
	Status    string             `json:"status"`
	Token     string             `json:"token,omitempty"`
	ExpiresIn *int64             `json:"expires_in,omitempty"`
	User      *identity.UserInfo `json:"user,omitempty"`
	Message   string             `json:"message,omitempty"`
}

type Client struct {
	baseURL   string
	http      *resty.Client
	startPath string
	checkPath string
	log       *zap.SugaredLogger
}

type Option func(*Client) error

func New(server string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(server) == "" {
		return nil, errors.New("server is required")
	}
	parsed, err := url.Parse(server)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid server: %q", server)
	}
	c := &Client{
		baseURL:   strings.TrimRight(server, "/"),
		startPath: DefaultStartLoginPath,
		checkPath: DefaultCheckLoginPath,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.log = logging.OrNop(c.log)
	if c.http == nil {
		rc, err := NewHTTP(HTTPOptions{Logger: c.log})
		if err != nil {
			return nil, err
		}
		c.http = rc
	}
	return c, nil
}

func WithHTTPClient(rc *resty.Client) Option {
	return func(c *Client) error {
		if rc == nil {
			return errors.New("http client is nil")
		}
		c.http = rc
		return nil
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) error {
		c.log = log
		return nil
	}
}

// WithEndpoints overrides the login paths; empty values keep the defaults.
func WithEndpoints(startPath, checkPath string) Option {
	return func(c *Client) error {
		if startPath != "" {
			c.startPath = "/" + strings.Trim(startPath, "/")
		}
		if checkPath != "" {
			c.checkPath = "/" + strings.Trim(checkPath, "/")
		}
		return nil
	}
}

// BaseURL is the issuer origin the client was built for.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// StartLogin asks the issuer for a new device token.
func (c *Client) StartLogin(ctx context.Context) (*StartLoginResponse, error) {
	var out StartLoginResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+c.startPath, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckLogin polls the state of a device token once.
func (c *Client) CheckLogin(ctx context.Context, deviceToken string) (*CheckLoginResponse, error) {
	if deviceToken == "" {
		return nil, errors.New("device token is required")
	}
	var out CheckLoginResponse
	endpoint := c.baseURL + c.checkPath + "/" + url.PathEscape(deviceToken)
	if err := c.do(ctx, http.MethodGet, endpoint, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, out any) error {
	resp, err := c.http.R().SetContext(ctx).Execute(method, endpoint)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errdefs.New(errdefs.KindNetwork, fmt.Errorf("failed to connect to %s: %w", endpoint, err))
	}
	if !resp.IsSuccess() {
		body := strings.TrimSpace(resp.String())
		c.log.Debugw("non-success response", "url", endpoint, "status", resp.StatusCode(), "body", body)
		return errdefs.HTTPStatus(resp.StatusCode(), body)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errdefs.New(errdefs.KindParse, fmt.Errorf("failed to parse response from %s: %w", endpoint, err))
	}
	return nil
}
