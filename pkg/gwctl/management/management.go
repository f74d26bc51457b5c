// Package management talks to the management API of a registered gateway
// instance. Responses are free-form JSON and are returned decoded, with
// numbers kept as json.Number.
package management

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/gwctl/gwctl/pkg/gwctl/client"
	"github.com/gwctl/gwctl/pkg/gwctl/errdefs"
	"github.com/gwctl/gwctl/pkg/gwctl/logging"
	"github.com/gwctl/gwctl/pkg/gwctl/registry"
)

// Resources under the instance path prefix.
const (
	ResourceInfo      = "info"
	ResourcePipelines = "pipelines"
	ResourceRoutes    = "routes"
)

type Client struct {
	http *resty.Client
	log  *zap.SugaredLogger
}

// New uses rc when given, else a default client without TLS settings.
func New(rc *resty.Client, log *zap.SugaredLogger) (*Client, error) {
	log = logging.OrNop(log)
	if rc == nil {
		var err error
		rc, err = client.NewHTTP(client.HTTPOptions{Logger: log})
		if err != nil {
			return nil, err
		}
	}
	return &Client{http: rc, log: log}, nil
}

func (c *Client) Info(ctx context.Context, inst registry.Instance) (any, error) {
	return c.Get(ctx, inst, ResourceInfo)
}

func (c *Client) Pipelines(ctx context.Context, inst registry.Instance) (any, error) {
	return c.Get(ctx, inst, ResourcePipelines)
}

func (c *Client) Routes(ctx context.Context, inst registry.Instance) (any, error) {
	return c.Get(ctx, inst, ResourceRoutes)
}

// Get fetches GET <base>/<resource>.
func (c *Client) Get(ctx context.Context, inst registry.Instance, resource string) (any, error) {
	return c.do(ctx, http.MethodGet, inst.BaseURL()+"/"+strings.Trim(resource, "/"))
}

// Reload asks the instance to reload its configuration. An empty response
// body yields a nil result.
func (c *Client) Reload(ctx context.Context, inst registry.Instance) (any, error) {
	return c.do(ctx, http.MethodPost, inst.ReloadURL())
}

func (c *Client) do(ctx context.Context, method, endpoint string) (any, error) {
	c.log.Debugw("Calling management API", "method", method, "url", endpoint)
	resp, err := c.http.R().SetContext(ctx).Execute(method, endpoint)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errdefs.New(errdefs.KindNetwork, fmt.Errorf("%s %s: %w", method, endpoint, err))
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, errdefs.HTTPStatus(resp.StatusCode(), strings.TrimSpace(resp.String())))
	}
	body := bytes.TrimSpace(resp.Body())
	if len(body) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, errdefs.New(errdefs.KindParse, fmt.Errorf("parse response from %s: %w", endpoint, err))
	}
	return out, nil
}

// Collection returns v[key] when v is an object holding an array under key,
// else v itself.
func Collection(v any, key string) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return v
	}
	if arr, ok := obj[key].([]any); ok {
		return arr
	}
	return v
}
