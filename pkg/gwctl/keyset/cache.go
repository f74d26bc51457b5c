package keyset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/gwctl/gwctl/pkg/gwctl/client"
	"github.com/gwctl/gwctl/pkg/gwctl/errdefs"
	"github.com/gwctl/gwctl/pkg/gwctl/fsutil"
	"github.com/gwctl/gwctl/pkg/gwctl/logging"
)

const (
	DefaultTTL          = time.Hour
	DefaultJWKSPath     = "/api/.well-known/jwks.json"
	DefaultFetchTimeout = 10 * time.Second
	DefaultFileName     = "jwks_cache.json"
)

// Options configures a Cache. Path is required; the rest have defaults.
type Options struct {
	Path       string
	TTL        time.Duration
	JWKSPath   string
	Timeout    time.Duration
	Logger     *zap.SugaredLogger
	Now        func() time.Time
	HTTPClient *resty.Client
}

// Cache serves key sets from memory, then from its file, then from the issuer.
type Cache struct {
	path     string
	ttl      time.Duration
	jwksPath string
	timeout  time.Duration
	log      *zap.SugaredLogger
	now      func() time.Time
	http     *resty.Client
	memory   *gocache.Cache
}

func New(opts Options) (*Cache, error) {
	if opts.Path == "" {
		return nil, errors.New("key set cache path is required")
	}
	c := &Cache{
		path:     opts.Path,
		ttl:      opts.TTL,
		jwksPath: opts.JWKSPath,
		timeout:  opts.Timeout,
		log:      logging.OrNop(opts.Logger),
		now:      opts.Now,
		http:     opts.HTTPClient,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.jwksPath == "" {
		c.jwksPath = DefaultJWKSPath
	}
	if !strings.HasPrefix(c.jwksPath, "/") {
		c.jwksPath = "/" + c.jwksPath
	}
	if c.timeout <= 0 {
		c.timeout = DefaultFetchTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.http == nil {
		rc, err := client.NewHTTP(client.HTTPOptions{Timeout: c.timeout, Logger: c.log})
		if err != nil {
			return nil, err
		}
		c.http = rc
	}
	// entries carry their own expiry; no janitor needed for a short-lived process
	c.memory = gocache.New(c.ttl, 0)
	return c, nil
}

// Path returns the cache file location.
func (c *Cache) Path() string {
	return c.path
}

// TTL returns the lifetime applied to newly fetched sets.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// KeySet makes Cache usable as the validator's key source.
func (c *Cache) KeySet(ctx context.Context, issuerOrigin string, forceRefresh bool) (*Set, error) {
	return c.Get(ctx, issuerOrigin, forceRefresh)
}

// Get returns the key set for issuerOrigin. Unless forceRefresh is set, a fresh
// cached set is returned without any network call. Failures are never retried.
func (c *Cache) Get(ctx context.Context, issuerOrigin string, forceRefresh bool) (*Set, error) {
	origin := strings.TrimRight(strings.TrimSpace(issuerOrigin), "/")
	if origin == "" {
		return nil, errors.New("issuer origin is required")
	}
	now := c.now()

	if !forceRefresh {
		if set, ok := c.fromMemory(origin, now); ok {
			c.log.Debugw("Using in-memory key set", "issuer", origin, "keys", len(set.Keys))
			return set, nil
		}
		if cached, ok := c.fromFile(origin, now); ok {
			c.log.Debugw("Using cached key set", "path", c.path, "keys", len(cached.JWKS.Keys), "cached_at", cached.CachedAt)
			c.remember(origin, cached, now)
			return &cached.JWKS, nil
		}
	} else {
		c.log.Debugw("Forcing key set refresh", "issuer", origin)
	}

	set, err := c.fetch(ctx, origin)
	if err != nil {
		return nil, err
	}
	if set.Empty() {
		return nil, errdefs.New(errdefs.KindKeySetEmpty, fmt.Errorf("issuer %s published no keys", origin))
	}

	cached := &Cached{
		JWKS:       *set,
		CachedAt:   now.Unix(),
		TTLSeconds: int64(c.ttl / time.Second),
		Issuer:     origin,
	}
	if err := c.save(cached); err != nil {
		return nil, err
	}
	c.remember(origin, cached, now)
	c.log.Infow("Fetched signing keys", "issuer", origin, "keys", len(set.Keys))
	return &cached.JWKS, nil
}

// Load reads the cache file as stored. A missing file yields an error matching os.ErrNotExist.
func (c *Cache) Load() (*Cached, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, err
	}
	var cached Cached
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, errdefs.New(errdefs.KindParse, fmt.Errorf("decode %s: %w", c.path, err))
	}
	return &cached, nil
}

// Clear drops the memory tier and removes the cache file.
func (c *Cache) Clear() error {
	c.memory.Flush()
	if _, err := fsutil.RemoveIfExists(c.path); err != nil {
		return fmt.Errorf("failed to remove key set cache: %w", err)
	}
	return nil
}

func (c *Cache) fromMemory(origin string, now time.Time) (*Set, bool) {
	v, ok := c.memory.Get(origin)
	if !ok {
		return nil, false
	}
	cached, ok := v.(*Cached)
	if !ok || !cached.Fresh(now) {
		c.memory.Delete(origin)
		return nil, false
	}
	return &cached.JWKS, true
}

func (c *Cache) fromFile(origin string, now time.Time) (*Cached, bool) {
	cached, err := c.Load()
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, false
	case err != nil:
		c.log.Warnw("Ignoring unreadable key set cache", "path", c.path, "error", err)
		return nil, false
	}
	if cached.Issuer != "" && cached.Issuer != origin {
		c.log.Debugw("Key set cache belongs to another issuer", "cached", cached.Issuer, "issuer", origin)
		return nil, false
	}
	if cached.JWKS.Empty() {
		return nil, false
	}
	if !cached.Fresh(now) {
		c.log.Debugw("Key set cache is stale", "cached_at", cached.CachedAt, "ttl_seconds", cached.TTLSeconds)
		return nil, false
	}
	return cached, true
}

func (c *Cache) remember(origin string, cached *Cached, now time.Time) {
	if left := cached.Remaining(now); left > 0 {
		c.memory.Set(origin, cached, left)
	}
}

func (c *Cache) fetch(ctx context.Context, origin string) (*Set, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := origin + c.jwksPath
	c.log.Debugw("Fetching signing keys", "url", endpoint)
	resp, err := c.http.R().SetContext(ctx).Get(endpoint)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, ctxErr
		}
		return nil, errdefs.New(errdefs.KindNetwork, fmt.Errorf("failed to fetch %s: %w", endpoint, err))
	}
	if !resp.IsSuccess() {
		return nil, errdefs.HTTPStatus(resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	var set Set
	if err := json.Unmarshal(resp.Body(), &set); err != nil {
		return nil, errdefs.New(errdefs.KindParse, fmt.Errorf("decode key set from %s: %w", endpoint, err))
	}
	return &set, nil
}

func (c *Cache) save(cached *Cached) error {
	data, err := json.MarshalIndent(cached, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode key set cache: %w", err)
	}
	if err := fsutil.WriteFileAtomic(c.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write key set cache: %w", err)
	}
	return nil
}
