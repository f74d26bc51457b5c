package keyset

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gwctl/gwctl/pkg/gwctl/errdefs"
	"github.com/gwctl/gwctl/pkg/gwctl/internal/testkeys"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestCache(t *testing.T, clk *clock) *Cache {
	t.Helper()
	c, err := New(Options{
		Path:   filepath.Join(t.TempDir(), DefaultFileName),
		TTL:    time.Hour,
		Logger: zaptest.NewLogger(t).Sugar(),
		Now:    clk.Now,
	})
	require.NoError(t, err)
	return c
}

func TestGetFetchesAndPersists(t *testing.T) {
	key := testkeys.Generate(t, "k1")
	srv := testkeys.NewServer(t, testkeys.JWKS(t, key))
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCache(t, clk)

	set, err := c.Get(context.Background(), srv.URL+"/", false)
	require.NoError(t, err)
	require.Len(t, set.Keys, 1)
	assert.Equal(t, "k1", set.Keys[0].Kid)
	assert.Equal(t, "RSA", set.Keys[0].Kty)
	assert.Equal(t, 1, srv.Hits())

	cached, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, clk.now.Unix(), cached.CachedAt)
	assert.Equal(t, int64(3600), cached.TTLSeconds)
	assert.Equal(t, srv.URL, cached.Issuer)

	_, err = os.Stat(c.Path() + ".tmp")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	raw, err := os.ReadFile(c.Path())
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "jwks")
	assert.Contains(t, doc, "cached_at")
	assert.Contains(t, doc, "ttl_seconds")
}

func TestGetServesFreshCacheWithoutNetwork(t *testing.T) {
	key := testkeys.Generate(t, "k1")
	srv := testkeys.NewServer(t, testkeys.JWKS(t, key))
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCache(t, clk)

	_, err := c.Get(context.Background(), srv.URL, false)
	require.NoError(t, err)

	clk.now = clk.now.Add(30 * time.Minute)
	_, err = c.Get(context.Background(), srv.URL, false)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Hits())

	// a second process only has the file
	other, err := New(Options{Path: c.Path(), Now: clk.Now})
	require.NoError(t, err)
	_, err = other.Get(context.Background(), srv.URL, false)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Hits())
}

func TestGetRefetchesWhenStale(t *testing.T) {
	key := testkeys.Generate(t, "k1")
	srv := testkeys.NewServer(t, testkeys.JWKS(t, key))
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCache(t, clk)

	_, err := c.Get(context.Background(), srv.URL, false)
	require.NoError(t, err)

	clk.now = clk.now.Add(time.Hour + time.Second)
	_, err = c.Get(context.Background(), srv.URL, false)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Hits())

	cached, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, clk.now.Unix(), cached.CachedAt)
}

func TestGetForceRefreshReplacesWholesale(t *testing.T) {
	k1 := testkeys.Generate(t, "k1")
	k2 := testkeys.Generate(t, "k2")
	srv := testkeys.NewServer(t, testkeys.JWKS(t, k1))
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCache(t, clk)

	_, err := c.Get(context.Background(), srv.URL, false)
	require.NoError(t, err)

	srv.Respond(http.StatusOK, testkeys.JWKS(t, k2))
	set, err := c.Get(context.Background(), srv.URL, true)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Hits())
	require.Len(t, set.Keys, 1)
	assert.Equal(t, "k2", set.Keys[0].Kid)

	cached, err := c.Load()
	require.NoError(t, err)
	require.Len(t, cached.JWKS.Keys, 1)
	assert.Equal(t, "k2", cached.JWKS.Keys[0].Kid)
}

func TestGetIgnoresCacheOfOtherIssuer(t *testing.T) {
	key := testkeys.Generate(t, "k1")
	srv := testkeys.NewServer(t, testkeys.JWKS(t, key))
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCache(t, clk)

	foreign := Cached{
		JWKS:       Set{Keys: []Key{{Kty: "RSA", Kid: "other", Alg: AlgRS256, N: "AQAB", E: "AQAB"}}},
		CachedAt:   clk.now.Unix(),
		TTLSeconds: 3600,
		Issuer:     "https://elsewhere.example.com",
	}
	data, err := json.Marshal(foreign)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(c.Path(), data, 0o600))

	set, err := c.Get(context.Background(), srv.URL, false)
	require.NoError(t, err)
	assert.Equal(t, "k1", set.Keys[0].Kid)
	assert.Equal(t, 1, srv.Hits())
}

func TestGetTreatsCorruptFileAsMiss(t *testing.T) {
	key := testkeys.Generate(t, "k1")
	srv := testkeys.NewServer(t, testkeys.JWKS(t, key))
	c := newTestCache(t, &clock{now: time.Unix(1_700_000_000, 0)})
	require.NoError(t, os.WriteFile(c.Path(), []byte("{not json"), 0o600))

	set, err := c.Get(context.Background(), srv.URL, false)
	require.NoError(t, err)
	assert.Len(t, set.Keys, 1)
	assert.Equal(t, 1, srv.Hits())
}

func TestGetErrors(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}

	t.Run("empty key list", func(t *testing.T) {
		srv := testkeys.NewServer(t, []byte(`{"keys":[]}`))
		c := newTestCache(t, clk)
		_, err := c.Get(context.Background(), srv.URL, false)
		assert.True(t, errdefs.Is(err, errdefs.KindKeySetEmpty))
		_, statErr := os.Stat(c.Path())
		assert.True(t, errors.Is(statErr, os.ErrNotExist), "empty set must not be cached")
	})

	t.Run("http status", func(t *testing.T) {
		srv := testkeys.NewServer(t, nil)
		srv.Respond(http.StatusServiceUnavailable, []byte("maintenance"))
		c := newTestCache(t, clk)
		_, err := c.Get(context.Background(), srv.URL, false)
		var e *errdefs.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, errdefs.KindHTTPStatus, e.Kind)
		assert.Equal(t, http.StatusServiceUnavailable, e.StatusCode)
		assert.Equal(t, "maintenance", e.Body)
	})

	t.Run("malformed document", func(t *testing.T) {
		srv := testkeys.NewServer(t, []byte(`<html>`))
		c := newTestCache(t, clk)
		_, err := c.Get(context.Background(), srv.URL, false)
		assert.True(t, errdefs.Is(err, errdefs.KindParse))
	})

	t.Run("network", func(t *testing.T) {
		srv := testkeys.NewServer(t, nil)
		url := srv.URL
		srv.Close()
		c := newTestCache(t, clk)
		_, err := c.Get(context.Background(), url, false)
		assert.True(t, errdefs.Is(err, errdefs.KindNetwork))
	})

	t.Run("no retry after failure", func(t *testing.T) {
		srv := testkeys.NewServer(t, nil)
		srv.Respond(http.StatusInternalServerError, []byte("boom"))
		c := newTestCache(t, clk)
		_, err := c.Get(context.Background(), srv.URL, false)
		require.Error(t, err)
		assert.Equal(t, 1, srv.Hits())
	})
}

func TestClear(t *testing.T) {
	key := testkeys.Generate(t, "k1")
	srv := testkeys.NewServer(t, testkeys.JWKS(t, key))
	c := newTestCache(t, &clock{now: time.Unix(1_700_000_000, 0)})

	_, err := c.Get(context.Background(), srv.URL, false)
	require.NoError(t, err)
	require.NoError(t, c.Clear())

	_, err = c.Load()
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = c.Get(context.Background(), srv.URL, false)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Hits())

	require.NoError(t, c.Clear())
	require.NoError(t, c.Clear())
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	c, err := New(Options{Path: "x.json", JWKSPath: "keys.json"})
	require.NoError(t, err)
	assert.Equal(t, "/keys.json", c.jwksPath)
	assert.Equal(t, DefaultTTL, c.TTL())
	assert.Equal(t, DefaultFetchTimeout, c.timeout)
}
