// Package keyset fetches the issuer's published signing keys and caches them
// on disk and in memory for a configurable time-to-live.
package keyset

import (
	"time"
)

// AlgRS256 is the only signing algorithm gwctl verifies.
const AlgRS256 = "RS256"

// Key is one entry of a JWKS document. N and E are base64url encoded.
type Key struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Kid string `json:"kid"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// Set is a JWKS document.
type Set struct {
	Keys []Key `json:"keys"`
}

// Find returns the key whose kid equals kid.
func (s *Set) Find(kid string) (*Key, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Keys {
		if s.Keys[i].Kid == kid {
			return &s.Keys[i], true
		}
	}
	return nil, false
}

// FirstWithAlgorithm returns the first key advertising alg, in document order.
func (s *Set) FirstWithAlgorithm(alg string) (*Key, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Keys {
		if s.Keys[i].Alg == alg {
			return &s.Keys[i], true
		}
	}
	return nil, false
}

// Empty reports whether the set holds no keys.
func (s *Set) Empty() bool {
	return s == nil || len(s.Keys) == 0
}

// Cached is the on-disk representation of a fetched set.
type Cached struct {
	JWKS       Set    `json:"jwks"`
	CachedAt   int64  `json:"cached_at"`
	TTLSeconds int64  `json:"ttl_seconds"`
	Issuer     string `json:"issuer,omitempty"`
}

// Fresh reports whether now - CachedAt <= TTLSeconds.
func (c *Cached) Fresh(now time.Time) bool {
	return now.Unix()-c.CachedAt <= c.TTLSeconds
}

// Remaining is how long the entry stays fresh after now; zero once stale.
func (c *Cached) Remaining(now time.Time) time.Duration {
	left := c.CachedAt + c.TTLSeconds - now.Unix()
	if left < 0 {
		return 0
	}
	return time.Duration(left) * time.Second
}
