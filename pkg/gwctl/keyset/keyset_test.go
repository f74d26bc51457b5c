package keyset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCachedFresh(t *testing.T) {
	tests := []struct {
		name   string
		cached Cached
		now    int64
		want   bool
	}{
		{name: "epoch entry is stale", cached: Cached{CachedAt: 0, TTLSeconds: 3600}, now: 3601, want: false},
		{name: "boundary is fresh", cached: Cached{CachedAt: 1000, TTLSeconds: 60}, now: 1060, want: true},
		{name: "one second past", cached: Cached{CachedAt: 1000, TTLSeconds: 60}, now: 1061, want: false},
		{name: "zero ttl same second", cached: Cached{CachedAt: 50, TTLSeconds: 0}, now: 50, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cached.Fresh(time.Unix(tt.now, 0)))
		})
	}
}

func TestCachedRemaining(t *testing.T) {
	c := Cached{CachedAt: 100, TTLSeconds: 60}
	assert.Equal(t, 30*time.Second, c.Remaining(time.Unix(130, 0)))
	assert.Equal(t, time.Duration(0), c.Remaining(time.Unix(500, 0)))
}

func TestSetLookup(t *testing.T) {
	set := &Set{Keys: []Key{
		{Kty: "RSA", Kid: "a", Alg: "RS512"},
		{Kty: "RSA", Kid: "b", Alg: AlgRS256},
		{Kty: "RSA", Kid: "c", Alg: AlgRS256},
	}}

	k, ok := set.Find("c")
	assert.True(t, ok)
	assert.Equal(t, "c", k.Kid)

	_, ok = set.Find("zz")
	assert.False(t, ok)

	k, ok = set.FirstWithAlgorithm(AlgRS256)
	assert.True(t, ok)
	assert.Equal(t, "b", k.Kid)

	var nilSet *Set
	assert.True(t, nilSet.Empty())
	_, ok = nilSet.Find("a")
	assert.False(t, ok)
}
