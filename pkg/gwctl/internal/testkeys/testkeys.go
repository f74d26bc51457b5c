// Package testkeys builds RSA signing keys, JWKS documents and signed tokens
// for tests.
package testkeys

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/require"
)

const JWKSPath = "/api/.well-known/jwks.json"

// Key is an RSA key pair published under Kid.
type Key struct {
	Kid     string
	Private *rsa.PrivateKey
}

func Generate(t testing.TB, kid string) *Key {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &Key{Kid: kid, Private: priv}
}

// JWKS renders the public halves of keys as a JWKS document advertising RS256.
func JWKS(t testing.TB, keys ...*Key) []byte {
	t.Helper()
	set := jwk.NewSet()
	for _, k := range keys {
		pub, err := jwk.FromRaw(&k.Private.PublicKey)
		require.NoError(t, err)
		require.NoError(t, pub.Set(jwk.KeyIDKey, k.Kid))
		require.NoError(t, pub.Set(jwk.AlgorithmKey, jwa.RS256))
		require.NoError(t, pub.Set(jwk.KeyUsageKey, "sig"))
		require.NoError(t, set.AddKey(pub))
	}
	data, err := json.Marshal(set)
	require.NoError(t, err)
	return data
}

// Sign issues an RS256 token. headerKid is written to the header when non-empty;
// claims may carry a payload "kid" independently.
func Sign(t testing.TB, k *Key, headerKid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if headerKid != "" {
		tok.Header["kid"] = headerKid
	}
	signed, err := tok.SignedString(k.Private)
	require.NoError(t, err)
	return signed
}

// Server publishes body at JWKSPath and counts the requests it served.
type Server struct {
	*httptest.Server
	hits   atomic.Int32
	status atomic.Int32
	body   atomic.Value
}

func NewServer(t testing.TB, body []byte) *Server {
	t.Helper()
	s := &Server{}
	s.body.Store(body)
	s.status.Store(http.StatusOK)
	mux := http.NewServeMux()
	mux.HandleFunc(JWKSPath, func(w http.ResponseWriter, _ *http.Request) {
		s.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(s.status.Load()))
		_, _ = w.Write(s.body.Load().([]byte))
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *Server) Hits() int {
	return int(s.hits.Load())
}

// Respond changes what later requests receive.
func (s *Server) Respond(status int, body []byte) {
	s.status.Store(int32(status))
	s.body.Store(body)
}
