// Package token verifies RS256 access tokens against the issuer's published
// key set and maps every failure onto an errdefs kind.
package token

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/gwctl/gwctl/pkg/gwctl/errdefs"
	"github.com/gwctl/gwctl/pkg/gwctl/keyset"
	"github.com/gwctl/gwctl/pkg/gwctl/logging"
)

// KeySource supplies the issuer's current key set. *keyset.Cache implements it.
type KeySource interface {
	KeySet(ctx context.Context, issuerOrigin string, forceRefresh bool) (*keyset.Set, error)
}

type Validator struct {
	keys KeySource
	log  *zap.SugaredLogger
	now  func() time.Time
}

type Option func(*Validator)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(v *Validator) { v.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

func NewValidator(keys KeySource, opts ...Option) *Validator {
	v := &Validator{keys: keys, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	v.log = logging.OrNop(v.log)
	return v
}

// Validate verifies raw and returns its claims when the signature, expiry,
// issuer and subject all check out. The key is selected before the declared
// algorithm is compared, so a kid missing from the set reports KeyNotFound
// whatever the header's alg.
func (v *Validator) Validate(ctx context.Context, raw, expectedIssuer string) (*Claims, error) {
	return v.validate(ctx, raw, expectedIssuer, false)
}

// ValidateFresh is Validate with a forced key set refresh.
func (v *Validator) ValidateFresh(ctx context.Context, raw, expectedIssuer string) (*Claims, error) {
	return v.validate(ctx, raw, expectedIssuer, true)
}

func (v *Validator) validate(ctx context.Context, raw, expectedIssuer string, forceRefresh bool) (*Claims, error) {
	v.log.Debugw("Validating token", "length", len(raw))

	h, err := decodeHeader(raw)
	if err != nil {
		return nil, err
	}

	kid, source := h.Kid, "header"
	if kid == "" {
		kid, source = UnverifiedLegacyKeyID(raw), "payload"
	}
	if kid != "" {
		v.log.Debugw("Resolved key id", "kid", kid, "source", source)
	}

	set, err := v.keys.KeySet(ctx, expectedIssuer, forceRefresh)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain signing keys: %w", err)
	}
	if set.Empty() {
		return nil, errdefs.New(errdefs.KindKeySetEmpty, nil)
	}

	jwkKey, err := selectKey(set, kid)
	if err != nil {
		return nil, err
	}
	if kid == "" {
		v.log.Warnw("Token carries no key id, using first RS256 key", "kid", jwkKey.Kid)
	}
	if h.Alg != keyset.AlgRS256 {
		return nil, errdefs.Newf(errdefs.KindUnsupportedAlgorithm, "token declares %q", h.Alg)
	}
	pub, err := publicKey(jwkKey)
	if err != nil {
		return nil, err
	}

	var p payload
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{keyset.AlgRS256}),
		jwt.WithoutClaimsValidation(),
	)
	_, err = parser.ParseWithClaims(raw, &p, func(*jwt.Token) (interface{}, error) {
		return pub, nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	now := v.now()
	if p.ExpiresAt == nil {
		return nil, errdefs.Newf(errdefs.KindParse, "token has no exp claim")
	}
	if !now.Before(p.ExpiresAt.Time) {
		return nil, errdefs.Newf(errdefs.KindExpiredToken, "expired at %s", p.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if p.IssuedAt != nil && !p.ExpiresAt.After(p.IssuedAt.Time) {
		return nil, errdefs.Newf(errdefs.KindParse, "exp is not after iat")
	}

	got, want := NormalizeIssuer(p.Issuer), NormalizeIssuer(expectedIssuer)
	if got != want {
		return nil, errdefs.Newf(errdefs.KindIssuerMismatch, "expected %q, got %q", want, got)
	}
	if p.Subject == "" {
		return nil, errdefs.New(errdefs.KindMissingSubject, nil)
	}

	resolved := h.Kid
	if resolved == "" {
		resolved = p.Kid
	}
	claims := p.toClaims(resolved)
	v.log.Infow("Token validated", "sub", claims.Subject, "kid", claims.KeyID, "exp", claims.ExpiresAt)
	return claims, nil
}

func selectKey(set *keyset.Set, kid string) (*keyset.Key, error) {
	if kid != "" {
		k, ok := set.Find(kid)
		if !ok {
			return nil, errdefs.KeyNotFound(kid)
		}
		return k, nil
	}
	k, ok := set.FirstWithAlgorithm(keyset.AlgRS256)
	if !ok {
		return nil, errdefs.KeyNotFound("")
	}
	return k, nil
}

// lookupKID names the selected key inside the one-key set handed to keyfunc,
// since published keys may have an empty kid.
const lookupKID = "selected"

func publicKey(k *keyset.Key) (*rsa.PublicKey, error) {
	if k.Kty != "RSA" {
		return nil, errdefs.Newf(errdefs.KindUnsupportedAlgorithm, "key %q has type %q, expected RSA", k.Kid, k.Kty)
	}
	if k.Alg != "" && k.Alg != keyset.AlgRS256 {
		return nil, errdefs.Newf(errdefs.KindUnsupportedAlgorithm, "key %q is for %q", k.Kid, k.Alg)
	}
	single := *k
	single.Kid = lookupKID
	doc, err := json.Marshal(keyset.Set{Keys: []keyset.Key{single}})
	if err != nil {
		return nil, errdefs.New(errdefs.KindParse, err)
	}
	jwks, err := keyfunc.NewJSON(doc)
	if err != nil {
		return nil, errdefs.New(errdefs.KindParse, fmt.Errorf("load key %q: %w", k.Kid, err))
	}
	pub, ok := jwks.ReadOnlyKeys()[lookupKID].(*rsa.PublicKey)
	if !ok {
		return nil, errdefs.Newf(errdefs.KindParse, "key %q has unusable RSA material", k.Kid)
	}
	return pub, nil
}

func mapParseError(err error) error {
	var ve *jwt.ValidationError
	if errors.As(err, &ve) {
		switch {
		case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
			return errdefs.New(errdefs.KindSignatureInvalid, err)
		case ve.Errors&jwt.ValidationErrorUnverifiable != 0:
			return errdefs.New(errdefs.KindUnsupportedAlgorithm, err)
		}
	}
	return errdefs.New(errdefs.KindParse, err)
}
