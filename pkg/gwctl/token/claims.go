package token

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/gwctl/gwctl/pkg/gwctl/identity"
)

// Claims are the validated contents of an access token.
type Claims struct {
	Issuer    string             `json:"issuer" yaml:"issuer"`
	Subject   string             `json:"subject" yaml:"subject"`
	Audience  string             `json:"audience,omitempty" yaml:"audience,omitempty"`
	ExpiresAt int64              `json:"expires_at" yaml:"expires_at"`
	IssuedAt  int64              `json:"issued_at,omitempty" yaml:"issued_at,omitempty"`
	KeyID     string             `json:"key_id,omitempty" yaml:"key_id,omitempty"`
	User      *identity.UserInfo `json:"user,omitempty" yaml:"user,omitempty"`
	Team      *identity.TeamInfo `json:"team,omitempty" yaml:"team,omitempty"`
}

func (c *Claims) Expiry() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}

// TimeLeft is the remaining validity at now, truncated to seconds. Never negative.
func (c *Claims) TimeLeft(now time.Time) time.Duration {
	left := c.Expiry().Sub(now).Truncate(time.Second)
	if left < 0 {
		return 0
	}
	return left
}

// payload is the wire shape of the token body.
type payload struct {
	jwt.RegisteredClaims
	Kid  string             `json:"kid,omitempty"`
	User *identity.UserInfo `json:"user,omitempty"`
	Team *identity.TeamInfo `json:"team,omitempty"`
}

func (p *payload) toClaims(kid string) *Claims {
	c := &Claims{
		Issuer:  p.Issuer,
		Subject: p.Subject,
		KeyID:   kid,
		User:    p.User,
		Team:    p.Team,
	}
	if len(p.Audience) > 0 {
		c.Audience = p.Audience[0]
	}
	if p.ExpiresAt != nil {
		c.ExpiresAt = p.ExpiresAt.Unix()
	}
	if p.IssuedAt != nil {
		c.IssuedAt = p.IssuedAt.Unix()
	}
	return c
}
