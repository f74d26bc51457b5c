package token

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/gwctl/gwctl/pkg/gwctl/errdefs"
)

// header is the JOSE header of a compact token.
type header struct {
	Alg string `json:"alg"`
	Kid string `json:"kid,omitempty"`
	Typ string `json:"typ,omitempty"`
}

func decodeHeader(raw string) (*header, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, errdefs.Newf(errdefs.KindParse, "token has %d segments, expected 3", len(parts))
	}
	data, err := jwt.DecodeSegment(parts[0])
	if err != nil {
		return nil, errdefs.New(errdefs.KindParse, fmt.Errorf("decode token header: %w", err))
	}
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, errdefs.New(errdefs.KindParse, fmt.Errorf("decode token header: %w", err))
	}
	return &h, nil
}

// UnverifiedLegacyKeyID reads a "kid" claim from the token payload WITHOUT
// checking the signature. Some issuers put the key id there instead of in the
// header. The result only selects which published key to verify with and must
// never be used to authorize anything. Returns "" when absent or unreadable.
func UnverifiedLegacyKeyID(raw string) string {
	var legacy struct {
		Kid string `json:"kid"`
	}
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return ""
	}
	data, err := jwt.DecodeSegment(parts[1])
	if err != nil {
		return ""
	}
	if err := json.Unmarshal(data, &legacy); err != nil {
		return ""
	}
	return legacy.Kid
}
