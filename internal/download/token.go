// Package download issues and verifies signed direct-download links.
//
// When the SMTP delivery of an export fails, the API answers with a short
// lived signed URL instead so the requester still gets the data. The token
// carries the full export request, so the file is re-rendered on redemption
// and nothing is persisted on disk.
package download

import (
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/cei-unisinos/ici-backend/internal/store/core"
)

var (
	ErrTokenInvalid = errors.New("download: invalid token")
	ErrTokenExpired = errors.New("download: token expired")
)

// Claims is the payload of a signed download link.
type Claims struct {
	Countries []string `json:"countries,omitempty"`
	YearFrom  int      `json:"year_from"`
	YearTo    int      `json:"year_to"`
	Format    string   `json:"format"`
	jwtv5.RegisteredClaims
}

// Signer mints and verifies HS256 download tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewSigner builds a Signer. ttl 0 defaults to 24h.
func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("download: signing secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, issuer: "ici-backend"}, nil
}

// TTL returns the configured link lifetime.
func (s *Signer) TTL() time.Duration { return s.ttl }

// Sign mints a token for the given export request.
func (s *Signer) Sign(requestID string, f core.IndexFilter, format string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Countries: f.Countries,
		YearFrom:  f.YearFrom,
		YearTo:    f.YearTo,
		Format:    format,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   requestID,
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(s.ttl)),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := tk.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("download: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the claims.
func (s *Signer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwtv5.ParseWithClaims(token, claims,
		func(t *jwtv5.Token) (any, error) { return s.secret, nil },
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithIssuer(s.issuer),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !tok.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Filter rebuilds the export filter carried by the claims.
func (c *Claims) Filter() core.IndexFilter {
	return core.IndexFilter{
		Countries: c.Countries,
		YearFrom:  c.YearFrom,
		YearTo:    c.YearTo,
	}
}
