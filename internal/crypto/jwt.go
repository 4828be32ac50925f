package crypto

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpiredToken     = errors.New("token has expired")
	ErrEncoding         = errors.New("token encoding failed")
)

const (
	tokenIssuer   = "hocusfocus"
	tokenAudience = "hocusfocus-api"
)

// Claims is the decoded payload of a bearer token. Timestamps are whole
// seconds since the Unix epoch.
type Claims struct {
	SubjectID      string
	SessionVersion int64
	IssuedAt       int64
	ExpiresAt      int64
}

// ExpiresAtMillis converts the expiry to milliseconds for session storage.
func (c Claims) ExpiresAtMillis() int64 {
	return c.ExpiresAt * 1000
}

type tokenClaims struct {
	jwt.RegisteredClaims
	SessionVersion int64 `json:"sv"`
}

// Codec issues and verifies HS256 bearer tokens.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec creates a Codec signing with secret; tokens stay valid for ttl.
func NewCodec(secret string, ttl time.Duration) *Codec {
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock returns a copy of the codec that reads the current time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// TTL returns the validity window of issued tokens.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for subjectID carrying the account's session version.
func (c *Codec) Issue(subjectID string, sessionVersion int64) (string, Claims, error) {
	now := c.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subjectID,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		SessionVersion: sessionVersion,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	return signed, claims.toClaims(), nil
}

// Decode verifies the token and returns its claims.
func (c *Codec) Decode(token string) (Claims, error) {
	return c.decodeAt(token, c.now())
}

// IsExpired reports whether token is unusable at now: it fails to decode or
// now has reached its expiry.
func (c *Codec) IsExpired(token string, now time.Time) bool {
	claims, err := c.decodeAt(token, now)
	return err != nil || now.Unix() >= claims.ExpiresAt
}

func (c *Codec) decodeAt(token string, now time.Time) (Claims, error) {
	var tc tokenClaims
	_, err := jwt.ParseWithClaims(token, &tc, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return c.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return Claims{}, classify(err)
	}

	if tc.Subject == "" || tc.IssuedAt == nil {
		return Claims{}, fmt.Errorf("%w: missing required claims", ErrMalformedToken)
	}

	return tc.toClaims(), nil
}

// classify maps parser failures onto the codec's error kinds. jwt verifies
// the signature before claims, so an expiry error implies a good signature.
// A rejected algorithm fails in the key func and lands in the default case.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

// PeekClaims reads sub, iat and exp without verifying the signature. It is
// meant for clients that hold a token but not the signing key.
func PeekClaims(token string) (Claims, error) {
	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &tc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if tc.Subject == "" || tc.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: missing required claims", ErrMalformedToken)
	}
	return tc.toClaims(), nil
}

func (tc tokenClaims) toClaims() Claims {
	c := Claims{
		SubjectID:      tc.Subject,
		SessionVersion: tc.SessionVersion,
	}
	if tc.IssuedAt != nil {
		c.IssuedAt = tc.IssuedAt.Unix()
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Unix()
	}
	return c
}
