// Package auth implements the session gate: verification of externally
// issued bearer tokens before a realtime connection is admitted. Tokens are
// HMAC-SHA256 JWTs whose claims carry the identity id and its industry
// memberships; an optional claim lists invite ids the identity owns, used
// to authorize invite-topic subscriptions.
//
// Every verification failure (malformed token, signature mismatch, expiry,
// missing claims) collapses into the single ErrAuthenticationFailed so the
// transport can treat them uniformly: close the connection, no retry.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAuthenticationFailed is the single failure mode of the session gate.
// The caller must terminate the attempted connection and obtain a fresh
// token out of band.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Claims are the token claims required to admit a session.
type Claims struct {
	// Industries the identity belongs to; authorizes Industry topics.
	Industries []string `json:"industries"`
	// Invites the identity created; authorizes Invite topics.
	Invites []string `json:"invites,omitempty"`
	jwt.RegisteredClaims
}

// IdentityID returns the identity the token was issued for.
func (c *Claims) IdentityID() string { return c.Subject }

// Verifier validates bearer tokens against a shared HMAC secret.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier constructs a Verifier. The issuer, when non-empty, must match
// the token's iss claim.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates token, returning its claims on success.
// Any failure maps to ErrAuthenticationFailed.
func (v *Verifier) Verify(token string) (*Claims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrAuthenticationFailed
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrAuthenticationFailed
	}
	if claims.Subject == "" || claims.Industries == nil {
		return nil, ErrAuthenticationFailed
	}
	return claims, nil
}

// Issuer mints tokens for the local token tool and tests. Production tokens
// come from the platform's identity service; this type only exists so the
// backend can be exercised without it.
type Issuer struct {
	secret []byte
	issuer string
	expiry time.Duration
}

// NewIssuer constructs an Issuer with the given token lifetime.
func NewIssuer(secret, issuer string, expiry time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), issuer: issuer, expiry: expiry}
}

// Issue signs a token for identityID with the given topic-authorizing claims.
func (i *Issuer) Issue(identityID string, industries, invites []string) (string, error) {
	if identityID == "" {
		return "", ErrAuthenticationFailed
	}
	if industries == nil {
		industries = []string{}
	}

	now := time.Now()
	claims := &Claims{
		Industries: industries,
		Invites:    invites,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// TokenFromRequest extracts the bearer token from an Authorization header
// or, failing that, from the token query parameter. Browsers cannot set
// custom headers on a WebSocket handshake, hence the query fallback.
func TokenFromRequest(authHeader, queryToken string) (string, error) {
	parts := strings.Fields(authHeader)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1]), nil
	}
	if strings.TrimSpace(queryToken) != "" {
		return strings.TrimSpace(queryToken), nil
	}
	return "", ErrAuthenticationFailed
}
