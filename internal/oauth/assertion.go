// Package oauth exchanges a service-account credential for a short-lived
// bearer token using the JWT-bearer grant.
package oauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boukath/cina/services/push_service/internal/credentials"
	"github.com/boukath/cina/services/push_service/pkg/pusherr"
)

const (
	// MessagingScope grants access to the FCM send API.
	MessagingScope = "https://www.googleapis.com/auth/firebase.messaging"
	// DefaultTokenEndpoint is the Google OAuth2 token endpoint.
	DefaultTokenEndpoint = "https://oauth2.googleapis.com/token"
	// GrantType is the RFC 7523 JWT-bearer grant.
	GrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	// AssertionLifetime is the longest lifetime the token endpoint accepts.
	AssertionLifetime = 3600 * time.Second
)

// ClaimSet is the assertion payload. Field order is the serialization order.
type ClaimSet struct {
	Issuer   string `json:"iss"`
	Scope    string `json:"scope"`
	Audience string `json:"aud"`
	IssuedAt int64  `json:"iat"`
	Expiry   int64  `json:"exp"`
}

// ClaimSet satisfies jwt.Claims so golang-jwt can sign and verify it.

func (c ClaimSet) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Expiry, 0)), nil
}

func (c ClaimSet) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

func (c ClaimSet) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c ClaimSet) GetIssuer() (string, error)              { return c.Issuer, nil }
func (c ClaimSet) GetSubject() (string, error)             { return "", nil }

func (c ClaimSet) GetAudience() (jwt.ClaimStrings, error) {
	return jwt.ClaimStrings{c.Audience}, nil
}

// SignedAssertion is a freshly signed JWT. It is discarded after one exchange.
type SignedAssertion struct {
	Claims ClaimSet
	// SigningInput is base64url(header) + "." + base64url(claims).
	SigningInput string
	Signature    []byte
	// Token is the complete compact JWT.
	Token string
}

// BuildAssertion signs the claim set for cred at the given instant.
// For a fixed now the signing input is byte-for-byte stable.
func BuildAssertion(cred *credentials.ServiceAccountCredential, audience string, now time.Time) (*SignedAssertion, error) {
	if cred == nil || cred.PrivateKey() == nil {
		return nil, pusherr.Credential("oauth.assertion", fmt.Errorf("no signing key"))
	}
	iat := now.Unix()
	claims := ClaimSet{
		Issuer:   cred.Issuer,
		Scope:    MessagingScope,
		Audience: audience,
		IssuedAt: iat,
		Expiry:   iat + int64(AssertionLifetime/time.Second),
	}

	// The header map marshals with sorted keys: {"alg":"RS256","typ":"JWT"}.
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)

	signingInput, err := token.SigningString()
	if err != nil {
		return nil, pusherr.Credential("oauth.assertion", err)
	}
	sig, err := token.Method.Sign(signingInput, cred.PrivateKey())
	if err != nil {
		return nil, pusherr.Credential("oauth.assertion", err)
	}

	return &SignedAssertion{
		Claims:       claims,
		SigningInput: signingInput,
		Signature:    sig,
		Token:        signingInput + "." + token.EncodeSegment(sig),
	}, nil
}
