package oauth

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boukath/cina/services/push_service/internal/credentials"
	"github.com/boukath/cina/services/push_service/internal/testutil"
)

var fixedNow = time.Unix(1714557600, 0)

func testCredential(t *testing.T) *credentials.ServiceAccountCredential {
	t.Helper()
	cred, err := credentials.Parse(testutil.ServiceAccountJSON(t, "svc@example.com", "proj-1"))
	require.NoError(t, err)
	return cred
}

func TestSigningInputIsDeterministic(t *testing.T) {
	cred := testCredential(t)

	first, err := BuildAssertion(cred, DefaultTokenEndpoint, fixedNow)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := BuildAssertion(cred, DefaultTokenEndpoint, fixedNow)
		require.NoError(t, err)
		assert.Equal(t, first.SigningInput, again.SigningInput)
	}
}

func TestSegmentsAreBase64URLAndRoundTrip(t *testing.T) {
	a, err := BuildAssertion(testCredential(t), DefaultTokenEndpoint, fixedNow)
	require.NoError(t, err)

	assert.NotContainsf(t, a.Token, "+", "token %s", a.Token)
	assert.NotContains(t, a.Token, "/")
	assert.NotContains(t, a.Token, "=")

	parts := strings.Split(a.Token, ".")
	require.Len(t, parts, 3)

	header, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	assert.Equal(t, `{"alg":"RS256","typ":"JWT"}`, string(header))

	claims, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	assert.Equal(t,
		`{"iss":"svc@example.com","scope":"https://www.googleapis.com/auth/firebase.messaging","aud":"https://oauth2.googleapis.com/token","iat":1714557600,"exp":1714561200}`,
		string(claims))
}

func TestExpiryIsOneHourAfterIssue(t *testing.T) {
	for _, now := range []time.Time{fixedNow, time.Unix(0, 0), time.Now()} {
		a, err := BuildAssertion(testCredential(t), DefaultTokenEndpoint, now)
		require.NoError(t, err)

		var claims ClaimSet
		parts := strings.Split(a.Token, ".")
		raw, err := base64.RawURLEncoding.DecodeString(parts[1])
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &claims))
		assert.Equal(t, int64(3600), claims.Expiry-claims.IssuedAt)
	}
}

func TestSignatureVerifiesWithPublicKey(t *testing.T) {
	a, err := BuildAssertion(testCredential(t), DefaultTokenEndpoint, fixedNow)
	require.NoError(t, err)

	pub := &testutil.RSAKey(t).PublicKey
	digest := sha256.Sum256([]byte(a.SigningInput))
	assert.NoError(t, rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], a.Signature))

	sigSegment := a.Token[strings.LastIndex(a.Token, ".")+1:]
	decoded, err := base64.RawURLEncoding.DecodeString(sigSegment)
	require.NoError(t, err)
	assert.Equal(t, a.Signature, decoded)
}

func TestAssertionParsesWithGolangJWT(t *testing.T) {
	a, err := BuildAssertion(testCredential(t), DefaultTokenEndpoint, time.Now())
	require.NoError(t, err)

	parsed, err := jwt.ParseWithClaims(a.Token, &ClaimSet{}, func(tok *jwt.Token) (interface{}, error) {
		return &testutil.RSAKey(t).PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithAudience(DefaultTokenEndpoint))
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "svc@example.com", parsed.Claims.(*ClaimSet).Issuer)
}

func TestBuildAssertionWithoutKey(t *testing.T) {
	_, err := BuildAssertion(nil, DefaultTokenEndpoint, fixedNow)
	assert.Error(t, err)
}
