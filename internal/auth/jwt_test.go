package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "test-secret"
	testIssuer = "rollbook-test"
)

func testVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(VerifierConfig{Secret: testKey, Issuer: testIssuer})
	require.NoError(t, err)
	return v
}

func TestIssueVerify(t *testing.T) {
	v := testVerifier(t)
	sub := DevSubject("Teacher@Example.com")
	assert.Equal(t, sub, DevSubject(" teacher@example.com "))

	token, exp, err := Issue(Identity{Subject: sub, Email: "teacher@example.com", FullName: "Ada Teacher"}, testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, sub, id.Subject)
	assert.Equal(t, "teacher@example.com", id.Email)
	assert.Equal(t, "Ada Teacher", id.FullName)
	assert.Equal(t, token, id.Token)
	assert.WithinDuration(t, exp, id.ExpiresAt, time.Second)
}

func TestVerifyRejects(t *testing.T) {
	v := testVerifier(t)
	sub := DevSubject("a@example.com")

	wrongIssuer, _, err := Issue(Identity{Subject: sub}, "someone-else", testKey, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(wrongIssuer)
	assert.Error(t, err)

	wrongKey, _, err := Issue(Identity{Subject: sub}, testIssuer, "other-key", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(wrongKey)
	assert.Error(t, err)

	expired, _, err := Issue(Identity{Subject: sub}, testIssuer, testKey, -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.Error(t, err)

	notUUID, _, err := Issue(Identity{Subject: "device-1"}, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(notUUID)
	assert.Error(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: testIssuer, Subject: sub},
	}).SignedString([]byte(testKey))
	require.NoError(t, err)
	_, err = v.Verify(noExp)
	assert.Error(t, err)
}

func TestNewVerifierNeedsKey(t *testing.T) {
	_, err := NewVerifier(VerifierConfig{})
	assert.Error(t, err)
}

func TestMetadataName(t *testing.T) {
	assert.Equal(t, "Ada", metadataName(map[string]any{"full_name": " Ada "}))
	assert.Equal(t, "Bob", metadataName(map[string]any{"full_name": "", "name": "Bob"}))
	assert.Equal(t, "", metadataName(nil))
}
