package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIssuer(t *testing.T, now time.Time) *Issuer {
	t.Helper()
	iss, err := NewIssuer("test-secret")
	require.NoError(t, err)
	iss.now = func() time.Time { return now }
	return iss
}

func TestGuestTokenRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newIssuer(t, now)

	scores := GuestScores{CDRSum: 4.5, CDRMemory: 1, CDRGlob: 0.5, NACCMMSE: 24}
	token, expires, err := iss.IssueGuest(scores)
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*time.Minute), expires)

	claims, err := iss.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, RoleGuest, claims.Role)
	assert.NotEmpty(t, claims.Subject)
	assert.Equal(t, &scores, claims.Guest)
}

func TestExpiredToken(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newIssuer(t, now)
	token, _, err := iss.Issue("P001", RoleUser, UserTTL, nil)
	require.NoError(t, err)

	iss.now = func() time.Time { return now.Add(UserTTL + time.Minute) }
	_, err = iss.Parse(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestRejectsForeignTokens(t *testing.T) {
	now := time.Now()
	iss := newIssuer(t, now)

	other := newIssuer(t, now)
	other.secret = []byte("another-secret")
	token, _, err := other.Issue("P001", RoleUser, time.Hour, nil)
	require.NoError(t, err)
	_, err = iss.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, _, err = iss.Issue("P001", Role("admin"), time.Hour, nil)
	require.NoError(t, err)
	_, err = iss.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: RoleUser}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = iss.Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = iss.Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := NewIssuer("  ")
	assert.Error(t, err)
}

func TestGuestRequestValidate(t *testing.T) {
	scores, err := GuestRequest{CDRSum: "2.5", CDRMemory: 0.5, CDRGlob: 1.0, NACCMMSE: 28.0}.Validate()
	require.NoError(t, err)
	assert.Equal(t, GuestScores{CDRSum: 2.5, CDRMemory: 0.5, CDRGlob: 1, NACCMMSE: 28}, scores)

	_, err = GuestRequest{CDRSum: 17.5, CDRMemory: 0.5, CDRGlob: 1.0, NACCMMSE: 28.0}.Validate()
	assert.ErrorContains(t, err, "CDRSUM")
	_, err = GuestRequest{CDRSum: 1.0, CDRMemory: 0.5, CDRGlob: 1.5, NACCMMSE: 28.0}.Validate()
	assert.ErrorContains(t, err, "CDRGLOB")
	_, err = GuestRequest{CDRSum: 1.0, CDRMemory: 0.5, CDRGlob: 1.0}.Validate()
	assert.ErrorContains(t, err, "NACCMMSE")
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", tok)
	_, ok = BearerToken("Basic xyz")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
}

func TestPrincipalOwner(t *testing.T) {
	user, err := FromClaims(&Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "42"}, Role: RoleUser})
	require.NoError(t, err)
	assert.Equal(t, uint(42), user.UserID)
	assert.Equal(t, "user:42", user.Owner())

	guest, err := FromClaims(&Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "abc"}, Role: RoleGuest})
	require.NoError(t, err)
	assert.Equal(t, "guest:abc", guest.Owner())

	_, err = FromClaims(&Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "abc"}, Role: RoleUser})
	assert.ErrorIs(t, err, ErrInvalidToken)
}
