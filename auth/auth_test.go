package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/extrahours/generic"
)

func TestNewVerifier_RequiresSecret(t *testing.T) {
	_, err := NewVerifier("", time.Hour)
	assert.Error(t, err)
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	v, err := NewVerifier("s3cret", time.Hour)
	require.NoError(t, err)

	raw, exp, err := v.Issue(Principal{UserID: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	p, err := v.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: "alice", Email: "alice@example.com"}, p)
}

func TestVerify_Rejects(t *testing.T) {
	v, err := NewVerifier("s3cret", time.Hour)
	require.NoError(t, err)
	other, err := NewVerifier("different", time.Hour)
	require.NoError(t, err)

	foreign, _, err := other.Issue(Principal{UserID: "alice"})
	require.NoError(t, err)

	// GIVEN: A token issued in the past that has since expired
	past, err := NewVerifier("s3cret", time.Minute)
	require.NoError(t, err)
	past.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _, err := past.Issue(Principal{UserID: "alice"})
	require.NoError(t, err)

	// GIVEN: A token with no expiry
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	// GIVEN: A token with no subject
	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	// GIVEN: A token signed with another HMAC variant
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"expired":      expired,
		"no expiry":    noExp,
		"no subject":   noSub,
		"hs512":        hs512,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(raw)
			assert.ErrorIs(t, err, generic.ErrAuthentication)
		})
	}
}

func TestMiddleware(t *testing.T) {
	v, err := NewVerifier("s3cret", time.Hour)
	require.NoError(t, err)
	raw, _, err := v.Issue(Principal{UserID: "alice"})
	require.NoError(t, err)

	var seen Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	onError := func(w http.ResponseWriter, r *http.Request, err error) {
		w.WriteHeader(http.StatusUnauthorized)
	}
	h := Middleware(v, onError)(next)

	// WHEN: No header
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// WHEN: A valid bearer token
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "alice", seen.UserID)
}

func TestFromContext_EmptyPrincipal(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := FromContext(WithPrincipal(req.Context(), Principal{}))
	assert.False(t, ok)
}
