package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finledger/internal/session"
)

const secret = "0123456789abcdef0123456789abcdef"

var issuedAt = time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)

func newVerifier() *Verifier {
	v := NewVerifier(secret, "finledger")
	v.now = func() time.Time { return issuedAt }
	return v
}

func TestVerifier_IssueAndVerify(t *testing.T) {
	v := newVerifier()
	token, err := v.Issue(session.Identity{UserID: "u1", Name: "Ana", Email: "ana@example.com"}, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, session.Identity{UserID: "u1", Name: "Ana", Email: "ana@example.com"}, id)
}

func TestVerifier_Rejects(t *testing.T) {
	v := newVerifier()

	expired, err := v.Issue(session.Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)
	later := newVerifier()
	later.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }

	otherSecret, err := NewVerifier("another-secret-another-secret-xx", "finledger").Issue(session.Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	otherIssuer := NewVerifier(secret, "someone-else")
	otherIssuer.now = v.now
	wrongIssuer, err := otherIssuer.Issue(session.Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	noSubject, err := v.Issue(session.Identity{}, time.Hour)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "iss": "finledger"}).SignedString([]byte(secret))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "u1", "iss": "finledger", "exp": issuedAt.Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	tests := []struct {
		name     string
		verifier *Verifier
		token    string
	}{
		{"expired", later, expired},
		{"wrong secret", v, otherSecret},
		{"wrong issuer", v, wrongIssuer},
		{"missing subject", v, noSubject},
		{"missing expiry", v, noExpiry},
		{"unexpected algorithm", v, hs512},
		{"garbage", v, "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.verifier.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestMiddleware(t *testing.T) {
	v := newVerifier()
	token, err := v.Issue(session.Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	var gotErr error
	unauthorized := func(w http.ResponseWriter, r *http.Request, err error) {
		gotErr = err
		w.WriteHeader(http.StatusUnauthorized)
	}
	var gotID session.Identity
	handler := Middleware(v, unauthorized)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name    string
		header  string
		status  int
		wantErr error
	}{
		{"valid", "Bearer " + token, http.StatusNoContent, nil},
		{"missing header", "", http.StatusUnauthorized, ErrMissingToken},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, ErrMissingToken},
		{"bad token", "Bearer nope", http.StatusUnauthorized, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotErr, gotID = nil, session.Identity{}
			req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(gotErr, tt.wantErr), "got %v", gotErr)
			} else {
				assert.Equal(t, "u1", gotID.UserID)
			}
		})
	}
}
