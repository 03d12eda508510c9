package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions(t *testing.T) {
	sessions := NewSessions(time.Hour)

	token := sessions.Create(42)
	require.NotEmpty(t, token)

	id, ok := sessions.Lookup(token)
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	sessions.Revoke(token)
	_, ok = sessions.Lookup(token)
	assert.False(t, ok)

	_, ok = sessions.Lookup("never-issued")
	assert.False(t, ok)
}

func TestRequestToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, requestToken(req))

	req.Header.Set("Authorization", "Bearer abc123")
	assert.Equal(t, "abc123", requestToken(req))

	// Cookie is the fallback when no bearer header is present.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "cookie-token"})
	assert.Equal(t, "cookie-token", requestToken(req))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := hashPassword("s3cret-passw0rd")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-passw0rd", hash)
	assert.True(t, checkPassword(hash, "s3cret-passw0rd"))
	assert.False(t, checkPassword(hash, "wrong"))
}
