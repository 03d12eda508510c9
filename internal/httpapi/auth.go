package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
)

const sessionCookieName = "labelscan_session"

// Sessions holds bearer tokens with a sliding TTL. Tokens are opaque UUIDs;
// a restart invalidates all of them.
type Sessions struct {
	cache *gocache.Cache
}

func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{
		cache: gocache.New(ttl, 10*time.Minute),
	}
}

// Create issues a new token bound to the user ID.
func (s *Sessions) Create(userID int64) string {
	token := uuid.NewString()
	s.cache.SetDefault(token, userID)
	return token
}

// Lookup resolves a token to its user ID and refreshes the TTL.
func (s *Sessions) Lookup(token string) (int64, bool) {
	v, found := s.cache.Get(token)
	if !found {
		return 0, false
	}
	id, ok := v.(int64)
	if !ok {
		return 0, false
	}
	s.cache.SetDefault(token, id)
	return id, true
}

// Revoke drops a token. Unknown tokens are a no-op.
func (s *Sessions) Revoke(token string) {
	s.cache.Delete(token)
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// requestToken extracts the session token from the Authorization header or,
// failing that, the session cookie.
func requestToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
