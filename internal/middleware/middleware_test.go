package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id"), "role": c.GetString("role")})
	})
	return r
}

func get(r http.Handler, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken(secret, "u1", "alice", "student")
	require.NoError(t, err)

	claims, err := ParseToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "student", claims.Role)

	_, err = ParseToken([]byte("other"), token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpiredAndForeignAlg(t *testing.T) {
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	s, err := expired.SignedString(secret)
	require.NoError(t, err)
	_, err = ParseToken(secret, s)
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"})
	s, err = none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken(secret, s)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(AuthMiddleware(secret))
	token, err := IssueToken(secret, "u1", "alice", "moderator")
	require.NoError(t, err)

	rr := get(r, "/whoami", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = get(r, "/whoami", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = get(r, "/whoami", token)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"user_id":"u1","role":"moderator"}`, rr.Body.String())

	rr = get(r, "/whoami?token="+token, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Token "+token)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestOptionalAuth(t *testing.T) {
	r := newRouter(OptionalAuth(secret))
	token, err := IssueToken(secret, "u1", "alice", "student")
	require.NoError(t, err)

	rr := get(r, "/whoami", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"user_id":"","role":""}`, rr.Body.String())

	rr = get(r, "/whoami", "garbage")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"user_id":"","role":""}`, rr.Body.String())

	rr = get(r, "/whoami", token)
	assert.JSONEq(t, `{"user_id":"u1","role":"student"}`, rr.Body.String())
}

func TestRequireRole(t *testing.T) {
	r := newRouter(AuthMiddleware(secret), RequireRole("moderator"))

	student, _ := IssueToken(secret, "u1", "alice", "student")
	mod, _ := IssueToken(secret, "u2", "bob", "moderator")

	assert.Equal(t, http.StatusForbidden, get(r, "/whoami", student).Code)
	assert.Equal(t, http.StatusOK, get(r, "/whoami", mod).Code)
}

func TestIPRateLimiter(t *testing.T) {
	rl := NewIPRateLimiter(2, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"))

	now = now.Add(time.Minute + time.Second)
	assert.True(t, rl.Allow("1.1.1.1"))
}

func TestIPRateLimiterSweepsIdleClients(t *testing.T) {
	rl := NewIPRateLimiter(2, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	for i := 0; i < 5000; i++ {
		rl.Allow(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
	}
	assert.Equal(t, 5000, rl.Len())

	now = now.Add(30 * time.Second)
	rl.Allow("1.1.1.1")
	assert.Equal(t, 5001, rl.Len(), "clients still inside the window are kept")

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("2.2.2.2"))
	assert.Equal(t, 1, rl.Len())
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(nil))
	r.GET("/whoami", RateLimit(NewIPRateLimiter(2, time.Minute)), func(c *gin.Context) {
		c.String(http.StatusOK, c.ClientIP())
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitMiddleware(t *testing.T) {
	r := newRouter(RateLimit(NewIPRateLimiter(1, time.Minute)))

	assert.Equal(t, http.StatusOK, get(r, "/whoami", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/whoami", "").Code)
}

func TestUUIDParam(t *testing.T) {
	r := gin.New()
	r.GET("/rants/:id", UUIDParam("id"), func(c *gin.Context) {
		c.String(http.StatusOK, c.Param("id"))
	})

	assert.Equal(t, http.StatusNotFound, get(r, "/rants/not-a-uuid", "").Code)
	ok := get(r, "/rants/3f1c2a9e-6c1b-4c5e-9a51-1d2b3c4d5e6f", "")
	assert.Equal(t, http.StatusOK, ok.Code)
}
