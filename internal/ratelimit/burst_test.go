package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBurstRouter(t *testing.T, trusted []string) *gin.Engine {
	t.Helper()
	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(trusted))
	r.Use(BurstGuard(NewBurstLimiter(2), zap.NewNop()))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.ClientIP()) })
	return r
}

func hit(r *gin.Engine, remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBurstGuard_IgnoresForwardedForFromUntrustedPeers(t *testing.T) {
	r := newBurstRouter(t, nil)

	var codes []int
	for _, xff := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3", "4.4.4.4"} {
		codes = append(codes, hit(r, "198.51.100.9:5000", xff).Code)
	}
	assert.Equal(t, []int{200, 200, 429, 429}, codes)

	w := hit(r, "198.51.100.9:5000", "5.5.5.5")
	assert.Equal(t, "1", w.Header().Get(HeaderRetryAfter))
	assert.Contains(t, w.Body.String(), `"RATE_LIMITED"`)

	assert.Equal(t, http.StatusOK, hit(r, "198.51.100.10:5000", "").Code, "another client has its own bucket")
}

func TestBurstGuard_KeysOnForwardedClientBehindTrustedProxy(t *testing.T) {
	r := newBurstRouter(t, []string{"10.0.0.1"})

	for _, client := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3", "203.0.113.4"} {
		w := hit(r, "10.0.0.1:443", client)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, client, w.Body.String())
	}

	codes := []int{}
	for i := 0; i < 3; i++ {
		codes = append(codes, hit(r, "10.0.0.1:443", "203.0.113.9").Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}
