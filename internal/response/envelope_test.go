package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type bindTarget struct {
	UserType string `json:"user_type" binding:"required,oneof=donor user"`
	Phone    string `json:"phone" binding:"required,phone"`
	OtpCode  string `json:"otp_code" binding:"required_if=UserType donor,omitempty,otp"`
}

func serve(t *testing.T, body string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var req bindTarget
		if !BindJSON(c, &req) {
			return
		}
		OK(c, gin.H{"phone": req.Phone})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestBindJSON_Valid(t *testing.T) {
	w, env := serve(t, `{"user_type":"donor","phone":"07123 456789","otp_code":"012345"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
}

func TestBindJSON_MalformedBody(t *testing.T) {
	w, env := serve(t, `{"user_type":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeInvalidJSON, env.Error.Code)
}

func TestBindJSON_NonObjectBody(t *testing.T) {
	for _, body := range []string{`[]`, `"x"`, `42`} {
		w, env := serve(t, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		require.NotNil(t, env.Error)
		assert.Equal(t, CodeInvalidJSON, env.Error.Code, body)
		assert.Empty(t, env.Error.Details, body)
	}
}

func TestBindJSON_FieldDetails(t *testing.T) {
	w, env := serve(t, `{"user_type":"robot","phone":"12"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeValidation, env.Error.Code)
	assert.Equal(t, "must be one of: donor, user", env.Error.Details["user_type"])
	assert.Equal(t, "must be a valid UK phone number", env.Error.Details["phone"])
}

func TestBindJSON_ConditionalOtp(t *testing.T) {
	w, env := serve(t, `{"user_type":"donor","phone":"07123456789"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "is required", env.Error.Details["otp_code"])

	w, env = serve(t, `{"user_type":"donor","phone":"07123456789","otp_code":"12ab56"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "must be a 6-digit code", env.Error.Details["otp_code"])

	w, _ = serve(t, `{"user_type":"user","phone":"07123456789"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBindJSON_WrongType(t *testing.T) {
	w, env := serve(t, `{"user_type":"donor","phone":7123456789}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "has the wrong type", env.Error.Details["phone"])
}

func TestThrottled_CarriesWait(t *testing.T) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) { Throttled(c, CodeCooldown, "wait", 42) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"success":false,"error":{"message":"wait","code":"COOLDOWN","wait_seconds":42}}`, w.Body.String())
}

func TestServerError_HidesDetail(t *testing.T) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) { ServerError(c, assert.AnError) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
	assert.Contains(t, w.Body.String(), string(CodeServerError))
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 20, 41)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 0, NewPagination(1, 0, 5).TotalPages)
}

func TestCORS_AllowList(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://pwa.example.org/"}))
	r.GET("/", func(c *gin.Context) { OK(c, nil) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://pwa.example.org")
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://pwa.example.org", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
