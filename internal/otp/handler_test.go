package otp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mehmetcc/campaign-auth-service/internal/account"
	"github.com/mehmetcc/campaign-auth-service/internal/response"
	"github.com/mehmetcc/campaign-auth-service/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAccounts struct {
	donors map[string]*account.DonorRecord
	err    error
}

func (f *fakeAccounts) ReadDonorByPhone(_ context.Context, phone string) (*account.DonorRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	canonical, err := utils.NormalizePhone(phone)
	if err != nil {
		return nil, account.ErrDonorNotFound
	}
	if d, ok := f.donors[canonical]; ok {
		return d, nil
	}
	return nil, account.ErrDonorNotFound
}

func (f *fakeAccounts) ReadStaffByPhone(context.Context, string) (*account.UserRecord, error) {
	return nil, account.ErrUserNotFound
}

func (f *fakeAccounts) ReadView(context.Context, account.UserType, uint) (*account.UserView, error) {
	return nil, account.ErrDonorNotFound
}

type stubOtpService struct {
	dispatch *Dispatch
	err      error
	calls    int
}

func (s *stubOtpService) Send(context.Context, string) (*Dispatch, error) {
	s.calls++
	return s.dispatch, s.err
}

func (s *stubOtpService) Verify(context.Context, string, string) (bool, error) {
	return false, nil
}

func knownDonors() *fakeAccounts {
	return &fakeAccounts{donors: map[string]*account.DonorRecord{
		"07123456789": {Name: "Amira", Phone: "07123456789"},
	}}
}

func postSend(t *testing.T, svc OtpService, accounts account.AccountService, cfg utils.OtpConfig, body string) (*httptest.ResponseRecorder, response.Envelope) {
	t.Helper()
	r := gin.New()
	NewOtpHandler(r.Group("/api/v1"), svc, accounts, cfg, zap.NewNop())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/otp-send", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestOtpSend_Success(t *testing.T) {
	svc, _, sender, _ := newTestService()

	w, env := postSend(t, svc, knownDonors(), testOtpConfig, `{"phone":"07123 456789"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	data := env.Data.(map[string]any)
	assert.Equal(t, "071*****789", data["phone"])
	assert.Equal(t, float64(600), data["expires_in"])
	assert.Len(t, sender.to, 1)
}

func TestOtpSend_UnknownDonor(t *testing.T) {
	svc := &stubOtpService{}

	w, env := postSend(t, svc, knownDonors(), testOtpConfig, `{"phone":"07999999999"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.CodeDonorNotFound, env.Error.Code)
	assert.Zero(t, svc.calls)
}

func TestOtpSend_UnknownDonorConcealed(t *testing.T) {
	svc := &stubOtpService{}
	cfg := testOtpConfig
	cfg.ConcealUnknownPhone = true

	w, env := postSend(t, svc, knownDonors(), cfg, `{"phone":"07999999999"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "079*****999", env.Data.(map[string]any)["phone"])
	assert.Zero(t, svc.calls, "nothing is sent to unknown numbers")
}

func TestOtpSend_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		status   int
		code     response.Code
		waitSecs int
	}{
		{"missing phone", `{}`, nil, http.StatusUnprocessableEntity, response.CodeValidation, 0},
		{"malformed phone", `{"phone":"abc"}`, nil, http.StatusUnprocessableEntity, response.CodeValidation, 0},
		{"landline", `{"phone":"07123456789"}`, ErrInvalidPhone, http.StatusUnprocessableEntity, response.CodeValidation, 0},
		{"cooldown", `{"phone":"07123456789"}`, &CooldownError{Wait: 41500 * time.Millisecond}, http.StatusTooManyRequests, response.CodeCooldown, 42},
		{"sms down", `{"phone":"07123456789"}`, errors.Join(ErrSmsUnavailable, errors.New("timeout")), http.StatusServiceUnavailable, response.CodeSmsUnavailable, 0},
		{"store down", `{"phone":"07123456789"}`, ErrUnresponsiveDatabase, http.StatusInternalServerError, response.CodeServerError, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := postSend(t, &stubOtpService{err: tt.err}, knownDonors(), testOtpConfig, tt.body)
			assert.Equal(t, tt.status, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.Equal(t, tt.waitSecs, env.Error.WaitSeconds)
		})
	}
}

func TestOtpSend_AccountStoreDown(t *testing.T) {
	w, env := postSend(t, &stubOtpService{}, &fakeAccounts{err: account.ErrUnresponsiveDatabase}, testOtpConfig, `{"phone":"07123456789"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, response.CodeServerError, env.Error.Code)
}
