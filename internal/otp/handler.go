package otp

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mehmetcc/campaign-auth-service/internal/account"
	"github.com/mehmetcc/campaign-auth-service/internal/response"
	"github.com/mehmetcc/campaign-auth-service/internal/utils"
)

// SendRequest is the payload for requesting a one-time code.
type SendRequest struct {
	Phone string `json:"phone" binding:"required,phone" example:"07123 456789"`
}

// SendResponse tells the client where the code went and how long it lives.
type SendResponse struct {
	Phone     string `json:"phone" example:"071*****789"`
	ExpiresIn int    `json:"expires_in" example:"600"`
}

// OtpHandler serves one-time code requests for donor login.
type OtpHandler struct {
	router   *gin.RouterGroup
	service  OtpService
	accounts account.AccountService
	// conceal answers unknown numbers as if a code had been sent.
	conceal bool
	ttl     int
	logger  *zap.Logger
}

// NewOtpHandler registers otp endpoints on the given router group.
func NewOtpHandler(
	router *gin.RouterGroup,
	service OtpService,
	accounts account.AccountService,
	cfg utils.OtpConfig,
	logger *zap.Logger,
) *OtpHandler {
	h := &OtpHandler{
		router:   router,
		service:  service,
		accounts: accounts,
		conceal:  cfg.ConcealUnknownPhone,
		ttl:      int(cfg.TTL.Seconds()),
		logger:   logger,
	}
	h.router.POST("/auth/otp-send", h.Send)
	return h
}

// Send godoc
// @Summary      Send OTP
// @Description  Send a one-time login code by SMS to a registered donor
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      SendRequest  true  "Donor phone"
// @Success      200      {object}  response.Envelope{data=SendResponse}
// @Failure      400      {object}  response.Envelope
// @Failure      404      {object}  response.Envelope
// @Failure      422      {object}  response.Envelope
// @Failure      429      {object}  response.Envelope
// @Failure      500      {object}  response.Envelope
// @Failure      503      {object}  response.Envelope
// @Router       /auth/otp-send [post]
func (h *OtpHandler) Send(c *gin.Context) {
	var req SendRequest
	if !response.BindJSON(c, &req) {
		return
	}

	_, err := h.accounts.ReadDonorByPhone(c.Request.Context(), req.Phone)
	switch {
	case err == nil:
	case errors.Is(err, account.ErrDonorNotFound):
		if h.conceal {
			canonical, _ := utils.NormalizePhone(req.Phone)
			response.OK(c, SendResponse{Phone: utils.MaskPhone(canonical), ExpiresIn: h.ttl})
			return
		}
		response.Error(c, http.StatusNotFound, response.CodeDonorNotFound, "No donor found with this phone number")
		return
	default:
		response.ServerError(c, err)
		return
	}

	dispatch, err := h.service.Send(c.Request.Context(), req.Phone)
	var cooldown *CooldownError
	switch {
	case err == nil:
		response.OK(c, SendResponse{Phone: dispatch.Phone, ExpiresIn: int(dispatch.ExpiresIn.Seconds())})
	case errors.Is(err, ErrInvalidPhone):
		response.Invalid(c, map[string]string{"phone": "must be a UK mobile number"})
	case errors.As(err, &cooldown):
		response.Throttled(c, response.CodeCooldown, "Please wait before requesting another code", cooldown.WaitSeconds())
	case errors.Is(err, ErrSmsUnavailable):
		response.Error(c, http.StatusServiceUnavailable, response.CodeSmsUnavailable, "Could not send the code, please try again")
	default:
		h.logger.Error("otp send failed", zap.Error(err))
		response.ServerError(c, err)
	}
}
