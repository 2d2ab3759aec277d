package authentication

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mehmetcc/campaign-auth-service/internal/account"
	"github.com/mehmetcc/campaign-auth-service/internal/response"
)

const (
	userTypeDonor = "donor"
	userTypeStaff = "user"
)

// LoginRequest is the payload for logging in. Donors present a one-time
// code, staff a password.
type LoginRequest struct {
	UserType   string `json:"user_type" binding:"required,oneof=donor user" example:"donor"`
	Phone      string `json:"phone" binding:"required,phone" example:"07123 456789"`
	OtpCode    string `json:"otp_code" binding:"required_if=UserType donor,omitempty,otp" example:"042917"`
	Password   string `json:"password" binding:"required_if=UserType user,omitempty,max=72"`
	DeviceInfo string `json:"device_info" binding:"omitempty,max=255" example:"Pixel 8 / Chrome"`
}

// RefreshRequest is the payload for refreshing a token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
	DeviceInfo   string `json:"device_info" binding:"omitempty,max=255"`
}

// RevokeSessionsRequest names the principal whose sessions an admin ends.
type RevokeSessionsRequest struct {
	UserType string `json:"user_type" binding:"required,oneof=donor admin registrar" example:"registrar"`
	UserID   uint   `json:"user_id" binding:"required,min=1" example:"42"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// RevokedResponse reports how many token pairs were revoked.
type RevokedResponse struct {
	Revoked int64 `json:"revoked"`
}

// MeResponse describes the authenticated caller.
type MeResponse struct {
	UserType account.UserType  `json:"user_type"`
	UserID   uint              `json:"user_id"`
	User     *account.UserView `json:"user"`
}

// AuthHandler handles authentication-related HTTP endpoints.
type AuthHandler struct {
	service AuthenticationService
	logger  *zap.Logger
}

// NewAuthHandler registers the token endpoints. public must not require a
// bearer token; protected must run RequireAuth first.
func NewAuthHandler(public, protected *gin.RouterGroup, service AuthenticationService, logger *zap.Logger) *AuthHandler {
	h := &AuthHandler{service: service, logger: logger}
	public.POST("/auth/login", h.Login)
	public.POST("/auth/refresh", h.Refresh)
	protected.POST("/auth/logout", h.Logout)
	protected.POST("/auth/logout-all", h.LogoutAll)
	protected.GET("/auth/me", h.Me)
	protected.GET("/auth/sessions", h.Sessions)
	return h
}

// NewAdminHandler registers the session administration endpoints on a group
// restricted to administrators.
func NewAdminHandler(admin *gin.RouterGroup, service AuthenticationService, logger *zap.Logger) *AuthHandler {
	h := &AuthHandler{service: service, logger: logger}
	admin.POST("/admin/sessions/revoke", h.RevokeSessions)
	return h
}

func provenance(c *gin.Context, deviceInfo string) Provenance {
	return Provenance{
		DeviceInfo: deviceInfo,
		IPAddress:  c.ClientIP(),
		UserAgent:  truncate(c.Request.UserAgent(), 512),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Login godoc
// @Summary      Login
// @Description  Authenticate a donor with a one-time code or a staff user with a password and issue a token pair
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      LoginRequest  true  "Login credentials"
// @Success      200      {object}  response.Envelope{data=TokenResponse}
// @Failure      400      {object}  response.Envelope
// @Failure      401      {object}  response.Envelope
// @Failure      404      {object}  response.Envelope
// @Failure      422      {object}  response.Envelope
// @Failure      429      {object}  response.Envelope
// @Failure      500      {object}  response.Envelope
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !response.BindJSON(c, &req) {
		return
	}

	var (
		tokens *TokenResponse
		err    error
	)
	p := provenance(c, req.DeviceInfo)
	if req.UserType == userTypeDonor {
		tokens, err = h.service.AuthenticateDonor(c.Request.Context(), req.Phone, req.OtpCode, p)
	} else {
		tokens, err = h.service.AuthenticateUser(c.Request.Context(), req.Phone, req.Password, p)
	}

	switch {
	case err == nil:
		response.OK(c, tokens)
	case errors.Is(err, ErrInvalidOtp):
		response.Error(c, http.StatusUnauthorized, response.CodeInvalidOtp, "Invalid or expired OTP")
	case errors.Is(err, ErrDonorNotFound):
		response.Error(c, http.StatusNotFound, response.CodeDonorNotFound, "No donor found with this phone number")
	case errors.Is(err, ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, "Invalid credentials")
	default:
		h.logger.Error("Login service failed", zap.Error(err))
		response.ServerError(c, err)
	}
}

// Refresh godoc
// @Summary      Refresh Token
// @Description  Consume a refresh token and issue a new token pair
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      RefreshRequest  true  "Refresh token payload"
// @Success      200      {object}  response.Envelope{data=TokenResponse}
// @Failure      400      {object}  response.Envelope
// @Failure      401      {object}  response.Envelope
// @Failure      422      {object}  response.Envelope
// @Failure      429      {object}  response.Envelope
// @Failure      500      {object}  response.Envelope
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if !response.BindJSON(c, &req) {
		return
	}

	tokens, err := h.service.Refresh(c.Request.Context(), req.RefreshToken, provenance(c, req.DeviceInfo))
	switch {
	case err == nil:
		response.OK(c, tokens)
	case errors.Is(err, ErrInvalidRefreshToken):
		response.Error(c, http.StatusUnauthorized, response.CodeInvalidRefreshToken, "Invalid or expired refresh token")
	default:
		h.logger.Error("Refresh service failed", zap.Error(err))
		response.ServerError(c, err)
	}
}

// Logout godoc
// @Summary      Logout
// @Description  Revoke the presented access token and its refresh token
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Envelope{data=MessageResponse}
// @Failure      401  {object}  response.Envelope
// @Failure      404  {object}  response.Envelope
// @Failure      500  {object}  response.Envelope
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	revoked, err := h.service.Revoke(c.Request.Context(), currentToken(c))
	switch {
	case err != nil:
		response.ServerError(c, err)
	case !revoked:
		response.Error(c, http.StatusNotFound, response.CodeTokenNotFound, "Token not found")
	default:
		response.OK(c, MessageResponse{Message: "Logged out successfully"})
	}
}

// LogoutAll godoc
// @Summary      Logout everywhere
// @Description  Revoke every token pair of the authenticated caller
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Envelope{data=RevokedResponse}
// @Failure      401  {object}  response.Envelope
// @Failure      500  {object}  response.Envelope
// @Router       /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	identity, ok := CurrentIdentity(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeNoToken, "Authentication required")
		return
	}
	n, err := h.service.RevokeAll(c.Request.Context(), identity.UserType, identity.UserID)
	if err != nil {
		response.ServerError(c, err)
		return
	}
	response.OK(c, RevokedResponse{Revoked: n})
}

// Me godoc
// @Summary      Current principal
// @Description  Return the identity and current profile behind the access token
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Envelope{data=MeResponse}
// @Failure      401  {object}  response.Envelope
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := CurrentIdentity(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeNoToken, "Authentication required")
		return
	}
	response.OK(c, MeResponse{UserType: identity.Role(), UserID: identity.UserID, User: identity.User})
}

// Sessions godoc
// @Summary      Active sessions
// @Description  List the caller's unrevoked token pairs, newest first
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Envelope{data=[]SessionView}
// @Failure      401  {object}  response.Envelope
// @Failure      500  {object}  response.Envelope
// @Router       /auth/sessions [get]
func (h *AuthHandler) Sessions(c *gin.Context) {
	identity, ok := CurrentIdentity(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeNoToken, "Authentication required")
		return
	}
	pairs, err := h.service.Sessions(c.Request.Context(), identity.UserType, identity.UserID)
	if err != nil {
		h.logger.Error("Sessions service failed", zap.Error(err))
		response.ServerError(c, err)
		return
	}
	views := make([]SessionView, 0, len(pairs))
	for i := range pairs {
		views = append(views, NewSessionView(&pairs[i], identity.TokenID))
	}
	response.OK(c, views)
}

// RevokeSessions godoc
// @Summary      Revoke a user's sessions
// @Description  Revoke every token pair held by the given principal
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      RevokeSessionsRequest  true  "Principal"
// @Success      200      {object}  response.Envelope{data=RevokedResponse}
// @Failure      401      {object}  response.Envelope
// @Failure      403      {object}  response.Envelope
// @Failure      422      {object}  response.Envelope
// @Failure      500      {object}  response.Envelope
// @Router       /admin/sessions/revoke [post]
func (h *AuthHandler) RevokeSessions(c *gin.Context) {
	var req RevokeSessionsRequest
	if !response.BindJSON(c, &req) {
		return
	}
	n, err := h.service.RevokeAll(c.Request.Context(), account.UserType(req.UserType), req.UserID)
	if err != nil {
		response.ServerError(c, err)
		return
	}
	if identity, ok := CurrentIdentity(c); ok {
		h.logger.Info("sessions revoked by admin",
			zap.Uint("adminID", identity.UserID),
			zap.String("userType", req.UserType),
			zap.Uint("userID", req.UserID),
			zap.Int64("count", n),
		)
	}
	response.OK(c, RevokedResponse{Revoked: n})
}
