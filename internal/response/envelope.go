// Package response renders the JSON envelope shared by every API endpoint:
//
//	{"success": true, "data": ...}
//	{"success": true, "data": [...], "pagination": {...}}
//	{"success": false, "error": {"message": "...", "code": "..."}}
package response

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Code is the machine-readable error code carried in the envelope.
type Code string

const (
	CodeBadRequest          Code = "BAD_REQUEST"
	CodeInvalidJSON         Code = "INVALID_JSON"
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeInvalidCredentials  Code = "INVALID_CREDENTIALS"
	CodeInvalidOtp          Code = "INVALID_OTP"
	CodeInvalidToken        Code = "INVALID_TOKEN"
	CodeInvalidRefreshToken Code = "INVALID_REFRESH_TOKEN"
	CodeNoToken             Code = "NO_TOKEN"
	CodeForbidden           Code = "FORBIDDEN"
	CodeDonorNotFound       Code = "DONOR_NOT_FOUND"
	CodeTokenNotFound       Code = "TOKEN_NOT_FOUND"
	CodeRateLimited         Code = "RATE_LIMITED"
	CodeCooldown            Code = "COOLDOWN"
	CodeServerError         Code = "SERVER_ERROR"
	CodeSmsUnavailable      Code = "SMS_UNAVAILABLE"
)

// ContextErrorKey holds the message of the error written for the current
// request, for audit logging.
const ContextErrorKey = "response_error"

// ErrorBody is the error member of a failed envelope.
type ErrorBody struct {
	Message     string            `json:"message"`
	Code        Code              `json:"code"`
	Details     map[string]string `json:"details,omitempty"`
	WaitSeconds int               `json:"wait_seconds,omitempty"`
}

// Envelope is the top-level response shape.
type Envelope struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func NewPagination(page, perPage int, total int64) *Pagination {
	pages := 0
	if perPage > 0 {
		pages = int(math.Ceil(float64(total) / float64(perPage)))
	}
	return &Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: pages}
}

func Success(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

func OK(c *gin.Context, data any) {
	Success(c, http.StatusOK, data)
}

func Paginated(c *gin.Context, data any, p *Pagination) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data, Pagination: p})
}

// Error aborts the request with a failed envelope.
func Error(c *gin.Context, status int, code Code, message string) {
	abort(c, status, &ErrorBody{Message: message, Code: code})
}

// Throttled aborts with a throttling error that tells the client how long to wait.
func Throttled(c *gin.Context, code Code, message string, waitSeconds int) {
	abort(c, http.StatusTooManyRequests, &ErrorBody{Message: message, Code: code, WaitSeconds: waitSeconds})
}

// Invalid aborts with 422 and a per-field detail map.
func Invalid(c *gin.Context, details map[string]string) {
	abort(c, http.StatusUnprocessableEntity, &ErrorBody{
		Message: "validation failed",
		Code:    CodeValidation,
		Details: details,
	})
}

// ServerError hides err from the caller; callers are expected to log it.
func ServerError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	Error(c, http.StatusInternalServerError, CodeServerError, "an internal error occurred")
}

func abort(c *gin.Context, status int, body *ErrorBody) {
	c.Set(ContextErrorKey, body.Message)
	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: body})
}
