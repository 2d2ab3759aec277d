package ratelimit

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mehmetcc/campaign-auth-service/internal/response"
)

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// ListRequest holds the paging query of the request log listing.
type ListRequest struct {
	Page    int `form:"page" binding:"omitempty,min=1"`
	PerPage int `form:"per_page" binding:"omitempty,min=1,max=200"`
}

// RequestLogHandler exposes the api request log to administrators.
type RequestLogHandler struct {
	router *gin.RouterGroup
	repo   RequestRepository
	logger *zap.Logger
}

// NewRequestLogHandler registers the request log endpoints on the given
// router group, which is expected to be guarded for administrators.
func NewRequestLogHandler(router *gin.RouterGroup, repo RequestRepository, logger *zap.Logger) *RequestLogHandler {
	h := &RequestLogHandler{router: router, repo: repo, logger: logger}
	h.router.GET("/admin/api-requests", h.List)
	return h
}

// List godoc
// @Summary      List API requests
// @Description  Page through the API request log, newest first
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        page      query     int  false  "page number"      minimum(1)
// @Param        per_page  query     int  false  "records per page" minimum(1) maximum(200)
// @Success      200       {object}  response.Envelope{data=[]RequestRecord}
// @Failure      401       {object}  response.Envelope
// @Failure      403       {object}  response.Envelope
// @Failure      422       {object}  response.Envelope
// @Failure      500       {object}  response.Envelope
// @Router       /admin/api-requests [get]
func (h *RequestLogHandler) List(c *gin.Context) {
	var req ListRequest
	if !response.BindQuery(c, &req) {
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PerPage == 0 {
		req.PerPage = defaultPerPage
	}
	req.PerPage = min(req.PerPage, maxPerPage)

	records, total, err := h.repo.List(c.Request.Context(), (req.Page-1)*req.PerPage, req.PerPage)
	if err != nil {
		h.logger.Error("failed to list api requests", zap.Error(err))
		response.ServerError(c, err)
		return
	}
	if records == nil {
		records = []RequestRecord{}
	}
	response.Paginated(c, records, response.NewPagination(req.Page, req.PerPage, total))
}
