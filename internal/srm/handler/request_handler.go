package handler

import (
	"github.com/bitfantasy/nimo-srm/internal/srm/service"
	"github.com/gin-gonic/gin"
)

// RequestHandler 客户需求单处理器
type RequestHandler struct {
	svc *service.RequestService
}

func NewRequestHandler(svc *service.RequestService) *RequestHandler {
	return &RequestHandler{svc: svc}
}

// CreateRequest 创建需求单
// POST /api/v1/srm/requests
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	var req service.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	request, err := h.svc.CreateRequest(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		respondError(c, err, "创建需求单失败")
		return
	}
	Created(c, request)
}

// GetRequest 需求单详情（含生效修订）
// GET /api/v1/srm/requests/:id
func (h *RequestHandler) GetRequest(c *gin.Context) {
	request, rev, err := h.svc.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "需求单不存在")
		return
	}
	Success(c, gin.H{
		"request":         request,
		"active_revision": rev,
	})
}

// ReviseRequestBody 追加修订请求体
type ReviseRequestBody struct {
	Comment string                     `json:"comment"`
	Lines   []service.RequestLineInput `json:"lines" binding:"required,min=1,dive"`
}

// ReviseRequest 追加需求单修订
// POST /api/v1/srm/requests/:id/revisions
func (h *RequestHandler) ReviseRequest(c *gin.Context) {
	var body ReviseRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	rev, err := h.svc.ReviseRequest(c.Request.Context(), c.Param("id"), body.Lines, body.Comment, GetUserID(c))
	if err != nil {
		respondError(c, err, "追加修订失败")
		return
	}
	Created(c, rev)
}

// ReleaseRequest 放行需求单并创建RFQ
// POST /api/v1/srm/requests/:id/release
func (h *RequestHandler) ReleaseRequest(c *gin.Context) {
	rfq, err := h.svc.ReleaseRequest(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		respondError(c, err, "放行需求单失败")
		return
	}
	Success(c, rfq)
}

// CloseRequest 关闭需求单
// POST /api/v1/srm/requests/:id/close
func (h *RequestHandler) CloseRequest(c *gin.Context) {
	if err := h.svc.CloseRequest(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "关闭需求单失败")
		return
	}
	Success(c, nil)
}
