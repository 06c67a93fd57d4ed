package handler

import (
	"github.com/bitfantasy/nimo-srm/internal/srm/service"
	"github.com/gin-gonic/gin"
)

// DispatchHandler 询价发送处理器
type DispatchHandler struct {
	dispatchSvc *service.DispatchService
	diffSvc     *service.DiffService
}

func NewDispatchHandler(dispatchSvc *service.DispatchService, diffSvc *service.DiffService) *DispatchHandler {
	return &DispatchHandler{dispatchSvc: dispatchSvc, diffSvc: diffSvc}
}

// Send 向选定供应商发送询价
// POST /api/v1/srm/rfqs/:id/send
func (h *DispatchHandler) Send(c *gin.Context) {
	var req service.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.dispatchSvc.Send(c.Request.Context(), c.Param("id"), &req, GetUserID(c))
	if err != nil {
		respondError(c, err, "发送询价失败")
		return
	}
	Success(c, result)
}

// Preview 发送预演
// GET /api/v1/srm/rfqs/:id/send-preview?rfq_supplier_id=xxx&include_priced=true
func (h *DispatchHandler) Preview(c *gin.Context) {
	rsID := c.Query("rfq_supplier_id")
	if rsID == "" {
		BadRequest(c, "缺少rfq_supplier_id")
		return
	}
	includePriced := c.Query("include_priced") == "true"

	entry, diff, err := h.dispatchSvc.Preview(c.Request.Context(), c.Param("id"), rsID, includePriced)
	if err != nil {
		respondError(c, err, "发送预演失败")
		return
	}
	Success(c, gin.H{
		"summary": entry,
		"diff":    diff,
	})
}

// GetDiff 供应商视角的行差异
// GET /api/v1/srm/rfqs/:id/diff?rfq_supplier_id=xxx
func (h *DispatchHandler) GetDiff(c *gin.Context) {
	rsID := c.Query("rfq_supplier_id")
	if rsID == "" {
		BadRequest(c, "缺少rfq_supplier_id")
		return
	}

	diff, err := h.diffSvc.DiffForSupplier(c.Request.Context(), c.Param("id"), rsID)
	if err != nil {
		respondError(c, err, "计算差异失败")
		return
	}
	Success(c, diff)
}

// ListDispatches 供应商发送历史
// GET /api/v1/srm/rfq-suppliers/:id/dispatches
func (h *DispatchHandler) ListDispatches(c *gin.Context) {
	dispatches, err := h.dispatchSvc.ListDispatches(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取发送历史失败: "+err.Error())
		return
	}
	Success(c, dispatches)
}
