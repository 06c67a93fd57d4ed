package handler

import (
	"github.com/bitfantasy/nimo-srm/internal/srm/service"
	"github.com/gin-gonic/gin"
)

// RFQHandler 询价单处理器：结构、策略、供应商邀请与选择
type RFQHandler struct {
	rfqSvc       *service.RFQService
	structureSvc *service.StructureService
	statusSvc    *service.StatusService
	responseSvc  *service.ResponseService
}

func NewRFQHandler(
	rfqSvc *service.RFQService,
	structureSvc *service.StructureService,
	statusSvc *service.StatusService,
	responseSvc *service.ResponseService,
) *RFQHandler {
	return &RFQHandler{
		rfqSvc:       rfqSvc,
		structureSvc: structureSvc,
		statusSvc:    statusSvc,
		responseSvc:  responseSvc,
	}
}

// GetRFQ RFQ详情
// GET /api/v1/srm/rfqs/:id
func (h *RFQHandler) GetRFQ(c *gin.Context) {
	rfq, items, suppliers, err := h.rfqSvc.GetRFQ(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "RFQ不存在")
		return
	}
	Success(c, gin.H{
		"rfq":       rfq,
		"items":     items,
		"suppliers": suppliers,
	})
}

// GetTree RFQ结构树
// GET /api/v1/srm/rfqs/:id/tree?view=master|default
func (h *RFQHandler) GetTree(c *gin.Context) {
	view := c.DefaultQuery("view", service.TreeViewMaster)
	if view != service.TreeViewMaster && view != service.TreeViewDefault {
		BadRequest(c, "非法的视图: "+view)
		return
	}

	var crossRef func(itemID string) []service.TreeSupplierRef
	if view == service.TreeViewDefault {
		var err error
		crossRef, err = h.rfqSvc.SupplierCrossRef(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err, "获取供应商交叉引用失败")
			return
		}
	}

	tree, err := h.structureSvc.BuildTree(c.Request.Context(), c.Param("id"), view, crossRef)
	if err != nil {
		respondError(c, err, "获取结构树失败")
		return
	}
	Success(c, tree)
}

// SetStrategy 设置行项策略
// PUT /api/v1/srm/rfq-items/:id/strategy
func (h *RFQHandler) SetStrategy(c *gin.Context) {
	var req service.SetStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	strategy, err := h.structureSvc.SetStrategy(c.Request.Context(), c.Param("id"), &req, GetUserID(c))
	if err != nil {
		respondError(c, err, "设置策略失败")
		return
	}
	Success(c, strategy)
}

// RebuildItem 重建单个行项的组件
// POST /api/v1/srm/rfq-items/:id/rebuild
func (h *RFQHandler) RebuildItem(c *gin.Context) {
	if err := h.structureSvc.RebuildItem(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "重建行项失败")
		return
	}
	Success(c, nil)
}

// RebuildAll 重建RFQ全部行项的组件
// POST /api/v1/srm/rfqs/:id/rebuild
func (h *RFQHandler) RebuildAll(c *gin.Context) {
	if err := h.structureSvc.RebuildAll(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "重建结构失败")
		return
	}
	Success(c, nil)
}

// ConfirmStructure 确认结构
// POST /api/v1/srm/rfqs/:id/confirm
func (h *RFQHandler) ConfirmStructure(c *gin.Context) {
	if err := h.structureSvc.ConfirmStructure(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "确认结构失败")
		return
	}
	Success(c, nil)
}

// InviteSupplier 邀请供应商
// POST /api/v1/srm/rfqs/:id/suppliers
func (h *RFQHandler) InviteSupplier(c *gin.Context) {
	var req service.InviteSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	rs, err := h.rfqSvc.InviteSupplier(c.Request.Context(), c.Param("id"), &req, GetUserID(c))
	if err != nil {
		respondError(c, err, "邀请供应商失败")
		return
	}
	Created(c, rs)
}

// SetSelections 替换供应商行级选择
// PUT /api/v1/srm/rfq-suppliers/:id/selections
func (h *RFQHandler) SetSelections(c *gin.Context) {
	var req service.SetSelectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if err := h.rfqSvc.SetSelections(c.Request.Context(), c.Param("id"), &req, GetUserID(c)); err != nil {
		respondError(c, err, "设置行级选择失败")
		return
	}
	Success(c, nil)
}

// GetLineStatuses 供应商行状态
// GET /api/v1/srm/rfq-suppliers/:id/line-statuses
func (h *RFQHandler) GetLineStatuses(c *gin.Context) {
	statuses, err := h.statusSvc.StatusMap(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取行状态失败: "+err.Error())
		return
	}
	Success(c, statuses)
}

// SetLineStatuses 批量落位供应商行状态
// PUT /api/v1/srm/rfq-suppliers/:id/line-statuses
func (h *RFQHandler) SetLineStatuses(c *gin.Context) {
	var req service.SetStatusesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if err := h.statusSvc.SetStatuses(c.Request.Context(), c.Param("id"), req.Items); err != nil {
		respondError(c, err, "批量设置行状态失败")
		return
	}
	Success(c, nil)
}

// SetLineStatus 手工落位单行状态
// PUT /api/v1/srm/rfq-suppliers/:id/line-statuses/:item_id
func (h *RFQHandler) SetLineStatus(c *gin.Context) {
	var req service.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if err := h.statusSvc.SetStatus(c.Request.Context(), c.Param("id"), c.Param("item_id"), req.Status); err != nil {
		respondError(c, err, "设置行状态失败")
		return
	}
	Success(c, nil)
}
