package handler

import (
	"github.com/bitfantasy/nimo-srm/internal/srm/service"
	"github.com/gin-gonic/gin"
)

// SupplierHandler 供应商处理器
type SupplierHandler struct {
	svc *service.SupplierService
}

func NewSupplierHandler(svc *service.SupplierService) *SupplierHandler {
	return &SupplierHandler{svc: svc}
}

// ListSuppliers 供应商列表
// GET /api/v1/srm/suppliers?keyword=xxx&status=xxx&page=1&page_size=20
func (h *SupplierHandler) ListSuppliers(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"keyword": c.Query("keyword"),
		"status":  c.Query("status"),
	}

	items, total, err := h.svc.ListSuppliers(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取供应商列表失败: "+err.Error())
		return
	}

	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: listPages(total, pageSize),
		},
	})
}

// GetSupplier 供应商详情
// GET /api/v1/srm/suppliers/:id
func (h *SupplierHandler) GetSupplier(c *gin.Context) {
	supplier, err := h.svc.GetSupplier(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "供应商不存在")
		return
	}
	Success(c, supplier)
}

// CreateSupplier 创建供应商
// POST /api/v1/srm/suppliers
func (h *SupplierHandler) CreateSupplier(c *gin.Context) {
	var req service.CreateSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	supplier, err := h.svc.CreateSupplier(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		respondError(c, err, "创建供应商失败")
		return
	}
	Created(c, supplier)
}

// CreateBundle 创建供应商套件
// POST /api/v1/srm/suppliers/:id/bundles
func (h *SupplierHandler) CreateBundle(c *gin.Context) {
	var req service.CreateBundleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	bundle, err := h.svc.CreateBundle(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err, "创建套件失败")
		return
	}
	Created(c, bundle)
}

// GetPriceHistory 供应商件号价格历史
// GET /api/v1/srm/supplier-parts/:id/prices
func (h *SupplierHandler) GetPriceHistory(c *gin.Context) {
	prices, err := h.svc.PriceHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取价格历史失败: "+err.Error())
		return
	}
	Success(c, prices)
}
