package handler

import (
	"github.com/bitfantasy/nimo-srm/internal/srm/service"
	"github.com/gin-gonic/gin"
)

// CatalogHandler 零件目录处理器
type CatalogHandler struct {
	svc *service.CatalogService
}

func NewCatalogHandler(svc *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// CreateModel 创建设备型号
// POST /api/v1/srm/models
func (h *CatalogHandler) CreateModel(c *gin.Context) {
	var req service.CreateModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	model, err := h.svc.CreateModel(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "创建设备型号失败")
		return
	}
	Created(c, model)
}

// CreatePart 创建零件
// POST /api/v1/srm/parts
func (h *CatalogHandler) CreatePart(c *gin.Context) {
	var req service.CreatePartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	part, err := h.svc.CreatePart(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		respondError(c, err, "创建零件失败")
		return
	}
	Created(c, part)
}

// ListParts 零件列表
// GET /api/v1/srm/parts?equipment_model_id=xxx&keyword=xxx&page=1&page_size=20
func (h *CatalogHandler) ListParts(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"equipment_model_id": c.Query("equipment_model_id"),
		"keyword":            c.Query("keyword"),
	}

	items, total, err := h.svc.ListParts(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取零件列表失败: "+err.Error())
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

// GetPart 零件详情
// GET /api/v1/srm/parts/:id
func (h *CatalogHandler) GetPart(c *gin.Context) {
	part, err := h.svc.GetPart(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "零件不存在")
		return
	}
	Success(c, part)
}

// AddBOMEdge 插入组成边
// POST /api/v1/srm/bom/edges
func (h *CatalogHandler) AddBOMEdge(c *gin.Context) {
	var req service.AddBOMEdgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	edge, err := h.svc.AddBOMEdge(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		respondError(c, err, "插入组成边失败")
		return
	}
	Created(c, edge)
}

// RemoveBOMEdge 删除组成边
// DELETE /api/v1/srm/bom/edges/:id
func (h *CatalogHandler) RemoveBOMEdge(c *gin.Context) {
	if err := h.svc.RemoveBOMEdge(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "删除组成边失败")
		return
	}
	Success(c, nil)
}

// GetSubtree 零件组成展示树
// GET /api/v1/srm/parts/:id/subtree
func (h *CatalogHandler) GetSubtree(c *gin.Context) {
	nodes, err := h.svc.Subtree(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "获取组成树失败")
		return
	}
	Success(c, nodes)
}
