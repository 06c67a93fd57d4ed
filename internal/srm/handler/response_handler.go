package handler

import (
	"path/filepath"
	"strings"

	"github.com/bitfantasy/nimo-srm/internal/srm/service"
	"github.com/gin-gonic/gin"
)

// ResponseHandler 供应商报价处理器
type ResponseHandler struct {
	responseSvc *service.ResponseService
	statusSvc   *service.StatusService
}

func NewResponseHandler(responseSvc *service.ResponseService, statusSvc *service.StatusService) *ResponseHandler {
	return &ResponseHandler{responseSvc: responseSvc, statusSvc: statusSvc}
}

// ImportBatch 批量导入报价（JSON）
// POST /api/v1/srm/rfq-suppliers/:id/responses
func (h *ResponseHandler) ImportBatch(c *gin.Context) {
	var req service.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.responseSvc.ImportBatch(c.Request.Context(), c.Param("id"), &req, GetUserID(c))
	if err != nil {
		respondError(c, err, "导入报价失败")
		return
	}
	Created(c, result)
}

// ImportFile 导入报价文件（Excel或GBK编码CSV）
// POST /api/v1/srm/rfq-suppliers/:id/responses/file
func (h *ResponseHandler) ImportFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少报价文件")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		BadRequest(c, "打开报价文件失败: "+err.Error())
		return
	}
	defer file.Close()

	var entries []service.ImportEntry
	switch strings.ToLower(filepath.Ext(fileHeader.Filename)) {
	case ".xlsx", ".xls":
		entries, err = service.ParseWorkbook(file)
	case ".csv":
		entries, err = service.ParseCSV(file)
	default:
		BadRequest(c, "不支持的文件类型: "+fileHeader.Filename)
		return
	}
	if err != nil {
		BadRequest(c, "解析报价文件失败: "+err.Error())
		return
	}
	if len(entries) == 0 {
		BadRequest(c, "报价文件没有有效行")
		return
	}

	req := &service.ImportRequest{
		Entries:     entries,
		NewRevision: c.Query("new_revision") == "true",
	}
	result, err := h.responseSvc.ImportBatch(c.Request.Context(), c.Param("id"), req, GetUserID(c))
	if err != nil {
		respondError(c, err, "导入报价失败")
		return
	}
	Created(c, result)
}

// AcceptExisting 接受既有价格
// POST /api/v1/srm/rfq-suppliers/:id/accept-existing
func (h *ResponseHandler) AcceptExisting(c *gin.Context) {
	var req service.AcceptExistingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	line, err := h.responseSvc.AcceptExisting(c.Request.Context(), c.Param("id"), &req, GetUserID(c))
	if err != nil {
		respondError(c, err, "接受既有价格失败")
		return
	}
	Created(c, line)
}

// GetHistory 供应商报价历史
// GET /api/v1/srm/rfq-suppliers/:id/responses
func (h *ResponseHandler) GetHistory(c *gin.Context) {
	revs, linesByRev, err := h.responseSvc.ResponseHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取报价历史失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"revisions": revs,
		"lines":     linesByRev,
	})
}
