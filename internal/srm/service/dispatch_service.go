package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"github.com/bitfantasy/nimo-srm/internal/srm/repository"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DispatchService 差量发送编排器：为每个供应商计算应发行集、
// 生成询价文件并留下不可变发送记录
type DispatchService struct {
	rfqRepo         *repository.RFQRepository
	requestRepo     *repository.RequestRepository
	rfqSupplierRepo *repository.RFQSupplierRepository
	responseRepo    *repository.ResponseRepository
	dispatchRepo    *repository.DispatchRepository

	structureSvc *StructureService
	statusSvc    *StatusService
	diffSvc      *DiffService

	db          *gorm.DB
	redisClient *redis.Client
	minioClient *minio.Client
	bucket      string
	logger      *zap.Logger
}

// NewDispatchService 创建发送服务；redis与minio可为nil（降级运行）
func NewDispatchService(
	repos *repository.Repositories,
	structureSvc *StructureService,
	statusSvc *StatusService,
	diffSvc *DiffService,
	db *gorm.DB,
	redisClient *redis.Client,
	minioClient *minio.Client,
	bucket string,
	logger *zap.Logger,
) *DispatchService {
	return &DispatchService{
		rfqRepo:         repos.RFQ,
		requestRepo:     repos.Request,
		rfqSupplierRepo: repos.RFQSupplier,
		responseRepo:    repos.Response,
		dispatchRepo:    repos.Dispatch,
		structureSvc:    structureSvc,
		statusSvc:       statusSvc,
		diffSvc:         diffSvc,
		db:              db,
		redisClient:     redisClient,
		minioClient:     minioClient,
		bucket:          bucket,
		logger:          logger,
	}
}

// SendRequest 批量发送请求
type SendRequest struct {
	RFQSupplierIDs []string `json:"rfq_supplier_ids" binding:"required,min=1"`
	IncludePriced  bool     `json:"include_priced"`
	Note           string   `json:"note"`
}

// SendResultEntry 单个供应商的发送结果
type SendResultEntry struct {
	RFQSupplierID string `json:"rfq_supplier_id"`
	SupplierName  string `json:"supplier_name,omitempty"`
	DispatchID    string `json:"dispatch_id,omitempty"`
	DispatchType  string `json:"dispatch_type,omitempty"`
	LineCount     int    `json:"line_count,omitempty"`
	DocumentURL   string `json:"document_url,omitempty"`
	Error         string `json:"error,omitempty"`
}

// SendResult 批量发送结果；逐供应商尽力而为，互不拖累
type SendResult struct {
	Succeeded []SendResultEntry `json:"succeeded"`
	Failed    []SendResultEntry `json:"failed"`
}

// Send 向选定供应商发送询价
// 行集决定顺序：显式选择 > 差量 > 全量REQUEST；已有报价的行默认剔除
func (s *DispatchService) Send(ctx context.Context, rfqID string, req *SendRequest, userID string) (*SendResult, error) {
	rfq, err := s.rfqRepo.FindByID(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	if rfq.Status == entity.RFQStatusDraft {
		return nil, fmt.Errorf("%w: 结构未确认，不能发送", repository.ErrConflict)
	}

	request, err := s.requestRepo.FindByID(ctx, rfq.ClientRequestID)
	if err != nil {
		return nil, err
	}
	if request.ActiveRevisionID == nil {
		return nil, fmt.Errorf("%w: 需求单没有生效修订", repository.ErrConflict)
	}

	rev, err := s.freezeRevision(ctx, rfq, *request.ActiveRevisionID, userID)
	if err != nil {
		return nil, err
	}

	result := &SendResult{}
	for _, rsID := range req.RFQSupplierIDs {
		entry := s.sendOne(ctx, rfq, rev, rsID, req, userID)
		if entry.Error != "" {
			result.Failed = append(result.Failed, entry)
		} else {
			result.Succeeded = append(result.Succeeded, entry)
		}
	}

	if len(result.Succeeded) > 0 && rfq.Status != entity.RFQStatusSent {
		if err := s.rfqRepo.UpdateStatus(ctx, rfqID, entity.RFQStatusSent); err != nil {
			return nil, err
		}
	}

	s.logger.Info("询价发送完成",
		zap.String("rfq_id", rfqID),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// freezeRevision 冻结本次发送的RFQ修订
// 需求单生效修订未变时复用当前修订，否则开新修订
func (s *DispatchService) freezeRevision(ctx context.Context, rfq *entity.RFQ, activeRequestRevID, userID string) (*entity.RFQRevision, error) {
	if rfq.CurrentRevisionID != nil {
		current, err := s.rfqRepo.FindRevision(ctx, *rfq.CurrentRevisionID)
		if err != nil {
			return nil, err
		}
		if current.ClientRequestRevisionID == activeRequestRevID {
			return current, nil
		}
	}

	nextNo, err := s.rfqRepo.NextRevisionNumber(ctx, rfq.ID)
	if err != nil {
		return nil, err
	}
	rev := &entity.RFQRevision{
		ID:                      generateID(),
		RFQID:                   rfq.ID,
		RevisionNumber:          nextNo,
		ClientRequestRevisionID: activeRequestRevID,
		CreatedBy:               userID,
		CreatedAt:               time.Now(),
	}
	if err := s.rfqRepo.CreateRevision(ctx, rev); err != nil {
		return nil, err
	}
	rfq.CurrentRevisionID = &rev.ID
	return rev, nil
}

// sendOne 单个供应商的发送；失败写入entry.Error，不向外冒泡
func (s *DispatchService) sendOne(ctx context.Context, rfq *entity.RFQ, rev *entity.RFQRevision, rsID string, req *SendRequest, userID string) SendResultEntry {
	entry := SendResultEntry{RFQSupplierID: rsID}

	// 同一(RFQ, 供应商)对的并发发送用redis锁串行化
	if s.redisClient != nil {
		lockKey := fmt.Sprintf("srm:dispatch:%s:%s", rfq.ID, rsID)
		ok, err := s.redisClient.SetNX(ctx, lockKey, "1", 30*time.Second).Result()
		if err != nil {
			entry.Error = fmt.Sprintf("获取发送锁失败: %v", err)
			return entry
		}
		if !ok {
			entry.Error = "该供应商正在发送中"
			return entry
		}
		defer s.redisClient.Del(ctx, lockKey)
	}

	rs, err := s.rfqSupplierRepo.FindByID(ctx, rsID)
	if err != nil {
		entry.Error = fmt.Sprintf("供应商不存在: %v", err)
		return entry
	}
	if rs.RFQID != rfq.ID {
		entry.Error = "供应商不属于该RFQ"
		return entry
	}
	if rs.Supplier != nil {
		entry.SupplierName = rs.Supplier.Name
	}

	if err := s.statusSvc.SyncSupplier(ctx, rfq.ID, rsID); err != nil {
		entry.Error = fmt.Sprintf("状态同步失败: %v", err)
		return entry
	}

	items, err := s.rfqRepo.ActiveItems(ctx, rfq.ID)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	if err := s.structureSvc.EnsureStrategies(ctx, items); err != nil {
		entry.Error = err.Error()
		return entry
	}

	candidates, dispatchType, anchor, err := s.selectCandidates(ctx, rfq.ID, rs, items, req.IncludePriced)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	if len(candidates) == 0 {
		entry.Error = "无可发送行"
		return entry
	}

	rows, err := s.buildPayloadRows(ctx, rs, candidates)
	if err != nil {
		entry.Error = fmt.Sprintf("生成询价内容失败: %v", err)
		return entry
	}
	payloadHash := hashPayload(rfq.Code, rev.ID, rows)

	fileBytes, err := renderWorkbook(rfq.Code, rs, rows)
	if err != nil {
		entry.Error = fmt.Sprintf("生成询价文件失败: %v", err)
		return entry
	}

	docKey, docURL, err := s.storeDocument(ctx, rfq.Code, rs, fileBytes)
	if err != nil {
		entry.Error = fmt.Sprintf("上传询价文件失败: %v", err)
		return entry
	}

	dispatch := &entity.RFQSupplierDispatch{
		ID:            generateID(),
		RFQSupplierID: rsID,
		DispatchType:  dispatchType,
		RFQRevisionID: rev.ID,
		DocumentKey:   docKey,
		DocumentURL:   docURL,
		PayloadHash:   payloadHash,
		Note:          dispatchNote(len(candidates), len(rows), anchor, req.Note),
		CreatedBy:     userID,
		CreatedAt:     time.Now(),
	}

	itemIDs := make([]string, 0, len(candidates))
	for _, item := range candidates {
		itemIDs = append(itemIDs, item.ID)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.dispatchRepo.Create(ctx, tx, dispatch); err != nil {
			return err
		}
		if err := s.rfqSupplierRepo.AdvanceRevisionState(ctx, tx, rsID, rev.ID); err != nil {
			return err
		}
		if err := s.statusSvc.MarkDispatched(ctx, tx, rsID, itemIDs, rev.ID); err != nil {
			return err
		}
		return tx.Model(&entity.RFQSupplier{}).
			Where("id = ?", rsID).
			Updates(map[string]interface{}{
				"status":     entity.RFQSupplierStatusSent,
				"updated_at": time.Now(),
			}).Error
	})
	if err != nil {
		entry.Error = fmt.Sprintf("写入发送记录失败: %v", err)
		return entry
	}

	entry.DispatchID = dispatch.ID
	entry.DispatchType = dispatchType
	entry.LineCount = len(candidates)
	entry.DocumentURL = docURL
	return entry
}

// selectCandidates 确定供应商应发行集
// 显式选择 > 差量（NEW/CHANGED ∩ REQUEST）> 全量REQUEST；
// ARCHIVED与ACCEPTED_EXISTING永远剔除，已报价行默认剔除
// 返回的锚点是本次差量计算所依据的上次发送修订（首次发送为nil）
func (s *DispatchService) selectCandidates(ctx context.Context, rfqID string, rs *entity.RFQSupplier, items []entity.RFQItem, includePriced bool) ([]entity.RFQItem, string, *string, error) {
	statusMap, err := s.statusSvc.StatusMap(ctx, rs.ID)
	if err != nil {
		return nil, "", nil, err
	}

	var priced map[string]bool
	if !includePriced {
		priced, err = s.responseRepo.PricedItemIDs(ctx, rs.ID)
		if err != nil {
			return nil, "", nil, err
		}
	}

	eligible := func(itemID string) bool {
		switch EffectiveStatus(statusMap, itemID) {
		case entity.LineStatusArchived, entity.LineStatusAcceptedExisting:
			return false
		}
		if !includePriced && priced[itemID] {
			return false
		}
		return true
	}

	diff, err := s.diffSvc.DiffForSupplier(ctx, rfqID, rs.ID)
	if err != nil {
		return nil, "", nil, err
	}

	selections, err := s.rfqSupplierRepo.Selections(ctx, rs.ID)
	if err != nil {
		return nil, "", nil, err
	}
	if len(selections) > 0 {
		selected := make(map[string]bool)
		for _, sel := range selections {
			if !sel.UseExistingPrice {
				selected[sel.RFQItemID] = true
			}
		}
		var out []entity.RFQItem
		for _, item := range items {
			if selected[item.ID] && eligible(item.ID) {
				out = append(out, item)
			}
		}
		return out, s.dispatchTypeFor(ctx, rs.ID), diff.AnchorRevisionID, nil
	}

	// 首次发送：全量REQUEST
	if diff.AnchorRevisionID == nil {
		var out []entity.RFQItem
		for _, item := range items {
			if EffectiveStatus(statusMap, item.ID) == entity.LineStatusRequest && eligible(item.ID) {
				out = append(out, item)
			}
		}
		return out, entity.DispatchTypeFull, nil, nil
	}

	// 差量：NEW/CHANGED且仍在REQUEST的行才重询，
	// 已应答或已接受的行即使内容有变也不再打扰供应商
	classByItem := make(map[string]string, len(diff.Lines))
	for _, d := range diff.Lines {
		classByItem[d.RFQItemID] = d.Classification
	}
	var out []entity.RFQItem
	for _, item := range items {
		class := classByItem[item.ID]
		changed := class == DiffNew || class == DiffChanged
		inRequest := EffectiveStatus(statusMap, item.ID) == entity.LineStatusRequest
		if changed && inRequest && eligible(item.ID) {
			out = append(out, item)
		}
	}
	return out, entity.DispatchTypeDelta, diff.AnchorRevisionID, nil
}

// dispatchNote 发送记录备注：行数与差量锚点，附调用方说明
func dispatchNote(candidateCount, rowCount int, anchor *string, callerNote string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "候选行%d 明细行%d", candidateCount, rowCount)
	if anchor != nil {
		b.WriteString(" 锚点修订")
		b.WriteString(*anchor)
	} else {
		b.WriteString(" 首次发送")
	}
	if callerNote != "" {
		b.WriteString("；")
		b.WriteString(callerNote)
	}
	return b.String()
}

func (s *DispatchService) dispatchTypeFor(ctx context.Context, rsID string) string {
	state, err := s.rfqSupplierRepo.RevisionState(ctx, rsID)
	if err != nil || state.LastSentRevisionID == nil {
		return entity.DispatchTypeFull
	}
	return entity.DispatchTypeDelta
}

// payloadRow 询价文件的一行
type payloadRow struct {
	LineNumber    int
	RowType       string // DEMAND/BOM_COMPONENT/KIT_ROLE
	CatalogNumber string
	Description   string
	Qty           float64
	UOM           string
}

// buildPayloadRows 按供应商RFQ格式展开行
// whole只发整件，bom只发组件，kit发套件角色，auto跟随行项策略
func (s *DispatchService) buildPayloadRows(ctx context.Context, rs *entity.RFQSupplier, items []entity.RFQItem) ([]payloadRow, error) {
	var rows []payloadRow
	for _, item := range items {
		demand := payloadRow{
			LineNumber: item.LineNumber,
			RowType:    entity.SelectionOptionDemand,
			Qty:        item.RequestedQty,
			UOM:        item.UOM,
		}
		if line := item.RequestLine; line != nil {
			demand.Description = line.ClientDescription
			if line.OriginalPart != nil {
				demand.CatalogNumber = line.OriginalPart.CatalogNumber
				if demand.Description == "" {
					demand.Description = line.OriginalPart.Name
				}
			} else if demand.CatalogNumber == "" {
				demand.CatalogNumber = line.ClientPartNumber
			}
		}

		componentRows := func() []payloadRow {
			var out []payloadRow
			for _, comp := range item.Components {
				row := payloadRow{
					LineNumber: item.LineNumber,
					RowType:    entity.SelectionOptionBOMComponent,
					Qty:        comp.RequiredQty,
					UOM:        item.UOM,
				}
				if comp.OriginalPart != nil {
					row.CatalogNumber = comp.OriginalPart.CatalogNumber
					row.Description = comp.OriginalPart.Name
				}
				out = append(out, row)
			}
			return out
		}

		kitRows := func() ([]payloadRow, error) {
			st := item.Strategy
			if st == nil || st.SelectedBundleID == nil {
				return nil, nil
			}
			bundle, err := s.structureSvc.supplierRepo.FindBundle(ctx, *st.SelectedBundleID)
			if err != nil {
				if err == repository.ErrNotFound {
					return nil, nil
				}
				return nil, err
			}
			var out []payloadRow
			for _, role := range bundle.Roles {
				out = append(out, payloadRow{
					LineNumber:  item.LineNumber,
					RowType:     entity.SelectionOptionKitRole,
					Description: role.Role,
					Qty:         role.Quantity * item.RequestedQty,
					UOM:         item.UOM,
				})
			}
			return out, nil
		}

		switch rs.RFQFormat {
		case entity.RFQFormatWhole:
			rows = append(rows, demand)
		case entity.RFQFormatBOM:
			if comps := componentRows(); len(comps) > 0 {
				rows = append(rows, comps...)
			} else {
				rows = append(rows, demand)
			}
		case entity.RFQFormatKit:
			kit, err := kitRows()
			if err != nil {
				return nil, err
			}
			if len(kit) > 0 {
				rows = append(rows, kit...)
			} else {
				rows = append(rows, demand)
			}
		default: // auto：有组件发组件，否则发整件
			if comps := componentRows(); len(comps) > 0 {
				rows = append(rows, comps...)
			} else {
				rows = append(rows, demand)
			}
		}
	}
	return rows, nil
}

// hashPayload 发送载荷的规范化指纹，与文件字节无关
func hashPayload(rfqCode, revisionID string, rows []payloadRow) string {
	var b strings.Builder
	b.WriteString(rfqCode)
	b.WriteByte('|')
	b.WriteString(revisionID)
	for _, row := range rows {
		fmt.Fprintf(&b, "|%d:%s:%s:%s:%g:%s",
			row.LineNumber, row.RowType, row.CatalogNumber, row.Description, row.Qty, row.UOM)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// renderWorkbook 渲染询价Excel
func renderWorkbook(rfqCode string, rs *entity.RFQSupplier, rows []payloadRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "RFQ"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	supplierName := ""
	if rs.Supplier != nil {
		supplierName = rs.Supplier.Name
	}
	f.SetCellValue(sheet, "A1", "RFQ Code")
	f.SetCellValue(sheet, "B1", rfqCode)
	f.SetCellValue(sheet, "A2", "Supplier")
	f.SetCellValue(sheet, "B2", supplierName)
	f.SetCellValue(sheet, "A3", "Date")
	f.SetCellValue(sheet, "B3", time.Now().Format("2006-01-02"))

	headers := []string{"Line", "Type", "Catalog Number", "Description", "Qty", "UOM", "Unit Price", "Currency", "Lead Time (days)"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 5)
		f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 6
		f.SetCellValue(sheet, fmt.Sprintf("A%d", r), row.LineNumber)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", r), row.RowType)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", r), row.CatalogNumber)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", r), row.Description)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", r), row.Qty)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", r), row.UOM)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// storeDocument 上传询价文件到对象存储；未配置minio时跳过
func (s *DispatchService) storeDocument(ctx context.Context, rfqCode string, rs *entity.RFQSupplier, fileBytes []byte) (string, string, error) {
	if s.minioClient == nil {
		return "", "", nil
	}

	objectName := fmt.Sprintf("rfq/%s/%s_%d.xlsx", rfqCode, rs.SupplierID, time.Now().UnixMilli())
	_, err := s.minioClient.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(fileBytes), int64(len(fileBytes)),
		minio.PutObjectOptions{
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		})
	if err != nil {
		return "", "", err
	}

	url, err := s.minioClient.PresignedGetObject(ctx, s.bucket, objectName, 7*24*time.Hour, nil)
	if err != nil {
		return objectName, "", nil
	}
	return objectName, url.String(), nil
}

// ListDispatches 供应商发送历史
func (s *DispatchService) ListDispatches(ctx context.Context, rfqSupplierID string) ([]entity.RFQSupplierDispatch, error) {
	return s.dispatchRepo.ListBySupplier(ctx, rfqSupplierID)
}

// Preview 发送预演：只计算应发行集与类型，不产生任何副作用
func (s *DispatchService) Preview(ctx context.Context, rfqID, rfqSupplierID string, includePriced bool) (*SendResultEntry, []LineDiff, error) {
	rfq, err := s.rfqRepo.FindByID(ctx, rfqID)
	if err != nil {
		return nil, nil, err
	}
	rs, err := s.rfqSupplierRepo.FindByID(ctx, rfqSupplierID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.statusSvc.SyncSupplier(ctx, rfq.ID, rfqSupplierID); err != nil {
		return nil, nil, err
	}

	items, err := s.rfqRepo.ActiveItems(ctx, rfq.ID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.structureSvc.EnsureStrategies(ctx, items); err != nil {
		return nil, nil, err
	}

	candidates, dispatchType, _, err := s.selectCandidates(ctx, rfq.ID, rs, items, includePriced)
	if err != nil {
		return nil, nil, err
	}
	diff, err := s.diffSvc.DiffForSupplier(ctx, rfq.ID, rfqSupplierID)
	if err != nil {
		return nil, nil, err
	}

	entry := &SendResultEntry{
		RFQSupplierID: rfqSupplierID,
		DispatchType:  dispatchType,
		LineCount:     len(candidates),
	}
	if rs.Supplier != nil {
		entry.SupplierName = rs.Supplier.Name
	}
	return entry, diff.Lines, nil
}
