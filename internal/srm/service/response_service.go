package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"github.com/bitfantasy/nimo-srm/internal/srm/repository"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
	"gorm.io/gorm"
)

// ResponseService 报价录入与既有价格接受
type ResponseService struct {
	rfqRepo         *repository.RFQRepository
	rfqSupplierRepo *repository.RFQSupplierRepository
	supplierRepo    *repository.SupplierRepository
	responseRepo    *repository.ResponseRepository
	statusSvc       *StatusService
	db              *gorm.DB
	logger          *zap.Logger
}

// NewResponseService 创建报价服务
func NewResponseService(
	repos *repository.Repositories,
	statusSvc *StatusService,
	db *gorm.DB,
	logger *zap.Logger,
) *ResponseService {
	return &ResponseService{
		rfqRepo:         repos.RFQ,
		rfqSupplierRepo: repos.RFQSupplier,
		supplierRepo:    repos.Supplier,
		responseRepo:    repos.Response,
		statusSvc:       statusSvc,
		db:              db,
		logger:          logger,
	}
}

// ImportEntry 一条报价录入；按行项ID或行号匹配，二选一
type ImportEntry struct {
	RFQItemID          string  `json:"rfq_item_id"`
	LineNumber         int     `json:"line_number"`
	SupplierPartNumber string  `json:"supplier_part_number" binding:"required"`
	PartName           string  `json:"part_name"`
	OfferType          string  `json:"offer_type"`
	Price              string  `json:"price" binding:"required"`
	Currency           string  `json:"currency" binding:"required"`
	LeadTimeDays       *int    `json:"lead_time_days"`
	ChangeReason       string  `json:"change_reason"`
}

// ImportRequest 批量报价导入请求
type ImportRequest struct {
	Entries     []ImportEntry `json:"entries" binding:"required,min=1"`
	NewRevision bool          `json:"new_revision"`
}

// ImportResult 导入结果；不匹配的行静默跳过但计数
type ImportResult struct {
	ResponseRevisionID string `json:"response_revision_id"`
	RevisionNumber     int    `json:"revision_number"`
	Inserted           int    `json:"inserted"`
	Skipped            int    `json:"skipped"`
}

// ImportBatch 批量导入供应商报价
// 每条按行项ID或行号在活动行集内匹配，匹配不上的静默跳过；
// 整批落在一个报价修订里，行只追加，修正靠change_reason
func (s *ResponseService) ImportBatch(ctx context.Context, rfqSupplierID string, req *ImportRequest, userID string) (*ImportResult, error) {
	rs, err := s.rfqSupplierRepo.FindByID(ctx, rfqSupplierID)
	if err != nil {
		return nil, err
	}

	if err := s.statusSvc.SyncSupplier(ctx, rs.RFQID, rfqSupplierID); err != nil {
		return nil, err
	}

	items, err := s.rfqRepo.ActiveItems(ctx, rs.RFQID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*entity.RFQItem, len(items))
	byNumber := make(map[int]*entity.RFQItem, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
		byNumber[items[i].LineNumber] = &items[i]
	}

	result := &ImportResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rev, err := s.resolveRevision(ctx, tx, rfqSupplierID, req.NewRevision, userID)
		if err != nil {
			return err
		}
		result.ResponseRevisionID = rev.ID
		result.RevisionNumber = rev.RevisionNumber

		for _, e := range req.Entries {
			item := s.matchItem(e, byID, byNumber)
			if item == nil {
				result.Skipped++
				continue
			}

			price, err := decimal.NewFromString(strings.TrimSpace(e.Price))
			if err != nil || price.IsNegative() {
				result.Skipped++
				continue
			}

			var originalPartID *string
			if item.RequestLine != nil {
				originalPartID = item.RequestLine.OriginalPartID
			}
			supplierPart, err := s.supplierRepo.FindOrCreatePart(ctx, tx,
				rs.SupplierID, e.SupplierPartNumber, e.PartName, originalPartID)
			if err != nil {
				return err
			}

			line := &entity.RFQResponseLine{
				ID:                 generateID(),
				ResponseRevisionID: rev.ID,
				RFQItemID:          item.ID,
				SupplierPartID:     &supplierPart.ID,
				OfferType:          entity.NormalizeOfferType(e.OfferType),
				Price:              price,
				Currency:           strings.ToUpper(e.Currency),
				LeadTimeDays:       e.LeadTimeDays,
				EntrySource:        entity.EntrySourceSupplierFile,
				ChangeReason:       e.ChangeReason,
				CreatedAt:          time.Now(),
			}
			if err := s.responseRepo.CreateLine(ctx, tx, line); err != nil {
				return err
			}

			// 报价同时进入供应商价格历史，来源标记为RFQ
			if err := s.supplierRepo.AddPriceHistory(ctx, tx, &entity.SupplierPartPrice{
				SupplierPartID: supplierPart.ID,
				Price:          price,
				Currency:       line.Currency,
				LeadTimeDays:   e.LeadTimeDays,
				SourceType:     entity.PriceSourceRFQ,
				SourceRef:      rev.ID,
			}); err != nil {
				return err
			}

			payload, _ := json.Marshal(e)
			if err := s.responseRepo.CreateAction(ctx, tx, &entity.RFQResponseLineAction{
				ResponseLineID: line.ID,
				Action:         "import",
				ActorID:        userID,
				Payload:        string(payload),
				Reason:         e.ChangeReason,
			}); err != nil {
				return err
			}

			if err := s.statusSvc.MarkResponded(ctx, tx, rfqSupplierID, item.ID, rev.ID); err != nil {
				return err
			}
			result.Inserted++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Inserted > 0 && rs.Status != entity.RFQSupplierStatusResponded {
		if err := s.rfqSupplierRepo.UpdateStatus(ctx, rfqSupplierID, entity.RFQSupplierStatusResponded); err != nil {
			return nil, err
		}
	}

	s.logger.Info("报价导入完成",
		zap.String("rfq_supplier_id", rfqSupplierID),
		zap.Int("inserted", result.Inserted),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (s *ResponseService) matchItem(e ImportEntry, byID map[string]*entity.RFQItem, byNumber map[int]*entity.RFQItem) *entity.RFQItem {
	if e.RFQItemID != "" {
		return byID[e.RFQItemID]
	}
	if e.LineNumber > 0 {
		return byNumber[e.LineNumber]
	}
	return nil
}

// resolveRevision 复用当前报价修订或按要求开新一轮
func (s *ResponseService) resolveRevision(ctx context.Context, tx *gorm.DB, rfqSupplierID string, newRevision bool, userID string) (*entity.RFQResponseRevision, error) {
	if !newRevision {
		rev, err := s.responseRepo.CurrentRevision(ctx, tx, rfqSupplierID)
		if err != nil {
			return nil, err
		}
		if rev != nil {
			return rev, nil
		}
	}
	return s.responseRepo.CreateRevision(ctx, tx, rfqSupplierID, userID)
}

// AcceptExistingRequest 接受既有价格请求
type AcceptExistingRequest struct {
	RFQItemID string `json:"rfq_item_id" binding:"required"`
	PriceID   string `json:"price_id" binding:"required"`
	Reason    string `json:"reason"`
}

// AcceptExisting 以既有价格满足一行询价，不再向供应商要价
// 价格必须已存在于价格历史；源自本供应商本RFQ报价的价格不可再次接受
func (s *ResponseService) AcceptExisting(ctx context.Context, rfqSupplierID string, req *AcceptExistingRequest, userID string) (*entity.RFQResponseLine, error) {
	rs, err := s.rfqSupplierRepo.FindByID(ctx, rfqSupplierID)
	if err != nil {
		return nil, err
	}

	item, err := s.rfqRepo.FindItem(ctx, req.RFQItemID)
	if err != nil {
		return nil, err
	}
	if item.RFQID != rs.RFQID {
		return nil, fmt.Errorf("%w: 行项不属于该RFQ", repository.ErrConflict)
	}

	price, err := s.supplierRepo.FindPrice(ctx, req.PriceID)
	if err != nil {
		return nil, err
	}

	// 防止把本轮询价产出的价格再当作"既有价格"回灌
	if price.SourceType == entity.PriceSourceRFQ {
		revs, err := s.responseRepo.ListRevisions(ctx, rfqSupplierID)
		if err != nil {
			return nil, err
		}
		for _, rev := range revs {
			if rev.ID == price.SourceRef {
				return nil, fmt.Errorf("%w: 该价格源自本RFQ报价，不可重复接受", repository.ErrConflict)
			}
		}
	}

	var line *entity.RFQResponseLine
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rev, err := s.resolveRevision(ctx, tx, rfqSupplierID, false, userID)
		if err != nil {
			return err
		}

		line = &entity.RFQResponseLine{
			ID:                 generateID(),
			ResponseRevisionID: rev.ID,
			RFQItemID:          item.ID,
			SupplierPartID:     &price.SupplierPartID,
			OfferType:          entity.OfferTypeUnknown,
			Price:              price.Price,
			Currency:           price.Currency,
			LeadTimeDays:       price.LeadTimeDays,
			EntrySource:        entity.EntrySourceAcceptedExisting,
			ChangeReason:       req.Reason,
			CreatedAt:          time.Now(),
		}
		if err := s.responseRepo.CreateLine(ctx, tx, line); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]string{
			"price_id":    price.ID,
			"source_type": price.SourceType,
			"source_ref":  price.SourceRef,
		})
		if err := s.responseRepo.CreateAction(ctx, tx, &entity.RFQResponseLineAction{
			ResponseLineID: line.ID,
			Action:         "accept_existing",
			ActorID:        userID,
			Payload:        string(payload),
			Reason:         req.Reason,
		}); err != nil {
			return err
		}

		// 价目表与RFQ报价已有历史记录，其余来源补记一条，避免同价重复入账
		if price.SourceType != entity.PriceSourcePriceList && price.SourceType != entity.PriceSourceRFQ {
			if err := s.supplierRepo.AddPriceHistory(ctx, tx, &entity.SupplierPartPrice{
				SupplierPartID: price.SupplierPartID,
				Price:          price.Price,
				Currency:       price.Currency,
				LeadTimeDays:   price.LeadTimeDays,
				ValidUntil:     price.ValidUntil,
				SourceType:     price.SourceType,
				SourceRef:      price.ID,
			}); err != nil {
				return err
			}
		}

		return s.statusSvc.MarkAccepted(ctx, tx, rfqSupplierID, item.ID, rev.ID, price.SourceType, price.ID)
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// ResponseHistory 供应商报价历史（修订含行）
func (s *ResponseService) ResponseHistory(ctx context.Context, rfqSupplierID string) ([]entity.RFQResponseRevision, map[string][]entity.RFQResponseLine, error) {
	revs, err := s.responseRepo.ListRevisions(ctx, rfqSupplierID)
	if err != nil {
		return nil, nil, err
	}
	linesByRev := make(map[string][]entity.RFQResponseLine, len(revs))
	for _, rev := range revs {
		lines, err := s.responseRepo.LinesByRevision(ctx, rev.ID)
		if err != nil {
			return nil, nil, err
		}
		linesByRev[rev.ID] = lines
	}
	return revs, linesByRev, nil
}

// ParseWorkbook 解析供应商回填的Excel报价文件
// 约定与发送文件同构：第5行表头，第6行起数据
func ParseWorkbook(r io.Reader) ([]ImportEntry, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("打开报价文件失败: %w", err)
	}
	defer f.Close()

	sheet := "RFQ"
	rows, err := f.GetRows(sheet)
	if err != nil {
		// 兼容供应商改过sheet名的文件，取第一个sheet
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("报价文件没有工作表")
		}
		sheet = sheets[0]
		rows, err = f.GetRows(sheet)
		if err != nil {
			return nil, err
		}
	}

	var entries []ImportEntry
	for i, row := range rows {
		if i < 5 || len(row) < 7 {
			continue
		}
		e, ok := parseEntryRow(row)
		if ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// ParseCSV 解析GBK编码的CSV报价文件
// 列序与Excel模板一致：行号,类型,目录号,描述,数量,单位,单价,币种,交期
func ParseCSV(r io.Reader) ([]ImportEntry, error) {
	decoded := transform.NewReader(r, simplifiedchinese.GBK.NewDecoder())
	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1

	var entries []ImportEntry
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("解析CSV失败: %w", err)
		}
		if first {
			first = false
			// 表头行跳过
			if _, convErr := strconv.Atoi(strings.TrimSpace(record[0])); convErr != nil {
				continue
			}
		}
		if len(record) < 7 {
			continue
		}
		e, ok := parseEntryRow(record)
		if ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// parseEntryRow 从模板行提取报价；无单价的行不构成报价
func parseEntryRow(row []string) (ImportEntry, bool) {
	get := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	lineNo, err := strconv.Atoi(get(0))
	if err != nil || lineNo <= 0 {
		return ImportEntry{}, false
	}
	priceStr := get(6)
	if priceStr == "" {
		return ImportEntry{}, false
	}

	e := ImportEntry{
		LineNumber:         lineNo,
		SupplierPartNumber: get(2),
		PartName:           get(3),
		Price:              priceStr,
		Currency:           get(7),
	}
	if e.SupplierPartNumber == "" {
		e.SupplierPartNumber = fmt.Sprintf("LINE-%d", lineNo)
	}
	if e.Currency == "" {
		e.Currency = "USD"
	}
	if lead := get(8); lead != "" {
		if days, err := strconv.Atoi(lead); err == nil {
			e.LeadTimeDays = &days
		}
	}
	return e, true
}
