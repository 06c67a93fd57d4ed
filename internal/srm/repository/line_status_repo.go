package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LineStatusRepository 行状态仓库
type LineStatusRepository struct {
	db *gorm.DB
}

// NewLineStatusRepository 创建行状态仓库
func NewLineStatusRepository(db *gorm.DB) *LineStatusRepository {
	return &LineStatusRepository{db: db}
}

// UpsertDefaults 为(supplier, item)对补齐状态行：
// 缺失行插入REQUEST，已归档行复活为REQUEST，其余保持原状
// OnConflict让并发同步收敛到同一行而不是竞争建行
func (r *LineStatusRepository) UpsertDefaults(ctx context.Context, tx *gorm.DB, rfqSupplierID string, itemIDs []string) error {
	if tx == nil {
		tx = r.db
	}
	if len(itemIDs) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]entity.RFQSupplierLineStatus, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		rows = append(rows, entity.RFQSupplierLineStatus{
			ID:            generateID(),
			RFQSupplierID: rfqSupplierID,
			RFQItemID:     itemID,
			Status:        entity.LineStatusRequest,
			UpdatedAt:     now,
		})
	}
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "rfq_supplier_id"}, {Name: "rfq_item_id"}},
		DoNothing: true,
	}).Create(&rows).Error; err != nil {
		return err
	}

	// 复活已归档的活动行
	return tx.WithContext(ctx).
		Model(&entity.RFQSupplierLineStatus{}).
		Where("rfq_supplier_id = ? AND rfq_item_id IN ? AND status = ?",
			rfqSupplierID, itemIDs, entity.LineStatusArchived).
		Updates(map[string]interface{}{
			"status":     entity.LineStatusRequest,
			"updated_at": now,
		}).Error
}

// CarryOverByLineNumber 把旧行项上的状态迁移到同号新行项
// 需求修订会换掉行项的物理行，行号才是跨修订的稳定身份：
// 没有它，已报价的行在修订后会被重置回REQUEST并被再次发送
func (r *LineStatusRepository) CarryOverByLineNumber(ctx context.Context, tx *gorm.DB, rfqSupplierID string, activeItems []entity.RFQItem) error {
	if tx == nil {
		tx = r.db
	}

	var rows []entity.RFQSupplierLineStatus
	if err := tx.WithContext(ctx).
		Where("rfq_supplier_id = ?", rfqSupplierID).
		Find(&rows).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	covered := make(map[string]bool, len(rows))
	var staleIDs []string
	activeSet := make(map[string]bool, len(activeItems))
	for _, item := range activeItems {
		activeSet[item.ID] = true
	}
	for _, row := range rows {
		covered[row.RFQItemID] = true
		if !activeSet[row.RFQItemID] {
			staleIDs = append(staleIDs, row.RFQItemID)
		}
	}
	if len(staleIDs) == 0 {
		return nil
	}

	// 旧行项的行号
	var staleItems []entity.RFQItem
	if err := tx.WithContext(ctx).
		Select("id", "line_number").
		Where("id IN ?", staleIDs).
		Find(&staleItems).Error; err != nil {
		return err
	}
	lineByStaleID := make(map[string]int, len(staleItems))
	for _, item := range staleItems {
		lineByStaleID[item.ID] = item.LineNumber
	}
	// 同一行号可能挂着多轮旧行，活着的状态优先于早已归档的
	staleByLine := make(map[int]*entity.RFQSupplierLineStatus, len(rows))
	for i := range rows {
		line, ok := lineByStaleID[rows[i].RFQItemID]
		if !ok {
			continue
		}
		prev, seen := staleByLine[line]
		if !seen || prev.Status == entity.LineStatusArchived {
			staleByLine[line] = &rows[i]
		}
	}

	now := time.Now()
	for _, item := range activeItems {
		if covered[item.ID] {
			continue
		}
		stale, ok := staleByLine[item.LineNumber]
		if !ok || stale.Status == entity.LineStatusArchived {
			continue
		}
		carried := entity.RFQSupplierLineStatus{
			ID:                       generateID(),
			RFQSupplierID:            rfqSupplierID,
			RFQItemID:                item.ID,
			Status:                   stale.Status,
			LastRequestRFQRevisionID: stale.LastRequestRFQRevisionID,
			LastResponseRevisionID:   stale.LastResponseRevisionID,
			SourceType:               stale.SourceType,
			SourceRef:                stale.SourceRef,
			UpdatedAt:                now,
		}
		if err := tx.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "rfq_supplier_id"}, {Name: "rfq_item_id"}},
			DoNothing: true,
		}).Create(&carried).Error; err != nil {
			return err
		}
	}
	return nil
}

// ArchiveMissing 归档不在活动行集内的状态行；ARCHIVED覆盖任何在途状态
func (r *LineStatusRepository) ArchiveMissing(ctx context.Context, tx *gorm.DB, rfqSupplierID string, activeItemIDs []string) error {
	if tx == nil {
		tx = r.db
	}
	query := tx.WithContext(ctx).
		Model(&entity.RFQSupplierLineStatus{}).
		Where("rfq_supplier_id = ? AND status != ?", rfqSupplierID, entity.LineStatusArchived)
	if len(activeItemIDs) > 0 {
		query = query.Where("rfq_item_id NOT IN ?", activeItemIDs)
	}
	return query.Updates(map[string]interface{}{
		"status":     entity.LineStatusArchived,
		"updated_at": time.Now(),
	}).Error
}

// FindBySupplier 供应商的全部行状态
func (r *LineStatusRepository) FindBySupplier(ctx context.Context, rfqSupplierID string) ([]entity.RFQSupplierLineStatus, error) {
	var statuses []entity.RFQSupplierLineStatus
	err := r.db.WithContext(ctx).
		Where("rfq_supplier_id = ?", rfqSupplierID).
		Find(&statuses).Error
	return statuses, err
}

// Find 查找单个(supplier, item)状态行
func (r *LineStatusRepository) Find(ctx context.Context, rfqSupplierID, itemID string) (*entity.RFQSupplierLineStatus, error) {
	var status entity.RFQSupplierLineStatus
	err := r.db.WithContext(ctx).
		Where("rfq_supplier_id = ? AND rfq_item_id = ?", rfqSupplierID, itemID).
		First(&status).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &status, nil
}

// StatusUpdate 单行状态落位
type StatusUpdate struct {
	Status                   string
	LastRequestRFQRevisionID *string
	LastResponseRevisionID   *string
	SourceType               string
	SourceRef                string
}

// Apply 落位一行状态（upsert）；重复落位同一状态是幂等的
func (r *LineStatusRepository) Apply(ctx context.Context, tx *gorm.DB, rfqSupplierID, itemID string, upd StatusUpdate) error {
	if tx == nil {
		tx = r.db
	}
	now := time.Now()
	row := entity.RFQSupplierLineStatus{
		ID:            generateID(),
		RFQSupplierID: rfqSupplierID,
		RFQItemID:     itemID,
		Status:        upd.Status,
		UpdatedAt:     now,
	}
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "rfq_supplier_id"}, {Name: "rfq_item_id"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return err
	}

	updates := map[string]interface{}{
		"status":     upd.Status,
		"updated_at": now,
	}
	if upd.LastRequestRFQRevisionID != nil {
		updates["last_request_rfq_revision_id"] = *upd.LastRequestRFQRevisionID
	}
	if upd.LastResponseRevisionID != nil {
		updates["last_response_revision_id"] = *upd.LastResponseRevisionID
	}
	if upd.SourceType != "" {
		updates["source_type"] = upd.SourceType
		updates["source_ref"] = upd.SourceRef
	}
	return tx.WithContext(ctx).
		Model(&entity.RFQSupplierLineStatus{}).
		Where("rfq_supplier_id = ? AND rfq_item_id = ?", rfqSupplierID, itemID).
		Updates(updates).Error
}
