package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"gorm.io/gorm"
)

// ResponseRepository 供应商报价仓库
type ResponseRepository struct {
	db *gorm.DB
}

// NewResponseRepository 创建报价仓库
func NewResponseRepository(db *gorm.DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

// CurrentRevision 供应商当前（最新）报价修订，无则返回nil
func (r *ResponseRepository) CurrentRevision(ctx context.Context, tx *gorm.DB, rfqSupplierID string) (*entity.RFQResponseRevision, error) {
	if tx == nil {
		tx = r.db
	}
	var rev entity.RFQResponseRevision
	err := tx.WithContext(ctx).
		Where("rfq_supplier_id = ?", rfqSupplierID).
		Order("revision_number DESC").
		First(&rev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rev, nil
}

// CreateRevision 开启下一轮报价修订
func (r *ResponseRepository) CreateRevision(ctx context.Context, tx *gorm.DB, rfqSupplierID, userID string) (*entity.RFQResponseRevision, error) {
	if tx == nil {
		tx = r.db
	}
	var maxNo int
	if err := tx.WithContext(ctx).
		Model(&entity.RFQResponseRevision{}).
		Select("COALESCE(MAX(revision_number), 0)").
		Where("rfq_supplier_id = ?", rfqSupplierID).
		Scan(&maxNo).Error; err != nil {
		return nil, err
	}
	rev := &entity.RFQResponseRevision{
		ID:             generateID(),
		RFQSupplierID:  rfqSupplierID,
		RevisionNumber: maxNo + 1,
		CreatedBy:      userID,
		CreatedAt:      time.Now(),
	}
	if err := tx.WithContext(ctx).Create(rev).Error; err != nil {
		return nil, err
	}
	return rev, nil
}

// ListRevisions 供应商报价修订列表（新→旧，含行）
func (r *ResponseRepository) ListRevisions(ctx context.Context, rfqSupplierID string) ([]entity.RFQResponseRevision, error) {
	var revs []entity.RFQResponseRevision
	err := r.db.WithContext(ctx).
		Where("rfq_supplier_id = ?", rfqSupplierID).
		Order("revision_number DESC").
		Find(&revs).Error
	return revs, err
}

// CreateLine 追加报价行
func (r *ResponseRepository) CreateLine(ctx context.Context, tx *gorm.DB, line *entity.RFQResponseLine) error {
	if tx == nil {
		tx = r.db
	}
	if line.ID == "" {
		line.ID = generateID()
	}
	if line.CreatedAt.IsZero() {
		line.CreatedAt = time.Now()
	}
	return tx.WithContext(ctx).Create(line).Error
}

// CreateAction 追加审计行
func (r *ResponseRepository) CreateAction(ctx context.Context, tx *gorm.DB, action *entity.RFQResponseLineAction) error {
	if tx == nil {
		tx = r.db
	}
	if action.ID == "" {
		action.ID = generateID()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now()
	}
	return tx.WithContext(ctx).Create(action).Error
}

// LinesByRevision 修订内的报价行
func (r *ResponseRepository) LinesByRevision(ctx context.Context, revisionID string) ([]entity.RFQResponseLine, error) {
	var lines []entity.RFQResponseLine
	err := r.db.WithContext(ctx).
		Where("response_revision_id = ?", revisionID).
		Order("created_at ASC").
		Find(&lines).Error
	return lines, err
}

// PricedItemIDs 供应商在本RFQ内已有报价的行项ID集合
func (r *ResponseRepository) PricedItemIDs(ctx context.Context, rfqSupplierID string) (map[string]bool, error) {
	var itemIDs []string
	err := r.db.WithContext(ctx).
		Model(&entity.RFQResponseLine{}).
		Joins("JOIN srm_rfq_response_revisions ON srm_rfq_response_revisions.id = srm_rfq_response_lines.response_revision_id").
		Where("srm_rfq_response_revisions.rfq_supplier_id = ?", rfqSupplierID).
		Distinct().
		Pluck("srm_rfq_response_lines.rfq_item_id", &itemIDs).Error
	if err != nil {
		return nil, err
	}
	priced := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		priced[id] = true
	}
	return priced, nil
}
