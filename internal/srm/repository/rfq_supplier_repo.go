package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RFQSupplierRepository 询价供应商仓库
type RFQSupplierRepository struct {
	db *gorm.DB
}

// NewRFQSupplierRepository 创建询价供应商仓库
func NewRFQSupplierRepository(db *gorm.DB) *RFQSupplierRepository {
	return &RFQSupplierRepository{db: db}
}

// Invite 邀请供应商到RFQ，(RFQ, supplier)对唯一
func (r *RFQSupplierRepository) Invite(ctx context.Context, rs *entity.RFQSupplier) error {
	var dup int64
	if err := r.db.WithContext(ctx).
		Model(&entity.RFQSupplier{}).
		Where("rfq_id = ? AND supplier_id = ?", rs.RFQID, rs.SupplierID).
		Count(&dup).Error; err != nil {
		return err
	}
	if dup > 0 {
		return ErrConflict
	}
	return r.db.WithContext(ctx).Create(rs).Error
}

// FindByID 根据ID查找询价供应商
func (r *RFQSupplierRepository) FindByID(ctx context.Context, id string) (*entity.RFQSupplier, error) {
	var rs entity.RFQSupplier
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Where("id = ?", id).
		First(&rs).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rs, nil
}

// FindByRFQ RFQ的全部受邀供应商
func (r *RFQSupplierRepository) FindByRFQ(ctx context.Context, rfqID string) ([]entity.RFQSupplier, error) {
	var list []entity.RFQSupplier
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Where("rfq_id = ?", rfqID).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

// UpdateStatus 更新供应商状态
func (r *RFQSupplierRepository) UpdateStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).
		Model(&entity.RFQSupplier{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error
}

// ReplaceSelections 批量替换行级选择：先删后插，单事务原子生效
func (r *RFQSupplierRepository) ReplaceSelections(ctx context.Context, rfqSupplierID string, selections []entity.RFQSupplierLineSelection) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rfq_supplier_id = ?", rfqSupplierID).
			Delete(&entity.RFQSupplierLineSelection{}).Error; err != nil {
			return err
		}
		if len(selections) == 0 {
			return nil
		}
		return tx.Create(&selections).Error
	})
}

// Selections 供应商的全部行级选择
func (r *RFQSupplierRepository) Selections(ctx context.Context, rfqSupplierID string) ([]entity.RFQSupplierLineSelection, error) {
	var selections []entity.RFQSupplierLineSelection
	err := r.db.WithContext(ctx).
		Where("rfq_supplier_id = ?", rfqSupplierID).
		Order("created_at ASC").
		Find(&selections).Error
	return selections, err
}

// RevisionState 供应商修订锚点，不存在时返回空锚点
func (r *RFQSupplierRepository) RevisionState(ctx context.Context, rfqSupplierID string) (*entity.RFQSupplierRevisionState, error) {
	var state entity.RFQSupplierRevisionState
	err := r.db.WithContext(ctx).
		Where("rfq_supplier_id = ?", rfqSupplierID).
		First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &entity.RFQSupplierRevisionState{RFQSupplierID: rfqSupplierID}, nil
		}
		return nil, err
	}
	return &state, nil
}

// AdvanceRevisionState 推进供应商修订锚点（upsert）
func (r *RFQSupplierRepository) AdvanceRevisionState(ctx context.Context, tx *gorm.DB, rfqSupplierID, revisionID string) error {
	if tx == nil {
		tx = r.db
	}
	state := entity.RFQSupplierRevisionState{
		ID:                 generateID(),
		RFQSupplierID:      rfqSupplierID,
		LastSentRevisionID: &revisionID,
		UpdatedAt:          time.Now(),
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "rfq_supplier_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_sent_revision_id", "updated_at"}),
	}).Create(&state).Error
}
