package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"gorm.io/gorm"
)

// DispatchRepository 发送记录仓库
type DispatchRepository struct {
	db *gorm.DB
}

// NewDispatchRepository 创建发送记录仓库
func NewDispatchRepository(db *gorm.DB) *DispatchRepository {
	return &DispatchRepository{db: db}
}

// Create 写入发送记录，创建后不再修改
func (r *DispatchRepository) Create(ctx context.Context, tx *gorm.DB, dispatch *entity.RFQSupplierDispatch) error {
	if tx == nil {
		tx = r.db
	}
	if dispatch.ID == "" {
		dispatch.ID = generateID()
	}
	if dispatch.CreatedAt.IsZero() {
		dispatch.CreatedAt = time.Now()
	}
	return tx.WithContext(ctx).Create(dispatch).Error
}

// ListBySupplier 供应商发送历史（新→旧）
func (r *DispatchRepository) ListBySupplier(ctx context.Context, rfqSupplierID string) ([]entity.RFQSupplierDispatch, error) {
	var dispatches []entity.RFQSupplierDispatch
	err := r.db.WithContext(ctx).
		Where("rfq_supplier_id = ?", rfqSupplierID).
		Order("created_at DESC").
		Find(&dispatches).Error
	return dispatches, err
}
