package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"gorm.io/gorm"
)

// SupplierRepository 供应商仓库
type SupplierRepository struct {
	db *gorm.DB
}

// NewSupplierRepository 创建供应商仓库
func NewSupplierRepository(db *gorm.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

// FindAll 查询供应商列表
func (r *SupplierRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Supplier, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Supplier{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if keyword := filters["keyword"]; keyword != "" {
		query = query.Where("name ILIKE ? OR code ILIKE ?", "%"+keyword+"%", "%"+keyword+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var suppliers []entity.Supplier
	err := query.
		Order("code ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&suppliers).Error
	return suppliers, total, err
}

// FindByID 根据ID查找供应商
func (r *SupplierRepository) FindByID(ctx context.Context, id string) (*entity.Supplier, error) {
	var supplier entity.Supplier
	err := r.db.WithContext(ctx).
		Preload("Contacts").
		Where("id = ?", id).
		First(&supplier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &supplier, nil
}

// Create 创建供应商
func (r *SupplierRepository) Create(ctx context.Context, supplier *entity.Supplier) error {
	return r.db.WithContext(ctx).Create(supplier).Error
}

// GenerateCode 生成供应商编码 SUP-{4位}
func (r *SupplierRepository) GenerateCode(ctx context.Context) (string, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&entity.Supplier{}).
		Count(&count).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("SUP-%04d", count+1), nil
}

// FindOrCreatePart 按(supplier, supplier_part_number)解析供应商件号，不存在则创建
func (r *SupplierRepository) FindOrCreatePart(ctx context.Context, tx *gorm.DB, supplierID, partNumber, name string, originalPartID *string) (*entity.SupplierPart, error) {
	if tx == nil {
		tx = r.db
	}
	var part entity.SupplierPart
	err := tx.WithContext(ctx).
		Where("supplier_id = ? AND supplier_part_number = ?", supplierID, partNumber).
		First(&part).Error
	if err == nil {
		return &part, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now()
	part = entity.SupplierPart{
		ID:                 generateID(),
		SupplierID:         supplierID,
		SupplierPartNumber: partNumber,
		OriginalPartID:     originalPartID,
		Name:               name,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := tx.WithContext(ctx).Create(&part).Error; err != nil {
		return nil, err
	}
	return &part, nil
}

// AddPriceHistory 追加价格历史
func (r *SupplierRepository) AddPriceHistory(ctx context.Context, tx *gorm.DB, price *entity.SupplierPartPrice) error {
	if tx == nil {
		tx = r.db
	}
	if price.ID == "" {
		price.ID = generateID()
	}
	if price.RecordedAt.IsZero() {
		price.RecordedAt = time.Now()
	}
	return tx.WithContext(ctx).Create(price).Error
}

// PriceHistory 供应商件号的价格历史（新→旧）
func (r *SupplierRepository) PriceHistory(ctx context.Context, supplierPartID string) ([]entity.SupplierPartPrice, error) {
	var prices []entity.SupplierPartPrice
	err := r.db.WithContext(ctx).
		Where("supplier_part_id = ?", supplierPartID).
		Order("recorded_at DESC").
		Find(&prices).Error
	return prices, err
}

// FindPrice 根据ID查找价格记录
func (r *SupplierRepository) FindPrice(ctx context.Context, id string) (*entity.SupplierPartPrice, error) {
	var price entity.SupplierPartPrice
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&price).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &price, nil
}

// FindBundle 查找套件（含角色行）
func (r *SupplierRepository) FindBundle(ctx context.Context, id string) (*entity.SupplierBundle, error) {
	var bundle entity.SupplierBundle
	err := r.db.WithContext(ctx).
		Preload("Roles", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("id = ?", id).
		First(&bundle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &bundle, nil
}

// CreateBundle 创建套件（含角色行）
func (r *SupplierRepository) CreateBundle(ctx context.Context, bundle *entity.SupplierBundle) error {
	return r.db.WithContext(ctx).Create(bundle).Error
}
