package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"gorm.io/gorm"
)

// PartRepository 零件主数据仓库
type PartRepository struct {
	db *gorm.DB
}

// NewPartRepository 创建零件仓库
func NewPartRepository(db *gorm.DB) *PartRepository {
	return &PartRepository{db: db}
}

// CreateModel 创建设备型号
func (r *PartRepository) CreateModel(ctx context.Context, model *entity.EquipmentModel) error {
	if model.ID == "" {
		model.ID = generateID()
	}
	now := time.Now()
	model.CreatedAt = now
	model.UpdatedAt = now
	return r.db.WithContext(ctx).Create(model).Error
}

// Create 创建零件
func (r *PartRepository) Create(ctx context.Context, part *entity.OriginalPart) error {
	if part.ID == "" {
		part.ID = generateID()
	}
	now := time.Now()
	part.CreatedAt = now
	part.UpdatedAt = now
	return r.db.WithContext(ctx).Create(part).Error
}

// FindByID 根据ID查找零件
func (r *PartRepository) FindByID(ctx context.Context, id string) (*entity.OriginalPart, error) {
	var part entity.OriginalPart
	err := r.db.WithContext(ctx).
		Preload("EquipmentModel").
		Where("id = ?", id).
		First(&part).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &part, nil
}

// FindByCatalogNumber 按机型+目录号查找零件
func (r *PartRepository) FindByCatalogNumber(ctx context.Context, modelID, catalogNumber string) (*entity.OriginalPart, error) {
	var part entity.OriginalPart
	err := r.db.WithContext(ctx).
		Where("equipment_model_id = ? AND catalog_number = ?", modelID, catalogNumber).
		First(&part).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &part, nil
}

// FindAll 查询零件列表
func (r *PartRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.OriginalPart, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.OriginalPart{})

	if modelID := filters["equipment_model_id"]; modelID != "" {
		query = query.Where("equipment_model_id = ?", modelID)
	}
	if keyword := filters["keyword"]; keyword != "" {
		query = query.Where("catalog_number ILIKE ? OR name ILIKE ?", "%"+keyword+"%", "%"+keyword+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var parts []entity.OriginalPart
	err := query.
		Preload("EquipmentModel").
		Order("catalog_number ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&parts).Error
	return parts, total, err
}
