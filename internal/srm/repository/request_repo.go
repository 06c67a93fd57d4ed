package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"gorm.io/gorm"
)

// RequestRepository 客户需求仓库
type RequestRepository struct {
	db *gorm.DB
}

// NewRequestRepository 创建客户需求仓库
func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create 创建需求单（含首个修订与行项，单事务）
func (r *RequestRepository) Create(ctx context.Context, req *entity.ClientRequest, rev *entity.ClientRequestRevision) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return err
		}
		rev.ClientRequestID = req.ID
		if err := tx.Create(rev).Error; err != nil {
			return err
		}
		return tx.Model(&entity.ClientRequest{}).
			Where("id = ?", req.ID).
			Update("active_revision_id", rev.ID).Error
	})
}

// FindByID 根据ID查找需求单
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*entity.ClientRequest, error) {
	var req entity.ClientRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// FindRevision 根据ID查找修订（含行项）
func (r *RequestRepository) FindRevision(ctx context.Context, id string) (*entity.ClientRequestRevision, error) {
	var rev entity.ClientRequestRevision
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_number ASC")
		}).
		Preload("Lines.OriginalPart").
		Where("id = ?", id).
		First(&rev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rev, nil
}

// NextRevisionNumber 需求单下一个修订号
func (r *RequestRepository) NextRevisionNumber(ctx context.Context, requestID string) (int, error) {
	var maxNo int
	err := r.db.WithContext(ctx).
		Model(&entity.ClientRequestRevision{}).
		Select("COALESCE(MAX(revision_number), 0)").
		Where("client_request_id = ?", requestID).
		Scan(&maxNo).Error
	return maxNo + 1, err
}

// CreateRevision 追加新修订并推进生效指针（单事务）
func (r *RequestRepository) CreateRevision(ctx context.Context, rev *entity.ClientRequestRevision) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rev).Error; err != nil {
			return err
		}
		return tx.Model(&entity.ClientRequest{}).
			Where("id = ?", rev.ClientRequestID).
			Update("active_revision_id", rev.ID).Error
	})
}

// LinesByRevision 修订的行项集
func (r *RequestRepository) LinesByRevision(ctx context.Context, revisionID string) ([]entity.RequestLine, error) {
	var lines []entity.RequestLine
	err := r.db.WithContext(ctx).
		Preload("OriginalPart").
		Where("revision_id = ?", revisionID).
		Order("line_number ASC").
		Find(&lines).Error
	return lines, err
}

// UpdateStatus 更新需求单状态
func (r *RequestRepository) UpdateStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).
		Model(&entity.ClientRequest{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// CountByCodePrefix 统计编码前缀数量（用于生成编码）
func (r *RequestRepository) CountByCodePrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.ClientRequest{}).
		Where("code LIKE ?", prefix+"%").
		Count(&count).Error
	return count, err
}
