package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"gorm.io/gorm"
)

// RFQRepository 询价单仓库
type RFQRepository struct {
	db *gorm.DB
}

// NewRFQRepository 创建询价单仓库
func NewRFQRepository(db *gorm.DB) *RFQRepository {
	return &RFQRepository{db: db}
}

// Create 创建RFQ
func (r *RFQRepository) Create(ctx context.Context, rfq *entity.RFQ) error {
	return r.db.WithContext(ctx).Create(rfq).Error
}

// FindByID 根据ID查找RFQ
func (r *RFQRepository) FindByID(ctx context.Context, id string) (*entity.RFQ, error) {
	var rfq entity.RFQ
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rfq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rfq, nil
}

// FindByRequestID 根据需求单查找RFQ
func (r *RFQRepository) FindByRequestID(ctx context.Context, requestID string) (*entity.RFQ, error) {
	var rfq entity.RFQ
	err := r.db.WithContext(ctx).Where("client_request_id = ?", requestID).First(&rfq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rfq, nil
}

// ActiveItems 当前活动行项：来源需求行属于需求单生效修订的行
// 旧行不物理删除，靠join过滤
func (r *RFQRepository) ActiveItems(ctx context.Context, rfqID string) ([]entity.RFQItem, error) {
	var items []entity.RFQItem
	err := r.db.WithContext(ctx).
		Joins("JOIN srm_request_lines ON srm_request_lines.id = srm_rfq_items.request_line_id").
		Joins("JOIN srm_rfqs ON srm_rfqs.id = srm_rfq_items.rfq_id").
		Joins("JOIN srm_client_requests ON srm_client_requests.id = srm_rfqs.client_request_id").
		Where("srm_rfq_items.rfq_id = ?", rfqID).
		Where("srm_request_lines.revision_id = srm_client_requests.active_revision_id").
		Preload("RequestLine").
		Preload("RequestLine.OriginalPart").
		Preload("Strategy").
		Preload("Components", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Order("srm_rfq_items.line_number ASC").
		Find(&items).Error
	return items, err
}

// FindItem 根据ID查找行项
func (r *RFQRepository) FindItem(ctx context.Context, itemID string) (*entity.RFQItem, error) {
	var item entity.RFQItem
	err := r.db.WithContext(ctx).
		Preload("RequestLine").
		Preload("RequestLine.OriginalPart").
		Preload("Strategy").
		Preload("Components", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("id = ?", itemID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// FindItemByLineNumber 在活动行集内按行号查找行项
func (r *RFQRepository) FindItemByLineNumber(ctx context.Context, rfqID string, lineNumber int) (*entity.RFQItem, error) {
	items, err := r.ActiveItems(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].LineNumber == lineNumber {
			return &items[i], nil
		}
	}
	return nil, ErrNotFound
}

// SyncItems 将需求行派生为RFQ行项；已有行保持不变，仅补齐缺失的
func (r *RFQRepository) SyncItems(ctx context.Context, rfqID string, lines []entity.RequestLine) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, line := range lines {
			var count int64
			if err := tx.Model(&entity.RFQItem{}).
				Where("request_line_id = ?", line.ID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			item := &entity.RFQItem{
				ID:            generateID(),
				RFQID:         rfqID,
				RequestLineID: line.ID,
				LineNumber:    line.LineNumber,
				RequestedQty:  line.RequestedQty,
				UOM:           line.UOM,
				CreatedAt:     time.Now(),
				UpdatedAt:     time.Now(),
			}
			if err := tx.Create(item).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// NextRevisionNumber RFQ下一个修订号
func (r *RFQRepository) NextRevisionNumber(ctx context.Context, rfqID string) (int, error) {
	var maxNo int
	err := r.db.WithContext(ctx).
		Model(&entity.RFQRevision{}).
		Select("COALESCE(MAX(revision_number), 0)").
		Where("rfq_id = ?", rfqID).
		Scan(&maxNo).Error
	return maxNo + 1, err
}

// CreateRevision 创建RFQ修订快照并推进当前修订指针（单事务）
func (r *RFQRepository) CreateRevision(ctx context.Context, rev *entity.RFQRevision) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rev).Error; err != nil {
			return err
		}
		return tx.Model(&entity.RFQ{}).
			Where("id = ?", rev.RFQID).
			Update("current_revision_id", rev.ID).Error
	})
}

// FindRevision 根据ID查找RFQ修订
func (r *RFQRepository) FindRevision(ctx context.Context, id string) (*entity.RFQRevision, error) {
	var rev entity.RFQRevision
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rev, nil
}

// UpdateStatus 更新RFQ状态
func (r *RFQRepository) UpdateStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).
		Model(&entity.RFQ{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error
}

// FindStrategyByItem 查找行项策略
func (r *RFQRepository) FindStrategyByItem(ctx context.Context, itemID string) (*entity.RFQItemStrategy, error) {
	var strategy entity.RFQItemStrategy
	err := r.db.WithContext(ctx).Where("rfq_item_id = ?", itemID).First(&strategy).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &strategy, nil
}

// SaveStrategy 保存行项策略（新建或整行覆盖）
func (r *RFQRepository) SaveStrategy(ctx context.Context, strategy *entity.RFQItemStrategy) error {
	return r.db.WithContext(ctx).Save(strategy).Error
}

// ReplaceComponents 整体替换行项组件：先删后插，单事务
// 模式切换时乘数与零件身份都可能非单调变化，从不做增量diff
func (r *RFQRepository) ReplaceComponents(ctx context.Context, itemID string, components []entity.RFQItemComponent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rfq_item_id = ?", itemID).
			Delete(&entity.RFQItemComponent{}).Error; err != nil {
			return err
		}
		if len(components) == 0 {
			return nil
		}
		return tx.Create(&components).Error
	})
}

// ComponentsByItem 行项组件列表
func (r *RFQRepository) ComponentsByItem(ctx context.Context, itemID string) ([]entity.RFQItemComponent, error) {
	var components []entity.RFQItemComponent
	err := r.db.WithContext(ctx).
		Preload("OriginalPart").
		Where("rfq_item_id = ?", itemID).
		Order("sort_order ASC").
		Find(&components).Error
	return components, err
}

// CountByCodePrefix 统计编码前缀数量（用于生成编码）
func (r *RFQRepository) CountByCodePrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.RFQ{}).
		Where("code LIKE ?", prefix+"%").
		Count(&count).Error
	return count, err
}
