package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"github.com/bitfantasy/nimo-srm/internal/srm/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StatusService 行状态跟踪器：维护每个(供应商, 行项)的询价状态机
type StatusService struct {
	rfqRepo         *repository.RFQRepository
	rfqSupplierRepo *repository.RFQSupplierRepository
	lineStatusRepo  *repository.LineStatusRepository
	db              *gorm.DB
	logger          *zap.Logger
}

// NewStatusService 创建行状态服务
func NewStatusService(
	rfqRepo *repository.RFQRepository,
	rfqSupplierRepo *repository.RFQSupplierRepository,
	lineStatusRepo *repository.LineStatusRepository,
	db *gorm.DB,
	logger *zap.Logger,
) *StatusService {
	return &StatusService{
		rfqRepo:         rfqRepo,
		rfqSupplierRepo: rfqSupplierRepo,
		lineStatusRepo:  lineStatusRepo,
		db:              db,
		logger:          logger,
	}
}

// SyncSupplier 让一个供应商的状态行向当前活动行集收敛：
// 同号旧行的状态先迁移到新行，缺失行补REQUEST，归档行复活，掉出活动集的行归档
// 同步是幂等的，行项读取、RFQ创建和发送前都会触发
func (s *StatusService) SyncSupplier(ctx context.Context, rfqID, rfqSupplierID string) error {
	items, err := s.rfqRepo.ActiveItems(ctx, rfqID)
	if err != nil {
		return err
	}
	itemIDs := make([]string, 0, len(items))
	for _, item := range items {
		itemIDs = append(itemIDs, item.ID)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lineStatusRepo.CarryOverByLineNumber(ctx, tx, rfqSupplierID, items); err != nil {
			return err
		}
		if err := s.lineStatusRepo.UpsertDefaults(ctx, tx, rfqSupplierID, itemIDs); err != nil {
			return err
		}
		return s.lineStatusRepo.ArchiveMissing(ctx, tx, rfqSupplierID, itemIDs)
	})
}

// SyncAll 同步RFQ全部受邀供应商的状态行
func (s *StatusService) SyncAll(ctx context.Context, rfqID string) error {
	suppliers, err := s.rfqSupplierRepo.FindByRFQ(ctx, rfqID)
	if err != nil {
		return err
	}
	for _, rs := range suppliers {
		if err := s.SyncSupplier(ctx, rfqID, rs.ID); err != nil {
			return err
		}
	}
	return nil
}

// StatusMap 供应商行状态表，按行项ID索引
func (s *StatusService) StatusMap(ctx context.Context, rfqSupplierID string) (map[string]entity.RFQSupplierLineStatus, error) {
	rows, err := s.lineStatusRepo.FindBySupplier(ctx, rfqSupplierID)
	if err != nil {
		return nil, err
	}
	m := make(map[string]entity.RFQSupplierLineStatus, len(rows))
	for _, row := range rows {
		m[row.RFQItemID] = row
	}
	return m, nil
}

// EffectiveStatus 行的有效状态；缺失行按REQUEST处理
func EffectiveStatus(m map[string]entity.RFQSupplierLineStatus, itemID string) string {
	if row, ok := m[itemID]; ok {
		return row.Status
	}
	return entity.LineStatusRequest
}

// SetStatusRequest 手工设置单行状态请求
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetStatus 手工落位单行状态；ARCHIVED只能由同步产生，不接受手工设置
func (s *StatusService) SetStatus(ctx context.Context, rfqSupplierID, itemID, status string) error {
	normalized := entity.NormalizeLineStatus(status)
	if normalized == "" {
		return fmt.Errorf("非法的行状态: %s", status)
	}
	if normalized == entity.LineStatusArchived {
		return fmt.Errorf("%w: ARCHIVED由同步维护，不可手工设置", repository.ErrConflict)
	}
	return s.lineStatusRepo.Apply(ctx, nil, rfqSupplierID, itemID, repository.StatusUpdate{
		Status: normalized,
	})
}

// BulkStatusItem 批量设置中的一行
type BulkStatusItem struct {
	RFQItemID string `json:"rfq_item_id" binding:"required"`
	Status    string `json:"status" binding:"required"`
}

// SetStatusesRequest 批量设置供应商行状态请求
type SetStatusesRequest struct {
	Items []BulkStatusItem `json:"items" binding:"required,min=1"`
}

// SetStatuses 批量落位供应商行状态；先整体校验再单事务写入，
// 任一行非法则全部不生效
func (s *StatusService) SetStatuses(ctx context.Context, rfqSupplierID string, items []BulkStatusItem) error {
	normalized := make([]string, len(items))
	for i, item := range items {
		st := entity.NormalizeLineStatus(item.Status)
		if st == "" {
			return fmt.Errorf("第%d行非法的行状态: %s", i+1, item.Status)
		}
		if st == entity.LineStatusArchived {
			return fmt.Errorf("%w: ARCHIVED由同步维护，不可手工设置", repository.ErrConflict)
		}
		normalized[i] = st
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, item := range items {
			err := s.lineStatusRepo.Apply(ctx, tx, rfqSupplierID, item.RFQItemID, repository.StatusUpdate{
				Status: normalized[i],
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkDispatched 发送后落位：行进入REQUEST并记录载体修订
func (s *StatusService) MarkDispatched(ctx context.Context, tx *gorm.DB, rfqSupplierID string, itemIDs []string, rfqRevisionID string) error {
	for _, itemID := range itemIDs {
		err := s.lineStatusRepo.Apply(ctx, tx, rfqSupplierID, itemID, repository.StatusUpdate{
			Status:                   entity.LineStatusRequest,
			LastRequestRFQRevisionID: &rfqRevisionID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// MarkResponded 收到报价后落位：行退出REQUEST并记录报价修订
func (s *StatusService) MarkResponded(ctx context.Context, tx *gorm.DB, rfqSupplierID, itemID, responseRevisionID string) error {
	return s.lineStatusRepo.Apply(ctx, tx, rfqSupplierID, itemID, repository.StatusUpdate{
		Status:                 entity.LineStatusNone,
		LastResponseRevisionID: &responseRevisionID,
	})
}

// MarkAccepted 接受既有价格后落位，记录价格来源
func (s *StatusService) MarkAccepted(ctx context.Context, tx *gorm.DB, rfqSupplierID, itemID, responseRevisionID, sourceType, sourceRef string) error {
	return s.lineStatusRepo.Apply(ctx, tx, rfqSupplierID, itemID, repository.StatusUpdate{
		Status:                 entity.LineStatusAcceptedExisting,
		LastResponseRevisionID: &responseRevisionID,
		SourceType:             sourceType,
		SourceRef:              sourceRef,
	})
}
