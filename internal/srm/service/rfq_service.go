package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"github.com/bitfantasy/nimo-srm/internal/srm/repository"
	"go.uber.org/zap"
)

// RFQService 询价单生命周期与供应商邀请
type RFQService struct {
	rfqRepo         *repository.RFQRepository
	requestRepo     *repository.RequestRepository
	supplierRepo    *repository.SupplierRepository
	rfqSupplierRepo *repository.RFQSupplierRepository
	responseRepo    *repository.ResponseRepository
	statusSvc       *StatusService
	logger          *zap.Logger
}

// NewRFQService 创建询价单服务
func NewRFQService(
	repos *repository.Repositories,
	statusSvc *StatusService,
	logger *zap.Logger,
) *RFQService {
	return &RFQService{
		rfqRepo:         repos.RFQ,
		requestRepo:     repos.Request,
		supplierRepo:    repos.Supplier,
		rfqSupplierRepo: repos.RFQSupplier,
		responseRepo:    repos.Response,
		statusSvc:       statusSvc,
		logger:          logger,
	}
}

// SupplierCrossRef 结构树default视图的供应商交叉引用
// 按邀请顺序为每个行项汇总各供应商的行状态与是否已有报价
func (s *RFQService) SupplierCrossRef(ctx context.Context, rfqID string) (func(itemID string) []TreeSupplierRef, error) {
	suppliers, err := s.rfqSupplierRepo.FindByRFQ(ctx, rfqID)
	if err != nil {
		return nil, err
	}

	type supplierView struct {
		id       string
		name     string
		statuses map[string]entity.RFQSupplierLineStatus
		priced   map[string]bool
	}
	views := make([]supplierView, 0, len(suppliers))
	for _, rs := range suppliers {
		statuses, err := s.statusSvc.StatusMap(ctx, rs.ID)
		if err != nil {
			return nil, err
		}
		priced, err := s.responseRepo.PricedItemIDs(ctx, rs.ID)
		if err != nil {
			return nil, err
		}
		v := supplierView{id: rs.ID, statuses: statuses, priced: priced}
		if rs.Supplier != nil {
			v.name = rs.Supplier.Name
		}
		views = append(views, v)
	}

	return func(itemID string) []TreeSupplierRef {
		var refs []TreeSupplierRef
		for _, v := range views {
			refs = append(refs, TreeSupplierRef{
				RFQSupplierID: v.id,
				SupplierName:  v.name,
				LineStatus:    EffectiveStatus(v.statuses, itemID),
				Priced:        v.priced[itemID],
			})
		}
		return refs
	}, nil
}

// EnsureForRequest 需求单放行时创建对应RFQ；已存在时只同步行项
func (s *RFQService) EnsureForRequest(ctx context.Context, request *entity.ClientRequest, userID string) (*entity.RFQ, error) {
	rfq, err := s.rfqRepo.FindByRequestID(ctx, request.ID)
	if err != nil && err != repository.ErrNotFound {
		return nil, err
	}

	if rfq == nil {
		code, err := s.generateCode(ctx)
		if err != nil {
			return nil, fmt.Errorf("生成RFQ编码失败: %w", err)
		}
		now := time.Now()
		rfq = &entity.RFQ{
			ID:              generateID(),
			Code:            code,
			ClientRequestID: request.ID,
			Status:          entity.RFQStatusDraft,
			CreatedBy:       userID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.rfqRepo.Create(ctx, rfq); err != nil {
			return nil, err
		}
		s.logger.Info("RFQ已创建",
			zap.String("rfq_id", rfq.ID),
			zap.String("code", code),
			zap.String("request_id", request.ID),
		)
	}

	if err := s.syncItems(ctx, rfq, request); err != nil {
		return nil, err
	}
	return rfq, nil
}

// SyncFromRequest 需求单修订后刷新RFQ行项与供应商行状态
func (s *RFQService) SyncFromRequest(ctx context.Context, requestID string) error {
	request, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return err
	}
	rfq, err := s.rfqRepo.FindByRequestID(ctx, requestID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil
		}
		return err
	}
	return s.syncItems(ctx, rfq, request)
}

func (s *RFQService) syncItems(ctx context.Context, rfq *entity.RFQ, request *entity.ClientRequest) error {
	if request.ActiveRevisionID == nil {
		return nil
	}
	lines, err := s.requestRepo.LinesByRevision(ctx, *request.ActiveRevisionID)
	if err != nil {
		return err
	}
	if err := s.rfqRepo.SyncItems(ctx, rfq.ID, lines); err != nil {
		return err
	}
	return s.statusSvc.SyncAll(ctx, rfq.ID)
}

// GetRFQ RFQ详情：活动行项与受邀供应商
func (s *RFQService) GetRFQ(ctx context.Context, rfqID string) (*entity.RFQ, []entity.RFQItem, []entity.RFQSupplier, error) {
	rfq, err := s.rfqRepo.FindByID(ctx, rfqID)
	if err != nil {
		return nil, nil, nil, err
	}
	items, err := s.rfqRepo.ActiveItems(ctx, rfqID)
	if err != nil {
		return nil, nil, nil, err
	}
	suppliers, err := s.rfqSupplierRepo.FindByRFQ(ctx, rfqID)
	if err != nil {
		return nil, nil, nil, err
	}
	return rfq, items, suppliers, nil
}

// InviteSupplierRequest 邀请供应商请求
type InviteSupplierRequest struct {
	SupplierID string `json:"supplier_id" binding:"required"`
	Language   string `json:"language"`
	RFQFormat  string `json:"rfq_format"`
}

// InviteSupplier 邀请供应商参与RFQ，随即补齐其行状态
func (s *RFQService) InviteSupplier(ctx context.Context, rfqID string, req *InviteSupplierRequest, userID string) (*entity.RFQSupplier, error) {
	if _, err := s.rfqRepo.FindByID(ctx, rfqID); err != nil {
		return nil, err
	}
	supplier, err := s.supplierRepo.FindByID(ctx, req.SupplierID)
	if err != nil {
		return nil, err
	}

	format := entity.RFQFormatAuto
	if req.RFQFormat != "" {
		format = entity.NormalizeRFQFormat(req.RFQFormat)
		if format == "" {
			return nil, fmt.Errorf("非法的RFQ格式: %s", req.RFQFormat)
		}
	}
	language := req.Language
	if language == "" {
		language = supplier.Language
	}

	now := time.Now()
	rs := &entity.RFQSupplier{
		ID:         generateID(),
		RFQID:      rfqID,
		SupplierID: req.SupplierID,
		Status:     entity.RFQSupplierStatusInvited,
		Language:   language,
		RFQFormat:  format,
		InvitedBy:  userID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.rfqSupplierRepo.Invite(ctx, rs); err != nil {
		return nil, err
	}

	if err := s.statusSvc.SyncSupplier(ctx, rfqID, rs.ID); err != nil {
		return nil, err
	}
	rs.Supplier = supplier
	return rs, nil
}

// SelectionInput 行级选择输入
type SelectionInput struct {
	RFQItemID        string  `json:"rfq_item_id" binding:"required"`
	OptionType       string  `json:"option_type" binding:"required"`
	OptionRefID      *string `json:"option_ref_id"`
	UseExistingPrice bool    `json:"use_existing_price"`
}

// SetSelectionsRequest 批量替换行级选择请求
type SetSelectionsRequest struct {
	Selections []SelectionInput `json:"selections" binding:"dive"`
}

// SetSelections 批量替换供应商的行级选择，覆盖策略默认展开
func (s *RFQService) SetSelections(ctx context.Context, rfqSupplierID string, req *SetSelectionsRequest, userID string) error {
	rs, err := s.rfqSupplierRepo.FindByID(ctx, rfqSupplierID)
	if err != nil {
		return err
	}

	items, err := s.rfqRepo.ActiveItems(ctx, rs.RFQID)
	if err != nil {
		return err
	}
	active := make(map[string]bool, len(items))
	for _, item := range items {
		active[item.ID] = true
	}

	now := time.Now()
	seen := make(map[string]bool, len(req.Selections))
	selections := make([]entity.RFQSupplierLineSelection, 0, len(req.Selections))
	for _, in := range req.Selections {
		if !active[in.RFQItemID] {
			return fmt.Errorf("%w: 行项不在活动行集内", repository.ErrConflict)
		}
		optionType := entity.NormalizeSelectionOption(in.OptionType)
		if optionType == "" {
			return fmt.Errorf("非法的选择类型: %s", in.OptionType)
		}
		if optionType != entity.SelectionOptionDemand && in.OptionRefID == nil {
			return fmt.Errorf("%w: %s 选择必须指定目标", repository.ErrConflict, optionType)
		}
		// OptionRefID可为空，唯一性在这里归一化后判定
		key := in.RFQItemID + "|" + optionType
		if in.OptionRefID != nil {
			key += "|" + *in.OptionRefID
		}
		if seen[key] {
			return fmt.Errorf("%w: 重复的行级选择: %s %s", repository.ErrConflict, in.RFQItemID, optionType)
		}
		seen[key] = true
		selections = append(selections, entity.RFQSupplierLineSelection{
			ID:               generateID(),
			RFQSupplierID:    rfqSupplierID,
			RFQItemID:        in.RFQItemID,
			OptionType:       optionType,
			OptionRefID:      in.OptionRefID,
			UseExistingPrice: in.UseExistingPrice,
			CreatedBy:        userID,
			CreatedAt:        now,
		})
	}
	return s.rfqSupplierRepo.ReplaceSelections(ctx, rfqSupplierID, selections)
}

// generateCode 生成RFQ编码 RFQ-YYYYMM-{3位}
func (s *RFQService) generateCode(ctx context.Context) (string, error) {
	prefix := fmt.Sprintf("RFQ-%s-", time.Now().Format("200601"))
	count, err := s.rfqRepo.CountByCodePrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%03d", prefix, count+1), nil
}
