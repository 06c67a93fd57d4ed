package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-srm/internal/shared/notify"
	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"github.com/bitfantasy/nimo-srm/internal/srm/repository"
	"go.uber.org/zap"
)

// RequestService 客户需求单生命周期
type RequestService struct {
	requestRepo *repository.RequestRepository
	partRepo    *repository.PartRepository
	rfqSvc      *RFQService
	notifier    *notify.Client
	logger      *zap.Logger
}

// NewRequestService 创建需求单服务
func NewRequestService(
	requestRepo *repository.RequestRepository,
	partRepo *repository.PartRepository,
	rfqSvc *RFQService,
	notifier *notify.Client,
	logger *zap.Logger,
) *RequestService {
	return &RequestService{
		requestRepo: requestRepo,
		partRepo:    partRepo,
		rfqSvc:      rfqSvc,
		notifier:    notifier,
		logger:      logger,
	}
}

// RequestLineInput 需求行输入
type RequestLineInput struct {
	LineNumber        int     `json:"line_number" binding:"required,min=1"`
	ClientPartNumber  string  `json:"client_part_number"`
	ClientDescription string  `json:"client_description"`
	OriginalPartID    *string `json:"original_part_id"`
	RequestedQty      float64 `json:"requested_qty" binding:"required,gt=0"`
	UOM               string  `json:"uom"`
	OEMOnly           bool    `json:"oem_only"`
}

// CreateRequestRequest 创建需求单请求
type CreateRequestRequest struct {
	ClientName string             `json:"client_name" binding:"required"`
	AssignedTo string             `json:"assigned_to"`
	Notes      string             `json:"notes"`
	Lines      []RequestLineInput `json:"lines" binding:"required,min=1,dive"`
}

// CreateRequest 创建需求单，携带首个修订与行项
func (s *RequestService) CreateRequest(ctx context.Context, req *CreateRequestRequest, userID string) (*entity.ClientRequest, error) {
	code, err := s.generateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成需求单编码失败: %w", err)
	}

	now := time.Now()
	request := &entity.ClientRequest{
		ID:         generateID(),
		Code:       code,
		ClientName: req.ClientName,
		Status:     entity.RequestStatusDraft,
		AssignedTo: req.AssignedTo,
		CreatedBy:  userID,
		CreatedAt:  now,
		UpdatedAt:  now,
		Notes:      req.Notes,
	}

	rev, err := s.buildRevision(ctx, request.ID, 1, req.Lines, "", userID)
	if err != nil {
		return nil, err
	}

	if err := s.requestRepo.Create(ctx, request, rev); err != nil {
		return nil, err
	}
	request.ActiveRevisionID = &rev.ID

	if req.AssignedTo != "" && s.notifier != nil {
		s.notifier.SendAsync(fmt.Sprintf("需求单 %s 已指派", code),
			fmt.Sprintf("客户 %s 的需求单 %s 已创建并指派处理，共 %d 行。",
				req.ClientName, code, len(req.Lines)))
	}

	s.logger.Info("需求单已创建",
		zap.String("request_id", request.ID),
		zap.String("code", code),
		zap.Int("lines", len(req.Lines)),
	)
	return request, nil
}

// ReviseRequest 追加需求单新修订，并推进生效指针
// 旧修订的行不删除；下游RFQ行的活动性随生效指针自然切换
func (s *RequestService) ReviseRequest(ctx context.Context, requestID string, lines []RequestLineInput, comment, userID string) (*entity.ClientRequestRevision, error) {
	request, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status == entity.RequestStatusClosed {
		return nil, fmt.Errorf("%w: 需求单已关闭", repository.ErrConflict)
	}

	nextNo, err := s.requestRepo.NextRevisionNumber(ctx, requestID)
	if err != nil {
		return nil, err
	}
	rev, err := s.buildRevision(ctx, requestID, nextNo, lines, comment, userID)
	if err != nil {
		return nil, err
	}
	if err := s.requestRepo.CreateRevision(ctx, rev); err != nil {
		return nil, err
	}

	// 已放行的需求单修订后立即把新行同步进RFQ
	if request.Status == entity.RequestStatusReleased {
		if err := s.rfqSvc.SyncFromRequest(ctx, requestID); err != nil {
			return nil, err
		}
	}
	return rev, nil
}

// ReleaseRequest 放行需求单：创建（或复用）对应RFQ并派生行项
func (s *RequestService) ReleaseRequest(ctx context.Context, requestID, userID string) (*entity.RFQ, error) {
	request, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status == entity.RequestStatusClosed {
		return nil, fmt.Errorf("%w: 需求单已关闭", repository.ErrConflict)
	}

	rfq, err := s.rfqSvc.EnsureForRequest(ctx, request, userID)
	if err != nil {
		return nil, err
	}

	if request.Status == entity.RequestStatusDraft {
		if err := s.requestRepo.UpdateStatus(ctx, requestID, entity.RequestStatusReleased); err != nil {
			return nil, err
		}
	}
	return rfq, nil
}

// CloseRequest 关闭需求单
func (s *RequestService) CloseRequest(ctx context.Context, requestID string) error {
	if _, err := s.requestRepo.FindByID(ctx, requestID); err != nil {
		return err
	}
	return s.requestRepo.UpdateStatus(ctx, requestID, entity.RequestStatusClosed)
}

// GetRequest 需求单详情（含生效修订行项）
func (s *RequestService) GetRequest(ctx context.Context, requestID string) (*entity.ClientRequest, *entity.ClientRequestRevision, error) {
	request, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	var rev *entity.ClientRequestRevision
	if request.ActiveRevisionID != nil {
		rev, err = s.requestRepo.FindRevision(ctx, *request.ActiveRevisionID)
		if err != nil {
			return nil, nil, err
		}
	}
	return request, rev, nil
}

// buildRevision 组装修订与行项；引用的零件必须存在
func (s *RequestService) buildRevision(ctx context.Context, requestID string, revisionNo int, inputs []RequestLineInput, comment, userID string) (*entity.ClientRequestRevision, error) {
	seen := make(map[int]bool, len(inputs))
	rev := &entity.ClientRequestRevision{
		ID:              generateID(),
		ClientRequestID: requestID,
		RevisionNumber:  revisionNo,
		Comment:         comment,
		CreatedBy:       userID,
		CreatedAt:       time.Now(),
	}
	for _, in := range inputs {
		if seen[in.LineNumber] {
			return nil, fmt.Errorf("%w: 行号 %d 重复", repository.ErrConflict, in.LineNumber)
		}
		seen[in.LineNumber] = true

		if in.OriginalPartID != nil {
			if _, err := s.partRepo.FindByID(ctx, *in.OriginalPartID); err != nil {
				return nil, fmt.Errorf("行 %d 引用的零件不存在: %w", in.LineNumber, err)
			}
		}
		uom := in.UOM
		if uom == "" {
			uom = "pcs"
		}
		rev.Lines = append(rev.Lines, entity.RequestLine{
			ID:                generateID(),
			RevisionID:        rev.ID,
			LineNumber:        in.LineNumber,
			ClientPartNumber:  in.ClientPartNumber,
			ClientDescription: in.ClientDescription,
			OriginalPartID:    in.OriginalPartID,
			RequestedQty:      in.RequestedQty,
			UOM:               uom,
			OEMOnly:           in.OEMOnly,
			CreatedAt:         time.Now(),
		})
	}
	return rev, nil
}

// generateCode 生成需求单编码 REQ-YYYYMM-{3位}
func (s *RequestService) generateCode(ctx context.Context) (string, error) {
	prefix := fmt.Sprintf("REQ-%s-", time.Now().Format("200601"))
	count, err := s.requestRepo.CountByCodePrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%03d", prefix, count+1), nil
}
