package service

import (
	"context"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"github.com/bitfantasy/nimo-srm/internal/srm/repository"
)

// DiffService 修订差异引擎：对比当前活动行集与供应商上次收到的修订
type DiffService struct {
	rfqRepo         *repository.RFQRepository
	requestRepo     *repository.RequestRepository
	rfqSupplierRepo *repository.RFQSupplierRepository
}

// NewDiffService 创建差异服务
func NewDiffService(
	rfqRepo *repository.RFQRepository,
	requestRepo *repository.RequestRepository,
	rfqSupplierRepo *repository.RFQSupplierRepository,
) *DiffService {
	return &DiffService{
		rfqRepo:         rfqRepo,
		requestRepo:     requestRepo,
		rfqSupplierRepo: rfqSupplierRepo,
	}
}

// 差异分类
const (
	DiffNew       = "NEW"
	DiffChanged   = "CHANGED"
	DiffUnchanged = "UNCHANGED"
)

// LineDiff 单行差异
type LineDiff struct {
	RFQItemID      string   `json:"rfq_item_id"`
	LineNumber     int      `json:"line_number"`
	Classification string   `json:"classification"`
	ChangedFields  []string `json:"changed_fields,omitempty"`
}

// DiffResult 一个供应商的差异结果
type DiffResult struct {
	AnchorRevisionID *string    `json:"anchor_rfq_revision_id"`
	Lines            []LineDiff `json:"lines"`
}

// DiffForSupplier 计算供应商视角的行差异
// 锚点为供应商上次送达的RFQ修订；锚点为空时全部行记NEW
func (s *DiffService) DiffForSupplier(ctx context.Context, rfqID, rfqSupplierID string) (*DiffResult, error) {
	items, err := s.rfqRepo.ActiveItems(ctx, rfqID)
	if err != nil {
		return nil, err
	}

	state, err := s.rfqSupplierRepo.RevisionState(ctx, rfqSupplierID)
	if err != nil {
		return nil, err
	}

	result := &DiffResult{AnchorRevisionID: state.LastSentRevisionID}

	// 空锚点：供应商还什么都没收到过
	if state.LastSentRevisionID == nil {
		for _, item := range items {
			result.Lines = append(result.Lines, LineDiff{
				RFQItemID:      item.ID,
				LineNumber:     item.LineNumber,
				Classification: DiffNew,
			})
		}
		return result, nil
	}

	anchorRev, err := s.rfqRepo.FindRevision(ctx, *state.LastSentRevisionID)
	if err != nil {
		return nil, err
	}
	anchorLines, err := s.requestRepo.LinesByRevision(ctx, anchorRev.ClientRequestRevisionID)
	if err != nil {
		return nil, err
	}

	// 行号是跨修订的稳定身份
	anchorByNumber := make(map[int]*entity.RequestLine, len(anchorLines))
	for i := range anchorLines {
		anchorByNumber[anchorLines[i].LineNumber] = &anchorLines[i]
	}

	for _, item := range items {
		diff := LineDiff{
			RFQItemID:  item.ID,
			LineNumber: item.LineNumber,
		}
		anchor, seen := anchorByNumber[item.LineNumber]
		if !seen || item.RequestLine == nil {
			diff.Classification = DiffNew
		} else {
			diff.ChangedFields = compareLines(anchor, item.RequestLine)
			if len(diff.ChangedFields) > 0 {
				diff.Classification = DiffChanged
			} else {
				diff.Classification = DiffUnchanged
			}
		}
		result.Lines = append(result.Lines, diff)
	}
	return result, nil
}

// compareLines 比较锚点行与当前行的可见字段
func compareLines(anchor, current *entity.RequestLine) []string {
	var changed []string
	if !samePartRef(anchor.OriginalPartID, current.OriginalPartID) {
		changed = append(changed, "original_part_id")
	}
	if anchor.RequestedQty != current.RequestedQty {
		changed = append(changed, "requested_qty")
	}
	if anchor.UOM != current.UOM {
		changed = append(changed, "uom")
	}
	if anchor.ClientPartNumber != current.ClientPartNumber {
		changed = append(changed, "client_part_number")
	}
	if anchor.ClientDescription != current.ClientDescription {
		changed = append(changed, "client_description")
	}
	if anchor.OEMOnly != current.OEMOnly {
		changed = append(changed, "oem_only")
	}
	return changed
}

func samePartRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
