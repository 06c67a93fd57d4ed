package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"github.com/bitfantasy/nimo-srm/internal/srm/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StructureService 结构构建器：把RFQ行项展开为采购选项结构
type StructureService struct {
	rfqRepo      *repository.RFQRepository
	bomRepo      *repository.BOMRepository
	supplierRepo *repository.SupplierRepository
	db           *gorm.DB
	logger       *zap.Logger

	// BOM模式下无子件时是否回退为SELF组件
	includeSelfFallback bool
}

// NewStructureService 创建结构服务
func NewStructureService(
	rfqRepo *repository.RFQRepository,
	bomRepo *repository.BOMRepository,
	supplierRepo *repository.SupplierRepository,
	db *gorm.DB,
	logger *zap.Logger,
) *StructureService {
	return &StructureService{
		rfqRepo:             rfqRepo,
		bomRepo:             bomRepo,
		supplierRepo:        supplierRepo,
		db:                  db,
		logger:              logger,
		includeSelfFallback: true,
	}
}

// EnsureStrategies 为缺失策略的行项惰性创建默认策略：
// 有BOM子件默认BOM模式，否则SINGLE
func (s *StructureService) EnsureStrategies(ctx context.Context, items []entity.RFQItem) error {
	for i := range items {
		item := &items[i]
		if item.Strategy != nil {
			continue
		}
		mode := entity.StrategyModeSingle
		if item.RequestLine != nil && item.RequestLine.OriginalPartID != nil {
			hasBOM, err := s.bomRepo.HasChildren(ctx, *item.RequestLine.OriginalPartID)
			if err != nil {
				return err
			}
			if hasBOM {
				mode = entity.StrategyModeBOM
			}
		}
		strategy := &entity.RFQItemStrategy{
			ID:          generateID(),
			RFQItemID:   item.ID,
			Mode:        mode,
			AllowOEM:    true,
			AllowAnalog: true,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
		if err := s.rfqRepo.SaveStrategy(ctx, strategy); err != nil {
			return err
		}
		item.Strategy = strategy
	}
	return nil
}

// SetStrategyRequest 设置行项策略请求
type SetStrategyRequest struct {
	Mode             string  `json:"mode" binding:"required"`
	AllowOEM         *bool   `json:"allow_oem"`
	AllowAnalog      *bool   `json:"allow_analog"`
	AllowKit         *bool   `json:"allow_kit"`
	AllowPartial     *bool   `json:"allow_partial"`
	SelectedBundleID *string `json:"selected_bundle_id"`
	Rebuild          bool    `json:"rebuild"`
}

// SetStrategy 设置/覆盖行项策略；策略变更使已构建组件失效，
// Rebuild为true时立即重建，否则清空等待下次重建
func (s *StructureService) SetStrategy(ctx context.Context, itemID string, req *SetStrategyRequest, userID string) (*entity.RFQItemStrategy, error) {
	mode := entity.NormalizeStrategyMode(req.Mode)
	if mode == "" {
		return nil, fmt.Errorf("非法的策略模式: %s", req.Mode)
	}

	item, err := s.rfqRepo.FindItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	strategy, err := s.rfqRepo.FindStrategyByItem(ctx, itemID)
	if err != nil {
		if err != repository.ErrNotFound {
			return nil, err
		}
		strategy = &entity.RFQItemStrategy{
			ID:          generateID(),
			RFQItemID:   itemID,
			AllowOEM:    true,
			AllowAnalog: true,
			CreatedAt:   time.Now(),
		}
	}

	strategy.Mode = mode
	if req.AllowOEM != nil {
		strategy.AllowOEM = *req.AllowOEM
	}
	if req.AllowAnalog != nil {
		strategy.AllowAnalog = *req.AllowAnalog
	}
	if req.AllowKit != nil {
		strategy.AllowKit = *req.AllowKit
	}
	if req.AllowPartial != nil {
		strategy.AllowPartial = *req.AllowPartial
	}
	if req.SelectedBundleID != nil {
		if *req.SelectedBundleID == "" {
			strategy.SelectedBundleID = nil
		} else {
			bundle, err := s.supplierRepo.FindBundle(ctx, *req.SelectedBundleID)
			if err != nil {
				return nil, fmt.Errorf("套件不存在: %w", err)
			}
			strategy.SelectedBundleID = &bundle.ID
		}
	}
	strategy.UpdatedBy = userID
	strategy.UpdatedAt = time.Now()

	if err := s.rfqRepo.SaveStrategy(ctx, strategy); err != nil {
		return nil, err
	}

	if req.Rebuild {
		if err := s.RebuildItem(ctx, itemID); err != nil {
			return nil, err
		}
	} else {
		// 旧组件已失效，整体清空
		if err := s.rfqRepo.ReplaceComponents(ctx, itemID, nil); err != nil {
			return nil, err
		}
	}

	item.Strategy = strategy
	return strategy, nil
}

// BuildComponents 按策略展开一个行项为展平组件集
// required_qty = component_qty × requested_qty
func (s *StructureService) BuildComponents(ctx context.Context, item *entity.RFQItem, strategy *entity.RFQItemStrategy) ([]entity.RFQItemComponent, error) {
	// 未解析零件的行短路为空组件集
	if item.RequestLine == nil || item.RequestLine.OriginalPartID == nil {
		return nil, nil
	}
	partID := *item.RequestLine.OriginalPartID

	var components []entity.RFQItemComponent
	now := time.Now()
	addComponent := func(targetPartID string, componentQty float64, sourceType string) {
		components = append(components, entity.RFQItemComponent{
			ID:             generateID(),
			RFQItemID:      item.ID,
			OriginalPartID: targetPartID,
			ComponentQty:   componentQty,
			RequiredQty:    componentQty * item.RequestedQty,
			SourceType:     sourceType,
			SortOrder:      len(components) + 1,
			CreatedAt:      now,
		})
	}

	switch strategy.Mode {
	case entity.StrategyModeSingle:
		addComponent(partID, 1, entity.ComponentSourceSelf)

	case entity.StrategyModeBOM:
		edges, err := s.bomRepo.Children(ctx, partID)
		if err != nil {
			return nil, err
		}
		if len(edges) == 0 {
			if s.includeSelfFallback {
				addComponent(partID, 1, entity.ComponentSourceSelf)
			}
			break
		}
		for _, edge := range edges {
			addComponent(edge.ChildPartID, edge.Quantity, entity.ComponentSourceBOM)
		}

	case entity.StrategyModeMixed:
		// 整件与BOM子件并存，供应商可二选一报价
		addComponent(partID, 1, entity.ComponentSourceSelf)
		edges, err := s.bomRepo.Children(ctx, partID)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			addComponent(edge.ChildPartID, edge.Quantity, entity.ComponentSourceBOM)
		}

	default:
		return nil, fmt.Errorf("非法的策略模式: %s", strategy.Mode)
	}

	return components, nil
}

// RebuildItem 重建一个行项的组件：整体删除重插，从不增量修补
func (s *StructureService) RebuildItem(ctx context.Context, itemID string) error {
	item, err := s.rfqRepo.FindItem(ctx, itemID)
	if err != nil {
		return err
	}
	strategy := item.Strategy
	if strategy == nil {
		strategy, err = s.rfqRepo.FindStrategyByItem(ctx, itemID)
		if err != nil {
			if err == repository.ErrNotFound {
				if err := s.EnsureStrategies(ctx, []entity.RFQItem{*item}); err != nil {
					return err
				}
				strategy, err = s.rfqRepo.FindStrategyByItem(ctx, itemID)
				if err != nil {
					return err
				}
			} else {
				return err
			}
		}
	}

	components, err := s.BuildComponents(ctx, item, strategy)
	if err != nil {
		return err
	}
	return s.rfqRepo.ReplaceComponents(ctx, itemID, components)
}

// RebuildAll 重建RFQ全部活动行项的组件
func (s *StructureService) RebuildAll(ctx context.Context, rfqID string) error {
	items, err := s.rfqRepo.ActiveItems(ctx, rfqID)
	if err != nil {
		return err
	}
	if err := s.EnsureStrategies(ctx, items); err != nil {
		return err
	}
	for i := range items {
		components, err := s.BuildComponents(ctx, &items[i], items[i].Strategy)
		if err != nil {
			return err
		}
		if err := s.rfqRepo.ReplaceComponents(ctx, items[i].ID, components); err != nil {
			return err
		}
	}
	s.logger.Info("RFQ结构已重建",
		zap.String("rfq_id", rfqID),
		zap.Int("items", len(items)),
	)
	return nil
}

// ConfirmStructure 确认结构：每行至少启用一种选项，启用KIT必须已选套件
// 校验失败时报告违规行号；通过后RFQ进入structured状态
func (s *StructureService) ConfirmStructure(ctx context.Context, rfqID string) error {
	rfq, err := s.rfqRepo.FindByID(ctx, rfqID)
	if err != nil {
		return err
	}

	items, err := s.rfqRepo.ActiveItems(ctx, rfqID)
	if err != nil {
		return err
	}
	if err := s.EnsureStrategies(ctx, items); err != nil {
		return err
	}

	for _, item := range items {
		st := item.Strategy
		if st == nil {
			return fmt.Errorf("行 %d 缺少策略", item.LineNumber)
		}
		if !st.AllowOEM && !st.AllowAnalog && !st.AllowKit {
			return fmt.Errorf("行 %d 未启用任何采购选项", item.LineNumber)
		}
		if st.AllowKit && st.SelectedBundleID == nil {
			return fmt.Errorf("行 %d 启用了套件但未选定套件", item.LineNumber)
		}
	}

	if rfq.Status == entity.RFQStatusDraft {
		if err := s.rfqRepo.UpdateStatus(ctx, rfqID, entity.RFQStatusStructured); err != nil {
			return err
		}
	}
	return nil
}

// TreeNode 结构树节点
type TreeNode struct {
	RFQItemID     string  `json:"rfq_item_id"`
	LineNumber    int     `json:"line_number"`
	NodeType      string  `json:"node_type"` // DEMAND/BOM_COMPONENT/KIT_ROLE
	PartID        string  `json:"part_id,omitempty"`
	CatalogNumber string  `json:"catalog_number,omitempty"`
	Name          string  `json:"name"`
	Unresolved    bool    `json:"unresolved,omitempty"`
	ComponentQty  float64 `json:"component_qty"`
	RequiredQty   float64 `json:"required_qty"`
	SourceType    string  `json:"source_type,omitempty"`

	Children []TreeNode `json:"children,omitempty"`

	// default视图的供应商交叉引用
	SupplierRefs []TreeSupplierRef `json:"supplier_refs,omitempty"`
}

// TreeSupplierRef 节点上的供应商状态交叉引用
type TreeSupplierRef struct {
	RFQSupplierID string `json:"rfq_supplier_id"`
	SupplierName  string `json:"supplier_name"`
	LineStatus    string `json:"line_status"`
	Priced        bool   `json:"priced"`
}

// 结构树视图
const (
	TreeViewMaster  = "master"
	TreeViewDefault = "default"
)

// BuildTree 构建RFQ结构树
// master视图为构建器的权威输出；default视图在其上叠加供应商/报价交叉引用
func (s *StructureService) BuildTree(ctx context.Context, rfqID, view string, crossRef func(itemID string) []TreeSupplierRef) ([]TreeNode, error) {
	items, err := s.rfqRepo.ActiveItems(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureStrategies(ctx, items); err != nil {
		return nil, err
	}

	var roots []TreeNode
	for _, item := range items {
		node := TreeNode{
			RFQItemID:    item.ID,
			LineNumber:   item.LineNumber,
			NodeType:     entity.SelectionOptionDemand,
			ComponentQty: 1,
			RequiredQty:  item.RequestedQty,
		}
		if line := item.RequestLine; line != nil {
			node.Name = line.ClientDescription
			if line.OriginalPart != nil {
				node.PartID = line.OriginalPart.ID
				node.CatalogNumber = line.OriginalPart.CatalogNumber
				if node.Name == "" {
					node.Name = line.OriginalPart.Name
				}
			} else {
				node.Unresolved = true
			}
		}

		for _, comp := range item.Components {
			child := TreeNode{
				RFQItemID:    item.ID,
				LineNumber:   item.LineNumber,
				NodeType:     entity.SelectionOptionBOMComponent,
				PartID:       comp.OriginalPartID,
				ComponentQty: comp.ComponentQty,
				RequiredQty:  comp.RequiredQty,
				SourceType:   comp.SourceType,
			}
			if comp.OriginalPart != nil {
				child.CatalogNumber = comp.OriginalPart.CatalogNumber
				child.Name = comp.OriginalPart.Name
			}
			node.Children = append(node.Children, child)
		}

		// 套件角色是独立于BOM的叶子位置
		if st := item.Strategy; st != nil && st.AllowKit && st.SelectedBundleID != nil {
			bundle, err := s.supplierRepo.FindBundle(ctx, *st.SelectedBundleID)
			if err != nil && err != repository.ErrNotFound {
				return nil, err
			}
			if bundle != nil {
				for _, role := range bundle.Roles {
					node.Children = append(node.Children, TreeNode{
						RFQItemID:    item.ID,
						LineNumber:   item.LineNumber,
						NodeType:     entity.SelectionOptionKitRole,
						Name:         role.Role,
						ComponentQty: role.Quantity,
						RequiredQty:  role.Quantity * item.RequestedQty,
					})
				}
			}
		}

		if view == TreeViewDefault && crossRef != nil {
			node.SupplierRefs = crossRef(item.ID)
		}
		roots = append(roots, node)
	}
	return roots, nil
}
