package service

import (
	"context"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"github.com/bitfantasy/nimo-srm/internal/srm/repository"
	"go.uber.org/zap"
)

// CatalogService 零件目录与组成关系维护
type CatalogService struct {
	partRepo *repository.PartRepository
	bomRepo  *repository.BOMRepository
	logger   *zap.Logger
}

// NewCatalogService 创建目录服务
func NewCatalogService(partRepo *repository.PartRepository, bomRepo *repository.BOMRepository, logger *zap.Logger) *CatalogService {
	return &CatalogService{partRepo: partRepo, bomRepo: bomRepo, logger: logger}
}

// CreateModelRequest 创建设备型号请求
type CreateModelRequest struct {
	Name         string `json:"name" binding:"required"`
	Manufacturer string `json:"manufacturer"`
	Notes        string `json:"notes"`
}

// CreateModel 创建设备型号
func (s *CatalogService) CreateModel(ctx context.Context, req *CreateModelRequest) (*entity.EquipmentModel, error) {
	model := &entity.EquipmentModel{
		Name:         req.Name,
		Manufacturer: req.Manufacturer,
		Notes:        req.Notes,
	}
	if err := s.partRepo.CreateModel(ctx, model); err != nil {
		return nil, err
	}
	return model, nil
}

// CreatePartRequest 创建零件请求
type CreatePartRequest struct {
	EquipmentModelID string   `json:"equipment_model_id" binding:"required"`
	CatalogNumber    string   `json:"catalog_number" binding:"required"`
	Name             string   `json:"name" binding:"required"`
	WeightKG         *float64 `json:"weight_kg"`
	Material         string   `json:"material"`
	Notes            string   `json:"notes"`
}

// CreatePart 创建零件；(机型, 目录号)重复时报冲突
func (s *CatalogService) CreatePart(ctx context.Context, req *CreatePartRequest, userID string) (*entity.OriginalPart, error) {
	if _, err := s.partRepo.FindByCatalogNumber(ctx, req.EquipmentModelID, req.CatalogNumber); err == nil {
		return nil, repository.ErrConflict
	} else if err != repository.ErrNotFound {
		return nil, err
	}

	part := &entity.OriginalPart{
		EquipmentModelID: req.EquipmentModelID,
		CatalogNumber:    req.CatalogNumber,
		Name:             req.Name,
		WeightKG:         req.WeightKG,
		Material:         req.Material,
		Notes:            req.Notes,
		CreatedBy:        userID,
	}
	if err := s.partRepo.Create(ctx, part); err != nil {
		return nil, err
	}
	return part, nil
}

// ListParts 零件列表
func (s *CatalogService) ListParts(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.OriginalPart, int64, error) {
	return s.partRepo.FindAll(ctx, page, pageSize, filters)
}

// GetPart 零件详情
func (s *CatalogService) GetPart(ctx context.Context, id string) (*entity.OriginalPart, error) {
	return s.partRepo.FindByID(ctx, id)
}

// AddBOMEdgeRequest 插入组成边请求
type AddBOMEdgeRequest struct {
	ParentPartID string  `json:"parent_part_id" binding:"required"`
	ChildPartID  string  `json:"child_part_id" binding:"required"`
	Quantity     float64 `json:"quantity" binding:"required,gt=0"`
}

// AddBOMEdge 插入组成边；成环或重复时拒绝
func (s *CatalogService) AddBOMEdge(ctx context.Context, req *AddBOMEdgeRequest, userID string) (*entity.BOMEdge, error) {
	edge, err := s.bomRepo.InsertEdge(ctx, req.ParentPartID, req.ChildPartID, req.Quantity, userID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("组成边已插入",
		zap.String("parent", req.ParentPartID),
		zap.String("child", req.ChildPartID),
	)
	return edge, nil
}

// RemoveBOMEdge 删除组成边
func (s *CatalogService) RemoveBOMEdge(ctx context.Context, edgeID string) error {
	return s.bomRepo.DeleteEdge(ctx, edgeID)
}

// Subtree 零件的组成展示树
func (s *CatalogService) Subtree(ctx context.Context, partID string) ([]repository.SubtreeNode, error) {
	return s.bomRepo.Subtree(ctx, partID)
}
