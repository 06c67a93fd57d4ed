package service

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"github.com/bitfantasy/nimo-srm/internal/srm/repository"
	"go.uber.org/zap"
)

// SupplierService 供应商主数据
type SupplierService struct {
	supplierRepo *repository.SupplierRepository
	logger       *zap.Logger
}

// NewSupplierService 创建供应商服务
func NewSupplierService(supplierRepo *repository.SupplierRepository, logger *zap.Logger) *SupplierService {
	return &SupplierService{supplierRepo: supplierRepo, logger: logger}
}

// ContactInput 联系人输入
type ContactInput struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	IsPrimary bool   `json:"is_primary"`
}

// CreateSupplierRequest 创建供应商请求
type CreateSupplierRequest struct {
	Name     string         `json:"name" binding:"required"`
	Country  string         `json:"country"`
	Language string         `json:"language"`
	Notes    string         `json:"notes"`
	Contacts []ContactInput `json:"contacts" binding:"dive"`
}

// CreateSupplier 创建供应商
func (s *SupplierService) CreateSupplier(ctx context.Context, req *CreateSupplierRequest, userID string) (*entity.Supplier, error) {
	code, err := s.supplierRepo.GenerateCode(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	language := req.Language
	if language == "" {
		language = "en"
	}
	supplier := &entity.Supplier{
		ID:        generateID(),
		Code:      code,
		Name:      req.Name,
		Country:   req.Country,
		Language:  language,
		Status:    "active",
		CreatedBy: userID,
		CreatedAt: now,
		UpdatedAt: now,
		Notes:     req.Notes,
	}
	for _, c := range req.Contacts {
		supplier.Contacts = append(supplier.Contacts, entity.SupplierContact{
			ID:         generateID(),
			SupplierID: supplier.ID,
			Name:       c.Name,
			Email:      c.Email,
			Phone:      c.Phone,
			IsPrimary:  c.IsPrimary,
			CreatedAt:  now,
		})
	}
	if err := s.supplierRepo.Create(ctx, supplier); err != nil {
		return nil, err
	}
	return supplier, nil
}

// ListSuppliers 供应商列表
func (s *SupplierService) ListSuppliers(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Supplier, int64, error) {
	return s.supplierRepo.FindAll(ctx, page, pageSize, filters)
}

// GetSupplier 供应商详情
func (s *SupplierService) GetSupplier(ctx context.Context, id string) (*entity.Supplier, error) {
	return s.supplierRepo.FindByID(ctx, id)
}

// BundleRoleInput 套件角色输入
type BundleRoleInput struct {
	Role     string  `json:"role" binding:"required"`
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
}

// CreateBundleRequest 创建套件请求
type CreateBundleRequest struct {
	OriginalPartID string            `json:"original_part_id" binding:"required"`
	Name           string            `json:"name" binding:"required"`
	Roles          []BundleRoleInput `json:"roles" binding:"required,min=1,dive"`
}

// CreateBundle 创建供应商套件
func (s *SupplierService) CreateBundle(ctx context.Context, supplierID string, req *CreateBundleRequest) (*entity.SupplierBundle, error) {
	if _, err := s.supplierRepo.FindByID(ctx, supplierID); err != nil {
		return nil, err
	}

	bundle := &entity.SupplierBundle{
		ID:             generateID(),
		SupplierID:     supplierID,
		OriginalPartID: req.OriginalPartID,
		Name:           req.Name,
		CreatedAt:      time.Now(),
	}
	for i, role := range req.Roles {
		bundle.Roles = append(bundle.Roles, entity.SupplierBundleRole{
			ID:        generateID(),
			BundleID:  bundle.ID,
			Role:      role.Role,
			Quantity:  role.Quantity,
			SortOrder: i + 1,
		})
	}
	if err := s.supplierRepo.CreateBundle(ctx, bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

// PriceHistory 供应商件号价格历史
func (s *SupplierService) PriceHistory(ctx context.Context, supplierPartID string) ([]entity.SupplierPartPrice, error) {
	return s.supplierRepo.PriceHistory(ctx, supplierPartID)
}
