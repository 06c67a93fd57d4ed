package service

import (
	"strings"

	"github.com/bitfantasy/nimo-srm/internal/shared/notify"
	"github.com/bitfantasy/nimo-srm/internal/srm/repository"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// generateID 生成32位ID
func generateID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:32]
}

// Services SRM服务集合
type Services struct {
	Catalog   *CatalogService
	Supplier  *SupplierService
	Request   *RequestService
	RFQ       *RFQService
	Structure *StructureService
	Status    *StatusService
	Diff      *DiffService
	Dispatch  *DispatchService
	Response  *ResponseService
}

// NewServices 组装SRM服务集合；redis、minio、notifier均可为nil
func NewServices(
	repos *repository.Repositories,
	db *gorm.DB,
	redisClient *redis.Client,
	minioClient *minio.Client,
	bucket string,
	notifier *notify.Client,
	logger *zap.Logger,
) *Services {
	statusSvc := NewStatusService(repos.RFQ, repos.RFQSupplier, repos.LineStatus, db, logger)
	structureSvc := NewStructureService(repos.RFQ, repos.BOM, repos.Supplier, db, logger)
	diffSvc := NewDiffService(repos.RFQ, repos.Request, repos.RFQSupplier)
	rfqSvc := NewRFQService(repos, statusSvc, logger)

	return &Services{
		Catalog:   NewCatalogService(repos.Part, repos.BOM, logger),
		Supplier:  NewSupplierService(repos.Supplier, logger),
		Request:   NewRequestService(repos.Request, repos.Part, rfqSvc, notifier, logger),
		RFQ:       rfqSvc,
		Structure: structureSvc,
		Status:    statusSvc,
		Diff:      diffSvc,
		Dispatch:  NewDispatchService(repos, structureSvc, statusSvc, diffSvc, db, redisClient, minioClient, bucket, logger),
		Response:  NewResponseService(repos, statusSvc, db, logger),
	}
}
