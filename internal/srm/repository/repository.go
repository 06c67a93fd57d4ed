package repository

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflict")
	ErrCycle    = errors.New("bom edge would create cycle")
)

// generateID 生成32位ID
func generateID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:32]
}

// Repositories SRM仓库集合
type Repositories struct {
	Part        *PartRepository
	BOM         *BOMRepository
	Request     *RequestRepository
	RFQ         *RFQRepository
	Supplier    *SupplierRepository
	RFQSupplier *RFQSupplierRepository
	LineStatus  *LineStatusRepository
	Response    *ResponseRepository
	Dispatch    *DispatchRepository
}

// NewRepositories 创建SRM仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Part:        NewPartRepository(db),
		BOM:         NewBOMRepository(db),
		Request:     NewRequestRepository(db),
		RFQ:         NewRFQRepository(db),
		Supplier:    NewSupplierRepository(db),
		RFQSupplier: NewRFQSupplierRepository(db),
		LineStatus:  NewLineStatusRepository(db),
		Response:    NewResponseRepository(db),
		Dispatch:    NewDispatchRepository(db),
	}
}
