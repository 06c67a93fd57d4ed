package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Supplier 供应商主数据
type Supplier struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	Code     string `json:"code" gorm:"size:32;uniqueIndex;not null"`
	Name     string `json:"name" gorm:"size:200;not null"`
	Country  string `json:"country" gorm:"size:64"`
	Language string `json:"language" gorm:"size:10;default:en"`
	Status   string `json:"status" gorm:"size:20;default:active"` // active/blocked

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Notes     string    `json:"notes" gorm:"type:text"`

	Contacts []SupplierContact `json:"contacts,omitempty" gorm:"foreignKey:SupplierID"`
}

func (Supplier) TableName() string {
	return "srm_suppliers"
}

// SupplierContact 供应商联系人
type SupplierContact struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	SupplierID string    `json:"supplier_id" gorm:"size:32;not null;index"`
	Name       string    `json:"name" gorm:"size:100;not null"`
	Email      string    `json:"email" gorm:"size:200"`
	Phone      string    `json:"phone" gorm:"size:50"`
	IsPrimary  bool      `json:"is_primary" gorm:"default:false"`
	CreatedAt  time.Time `json:"created_at"`
}

func (SupplierContact) TableName() string {
	return "srm_supplier_contacts"
}

// SupplierPart 供应商件号，按(supplier, supplier_part_number)唯一
type SupplierPart struct {
	ID                 string  `json:"id" gorm:"primaryKey;size:32"`
	SupplierID         string  `json:"supplier_id" gorm:"size:32;not null;index;uniqueIndex:uq_supplier_part"`
	SupplierPartNumber string  `json:"supplier_part_number" gorm:"size:64;not null;uniqueIndex:uq_supplier_part"`
	OriginalPartID     *string `json:"original_part_id" gorm:"size:32;index"`
	Name               string  `json:"name" gorm:"size:300"`
	IsAnalog           bool    `json:"is_analog" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SupplierPart) TableName() string {
	return "srm_supplier_parts"
}

// SupplierPartPrice 价格历史，追加式
type SupplierPartPrice struct {
	ID             string          `json:"id" gorm:"primaryKey;size:32"`
	SupplierPartID string          `json:"supplier_part_id" gorm:"size:32;not null;index"`
	Price          decimal.Decimal `json:"price" gorm:"type:decimal(14,4);not null"`
	Currency       string          `json:"currency" gorm:"size:10;not null"`
	LeadTimeDays   *int            `json:"lead_time_days"`
	ValidUntil     *time.Time      `json:"valid_until"`
	SourceType     string          `json:"source_type" gorm:"size:20;not null"` // PRICE_LIST/RFQ/MANUAL
	SourceRef      string          `json:"source_ref" gorm:"size:64"`
	RecordedAt     time.Time       `json:"recorded_at"`
}

func (SupplierPartPrice) TableName() string {
	return "srm_supplier_part_prices"
}

// 价格来源
const (
	PriceSourcePriceList = "PRICE_LIST"
	PriceSourceRFQ       = "RFQ"
	PriceSourceManual    = "MANUAL"
)

// SupplierBundle 供应商套件：一组命名角色，整体替代某个零件
type SupplierBundle struct {
	ID             string `json:"id" gorm:"primaryKey;size:32"`
	SupplierID     string `json:"supplier_id" gorm:"size:32;not null;index"`
	OriginalPartID string `json:"original_part_id" gorm:"size:32;not null;index"`
	Name           string `json:"name" gorm:"size:200;not null"`

	CreatedAt time.Time `json:"created_at"`

	Roles []SupplierBundleRole `json:"roles,omitempty" gorm:"foreignKey:BundleID"`
}

func (SupplierBundle) TableName() string {
	return "srm_supplier_bundles"
}

// SupplierBundleRole 套件角色行（role, qty）
type SupplierBundleRole struct {
	ID        string  `json:"id" gorm:"primaryKey;size:32"`
	BundleID  string  `json:"bundle_id" gorm:"size:32;not null;index"`
	Role      string  `json:"role" gorm:"size:200;not null"`
	Quantity  float64 `json:"quantity" gorm:"type:decimal(12,4);not null"`
	SortOrder int     `json:"sort_order" gorm:"default:0"`
}

func (SupplierBundleRole) TableName() string {
	return "srm_supplier_bundle_roles"
}
