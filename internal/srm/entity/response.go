package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// RFQResponseRevision 供应商一轮报价提交，按供应商单调编号
// 首次写入自动创建，调用方要求新一轮时显式递增；一旦有行引用即不可变
type RFQResponseRevision struct {
	ID             string    `json:"id" gorm:"primaryKey;size:32"`
	RFQSupplierID  string    `json:"rfq_supplier_id" gorm:"size:32;not null;index;uniqueIndex:uq_response_revision"`
	RevisionNumber int       `json:"revision_number" gorm:"not null;uniqueIndex:uq_response_revision"`
	CreatedBy      string    `json:"created_by" gorm:"size:32"`
	CreatedAt      time.Time `json:"created_at"`
}

func (RFQResponseRevision) TableName() string {
	return "srm_rfq_response_revisions"
}

// RFQResponseLine 报价行，只追加；修正以新行+change_reason表达，从不原地更新
type RFQResponseLine struct {
	ID                 string `json:"id" gorm:"primaryKey;size:32"`
	ResponseRevisionID string `json:"response_revision_id" gorm:"size:32;not null;index"`
	RFQItemID          string `json:"rfq_item_id" gorm:"size:32;not null;index"`
	SupplierPartID     *string `json:"supplier_part_id" gorm:"size:32"`

	OfferType string          `json:"offer_type" gorm:"size:10;not null;default:UNKNOWN"` // OEM/ANALOG/UNKNOWN
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(14,4);not null"`
	Currency  string          `json:"currency" gorm:"size:10;not null"`

	LeadTimeDays *int       `json:"lead_time_days"`
	ValidUntil   *time.Time `json:"valid_until"`

	EntrySource  string `json:"entry_source" gorm:"size:20;not null"` // SUPPLIER_FILE/ACCEPTED_EXISTING
	ChangeReason string `json:"change_reason" gorm:"size:300"`

	CreatedAt time.Time `json:"created_at"`
}

func (RFQResponseLine) TableName() string {
	return "srm_rfq_response_lines"
}

// 报价类型
const (
	OfferTypeOEM     = "OEM"
	OfferTypeAnalog  = "ANALOG"
	OfferTypeUnknown = "UNKNOWN"
)

// NormalizeOfferType 报价类型归一化，非法值返回UNKNOWN
func NormalizeOfferType(offer string) string {
	switch offer {
	case OfferTypeOEM, OfferTypeAnalog:
		return offer
	}
	return OfferTypeUnknown
}

// 报价录入来源
const (
	EntrySourceSupplierFile     = "SUPPLIER_FILE"
	EntrySourceAcceptedExisting = "ACCEPTED_EXISTING"
)

// RFQResponseLineAction 报价动作审计行；事后重建单笔提交的唯一依据
type RFQResponseLineAction struct {
	ID             string    `json:"id" gorm:"primaryKey;size:32"`
	ResponseLineID string    `json:"response_line_id" gorm:"size:32;not null;index"`
	Action         string    `json:"action" gorm:"size:32;not null"` // import/accept_existing/correction
	ActorID        string    `json:"actor_id" gorm:"size:32;not null"`
	Payload        string    `json:"payload" gorm:"type:text"`
	Reason         string    `json:"reason" gorm:"size:300"`
	CreatedAt      time.Time `json:"created_at"`
}

func (RFQResponseLineAction) TableName() string {
	return "srm_rfq_response_line_actions"
}
