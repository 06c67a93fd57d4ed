package entity

import "time"

// RFQSupplier 受邀供应商，(RFQ, supplier)对唯一
type RFQSupplier struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	RFQID      string `json:"rfq_id" gorm:"size:32;not null;index;uniqueIndex:uq_rfq_supplier"`
	SupplierID string `json:"supplier_id" gorm:"size:32;not null;uniqueIndex:uq_rfq_supplier"`
	Status     string `json:"status" gorm:"size:20;default:invited"` // invited/sent/responded
	Language   string `json:"language" gorm:"size:10;default:en"`
	RFQFormat  string `json:"rfq_format" gorm:"size:10;default:auto"` // auto/whole/bom/kit

	InvitedBy string    `json:"invited_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Supplier *Supplier `json:"supplier,omitempty" gorm:"foreignKey:SupplierID"`
}

func (RFQSupplier) TableName() string {
	return "srm_rfq_suppliers"
}

// 供应商状态
const (
	RFQSupplierStatusInvited   = "invited"
	RFQSupplierStatusSent      = "sent"
	RFQSupplierStatusResponded = "responded"
)

// RFQ格式
const (
	RFQFormatAuto  = "auto"
	RFQFormatWhole = "whole"
	RFQFormatBOM   = "bom"
	RFQFormatKit   = "kit"
)

// NormalizeRFQFormat RFQ格式归一化，非法值返回空串
func NormalizeRFQFormat(format string) string {
	switch format {
	case RFQFormatAuto, RFQFormatWhole, RFQFormatBOM, RFQFormatKit:
		return format
	}
	return ""
}

// RFQSupplierLineSelection 显式行级选择，覆盖策略驱动的默认展开
// 唯一性覆盖(供应商, 行项, 类型, 目标)；OptionRefID可为NULL，
// Postgres下NULL互不相等，唯一索引用COALESCE表达式单独建（见建表迁移）
type RFQSupplierLineSelection struct {
	ID            string `json:"id" gorm:"primaryKey;size:32"`
	RFQSupplierID string `json:"rfq_supplier_id" gorm:"size:32;not null;index"`
	RFQItemID     string `json:"rfq_item_id" gorm:"size:32;not null"`
	OptionType    string `json:"option_type" gorm:"size:20;not null"` // DEMAND/BOM_COMPONENT/KIT_ROLE

	// BOM_COMPONENT指向组件行，KIT_ROLE指向套件角色
	OptionRefID *string `json:"option_ref_id" gorm:"size:32"`

	// 标记该行以接受既有价格的方式计价，不再询价
	UseExistingPrice bool `json:"use_existing_price" gorm:"default:false"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
}

func (RFQSupplierLineSelection) TableName() string {
	return "srm_rfq_supplier_line_selections"
}

// 选择类型
const (
	SelectionOptionDemand       = "DEMAND"
	SelectionOptionBOMComponent = "BOM_COMPONENT"
	SelectionOptionKitRole      = "KIT_ROLE"
)

// NormalizeSelectionOption 选择类型归一化，非法值返回空串
func NormalizeSelectionOption(option string) string {
	switch option {
	case SelectionOptionDemand, SelectionOptionBOMComponent, SelectionOptionKitRole:
		return option
	}
	return ""
}

// RFQSupplierLineStatus 行状态机，(RFQSupplier, RFQItem)唯一
// 缺失行按REQUEST处理；ARCHIVED在行项掉出生效修订时始终胜出
type RFQSupplierLineStatus struct {
	ID            string `json:"id" gorm:"primaryKey;size:32"`
	RFQSupplierID string `json:"rfq_supplier_id" gorm:"size:32;not null;index;uniqueIndex:uq_line_status"`
	RFQItemID     string `json:"rfq_item_id" gorm:"size:32;not null;uniqueIndex:uq_line_status"`
	Status        string `json:"status" gorm:"size:20;not null;default:REQUEST"` // REQUEST/NONE/ACCEPTED_EXISTING/ARCHIVED

	LastRequestRFQRevisionID *string `json:"last_request_rfq_revision_id" gorm:"size:32"`
	LastResponseRevisionID   *string `json:"last_response_revision_id" gorm:"size:32"`

	// ACCEPTED_EXISTING时记录被接受价格的来源
	SourceType string `json:"source_type" gorm:"size:20"`
	SourceRef  string `json:"source_ref" gorm:"size:64"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (RFQSupplierLineStatus) TableName() string {
	return "srm_rfq_supplier_line_statuses"
}

// 行状态
const (
	LineStatusRequest          = "REQUEST"
	LineStatusNone             = "NONE"
	LineStatusAcceptedExisting = "ACCEPTED_EXISTING"
	LineStatusArchived         = "ARCHIVED"
)

// NormalizeLineStatus 行状态归一化，非法值返回空串
func NormalizeLineStatus(status string) string {
	switch status {
	case LineStatusRequest, LineStatusNone, LineStatusAcceptedExisting, LineStatusArchived:
		return status
	}
	return ""
}

// RFQSupplierRevisionState 每个供应商最后送达的RFQ修订，下次差量计算的锚点
type RFQSupplierRevisionState struct {
	ID                  string    `json:"id" gorm:"primaryKey;size:32"`
	RFQSupplierID       string    `json:"rfq_supplier_id" gorm:"size:32;not null;uniqueIndex"`
	LastSentRevisionID  *string   `json:"last_sent_rfq_revision_id" gorm:"size:32"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (RFQSupplierRevisionState) TableName() string {
	return "srm_rfq_supplier_revision_states"
}

// RFQSupplierDispatch 一次发送行为的不可变记录
type RFQSupplierDispatch struct {
	ID            string `json:"id" gorm:"primaryKey;size:32"`
	RFQSupplierID string `json:"rfq_supplier_id" gorm:"size:32;not null;index"`
	DispatchType  string `json:"dispatch_type" gorm:"size:10;not null"` // FULL/DELTA
	RFQRevisionID string `json:"rfq_revision_id" gorm:"size:32;not null"`

	DocumentKey string `json:"document_key" gorm:"size:256"`
	DocumentURL string `json:"document_url" gorm:"size:512"`
	PayloadHash string `json:"payload_hash" gorm:"size:64;not null"`
	Note        string `json:"note" gorm:"type:text"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
}

func (RFQSupplierDispatch) TableName() string {
	return "srm_rfq_supplier_dispatches"
}

// 发送类型
const (
	DispatchTypeFull  = "FULL"
	DispatchTypeDelta = "DELTA"
)
