package entity

import "time"

// RFQ 询价单，与需求单一一对应
type RFQ struct {
	ID              string `json:"id" gorm:"primaryKey;size:32"`
	Code            string `json:"code" gorm:"size:32;uniqueIndex;not null"`
	ClientRequestID string `json:"client_request_id" gorm:"size:32;not null;uniqueIndex"`
	Status          string `json:"status" gorm:"size:20;default:draft"` // draft/structured/sent

	// 最近一次发送所冻结的修订
	CurrentRevisionID *string `json:"current_revision_id" gorm:"size:32"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RFQ) TableName() string {
	return "srm_rfqs"
}

// RFQ状态
const (
	RFQStatusDraft      = "draft"
	RFQStatusStructured = "structured"
	RFQStatusSent       = "sent"
)

// RFQRevision RFQ修订快照，锚定需求单的某个修订
type RFQRevision struct {
	ID                      string `json:"id" gorm:"primaryKey;size:32"`
	RFQID                   string `json:"rfq_id" gorm:"size:32;not null;index;uniqueIndex:uq_rfq_revision"`
	RevisionNumber          int    `json:"revision_number" gorm:"not null;uniqueIndex:uq_rfq_revision"`
	ClientRequestRevisionID string `json:"client_request_revision_id" gorm:"size:32;not null"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
}

func (RFQRevision) TableName() string {
	return "srm_rfq_revisions"
}

// RFQItem 询价行项，与需求行一一对应
// 需求行掉出生效修订后行项保留，活动性靠join过滤
type RFQItem struct {
	ID            string `json:"id" gorm:"primaryKey;size:32"`
	RFQID         string `json:"rfq_id" gorm:"size:32;not null;index"`
	RequestLineID string `json:"request_line_id" gorm:"size:32;not null;uniqueIndex"`
	LineNumber    int    `json:"line_number" gorm:"not null"`

	RequestedQty float64 `json:"requested_qty" gorm:"type:decimal(12,4);not null"`
	UOM          string  `json:"uom" gorm:"size:20;default:pcs"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RequestLine *RequestLine       `json:"request_line,omitempty" gorm:"foreignKey:RequestLineID"`
	Strategy    *RFQItemStrategy   `json:"strategy,omitempty" gorm:"foreignKey:RFQItemID"`
	Components  []RFQItemComponent `json:"components,omitempty" gorm:"foreignKey:RFQItemID"`
}

func (RFQItem) TableName() string {
	return "srm_rfq_items"
}

// RFQItemStrategy 行项采购策略
type RFQItemStrategy struct {
	ID        string `json:"id" gorm:"primaryKey;size:32"`
	RFQItemID string `json:"rfq_item_id" gorm:"size:32;not null;uniqueIndex"`
	Mode      string `json:"mode" gorm:"size:10;not null"` // SINGLE/BOM/MIXED

	AllowOEM     bool `json:"allow_oem" gorm:"default:true"`
	AllowAnalog  bool `json:"allow_analog" gorm:"default:true"`
	AllowKit     bool `json:"allow_kit" gorm:"default:false"`
	AllowPartial bool `json:"allow_partial" gorm:"default:false"`

	// AllowKit时必须选定套件，确认结构时校验
	SelectedBundleID *string `json:"selected_bundle_id" gorm:"size:32"`

	UpdatedBy string    `json:"updated_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RFQItemStrategy) TableName() string {
	return "srm_rfq_item_strategies"
}

// 策略模式
const (
	StrategyModeSingle = "SINGLE"
	StrategyModeBOM    = "BOM"
	StrategyModeMixed  = "MIXED"
)

// NormalizeStrategyMode 策略模式归一化，非法值返回空串
func NormalizeStrategyMode(mode string) string {
	switch mode {
	case StrategyModeSingle, StrategyModeBOM, StrategyModeMixed:
		return mode
	}
	return ""
}

// RFQItemComponent 结构构建器输出的展平组件
// 重建时整体删除重插，从不增量修补
type RFQItemComponent struct {
	ID             string `json:"id" gorm:"primaryKey;size:32"`
	RFQItemID      string `json:"rfq_item_id" gorm:"size:32;not null;index"`
	OriginalPartID string `json:"original_part_id" gorm:"size:32;not null"`

	ComponentQty float64 `json:"component_qty" gorm:"type:decimal(12,4);not null"`
	RequiredQty  float64 `json:"required_qty" gorm:"type:decimal(12,4);not null"` // component_qty × requested_qty
	SourceType   string  `json:"source_type" gorm:"size:10;not null"`             // SELF/BOM/MANUAL
	SortOrder    int     `json:"sort_order" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`

	OriginalPart *OriginalPart `json:"original_part,omitempty" gorm:"foreignKey:OriginalPartID"`
}

func (RFQItemComponent) TableName() string {
	return "srm_rfq_item_components"
}

// 组件来源
const (
	ComponentSourceSelf   = "SELF"
	ComponentSourceBOM    = "BOM"
	ComponentSourceManual = "MANUAL"
)
