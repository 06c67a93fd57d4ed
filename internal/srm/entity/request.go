package entity

import "time"

// ClientRequest 客户需求单
type ClientRequest struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	Code       string `json:"code" gorm:"size:32;uniqueIndex;not null"`
	ClientName string `json:"client_name" gorm:"size:200;not null"`
	Status     string `json:"status" gorm:"size:20;default:draft"` // draft/released/closed

	// 生效修订指针，行项的活动性以此为准
	ActiveRevisionID *string `json:"active_revision_id" gorm:"size:32"`

	AssignedTo string    `json:"assigned_to" gorm:"size:32"`
	CreatedBy  string    `json:"created_by" gorm:"size:32"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Notes      string    `json:"notes" gorm:"type:text"`
}

func (ClientRequest) TableName() string {
	return "srm_client_requests"
}

// 需求单状态
const (
	RequestStatusDraft    = "draft"
	RequestStatusReleased = "released"
	RequestStatusClosed   = "closed"
)

// ClientRequestRevision 需求单修订，追加式快照
type ClientRequestRevision struct {
	ID              string `json:"id" gorm:"primaryKey;size:32"`
	ClientRequestID string `json:"client_request_id" gorm:"size:32;not null;index;uniqueIndex:uq_request_revision"`
	RevisionNumber  int    `json:"revision_number" gorm:"not null;uniqueIndex:uq_request_revision"`
	Comment         string `json:"comment" gorm:"type:text"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`

	Lines []RequestLine `json:"lines,omitempty" gorm:"foreignKey:RevisionID"`
}

func (ClientRequestRevision) TableName() string {
	return "srm_client_request_revisions"
}

// RequestLine 需求行项，归属某个修订
type RequestLine struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	RevisionID string `json:"revision_id" gorm:"size:32;not null;index"`
	LineNumber int    `json:"line_number" gorm:"not null"`

	// 客户侧原始标识；零件可能尚未解析到主数据
	ClientPartNumber  string  `json:"client_part_number" gorm:"size:64"`
	ClientDescription string  `json:"client_description" gorm:"size:500"`
	OriginalPartID    *string `json:"original_part_id" gorm:"size:32;index"`

	RequestedQty float64 `json:"requested_qty" gorm:"type:decimal(12,4);not null"`
	UOM          string  `json:"uom" gorm:"size:20;default:pcs"`
	OEMOnly      bool    `json:"oem_only" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`

	OriginalPart *OriginalPart `json:"original_part,omitempty" gorm:"foreignKey:OriginalPartID"`
}

func (RequestLine) TableName() string {
	return "srm_request_lines"
}
