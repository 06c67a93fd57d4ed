package entity

import "time"

// EquipmentModel 设备型号（破碎机机型）
type EquipmentModel struct {
	ID           string `json:"id" gorm:"primaryKey;size:32"`
	Name         string `json:"name" gorm:"size:200;not null;uniqueIndex"`
	Manufacturer string `json:"manufacturer" gorm:"size:200"`
	Notes        string `json:"notes" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (EquipmentModel) TableName() string {
	return "srm_equipment_models"
}

// OriginalPart 原厂零件，按(机型, 目录号)唯一
type OriginalPart struct {
	ID               string `json:"id" gorm:"primaryKey;size:32"`
	EquipmentModelID string `json:"equipment_model_id" gorm:"size:32;not null;index;uniqueIndex:uq_part_model_cat"`
	CatalogNumber    string `json:"catalog_number" gorm:"size:64;not null;uniqueIndex:uq_part_model_cat"`
	Name             string `json:"name" gorm:"size:300;not null"`
	WeightKG         *float64 `json:"weight_kg"`
	Material         string `json:"material" gorm:"size:100"`
	Notes            string `json:"notes" gorm:"type:text"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	EquipmentModel *EquipmentModel `json:"equipment_model,omitempty" gorm:"foreignKey:EquipmentModelID"`
}

func (OriginalPart) TableName() string {
	return "srm_original_parts"
}

// BOMEdge 零件组成边：parent由qty个child组成
// 图必须保持无环，插入路径在事务内做可达性检查
type BOMEdge struct {
	ID           string  `json:"id" gorm:"primaryKey;size:32"`
	ParentPartID string  `json:"parent_part_id" gorm:"size:32;not null;index;uniqueIndex:uq_bom_edge"`
	ChildPartID  string  `json:"child_part_id" gorm:"size:32;not null;index;uniqueIndex:uq_bom_edge"`
	Quantity     float64 `json:"quantity" gorm:"type:decimal(12,4);not null"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`

	ChildPart *OriginalPart `json:"child_part,omitempty" gorm:"foreignKey:ChildPartID"`
}

func (BOMEdge) TableName() string {
	return "srm_bom_edges"
}
