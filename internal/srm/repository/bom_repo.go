package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"gorm.io/gorm"
)

// BOMRepository 零件组成关系仓库
type BOMRepository struct {
	db *gorm.DB
}

// NewBOMRepository 创建BOM仓库
func NewBOMRepository(db *gorm.DB) *BOMRepository {
	return &BOMRepository{db: db}
}

// Children 查询直接子件边
func (r *BOMRepository) Children(ctx context.Context, partID string) ([]entity.BOMEdge, error) {
	var edges []entity.BOMEdge
	err := r.db.WithContext(ctx).
		Preload("ChildPart").
		Where("parent_part_id = ?", partID).
		Order("created_at ASC").
		Find(&edges).Error
	return edges, err
}

// HasChildren 判断零件是否有BOM子件
func (r *BOMRepository) HasChildren(ctx context.Context, partID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.BOMEdge{}).
		Where("parent_part_id = ?", partID).
		Count(&count).Error
	return count > 0, err
}

// WouldCreateCycle 判断插入parent→child边是否成环：
// parent == child，或沿既有parent→child边从child可达parent
func (r *BOMRepository) WouldCreateCycle(ctx context.Context, tx *gorm.DB, parentID, childID string) (bool, error) {
	if parentID == childID {
		return true, nil
	}
	if tx == nil {
		tx = r.db
	}

	// BFS：从child向下走既有边，碰到parent即成环
	visited := map[string]bool{childID: true}
	frontier := []string{childID}
	for len(frontier) > 0 {
		var next []string
		err := tx.WithContext(ctx).
			Model(&entity.BOMEdge{}).
			Where("parent_part_id IN ?", frontier).
			Pluck("child_part_id", &next).Error
		if err != nil {
			return false, err
		}
		frontier = frontier[:0]
		for _, id := range next {
			if id == parentID {
				return true, nil
			}
			if !visited[id] {
				visited[id] = true
				frontier = append(frontier, id)
			}
		}
	}
	return false, nil
}

// InsertEdge 插入组成边；可达性检查与插入在同一事务内执行，
// 避免并发插入之间的竞态
func (r *BOMRepository) InsertEdge(ctx context.Context, parentID, childID string, qty float64, userID string) (*entity.BOMEdge, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: 数量必须为正", ErrConflict)
	}

	var edge *entity.BOMEdge
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 父子件须存在且属于同一机型
		var parent, child entity.OriginalPart
		if err := tx.Where("id = ?", parentID).First(&parent).Error; err != nil {
			return fmt.Errorf("父件不存在: %w", ErrNotFound)
		}
		if err := tx.Where("id = ?", childID).First(&child).Error; err != nil {
			return fmt.Errorf("子件不存在: %w", ErrNotFound)
		}
		if parent.EquipmentModelID != child.EquipmentModelID {
			return fmt.Errorf("%w: 父子件机型不一致", ErrConflict)
		}

		var dup int64
		if err := tx.Model(&entity.BOMEdge{}).
			Where("parent_part_id = ? AND child_part_id = ?", parentID, childID).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return fmt.Errorf("%w: 组成边已存在", ErrConflict)
		}

		cyclic, err := r.WouldCreateCycle(ctx, tx, parentID, childID)
		if err != nil {
			return err
		}
		if cyclic {
			return ErrCycle
		}

		edge = &entity.BOMEdge{
			ID:           generateID(),
			ParentPartID: parentID,
			ChildPartID:  childID,
			Quantity:     qty,
			CreatedBy:    userID,
			CreatedAt:    time.Now(),
		}
		return tx.Create(edge).Error
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

// DeleteEdge 删除组成边
func (r *BOMRepository) DeleteEdge(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.BOMEdge{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SubtreeNode 展示树节点：层级、路径串与沿路径累计的乘数
type SubtreeNode struct {
	PartID        string  `json:"part_id"`
	CatalogNumber string  `json:"catalog_number"`
	Name          string  `json:"name"`
	Level         int     `json:"level"`
	Path          string  `json:"path"`
	EdgeQty       float64 `json:"edge_qty"`
	CumulativeQty float64 `json:"cumulative_qty"` // 路径上各边数量之积
}

// Subtree 从根零件向下遍历组成边，产出(level, path)有序的展示树
// 累计数量为路径上每条边数量的乘积
func (r *BOMRepository) Subtree(ctx context.Context, rootID string) ([]SubtreeNode, error) {
	var root entity.OriginalPart
	if err := r.db.WithContext(ctx).Where("id = ?", rootID).First(&root).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	nodes := []SubtreeNode{{
		PartID:        root.ID,
		CatalogNumber: root.CatalogNumber,
		Name:          root.Name,
		Level:         0,
		Path:          root.CatalogNumber,
		EdgeQty:       1,
		CumulativeQty: 1,
	}}

	type frame struct {
		partID string
		level  int
		path   string
		cumQty float64
	}
	stack := []frame{{root.ID, 0, root.CatalogNumber, 1}}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		edges, err := r.Children(ctx, cur.partID)
		if err != nil {
			return nil, err
		}
		// 逆序压栈保持目录号顺序的深度优先展开
		for i := len(edges) - 1; i >= 0; i-- {
			e := edges[i]
			if e.ChildPart == nil {
				continue
			}
			childPath := cur.path + "/" + e.ChildPart.CatalogNumber
			node := SubtreeNode{
				PartID:        e.ChildPartID,
				CatalogNumber: e.ChildPart.CatalogNumber,
				Name:          e.ChildPart.Name,
				Level:         cur.level + 1,
				Path:          childPath,
				EdgeQty:       e.Quantity,
				CumulativeQty: cur.cumQty * e.Quantity,
			}
			nodes = append(nodes, node)
			stack = append(stack, frame{e.ChildPartID, node.Level, childPath, node.CumulativeQty})
		}
	}

	// (level, path)排序：先广度后深度的稳定展示顺序
	sortSubtree(nodes)
	return nodes, nil
}

func sortSubtree(nodes []SubtreeNode) {
	// 插入排序足够：单个零件的展示树规模很小
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0; j-- {
			a, b := nodes[j-1], nodes[j]
			if a.Level < b.Level || (a.Level == b.Level && a.Path <= b.Path) {
				break
			}
			nodes[j-1], nodes[j] = b, a
		}
	}
}
