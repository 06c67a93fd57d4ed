package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/bitfantasy/nimo-srm/internal/srm/testutil"
	"gorm.io/gorm"
)

func setupBOMTest(t *testing.T) (*gorm.DB, *BOMRepository) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return db, NewBOMRepository(db)
}

func seedBOMParts(t *testing.T, db *gorm.DB) {
	t.Helper()
	testutil.SeedModel(t, db, "model-001", "HP300")
	testutil.SeedPart(t, db, "part-a", "model-001", "CAT-A", "主轴总成")
	testutil.SeedPart(t, db, "part-b", "model-001", "CAT-B", "主轴")
	testutil.SeedPart(t, db, "part-c", "model-001", "CAT-C", "轴承")
	testutil.SeedPart(t, db, "part-d", "model-001", "CAT-D", "滚珠")
}

func TestInsertEdgeRejectsSelfLoop(t *testing.T) {
	db, repo := setupBOMTest(t)
	seedBOMParts(t, db)
	ctx := context.Background()

	_, err := repo.InsertEdge(ctx, "part-a", "part-a", 1, "test-user")
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle for self loop, got %v", err)
	}
}

func TestInsertEdgeRejectsCycle(t *testing.T) {
	db, repo := setupBOMTest(t)
	seedBOMParts(t, db)
	ctx := context.Background()

	if _, err := repo.InsertEdge(ctx, "part-a", "part-b", 1, "test-user"); err != nil {
		t.Fatalf("insert a->b failed: %v", err)
	}
	if _, err := repo.InsertEdge(ctx, "part-b", "part-c", 1, "test-user"); err != nil {
		t.Fatalf("insert b->c failed: %v", err)
	}

	// c->a 会沿 a->b->c 闭环
	_, err := repo.InsertEdge(ctx, "part-c", "part-a", 1, "test-user")
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle for c->a, got %v", err)
	}

	// 菱形不是环：a->b, a->c, b->d, c->d 均应允许
	if _, err := repo.InsertEdge(ctx, "part-a", "part-c", 2, "test-user"); err != nil {
		t.Fatalf("insert a->c failed: %v", err)
	}
	if _, err := repo.InsertEdge(ctx, "part-b", "part-d", 1, "test-user"); err != nil {
		t.Fatalf("insert b->d failed: %v", err)
	}
	if _, err := repo.InsertEdge(ctx, "part-c", "part-d", 1, "test-user"); err != nil {
		t.Fatalf("insert c->d (diamond) failed: %v", err)
	}
}

func TestInsertEdgeRejectsDuplicateAndBadQty(t *testing.T) {
	db, repo := setupBOMTest(t)
	seedBOMParts(t, db)
	ctx := context.Background()

	if _, err := repo.InsertEdge(ctx, "part-a", "part-b", 2, "test-user"); err != nil {
		t.Fatalf("insert a->b failed: %v", err)
	}
	if _, err := repo.InsertEdge(ctx, "part-a", "part-b", 3, "test-user"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate edge, got %v", err)
	}
	if _, err := repo.InsertEdge(ctx, "part-a", "part-c", 0, "test-user"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for zero qty, got %v", err)
	}
	if _, err := repo.InsertEdge(ctx, "part-a", "missing", 1, "test-user"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing child, got %v", err)
	}
}

func TestSubtreeCumulativeQty(t *testing.T) {
	db, repo := setupBOMTest(t)
	seedBOMParts(t, db)
	ctx := context.Background()

	// a -5-> b -2-> c -3-> d：d的累计数量应为30
	if _, err := repo.InsertEdge(ctx, "part-a", "part-b", 5, "test-user"); err != nil {
		t.Fatalf("insert a->b failed: %v", err)
	}
	if _, err := repo.InsertEdge(ctx, "part-b", "part-c", 2, "test-user"); err != nil {
		t.Fatalf("insert b->c failed: %v", err)
	}
	if _, err := repo.InsertEdge(ctx, "part-c", "part-d", 3, "test-user"); err != nil {
		t.Fatalf("insert c->d failed: %v", err)
	}

	nodes, err := repo.Subtree(ctx, "part-a")
	if err != nil {
		t.Fatalf("Subtree failed: %v", err)
	}
	if len(nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(nodes))
	}

	want := map[string]float64{
		"part-a": 1,
		"part-b": 5,
		"part-c": 10,
		"part-d": 30,
	}
	for _, node := range nodes {
		if got := want[node.PartID]; node.CumulativeQty != got {
			t.Errorf("part %s: cumulative qty = %v, want %v", node.PartID, node.CumulativeQty, got)
		}
	}

	// (level, path)有序
	for i := 1; i < len(nodes); i++ {
		a, b := nodes[i-1], nodes[i]
		if a.Level > b.Level || (a.Level == b.Level && a.Path > b.Path) {
			t.Errorf("nodes out of (level, path) order at %d: %+v before %+v", i, a, b)
		}
	}
}

func TestSubtreeMissingRoot(t *testing.T) {
	_, repo := setupBOMTest(t)
	if _, err := repo.Subtree(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
