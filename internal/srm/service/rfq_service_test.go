package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"github.com/bitfantasy/nimo-srm/internal/srm/repository"
)

func TestSetSelectionsRejectsDuplicate(t *testing.T) {
	svcs, repos, db := setupServiceTest(t)
	rfq, rs := seedRFQFlow(t, svcs, repos, db)
	ctx := context.Background()

	item, err := repos.RFQ.FindItemByLineNumber(ctx, rfq.ID, 1)
	if err != nil {
		t.Fatalf("FindItemByLineNumber failed: %v", err)
	}

	// DEMAND选择无目标引用，重复行同样要被拦下
	err = svcs.RFQ.SetSelections(ctx, rs.ID, &SetSelectionsRequest{
		Selections: []SelectionInput{
			{RFQItemID: item.ID, OptionType: entity.SelectionOptionDemand},
			{RFQItemID: item.ID, OptionType: entity.SelectionOptionDemand},
		},
	}, "test-user")
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate selection, got %v", err)
	}
	selections, err := repos.RFQSupplier.Selections(ctx, rs.ID)
	if err != nil {
		t.Fatalf("Selections failed: %v", err)
	}
	if len(selections) != 0 {
		t.Fatalf("duplicate batch must not persist, got %d rows", len(selections))
	}

	// 同一行不同目标的组件选择彼此不冲突
	if err := svcs.Structure.RebuildAll(ctx, rfq.ID); err != nil {
		t.Fatalf("RebuildAll failed: %v", err)
	}
	comps, err := repos.RFQ.ComponentsByItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("ComponentsByItem failed: %v", err)
	}
	if len(comps) < 2 {
		t.Fatalf("expected BOM components, got %d", len(comps))
	}
	err = svcs.RFQ.SetSelections(ctx, rs.ID, &SetSelectionsRequest{
		Selections: []SelectionInput{
			{RFQItemID: item.ID, OptionType: entity.SelectionOptionBOMComponent, OptionRefID: &comps[0].ID},
			{RFQItemID: item.ID, OptionType: entity.SelectionOptionBOMComponent, OptionRefID: &comps[1].ID},
		},
	}, "test-user")
	if err != nil {
		t.Fatalf("SetSelections failed: %v", err)
	}
	selections, _ = repos.RFQSupplier.Selections(ctx, rs.ID)
	if len(selections) != 2 {
		t.Errorf("expected 2 selections, got %d", len(selections))
	}
}
