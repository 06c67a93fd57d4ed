package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"github.com/bitfantasy/nimo-srm/internal/srm/repository"
)

func TestSyncCreatesDefaultsAndIsIdempotent(t *testing.T) {
	svcs, repos, db := setupServiceTest(t)
	rfq, rs := seedRFQFlow(t, svcs, repos, db)
	ctx := context.Background()

	statusMap, err := svcs.Status.StatusMap(ctx, rs.ID)
	if err != nil {
		t.Fatalf("StatusMap failed: %v", err)
	}
	if len(statusMap) != 2 {
		t.Fatalf("expected 2 status rows after invite, got %d", len(statusMap))
	}
	for _, row := range statusMap {
		if row.Status != entity.LineStatusRequest {
			t.Errorf("default status = %s, want REQUEST", row.Status)
		}
	}

	if err := svcs.Status.SyncSupplier(ctx, rfq.ID, rs.ID); err != nil {
		t.Fatalf("SyncSupplier failed: %v", err)
	}
	again, _ := svcs.Status.StatusMap(ctx, rs.ID)
	if len(again) != 2 {
		t.Errorf("sync not idempotent: %d rows", len(again))
	}
}

func TestSetStatusRejectsManualArchive(t *testing.T) {
	svcs, repos, db := setupServiceTest(t)
	rfq, rs := seedRFQFlow(t, svcs, repos, db)
	ctx := context.Background()

	item, err := repos.RFQ.FindItemByLineNumber(ctx, rfq.ID, 1)
	if err != nil {
		t.Fatalf("FindItemByLineNumber failed: %v", err)
	}

	err = svcs.Status.SetStatus(ctx, rs.ID, item.ID, entity.LineStatusArchived)
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict for manual ARCHIVED, got %v", err)
	}
	if err := svcs.Status.SetStatus(ctx, rs.ID, item.ID, "bogus"); err == nil {
		t.Fatal("expected error for invalid status")
	}
	if err := svcs.Status.SetStatus(ctx, rs.ID, item.ID, entity.LineStatusNone); err != nil {
		t.Fatalf("SetStatus NONE failed: %v", err)
	}
	statusMap, _ := svcs.Status.StatusMap(ctx, rs.ID)
	if got := EffectiveStatus(statusMap, item.ID); got != entity.LineStatusNone {
		t.Errorf("status = %s, want NONE", got)
	}
}

func TestRevisionDropArchivesAndReviveRestores(t *testing.T) {
	svcs, repos, db := setupServiceTest(t)
	rfq, rs := seedRFQFlow(t, svcs, repos, db)
	ctx := context.Background()

	item2, err := repos.RFQ.FindItemByLineNumber(ctx, rfq.ID, 2)
	if err != nil {
		t.Fatalf("FindItemByLineNumber failed: %v", err)
	}

	// 修订删掉行2：行2归档
	partA := "part-a"
	if _, err := svcs.Request.ReviseRequest(ctx, rfq.ClientRequestID, []RequestLineInput{
		{LineNumber: 1, ClientPartNumber: "CL-100", OriginalPartID: &partA, RequestedQty: 3},
	}, "砍掉行2", "test-user"); err != nil {
		t.Fatalf("ReviseRequest failed: %v", err)
	}
	if err := svcs.Status.SyncSupplier(ctx, rfq.ID, rs.ID); err != nil {
		t.Fatalf("SyncSupplier failed: %v", err)
	}
	statusMap, _ := svcs.Status.StatusMap(ctx, rs.ID)
	if got := statusMap[item2.ID].Status; got != entity.LineStatusArchived {
		t.Errorf("dropped line status = %s, want ARCHIVED", got)
	}

	// 再加回行2：新行项以REQUEST复活
	partD := "part-d"
	if _, err := svcs.Request.ReviseRequest(ctx, rfq.ClientRequestID, []RequestLineInput{
		{LineNumber: 1, ClientPartNumber: "CL-100", OriginalPartID: &partA, RequestedQty: 3},
		{LineNumber: 2, ClientPartNumber: "CL-200", OriginalPartID: &partD, RequestedQty: 10},
	}, "恢复行2", "test-user"); err != nil {
		t.Fatalf("ReviseRequest failed: %v", err)
	}
	if err := svcs.Status.SyncSupplier(ctx, rfq.ID, rs.ID); err != nil {
		t.Fatalf("SyncSupplier failed: %v", err)
	}
	revived, err := repos.RFQ.FindItemByLineNumber(ctx, rfq.ID, 2)
	if err != nil {
		t.Fatalf("revived item lookup failed: %v", err)
	}
	statusMap, _ = svcs.Status.StatusMap(ctx, rs.ID)
	if got := EffectiveStatus(statusMap, revived.ID); got != entity.LineStatusRequest {
		t.Errorf("revived line status = %s, want REQUEST", got)
	}
}

func TestSyncCarriesStatusAcrossRevisions(t *testing.T) {
	svcs, repos, db := setupServiceTest(t)
	rfq, rs := seedRFQFlow(t, svcs, repos, db)
	ctx := context.Background()

	// 行2已报价
	imported, err := svcs.Response.ImportBatch(ctx, rs.ID, &ImportRequest{
		Entries: []ImportEntry{
			{LineNumber: 2, SupplierPartNumber: "SP-200", Price: "88.00", Currency: "USD"},
		},
	}, "test-user")
	if err != nil {
		t.Fatalf("ImportBatch failed: %v", err)
	}

	// 修订只动行1，行2物理行换新但状态随行号迁移
	partA := "part-a"
	partD := "part-d"
	if _, err := svcs.Request.ReviseRequest(ctx, rfq.ClientRequestID, []RequestLineInput{
		{LineNumber: 1, ClientPartNumber: "CL-100", OriginalPartID: &partA, RequestedQty: 8},
		{LineNumber: 2, ClientPartNumber: "CL-200", OriginalPartID: &partD, RequestedQty: 10},
	}, "行1加量", "test-user"); err != nil {
		t.Fatalf("ReviseRequest failed: %v", err)
	}
	if err := svcs.Status.SyncSupplier(ctx, rfq.ID, rs.ID); err != nil {
		t.Fatalf("SyncSupplier failed: %v", err)
	}

	item2, err := repos.RFQ.FindItemByLineNumber(ctx, rfq.ID, 2)
	if err != nil {
		t.Fatalf("FindItemByLineNumber failed: %v", err)
	}
	statusMap, _ := svcs.Status.StatusMap(ctx, rs.ID)
	row, ok := statusMap[item2.ID]
	if !ok {
		t.Fatal("missing carried status row for new line 2 item")
	}
	if row.Status != entity.LineStatusNone {
		t.Errorf("carried status = %s, want NONE", row.Status)
	}
	if row.LastResponseRevisionID == nil || *row.LastResponseRevisionID != imported.ResponseRevisionID {
		t.Errorf("carried response revision lost: %+v", row)
	}
}

func TestBulkSetStatuses(t *testing.T) {
	svcs, repos, db := setupServiceTest(t)
	rfq, rs := seedRFQFlow(t, svcs, repos, db)
	ctx := context.Background()

	item1, _ := repos.RFQ.FindItemByLineNumber(ctx, rfq.ID, 1)
	item2, _ := repos.RFQ.FindItemByLineNumber(ctx, rfq.ID, 2)

	if err := svcs.Status.SetStatuses(ctx, rs.ID, []BulkStatusItem{
		{RFQItemID: item1.ID, Status: entity.LineStatusNone},
		{RFQItemID: item2.ID, Status: entity.LineStatusRequest},
	}); err != nil {
		t.Fatalf("SetStatuses failed: %v", err)
	}
	statusMap, _ := svcs.Status.StatusMap(ctx, rs.ID)
	if got := EffectiveStatus(statusMap, item1.ID); got != entity.LineStatusNone {
		t.Errorf("line 1 status = %s, want NONE", got)
	}
	if got := EffectiveStatus(statusMap, item2.ID); got != entity.LineStatusRequest {
		t.Errorf("line 2 status = %s, want REQUEST", got)
	}

	// 任一行非法则整批不落位
	err := svcs.Status.SetStatuses(ctx, rs.ID, []BulkStatusItem{
		{RFQItemID: item1.ID, Status: entity.LineStatusRequest},
		{RFQItemID: item2.ID, Status: "BOGUS"},
	})
	if err == nil {
		t.Fatal("expected validation error for invalid status")
	}
	statusMap, _ = svcs.Status.StatusMap(ctx, rs.ID)
	if got := EffectiveStatus(statusMap, item1.ID); got != entity.LineStatusNone {
		t.Errorf("line 1 status = %s, batch must not apply partially", got)
	}

	// ARCHIVED只能由同步产生
	err = svcs.Status.SetStatuses(ctx, rs.ID, []BulkStatusItem{
		{RFQItemID: item1.ID, Status: entity.LineStatusArchived},
	})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict for bulk ARCHIVED, got %v", err)
	}
}
