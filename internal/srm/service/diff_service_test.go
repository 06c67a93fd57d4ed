package service

import (
	"context"
	"testing"
)

func diffByNumber(lines []LineDiff) map[int]LineDiff {
	m := make(map[int]LineDiff, len(lines))
	for _, d := range lines {
		m[d.LineNumber] = d
	}
	return m
}

func TestDiffNilAnchorAllNew(t *testing.T) {
	svcs, repos, db := setupServiceTest(t)
	rfq, rs := seedRFQFlow(t, svcs, repos, db)
	ctx := context.Background()

	result, err := svcs.Diff.DiffForSupplier(ctx, rfq.ID, rs.ID)
	if err != nil {
		t.Fatalf("DiffForSupplier failed: %v", err)
	}
	if result.AnchorRevisionID != nil {
		t.Errorf("anchor = %v, want nil", *result.AnchorRevisionID)
	}
	if len(result.Lines) != 2 {
		t.Fatalf("expected 2 diff lines, got %d", len(result.Lines))
	}
	for _, d := range result.Lines {
		if d.Classification != DiffNew {
			t.Errorf("line %d classification = %s, want NEW", d.LineNumber, d.Classification)
		}
	}
}

func TestDiffAfterRevision(t *testing.T) {
	svcs, repos, db := setupServiceTest(t)
	rfq, rs := seedRFQFlow(t, svcs, repos, db)
	ctx := context.Background()

	// 首次发送建立锚点
	if err := svcs.Structure.ConfirmStructure(ctx, rfq.ID); err != nil {
		t.Fatalf("ConfirmStructure failed: %v", err)
	}
	result, err := svcs.Dispatch.Send(ctx, rfq.ID, &SendRequest{RFQSupplierIDs: []string{rs.ID}}, "test-user")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(result.Succeeded) != 1 {
		t.Fatalf("expected 1 succeeded send, got %+v", result)
	}

	// 修订需求：行1数量3→5，行2不变，新增行3
	partA := "part-a"
	partD := "part-d"
	if _, err := svcs.Request.ReviseRequest(ctx, rfq.ClientRequestID, []RequestLineInput{
		{LineNumber: 1, ClientPartNumber: "CL-100", OriginalPartID: &partA, RequestedQty: 5},
		{LineNumber: 2, ClientPartNumber: "CL-200", OriginalPartID: &partD, RequestedQty: 10},
		{LineNumber: 3, ClientPartNumber: "CL-300", OriginalPartID: &partD, RequestedQty: 2},
	}, "加量", "test-user"); err != nil {
		t.Fatalf("ReviseRequest failed: %v", err)
	}

	diff, err := svcs.Diff.DiffForSupplier(ctx, rfq.ID, rs.ID)
	if err != nil {
		t.Fatalf("DiffForSupplier failed: %v", err)
	}
	if diff.AnchorRevisionID == nil {
		t.Fatal("expected non-nil anchor after send")
	}
	byNum := diffByNumber(diff.Lines)
	if len(byNum) != 3 {
		t.Fatalf("expected 3 diff lines, got %d", len(byNum))
	}

	if got := byNum[1]; got.Classification != DiffChanged {
		t.Errorf("line 1 = %s, want CHANGED", got.Classification)
	} else if len(got.ChangedFields) != 1 || got.ChangedFields[0] != "requested_qty" {
		t.Errorf("line 1 changed_fields = %v, want [requested_qty]", got.ChangedFields)
	}
	if got := byNum[2]; got.Classification != DiffUnchanged {
		t.Errorf("line 2 = %s, want UNCHANGED", got.Classification)
	}
	if got := byNum[3]; got.Classification != DiffNew {
		t.Errorf("line 3 = %s, want NEW", got.Classification)
	}
}

func TestDiffDetectsPartAndFieldChanges(t *testing.T) {
	svcs, repos, db := setupServiceTest(t)
	rfq, rs := seedRFQFlow(t, svcs, repos, db)
	ctx := context.Background()

	if err := svcs.Structure.ConfirmStructure(ctx, rfq.ID); err != nil {
		t.Fatalf("ConfirmStructure failed: %v", err)
	}
	if _, err := svcs.Dispatch.Send(ctx, rfq.ID, &SendRequest{RFQSupplierIDs: []string{rs.ID}}, "test-user"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// 行1改零件解析，行2改UOM与OEM限制
	partB := "part-b"
	partD := "part-d"
	if _, err := svcs.Request.ReviseRequest(ctx, rfq.ClientRequestID, []RequestLineInput{
		{LineNumber: 1, ClientPartNumber: "CL-100", OriginalPartID: &partB, RequestedQty: 3},
		{LineNumber: 2, ClientPartNumber: "CL-200", OriginalPartID: &partD, RequestedQty: 10, UOM: "set", OEMOnly: true},
	}, "改版", "test-user"); err != nil {
		t.Fatalf("ReviseRequest failed: %v", err)
	}

	diff, err := svcs.Diff.DiffForSupplier(ctx, rfq.ID, rs.ID)
	if err != nil {
		t.Fatalf("DiffForSupplier failed: %v", err)
	}
	byNum := diffByNumber(diff.Lines)

	line1 := byNum[1]
	if line1.Classification != DiffChanged {
		t.Fatalf("line 1 = %s, want CHANGED", line1.Classification)
	}
	if !containsField(line1.ChangedFields, "original_part_id") {
		t.Errorf("line 1 changed_fields = %v, want original_part_id present", line1.ChangedFields)
	}

	line2 := byNum[2]
	if line2.Classification != DiffChanged {
		t.Fatalf("line 2 = %s, want CHANGED", line2.Classification)
	}
	if !containsField(line2.ChangedFields, "uom") || !containsField(line2.ChangedFields, "oem_only") {
		t.Errorf("line 2 changed_fields = %v, want uom and oem_only", line2.ChangedFields)
	}
}

func containsField(fields []string, want string) bool {
	for _, f := range fields {
		if f == want {
			return true
		}
	}
	return false
}
