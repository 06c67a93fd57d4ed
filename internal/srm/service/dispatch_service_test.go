package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"github.com/bitfantasy/nimo-srm/internal/srm/repository"
)

func TestSendRejectsDraftRFQ(t *testing.T) {
	svcs, repos, db := setupServiceTest(t)
	rfq, rs := seedRFQFlow(t, svcs, repos, db)
	ctx := context.Background()

	_, err := svcs.Dispatch.Send(ctx, rfq.ID, &SendRequest{RFQSupplierIDs: []string{rs.ID}}, "test-user")
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict for draft rfq, got %v", err)
	}
}

func TestFirstSendIsFull(t *testing.T) {
	svcs, repos, db := setupServiceTest(t)
	rfq, rs := seedRFQFlow(t, svcs, repos, db)
	ctx := context.Background()

	if err := svcs.Structure.ConfirmStructure(ctx, rfq.ID); err != nil {
		t.Fatalf("ConfirmStructure failed: %v", err)
	}
	result, err := svcs.Dispatch.Send(ctx, rfq.ID, &SendRequest{RFQSupplierIDs: []string{rs.ID}, Note: "第一轮询价"}, "test-user")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(result.Succeeded) != 1 || len(result.Failed) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	entry := result.Succeeded[0]
	if entry.DispatchType != entity.DispatchTypeFull {
		t.Errorf("dispatch type = %s, want FULL", entry.DispatchType)
	}
	if entry.LineCount != 2 {
		t.Errorf("line count = %d, want 2", entry.LineCount)
	}

	// 发送记录不可变留痕：修订引用与载荷哈希
	dispatches, err := svcs.Dispatch.ListDispatches(ctx, rs.ID)
	if err != nil {
		t.Fatalf("ListDispatches failed: %v", err)
	}
	if len(dispatches) != 1 {
		t.Fatalf("expected 1 dispatch record, got %d", len(dispatches))
	}
	if dispatches[0].PayloadHash == "" || len(dispatches[0].PayloadHash) != 64 {
		t.Errorf("payload hash = %q, want 64 hex chars", dispatches[0].PayloadHash)
	}
	// 备注记录行数、差量锚点与调用方说明
	note := dispatches[0].Note
	if !strings.Contains(note, "候选行2") {
		t.Errorf("note missing candidate count: %q", note)
	}
	if !strings.Contains(note, "首次发送") {
		t.Errorf("note missing anchor marker: %q", note)
	}
	if !strings.Contains(note, "第一轮询价") {
		t.Errorf("note missing caller note: %q", note)
	}

	// 修订锚点前移
	state, err := repos.RFQSupplier.RevisionState(ctx, rs.ID)
	if err != nil {
		t.Fatalf("RevisionState failed: %v", err)
	}
	if state.LastSentRevisionID == nil || *state.LastSentRevisionID != dispatches[0].RFQRevisionID {
		t.Errorf("revision state not advanced: %+v", state)
	}

	// 行状态REQUEST并记录发送修订
	statusMap, err := svcs.Status.StatusMap(ctx, rs.ID)
	if err != nil {
		t.Fatalf("StatusMap failed: %v", err)
	}
	items, _ := repos.RFQ.ActiveItems(ctx, rfq.ID)
	for _, item := range items {
		row, ok := statusMap[item.ID]
		if !ok {
			t.Fatalf("missing status row for item %s", item.ID)
		}
		if row.Status != entity.LineStatusRequest {
			t.Errorf("item %d status = %s, want REQUEST", item.LineNumber, row.Status)
		}
		if row.LastRequestRFQRevisionID == nil {
			t.Errorf("item %d missing last request revision", item.LineNumber)
		}
	}

	// 供应商与RFQ状态推进
	gotRS, _ := repos.RFQSupplier.FindByID(ctx, rs.ID)
	if gotRS.Status != entity.RFQSupplierStatusSent {
		t.Errorf("supplier status = %s, want sent", gotRS.Status)
	}
	gotRFQ, _ := repos.RFQ.FindByID(ctx, rfq.ID)
	if gotRFQ.Status != entity.RFQStatusSent {
		t.Errorf("rfq status = %s, want sent", gotRFQ.Status)
	}
}

func TestResendWithoutChangesHasNothingToSend(t *testing.T) {
	svcs, repos, db := setupServiceTest(t)
	rfq, rs := seedRFQFlow(t, svcs, repos, db)
	ctx := context.Background()

	if err := svcs.Structure.ConfirmStructure(ctx, rfq.ID); err != nil {
		t.Fatalf("ConfirmStructure failed: %v", err)
	}
	if _, err := svcs.Dispatch.Send(ctx, rfq.ID, &SendRequest{RFQSupplierIDs: []string{rs.ID}}, "test-user"); err != nil {
		t.Fatalf("first Send failed: %v", err)
	}

	// 供应商对全部行报价
	if _, err := svcs.Response.ImportBatch(ctx, rs.ID, &ImportRequest{
		Entries: []ImportEntry{
			{LineNumber: 1, SupplierPartNumber: "SP-100", Price: "1200.50", Currency: "USD"},
			{LineNumber: 2, SupplierPartNumber: "SP-200", Price: "88.00", Currency: "USD"},
		},
	}, "test-user"); err != nil {
		t.Fatalf("ImportBatch failed: %v", err)
	}

	// 没有变化也没有待询行：发不出去
	result, err := svcs.Dispatch.Send(ctx, rfq.ID, &SendRequest{RFQSupplierIDs: []string{rs.ID}}, "test-user")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(result.Failed) != 1 || result.Failed[0].Error != "无可发送行" {
		t.Fatalf("expected 无可发送行, got %+v", result)
	}

	// 显式选择可以重新要价，但已报价行默认仍被剔除
	item, err := repos.RFQ.FindItemByLineNumber(ctx, rfq.ID, 1)
	if err != nil {
		t.Fatalf("FindItemByLineNumber failed: %v", err)
	}
	if err := svcs.RFQ.SetSelections(ctx, rs.ID, &SetSelectionsRequest{
		Selections: []SelectionInput{
			{RFQItemID: item.ID, OptionType: entity.SelectionOptionDemand},
		},
	}, "test-user"); err != nil {
		t.Fatalf("SetSelections failed: %v", err)
	}
	result, err = svcs.Dispatch.Send(ctx, rfq.ID, &SendRequest{RFQSupplierIDs: []string{rs.ID}}, "test-user")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(result.Failed) != 1 {
		t.Fatalf("expected priced exclusion to empty the selection, got %+v", result)
	}

	// include_priced解除已报价剔除
	result, err = svcs.Dispatch.Send(ctx, rfq.ID, &SendRequest{RFQSupplierIDs: []string{rs.ID}, IncludePriced: true}, "test-user")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(result.Succeeded) != 1 || result.Succeeded[0].LineCount != 1 {
		t.Fatalf("expected include_priced send of selected line, got %+v", result)
	}
}

func TestResendImmediatelyAfterSendIsEmpty(t *testing.T) {
	svcs, repos, db := setupServiceTest(t)
	rfq, rs := seedRFQFlow(t, svcs, repos, db)
	ctx := context.Background()

	if err := svcs.Structure.ConfirmStructure(ctx, rfq.ID); err != nil {
		t.Fatalf("ConfirmStructure failed: %v", err)
	}
	if _, err := svcs.Dispatch.Send(ctx, rfq.ID, &SendRequest{RFQSupplierIDs: []string{rs.ID}}, "test-user"); err != nil {
		t.Fatalf("first Send failed: %v", err)
	}

	// 修订未变时立即重发：差量为空，重试不产生第二条发送记录
	result, err := svcs.Dispatch.Send(ctx, rfq.ID, &SendRequest{RFQSupplierIDs: []string{rs.ID}}, "test-user")
	if err != nil {
		t.Fatalf("second Send failed: %v", err)
	}
	if len(result.Failed) != 1 || result.Failed[0].Error != "无可发送行" {
		t.Fatalf("expected empty delta failure, got %+v", result)
	}
	dispatches, _ := svcs.Dispatch.ListDispatches(ctx, rs.ID)
	if len(dispatches) != 1 {
		t.Fatalf("expected 1 dispatch record, got %d", len(dispatches))
	}
}

func TestDeltaSendAfterRevision(t *testing.T) {
	svcs, repos, db := setupServiceTest(t)
	rfq, rs := seedRFQFlow(t, svcs, repos, db)
	ctx := context.Background()

	if err := svcs.Structure.ConfirmStructure(ctx, rfq.ID); err != nil {
		t.Fatalf("ConfirmStructure failed: %v", err)
	}
	if _, err := svcs.Dispatch.Send(ctx, rfq.ID, &SendRequest{RFQSupplierIDs: []string{rs.ID}}, "test-user"); err != nil {
		t.Fatalf("first Send failed: %v", err)
	}

	// 行2已报价，行1尚未应答；随后修订需求：行1加量，行2不变
	if _, err := svcs.Response.ImportBatch(ctx, rs.ID, &ImportRequest{
		Entries: []ImportEntry{
			{LineNumber: 2, SupplierPartNumber: "SP-200", Price: "88.00", Currency: "USD"},
		},
	}, "test-user"); err != nil {
		t.Fatalf("ImportBatch failed: %v", err)
	}

	partA := "part-a"
	partD := "part-d"
	if _, err := svcs.Request.ReviseRequest(ctx, rfq.ClientRequestID, []RequestLineInput{
		{LineNumber: 1, ClientPartNumber: "CL-100", OriginalPartID: &partA, RequestedQty: 8},
		{LineNumber: 2, ClientPartNumber: "CL-200", OriginalPartID: &partD, RequestedQty: 10},
	}, "加量", "test-user"); err != nil {
		t.Fatalf("ReviseRequest failed: %v", err)
	}

	result, err := svcs.Dispatch.Send(ctx, rfq.ID, &SendRequest{RFQSupplierIDs: []string{rs.ID}}, "test-user")
	if err != nil {
		t.Fatalf("delta Send failed: %v", err)
	}
	if len(result.Succeeded) != 1 {
		t.Fatalf("expected delta send to succeed, got %+v", result)
	}
	entry := result.Succeeded[0]
	if entry.DispatchType != entity.DispatchTypeDelta {
		t.Errorf("dispatch type = %s, want DELTA", entry.DispatchType)
	}
	// 差量 = 变化 ∩ REQUEST：只有行1重询
	if entry.LineCount != 1 {
		t.Errorf("line count = %d, want 1", entry.LineCount)
	}

	dispatches, _ := svcs.Dispatch.ListDispatches(ctx, rs.ID)
	if len(dispatches) != 2 {
		t.Fatalf("expected 2 dispatch records, got %d", len(dispatches))
	}
	var deltaNote string
	for _, d := range dispatches {
		if d.DispatchType == entity.DispatchTypeDelta {
			deltaNote = d.Note
		}
	}
	if !strings.Contains(deltaNote, "锚点修订") {
		t.Errorf("delta note missing anchor: %q", deltaNote)
	}

	// 已应答的行即使内容再变也不重询
	if _, err := svcs.Request.ReviseRequest(ctx, rfq.ClientRequestID, []RequestLineInput{
		{LineNumber: 1, ClientPartNumber: "CL-100", OriginalPartID: &partA, RequestedQty: 8},
		{LineNumber: 2, ClientPartNumber: "CL-200", OriginalPartID: &partD, RequestedQty: 12},
	}, "行2加量", "test-user"); err != nil {
		t.Fatalf("second ReviseRequest failed: %v", err)
	}
	result, err = svcs.Dispatch.Send(ctx, rfq.ID, &SendRequest{RFQSupplierIDs: []string{rs.ID}}, "test-user")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(result.Failed) != 1 || result.Failed[0].Error != "无可发送行" {
		t.Fatalf("answered line must not be re-asked, got %+v", result)
	}
}

func TestSelectionOverridesDelta(t *testing.T) {
	svcs, repos, db := setupServiceTest(t)
	rfq, rs := seedRFQFlow(t, svcs, repos, db)
	ctx := context.Background()

	if err := svcs.Structure.ConfirmStructure(ctx, rfq.ID); err != nil {
		t.Fatalf("ConfirmStructure failed: %v", err)
	}

	item, err := repos.RFQ.FindItemByLineNumber(ctx, rfq.ID, 2)
	if err != nil {
		t.Fatalf("FindItemByLineNumber failed: %v", err)
	}
	if err := svcs.RFQ.SetSelections(ctx, rs.ID, &SetSelectionsRequest{
		Selections: []SelectionInput{
			{RFQItemID: item.ID, OptionType: entity.SelectionOptionDemand},
		},
	}, "test-user"); err != nil {
		t.Fatalf("SetSelections failed: %v", err)
	}

	result, err := svcs.Dispatch.Send(ctx, rfq.ID, &SendRequest{RFQSupplierIDs: []string{rs.ID}}, "test-user")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(result.Succeeded) != 1 {
		t.Fatalf("expected send to succeed, got %+v", result)
	}
	entry := result.Succeeded[0]
	if entry.LineCount != 1 {
		t.Errorf("line count = %d, want only selected line", entry.LineCount)
	}
	if entry.DispatchType != entity.DispatchTypeFull {
		t.Errorf("dispatch type = %s, want FULL on first send", entry.DispatchType)
	}
}

func TestPreviewHasNoSideEffects(t *testing.T) {
	svcs, repos, db := setupServiceTest(t)
	rfq, rs := seedRFQFlow(t, svcs, repos, db)
	ctx := context.Background()

	if err := svcs.Structure.ConfirmStructure(ctx, rfq.ID); err != nil {
		t.Fatalf("ConfirmStructure failed: %v", err)
	}
	entry, diffLines, err := svcs.Dispatch.Preview(ctx, rfq.ID, rs.ID, false)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if entry.LineCount != 2 || entry.DispatchType != entity.DispatchTypeFull {
		t.Errorf("preview entry = %+v", entry)
	}
	if len(diffLines) != 2 {
		t.Errorf("expected 2 diff lines, got %d", len(diffLines))
	}

	// 预览不留发送记录也不动锚点
	dispatches, _ := svcs.Dispatch.ListDispatches(ctx, rs.ID)
	if len(dispatches) != 0 {
		t.Errorf("preview must not create dispatch records, got %d", len(dispatches))
	}
	state, _ := repos.RFQSupplier.RevisionState(ctx, rs.ID)
	if state.LastSentRevisionID != nil {
		t.Errorf("preview must not advance revision state")
	}
}
