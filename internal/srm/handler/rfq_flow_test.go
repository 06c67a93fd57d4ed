package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/bitfantasy/nimo-srm/internal/middleware"
	"github.com/bitfantasy/nimo-srm/internal/srm/repository"
	"github.com/bitfantasy/nimo-srm/internal/srm/service"
	"github.com/bitfantasy/nimo-srm/internal/srm/testutil"
	"go.uber.org/zap"
)

func setupFlowTest(t *testing.T) (*testutil.TestEnv, *repository.Repositories) {
	t.Helper()
	db := testutil.SetupTestDB(t)

	repos := repository.NewRepositories(db)
	svcs := service.NewServices(repos, db, nil, nil, "", nil, zap.NewNop())
	h := NewHandlers(svcs)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1/srm")
	buyer := middleware.RequireRole("srm_buyer")
	api.POST("/requests", buyer, h.Request.CreateRequest)
	api.GET("/requests/:id", h.Request.GetRequest)
	api.POST("/requests/:id/release", buyer, h.Request.ReleaseRequest)
	api.GET("/rfqs/:id", h.RFQ.GetRFQ)
	api.GET("/rfqs/:id/tree", h.RFQ.GetTree)
	api.POST("/rfqs/:id/confirm", buyer, h.RFQ.ConfirmStructure)
	api.POST("/rfqs/:id/rebuild", h.RFQ.RebuildAll)
	api.POST("/rfqs/:id/suppliers", h.RFQ.InviteSupplier)
	api.PUT("/rfq-suppliers/:id/line-statuses", h.RFQ.SetLineStatuses)
	api.GET("/rfq-suppliers/:id/line-statuses", h.RFQ.GetLineStatuses)
	api.POST("/rfqs/:id/send", buyer, h.Dispatch.Send)
	api.GET("/rfqs/:id/diff", h.Dispatch.GetDiff)

	return &testutil.TestEnv{DB: db, Router: router, T: t}, repos
}

func seedFlowData(t *testing.T, env *testutil.TestEnv, repos *repository.Repositories) {
	t.Helper()
	testutil.SeedModel(t, env.DB, "model-001", "HP300")
	testutil.SeedPart(t, env.DB, "part-a", "model-001", "CAT-A", "主轴总成")
	testutil.SeedPart(t, env.DB, "part-b", "model-001", "CAT-B", "主轴")
	testutil.SeedSupplier(t, env.DB, "sup-001", "SUP-0001", "供应商A")

	if _, err := repos.BOM.InsertEdge(context.Background(), "part-a", "part-b", 2, "test-user"); err != nil {
		t.Fatalf("Failed to seed BOM edge: %v", err)
	}
}

func TestRFQFlowOverHTTP(t *testing.T) {
	env, repos := setupFlowTest(t)
	seedFlowData(t, env, repos)
	token := testutil.DefaultTestToken()

	// 创建需求单
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/srm/requests", map[string]interface{}{
		"client_name": "矿业客户",
		"lines": []map[string]interface{}{
			{"line_number": 1, "client_part_number": "CL-100", "original_part_id": "part-a", "requested_qty": 3},
		},
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create request status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	requestID := resp["data"].(map[string]interface{})["id"].(string)

	// 放行成RFQ
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/srm/requests/"+requestID+"/release", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("release status = %d, body = %s", w.Code, w.Body.String())
	}
	resp = testutil.ParseResponse(w)
	rfqID := resp["data"].(map[string]interface{})["id"].(string)

	// 邀请供应商
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/srm/rfqs/"+rfqID+"/suppliers", map[string]interface{}{
		"supplier_id": "sup-001",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("invite status = %d, body = %s", w.Code, w.Body.String())
	}
	resp = testutil.ParseResponse(w)
	rsID := resp["data"].(map[string]interface{})["id"].(string)

	// 结构未确认时发送被拒
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/srm/rfqs/"+rfqID+"/send", map[string]interface{}{
		"rfq_supplier_ids": []string{rsID},
	}, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("draft send status = %d, want 409, body = %s", w.Code, w.Body.String())
	}

	// 重建并确认结构
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/srm/rfqs/"+rfqID+"/rebuild", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("rebuild status = %d, body = %s", w.Code, w.Body.String())
	}
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/srm/rfqs/"+rfqID+"/confirm", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, body = %s", w.Code, w.Body.String())
	}

	// 结构树master视图：行1带BOM子节点
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/srm/rfqs/"+rfqID+"/tree?view=master", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("tree status = %d, body = %s", w.Code, w.Body.String())
	}
	resp = testutil.ParseResponse(w)
	nodes := resp["data"].([]interface{})
	if len(nodes) != 1 {
		t.Fatalf("expected 1 root node, got %d", len(nodes))
	}

	// 差异：未发送过，全部NEW
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/srm/rfqs/"+rfqID+"/diff?rfq_supplier_id="+rsID, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("diff status = %d, body = %s", w.Code, w.Body.String())
	}
	resp = testutil.ParseResponse(w)
	diffData := resp["data"].(map[string]interface{})
	if diffData["anchor_rfq_revision_id"] != nil {
		t.Errorf("anchor = %v, want nil", diffData["anchor_rfq_revision_id"])
	}

	// 发送成功
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/srm/rfqs/"+rfqID+"/send", map[string]interface{}{
		"rfq_supplier_ids": []string{rsID},
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("send status = %d, body = %s", w.Code, w.Body.String())
	}
	resp = testutil.ParseResponse(w)
	sendData := resp["data"].(map[string]interface{})
	succeeded := sendData["succeeded"].([]interface{})
	if len(succeeded) != 1 {
		t.Fatalf("expected 1 succeeded entry, got %v", sendData)
	}
	entry := succeeded[0].(map[string]interface{})
	if entry["dispatch_type"] != "FULL" {
		t.Errorf("dispatch_type = %v, want FULL", entry["dispatch_type"])
	}
}

func TestAuthRequired(t *testing.T) {
	env, _ := setupFlowTest(t)

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/srm/rfqs/nonexistent", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", w.Code)
	}
}

func TestGetRFQNotFound(t *testing.T) {
	env, _ := setupFlowTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/srm/rfqs/nonexistent", nil, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404, body = %s", w.Code, w.Body.String())
	}
}

func TestBuyerRoleRequired(t *testing.T) {
	env, repos := setupFlowTest(t)
	seedFlowData(t, env, repos)
	viewer := testutil.GenerateTestToken("viewer-001", "观察员", "viewer@test.com", []string{"srm_viewer"}, nil)

	// 创建需求单与发送对非采购角色关闭
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/srm/requests", map[string]interface{}{
		"client_name": "矿业客户",
		"lines": []map[string]interface{}{
			{"line_number": 1, "client_part_number": "CL-100", "requested_qty": 1},
		},
	}, viewer)
	if w.Code != http.StatusForbidden {
		t.Fatalf("create request status = %d, want 403, body = %s", w.Code, w.Body.String())
	}
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/srm/rfqs/any/send", map[string]interface{}{
		"rfq_supplier_ids": []string{"any"},
	}, viewer)
	if w.Code != http.StatusForbidden {
		t.Fatalf("send status = %d, want 403, body = %s", w.Code, w.Body.String())
	}

	// 查询接口不受角色限制
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/srm/rfqs/nonexistent", nil, viewer)
	if w.Code != http.StatusNotFound {
		t.Fatalf("read status = %d, want 404, body = %s", w.Code, w.Body.String())
	}

	// 采购角色放行
	buyer := testutil.GenerateTestToken("buyer-001", "采购员", "buyer@test.com", []string{"srm_buyer"}, nil)
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/srm/requests", map[string]interface{}{
		"client_name": "矿业客户",
		"lines": []map[string]interface{}{
			{"line_number": 1, "client_part_number": "CL-100", "requested_qty": 1},
		},
	}, buyer)
	if w.Code != http.StatusCreated {
		t.Fatalf("buyer create status = %d, want 201, body = %s", w.Code, w.Body.String())
	}
}

func TestBulkLineStatusOverHTTP(t *testing.T) {
	env, repos := setupFlowTest(t)
	seedFlowData(t, env, repos)
	token := testutil.DefaultTestToken()
	ctx := context.Background()

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/srm/requests", map[string]interface{}{
		"client_name": "矿业客户",
		"lines": []map[string]interface{}{
			{"line_number": 1, "client_part_number": "CL-100", "original_part_id": "part-a", "requested_qty": 3},
		},
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create request status = %d, body = %s", w.Code, w.Body.String())
	}
	requestID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/srm/requests/"+requestID+"/release", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("release status = %d, body = %s", w.Code, w.Body.String())
	}
	rfqID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/srm/rfqs/"+rfqID+"/suppliers", map[string]interface{}{
		"supplier_id": "sup-001",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("invite status = %d, body = %s", w.Code, w.Body.String())
	}
	rsID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	items, err := repos.RFQ.ActiveItems(ctx, rfqID)
	if err != nil || len(items) != 1 {
		t.Fatalf("ActiveItems = %d items (%v)", len(items), err)
	}

	// 批量落位
	w = testutil.DoRequest(env.Router, "PUT", "/api/v1/srm/rfq-suppliers/"+rsID+"/line-statuses", map[string]interface{}{
		"items": []map[string]interface{}{
			{"rfq_item_id": items[0].ID, "status": "NONE"},
		},
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("bulk update status = %d, body = %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/srm/rfq-suppliers/"+rsID+"/line-statuses", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("get statuses status = %d, body = %s", w.Code, w.Body.String())
	}
	statusData := testutil.ParseResponse(w)["data"].(map[string]interface{})
	row := statusData[items[0].ID].(map[string]interface{})
	if row["status"] != "NONE" {
		t.Errorf("status = %v, want NONE", row["status"])
	}

	// ARCHIVED不可手工批量设置
	w = testutil.DoRequest(env.Router, "PUT", "/api/v1/srm/rfq-suppliers/"+rsID+"/line-statuses", map[string]interface{}{
		"items": []map[string]interface{}{
			{"rfq_item_id": items[0].ID, "status": "ARCHIVED"},
		},
	}, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("archived update status = %d, want 409, body = %s", w.Code, w.Body.String())
	}
}
