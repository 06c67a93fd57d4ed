package service

import (
	"context"
	"testing"

	"github.com/bitfantasy/nimo-srm/internal/srm/entity"
	"github.com/bitfantasy/nimo-srm/internal/srm/repository"
	"github.com/bitfantasy/nimo-srm/internal/srm/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupServiceTest(t *testing.T) (*Services, *repository.Repositories, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svcs := NewServices(repos, db, nil, nil, "", nil, zap.NewNop())
	return svcs, repos, db
}

// seedRFQFlow 建立标准场景：两行需求单放行成RFQ并邀请一个供应商
// 行1解析到有BOM的part-a（a含2×part-b与1×part-c），行2解析到无BOM的part-d
func seedRFQFlow(t *testing.T, svcs *Services, repos *repository.Repositories, db *gorm.DB) (*entity.RFQ, *entity.RFQSupplier) {
	t.Helper()
	ctx := context.Background()

	testutil.SeedModel(t, db, "model-001", "HP300")
	testutil.SeedPart(t, db, "part-a", "model-001", "CAT-A", "主轴总成")
	testutil.SeedPart(t, db, "part-b", "model-001", "CAT-B", "主轴")
	testutil.SeedPart(t, db, "part-c", "model-001", "CAT-C", "轴承")
	testutil.SeedPart(t, db, "part-d", "model-001", "CAT-D", "衬板")
	testutil.SeedSupplier(t, db, "sup-001", "SUP-0001", "供应商A")

	bomRepo := repos.BOM
	if _, err := bomRepo.InsertEdge(ctx, "part-a", "part-b", 2, "test-user"); err != nil {
		t.Fatalf("insert a->b failed: %v", err)
	}
	if _, err := bomRepo.InsertEdge(ctx, "part-a", "part-c", 1, "test-user"); err != nil {
		t.Fatalf("insert a->c failed: %v", err)
	}

	partA := "part-a"
	partD := "part-d"
	request, err := svcs.Request.CreateRequest(ctx, &CreateRequestRequest{
		ClientName: "矿业客户",
		Lines: []RequestLineInput{
			{LineNumber: 1, ClientPartNumber: "CL-100", OriginalPartID: &partA, RequestedQty: 3},
			{LineNumber: 2, ClientPartNumber: "CL-200", OriginalPartID: &partD, RequestedQty: 10},
		},
	}, "test-user")
	if err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}

	rfq, err := svcs.Request.ReleaseRequest(ctx, request.ID, "test-user")
	if err != nil {
		t.Fatalf("ReleaseRequest failed: %v", err)
	}

	rs, err := svcs.RFQ.InviteSupplier(ctx, rfq.ID, &InviteSupplierRequest{SupplierID: "sup-001"}, "test-user")
	if err != nil {
		t.Fatalf("InviteSupplier failed: %v", err)
	}
	return rfq, rs
}
