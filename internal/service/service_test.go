package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"magasin/backend/internal/domain"
	"magasin/backend/internal/store"
	"magasin/backend/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.New())
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "caisse1", Role: domain.RoleCashier})
}

func mustCreateProduct(t *testing.T, svc *Service, name string, cost int64, price int64, qty int) domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:         name,
		PurchaseCost: decimal.NewFromInt(cost),
		SalePrice:    decimal.NewFromInt(price),
		Quantity:     qty,
	})
	if err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return product
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateProduct(cashierCtx(), domain.ProductCreateRequest{Name: "Riz", Quantity: 1})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for cashier, got %v", err)
	}
	_, err = svc.CreateProduct(context.Background(), domain.ProductCreateRequest{Name: "Riz", Quantity: 1})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden without actor, got %v", err)
	}
}

func TestCreateProductValidatesInput(t *testing.T) {
	svc := newTestService()

	cases := []domain.ProductCreateRequest{
		{Name: "   ", Quantity: 1},
		{Name: "Riz", Quantity: -1},
		{Name: "Riz", PurchaseCost: decimal.NewFromInt(-1)},
		{Name: "Riz", SalePrice: decimal.NewFromInt(-1)},
	}
	for i, req := range cases {
		if _, err := svc.CreateProduct(adminCtx(), req); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}

	created := mustCreateProduct(t, svc, "  Riz  ", 10, 20, 5)
	if created.Name != "Riz" {
		t.Fatalf("expected trimmed name, got %q", created.Name)
	}
	if _, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{Name: "Riz"}); !errors.Is(err, store.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestCashierRecordsSaleAtCurrentPrice(t *testing.T) {
	svc := newTestService()
	p := mustCreateProduct(t, svc, "P", 10, 20, 50)

	sale, err := svc.RecordSale(cashierCtx(), domain.MovementRequest{ProductID: p.ID, Quantity: 5})
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if !sale.TotalPrice.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected total 100, got %s", sale.TotalPrice)
	}
	stored, err := svc.GetProduct(cashierCtx(), p.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if stored.Quantity != 45 {
		t.Fatalf("expected 45 on hand, got %d", stored.Quantity)
	}

	if _, err := svc.UpdateSale(cashierCtx(), sale.ID, domain.MovementRequest{ProductID: p.ID, Quantity: 1}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected cashier edit to be forbidden, got %v", err)
	}
}

func TestRecordMovementValidation(t *testing.T) {
	svc := newTestService()
	p := mustCreateProduct(t, svc, "P", 1, 2, 3)

	if _, err := svc.RecordSale(cashierCtx(), domain.MovementRequest{ProductID: p.ID, Quantity: 0}); !errors.Is(err, store.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := svc.RecordLoss(cashierCtx(), domain.MovementRequest{ProductID: " ", Quantity: 1}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.RecordLoss(cashierCtx(), domain.MovementRequest{ProductID: p.ID, Quantity: 4}); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestLossMoveAndDelete(t *testing.T) {
	svc := newTestService()
	a := mustCreateProduct(t, svc, "A", 1, 2, 50)
	b := mustCreateProduct(t, svc, "B", 1, 2, 30)

	loss, err := svc.RecordLoss(cashierCtx(), domain.MovementRequest{ProductID: a.ID, Quantity: 5})
	if err != nil {
		t.Fatalf("record loss: %v", err)
	}
	if _, err := svc.UpdateLoss(adminCtx(), loss.ID, domain.MovementRequest{ProductID: b.ID, Quantity: 2}); err != nil {
		t.Fatalf("update loss: %v", err)
	}
	gotA, _ := svc.GetProduct(adminCtx(), a.ID)
	gotB, _ := svc.GetProduct(adminCtx(), b.ID)
	if gotA.Quantity != 50 || gotB.Quantity != 28 {
		t.Fatalf("expected A 50 and B 28, got %d and %d", gotA.Quantity, gotB.Quantity)
	}

	deleted, err := svc.DeleteLoss(adminCtx(), loss.ID)
	if err != nil || !deleted {
		t.Fatalf("delete loss: deleted=%v err=%v", deleted, err)
	}
	deleted, err = svc.DeleteLoss(adminCtx(), loss.ID)
	if err != nil || deleted {
		t.Fatalf("expected idempotent delete, deleted=%v err=%v", deleted, err)
	}
	gotB, _ = svc.GetProduct(adminCtx(), b.ID)
	if gotB.Quantity != 30 {
		t.Fatalf("expected B restored to 30, got %d", gotB.Quantity)
	}
}

func TestUpdateProductPatch(t *testing.T) {
	svc := newTestService()
	p := mustCreateProduct(t, svc, "P", 1, 2, 3)

	if _, err := svc.UpdateProduct(adminCtx(), p.ID, domain.ProductPatch{}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected empty patch rejected, got %v", err)
	}
	price := decimal.RequireFromString("2.555")
	qty := 9
	updated, err := svc.UpdateProduct(adminCtx(), p.ID, domain.ProductPatch{SalePrice: &price, Quantity: &qty})
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if !updated.SalePrice.Equal(decimal.RequireFromString("2.56")) || updated.Quantity != 9 {
		t.Fatalf("unexpected product after patch: %+v", updated)
	}
	if updated.Name != "P" {
		t.Fatalf("expected untouched name, got %q", updated.Name)
	}
}

func TestAnalysisScenario(t *testing.T) {
	svc := newTestService()
	p := mustCreateProduct(t, svc, "P", 10, 20, 50)
	if _, err := svc.RecordSale(cashierCtx(), domain.MovementRequest{ProductID: p.ID, Quantity: 5}); err != nil {
		t.Fatalf("record sale: %v", err)
	}

	today := time.Now().UTC().Format("2006-01-02")
	first, err := svc.Analysis(adminCtx(), today, today)
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}
	if !first.Revenue.Equal(decimal.NewFromInt(100)) || !first.COGS.Equal(decimal.NewFromInt(50)) || !first.GrossProfit.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected analysis %+v", first)
	}
	second, err := svc.Analysis(adminCtx(), today, today)
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}
	if !second.NetProfit.Equal(first.NetProfit) || second.SalesCount != first.SalesCount {
		t.Fatalf("expected repeatable analysis")
	}

	if _, err := svc.Analysis(adminCtx(), "2026-03-10", "2026-03-01"); !errors.Is(err, store.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if _, err := svc.Analysis(adminCtx(), "garbage", ""); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Analysis(cashierCtx(), "", ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestFeesFeedDepenses(t *testing.T) {
	svc := newTestService()
	p := mustCreateProduct(t, svc, "P", 1, 2, 100)

	if _, err := svc.CreateFee(adminCtx(), domain.FeeCreateRequest{ProductID: p.ID, Description: "transport", Amount: decimal.NewFromInt(10)}); err != nil {
		t.Fatalf("create fee: %v", err)
	}
	if _, err := svc.CreateFee(adminCtx(), domain.FeeCreateRequest{ProductID: p.ID, Amount: decimal.NewFromInt(1), Date: "garbage"}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad date, got %v", err)
	}
	if _, err := svc.CreateFee(adminCtx(), domain.FeeCreateRequest{ProductID: "prd-missing", Amount: decimal.NewFromInt(1)}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.RecordSale(cashierCtx(), domain.MovementRequest{ProductID: p.ID, Quantity: 10}); err != nil {
		t.Fatalf("record sale: %v", err)
	}

	result, err := svc.Analysis(adminCtx(), "", "")
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}
	// 10 of fees over 100 units of throughput, 10 units sold.
	if !result.Depenses.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected depenses 1, got %s", result.Depenses)
	}
	fees, err := svc.ListFees(adminCtx(), domain.ListQuery{ProductID: p.ID})
	if err != nil || len(fees) != 1 {
		t.Fatalf("expected one fee, got %d err=%v", len(fees), err)
	}
}

func TestListSalesRejectsInvertedRange(t *testing.T) {
	svc := newTestService()
	if _, err := svc.ListSales(cashierCtx(), domain.ListQuery{From: "2026-03-10", To: "2026-03-01"}); !errors.Is(err, store.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if _, err := svc.ListLosses(cashierCtx(), domain.ListQuery{From: "garbage"}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDashboardSnapshot(t *testing.T) {
	svc := newTestService()
	p := mustCreateProduct(t, svc, "P", 10, 20, 6)
	if _, err := svc.RecordSale(cashierCtx(), domain.MovementRequest{ProductID: p.ID, Quantity: 2}); err != nil {
		t.Fatalf("record sale: %v", err)
	}

	board, err := svc.Dashboard(cashierCtx())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if !board.TodayRevenue.Equal(decimal.NewFromInt(40)) || board.TodayUnitsSold != 2 {
		t.Fatalf("unexpected today totals %s / %d", board.TodayRevenue, board.TodayUnitsSold)
	}
	if board.TotalQuantity != 4 || len(board.LowStock) != 1 {
		t.Fatalf("expected 4 units flagged as low stock, got %d units %d flagged", board.TotalQuantity, len(board.LowStock))
	}
	if !board.InventoryValuation.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected valuation 40, got %s", board.InventoryValuation)
	}
}

func TestDeleteProductCascadesThroughService(t *testing.T) {
	svc := newTestService()
	p := mustCreateProduct(t, svc, "P", 1, 2, 10)
	if _, err := svc.RecordSale(cashierCtx(), domain.MovementRequest{ProductID: p.ID, Quantity: 1}); err != nil {
		t.Fatalf("record sale: %v", err)
	}

	if err := svc.DeleteProduct(cashierCtx(), p.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := svc.DeleteProduct(adminCtx(), p.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	sales, err := svc.ListSales(adminCtx(), domain.ListQuery{})
	if err != nil || len(sales) != 0 {
		t.Fatalf("expected sales removed, got %d err=%v", len(sales), err)
	}
	if _, err := svc.GetProduct(adminCtx(), p.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
