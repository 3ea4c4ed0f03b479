package analysis

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"magasin/backend/internal/domain"
)

func TestBuildDashboardTotalsAndRankings(t *testing.T) {
	today := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	yesterday := today.Add(-24 * time.Hour)

	products := []domain.Product{
		{ID: "p1", Name: "Riz", PurchaseCost: dec(t, "10"), SalePrice: dec(t, "20"), Quantity: 50},
		{ID: "p2", Name: "Huile", PurchaseCost: dec(t, "5"), SalePrice: dec(t, "8"), Quantity: 3},
		{ID: "p3", Name: "Sel", PurchaseCost: dec(t, "1"), SalePrice: dec(t, "2"), Quantity: 0},
	}
	sales := []domain.Sale{
		{ID: "s1", ProductID: "p1", Quantity: 2, TotalPrice: dec(t, "40"), Date: today},
		{ID: "s2", ProductID: "p2", Quantity: 4, TotalPrice: dec(t, "32"), Date: today},
		{ID: "s3", ProductID: "p1", Quantity: 9, TotalPrice: dec(t, "180"), Date: yesterday},
	}

	board := BuildDashboard(DashboardDataset{Day: Day(today), Products: products, Sales: sales})

	if board.Date != "2026-03-20" {
		t.Fatalf("unexpected date %q", board.Date)
	}
	if !board.TodayRevenue.Equal(dec(t, "72")) || board.TodayUnitsSold != 6 {
		t.Fatalf("expected 72 revenue over 6 units, got %s over %d", board.TodayRevenue, board.TodayUnitsSold)
	}
	if board.TotalQuantity != 53 {
		t.Fatalf("expected total quantity 53, got %d", board.TotalQuantity)
	}
	if !board.InventoryValuation.Equal(dec(t, "515")) {
		t.Fatalf("expected valuation 515, got %s", board.InventoryValuation)
	}
	if len(board.TopSellingToday) != 2 || board.TopSellingToday[0].ProductID != "p2" {
		t.Fatalf("expected Huile to lead today's sellers, got %+v", board.TopSellingToday)
	}
	if len(board.LowStock) != 2 || board.LowStock[0].ProductID != "p3" || board.LowStock[1].ProductID != "p2" {
		t.Fatalf("expected Sel then Huile as low stock, got %+v", board.LowStock)
	}
	if board.Stock[0].Name != "Huile" || board.Stock[2].Name != "Sel" {
		t.Fatalf("expected stock ordered by name, got %+v", board.Stock)
	}
}

func TestBuildDashboardCapsLowStock(t *testing.T) {
	products := make([]domain.Product, 0, 8)
	for i := 0; i < 8; i++ {
		products = append(products, domain.Product{
			ID:           string(rune('a' + i)),
			Name:         string(rune('A' + i)),
			PurchaseCost: decimal.NewFromInt(1),
			Quantity:     i % 4,
		})
	}
	board := BuildDashboard(DashboardDataset{Day: Day(time.Now()), Products: products})
	if len(board.LowStock) != TopN {
		t.Fatalf("expected %d low stock lines, got %d", TopN, len(board.LowStock))
	}
	if board.LowStock[0].Quantity != 0 || board.LowStock[TopN-1].Quantity != 2 {
		t.Fatalf("expected ascending quantities, got %+v", board.LowStock)
	}
	if len(board.TopSellingToday) != 0 || !board.TodayRevenue.IsZero() {
		t.Fatalf("expected no sales today")
	}
}

func TestStockLinesValuation(t *testing.T) {
	lines := StockLines([]domain.Product{
		{ID: "b", Name: "Beta", PurchaseCost: dec(t, "2.50"), Quantity: 4},
		{ID: "a", Name: "Alpha", PurchaseCost: dec(t, "1"), Quantity: 1},
	})
	if lines[0].ProductID != "a" {
		t.Fatalf("expected Alpha first, got %s", lines[0].Name)
	}
	if !lines[1].Valuation.Equal(dec(t, "10")) {
		t.Fatalf("expected valuation 10, got %s", lines[1].Valuation)
	}
}
