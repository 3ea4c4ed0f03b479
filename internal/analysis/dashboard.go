package analysis

import (
	"sort"

	"github.com/shopspring/decimal"

	"magasin/backend/internal/domain"
)

// LowStockThreshold is the quantity under which a product is flagged.
const LowStockThreshold = 5

// DashboardDataset is the input of BuildDashboard: every product and the
// sales dated inside Day.
type DashboardDataset struct {
	Day      Period
	Products []domain.Product
	Sales    []domain.Sale
}

func BuildDashboard(ds DashboardDataset) domain.Dashboard {
	board := domain.Dashboard{
		Date:               ds.Day.Start.Format(dateLayout),
		TodayRevenue:       decimal.Zero,
		InventoryValuation: decimal.Zero,
		TopSellingToday:    make([]domain.ProductUnits, 0, TopN),
		LowStock:           make([]domain.StockLine, 0, TopN),
		Stock:              make([]domain.StockLine, 0, len(ds.Products)),
	}

	names := make(map[string]string, len(ds.Products))
	for _, product := range ds.Products {
		names[product.ID] = product.Name
		line := stockLine(product)
		board.Stock = append(board.Stock, line)
		board.TotalQuantity += product.Quantity
		board.InventoryValuation = board.InventoryValuation.Add(line.Valuation)
	}
	sort.Slice(board.Stock, func(i, j int) bool {
		return lessByName(board.Stock[i].Name, board.Stock[i].ProductID, board.Stock[j].Name, board.Stock[j].ProductID)
	})

	units := make(map[string]int)
	for _, sale := range ds.Sales {
		if !ds.Day.Contains(sale.Date) {
			continue
		}
		board.TodayRevenue = board.TodayRevenue.Add(sale.TotalPrice)
		board.TodayUnitsSold += sale.Quantity
		units[sale.ProductID] += sale.Quantity
	}
	for productID, sold := range units {
		board.TopSellingToday = append(board.TopSellingToday, domain.ProductUnits{
			ProductID: productID,
			Name:      names[productID],
			Units:     sold,
		})
	}
	sort.Slice(board.TopSellingToday, func(i, j int) bool {
		a, b := board.TopSellingToday[i], board.TopSellingToday[j]
		if a.Units != b.Units {
			return a.Units > b.Units
		}
		return lessByName(a.Name, a.ProductID, b.Name, b.ProductID)
	})
	if len(board.TopSellingToday) > TopN {
		board.TopSellingToday = board.TopSellingToday[:TopN]
	}

	for _, line := range board.Stock {
		if line.Quantity < LowStockThreshold {
			board.LowStock = append(board.LowStock, line)
		}
	}
	sort.SliceStable(board.LowStock, func(i, j int) bool {
		return board.LowStock[i].Quantity < board.LowStock[j].Quantity
	})
	if len(board.LowStock) > TopN {
		board.LowStock = board.LowStock[:TopN]
	}

	return board
}

func stockLine(product domain.Product) domain.StockLine {
	return domain.StockLine{
		ProductID:    product.ID,
		Name:         product.Name,
		Quantity:     product.Quantity,
		PurchaseCost: product.PurchaseCost,
		SalePrice:    product.SalePrice,
		Valuation:    product.PurchaseCost.Mul(decimal.NewFromInt(int64(product.Quantity))),
	}
}

// StockLines lists products as valued stock lines ordered by name.
func StockLines(products []domain.Product) []domain.StockLine {
	lines := make([]domain.StockLine, 0, len(products))
	for _, product := range products {
		lines = append(lines, stockLine(product))
	}
	sort.Slice(lines, func(i, j int) bool {
		return lessByName(lines[i].Name, lines[i].ProductID, lines[j].Name, lines[j].ProductID)
	})
	return lines
}
