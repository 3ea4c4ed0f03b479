package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gocarina/gocsv"

	"magasin/backend/internal/domain"
)

const dayLayout = "2006-01-02"

// analysisRow flattens every section of an analysis into one CSV table.
type analysisRow struct {
	Section   string `csv:"section"`
	Key       string `csv:"key"`
	ProductID string `csv:"product_id"`
	Units     string `csv:"units"`
	Value     string `csv:"value"`
}

type stockRow struct {
	ProductID    string `csv:"product_id"`
	Name         string `csv:"name"`
	Quantity     string `csv:"quantity"`
	PurchaseCost string `csv:"purchase_cost"`
	SalePrice    string `csv:"sale_price"`
	Valuation    string `csv:"valuation"`
}

func WriteAnalysisCSV(w io.Writer, a domain.Analysis) error {
	rows := []*analysisRow{
		{Section: "summary", Key: "start", Value: a.Start.Format(dayLayout)},
		{Section: "summary", Key: "end", Value: a.End.Format(dayLayout)},
		{Section: "summary", Key: "revenue", Value: a.Revenue.StringFixed(2)},
		{Section: "summary", Key: "cogs", Value: a.COGS.StringFixed(2)},
		{Section: "summary", Key: "gross_profit", Value: a.GrossProfit.StringFixed(2)},
		{Section: "summary", Key: "depenses", Value: a.Depenses.StringFixed(2)},
		{Section: "summary", Key: "net_profit", Value: a.NetProfit.StringFixed(2)},
		{Section: "summary", Key: "sales_count", Value: strconv.Itoa(a.SalesCount)},
		{Section: "summary", Key: "units_sold", Value: strconv.Itoa(a.UnitsSold)},
		{Section: "summary", Key: "units_lost", Value: strconv.Itoa(a.UnitsLost)},
		{Section: "summary", Key: "average_daily_revenue", Value: a.AverageDailyRevenue.StringFixed(2)},
	}
	for _, day := range a.DailyRevenue {
		rows = append(rows, &analysisRow{Section: "daily", Key: day.Day, Value: day.Revenue.StringFixed(2)})
	}
	for _, p := range a.TopProfitableProducts {
		rows = append(rows, &analysisRow{Section: "top_profit", Key: p.Name, ProductID: p.ProductID, Units: strconv.Itoa(p.UnitsSold), Value: p.Profit.StringFixed(2)})
	}
	for _, p := range a.TopLossProducts {
		rows = append(rows, &analysisRow{Section: "top_loss", Key: p.Name, ProductID: p.ProductID, Units: strconv.Itoa(p.UnitsLost)})
	}

	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("write analysis csv: %w", err)
	}
	return nil
}

func WriteStockCSV(w io.Writer, lines []domain.StockLine) error {
	rows := make([]*stockRow, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, &stockRow{
			ProductID:    line.ProductID,
			Name:         line.Name,
			Quantity:     strconv.Itoa(line.Quantity),
			PurchaseCost: line.PurchaseCost.StringFixed(2),
			SalePrice:    line.SalePrice.StringFixed(2),
			Valuation:    line.Valuation.StringFixed(2),
		})
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("write stock csv: %w", err)
	}
	return nil
}
