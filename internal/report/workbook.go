// Package report renders analysis and stock snapshots as downloadable files.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/360EntSecGroup-Skylar/excelize"

	"magasin/backend/internal/domain"
)

const (
	SheetSummary   = "Summary"
	SheetDaily     = "Daily"
	SheetTopProfit = "TopProfit"
	SheetTopLoss   = "TopLoss"
	SheetStock     = "Stock"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeHTML = "text/html; charset=utf-8"
)

// sheetWriter fills one sheet row by row, starting at row 1.
type sheetWriter struct {
	file  *excelize.File
	sheet string
	row   int
}

func (s *sheetWriter) append(values ...any) {
	s.row++
	for i, value := range values {
		s.file.SetCellValue(s.sheet, cellName(i, s.row), value)
	}
}

func cellName(col int, row int) string {
	name := ""
	for col >= 0 {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
	}
	return name + strconv.Itoa(row)
}

// WriteAnalysisXLSX writes the analysis workbook: a summary sheet followed by
// the daily revenue series and both rankings.
func WriteAnalysisXLSX(w io.Writer, a domain.Analysis) error {
	file := excelize.NewFile()
	file.SetSheetName("Sheet1", SheetSummary)

	summary := &sheetWriter{file: file, sheet: SheetSummary}
	summary.append("Metric", "Value")
	summary.append("Start", a.Start.Format(dayLayout))
	summary.append("End", a.End.Format(dayLayout))
	summary.append("Revenue", a.Revenue.StringFixed(2))
	summary.append("COGS", a.COGS.StringFixed(2))
	summary.append("Gross profit", a.GrossProfit.StringFixed(2))
	summary.append("Depenses", a.Depenses.StringFixed(2))
	summary.append("Net profit", a.NetProfit.StringFixed(2))
	summary.append("Sales", a.SalesCount)
	summary.append("Units sold", a.UnitsSold)
	summary.append("Units lost", a.UnitsLost)
	summary.append("Average daily revenue", a.AverageDailyRevenue.StringFixed(2))

	file.NewSheet(SheetDaily)
	daily := &sheetWriter{file: file, sheet: SheetDaily}
	daily.append("Day", "Revenue")
	for _, day := range a.DailyRevenue {
		daily.append(day.Day, day.Revenue.StringFixed(2))
	}

	file.NewSheet(SheetTopProfit)
	profit := &sheetWriter{file: file, sheet: SheetTopProfit}
	profit.append("Product ID", "Name", "Units sold", "Revenue", "Profit")
	for _, p := range a.TopProfitableProducts {
		profit.append(p.ProductID, p.Name, p.UnitsSold, p.Revenue.StringFixed(2), p.Profit.StringFixed(2))
	}

	file.NewSheet(SheetTopLoss)
	loss := &sheetWriter{file: file, sheet: SheetTopLoss}
	loss.append("Product ID", "Name", "Units lost")
	for _, p := range a.TopLossProducts {
		loss.append(p.ProductID, p.Name, p.UnitsLost)
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write analysis workbook: %w", err)
	}
	return nil
}

// WriteStockXLSX writes the stock listing as a single-sheet workbook.
func WriteStockXLSX(w io.Writer, lines []domain.StockLine) error {
	file := excelize.NewFile()
	file.SetSheetName("Sheet1", SheetStock)

	sheet := &sheetWriter{file: file, sheet: SheetStock}
	sheet.append("Product ID", "Name", "Quantity", "Purchase cost", "Sale price", "Valuation")
	for _, line := range lines {
		sheet.append(line.ProductID, line.Name, line.Quantity, line.PurchaseCost.StringFixed(2), line.SalePrice.StringFixed(2), line.Valuation.StringFixed(2))
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write stock workbook: %w", err)
	}
	return nil
}
