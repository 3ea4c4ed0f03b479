package report

import (
	"fmt"
	"html/template"
	"io"

	"github.com/shopspring/decimal"

	"magasin/backend/internal/domain"
)

// analysisHTMLTmpl renders a printable analysis page; the browser prints it to PDF.
// Product names are escaped by html/template.
var analysisHTMLTmpl = template.Must(template.New("analysis").Funcs(template.FuncMap{
	"day":   func(a domain.Analysis) string { return a.Start.Format(dayLayout) + " - " + a.End.Format(dayLayout) },
	"money": func(v decimal.Decimal) string { return v.StringFixed(2) },
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Analyse {{day .}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    td.num { text-align: right; }
    h2, h3 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Analyse {{day .}}</h2>
  <table>
    <tbody>
      <tr><th>Revenue</th><td class="num">{{money .Revenue}}</td></tr>
      <tr><th>COGS</th><td class="num">{{money .COGS}}</td></tr>
      <tr><th>Gross profit</th><td class="num">{{money .GrossProfit}}</td></tr>
      <tr><th>Depenses</th><td class="num">{{money .Depenses}}</td></tr>
      <tr><th>Net profit</th><td class="num">{{money .NetProfit}}</td></tr>
      <tr><th>Sales</th><td class="num">{{.SalesCount}}</td></tr>
      <tr><th>Units sold</th><td class="num">{{.UnitsSold}}</td></tr>
      <tr><th>Units lost</th><td class="num">{{.UnitsLost}}</td></tr>
      <tr><th>Average daily revenue</th><td class="num">{{money .AverageDailyRevenue}}</td></tr>
    </tbody>
  </table>

  <h3>Daily revenue</h3>
  <table>
    <thead><tr><th>Day</th><th>Revenue</th></tr></thead>
    <tbody>{{range .DailyRevenue}}<tr><td>{{.Day}}</td><td class="num">{{money .Revenue}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Top profitable products</h3>
  <table>
    <thead><tr><th>Product</th><th>Units sold</th><th>Revenue</th><th>Profit</th></tr></thead>
    <tbody>{{range .TopProfitableProducts}}<tr><td>{{.Name}}</td><td class="num">{{.UnitsSold}}</td><td class="num">{{money .Revenue}}</td><td class="num">{{money .Profit}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Top losses</h3>
  <table>
    <thead><tr><th>Product</th><th>Units lost</th></tr></thead>
    <tbody>{{range .TopLossProducts}}<tr><td>{{.Name}}</td><td class="num">{{.UnitsLost}}</td></tr>{{end}}</tbody>
  </table>
</body>
</html>
`))

func WriteAnalysisHTML(w io.Writer, a domain.Analysis) error {
	if err := analysisHTMLTmpl.Execute(w, a); err != nil {
		return fmt.Errorf("render analysis page: %w", err)
	}
	return nil
}
