// Package analysis turns ledger records into the profit and loss analysis and
// the dashboard snapshot. It only aggregates: callers load a Dataset from the
// store and pass it in.
package analysis

import (
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"magasin/backend/internal/domain"
)

const TopN = 5

// Lifetime is everything that ever happened to one product, used to spread
// its ancillary fees over the units that went through it.
type Lifetime struct {
	UnitsSold int
	UnitsLost int
	Fees      decimal.Decimal
}

// Dataset is the input of Compute. Sales and Losses hold only records dated
// inside Period. Products and Lifetime must cover every product those
// records reference, with Products holding current values.
type Dataset struct {
	Period   Period
	Products map[string]domain.Product
	Sales    []domain.Sale
	Losses   []domain.Loss
	Lifetime map[string]Lifetime
}

type productTotals struct {
	units   int
	revenue decimal.Decimal
	profit  decimal.Decimal
}

// Compute builds the analysis for ds. Cost of goods always uses the
// product's current purchase cost.
func Compute(ds Dataset) domain.Analysis {
	result := domain.Analysis{
		Start:                 ds.Period.Start,
		End:                   ds.Period.End,
		Revenue:               decimal.Zero,
		COGS:                  decimal.Zero,
		Depenses:              decimal.Zero,
		AverageDailyRevenue:   decimal.Zero,
		DailyRevenue:          make([]domain.DailyRevenue, 0),
		TopProfitableProducts: make([]domain.ProductProfit, 0, TopN),
		TopLossProducts:       make([]domain.ProductLoss, 0, TopN),
	}

	sold := make(map[string]*productTotals)
	daily := make(map[string]decimal.Decimal)
	for _, sale := range ds.Sales {
		if !ds.Period.Contains(sale.Date) {
			continue
		}
		product := ds.Products[sale.ProductID]
		cost := product.PurchaseCost.Mul(decimal.NewFromInt(int64(sale.Quantity)))

		result.Revenue = result.Revenue.Add(sale.TotalPrice)
		result.COGS = result.COGS.Add(cost)
		result.SalesCount++
		result.UnitsSold += sale.Quantity

		totals, ok := sold[sale.ProductID]
		if !ok {
			totals = &productTotals{revenue: decimal.Zero, profit: decimal.Zero}
			sold[sale.ProductID] = totals
		}
		totals.units += sale.Quantity
		totals.revenue = totals.revenue.Add(sale.TotalPrice)
		totals.profit = totals.profit.Add(sale.TotalPrice.Sub(cost))

		day := sale.Date.UTC().Format(dateLayout)
		daily[day] = daily[day].Add(sale.TotalPrice)
	}
	result.GrossProfit = result.Revenue.Sub(result.COGS)

	for productID, totals := range sold {
		result.Depenses = result.Depenses.Add(allocatedFees(ds.Products[productID], ds.Lifetime[productID], totals.units))
	}
	result.Depenses = result.Depenses.Round(2)
	result.NetProfit = result.GrossProfit.Sub(result.Depenses)

	result.DailyRevenue = dailySeries(daily)
	result.AverageDailyRevenue = averageRevenue(result.DailyRevenue)
	result.TopProfitableProducts = topProfitable(ds.Products, sold)

	lost := make(map[string]int)
	for _, loss := range ds.Losses {
		if !ds.Period.Contains(loss.Date) {
			continue
		}
		lost[loss.ProductID] += loss.Quantity
		result.UnitsLost += loss.Quantity
	}
	result.TopLossProducts = topLosses(ds.Products, lost)

	return result
}

// allocatedFees charges unitsSold with their share of the product's
// all-time fees. The share is spread over current stock plus every unit
// ever sold or lost.
func allocatedFees(product domain.Product, lifetime Lifetime, unitsSold int) decimal.Decimal {
	throughput := product.Quantity + lifetime.UnitsSold + lifetime.UnitsLost
	if throughput <= 0 || lifetime.Fees.IsZero() {
		return decimal.Zero
	}
	return lifetime.Fees.
		Mul(decimal.NewFromInt(int64(unitsSold))).
		Div(decimal.NewFromInt(int64(throughput)))
}

func dailySeries(daily map[string]decimal.Decimal) []domain.DailyRevenue {
	series := make([]domain.DailyRevenue, 0, len(daily))
	for day, revenue := range daily {
		series = append(series, domain.DailyRevenue{Day: day, Revenue: revenue})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Day < series[j].Day
	})
	return series
}

func averageRevenue(series []domain.DailyRevenue) decimal.Decimal {
	values := make(stats.Float64Data, 0, len(series))
	for _, point := range series {
		values = append(values, point.Revenue.InexactFloat64())
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(mean).Round(2)
}

func topProfitable(products map[string]domain.Product, sold map[string]*productTotals) []domain.ProductProfit {
	ranked := make([]domain.ProductProfit, 0, len(sold))
	for productID, totals := range sold {
		ranked = append(ranked, domain.ProductProfit{
			ProductID: productID,
			Name:      products[productID].Name,
			UnitsSold: totals.units,
			Revenue:   totals.revenue,
			Profit:    totals.profit,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if cmp := ranked[i].Profit.Cmp(ranked[j].Profit); cmp != 0 {
			return cmp > 0
		}
		return lessByName(ranked[i].Name, ranked[i].ProductID, ranked[j].Name, ranked[j].ProductID)
	})
	if len(ranked) > TopN {
		ranked = ranked[:TopN]
	}
	return ranked
}

func topLosses(products map[string]domain.Product, lost map[string]int) []domain.ProductLoss {
	ranked := make([]domain.ProductLoss, 0, len(lost))
	for productID, units := range lost {
		ranked = append(ranked, domain.ProductLoss{
			ProductID: productID,
			Name:      products[productID].Name,
			UnitsLost: units,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].UnitsLost != ranked[j].UnitsLost {
			return ranked[i].UnitsLost > ranked[j].UnitsLost
		}
		return lessByName(ranked[i].Name, ranked[i].ProductID, ranked[j].Name, ranked[j].ProductID)
	})
	if len(ranked) > TopN {
		ranked = ranked[:TopN]
	}
	return ranked
}

func lessByName(nameA string, idA string, nameB string, idB string) bool {
	if nameA != nameB {
		return nameA < nameB
	}
	return idA < idB
}
