package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"magasin/backend/internal/analysis"
	"magasin/backend/internal/domain"
)

// AnalysisDataset reads everything the analysis needs from one snapshot so
// lifetime totals and in-period records agree.
func (s *Store) AnalysisDataset(ctx context.Context, period analysis.Period) (analysis.Dataset, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return analysis.Dataset{}, errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	ds := analysis.Dataset{
		Period:   period,
		Products: make(map[string]domain.Product),
		Sales:    make([]domain.Sale, 0),
		Losses:   make([]domain.Loss, 0),
		Lifetime: make(map[string]analysis.Lifetime),
	}

	products, err := listProducts(ctx, tx)
	if err != nil {
		return analysis.Dataset{}, err
	}
	for _, p := range products {
		ds.Products[p.ID] = p
	}

	window := domain.ListFilter{From: period.Start, To: period.End}
	sales, err := listMovements(ctx, tx, salesTable, window, false)
	if err != nil {
		return analysis.Dataset{}, err
	}
	for _, m := range sales {
		ds.Sales = append(ds.Sales, m.sale())
	}
	losses, err := listMovements(ctx, tx, lossesTable, window, false)
	if err != nil {
		return analysis.Dataset{}, err
	}
	for _, m := range losses {
		ds.Losses = append(ds.Losses, m.loss())
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT p.id,
			COALESCE((SELECT SUM(quantity) FROM sales WHERE product_id = p.id), 0),
			COALESCE((SELECT SUM(quantity) FROM losses WHERE product_id = p.id), 0),
			(SELECT SUM(amount) FROM ancillary_fees WHERE product_id = p.id)
		FROM products p
	`)
	if err != nil {
		return analysis.Dataset{}, errors.Wrap(err, "lifetime totals")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			productID string
			lifetime  analysis.Lifetime
			fees      decimal.NullDecimal
		)
		if err := rows.Scan(&productID, &lifetime.UnitsSold, &lifetime.UnitsLost, &fees); err != nil {
			return analysis.Dataset{}, errors.Wrap(err, "scan lifetime totals")
		}
		lifetime.Fees = zeroIfNull(fees)
		ds.Lifetime[productID] = lifetime
	}
	if err := rows.Err(); err != nil {
		return analysis.Dataset{}, errors.Wrap(err, "lifetime totals")
	}

	return ds, nil
}

// DashboardDataset loads the catalogue and the day's sales concurrently.
func (s *Store) DashboardDataset(ctx context.Context, day analysis.Period) (analysis.DashboardDataset, error) {
	ds := analysis.DashboardDataset{Day: day}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		products, err := listProducts(groupCtx, s.db)
		if err != nil {
			return err
		}
		ds.Products = products
		return nil
	})
	group.Go(func() error {
		found, err := listMovements(groupCtx, s.db, salesTable, domain.ListFilter{From: day.Start, To: day.End}, true)
		if err != nil {
			return err
		}
		sales := make([]domain.Sale, 0, len(found))
		for _, m := range found {
			sales = append(sales, m.sale())
		}
		ds.Sales = sales
		return nil
	})
	if err := group.Wait(); err != nil {
		return analysis.DashboardDataset{}, err
	}
	return ds, nil
}

func zeroIfNull(value decimal.NullDecimal) decimal.Decimal {
	if !value.Valid {
		return decimal.Zero
	}
	return value.Decimal
}
