package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"magasin/backend/internal/domain"
	"magasin/backend/internal/stock"
	"magasin/backend/internal/store"
)

// movementTable describes one of the two stock-decreasing tables. Sales carry
// a frozen total price, losses do not.
type movementTable struct {
	name   string
	priced bool
}

var (
	salesTable  = movementTable{name: "sales", priced: true}
	lossesTable = movementTable{name: "losses", priced: false}
)

type movement struct {
	ID         string
	ProductID  string
	Quantity   int
	TotalPrice decimal.Decimal
	At         time.Time
}

func (m movement) sale() domain.Sale {
	return domain.Sale{ID: m.ID, ProductID: m.ProductID, Quantity: m.Quantity, TotalPrice: m.TotalPrice, Date: m.At}
}

func (m movement) loss() domain.Loss {
	return domain.Loss{ID: m.ID, ProductID: m.ProductID, Quantity: m.Quantity, Date: m.At}
}

func (t movementTable) columns() string {
	if t.priced {
		return `id, product_id, quantity, total_price, recorded_at`
	}
	return `id, product_id, quantity, recorded_at`
}

func (t movementTable) scan(row rowScanner) (movement, error) {
	var m movement
	var err error
	if t.priced {
		err = row.Scan(&m.ID, &m.ProductID, &m.Quantity, &m.TotalPrice, &m.At)
	} else {
		err = row.Scan(&m.ID, &m.ProductID, &m.Quantity, &m.At)
	}
	m.At = m.At.UTC()
	return m, err
}

func (s *Store) createMovement(ctx context.Context, table movementTable, m movement) (movement, error) {
	if m.Quantity < 1 {
		return movement{}, store.ErrInvalidQuantity
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return movement{}, errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	locked, err := lockProducts(ctx, tx, m.ProductID)
	if err != nil {
		return movement{}, err
	}
	product, ok := locked[m.ProductID]
	if !ok {
		return movement{}, store.ErrNotFound
	}
	left, err := stock.Deduct(product.Quantity, m.Quantity)
	if err != nil {
		return movement{}, err
	}

	m.At = m.At.UTC()
	if err := setQuantity(ctx, tx, product.ID, left, m.At); err != nil {
		return movement{}, err
	}
	if table.priced {
		m.TotalPrice = stock.SaleTotal(product.SalePrice, m.Quantity)
		_, err = tx.ExecContext(ctx, `INSERT INTO sales (`+table.columns()+`) VALUES ($1,$2,$3,$4,$5)`,
			m.ID, m.ProductID, m.Quantity, m.TotalPrice, m.At)
	} else {
		_, err = tx.ExecContext(ctx, `INSERT INTO losses (`+table.columns()+`) VALUES ($1,$2,$3,$4)`,
			m.ID, m.ProductID, m.Quantity, m.At)
	}
	if err != nil {
		return movement{}, errors.Wrapf(err, "insert %s", table.name)
	}

	if err := tx.Commit(); err != nil {
		return movement{}, errors.Wrap(err, "commit")
	}
	return m, nil
}

func (s *Store) updateMovement(ctx context.Context, table movementTable, id string, productID string, quantity int, at time.Time) (movement, error) {
	if quantity < 1 {
		return movement{}, store.ErrInvalidQuantity
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return movement{}, errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	current, locked, err := lockMovement(ctx, tx, table, id, productID)
	if err != nil {
		return movement{}, err
	}
	target, ok := locked[productID]
	if !ok {
		return movement{}, store.ErrNotFound
	}
	levels := make(map[string]int, len(locked))
	for lockedID, p := range locked {
		levels[lockedID] = p.Quantity
	}
	next, err := stock.Reassign(levels, stock.Move{
		FromProductID: current.ProductID,
		FromQty:       current.Quantity,
		ToProductID:   productID,
		ToQty:         quantity,
	})
	if err != nil {
		return movement{}, err
	}

	at = at.UTC()
	for changedID, level := range next {
		if _, ok := locked[changedID]; !ok {
			continue
		}
		if err := setQuantity(ctx, tx, changedID, level, at); err != nil {
			return movement{}, err
		}
	}

	updated := movement{ID: id, ProductID: productID, Quantity: quantity, At: at}
	if table.priced {
		updated.TotalPrice = stock.SaleTotal(target.SalePrice, quantity)
		_, err = tx.ExecContext(ctx, `
			UPDATE sales SET product_id = $2, quantity = $3, total_price = $4, recorded_at = $5
			WHERE id = $1
		`, id, productID, quantity, updated.TotalPrice, at)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE losses SET product_id = $2, quantity = $3, recorded_at = $4
			WHERE id = $1
		`, id, productID, quantity, at)
	}
	if err != nil {
		return movement{}, errors.Wrapf(err, "update %s", table.name)
	}

	if err := tx.Commit(); err != nil {
		return movement{}, errors.Wrap(err, "commit")
	}
	return updated, nil
}

func (s *Store) deleteMovement(ctx context.Context, table movementTable, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return false, errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	current, locked, err := lockMovement(ctx, tx, table, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if product, ok := locked[current.ProductID]; ok {
		restored := stock.Restore(product.Quantity, current.Quantity)
		if err := setQuantity(ctx, tx, product.ID, restored, time.Now()); err != nil {
			return false, err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table.name+` WHERE id = $1`, id); err != nil {
		return false, errors.Wrapf(err, "delete %s", table.name)
	}

	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "commit")
	}
	return true, nil
}

const lockMovementAttempts = 3

// lockMovement locks the products a movement touches before the movement
// row itself, the same order DeleteProduct takes. The row is read unlocked
// first to learn its product, then re-read FOR UPDATE; if a concurrent edit
// moved it to another product in between, the lookup is repeated.
func lockMovement(ctx context.Context, tx *sql.Tx, table movementTable, id string, extra ...string) (movement, map[string]domain.Product, error) {
	for attempt := 0; attempt < lockMovementAttempts; attempt++ {
		peek, err := table.scan(tx.QueryRowContext(ctx,
			`SELECT `+table.columns()+` FROM `+table.name+` WHERE id = $1`, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return movement{}, nil, store.ErrNotFound
			}
			return movement{}, nil, errors.Wrapf(err, "load %s", table.name)
		}

		locked, err := lockProducts(ctx, tx, append([]string{peek.ProductID}, extra...)...)
		if err != nil {
			return movement{}, nil, err
		}

		current, err := table.scan(tx.QueryRowContext(ctx,
			`SELECT `+table.columns()+` FROM `+table.name+` WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return movement{}, nil, store.ErrNotFound
			}
			return movement{}, nil, errors.Wrapf(err, "lock %s", table.name)
		}
		if current.ProductID == peek.ProductID {
			return current, locked, nil
		}
	}
	return movement{}, nil, errors.Errorf("%s %s kept changing product while locking", table.name, id)
}

func (s *Store) getMovement(ctx context.Context, table movementTable, id string) (movement, error) {
	m, err := table.scan(s.db.QueryRowContext(ctx,
		`SELECT `+table.columns()+` FROM `+table.name+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return movement{}, store.ErrNotFound
		}
		return movement{}, errors.Wrapf(err, "get %s", table.name)
	}
	return m, nil
}

func listMovements(ctx context.Context, q queryer, table movementTable, filter domain.ListFilter, newestFirst bool) ([]movement, error) {
	where, args := filterClause(filter)
	order := ` ORDER BY recorded_at ASC, id ASC`
	if newestFirst {
		order = ` ORDER BY recorded_at DESC, id DESC`
	}
	query := `SELECT ` + table.columns() + ` FROM ` + table.name + where + order + limitClause(filter.Limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", table.name)
	}
	defer rows.Close()

	found := make([]movement, 0, 64)
	for rows.Next() {
		m, err := table.scan(rows)
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", table.name)
		}
		found = append(found, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "list %s", table.name)
	}
	return found, nil
}
