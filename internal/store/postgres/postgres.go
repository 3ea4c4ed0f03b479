package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"

	"magasin/backend/internal/domain"
	"magasin/backend/internal/store"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the ledger tables when they are missing. It never
// alters existing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, statement := range strings.Split(schemaSQL, ";") {
		statement = strings.TrimSpace(statement)
		if statement == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return errors.Wrap(err, "bootstrap schema")
		}
	}
	return nil
}

const productColumns = `id, name, purchase_cost, sale_price, quantity, created_at, updated_at`

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.PurchaseCost, &p.SalePrice, &p.Quantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Product{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return listProducts(ctx, s.db)
}

func listProducts(ctx context.Context, q queryer) ([]domain.Product, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "get product")
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, product.ID, product.Name, product.PurchaseCost, product.SalePrice, product.Quantity, product.CreatedAt.UTC(), product.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateName
		}
		return nil, errors.Wrap(err, "insert product")
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch, at time.Time) (*domain.Product, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	locked, err := lockProducts(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	current, ok := locked[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	updated := patch.Apply(current)
	if updated.Name == "" || updated.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}
	updated.UpdatedAt = at.UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET name = $2, purchase_cost = $3, sale_price = $4, quantity = $5, updated_at = $6
		WHERE id = $1
	`, id, updated.Name, updated.PurchaseCost, updated.SalePrice, updated.Quantity, updated.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateName
		}
		return nil, errors.Wrap(err, "update product")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit")
	}
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	locked, err := lockProducts(ctx, tx, id)
	if err != nil {
		return err
	}
	if _, ok := locked[id]; !ok {
		return store.ErrNotFound
	}

	for _, statement := range []string{
		`DELETE FROM sales WHERE product_id = $1`,
		`DELETE FROM losses WHERE product_id = $1`,
		`DELETE FROM ancillary_fees WHERE product_id = $1`,
		`DELETE FROM products WHERE id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, statement, id); err != nil {
			return errors.Wrap(err, "delete product")
		}
	}

	return errors.Wrap(tx.Commit(), "commit")
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	created, err := s.createMovement(ctx, salesTable, movement{
		ID:        sale.ID,
		ProductID: sale.ProductID,
		Quantity:  sale.Quantity,
		At:        sale.Date,
	})
	if err != nil {
		return nil, err
	}
	out := created.sale()
	return &out, nil
}

func (s *Store) UpdateSale(ctx context.Context, id string, productID string, quantity int, at time.Time) (*domain.Sale, error) {
	updated, err := s.updateMovement(ctx, salesTable, id, productID, quantity, at)
	if err != nil {
		return nil, err
	}
	out := updated.sale()
	return &out, nil
}

func (s *Store) DeleteSale(ctx context.Context, id string) (bool, error) {
	return s.deleteMovement(ctx, salesTable, id)
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	m, err := s.getMovement(ctx, salesTable, id)
	if err != nil {
		return nil, err
	}
	out := m.sale()
	return &out, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.ListFilter) ([]domain.Sale, error) {
	found, err := listMovements(ctx, s.db, salesTable, filter, true)
	if err != nil {
		return nil, err
	}
	sales := make([]domain.Sale, 0, len(found))
	for _, m := range found {
		sales = append(sales, m.sale())
	}
	return sales, nil
}

func (s *Store) CreateLoss(ctx context.Context, loss domain.Loss) (*domain.Loss, error) {
	created, err := s.createMovement(ctx, lossesTable, movement{
		ID:        loss.ID,
		ProductID: loss.ProductID,
		Quantity:  loss.Quantity,
		At:        loss.Date,
	})
	if err != nil {
		return nil, err
	}
	out := created.loss()
	return &out, nil
}

func (s *Store) UpdateLoss(ctx context.Context, id string, productID string, quantity int, at time.Time) (*domain.Loss, error) {
	updated, err := s.updateMovement(ctx, lossesTable, id, productID, quantity, at)
	if err != nil {
		return nil, err
	}
	out := updated.loss()
	return &out, nil
}

func (s *Store) DeleteLoss(ctx context.Context, id string) (bool, error) {
	return s.deleteMovement(ctx, lossesTable, id)
}

func (s *Store) GetLoss(ctx context.Context, id string) (*domain.Loss, error) {
	m, err := s.getMovement(ctx, lossesTable, id)
	if err != nil {
		return nil, err
	}
	out := m.loss()
	return &out, nil
}

func (s *Store) ListLosses(ctx context.Context, filter domain.ListFilter) ([]domain.Loss, error) {
	found, err := listMovements(ctx, s.db, lossesTable, filter, true)
	if err != nil {
		return nil, err
	}
	losses := make([]domain.Loss, 0, len(found))
	for _, m := range found {
		losses = append(losses, m.loss())
	}
	return losses, nil
}

func (s *Store) CreateFee(ctx context.Context, fee domain.AncillaryFee) (*domain.AncillaryFee, error) {
	if !fee.Amount.IsPositive() {
		return nil, store.ErrInvalidInput
	}
	fee.Date = fee.Date.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ancillary_fees (id, product_id, description, amount, recorded_at)
		VALUES ($1,$2,$3,$4,$5)
	`, fee.ID, fee.ProductID, fee.Description, fee.Amount, fee.Date)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "insert fee")
	}
	return &fee, nil
}

func (s *Store) ListFees(ctx context.Context, filter domain.ListFilter) ([]domain.AncillaryFee, error) {
	where, args := filterClause(filter)
	query := `SELECT id, product_id, description, amount, recorded_at FROM ancillary_fees` + where +
		` ORDER BY recorded_at DESC, id DESC` + limitClause(filter.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list fees")
	}
	defer rows.Close()

	fees := make([]domain.AncillaryFee, 0, 32)
	for rows.Next() {
		var fee domain.AncillaryFee
		if err := rows.Scan(&fee.ID, &fee.ProductID, &fee.Description, &fee.Amount, &fee.Date); err != nil {
			return nil, errors.Wrap(err, "scan fee")
		}
		fee.Date = fee.Date.UTC()
		fees = append(fees, fee)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list fees")
	}
	return fees, nil
}

func (s *Store) DeleteFee(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ancillary_fees WHERE id = $1`, id)
	if err != nil {
		return false, errors.Wrap(err, "delete fee")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "delete fee")
	}
	return affected > 0, nil
}

// lockProducts takes row locks on ids in id order and returns the rows that
// exist. Callers must be inside a transaction.
func lockProducts(ctx context.Context, tx *sql.Tx, ids ...string) (map[string]domain.Product, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.Strings(unique)

	locked := make(map[string]domain.Product, len(unique))
	for _, id := range unique {
		p, err := scanProduct(tx.QueryRowContext(ctx, `
			SELECT `+productColumns+`
			FROM products
			WHERE id = $1
			FOR UPDATE
		`, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, errors.Wrap(err, "lock product")
		}
		locked[id] = p
	}
	return locked, nil
}

func setQuantity(ctx context.Context, tx *sql.Tx, id string, quantity int, at time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE products SET quantity = $2, updated_at = $3 WHERE id = $1`, id, quantity, at.UTC())
	return errors.Wrap(err, "set quantity")
}

func filterClause(filter domain.ListFilter) (string, []any) {
	conditions := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if filter.ProductID != "" {
		args = append(args, filter.ProductID)
		conditions = append(conditions, fmt.Sprintf("product_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From.UTC())
		conditions = append(conditions, fmt.Sprintf("recorded_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To.UTC())
		conditions = append(conditions, fmt.Sprintf("recorded_at <= $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func limitClause(limit int) string {
	if limit < 1 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
