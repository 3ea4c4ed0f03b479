package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"magasin/backend/internal/analysis"
	"magasin/backend/internal/domain"
	"magasin/backend/internal/stock"
	"magasin/backend/internal/store"
	"magasin/backend/internal/xid"
)

type Store struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	sales    map[string]domain.Sale
	losses   map[string]domain.Loss
	fees     map[string]domain.AncillaryFee
}

func New() *Store {
	return &Store{
		products: make(map[string]domain.Product),
		sales:    make(map[string]domain.Sale),
		losses:   make(map[string]domain.Loss),
		fees:     make(map[string]domain.AncillaryFee),
	}
}

// NewSeeded returns a store holding a small demo catalogue for local runs
// without a database.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	for _, seed := range []struct {
		name     string
		cost     string
		price    string
		quantity int
	}{
		{"Riz 5kg", "6.40", "8.90", 40},
		{"Huile tournesol 1L", "1.85", "2.60", 60},
		{"Sucre 1kg", "0.95", "1.40", 80},
		{"Café moulu 250g", "2.30", "3.75", 25},
		{"Lait UHT 1L", "0.70", "1.05", 4},
		{"Savon de Marseille", "1.10", "2.20", 12},
	} {
		id := xid.New(xid.ProductPrefix)
		s.products[id] = domain.Product{
			ID:           id,
			Name:         seed.name,
			PurchaseCost: decimal.RequireFromString(seed.cost),
			SalePrice:    decimal.RequireFromString(seed.price),
			Quantity:     seed.quantity,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Name == b.Name {
			return strings.Compare(a.ID, b.ID)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTaken(product.Name, "") {
		return nil, store.ErrDuplicateName
	}
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, id string, patch domain.ProductPatch, at time.Time) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	updated := patch.Apply(current)
	if updated.Name == "" || updated.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}
	if updated.Name != current.Name && s.nameTaken(updated.Name, id) {
		return nil, store.ErrDuplicateName
	}
	updated.UpdatedAt = at.UTC()
	s.products[id] = updated
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	for saleID, sale := range s.sales {
		if sale.ProductID == id {
			delete(s.sales, saleID)
		}
	}
	for lossID, loss := range s.losses {
		if loss.ProductID == id {
			delete(s.losses, lossID)
		}
	}
	for feeID, fee := range s.fees {
		if fee.ProductID == id {
			delete(s.fees, feeID)
		}
	}
	delete(s.products, id)
	return nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, err := s.deduct(sale.ProductID, sale.Quantity)
	if err != nil {
		return nil, err
	}
	sale.TotalPrice = stock.SaleTotal(product.SalePrice, sale.Quantity)
	sale.Date = sale.Date.UTC()

	s.products[product.ID] = product
	s.sales[sale.ID] = sale
	created := sale
	return &created, nil
}

func (s *Store) UpdateSale(_ context.Context, id string, productID string, quantity int, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	levels, err := s.reassign(stock.Move{
		FromProductID: sale.ProductID,
		FromQty:       sale.Quantity,
		ToProductID:   productID,
		ToQty:         quantity,
	})
	if err != nil {
		return nil, err
	}

	sale.ProductID = productID
	sale.Quantity = quantity
	sale.TotalPrice = stock.SaleTotal(s.products[productID].SalePrice, quantity)
	sale.Date = at.UTC()

	s.commitLevels(levels, at)
	s.sales[id] = sale
	updated := sale
	return &updated, nil
}

func (s *Store) DeleteSale(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[id]
	if !ok {
		return false, nil
	}
	s.restore(sale.ProductID, sale.Quantity)
	delete(s.sales, id)
	return true, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sale, nil
}

func (s *Store) ListSales(_ context.Context, filter domain.ListFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0)
	for _, sale := range s.sales {
		if filter.Match(sale.ProductID, sale.Date) {
			result = append(result, sale)
		}
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		return newestFirst(a.Date, a.ID, b.Date, b.ID)
	})
	return limit(result, filter.Limit), nil
}

func (s *Store) CreateLoss(_ context.Context, loss domain.Loss) (*domain.Loss, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, err := s.deduct(loss.ProductID, loss.Quantity)
	if err != nil {
		return nil, err
	}
	loss.Date = loss.Date.UTC()

	s.products[product.ID] = product
	s.losses[loss.ID] = loss
	created := loss
	return &created, nil
}

func (s *Store) UpdateLoss(_ context.Context, id string, productID string, quantity int, at time.Time) (*domain.Loss, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loss, ok := s.losses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	levels, err := s.reassign(stock.Move{
		FromProductID: loss.ProductID,
		FromQty:       loss.Quantity,
		ToProductID:   productID,
		ToQty:         quantity,
	})
	if err != nil {
		return nil, err
	}

	loss.ProductID = productID
	loss.Quantity = quantity
	loss.Date = at.UTC()

	s.commitLevels(levels, at)
	s.losses[id] = loss
	updated := loss
	return &updated, nil
}

func (s *Store) DeleteLoss(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loss, ok := s.losses[id]
	if !ok {
		return false, nil
	}
	s.restore(loss.ProductID, loss.Quantity)
	delete(s.losses, id)
	return true, nil
}

func (s *Store) GetLoss(_ context.Context, id string) (*domain.Loss, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loss, ok := s.losses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &loss, nil
}

func (s *Store) ListLosses(_ context.Context, filter domain.ListFilter) ([]domain.Loss, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Loss, 0)
	for _, loss := range s.losses {
		if filter.Match(loss.ProductID, loss.Date) {
			result = append(result, loss)
		}
	}
	slices.SortFunc(result, func(a, b domain.Loss) int {
		return newestFirst(a.Date, a.ID, b.Date, b.ID)
	})
	return limit(result, filter.Limit), nil
}

func (s *Store) CreateFee(_ context.Context, fee domain.AncillaryFee) (*domain.AncillaryFee, error) {
	if !fee.Amount.IsPositive() {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[fee.ProductID]; !ok {
		return nil, store.ErrNotFound
	}
	fee.Date = fee.Date.UTC()
	s.fees[fee.ID] = fee
	created := fee
	return &created, nil
}

func (s *Store) ListFees(_ context.Context, filter domain.ListFilter) ([]domain.AncillaryFee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AncillaryFee, 0)
	for _, fee := range s.fees {
		if filter.Match(fee.ProductID, fee.Date) {
			result = append(result, fee)
		}
	}
	slices.SortFunc(result, func(a, b domain.AncillaryFee) int {
		return newestFirst(a.Date, a.ID, b.Date, b.ID)
	})
	return limit(result, filter.Limit), nil
}

func (s *Store) DeleteFee(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.fees[id]; !ok {
		return false, nil
	}
	delete(s.fees, id)
	return true, nil
}

func (s *Store) AnalysisDataset(_ context.Context, period analysis.Period) (analysis.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds := analysis.Dataset{
		Period:   period,
		Products: make(map[string]domain.Product, len(s.products)),
		Sales:    make([]domain.Sale, 0),
		Losses:   make([]domain.Loss, 0),
		Lifetime: make(map[string]analysis.Lifetime, len(s.products)),
	}
	for id, product := range s.products {
		ds.Products[id] = product
	}

	lifetime := func(productID string) analysis.Lifetime {
		lt, ok := ds.Lifetime[productID]
		if !ok {
			lt.Fees = decimal.Zero
		}
		return lt
	}
	for _, sale := range s.sales {
		lt := lifetime(sale.ProductID)
		lt.UnitsSold += sale.Quantity
		ds.Lifetime[sale.ProductID] = lt
		if period.Contains(sale.Date) {
			ds.Sales = append(ds.Sales, sale)
		}
	}
	for _, loss := range s.losses {
		lt := lifetime(loss.ProductID)
		lt.UnitsLost += loss.Quantity
		ds.Lifetime[loss.ProductID] = lt
		if period.Contains(loss.Date) {
			ds.Losses = append(ds.Losses, loss)
		}
	}
	for _, fee := range s.fees {
		lt := lifetime(fee.ProductID)
		lt.Fees = lt.Fees.Add(fee.Amount)
		ds.Lifetime[fee.ProductID] = lt
	}

	slices.SortFunc(ds.Sales, func(a, b domain.Sale) int {
		return oldestFirst(a.Date, a.ID, b.Date, b.ID)
	})
	slices.SortFunc(ds.Losses, func(a, b domain.Loss) int {
		return oldestFirst(a.Date, a.ID, b.Date, b.ID)
	})
	return ds, nil
}

func (s *Store) DashboardDataset(ctx context.Context, day analysis.Period) (analysis.DashboardDataset, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return analysis.DashboardDataset{}, err
	}
	sales, err := s.ListSales(ctx, domain.ListFilter{From: day.Start, To: day.End})
	if err != nil {
		return analysis.DashboardDataset{}, err
	}
	return analysis.DashboardDataset{Day: day, Products: products, Sales: sales}, nil
}

// deduct returns productID with qty units taken off, without storing it.
// Callers hold the write lock.
func (s *Store) deduct(productID string, qty int) (domain.Product, error) {
	if qty < 1 {
		return domain.Product{}, store.ErrInvalidQuantity
	}
	product, ok := s.products[productID]
	if !ok {
		return domain.Product{}, store.ErrNotFound
	}
	left, err := stock.Deduct(product.Quantity, qty)
	if err != nil {
		return domain.Product{}, err
	}
	product.Quantity = left
	product.UpdatedAt = time.Now().UTC()
	return product, nil
}

func (s *Store) reassign(move stock.Move) (map[string]int, error) {
	if move.ToQty < 1 {
		return nil, store.ErrInvalidQuantity
	}
	target, ok := s.products[move.ToProductID]
	if !ok {
		return nil, store.ErrNotFound
	}
	levels := map[string]int{move.ToProductID: target.Quantity}
	if source, ok := s.products[move.FromProductID]; ok {
		levels[move.FromProductID] = source.Quantity
	}
	next, err := stock.Reassign(levels, move)
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Store) commitLevels(levels map[string]int, at time.Time) {
	for productID, quantity := range levels {
		product, ok := s.products[productID]
		if !ok {
			continue
		}
		product.Quantity = quantity
		product.UpdatedAt = at.UTC()
		s.products[productID] = product
	}
}

func (s *Store) restore(productID string, qty int) {
	product, ok := s.products[productID]
	if !ok {
		return
	}
	product.Quantity = stock.Restore(product.Quantity, qty)
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
}

func (s *Store) nameTaken(name string, exceptID string) bool {
	for id, p := range s.products {
		if id != exceptID && p.Name == name {
			return true
		}
	}
	return false
}

func newestFirst(atA time.Time, idA string, atB time.Time, idB string) int {
	return -oldestFirst(atA, idA, atB, idB)
}

func oldestFirst(atA time.Time, idA string, atB time.Time, idB string) int {
	if c := atA.Compare(atB); c != 0 {
		return c
	}
	return strings.Compare(idA, idB)
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
