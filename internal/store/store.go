package store

import (
	"context"
	"errors"
	"time"

	"magasin/backend/internal/analysis"
	"magasin/backend/internal/domain"
	"magasin/backend/internal/stock"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateName     = errors.New("product name already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientStock = stock.ErrInsufficientStock
	ErrInvalidQuantity   = stock.ErrInvalidQuantity
	ErrInvalidRange      = analysis.ErrInvalidRange
)

// Repository is the ledger. Every mutating method is one atomic unit of
// work: on error nothing it wrote is kept. Sale and loss mutations keep
// product quantities reconciled through the stock package.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch, at time.Time) (*domain.Product, error)
	// DeleteProduct removes the product with its sales, losses and fees.
	DeleteProduct(ctx context.Context, id string) error

	// CreateSale fills TotalPrice from the product's current sale price.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	UpdateSale(ctx context.Context, id string, productID string, quantity int, at time.Time) (*domain.Sale, error)
	// DeleteSale reports false when there was nothing to delete.
	DeleteSale(ctx context.Context, id string) (bool, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.ListFilter) ([]domain.Sale, error)

	CreateLoss(ctx context.Context, loss domain.Loss) (*domain.Loss, error)
	UpdateLoss(ctx context.Context, id string, productID string, quantity int, at time.Time) (*domain.Loss, error)
	DeleteLoss(ctx context.Context, id string) (bool, error)
	GetLoss(ctx context.Context, id string) (*domain.Loss, error)
	ListLosses(ctx context.Context, filter domain.ListFilter) ([]domain.Loss, error)

	CreateFee(ctx context.Context, fee domain.AncillaryFee) (*domain.AncillaryFee, error)
	ListFees(ctx context.Context, filter domain.ListFilter) ([]domain.AncillaryFee, error)
	DeleteFee(ctx context.Context, id string) (bool, error)

	AnalysisDataset(ctx context.Context, period analysis.Period) (analysis.Dataset, error)
	DashboardDataset(ctx context.Context, day analysis.Period) (analysis.DashboardDataset, error)
}
