package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"magasin/backend/internal/analysis"
	"magasin/backend/internal/domain"
	"magasin/backend/internal/store"
	"magasin/backend/internal/xid"
)

var ErrForbidden = errors.New("admin role required")

const (
	defaultListLimit = 200
	maxListLimit     = 1000
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo store.Repository
	now  func() time.Time
}

func New(repo store.Repository) *Service {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.PurchaseCost.IsNegative() || req.SalePrice.IsNegative() || req.Quantity < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	now := s.now()
	created, err := s.repo.CreateProduct(ctx, domain.Product{
		ID:           xid.New(xid.ProductPrefix),
		Name:         req.Name,
		PurchaseCost: req.PurchaseCost.Round(2),
		SalePrice:    req.SalePrice.Round(2),
		Quantity:     req.Quantity,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.audit(ctx, "product_create", created.ID,
		zap.String("name", created.Name),
		zap.Int("quantity", created.Quantity))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if patch.Empty() {
		return domain.Product{}, store.ErrInvalidInput
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		patch.Name = &name
	}
	for _, amount := range []*decimal.Decimal{patch.PurchaseCost, patch.SalePrice} {
		if amount == nil {
			continue
		}
		if amount.IsNegative() {
			return domain.Product{}, store.ErrInvalidInput
		}
		*amount = amount.Round(2)
	}
	if patch.Quantity != nil && *patch.Quantity < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	updated, err := s.repo.UpdateProduct(ctx, strings.TrimSpace(id), patch, s.now())
	if err != nil {
		return domain.Product{}, err
	}

	s.audit(ctx, "product_update", updated.ID, zap.Int("quantity", updated.Quantity))
	return *updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, "product_delete", id)
	return nil
}

func (s *Service) RecordSale(ctx context.Context, req domain.MovementRequest) (domain.Sale, error) {
	productID, err := normalizeMovement(req)
	if err != nil {
		return domain.Sale{}, err
	}

	created, err := s.repo.CreateSale(ctx, domain.Sale{
		ID:        xid.New(xid.SalePrefix),
		ProductID: productID,
		Quantity:  req.Quantity,
		Date:      s.now(),
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.audit(ctx, "sale_create", created.ID,
		zap.String("product_id", created.ProductID),
		zap.Int("quantity", created.Quantity),
		zap.String("total_price", created.TotalPrice.StringFixed(2)))
	return *created, nil
}

func (s *Service) UpdateSale(ctx context.Context, id string, req domain.MovementRequest) (domain.Sale, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Sale{}, err
	}
	productID, err := normalizeMovement(req)
	if err != nil {
		return domain.Sale{}, err
	}

	updated, err := s.repo.UpdateSale(ctx, strings.TrimSpace(id), productID, req.Quantity, s.now())
	if err != nil {
		return domain.Sale{}, err
	}

	s.audit(ctx, "sale_update", updated.ID,
		zap.String("product_id", updated.ProductID),
		zap.Int("quantity", updated.Quantity))
	return *updated, nil
}

// DeleteSale reports whether a sale was actually removed. Deleting an unknown
// sale is not an error.
func (s *Service) DeleteSale(ctx context.Context, id string) (bool, error) {
	if err := requireAdmin(ctx); err != nil {
		return false, err
	}
	id = strings.TrimSpace(id)
	deleted, err := s.repo.DeleteSale(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.audit(ctx, "sale_delete", id)
	}
	return deleted, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, query domain.ListQuery) ([]domain.Sale, error) {
	filter, err := listFilter(query)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSales(ctx, filter)
}

func (s *Service) RecordLoss(ctx context.Context, req domain.MovementRequest) (domain.Loss, error) {
	productID, err := normalizeMovement(req)
	if err != nil {
		return domain.Loss{}, err
	}

	created, err := s.repo.CreateLoss(ctx, domain.Loss{
		ID:        xid.New(xid.LossPrefix),
		ProductID: productID,
		Quantity:  req.Quantity,
		Date:      s.now(),
	})
	if err != nil {
		return domain.Loss{}, err
	}

	s.audit(ctx, "loss_create", created.ID,
		zap.String("product_id", created.ProductID),
		zap.Int("quantity", created.Quantity))
	return *created, nil
}

func (s *Service) UpdateLoss(ctx context.Context, id string, req domain.MovementRequest) (domain.Loss, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Loss{}, err
	}
	productID, err := normalizeMovement(req)
	if err != nil {
		return domain.Loss{}, err
	}

	updated, err := s.repo.UpdateLoss(ctx, strings.TrimSpace(id), productID, req.Quantity, s.now())
	if err != nil {
		return domain.Loss{}, err
	}

	s.audit(ctx, "loss_update", updated.ID,
		zap.String("product_id", updated.ProductID),
		zap.Int("quantity", updated.Quantity))
	return *updated, nil
}

func (s *Service) DeleteLoss(ctx context.Context, id string) (bool, error) {
	if err := requireAdmin(ctx); err != nil {
		return false, err
	}
	id = strings.TrimSpace(id)
	deleted, err := s.repo.DeleteLoss(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.audit(ctx, "loss_delete", id)
	}
	return deleted, nil
}

func (s *Service) GetLoss(ctx context.Context, id string) (domain.Loss, error) {
	loss, err := s.repo.GetLoss(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Loss{}, err
	}
	return *loss, nil
}

func (s *Service) ListLosses(ctx context.Context, query domain.ListQuery) ([]domain.Loss, error) {
	filter, err := listFilter(query)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLosses(ctx, filter)
}

func (s *Service) CreateFee(ctx context.Context, req domain.FeeCreateRequest) (domain.AncillaryFee, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.AncillaryFee{}, err
	}

	productID := strings.TrimSpace(req.ProductID)
	if productID == "" || !req.Amount.IsPositive() {
		return domain.AncillaryFee{}, store.ErrInvalidInput
	}
	at := s.now()
	if strings.TrimSpace(req.Date) != "" {
		parsed, err := analysis.ParseDate(req.Date, false)
		if err != nil {
			return domain.AncillaryFee{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
		}
		at = parsed
	}

	created, err := s.repo.CreateFee(ctx, domain.AncillaryFee{
		ID:          xid.New(xid.FeePrefix),
		ProductID:   productID,
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount.Round(2),
		Date:        at,
	})
	if err != nil {
		return domain.AncillaryFee{}, err
	}

	s.audit(ctx, "fee_create", created.ID,
		zap.String("product_id", created.ProductID),
		zap.String("amount", created.Amount.StringFixed(2)))
	return *created, nil
}

func (s *Service) ListFees(ctx context.Context, query domain.ListQuery) ([]domain.AncillaryFee, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	filter, err := listFilter(query)
	if err != nil {
		return nil, err
	}
	return s.repo.ListFees(ctx, filter)
}

func (s *Service) DeleteFee(ctx context.Context, id string) (bool, error) {
	if err := requireAdmin(ctx); err != nil {
		return false, err
	}
	id = strings.TrimSpace(id)
	deleted, err := s.repo.DeleteFee(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.audit(ctx, "fee_delete", id)
	}
	return deleted, nil
}

// Analysis computes the profit and loss report for [start, end]. Empty bounds
// default to the current month up to today.
func (s *Service) Analysis(ctx context.Context, start string, end string) (domain.Analysis, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Analysis{}, err
	}
	period, err := analysis.ParsePeriod(start, end, s.now())
	if err != nil {
		if errors.Is(err, analysis.ErrInvalidDate) {
			return domain.Analysis{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
		}
		return domain.Analysis{}, err
	}

	ds, err := s.repo.AnalysisDataset(ctx, period)
	if err != nil {
		return domain.Analysis{}, err
	}
	return analysis.Compute(ds), nil
}

func (s *Service) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	ds, err := s.repo.DashboardDataset(ctx, analysis.Day(s.now()))
	if err != nil {
		return domain.Dashboard{}, err
	}
	return analysis.BuildDashboard(ds), nil
}

func (s *Service) StockReport(ctx context.Context) ([]domain.StockLine, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return analysis.StockLines(products), nil
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

func normalizeMovement(req domain.MovementRequest) (string, error) {
	productID := strings.TrimSpace(req.ProductID)
	if productID == "" {
		return "", store.ErrInvalidInput
	}
	if req.Quantity < 1 {
		return "", store.ErrInvalidQuantity
	}
	return productID, nil
}

func listFilter(query domain.ListQuery) (domain.ListFilter, error) {
	filter := domain.ListFilter{
		ProductID: strings.TrimSpace(query.ProductID),
		Limit:     query.Limit,
	}
	if filter.Limit < 1 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	if strings.TrimSpace(query.From) != "" {
		from, err := analysis.ParseDate(query.From, false)
		if err != nil {
			return domain.ListFilter{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
		}
		filter.From = from
	}
	if strings.TrimSpace(query.To) != "" {
		to, err := analysis.ParseDate(query.To, true)
		if err != nil {
			return domain.ListFilter{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
		}
		filter.To = to
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return domain.ListFilter{}, store.ErrInvalidRange
	}
	return filter, nil
}

func (s *Service) audit(ctx context.Context, action string, entityID string, fields ...zap.Field) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}
	zap.L().Info("audit",
		append([]zap.Field{
			zap.String("action", action),
			zap.String("entity_id", entityID),
			zap.String("actor", actor.Username),
			zap.String("role", actor.Role),
		}, fields...)...)
}
