package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	PurchaseCost decimal.Decimal `json:"purchase_cost"`
	SalePrice    decimal.Decimal `json:"sale_price"`
	Quantity     int             `json:"quantity"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name         string          `json:"name"`
	PurchaseCost decimal.Decimal `json:"purchase_cost"`
	SalePrice    decimal.Decimal `json:"sale_price"`
	Quantity     int             `json:"quantity"`
}

// ProductPatch carries a partial product update; nil fields are left as is.
type ProductPatch struct {
	Name         *string          `json:"name,omitempty"`
	PurchaseCost *decimal.Decimal `json:"purchase_cost,omitempty"`
	SalePrice    *decimal.Decimal `json:"sale_price,omitempty"`
	Quantity     *int             `json:"quantity,omitempty"`
}

func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.PurchaseCost == nil && p.SalePrice == nil && p.Quantity == nil
}

// Apply returns a copy of product with the patch applied.
func (p ProductPatch) Apply(product Product) Product {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.PurchaseCost != nil {
		product.PurchaseCost = *p.PurchaseCost
	}
	if p.SalePrice != nil {
		product.SalePrice = *p.SalePrice
	}
	if p.Quantity != nil {
		product.Quantity = *p.Quantity
	}
	return product
}

type Sale struct {
	ID         string          `json:"id"`
	ProductID  string          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Date       time.Time       `json:"date"`
}

type Loss struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Date      time.Time `json:"date"`
}

// MovementRequest is the body used to create or edit a sale or a loss.
type MovementRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type AncillaryFee struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
}

type FeeCreateRequest struct {
	ProductID   string          `json:"product_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date,omitempty"`
}

// ListQuery is the raw listing query as received from clients. Dates are
// ISO-8601 dates or datetimes.
type ListQuery struct {
	ProductID string
	From      string
	To        string
	Limit     int
}

// ListFilter narrows sale, loss and fee listings. Zero values mean no bound.
type ListFilter struct {
	ProductID string
	From      time.Time
	To        time.Time
	Limit     int
}

// Match reports whether a record of productID dated at passes the filter.
func (f ListFilter) Match(productID string, at time.Time) bool {
	if f.ProductID != "" && f.ProductID != productID {
		return false
	}
	if !f.From.IsZero() && at.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && at.After(f.To) {
		return false
	}
	return true
}

type DailyRevenue struct {
	Day     string          `json:"day"`
	Revenue decimal.Decimal `json:"revenue"`
}

type ProductProfit struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitsSold int             `json:"units_sold"`
	Revenue   decimal.Decimal `json:"revenue"`
	Profit    decimal.Decimal `json:"profit"`
}

type ProductLoss struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitsLost int    `json:"units_lost"`
}

type Analysis struct {
	Start                 time.Time       `json:"start"`
	End                   time.Time       `json:"end"`
	Revenue               decimal.Decimal `json:"revenue"`
	COGS                  decimal.Decimal `json:"cogs"`
	GrossProfit           decimal.Decimal `json:"gross_profit"`
	Depenses              decimal.Decimal `json:"depenses"`
	NetProfit             decimal.Decimal `json:"net_profit"`
	SalesCount            int             `json:"sales_count"`
	UnitsSold             int             `json:"units_sold"`
	UnitsLost             int             `json:"units_lost"`
	AverageDailyRevenue   decimal.Decimal `json:"average_daily_revenue"`
	DailyRevenue          []DailyRevenue  `json:"daily_revenue"`
	TopProfitableProducts []ProductProfit `json:"top_profitable_products"`
	TopLossProducts       []ProductLoss   `json:"top_loss_products"`
}

type ProductUnits struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Units     int    `json:"units"`
}

type StockLine struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	PurchaseCost decimal.Decimal `json:"purchase_cost"`
	SalePrice    decimal.Decimal `json:"sale_price"`
	Valuation    decimal.Decimal `json:"valuation"`
}

type Dashboard struct {
	Date               string          `json:"date"`
	TodayRevenue       decimal.Decimal `json:"today_revenue"`
	TodayUnitsSold     int             `json:"today_units_sold"`
	TotalQuantity      int             `json:"total_quantity"`
	InventoryValuation decimal.Decimal `json:"inventory_valuation"`
	TopSellingToday    []ProductUnits  `json:"top_selling_today"`
	LowStock           []StockLine     `json:"low_stock"`
	Stock              []StockLine     `json:"stock"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username     string
	PasswordHash string
	Role         string
	Active       bool
	CreatedAt    time.Time
}

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)
