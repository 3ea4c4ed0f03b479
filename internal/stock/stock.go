// Package stock holds the quantity rules applied whenever a sale or a loss is
// created, edited or deleted. Store backends call these functions inside their
// own transaction so every backend keeps product quantities reconciled the
// same way.
package stock

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be a positive integer")
)

// Kind identifies the stock-decreasing record being adjusted.
type Kind string

const (
	KindSale Kind = "sale"
	KindLoss Kind = "loss"
)

// Deduct returns the on-hand quantity left after taking qty units.
func Deduct(onHand int, qty int) (int, error) {
	if qty < 1 {
		return onHand, ErrInvalidQuantity
	}
	if qty > onHand {
		return onHand, ErrInsufficientStock
	}
	return onHand - qty, nil
}

// Restore gives back the qty units held by a deleted or re-pointed record.
func Restore(onHand int, qty int) int {
	return onHand + qty
}

// Move describes an edit of an existing sale or loss: the record currently
// holds FromQty units of FromProductID and should end up holding ToQty units
// of ToProductID.
type Move struct {
	FromProductID string
	FromQty       int
	ToProductID   string
	ToQty         int
}

// SameProduct reports whether the edit keeps the record on its product.
func (m Move) SameProduct() bool {
	return m.FromProductID == m.ToProductID
}

// Reassign computes the on-hand quantities after applying m. levels must hold
// the current quantity of every product named by m and is left untouched; the
// returned map holds the new quantity of each product that changed.
//
// On the same product only the difference is checked against stock. When the
// product changes the old product is restored before the new one is charged.
func Reassign(levels map[string]int, m Move) (map[string]int, error) {
	if m.ToQty < 1 {
		return nil, ErrInvalidQuantity
	}

	if m.SameProduct() {
		onHand := levels[m.ToProductID]
		delta := m.ToQty - m.FromQty
		if delta > onHand {
			return nil, ErrInsufficientStock
		}
		return map[string]int{m.ToProductID: onHand - delta}, nil
	}

	restored := Restore(levels[m.FromProductID], m.FromQty)
	charged, err := Deduct(levels[m.ToProductID], m.ToQty)
	if err != nil {
		return nil, err
	}
	return map[string]int{
		m.FromProductID: restored,
		m.ToProductID:   charged,
	}, nil
}

// SaleTotal is the price frozen on a sale: qty units at the product's current
// sale price.
func SaleTotal(salePrice decimal.Decimal, qty int) decimal.Decimal {
	return salePrice.Mul(decimal.NewFromInt(int64(qty)))
}
