package xid

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	ProductPrefix = "prd"
	SalePrefix    = "sale"
	LossPrefix    = "loss"
	FeePrefix     = "fee"
)

// New returns a prefixed random identifier such as "sale-2b6f...".
func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
