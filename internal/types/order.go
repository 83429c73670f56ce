package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/centrix/pkg/errors"
)

type Side string

type OrderStatus string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

const (
	OrderStatusProposed    OrderStatus = "proposed"
	OrderStatusRiskBlocked OrderStatus = "risk_blocked"
	OrderStatusExecuting   OrderStatus = "executing"
	OrderStatusExecuted    OrderStatus = "executed"
	OrderStatusFailed      OrderStatus = "failed"
)

// NewOrder is the input for an order proposal.
type NewOrder struct {
	Symbol   string  `yaml:"symbol" json:"symbol" validate:"required"`
	Side     Side    `yaml:"side" json:"side" validate:"required,oneof=buy sell"`
	Quantity float64 `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
}

// Validate validates the NewOrder struct.
func (o *NewOrder) Validate() error {
	validate := validator.New()

	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	return nil
}

// OrderRecord is a persisted order. Created once with status proposed and
// mutated only through status transitions; never physically deleted.
type OrderRecord struct {
	ID        int64
	Symbol    string
	Side      Side
	Quantity  float64
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	// ErrorMessage is set together with a blocked or failed status so a
	// reader never observes a failure without its reason.
	ErrorMessage optional.Option[string]
}

// IsTerminal reports whether the order can no longer transition.
func (r *OrderRecord) IsTerminal() bool {
	switch r.Status {
	case OrderStatusRiskBlocked, OrderStatusExecuted, OrderStatusFailed:
		return true
	default:
		return false
	}
}
