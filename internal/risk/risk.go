// Package risk implements the order risk gate. Limits are recomputed from
// the configuration registry on every evaluation so a configuration change
// takes effect on the very next check.
package risk

import (
	"context"
	"strconv"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/centrix/internal/config"
	"github.com/rxtech-lab/centrix/internal/control"
	"github.com/rxtech-lab/centrix/internal/logger"
	"github.com/rxtech-lab/centrix/internal/types"
)

// Configuration keys holding risk limits.
const (
	KeyMaxDailyLoss = "risk.max_daily_loss"
	KeyMaxOrderSize = "risk.max_order_size"
)

// Limits is an ephemeral snapshot of the configured risk limits. Absence of
// a limit means no constraint on that dimension.
type Limits struct {
	// MaxDailyLoss is loaded but not yet evaluated; the rule is a
	// placeholder awaiting daily-loss accounting.
	MaxDailyLoss optional.Option[float64]
	MaxOrderSize optional.Option[float64]
}

// LoadLimits reads the current limits from the configuration registry.
// Never cached across calls.
func LoadLimits(ctx context.Context, cfg *config.Registry) (Limits, error) {
	maxDailyLoss, err := cfg.GetFloatOption(ctx, KeyMaxDailyLoss, config.ScopeGlobal)
	if err != nil {
		return Limits{}, err
	}

	maxOrderSize, err := cfg.GetFloatOption(ctx, KeyMaxOrderSize, config.ScopeGlobal)
	if err != nil {
		return Limits{}, err
	}

	return Limits{
		MaxDailyLoss: maxDailyLoss,
		MaxOrderSize: maxOrderSize,
	}, nil
}

// Evaluate checks an order against the given limits. Returns whether the
// order is allowed and, when blocked, the reason.
func Evaluate(order types.NewOrder, limits Limits) (bool, optional.Option[string]) {
	if limits.MaxOrderSize.IsSome() {
		maxSize := limits.MaxOrderSize.Unwrap()
		if order.Quantity > maxSize {
			reason := "order quantity " + formatQuantity(order.Quantity) +
				" exceeds max_order_size " + formatQuantity(maxSize)

			return false, optional.Some(reason)
		}
	}

	// max_daily_loss: extension point, not enforced.

	return true, optional.None[string]()
}

// Gate couples limit evaluation with the safe-mode circuit breaker.
type Gate struct {
	cfg   *config.Registry
	flags *control.Registry
	log   *logger.Logger
}

// NewGate creates a Gate over the given registries.
func NewGate(cfg *config.Registry, flags *control.Registry, log *logger.Logger) *Gate {
	return &Gate{
		cfg:   cfg,
		flags: flags,
		log:   log,
	}
}

// CheckAndGate loads current limits, evaluates the order, and on a block
// trips safe-mode: a single risk violation disables all further execution
// system-wide until an operator clears the flag.
func (g *Gate) CheckAndGate(ctx context.Context, order types.NewOrder) (bool, optional.Option[string], error) {
	limits, err := LoadLimits(ctx, g.cfg)
	if err != nil {
		return false, optional.None[string](), err
	}

	allowed, reason := Evaluate(order, limits)
	if allowed {
		return true, optional.None[string](), nil
	}

	g.log.Warn("order blocked by risk gate, tripping safe-mode",
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Float64("quantity", order.Quantity),
		zap.String("reason", reason.Unwrap()))

	if err := g.flags.SetSafeMode(ctx, true); err != nil {
		return false, reason, err
	}

	return false, reason, nil
}

// formatQuantity renders a float without trailing zeros, matching the
// stored limit text.
func formatQuantity(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
