// Package order implements the order lifecycle: a persisted state machine
// advancing a single order from proposal through execution or failure, gated
// by the risk check and the safe-mode circuit breaker.
package order

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/centrix/internal/control"
	"github.com/rxtech-lab/centrix/internal/gateway"
	"github.com/rxtech-lab/centrix/internal/logger"
	"github.com/rxtech-lab/centrix/internal/risk"
	"github.com/rxtech-lab/centrix/internal/store"
	"github.com/rxtech-lab/centrix/internal/types"
	"github.com/rxtech-lab/centrix/pkg/errors"
)

// Failure messages recorded on the order.
const (
	msgSafeModeActive   = "Safe-Mode active"
	msgConnectionFailed = "gateway connection failed"
	msgSubmitFailed     = "gateway order failed"
)

// outcomeKind discriminates the result of an execution attempt at the
// gateway boundary.
type outcomeKind int

const (
	outcomeOK outcomeKind = iota
	outcomeGatewayError
	outcomeUnexpected
)

// outcome is the discriminated result of a gateway submission.
type outcome struct {
	kind    outcomeKind
	message string
}

// Service drives orders through their lifecycle.
type Service struct {
	store          *store.Store
	flags          *control.Registry
	gate           *risk.Gate
	client         gateway.Client
	log            *logger.Logger
	connectTimeout time.Duration
}

// NewService creates a Service wired with the given dependencies.
func NewService(s *store.Store, flags *control.Registry, gate *risk.Gate, client gateway.Client, log *logger.Logger) *Service {
	return &Service{
		store:          s,
		flags:          flags,
		gate:           gate,
		client:         client,
		log:            log,
		connectTimeout: gateway.DefaultConnectTimeout,
	}
}

// Propose validates and persists a new order with status proposed.
func (s *Service) Propose(ctx context.Context, newOrder types.NewOrder) (types.OrderRecord, error) {
	if err := newOrder.Validate(); err != nil {
		return types.OrderRecord{}, err
	}

	now := time.Now().Unix()

	result, err := s.store.Builder().
		Insert("orders").
		Columns("symbol", "side", "quantity", "status", "created_at", "updated_at", "error_message").
		Values(newOrder.Symbol, string(newOrder.Side), newOrder.Quantity, string(types.OrderStatusProposed), now, now, nil).
		RunWith(s.store.DB()).
		ExecContext(ctx)
	if err != nil {
		return types.OrderRecord{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to insert order proposal", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return types.OrderRecord{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read inserted order id", err)
	}

	s.log.Info("order proposed",
		zap.Int64("order_id", id),
		zap.String("symbol", newOrder.Symbol),
		zap.String("side", string(newOrder.Side)),
		zap.Float64("quantity", newOrder.Quantity))

	return s.mustGet(ctx, id)
}

// Get fetches an order by id. Returns None when no such order exists.
func (s *Service) Get(ctx context.Context, id int64) (optional.Option[types.OrderRecord], error) {
	var (
		record       types.OrderRecord
		side, status string
		created      int64
		updated      int64
		errMsg       sql.NullString
	)

	err := s.store.Builder().
		Select("id", "symbol", "side", "quantity", "status", "created_at", "updated_at", "error_message").
		From("orders").
		Where("id = ?", id).
		RunWith(s.store.DB()).
		QueryRowContext(ctx).
		Scan(&record.ID, &record.Symbol, &side, &record.Quantity, &status, &created, &updated, &errMsg)
	if err == sql.ErrNoRows {
		return optional.None[types.OrderRecord](), nil
	}

	if err != nil {
		return optional.None[types.OrderRecord](), errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to read order %d", id)
	}

	record.Side = types.Side(side)
	record.Status = types.OrderStatus(status)
	record.CreatedAt = time.Unix(created, 0)
	record.UpdatedAt = time.Unix(updated, 0)

	if errMsg.Valid {
		record.ErrorMessage = optional.Some(errMsg.String)
	} else {
		record.ErrorMessage = optional.None[string]()
	}

	return optional.Some(record), nil
}

// mustGet fetches an order that is known to exist.
func (s *Service) mustGet(ctx context.Context, id int64) (types.OrderRecord, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return types.OrderRecord{}, err
	}

	if record.IsNone() {
		return types.OrderRecord{}, errors.Newf(errors.ErrCodeOrderNotFound, "order %d not found", id)
	}

	return record.Unwrap(), nil
}

// updateStatus writes status, error message, and updated_at together in a
// single statement so a reader never observes a failed status with a stale
// or missing reason.
func (s *Service) updateStatus(ctx context.Context, id int64, status types.OrderStatus, errMsg optional.Option[string]) error {
	var message any
	if errMsg.IsSome() {
		message = errMsg.Unwrap()
	}

	_, err := s.store.Builder().
		Update("orders").
		Set("status", string(status)).
		Set("error_message", message).
		Set("updated_at", time.Now().Unix()).
		Where("id = ?", id).
		RunWith(s.store.DB()).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeOrderUpdateFailed, err, "failed to update order %d to status %s", id, status)
	}

	return nil
}

// CheckRisk evaluates the order against current limits. A blocked order
// transitions to risk_blocked with the reason recorded, and safe-mode trips
// as a side effect of the gate.
func (s *Service) CheckRisk(ctx context.Context, id int64) (bool, optional.Option[string], error) {
	record, err := s.mustGet(ctx, id)
	if err != nil {
		return false, optional.None[string](), err
	}

	newOrder := types.NewOrder{
		Symbol:   record.Symbol,
		Side:     record.Side,
		Quantity: record.Quantity,
	}

	allowed, reason, err := s.gate.CheckAndGate(ctx, newOrder)
	if err != nil {
		return false, optional.None[string](), err
	}

	if !allowed {
		if err := s.updateStatus(ctx, id, types.OrderStatusRiskBlocked, reason); err != nil {
			return false, reason, err
		}

		return false, reason, nil
	}

	return true, optional.None[string](), nil
}

// Execute advances a proposed order to a terminal state: executed on a
// successful gateway submission, risk_blocked on a limit violation, failed
// otherwise. The gateway connection opened for the attempt is always
// released, whichever exit path is taken. Returns the order's final record;
// a non-nil error indicates a storage fault, not a failed order.
func (s *Service) Execute(ctx context.Context, id int64) (types.OrderRecord, error) {
	record, err := s.mustGet(ctx, id)
	if err != nil {
		return types.OrderRecord{}, err
	}

	safeMode, err := s.flags.SafeMode(ctx)
	if err != nil {
		return types.OrderRecord{}, err
	}

	if safeMode {
		// Circuit breaker: the gateway is never contacted.
		if err := s.updateStatus(ctx, id, types.OrderStatusFailed, optional.Some(msgSafeModeActive)); err != nil {
			return types.OrderRecord{}, err
		}

		return s.mustGet(ctx, id)
	}

	allowed, _, err := s.CheckRisk(ctx, id)
	if err != nil {
		return types.OrderRecord{}, err
	}

	if !allowed {
		return s.mustGet(ctx, id)
	}

	if !s.client.Connect(s.connectTimeout) {
		if err := s.updateStatus(ctx, id, types.OrderStatusFailed, optional.Some(msgConnectionFailed)); err != nil {
			return types.OrderRecord{}, err
		}

		return s.mustGet(ctx, id)
	}
	defer s.client.Disconnect()

	if err := s.updateStatus(ctx, id, types.OrderStatusExecuting, optional.None[string]()); err != nil {
		return types.OrderRecord{}, err
	}

	result := s.submit(record)
	switch result.kind {
	case outcomeOK:
		err = s.updateStatus(ctx, id, types.OrderStatusExecuted, optional.None[string]())
	case outcomeGatewayError, outcomeUnexpected:
		err = s.updateStatus(ctx, id, types.OrderStatusFailed, optional.Some(result.message))
	}

	if err != nil {
		return types.OrderRecord{}, err
	}

	return s.mustGet(ctx, id)
}

// submit performs the gateway submission inside a last-resort safety net: a
// panic escaping the client is converted into a failure message so a single
// bad order cannot crash the engine process.
func (s *Service) submit(record types.OrderRecord) (result outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("unexpected panic during order submission",
				zap.Int64("order_id", record.ID),
				zap.Any("panic", r))

			result = outcome{
				kind:    outcomeUnexpected,
				message: fmt.Sprintf("%v", r),
			}
		}
	}()

	ok, message := s.client.SubmitMarketOrder(record.Symbol, record.Side, record.Quantity)
	if ok {
		return outcome{kind: outcomeOK, message: ""}
	}

	if message == "" {
		message = msgSubmitFailed
	}

	return outcome{kind: outcomeGatewayError, message: message}
}
