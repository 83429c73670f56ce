// Package control implements the control-flag registry: a small set of named
// flags representing instantaneous operational state. Flags are unscoped and
// unversioned, unlike configuration settings.
package control

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rxtech-lab/centrix/internal/store"
	"github.com/rxtech-lab/centrix/pkg/errors"
)

// Well-known flag keys.
const (
	FlagSafeMode      = "safe_mode"
	FlagRestartNeeded = "restart_needed"
	FlagEngineState   = "engine_state"
)

// EngineState marks the control loop's current phase for external observers.
type EngineState string

const (
	EngineStateStarting EngineState = "starting"
	EngineStateRunning  EngineState = "running"
	EngineStateStopping EngineState = "stopping"
	EngineStateStopped  EngineState = "stopped"
)

// Registry provides access to control flags.
type Registry struct {
	store *store.Store
}

// NewRegistry creates a Registry backed by the given store.
func NewRegistry(s *store.Store) *Registry {
	return &Registry{
		store: s,
	}
}

// Flag returns the value for key, or def when the flag is unset.
func (r *Registry) Flag(ctx context.Context, key, def string) (string, error) {
	var value string

	err := r.store.Builder().
		Select("value").
		From("control_flags").
		Where("key = ?", key).
		RunWith(r.store.DB()).
		QueryRowContext(ctx).
		Scan(&value)
	if err == sql.ErrNoRows {
		return def, nil
	}

	if err != nil {
		return def, errors.Wrapf(errors.ErrCodeFlagReadFailed, err, "failed to read control flag %q", key)
	}

	return value, nil
}

// SetFlag upserts the value for key, stamping the current time.
func (r *Registry) SetFlag(ctx context.Context, key, value string) error {
	_, err := r.store.Builder().
		Insert("control_flags").
		Columns("key", "value", "updated_at").
		Values(key, value, time.Now().Unix()).
		Suffix(`ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`).
		RunWith(r.store.DB()).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeFlagWriteFailed, err, "failed to set control flag %q", key)
	}

	return nil
}

// SafeMode reports whether the safe-mode circuit breaker is tripped.
// Defaults to false when the flag is unset.
func (r *Registry) SafeMode(ctx context.Context) (bool, error) {
	return r.boolFlag(ctx, FlagSafeMode)
}

// SetSafeMode sets the safe-mode circuit breaker.
func (r *Registry) SetSafeMode(ctx context.Context, enabled bool) error {
	return r.SetFlag(ctx, FlagSafeMode, formatBool(enabled))
}

// RestartNeeded reports whether the control loop has been commanded to
// terminate. Defaults to false when the flag is unset.
func (r *Registry) RestartNeeded(ctx context.Context) (bool, error) {
	return r.boolFlag(ctx, FlagRestartNeeded)
}

// SetRestartNeeded sets the restart_needed flag.
func (r *Registry) SetRestartNeeded(ctx context.Context, needed bool) error {
	return r.SetFlag(ctx, FlagRestartNeeded, formatBool(needed))
}

// CurrentEngineState returns the recorded engine state, or EngineStateStopped
// when unset.
func (r *Registry) CurrentEngineState(ctx context.Context) (EngineState, error) {
	value, err := r.Flag(ctx, FlagEngineState, string(EngineStateStopped))
	if err != nil {
		return EngineStateStopped, err
	}

	return EngineState(value), nil
}

// SetEngineState records the control loop's current phase.
func (r *Registry) SetEngineState(ctx context.Context, state EngineState) error {
	return r.SetFlag(ctx, FlagEngineState, string(state))
}

// boolFlag maps the stored string case-insensitively to a boolean: "true"
// means true, anything else (including absence) means false.
func (r *Registry) boolFlag(ctx context.Context, key string) (bool, error) {
	value, err := r.Flag(ctx, key, "false")
	if err != nil {
		return false, err
	}

	return strings.EqualFold(value, "true"), nil
}

func formatBool(value bool) string {
	if value {
		return "true"
	}

	return "false"
}
