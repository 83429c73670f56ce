// Package config implements the versioned configuration registry. Values are
// stored as text, keyed by (key, scope), and read through permissive typed
// accessors that resolve absence and parse failure to a caller-supplied
// default.
package config

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/centrix/internal/logger"
	"github.com/rxtech-lab/centrix/internal/store"
	"github.com/rxtech-lab/centrix/pkg/errors"
	"go.uber.org/zap"
)

// ScopeGlobal is the default namespace for configuration keys.
const ScopeGlobal = "global"

// Value type tags recorded alongside each setting.
const (
	ValueTypeString = "str"
	ValueTypeInt    = "int"
	ValueTypeFloat  = "float"
)

// versionFlagKey is the control_flags row holding the config version counter.
const versionFlagKey = "config_version"

// lookupState distinguishes how a raw value resolved. The distinction is kept
// internal for diagnostics; public accessors collapse absent and invalid into
// the caller default.
type lookupState int

const (
	lookupAbsent lookupState = iota
	lookupValid
	lookupInvalid
)

// Registry provides access to scoped configuration settings and the
// monotonic config version counter.
type Registry struct {
	store *store.Store
	log   *logger.Logger
}

// NewRegistry creates a Registry backed by the given store.
func NewRegistry(s *store.Store, log *logger.Logger) *Registry {
	return &Registry{
		store: s,
		log:   log,
	}
}

// lookup fetches the raw stored value for (key, scope).
func (r *Registry) lookup(ctx context.Context, key, scope string) (string, lookupState, error) {
	var value string

	err := r.store.Builder().
		Select("value").
		From("config_settings").
		Where("key = ? AND scope = ?", key, scope).
		RunWith(r.store.DB()).
		QueryRowContext(ctx).
		Scan(&value)
	if err == sql.ErrNoRows {
		return "", lookupAbsent, nil
	}

	if err != nil {
		return "", lookupAbsent, errors.Wrapf(errors.ErrCodeConfigReadFailed, err, "failed to read config key %q scope %q", key, scope)
	}

	return value, lookupValid, nil
}

// lookupFloat fetches and parses a float value for (key, scope). A stored
// value that does not parse resolves to lookupInvalid.
func (r *Registry) lookupFloat(ctx context.Context, key, scope string) (float64, lookupState, error) {
	raw, state, err := r.lookup(ctx, key, scope)
	if err != nil || state == lookupAbsent {
		return 0, state, err
	}

	parsed, parseErr := strconv.ParseFloat(raw, 64)
	if parseErr != nil {
		r.log.Warn("config value is not a valid float",
			zap.String("key", key),
			zap.String("scope", scope),
			zap.String("raw", raw))

		return 0, lookupInvalid, nil
	}

	return parsed, lookupValid, nil
}

// Get returns the value for (key, scope), or def when the key is absent.
// Absence is never an error; only storage failures are.
func (r *Registry) Get(ctx context.Context, key, scope, def string) (string, error) {
	value, state, err := r.lookup(ctx, key, scope)
	if err != nil {
		return def, err
	}

	if state != lookupValid {
		return def, nil
	}

	return value, nil
}

// GetFloat returns the value for (key, scope) parsed as a float, or def when
// the key is absent or the stored text does not parse. Parse failure is
// logged but collapses to the default at this boundary, same as absence.
func (r *Registry) GetFloat(ctx context.Context, key, scope string, def float64) (float64, error) {
	parsed, state, err := r.lookupFloat(ctx, key, scope)
	if err != nil {
		return def, err
	}

	if state != lookupValid {
		return def, nil
	}

	return parsed, nil
}

// GetFloatOption returns the value for (key, scope) parsed as a float, or
// None when the key is absent or malformed. Used where callers need to
// distinguish "no value configured" from a concrete value, such as risk
// limits.
func (r *Registry) GetFloatOption(ctx context.Context, key, scope string) (optional.Option[float64], error) {
	parsed, state, err := r.lookupFloat(ctx, key, scope)
	if err != nil {
		return optional.None[float64](), err
	}

	if state != lookupValid {
		return optional.None[float64](), nil
	}

	return optional.Some(parsed), nil
}

// Set upserts the value for (key, scope), stamping the current time and
// updatedBy. It does not bump the config version; callers batch settings
// changes and bump explicitly via BumpVersion.
func (r *Registry) Set(ctx context.Context, key, value, scope, valueType, updatedBy string) error {
	_, err := r.store.Builder().
		Insert("config_settings").
		Columns("key", "value", "value_type", "scope", "updated_at", "updated_by").
		Values(key, value, valueType, scope, time.Now().Unix(), updatedBy).
		Suffix(`ON CONFLICT(key, scope) DO UPDATE SET
			value = excluded.value,
			value_type = excluded.value_type,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by`).
		RunWith(r.store.DB()).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeConfigWriteFailed, err, "failed to set config key %q scope %q", key, scope)
	}

	return nil
}

// Version returns the current config version, or 0 when unset or unreadable
// as an integer.
func (r *Registry) Version(ctx context.Context) (int, error) {
	var raw string

	err := r.store.Builder().
		Select("value").
		From("control_flags").
		Where("key = ?", versionFlagKey).
		RunWith(r.store.DB()).
		QueryRowContext(ctx).
		Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, nil
	}

	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeConfigReadFailed, "failed to read config version", err)
	}

	version, parseErr := strconv.Atoi(raw)
	if parseErr != nil {
		return 0, nil
	}

	return version, nil
}

// BumpVersion increments the config version by one and returns the new
// value. The read-modify-write is not atomic across concurrent writers; a
// single active control process is assumed.
func (r *Registry) BumpVersion(ctx context.Context, reason string) (int, error) {
	current, err := r.Version(ctx)
	if err != nil {
		return 0, err
	}

	next := current + 1
	if err := r.writeVersion(ctx, next); err != nil {
		return 0, err
	}

	r.log.Info("config version bumped",
		zap.Int("version", next),
		zap.String("reason", reason))

	return next, nil
}

// EnsureVersion initializes the version counter to 0 if it does not exist.
func (r *Registry) EnsureVersion(ctx context.Context) error {
	var exists int

	err := r.store.Builder().
		Select("1").
		From("control_flags").
		Where("key = ?", versionFlagKey).
		RunWith(r.store.DB()).
		QueryRowContext(ctx).
		Scan(&exists)
	if err == nil {
		return nil
	}

	if err != sql.ErrNoRows {
		return errors.Wrap(errors.ErrCodeConfigReadFailed, "failed to check config version", err)
	}

	return r.writeVersion(ctx, 0)
}

func (r *Registry) writeVersion(ctx context.Context, version int) error {
	_, err := r.store.Builder().
		Insert("control_flags").
		Columns("key", "value", "updated_at").
		Values(versionFlagKey, strconv.Itoa(version), time.Now().Unix()).
		Suffix(`ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`).
		RunWith(r.store.DB()).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfigWriteFailed, "failed to write config version", err)
	}

	return nil
}
