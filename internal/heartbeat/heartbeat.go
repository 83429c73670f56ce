// Package heartbeat implements the append-only liveness log. Any named
// source may write heartbeats; the engine loop and gateway connectivity
// checks share the same contract.
package heartbeat

import (
	"context"
	"database/sql"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/centrix/internal/store"
	"github.com/rxtech-lab/centrix/pkg/errors"
)

// StatusOK is the default liveness status.
const StatusOK = "ok"

// Well-known heartbeat sources.
const (
	SourceEngine  = "engine"
	SourceGateway = "gateway"
)

// Record is a single liveness entry.
type Record struct {
	ID        int64
	Source    string
	Status    string
	Timestamp time.Time
}

// Log provides append and latest-entry access to the heartbeat table.
type Log struct {
	store *store.Store
}

// NewLog creates a Log backed by the given store.
func NewLog(s *store.Store) *Log {
	return &Log{
		store: s,
	}
}

// Write appends a heartbeat for source with the current timestamp.
// Fire-and-forget: no dedup, no bound on table growth.
func (l *Log) Write(ctx context.Context, source, status string) error {
	return l.writeAt(ctx, source, status, time.Now())
}

// writeAt appends a heartbeat with an explicit timestamp.
func (l *Log) writeAt(ctx context.Context, source, status string, ts time.Time) error {
	_, err := l.store.Builder().
		Insert("heartbeats").
		Columns("source", "status", "ts").
		Values(source, status, ts.Unix()).
		RunWith(l.store.DB()).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to write heartbeat for source %q", source)
	}

	return nil
}

// Latest returns the most recent heartbeat for source: the record with the
// maximum timestamp, ties broken by highest id. Returns None when the source
// has never written.
func (l *Log) Latest(ctx context.Context, source string) (optional.Option[Record], error) {
	var (
		record Record
		unix   int64
	)

	err := l.store.Builder().
		Select("id", "source", "status", "ts").
		From("heartbeats").
		Where("source = ?", source).
		OrderBy("ts DESC", "id DESC").
		Limit(1).
		RunWith(l.store.DB()).
		QueryRowContext(ctx).
		Scan(&record.ID, &record.Source, &record.Status, &unix)
	if err == sql.ErrNoRows {
		return optional.None[Record](), nil
	}

	if err != nil {
		return optional.None[Record](), errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to read latest heartbeat for source %q", source)
	}

	record.Timestamp = time.Unix(unix, 0)

	return optional.Some(record), nil
}
