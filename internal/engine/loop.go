// Package engine implements the supervisory control loop: a single
// long-running cooperative loop that emits heartbeats, hot-reloads its
// configuration on version changes, and terminates when commanded through
// the restart_needed flag.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rxtech-lab/centrix/internal/config"
	"github.com/rxtech-lab/centrix/internal/control"
	"github.com/rxtech-lab/centrix/internal/heartbeat"
	"github.com/rxtech-lab/centrix/internal/logger"
)

// Configuration keys driving the loop.
const (
	KeyLoopSleepMS          = "engine.loop_sleep_ms"
	KeyHeartbeatIntervalSec = "engine.heartbeat_interval_sec"
)

// Documented defaults applied when the keys are unset.
const (
	DefaultLoopSleep         = 500 * time.Millisecond
	DefaultHeartbeatInterval = 5 * time.Second
)

// Config holds the loop's interval settings.
type Config struct {
	LoopSleep         time.Duration
	HeartbeatInterval time.Duration
}

// Loop is the engine control loop. One instance runs at a time; iterations
// never overlap.
type Loop struct {
	cfg        *config.Registry
	flags      *control.Registry
	heartbeats *heartbeat.Log
	log        *logger.Logger
	sessionID  string
}

// loopState is the per-run mutable state carried between ticks.
type loopState struct {
	config        Config
	version       int
	lastHeartbeat time.Time
	iterations    int
}

// NewLoop creates a Loop over the given registries.
func NewLoop(cfg *config.Registry, flags *control.Registry, heartbeats *heartbeat.Log, log *logger.Logger) *Loop {
	return &Loop{
		cfg:        cfg,
		flags:      flags,
		heartbeats: heartbeats,
		log:        log,
		sessionID:  uuid.NewString(),
	}
}

// LoadConfig reads the loop interval settings, falling back to the
// documented defaults when unset or malformed.
func (l *Loop) LoadConfig(ctx context.Context) (Config, error) {
	sleepMS, err := l.cfg.GetFloat(ctx, KeyLoopSleepMS, config.ScopeGlobal,
		float64(DefaultLoopSleep.Milliseconds()))
	if err != nil {
		return Config{}, err
	}

	heartbeatSec, err := l.cfg.GetFloat(ctx, KeyHeartbeatIntervalSec, config.ScopeGlobal,
		DefaultHeartbeatInterval.Seconds())
	if err != nil {
		return Config{}, err
	}

	return Config{
		LoopSleep:         time.Duration(sleepMS) * time.Millisecond,
		HeartbeatInterval: time.Duration(heartbeatSec * float64(time.Second)),
	}, nil
}

// Run drives the loop until restart is requested, the context is canceled,
// or the iteration budget is exhausted (maxIterations <= 0 means unbounded).
// The recorded engine state transitions starting -> running -> stopping ->
// stopped; stopped is recorded on every exit path.
func (l *Loop) Run(ctx context.Context, maxIterations int) error {
	loopConfig, err := l.LoadConfig(ctx)
	if err != nil {
		return err
	}

	if err := l.flags.SetEngineState(ctx, control.EngineStateStarting); err != nil {
		return err
	}

	defer func() {
		if err := l.flags.SetEngineState(context.WithoutCancel(ctx), control.EngineStateStopped); err != nil {
			l.log.Error("failed to record stopped engine state", zap.Error(err))
		}
	}()

	version, err := l.cfg.Version(ctx)
	if err != nil {
		return err
	}

	state := &loopState{
		config:        loopConfig,
		version:       version,
		lastHeartbeat: time.Time{},
		iterations:    0,
	}

	if err := l.flags.SetEngineState(ctx, control.EngineStateRunning); err != nil {
		return err
	}

	l.log.Info("engine loop running",
		zap.String("session_id", l.sessionID),
		zap.Int("config_version", state.version),
		zap.Duration("loop_sleep", state.config.LoopSleep),
		zap.Duration("heartbeat_interval", state.config.HeartbeatInterval))

	for {
		done, err := l.tick(ctx, state, maxIterations)
		if err != nil {
			return err
		}

		if done {
			return nil
		}

		// The sleep is the only blocking point of an iteration.
		select {
		case <-ctx.Done():
			if err := l.flags.SetEngineState(context.WithoutCancel(ctx), control.EngineStateStopping); err != nil {
				l.log.Error("failed to record stopping engine state", zap.Error(err))
			}

			return ctx.Err()
		case <-time.After(state.config.LoopSleep):
		}
	}
}

// tick runs a single loop iteration: heartbeat if due, hot reload on a
// config version change, then the cooperative stop checks. Returns true when
// the loop should exit.
func (l *Loop) tick(ctx context.Context, state *loopState, maxIterations int) (bool, error) {
	now := time.Now()

	if now.Sub(state.lastHeartbeat) >= state.config.HeartbeatInterval {
		if err := l.heartbeats.Write(ctx, heartbeat.SourceEngine, heartbeat.StatusOK); err != nil {
			return false, err
		}

		state.lastHeartbeat = now
	}

	version, err := l.cfg.Version(ctx)
	if err != nil {
		return false, err
	}

	if version != state.version {
		reloaded, err := l.LoadConfig(ctx)
		if err != nil {
			return false, err
		}

		state.config = reloaded
		state.version = version

		l.log.Info("config reloaded",
			zap.String("session_id", l.sessionID),
			zap.Int("config_version", version),
			zap.Duration("loop_sleep", reloaded.LoopSleep),
			zap.Duration("heartbeat_interval", reloaded.HeartbeatInterval))
	}

	restart, err := l.flags.RestartNeeded(ctx)
	if err != nil {
		return false, err
	}

	if restart {
		l.log.Info("restart_needed is set, stopping loop",
			zap.String("session_id", l.sessionID))

		if err := l.flags.SetEngineState(ctx, control.EngineStateStopping); err != nil {
			return false, err
		}

		return true, nil
	}

	if maxIterations > 0 {
		state.iterations++
		if state.iterations >= maxIterations {
			l.log.Info("iteration budget reached, stopping loop",
				zap.String("session_id", l.sessionID),
				zap.Int("iterations", state.iterations))

			return true, nil
		}
	}

	return false, nil
}
