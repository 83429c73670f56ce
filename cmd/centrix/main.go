package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/rxtech-lab/centrix/internal/config"
	"github.com/rxtech-lab/centrix/internal/control"
	"github.com/rxtech-lab/centrix/internal/engine"
	"github.com/rxtech-lab/centrix/internal/gateway"
	"github.com/rxtech-lab/centrix/internal/heartbeat"
	"github.com/rxtech-lab/centrix/internal/logger"
	"github.com/rxtech-lab/centrix/internal/order"
	"github.com/rxtech-lab/centrix/internal/risk"
	"github.com/rxtech-lab/centrix/internal/store"
	"github.com/rxtech-lab/centrix/internal/types"
)

const (
	// dbPath is the local database file, created on first use.
	dbPath = "centrix.db"
	// gatewaySettingsPath is the optional local gateway settings file.
	gatewaySettingsPath = "gateway.yaml"
	// demoIterations bounds the engine loop in the demo run.
	demoIterations = 20
)

// components bundles the wired control-plane dependencies shared by the
// subcommands.
type components struct {
	store      *store.Store
	log        *logger.Logger
	cfg        *config.Registry
	flags      *control.Registry
	heartbeats *heartbeat.Log
}

// setup opens the store, creates the schema idempotently, and wires the
// registries.
func setup() (*components, error) {
	logg, err := logger.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := s.Init(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	cfg := config.NewRegistry(s, logg)
	if err := cfg.EnsureVersion(context.Background()); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize config version: %w", err)
	}

	return &components{
		store:      s,
		log:        logg,
		cfg:        cfg,
		flags:      control.NewRegistry(s),
		heartbeats: heartbeat.NewLog(s),
	}, nil
}

func (c *components) close() {
	_ = c.log.Sync()
	_ = c.store.Close()
}

// seedIfUnset writes a config default only when the key has never been set.
func seedIfUnset(ctx context.Context, cfg *config.Registry, key, value, valueType string) error {
	current, err := cfg.Get(ctx, key, config.ScopeGlobal, "")
	if err != nil {
		return err
	}

	if current != "" {
		return nil
	}

	return cfg.Set(ctx, key, value, config.ScopeGlobal, valueType, "demo")
}

func initDBAction(_ context.Context, _ *cli.Command) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	fmt.Println("database schema initialized")

	return nil
}

func runEngineAction(ctx context.Context, _ *cli.Command) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	if err := seedIfUnset(ctx, c.cfg, engine.KeyLoopSleepMS, "200", config.ValueTypeInt); err != nil {
		return err
	}

	if err := seedIfUnset(ctx, c.cfg, engine.KeyHeartbeatIntervalSec, "1", config.ValueTypeInt); err != nil {
		return err
	}

	loop := engine.NewLoop(c.cfg, c.flags, c.heartbeats, c.log)
	if err := loop.Run(ctx, demoIterations); err != nil {
		return err
	}

	fmt.Println("engine loop finished (bounded demo run)")

	return nil
}

func runRiskDemoAction(ctx context.Context, _ *cli.Command) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	if err := c.flags.SetSafeMode(ctx, false); err != nil {
		return err
	}

	if err := seedIfUnset(ctx, c.cfg, risk.KeyMaxDailyLoss, "150", config.ValueTypeFloat); err != nil {
		return err
	}

	if err := seedIfUnset(ctx, c.cfg, risk.KeyMaxOrderSize, "100", config.ValueTypeFloat); err != nil {
		return err
	}

	limits, err := risk.LoadLimits(ctx, c.cfg)
	if err != nil {
		return err
	}

	fmt.Printf("risk limits: max_daily_loss=%v max_order_size=%v\n",
		limits.MaxDailyLoss.TakeOr(0), limits.MaxOrderSize.TakeOr(0))

	gate := risk.NewGate(c.cfg, c.flags, c.log)
	effectiveLimit := limits.MaxOrderSize.TakeOr(100)

	for _, quantity := range []float64{effectiveLimit / 2, effectiveLimit * 2} {
		demoOrder := types.NewOrder{Symbol: "AAPL", Side: types.SideBuy, Quantity: quantity}

		allowed, reason, err := gate.CheckAndGate(ctx, demoOrder)
		if err != nil {
			return err
		}

		if allowed {
			fmt.Printf("order allowed: symbol=%s side=%s quantity=%v\n",
				demoOrder.Symbol, demoOrder.Side, demoOrder.Quantity)
		} else {
			fmt.Printf("order blocked: %s (safe-mode tripped)\n", reason.Unwrap())
		}
	}

	safeMode, err := c.flags.SafeMode(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("safe_mode=%v\n", safeMode)

	return nil
}

func showSafeModeAction(ctx context.Context, _ *cli.Command) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	safeMode, err := c.flags.SafeMode(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("safe_mode=%v\n", safeMode)

	return nil
}

func testGatewayConnectionAction(ctx context.Context, _ *cli.Command) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	settings := gateway.LoadSettings(gatewaySettingsPath)
	client := gateway.NewTCPClient(settings, c.log)
	defer client.Disconnect()

	status := heartbeat.StatusOK
	if client.Connect(gateway.DefaultConnectTimeout) {
		fmt.Printf("gateway reachable at %s:%d (client_id=%d)\n",
			settings.Host, settings.Port, settings.ClientID)
	} else {
		status = "unreachable"
		fmt.Printf("gateway unreachable at %s:%d\n", settings.Host, settings.Port)
	}

	return c.heartbeats.Write(ctx, heartbeat.SourceGateway, status)
}

func showGatewayStatusAction(ctx context.Context, _ *cli.Command) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	settings := gateway.LoadSettings(gatewaySettingsPath)
	fmt.Printf("gateway settings: host=%s port=%d client_id=%d\n",
		settings.Host, settings.Port, settings.ClientID)

	latest, err := c.heartbeats.Latest(ctx, heartbeat.SourceGateway)
	if err != nil {
		return err
	}

	if latest.IsNone() {
		fmt.Println("no gateway heartbeat recorded")
		return nil
	}

	record := latest.Unwrap()
	fmt.Printf("last check: status=%s at=%s\n",
		record.Status, record.Timestamp.Format("2006-01-02 15:04:05"))

	return nil
}

func runOrderDemoAction(ctx context.Context, _ *cli.Command) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	if err := seedIfUnset(ctx, c.cfg, risk.KeyMaxOrderSize, "100", config.ValueTypeFloat); err != nil {
		return err
	}

	settings := gateway.LoadSettings(gatewaySettingsPath)
	client := gateway.NewTCPClient(settings, c.log)
	gate := risk.NewGate(c.cfg, c.flags, c.log)
	service := order.NewService(c.store, c.flags, gate, client, c.log)

	record, err := service.Propose(ctx, types.NewOrder{
		Symbol:   "AAPL",
		Side:     types.SideBuy,
		Quantity: 10,
	})
	if err != nil {
		return err
	}

	final, err := service.Execute(ctx, record.ID)
	if err != nil {
		return err
	}

	fmt.Printf("order %d: status=%s", final.ID, final.Status)
	if final.ErrorMessage.IsSome() {
		fmt.Printf(" error=%q", final.ErrorMessage.Unwrap())
	}
	fmt.Println()

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "centrix",
		Usage: "Supervisory control plane for the trading engine",
		Commands: []*cli.Command{
			{
				Name:   "init-db",
				Usage:  "Create the database schema if it does not exist",
				Action: initDBAction,
			},
			{
				Name:   "run-engine",
				Usage:  "Run the engine control loop (bounded demo run)",
				Action: runEngineAction,
			},
			{
				Name:   "run-risk-demo",
				Usage:  "Evaluate demo orders against the configured risk limits",
				Action: runRiskDemoAction,
			},
			{
				Name:   "show-safe-mode",
				Usage:  "Print the current safe-mode flag",
				Action: showSafeModeAction,
			},
			{
				Name:   "test-ib-connection",
				Usage:  "Probe gateway connectivity and record a heartbeat",
				Action: testGatewayConnectionAction,
			},
			{
				Name:   "show-gateway-status",
				Usage:  "Print gateway settings and the last connectivity check",
				Action: showGatewayStatusAction,
			},
			{
				Name:   "run-order-demo",
				Usage:  "Propose and execute a demo order end to end",
				Action: runOrderDemoAction,
			},
		},
		CommandNotFound: func(_ context.Context, _ *cli.Command, name string) {
			// Unknown subcommands are reported, never fatal.
			fmt.Printf("unknown command: %s\n", name)
			fmt.Println("available commands: init-db, run-engine, run-risk-demo, show-safe-mode, test-ib-connection, show-gateway-status, run-order-demo")
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
