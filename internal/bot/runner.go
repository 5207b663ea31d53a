// internal/bot/runner.go
// Package bot assembles the pipeline: detector into queue, queue into
// pool and gateway, gateway into monitor, monitor back into pool.
package bot

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-pool-sniper/internal/analyzer"
	"solana-pool-sniper/internal/chain"
	"solana-pool-sniper/internal/config"
	"solana-pool-sniper/internal/detector"
	"solana-pool-sniper/internal/events"
	"solana-pool-sniper/internal/export"
	"solana-pool-sniper/internal/gateway"
	"solana-pool-sniper/internal/logger"
	"solana-pool-sniper/internal/monitor"
	"solana-pool-sniper/internal/pool"
	"solana-pool-sniper/internal/queue"
	"solana-pool-sniper/internal/storage"
	"solana-pool-sniper/internal/storage/postgres"
)

// Runner owns the lifecycle of every pipeline component.
type Runner struct {
	logger   *zap.Logger
	cfg      *config.Config
	shutdown *ShutdownHandler

	bus      *events.Bus
	pool     *pool.Pool
	ledger   *pool.Ledger
	provider *chain.RPCProvider
	queue    *queue.Queue
	rescorer *queue.Rescorer
	monitor  *monitor.Service
	summary  *monitor.SummaryReporter
	listener *detector.Listener
	exporter *export.Exporter
	store    storage.Storage

	groupWg func() error
	cancel  context.CancelFunc
}

func NewRunner(bootLogger *zap.Logger) *Runner {
	return &Runner{logger: bootLogger}
}

// Initialize loads configuration and builds the component graph.
func (r *Runner) Initialize(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.WebSocketURL == "" {
		return fmt.Errorf("websocket_url is required for launch detection")
	}
	r.cfg = cfg

	logCfg := logger.DefaultConfig(cfg.DataDir)
	logCfg.Development = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	r.logger = log
	r.shutdown = NewShutdownHandler(log, 30*time.Second)
	r.shutdown.AddFunc("logger", func() error { return logger.Sync(log) })

	r.bus = events.NewBus(log, 256)
	r.shutdown.AddFunc("event bus", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return r.bus.Shutdown(ctx)
	})

	sinks, err := r.buildSinks(log)
	if err != nil {
		return err
	}
	r.ledger = pool.NewLedger(sinks...)
	r.pool = pool.New(cfg.InitialPoolBalance, r.ledger, r.bus, log,
		pool.WithTarget(cfg.PoolTarget))

	r.provider = chain.NewRPCProvider(cfg.RPCList[0], log)

	gw := gateway.NewPaperGateway(r.provider, log)
	if !cfg.DryRun {
		// Live order routing is not wired yet; trades stay on paper.
		log.Warn("live execution unavailable, running paper trades")
	}

	r.queue = queue.New(queue.Config{
		PositionSize:     cfg.PositionSize,
		MinLiquidity:     cfg.MinLiquidity,
		ProcessingBudget: cfg.ProcessingBudget(),
		MaxAttempts:      cfg.MaxAttempts,
	}, r.pool, r.provider, gw, r.bus, log)

	r.monitor = monitor.NewService(monitor.Config{
		PositionSize:   cfg.PositionSize,
		MaxHoldMinutes: cfg.MaxHoldTimeMinutes,
		Interval:       cfg.MonitorInterval(),
	}, r.pool, analyzer.New(log), r.provider, gw, r.bus, log)

	r.queue.SetPositionOpener(r.monitor)
	r.monitor.SetCandidateSettler(r.queue)
	gw.SetTradeCloser(r.monitor)

	r.rescorer = queue.NewRescorer(r.queue,
		cfg.RescoreInterval(), cfg.RetryCooldown(), cfg.MaxAttempts, log)
	r.summary = monitor.NewSummaryReporter(r.queue, r.pool, r.monitor,
		cfg.SummaryInterval(), log)

	r.listener = detector.NewListener(
		detector.DefaultConfig(cfg.WebSocketURL, chain.PumpFunProgramID.String()),
		r.queue, r.provider, log)

	if r.store != nil {
		recorder := storage.NewCandidateRecorder(r.store, r.queue, log)
		recorder.Attach(r.bus)
	}

	r.exporter = export.New(cfg.DataDir, log)

	log.Info("pipeline initialized",
		zap.Float64("initial_balance", cfg.InitialPoolBalance),
		zap.Float64("position_size", cfg.PositionSize),
		zap.Float64("pool_target", cfg.PoolTarget),
		zap.Int("max_hold_minutes", cfg.MaxHoldTimeMinutes))
	return nil
}

// buildSinks assembles the ledger fan-out: always CSV, plus postgres
// when a DSN is configured.
func (r *Runner) buildSinks(log *zap.Logger) ([]pool.Sink, error) {
	csvSink, err := pool.NewCSVSink(
		filepath.Join(r.cfg.DataDir, "ledger.csv"), 5*time.Second, log)
	if err != nil {
		return nil, fmt.Errorf("ledger csv sink: %w", err)
	}
	r.shutdown.Add("ledger csv", csvSink)
	sinks := []pool.Sink{csvSink}

	if r.cfg.PostgresURL != "" {
		store, err := postgres.NewStorage(r.cfg.PostgresURL, log)
		if err != nil {
			return nil, fmt.Errorf("postgres storage: %w", err)
		}
		if err := store.RunMigrations(); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		r.store = store
		r.shutdown.AddFunc("postgres", store.Close)
		sinks = append(sinks, storage.NewLedgerSink(store))
	}
	return sinks, nil
}

// Run starts every background component. It returns once everything is
// up; WaitForShutdown owns the rest of the process lifetime.
func (r *Runner) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.monitor.Start(runCtx)
	r.rescorer.Start(runCtx)
	r.summary.Start(runCtx)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return r.listener.Run(gctx) })
	r.groupWg = g.Wait

	// Teardown order: stop intake first, drain positions, then flush.
	r.shutdown.AddFunc("exporter", func() error {
		return r.exporter.Export(r.queue.Candidates(), r.ledger.Entries(), r.pool.Snapshot())
	})
	r.shutdown.AddFunc("open positions", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		r.monitor.CloseAll(ctx, "session shutdown")
		return nil
	})
	r.shutdown.AddFunc("summary reporter", func() error { r.summary.Stop(); return nil })
	r.shutdown.AddFunc("rescorer", func() error { r.rescorer.Stop(); return nil })
	r.shutdown.AddFunc("detector", func() error {
		r.cancel()
		return r.groupWg()
	})

	r.logger.Info("pipeline running",
		zap.String("websocket", r.cfg.WebSocketURL),
		zap.String("rpc", r.cfg.RPCList[0]))
	return nil
}

// WaitForShutdown blocks until an interrupt, then tears everything down.
func (r *Runner) WaitForShutdown(ctx context.Context) {
	r.shutdown.Wait(ctx)
}
