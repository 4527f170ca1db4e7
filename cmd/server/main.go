package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DoyleJ11/arcade-sessions/internal/catalog"
	"github.com/DoyleJ11/arcade-sessions/internal/config"
	"github.com/DoyleJ11/arcade-sessions/internal/dispatch"
	"github.com/DoyleJ11/arcade-sessions/internal/httpapi"
	"github.com/DoyleJ11/arcade-sessions/internal/hub"
	"github.com/DoyleJ11/arcade-sessions/internal/ledger"
	"github.com/DoyleJ11/arcade-sessions/internal/logging"
	"github.com/DoyleJ11/arcade-sessions/internal/render"
	"github.com/DoyleJ11/arcade-sessions/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "arcade-sessions", cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		if cat, err = catalog.Load(cfg.CatalogPath); err != nil {
			return err
		}
	}

	led, closeLedger, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLedger()

	h := hub.NewHub(ctx, logger.Named("hub"))
	defer h.Close()

	dcfg := dispatch.DefaultConfig()
	dcfg.SpinInactivity = cfg.SpinInactivity
	dcfg.TurnTimeout = cfg.TurnTimeout
	dcfg.ChallengeTTL = cfg.ChallengeTTL
	dcfg.WordMaxWrong = cfg.WordMaxWrong
	dcfg.DuelReward = cfg.DuelReward
	dcfg.WordReward = cfg.WordReward
	dcfg.Paytable = cat.Paytable()

	d := dispatch.New(dcfg, led,
		dispatch.WithLogger(logger.Named("dispatch")),
		dispatch.WithPresenter(h),
		dispatch.WithRenderer(render.NewText(render.WithGlyphs(cat.Glyphs()))),
		dispatch.WithWords(cat),
	)
	defer d.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(d, h, logger.Named("http")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("ledger", cfg.Ledger))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	g.Go(func() error {
		t := time.NewTicker(cfg.SweepInterval)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				if n := d.Sweep(gctx, cfg.IdleTimeout); n > 0 {
					logger.Info("swept idle sessions", zap.Int("count", n))
				}
			}
		}
	})
	return g.Wait()
}

func openLedger(ctx context.Context, cfg config.Config, logger *zap.Logger) (dispatch.Ledger, func(), error) {
	switch cfg.Ledger {
	case config.LedgerPostgres:
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		l := ledger.NewGorm(db, cfg.OpeningBalance)
		if err := l.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		logger.Info("ledger ready", zap.String("backend", "postgres"))
		return l, closeDB, nil

	case config.LedgerRedis:
		client, err := ledger.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("ledger ready", zap.String("backend", "redis"), zap.String("addr", cfg.RedisAddr))
		return ledger.NewRedis(client, cfg.OpeningBalance), func() { _ = client.Close() }, nil
	}
	logger.Warn("using in-memory ledger; balances reset on restart")
	return ledger.NewMemory(cfg.OpeningBalance), func() {}, nil
}
