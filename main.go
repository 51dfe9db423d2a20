package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sicney/eve-mo/internal/api"
	"github.com/sicney/eve-mo/internal/config"
	"github.com/sicney/eve-mo/internal/db"
	"github.com/sicney/eve-mo/internal/engine"
	"github.com/sicney/eve-mo/internal/esi"
	"github.com/sicney/eve-mo/internal/logger"
	"github.com/sicney/eve-mo/internal/report"
	"github.com/sicney/eve-mo/internal/scheduler"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "eve-mo.yaml", "path to the YAML config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: eve-mo [-config file] [run|serve]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	mode := "run"
	if flag.NArg() > 0 {
		mode = flag.Arg(0)
	}
	if mode != "run" && mode != "serve" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	logger.Banner(version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("DB", fmt.Sprintf("Failed to open database: %v", err))
		os.Exit(1)
	}
	defer database.Close()

	// scheduled runs in one process reuse market groups until ESI expires them
	client := esi.NewGroupCache(esi.NewClient(cfg.ESI))
	analyzer := engine.NewAnalyzer(cfg, client, database)

	if mode == "serve" {
		err = serve(ctx, cfg, database, analyzer)
	} else {
		err = runOnce(ctx, cfg, analyzer)
	}
	if err != nil {
		logger.Error("Main", err.Error())
		database.Close()
		os.Exit(1)
	}
}

func runOnce(ctx context.Context, cfg *config.Config, analyzer *engine.Analyzer) error {
	logger.Section("Analysis")
	logger.Stats("Regions", cfg.Market.RegionIDs)
	logger.Stats("Root groups", cfg.Market.RootGroups)
	logger.Stats("Window", cfg.Analysis.Window)
	logger.Stats("Threshold", cfg.Analysis.ZThreshold)
	logger.Stats("Ranking", cfg.Analysis.Ranking)

	res, err := analyzer.Run(ctx, func(msg string) { logger.Info("Run", msg) })
	if err != nil {
		return err
	}

	if err := report.PrintSignals(os.Stdout, "BUY CANDIDATES", engine.Buy, res.Buy); err != nil {
		return fmt.Errorf("print buy list: %w", err)
	}
	if err := report.PrintSignals(os.Stdout, "SELL CANDIDATES", engine.Sell, res.Sell); err != nil {
		return fmt.Errorf("print sell list: %w", err)
	}

	if err := report.Export(cfg.Export.BuyPath, engine.Buy, res.Buy); err != nil {
		return fmt.Errorf("export buy list: %w", err)
	}
	logger.Success("Export", fmt.Sprintf("BUY list written to %s", cfg.Export.BuyPath))
	if cfg.Export.SellPath != "" {
		if err := report.Export(cfg.Export.SellPath, engine.Sell, res.Sell); err != nil {
			return fmt.Errorf("export sell list: %w", err)
		}
		logger.Success("Export", fmt.Sprintf("SELL list written to %s", cfg.Export.SellPath))
	}
	logger.Stats("Duration", res.Summary.Duration.Round(time.Millisecond))
	return nil
}

func serve(ctx context.Context, cfg *config.Config, database *db.DB, analyzer *engine.Analyzer) error {
	srv := api.NewServer(cfg, database)
	sched := scheduler.New(ctx, analyzer, srv.SetResult)
	srv.SetTrigger(sched.RunNow)

	if cfg.Server.Schedule != "" {
		if err := sched.Register(cfg.Server.Schedule); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()
	if cfg.Server.RunOnStart {
		sched.RunNow()
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Server(cfg.Server.Listen)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Server", "Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
