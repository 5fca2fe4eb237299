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

	"go-candor/internal/api"
	"go-candor/internal/casestore"
	"go-candor/internal/config"
	"go-candor/internal/db"
	"go-candor/internal/llm"
	"go-candor/internal/logging"
	redisdb "go-candor/internal/redis"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config.json")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log = log.Named("main")
	if err := db.Init(cfg, log); err != nil {
		return fmt.Errorf("db init: %w", err)
	}
	rdb := redisdb.NewClient(cfg)
	defer rdb.Close()

	threshold := cfg.Breaker.FailureThreshold
	if threshold <= 0 {
		threshold = 5
	}
	openFor := time.Duration(cfg.Breaker.OpenSeconds) * time.Second
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	client := llm.NewClient(120*time.Second, llm.NewBreaker(threshold, openFor, log), log)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.SetupRouter(cfg, rdb, client, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting server", zap.String("addr", srv.Addr), zap.String("subpath", cfg.Server.Subpath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return casestore.NewRetentionWorker(db.DB, cfg.SignalRetention(), cfg.RetentionInterval(), log).Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
