package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camuig/pie-watch/internal/broker"
	"github.com/camuig/pie-watch/internal/config"
	"github.com/camuig/pie-watch/internal/logger"
	"github.com/camuig/pie-watch/internal/portfolio"
	"github.com/camuig/pie-watch/internal/scheduler"
	"github.com/camuig/pie-watch/internal/storage"
	"github.com/camuig/pie-watch/internal/telegram"
	"github.com/camuig/pie-watch/internal/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Init logger
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting pie-watch", "interval", cfg.RefreshInterval().String(), "state", cfg.Persist.Path)

	// Restore state; a missing or corrupt file starts empty
	store, err := portfolio.Load(cfg.Persist.Path)
	if err != nil {
		log.Warn("load pies, starting empty", "path", cfg.Persist.Path, "error", err)
	} else {
		log.Info("pies loaded", "count", store.Len())
	}

	// Init database
	var recorder scheduler.Recorder = scheduler.NopRecorder{}
	var repo *storage.Repository
	if cfg.Database.Enabled {
		db, err := storage.NewDatabase(cfg.Database.Path)
		if err != nil {
			log.Error("database init failed", "error", err)
			os.Exit(1)
		}
		repo = storage.NewRepository(db)
		recorder = repo
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init services
	client := broker.NewClient(cfg.Trading212.BaseURL, cfg.Trading212.Token, cfg.RequestTimeout(), log)
	notifier := telegram.NewNotifier(cfg, log)
	sched := scheduler.NewScheduler(client, store, recorder, notifier, cfg.RefreshInterval(), log)
	sched.SetFailureStreak(cfg.Telegram.FailureStreak)
	saver := scheduler.NewSaver(store, cfg.Persist.Path, log)

	jobs := scheduler.NewJobs(log)
	if err := jobs.RegisterSaver(cfg.Persist.Schedule, saver); err != nil {
		log.Error("jobs init failed", "error", err)
		os.Exit(1)
	}
	if repo != nil {
		if err := jobs.RegisterPrune("@daily", repo, cfg.Retention()); err != nil {
			log.Error("jobs init failed", "error", err)
			os.Exit(1)
		}
	}

	// Start scheduler in goroutine
	schedDone := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(schedDone)
	}()
	jobs.Start()

	var webServer *web.Server
	if cfg.Web.Enabled {
		history := web.NewHistory(cfg.HistoryWindow())
		go history.Sample(ctx, store, cfg.SampleInterval())

		var logs web.RefreshLogReader
		if repo != nil {
			logs = repo
		}
		webServer = web.NewServer(store, logs, sched, history, cfg, log)
		go func() {
			if err := webServer.Start(); err != nil {
				log.Error("web server error", "error", err)
			}
		}()
	}

	if notifier.Enabled() {
		notifier.NotifyStatus(fmt.Sprintf("🥧 pie-watch started, tracking %d pies", store.Len()))
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", "signal", sig.String())

	// Graceful shutdown
	cancel()
	jobs.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if webServer != nil {
		if err := webServer.Shutdown(shutdownCtx); err != nil {
			log.Error("web server shutdown error", "error", err)
		}
	}

	// let an in-flight cycle land before the final save
	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		log.Warn("refresh cycle still running, saving current state")
	}
	saver.Save()

	if notifier.Enabled() {
		notifier.NotifyStatus("🛑 pie-watch stopped")
	}
	log.Info("pie-watch stopped")
}
