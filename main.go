/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-20
 */
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/duocall/relay_core/pkg/relay"
	"github.com/duocall/relay_core/pkg/utils"
)

func main() {
	cfg, err := relay.LoadConfig()
	if err != nil {
		utils.Error("load config: %v", err)
		os.Exit(1)
	}

	logger := utils.GetLogger()
	logger.SetLevel(utils.ParseLogLevel(cfg.LogLevel))

	engine, err := relay.NewEngine(cfg, logger)
	if err != nil {
		logger.Fatal("start media engine: %v", err)
	}

	// Router and transport state live inside the worker; if it dies there
	// is nothing to salvage. Exit and let the supervisor restart us.
	engine.OnDied(func(err error) {
		logger.Fatal("media worker died, terminating relay: %v", err)
	})

	app := NewApp(cfg, engine, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go app.Hub().Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", app.Hub().ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(app.orchestrator.StatsSnapshot())
	})

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("relay listening on %s", cfg.ListenAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("http server: %v", err)
	}

	engine.Close()
	logger.Info("relay shut down")
}
