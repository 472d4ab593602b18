package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"roomclerk/internal/catalog"
	"roomclerk/internal/config"
	"roomclerk/internal/dialog"
	"roomclerk/internal/httpapi"
	"roomclerk/internal/interpreter"
	"roomclerk/internal/ledger"
	"roomclerk/internal/observability"
	"roomclerk/internal/resolver"
	"roomclerk/internal/sessionstore"
	"roomclerk/internal/transport"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv load skipped: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	cat, err := catalog.NewCatalog(ctx, cfg.DatabaseURL, cfg.RoomsFile)
	if err != nil {
		log.Fatalf("catalog init failed: %v", err)
	}
	defer cat.Close()

	led, err := ledger.NewLedger(ctx, cfg.DatabaseURL, cfg.TurnoverBuffer)
	if err != nil {
		log.Fatalf("ledger init failed: %v", err)
	}
	defer led.Close()

	store, err := sessionstore.NewStore(cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		log.Fatalf("session store init failed: %v", err)
	}
	defer store.Close()

	interp, err := interpreter.New(interpreter.Config{
		Mode:        cfg.InterpreterMode,
		OpenAIKey:   cfg.OpenAIKey,
		OpenAIModel: cfg.OpenAIModel,
		Timeout:     cfg.InterpreterTimeout,
	})
	if err != nil {
		log.Fatalf("interpreter init failed: %v", err)
	}

	res := resolver.New(cat, led, cfg.TurnoverBuffer)
	engine := dialog.NewEngine(interp, res, led, metrics, dialog.EngineOptions{
		Location:    cfg.Location(),
		SuggestionN: cfg.SuggestionN,
	})
	service := dialog.NewService(store, engine, metrics)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	if mem, ok := store.(*sessionstore.InMemoryStore); ok {
		mem.SetExpireHook(func(_ dialog.Session) {
			metrics.ActiveSessions.Dec()
		})
		mem.StartJanitor(runCtx, time.Minute)
	}

	var bus *transport.NATSTransport
	if cfg.NATSURL != "" {
		bus, err = transport.NewNATSTransport(cfg.NATSURL, cfg.NATSSubject, service, cfg.InterpreterTimeout+30*time.Second)
		if err != nil {
			log.Fatalf("nats transport init failed: %v", err)
		}
		if err := bus.Start(); err != nil {
			log.Fatalf("nats subscribe failed: %v", err)
		}
		defer bus.Close()
	}

	api := httpapi.New(cfg, service, cat, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
