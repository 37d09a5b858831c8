// Command simd supervises a simulation engine instance: it loads scene and
// robot assets, drives the simulated components at fixed sub-rates and
// exposes an HTTP control surface for lifecycle operations.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/benchbot-data/simd/internal/api"
	"github.com/benchbot-data/simd/internal/config"
	"github.com/benchbot-data/simd/internal/db"
	"github.com/benchbot-data/simd/internal/engine"
	"github.com/benchbot-data/simd/internal/sim"
)

var (
	listen     = flag.String("listen", "", "Listen address (overrides config)")
	configPath = flag.String("config", "", "Path to JSON config file")
	dbPath     = flag.String("db", "", "Path to the sqlite session store (overrides config)")
	devMode    = flag.Bool("dev", false, "Run against an in-memory mock engine instead of the bridge")
)

func main() {
	flag.Parse()

	cfg := &config.Config{}
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	addr := cfg.GetListen()
	if *listen != "" {
		addr = *listen
	}
	storePath := cfg.GetDBPath()
	if *dbPath != "" {
		storePath = *dbPath
	}

	var driver engine.Driver
	if *devMode {
		log.Print("dev mode: using mock engine driver")
		driver = engine.NewMockDriver()
	} else {
		driver = engine.NewBridgeDriver(cfg.GetBridgeURL(), nil)
	}

	store, err := db.NewDB(storePath)
	if err != nil {
		log.Fatalf("failed to open session store: %v", err)
	}
	defer store.Close()

	daemon := sim.New(sim.Options{
		Driver:             driver,
		Recorder:           store,
		DirtyMarkerPath:    cfg.GetDirtyMarkerPath(),
		DirtyEpsilonDist:   cfg.GetDirtyEpsilonDist(),
		DirtyEpsilonYawDeg: cfg.GetDirtyEpsilonYawDeg(),
		PollInterval:       cfg.GetPollInterval(),
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Scheduler loop. Owns the orderly instance teardown on shutdown.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := daemon.Run(ctx); err != nil {
			log.Printf("scheduler terminated with error: %v", err)
		}
		log.Print("scheduler routine stopped")
	}()

	// Control surface.
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(daemon, store).ServeMux()
		server := &http.Server{
			Addr:    addr,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("control surface listening on %s", addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("graceful shutdown complete")
}
