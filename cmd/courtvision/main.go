// Command courtvision runs the calibration and court-relative tracking
// engine behind an HTTP API. Pose samples arrive over HTTP, positions
// and occupancy statistics are served back out, and finished sessions
// are recorded in SQLite.
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

	"github.com/coenhallie/video-annotation-sub003/internal/api"
	"github.com/coenhallie/video-annotation-sub003/internal/calibration"
	"github.com/coenhallie/video-annotation-sub003/internal/config"
	"github.com/coenhallie/video-annotation-sub003/internal/court"
	"github.com/coenhallie/video-annotation-sub003/internal/pipeline"
	"github.com/coenhallie/video-annotation-sub003/internal/trackdb"
	"github.com/coenhallie/video-annotation-sub003/internal/version"
)

var (
	listen        = flag.String("listen", ":8080", "Listen address")
	dbPath        = flag.String("db", "courtvision.db", "SQLite database path (empty disables persistence)")
	configPath    = flag.String("config", "", "Tuning config path (defaults to the bundled tuning.defaults.json)")
	courtType     = flag.String("court", "badminton", "Court type (tennis or badminton)")
	migrationsDir = flag.String("migrations", "migrations", "Database migrations directory")
	decayEvery    = flag.Duration("decay-interval", 0, "Apply occupancy decay at this interval (0 disables)")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	var cfg *config.TuningConfig
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	} else {
		cfg = config.MustLoadDefaultConfig()
	}

	model, err := court.ModelFor(court.Type(*courtType))
	if err != nil {
		log.Fatalf("Unknown court type %q: %v", *courtType, err)
	}

	var db *trackdb.DB
	if *dbPath != "" {
		db, err = trackdb.Open(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
		if err := db.MigrateUp(*migrationsDir); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	} else {
		log.Print("[CourtVision] Persistence disabled (-db \"\")")
	}

	cal := calibration.NewSession(model, cfg)
	session := pipeline.NewSession(model, cfg)
	srv := api.NewServer(cal, session, db, cfg)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional occupancy decay loop so long-running sessions favour
	// recent movement over stale footprints.
	if *decayEvery > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(*decayEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					session.Decay()
				case <-ctx.Done():
					log.Print("[CourtVision] Decay routine terminated")
					return
				}
			}
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(srv.ServeMux()),
		}

		go func() {
			log.Printf("[CourtVision] %s (%s) listening on %s (court=%s)", version.Version, version.GitSHA, *listen, model.Type)
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
	log.Printf("Graceful shutdown complete")
}
