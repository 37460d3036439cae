// servimap-feed-service
//
// Home-feed loading pipeline for the ServiMap marketplace.
// Exposes a REST API used by the mobile apps to implement:
//   - POST /feed           — start a load cycle (optimistic fetch + snapshot paint)
//   - POST /feed/location  — deliver the resolved location, reconcile or correct
//   - POST /feed/images    — report card images ready (asset readiness gate)
//   - POST /feed/more      — fetch the next page of the committed feed
//   - GET  /feed           — poll the current feed state
//
// Commits respect the asset readiness gate with a hard timeout, sparse
// results gain a wide-radius secondary tier for eligible customers, and
// committed pages are snapshotted in Redis for next-launch warm starts.
// Publishes EVENT_FEED_COMMITTED to Redis for Gateway SSE forward.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"servimap/feed-service/internal/config"
	"servimap/feed-service/internal/db"
	"servimap/feed-service/internal/feed"
	"servimap/feed-service/internal/httpserver"
	"servimap/feed-service/internal/metrics"
	"servimap/feed-service/internal/search"
	"servimap/feed-service/internal/snapshot"
	"servimap/feed-service/internal/warmer"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[feed-service] Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[feed-service] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[feed-service] PostgreSQL: %v", err)
	}
	defer pool.Close()
	log.Println("[feed-service] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[feed-service] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[feed-service] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[feed-service] Redis connected ✓")

	// ── Wiring ───────────────────────────────────────────────────────────────
	var client search.Client = &search.Retrying{Inner: search.NewStore(pool)}
	snapshots := snapshot.NewRedisStore(rdb, time.Duration(cfg.SnapshotTTLMinutes)*time.Minute)
	expander := &feed.Expander{
		Client:      client,
		RadiusKm:    cfg.ExpandedRadiusKm,
		Eligibility: feed.CustomerOnly{},
	}
	rules := feed.Rules{
		SparseThreshold: cfg.SparseThreshold,
		VisibleBatch:    cfg.VisibleBatch,
	}

	sessions := httpserver.NewSessions(func() *feed.Controller {
		return feed.NewController(feed.Config{
			Client:      client,
			Snapshots:   snapshots,
			Expander:    expander,
			Redis:       rdb,
			Rules:       rules,
			PageSize:    cfg.PageSize,
			GateTimeout: time.Duration(cfg.GateTimeoutMs) * time.Millisecond,
		})
	})

	tracker := warmer.NewTracker(rdb, 0)

	// ── Snapshot warmer ──────────────────────────────────────────────────────
	w := warmer.New(tracker, client, snapshots, cfg.WarmTopN, cfg.WarmIntervalMinutes)
	if err := w.Start(ctx); err != nil {
		log.Fatalf("[feed-service] Warmer: %v", err)
	}
	defer w.Stop()

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", metrics.Handler())

	h := httpserver.NewHandler(sessions, tracker)
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[feed-service] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[feed-service] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[feed-service] Shutting down…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[feed-service] Shutdown error: %v", err)
	}
	log.Println("[feed-service] Stopped.")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "feed-service",
		"version": version,
	})
}
