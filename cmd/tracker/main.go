package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"fleet-track/internal/config"
	"fleet-track/internal/fanout"
	"fleet-track/internal/geocode"
	"fleet-track/internal/metrics"
	"fleet-track/internal/pipeline"
	"fleet-track/internal/receiver"
	"fleet-track/internal/store"
	"fleet-track/internal/sweep"
	transporthttp "fleet-track/internal/transport/http"
	"fleet-track/internal/transport/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file — using system environment variables")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, cfg)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	redisClient, err := store.NewRedisClient(ctx, cfg)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()

	vehicles := store.NewPGVehicleStore(pool)
	trips := store.NewPGTripStore(pool)
	positions := store.NewPGPositionStore(pool)
	alerts := store.NewPGAlertStore(pool)
	rules := store.NewPGAlertRuleStore(pool)
	geofences := store.NewPGGeofenceStore(pool)
	users := store.NewPGUserStore(pool)

	live := store.NewLiveStateStore(redisClient)
	pub := fanout.NewRedisPublisher(redisClient)
	geocoder := geocode.NewClient(cfg.GeocodeURL, cfg.GeocodeTimeout)

	processor := pipeline.NewProcessor(
		vehicles,
		pipeline.NewTripTracker(trips, positions, cfg.PositionInterval),
		pipeline.NewGeofenceEngine(geofences),
		pipeline.NewAlertEvaluator(rules, alerts, users, geocoder, pub),
		live,
		pub,
	)

	rcv := receiver.New(cfg.TCPAddr, cfg.TCPHandshake, cfg.ReconnectDelay, cfg.MaxReconnects, processor.HandleFrame)
	go func() {
		err := rcv.Run(ctx)
		if errors.Is(err, receiver.ErrRetriesExhausted) {
			// terminal for ingestion only; sweeps and the HTTP surface stay up
			log.Printf("[TCP] ingestion stopped permanently, operator intervention required")
			return
		}
		if err != nil && ctx.Err() == nil {
			log.Printf("[TCP] receiver stopped: %v", err)
		}
	}()

	sweeper := sweep.New(trips, positions, vehicles, processor.LockVehicle,
		cfg.TripIdleAfter, cfg.VehicleStale, cfg.SweepInterval)
	go sweeper.Run(ctx)

	hub := ws.NewHub(redisClient)
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", transporthttp.NewHealthHandler(pool, redisClient).Handle)
	mux.HandleFunc("/metrics", metrics.HandleMetrics)
	mux.HandleFunc("/ws", hub.HandleWS)

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: mux}
	go func() {
		log.Printf("listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")
	_ = srv.Shutdown(context.Background())
}
