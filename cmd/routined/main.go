// Command routined runs the routine sync service: the durable record store,
// the outbox dispatcher feeding the change topic, and the HTTP facade that
// non-embedded shells talk to.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/routine/internal/api"
	"example.com/routine/internal/auth"
	"example.com/routine/internal/channel"
	"example.com/routine/internal/config"
	"example.com/routine/internal/domain"
	"example.com/routine/internal/outbox"
	"example.com/routine/internal/persistence/memory"
	persistence "example.com/routine/internal/persistence/postgres"
	httptransport "example.com/routine/internal/transport/http"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	template := domain.DefaultTemplate()

	var store channel.RecordStore
	var dispatcher *outbox.Dispatcher

	switch cfg.StoreDriver {
	case "memory":
		store = memory.NewStore()
		log.Println("running with in-memory store; records will not survive a restart")
	default:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pool.Close()

		for _, stmt := range persistence.Schema() {
			if _, err := pool.Exec(ctx, stmt); err != nil {
				log.Fatalf("failed to apply schema: %v", err)
			}
		}

		repo := persistence.NewRepository(pool)
		store = repo

		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		dispatcher = outbox.NewDispatcher(pool, producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
		go dispatcher.Start(ctx)
	}

	handler := api.NewHandler(template, store)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Basic request logger
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, func(r *http.Request) bool {
		return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
	}, api.RequiredScopes)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address: cfg.HTTPAddress,
	}, authMiddleware.Wrap(logger(mux)))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("routined listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
}
