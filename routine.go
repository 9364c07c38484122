// Package routine is the embedded sync engine for daily routine tracking.
// A UI shell constructs an Engine, opens a Session, and renders the views the
// session pushes to its observer; everything else (merge, debounce, live
// subscription, identity) happens inside.
package routine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"

	"example.com/routine/internal/auth"
	"example.com/routine/internal/channel"
	"example.com/routine/internal/config"
	"example.com/routine/internal/consumer"
	"example.com/routine/internal/domain"
	"example.com/routine/internal/identity"
	"example.com/routine/internal/outbox"
	"example.com/routine/internal/persistence/memory"
	"example.com/routine/internal/persistence/postgres"
	"example.com/routine/internal/session"
)

// Re-exported aliases so shells only import this package.
type (
	ActivityTemplate = domain.ActivityTemplate
	ActivityRecord   = domain.ActivityRecord
	DailySchedule    = domain.DailySchedule
	DateKey          = domain.DateKey
	View             = session.View
	Session          = session.Session
)

// DefaultTemplate returns the built-in routine catalog.
func DefaultTemplate() []ActivityTemplate { return domain.DefaultTemplate() }

// Today returns the current UTC date key.
func Today() DateKey { return domain.Today() }

// Engine bundles the record store, the change feed, and the identity gate for
// one shell process. Sessions created from the same engine share them.
type Engine struct {
	template []domain.ActivityTemplate
	channel  channel.Channel
	gate     *identity.Gate
	window   time.Duration

	pool   *pgxpool.Pool
	reader *kafka.Reader
	cancel context.CancelFunc
}

// NewMemoryEngine wires an engine over the in-memory store, for local dev and
// tests. Subscriptions still see live cross-session changes within the
// process.
func NewMemoryEngine(cfg config.Config) *Engine {
	return &Engine{
		template: domain.DefaultTemplate(),
		channel:  memory.NewStore(),
		gate:     newGate(cfg),
		window:   cfg.DebounceWindow,
	}
}

// NewPostgresEngine wires an engine over Postgres with the Kafka change feed.
// The feed consumer runs until Close.
func NewPostgresEngine(ctx context.Context, cfg config.Config) (*Engine, error) {
	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	repo := postgres.NewRepository(pool)
	hub := consumer.NewHub()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.KafkaGroupID,
		Topic:           outbox.TopicRecordUpdates,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		ReadLagInterval: -1,
	})
	proc := consumer.NewProcessor(reader, hub)

	feedCtx, cancel := context.WithCancel(ctx)
	go func() {
		if err := proc.Run(feedCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("change feed stopped with error: %v", err)
		}
	}()

	return &Engine{
		template: domain.DefaultTemplate(),
		channel:  channel.NewStoreChannel(repo, hub),
		gate:     newGate(cfg),
		window:   cfg.DebounceWindow,
		pool:     pool,
		reader:   reader,
		cancel:   cancel,
	}, nil
}

func newGate(cfg config.Config) *identity.Gate {
	return identity.NewGate(identity.Config{
		SessionIdentity: cfg.SessionIdentity,
		Token:           cfg.SessionToken,
		Auth:            auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer},
	})
}

// NewSession opens a session over the engine's shared store and identity.
func (e *Engine) NewSession(opts ...session.Option) *session.Session {
	if e.window > 0 {
		opts = append([]session.Option{session.WithDebounceWindow(e.window)}, opts...)
	}
	return session.NewSession(e.template, e.channel, e.gate, opts...)
}

// Close stops the change feed and releases connections.
func (e *Engine) Close() {
	if e.cancel != nil {
		e.cancel()
	}
	if e.reader != nil {
		_ = e.reader.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
}
