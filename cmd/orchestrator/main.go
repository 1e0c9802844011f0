package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cx-tal-miterani/flightpulse/config"
	"github.com/cx-tal-miterani/flightpulse/internal/api"
	"github.com/cx-tal-miterani/flightpulse/internal/bus"
	"github.com/cx-tal-miterani/flightpulse/internal/catalog"
	"github.com/cx-tal-miterani/flightpulse/internal/engine"
	"github.com/cx-tal-miterani/flightpulse/internal/feed"
	"github.com/cx-tal-miterani/flightpulse/internal/generator"
	"github.com/cx-tal-miterani/flightpulse/internal/ingest"
	"github.com/cx-tal-miterani/flightpulse/internal/kafka"
	"github.com/cx-tal-miterani/flightpulse/internal/models"
	"github.com/cx-tal-miterani/flightpulse/internal/report"
	"github.com/cx-tal-miterani/flightpulse/internal/sink"
	"github.com/cx-tal-miterani/flightpulse/internal/store"
	"github.com/cx-tal-miterani/flightpulse/pkg/logger"
	"github.com/cx-tal-miterani/flightpulse/pkg/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	seed := flag.Bool("seed", false, "seed sample flights, passengers, and bookings")
	flag.Parse()

	log := logger.NewLogger()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatal("failed to load config", "path", *configPath, "error", err)
		}
		cfg = loaded
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New("flightpulse", prometheus.DefaultRegisterer)

	// State store
	var st store.Store
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatal("failed to connect to database", "error", err)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			log.Fatal("failed to ping database", "error", err)
		}
		st = store.NewPostgresStore(pool)
		log.Info("using postgres state store")
	} else {
		st = store.NewMemoryStore()
		log.Info("using in-memory state store")
	}

	if *seed {
		flights, passengers, bookings := store.SampleFixtures()
		if err := store.Seed(ctx, st, flights, passengers, bookings); err != nil {
			log.Fatal("failed to seed sample data", "error", err)
		}
		log.Info("seeded sample data", "flights", len(flights), "bookings", len(bookings))
	}

	// Kafka producer for the dead-letter and audit topics
	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
	}

	var reporter report.Reporter
	if producer != nil {
		reporter = report.NewKafkaReporter(producer, cfg.Kafka.DeadLetterTopic, log)
	} else {
		reporter = report.NewLogReporter(log)
	}

	var gen generator.Generator
	if cfg.Generator.Endpoint != "" {
		timeout := time.Duration(cfg.Generator.TimeoutSeconds) * time.Second
		gen = generator.NewLLMGenerator(cfg.Generator.Endpoint, cfg.Generator.Model, timeout, log, m)
		log.Info("using llm message generator", "endpoint", cfg.Generator.Endpoint)
	} else {
		gen = generator.NewTemplateGenerator()
		log.Info("using template message generator")
	}

	b := bus.New(log)

	eng := engine.New(engine.Config{
		Reporter:       reporter,
		Logger:         log,
		Metrics:        m,
		MapConcurrency: cfg.Workflow.MapConcurrency,
	})
	cat := catalog.New(catalog.Config{
		Store:            st,
		Bus:              b,
		Generator:        gen,
		Reporter:         reporter,
		Logger:           log,
		Metrics:          m,
		StoreTimeout:     time.Duration(cfg.Workflow.StoreTimeoutSeconds) * time.Second,
		GeneratorTimeout: time.Duration(cfg.Workflow.GeneratorTimeoutSeconds) * time.Second,
		MapConcurrency:   cfg.Workflow.MapConcurrency,
	})
	for _, def := range cat.Definitions() {
		eng.Register(def)
	}

	// Each trigger runs its own execution; the bus dispatch goroutine is
	// released immediately.
	for _, detailType := range models.TriggerDetailTypes() {
		b.Subscribe(detailType, func(ctx context.Context, evt bus.Event) {
			go func() {
				if err := eng.HandleEvent(ctx, evt); err != nil {
					log.Warn("execution ended in failure", "detailType", evt.DetailType, "error", err)
				}
			}()
		})
	}

	sink.New(log, producer, cfg.Kafka.AuditTopic).Attach(b)

	hub := feed.NewHub(log)
	hub.AttachBus(b)
	go hub.Run(ctx)

	// Ingest front door
	if len(cfg.Kafka.Brokers) > 0 {
		var dedup ingest.Deduper
		if cfg.Redis.Addr != "" {
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer client.Close()
			dedup = ingest.NewRedisDeduper(client, 24*time.Hour)
		}

		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.OperationsTopic)
		defer consumer.Close()

		ing := ingest.New(consumer, st, b, dedup, log, m)
		go func() {
			if err := ing.Run(ctx); err != nil && ctx.Err() == nil {
				log.Fatal("ingest consumer failed", "error", err)
			}
		}()
		log.Info("ingest consumer started", "topic", cfg.Kafka.OperationsTopic)
	}

	// HTTP read API
	srv := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.SetupRouter(api.NewHandler(st, log), hub),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info("api server starting", "address", cfg.HTTP.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	log.Info("server stopped")
}
