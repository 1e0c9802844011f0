// Package catalog holds the concrete workflow definitions the engine
// interprets: delay, cancellation, and gate change, plus the shared
// booking-processing fan-out they are built from.
package catalog

import (
	"time"

	"github.com/cx-tal-miterani/flightpulse/internal/bus"
	"github.com/cx-tal-miterani/flightpulse/internal/engine"
	"github.com/cx-tal-miterani/flightpulse/internal/generator"
	"github.com/cx-tal-miterani/flightpulse/internal/report"
	"github.com/cx-tal-miterani/flightpulse/internal/store"
	"github.com/cx-tal-miterani/flightpulse/pkg/logger"
	"github.com/cx-tal-miterani/flightpulse/pkg/metrics"
)

// Source identifies events published by the orchestrator.
const Source = "flightpulse.orchestrator"

const (
	// DefaultStoreTimeout bounds individual state store calls.
	DefaultStoreTimeout = 5 * time.Second
	// DefaultGeneratorTimeout allows for LLM-backed generation latency.
	DefaultGeneratorTimeout = 35 * time.Second
)

// Config carries the dependencies the workflow steps close over.
type Config struct {
	Store     store.Store
	Bus       *bus.Bus
	Generator generator.Generator
	Reporter  report.Reporter
	Logger    logger.Logger
	Metrics   *metrics.Metrics

	StoreTimeout     time.Duration
	GeneratorTimeout time.Duration
	MapConcurrency   int // per-item fan-out bound for ProcessBookings; 0 uses the engine default
}

// Catalog builds workflow definitions from shared dependencies.
type Catalog struct {
	store            store.Store
	bus              *bus.Bus
	generator        generator.Generator
	reporter         report.Reporter
	log              logger.Logger
	metrics          *metrics.Metrics
	storeTimeout     time.Duration
	generatorTimeout time.Duration
	mapConcurrency   int
}

// New creates a Catalog.
func New(cfg Config) *Catalog {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.GeneratorTimeout <= 0 {
		cfg.GeneratorTimeout = DefaultGeneratorTimeout
	}
	return &Catalog{
		store:            cfg.Store,
		bus:              cfg.Bus,
		generator:        cfg.Generator,
		reporter:         cfg.Reporter,
		log:              cfg.Logger,
		metrics:          cfg.Metrics,
		storeTimeout:     cfg.StoreTimeout,
		generatorTimeout: cfg.GeneratorTimeout,
		mapConcurrency:   cfg.MapConcurrency,
	}
}

// Definitions returns every workflow definition for engine registration.
func (c *Catalog) Definitions() []*engine.Definition {
	return []*engine.Definition{
		c.Delay(),
		c.Cancellation(),
		c.GateChange(),
	}
}
