// Package ingest is the event front door: it consumes raw operational
// events from Kafka, validates and classifies them into typed trigger
// events, enriches them from the state store, and publishes them on the
// bus for the workflow engine.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cx-tal-miterani/flightpulse/internal/bus"
	"github.com/cx-tal-miterani/flightpulse/internal/kafka"
	"github.com/cx-tal-miterani/flightpulse/internal/models"
	"github.com/cx-tal-miterani/flightpulse/internal/store"
	"github.com/cx-tal-miterani/flightpulse/pkg/logger"
	"github.com/cx-tal-miterani/flightpulse/pkg/metrics"
	kafkago "github.com/segmentio/kafka-go"
)

// Source identifies events classified by the ingest consumer.
const Source = "flightpulse.ingest"

// Ingestor turns raw operational events into classified triggers.
type Ingestor struct {
	consumer *kafka.Consumer
	store    store.Store
	bus      *bus.Bus
	dedup    Deduper // nil disables deduplication
	log      logger.Logger
	metrics  *metrics.Metrics
}

// New creates an Ingestor. consumer may be nil when records are fed in
// directly via HandleRecord (tests, replay tooling).
func New(consumer *kafka.Consumer, s store.Store, b *bus.Bus, dedup Deduper, log logger.Logger, m *metrics.Metrics) *Ingestor {
	return &Ingestor{
		consumer: consumer,
		store:    s,
		bus:      b,
		dedup:    dedup,
		log:      log,
		metrics:  m,
	}
}

// Run consumes the operations topic until ctx is cancelled. Individual bad
// records are logged and skipped; only consumer-level errors end the loop.
func (i *Ingestor) Run(ctx context.Context) error {
	return i.consumer.Consume(ctx, func(ctx context.Context, msg kafkago.Message) error {
		if err := i.HandleRecord(ctx, msg.Value); err != nil {
			i.log.Warn("skipping operational event", "offset", msg.Offset, "error", err)
		}
		return nil
	})
}

// HandleRecord classifies one raw event and publishes the trigger.
func (i *Ingestor) HandleRecord(ctx context.Context, data []byte) error {
	var raw models.RawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode operational event: %w", err)
	}

	if i.dedup != nil && raw.EventID != "" {
		seen, err := i.dedup.Seen(ctx, raw.EventID)
		if err != nil {
			i.log.Warn("dedup check failed, processing anyway", "eventId", raw.EventID, "error", err)
		} else if seen {
			i.log.Info("dropping duplicate event", "eventId", raw.EventID, "eventType", raw.EventType)
			return nil
		}
	}

	detailType, detail, err := i.classify(ctx, raw)
	if err != nil {
		return err
	}

	i.log.Info("classified operational event",
		"eventId", raw.EventID,
		"eventType", raw.EventType,
		"detailType", detailType,
	)
	i.metrics.EventsIngested.WithLabelValues(detailType).Inc()
	i.bus.Publish(ctx, Source, detailType, detail)
	return nil
}

func (i *Ingestor) classify(ctx context.Context, raw models.RawEvent) (string, map[string]any, error) {
	flightID, _ := raw.Payload["flight_id"].(string)
	if flightID == "" {
		return "", nil, fmt.Errorf("event %s has no flight_id", raw.EventID)
	}

	detail := map[string]any{
		"event_id":  raw.EventID,
		"flight_id": flightID,
		"timestamp": eventTimestamp(raw),
	}

	switch raw.EventType {
	case models.RawEventFlightDelay:
		delayMinutes := intField(raw.Payload, "delay_minutes")
		category := CategorizeDelay(delayMinutes)

		detail["delay_minutes"] = delayMinutes
		detail["delay_category"] = category.Label()
		copyFields(detail, raw.Payload, "reason", "reason_detail", "new_departure", "new_arrival")
		i.enrich(ctx, flightID, detail)
		return category.DetailType(), detail, nil

	case models.RawEventFlightCancelled:
		copyFields(detail, raw.Payload, "reason", "reason_detail", "rebooking_priority")
		i.enrich(ctx, flightID, detail)
		return models.DetailCancelled, detail, nil

	case models.RawEventGateChange:
		copyFields(detail, raw.Payload, "old_gate", "new_gate", "terminal_change")
		return models.DetailGateChange, detail, nil

	default:
		return "", nil, fmt.Errorf("unknown event type %q", raw.EventType)
	}
}

// enrich adds flight details and the affected-passenger count. Enrichment
// is best effort: the workflow re-reads what it needs anyway.
func (i *Ingestor) enrich(ctx context.Context, flightID string, detail map[string]any) {
	item, err := i.store.Get(ctx, store.FlightPK(flightID), store.MetadataSK)
	if err != nil {
		i.log.Warn("failed to enrich flight details", "flightId", flightID, "error", err)
	} else {
		var flight models.Flight
		if err := store.UnmarshalAttrs(item.Attrs, &flight); err == nil {
			detail["flight_details"] = map[string]any{
				"origin":             flight.Origin,
				"destination":        flight.Destination,
				"original_departure": flight.ScheduledDeparture.UTC().Format(time.RFC3339),
			}
		}
	}

	refs, err := i.store.Query(ctx, store.FlightPK(flightID), store.BookingKeyPrefix)
	if err != nil {
		i.log.Warn("failed to count affected passengers", "flightId", flightID, "error", err)
		return
	}
	detail["affected_passengers_count"] = len(refs)
}

// DelayCategory is the severity bucket of a delay.
type DelayCategory string

const (
	DelayMinor  DelayCategory = "minor"
	DelayMajor  DelayCategory = "major"
	DelaySevere DelayCategory = "severe"
)

// CategorizeDelay buckets a delay: under 30 minutes is minor, up to 120
// is major, beyond that severe.
func CategorizeDelay(delayMinutes int) DelayCategory {
	switch {
	case delayMinutes < 30:
		return DelayMinor
	case delayMinutes <= 120:
		return DelayMajor
	default:
		return DelaySevere
	}
}

// DetailType returns the trigger detail type for this category.
func (c DelayCategory) DetailType() string {
	return "flight.delay." + string(c)
}

// Label returns the category in the upper-case form carried in event
// details.
func (c DelayCategory) Label() string {
	switch c {
	case DelayMinor:
		return "MINOR"
	case DelayMajor:
		return "MAJOR"
	default:
		return "SEVERE"
	}
}

func eventTimestamp(raw models.RawEvent) string {
	if raw.Timestamp != "" {
		return raw.Timestamp
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func copyFields(dst, src map[string]any, keys ...string) {
	for _, k := range keys {
		if v, ok := src[k]; ok {
			dst[k] = v
		}
	}
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
