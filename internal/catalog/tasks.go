package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/cx-tal-miterani/flightpulse/internal/engine"
	"github.com/cx-tal-miterani/flightpulse/internal/generator"
	"github.com/cx-tal-miterani/flightpulse/internal/models"
	"github.com/cx-tal-miterani/flightpulse/internal/report"
	"github.com/cx-tal-miterani/flightpulse/internal/store"
)

// storeFailure classifies a state store error for the failure taxonomy.
func storeFailure(step string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return engine.NewStepError(step, engine.FailureRecordNotFound, err)
	}
	return engine.NewStepError(step, engine.FailureStoreUnavailable, err)
}

// taskGetAffectedBookings queries the flight-side booking lookup records
// and stores {items, count} at "bookings".
func (c *Catalog) taskGetAffectedBookings() *engine.Task {
	return &engine.Task{
		Name:       "GetAffectedBookings",
		ResultPath: "bookings",
		Timeout:    c.storeTimeout,
		Retry:      engine.DefaultRetryPolicy(),
		Fn: func(ctx context.Context, input engine.Context) (any, error) {
			flightID, _ := input.String("detail.flight_id")
			items, err := c.store.Query(ctx, store.FlightPK(flightID), store.BookingKeyPrefix)
			if err != nil {
				return nil, storeFailure("GetAffectedBookings", err)
			}
			refs := make([]models.BookingRef, 0, len(items))
			for _, item := range items {
				var ref models.BookingRef
				if err := store.UnmarshalAttrs(item.Attrs, &ref); err != nil {
					return nil, engine.NewStepError("GetAffectedBookings", engine.FailureStoreUnavailable, err)
				}
				refs = append(refs, ref)
			}
			c.log.Info("resolved affected bookings", "flightId", flightID, "count", len(refs))
			return map[string]any{"items": refs, "count": len(refs)}, nil
		},
	}
}

// taskUpdateFlightStatusDelayed marks the flight DELAYED and moves its
// status index key in the same conditional write.
func (c *Catalog) taskUpdateFlightStatusDelayed() *engine.Task {
	return &engine.Task{
		Name:    "UpdateFlightStatus",
		Timeout: c.storeTimeout,
		Retry:   engine.DefaultRetryPolicy(),
		Fn: func(ctx context.Context, input engine.Context) (any, error) {
			flightID, _ := input.String("detail.flight_id")
			delayMinutes, _ := input.Int("detail.delay_minutes")
			reason, _ := input.String("detail.reason")

			upd := store.Update{
				Set: map[string]any{
					"status":        string(models.FlightStatusDelayed),
					"delay_minutes": delayMinutes,
					"delay_reason":  reason,
				},
				IndexAKey: store.StrPtr(store.FlightStatusKey(models.FlightStatusDelayed)),
			}
			if newDeparture, ok := input.String("detail.new_departure"); ok && newDeparture != "" {
				upd.Set["actual_departure"] = newDeparture
			}
			if err := c.store.ConditionalUpdate(ctx, store.FlightPK(flightID), store.MetadataSK, upd); err != nil {
				return nil, storeFailure("UpdateFlightStatus", err)
			}
			return nil, nil
		},
	}
}

// taskUpdateFlightStatusCancelled marks the flight CANCELLED.
func (c *Catalog) taskUpdateFlightStatusCancelled() *engine.Task {
	return &engine.Task{
		Name:    "UpdateFlightStatus",
		Timeout: c.storeTimeout,
		Retry:   engine.DefaultRetryPolicy(),
		Fn: func(ctx context.Context, input engine.Context) (any, error) {
			flightID, _ := input.String("detail.flight_id")
			upd := store.Update{
				Set: map[string]any{
					"status": string(models.FlightStatusCancelled),
				},
				IndexAKey: store.StrPtr(store.FlightStatusKey(models.FlightStatusCancelled)),
			}
			if reason, ok := input.String("detail.reason"); ok {
				upd.Set["delay_reason"] = reason
			}
			if err := c.store.ConditionalUpdate(ctx, store.FlightPK(flightID), store.MetadataSK, upd); err != nil {
				return nil, storeFailure("UpdateFlightStatus", err)
			}
			return nil, nil
		},
	}
}

// taskUpdateFlightGate records the new gate.
func (c *Catalog) taskUpdateFlightGate() *engine.Task {
	return &engine.Task{
		Name:    "UpdateFlightGate",
		Timeout: c.storeTimeout,
		Retry:   engine.DefaultRetryPolicy(),
		Fn: func(ctx context.Context, input engine.Context) (any, error) {
			flightID, _ := input.String("detail.flight_id")
			newGate, ok := input.String("detail.new_gate")
			if !ok || newGate == "" {
				return nil, engine.NewStepError("UpdateFlightGate", engine.FailureValidation,
					errors.New("gate change trigger is missing new_gate"))
			}
			upd := store.Update{Set: map[string]any{"gate": newGate}}
			if err := c.store.ConditionalUpdate(ctx, store.FlightPK(flightID), store.MetadataSK, upd); err != nil {
				return nil, storeFailure("UpdateFlightGate", err)
			}
			return nil, nil
		},
	}
}

// taskMarkBookingNeedsRebooking flips one booking to NEEDS_REBOOKING along
// with its status index key.
func (c *Catalog) taskMarkBookingNeedsRebooking() *engine.Task {
	return &engine.Task{
		Name:    "MarkBookingNeedsRebooking",
		Timeout: c.storeTimeout,
		Retry:   engine.DefaultRetryPolicy(),
		Fn: func(ctx context.Context, input engine.Context) (any, error) {
			var ref models.BookingRef
			if err := input.Decode("booking", &ref); err != nil {
				return nil, engine.NewStepError("MarkBookingNeedsRebooking", engine.FailureValidation, err)
			}
			upd := store.Update{
				Set: map[string]any{
					"booking_status": string(models.BookingStatusNeedsRebooking),
				},
				IndexBKey: store.StrPtr(store.BookingStatusKey(models.BookingStatusNeedsRebooking)),
			}
			if err := c.store.ConditionalUpdate(ctx, store.BookingPK(ref.BookingID), store.MetadataSK, upd); err != nil {
				return nil, storeFailure("MarkBookingNeedsRebooking", err)
			}
			return nil, nil
		},
	}
}

// taskGetPassengerDetails loads the passenger for the current booking item.
func (c *Catalog) taskGetPassengerDetails(workflow string) *engine.Task {
	return &engine.Task{
		Name:       "GetPassengerDetails",
		ResultPath: "passenger",
		Timeout:    c.storeTimeout,
		Retry:      engine.DefaultRetryPolicy(),
		Catch:      &engine.Catch{Next: c.reportStep(workflow)},
		Fn: func(ctx context.Context, input engine.Context) (any, error) {
			var ref models.BookingRef
			if err := input.Decode("booking", &ref); err != nil {
				return nil, engine.NewStepError("GetPassengerDetails", engine.FailureValidation, err)
			}
			item, err := c.store.Get(ctx, store.PassengerPK(ref.PassengerID), store.MetadataSK)
			if err != nil {
				return nil, storeFailure("GetPassengerDetails", err)
			}
			var passenger models.Passenger
			if err := store.UnmarshalAttrs(item.Attrs, &passenger); err != nil {
				return nil, engine.NewStepError("GetPassengerDetails", engine.FailureStoreUnavailable, err)
			}
			return passenger, nil
		},
	}
}

// taskGenerateMessage calls the message generator. The generator contract
// guarantees a message back, so this task cannot fail on generation itself.
func (c *Catalog) taskGenerateMessage(messageType models.MessageType) *engine.Task {
	return &engine.Task{
		Name:       "GeneratePersonalizedMessage",
		ResultPath: "message",
		Timeout:    c.generatorTimeout,
		Fn: func(ctx context.Context, input engine.Context) (any, error) {
			var passenger models.Passenger
			if err := input.Decode("passenger", &passenger); err != nil {
				return nil, engine.NewStepError("GeneratePersonalizedMessage", engine.FailureValidation, err)
			}
			detail, _ := input.Get("detail")
			flightEvent, _ := detail.(map[string]any)

			msg := c.generator.Generate(ctx, generator.Input{
				Passenger:   passenger,
				FlightEvent: flightEvent,
				MessageType: messageType,
			})
			return msg, nil
		},
	}
}

// taskPublishEmail publishes a notification.email event for the current
// passenger.
func (c *Catalog) taskPublishEmail() *engine.Task {
	return &engine.Task{
		Name: "PublishEmailNotification",
		Fn: func(ctx context.Context, input engine.Context) (any, error) {
			to, _ := input.String("passenger.email")
			subject, _ := input.String("message.email_subject")
			body, _ := input.String("message.email_body")
			passengerID, _ := input.String("passenger.passenger_id")
			flightID, _ := input.String("detail.flight_id")

			c.bus.Publish(ctx, Source, models.DetailNotificationEmail, map[string]any{
				"to":           to,
				"subject":      subject,
				"body":         body,
				"passenger_id": passengerID,
				"flight_id":    flightID,
			})
			c.metrics.NotificationsPublished.WithLabelValues("email").Inc()
			return nil, nil
		},
	}
}

// taskPublishSMS publishes a notification.sms event for the current
// passenger.
func (c *Catalog) taskPublishSMS() *engine.Task {
	return &engine.Task{
		Name: "PublishSMSNotification",
		Fn: func(ctx context.Context, input engine.Context) (any, error) {
			to, _ := input.String("passenger.phone")
			message, _ := input.String("message.sms_body")
			passengerID, _ := input.String("passenger.passenger_id")
			flightID, _ := input.String("detail.flight_id")

			c.bus.Publish(ctx, Source, models.DetailNotificationSMS, map[string]any{
				"to":           to,
				"message":      message,
				"passenger_id": passengerID,
				"flight_id":    flightID,
			})
			c.metrics.NotificationsPublished.WithLabelValues("sms").Inc()
			return nil, nil
		},
	}
}

// reportStep builds the catch handler target: a task that turns the
// context's "error" entry into one failure report.
func (c *Catalog) reportStep(workflow string) *engine.Task {
	return &engine.Task{
		Name: "ReportFailure",
		Fn: func(ctx context.Context, input engine.Context) (any, error) {
			step, _ := input.String("error.step")
			errorKind, _ := input.String("error.error_kind")
			cause, _ := input.String("error.cause")
			eventID, _ := input.String("event_id")

			failedInput, _ := input.Get("error.input")
			inputMap, _ := failedInput.(map[string]any)

			c.reporter.Report(ctx, report.Report{
				Workflow:    workflow,
				Step:        step,
				ErrorKind:   errorKind,
				Cause:       cause,
				Input:       inputMap,
				ExecutionID: eventID,
				Time:        time.Now().UTC(),
			})
			return nil, nil
		},
	}
}
