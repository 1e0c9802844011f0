package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cx-tal-miterani/flightpulse/internal/bus"
	"github.com/cx-tal-miterani/flightpulse/internal/report"
	"github.com/cx-tal-miterani/flightpulse/pkg/logger"
	"github.com/cx-tal-miterani/flightpulse/pkg/metrics"
)

func newTestEngine(rep report.Reporter, mapConcurrency int) *Engine {
	if rep == nil {
		rep = report.NewCapture()
	}
	return New(Config{
		Reporter:       rep,
		Logger:         logger.NewNop(),
		Metrics:        metrics.New("test", prometheus.NewRegistry()),
		MapConcurrency: mapConcurrency,
	})
}

func trigger(detailType string, detail map[string]any) bus.Event {
	return bus.Event{
		ID:         "evt-1",
		Source:     "test",
		DetailType: detailType,
		Time:       time.Now().UTC(),
		Detail:     detail,
	}
}

func prefixMatch(prefix string) func(string) bool {
	return func(dt string) bool { return strings.HasPrefix(dt, prefix) }
}

func exactMatch(want string) func(string) bool {
	return func(dt string) bool { return dt == want }
}

func TestRoute_ExactlyOneMatch(t *testing.T) {
	e := newTestEngine(nil, 0)
	e.Register(&Definition{Name: "flight-delay", Match: prefixMatch("flight.delay.")})
	e.Register(&Definition{Name: "flight-cancellation", Match: exactMatch("flight.cancelled")})

	def, err := e.Route("flight.delay.major")
	require.NoError(t, err)
	assert.Equal(t, "flight-delay", def.Name)

	def, err = e.Route("flight.cancelled")
	require.NoError(t, err)
	assert.Equal(t, "flight-cancellation", def.Name)
}

func TestRoute_NoMatch(t *testing.T) {
	e := newTestEngine(nil, 0)
	e.Register(&Definition{Name: "flight-delay", Match: prefixMatch("flight.delay.")})

	_, err := e.Route("flight.diverted")
	assert.ErrorIs(t, err, ErrNoDefinition)
}

func TestRoute_AmbiguousMatch(t *testing.T) {
	e := newTestEngine(nil, 0)
	e.Register(&Definition{Name: "a", Match: prefixMatch("flight.")})
	e.Register(&Definition{Name: "b", Match: prefixMatch("flight.delay.")})

	_, err := e.Route("flight.delay.minor")
	assert.ErrorIs(t, err, ErrAmbiguousTrigger)
}

func TestHandleEvent_UnroutedTriggerIsReported(t *testing.T) {
	capture := report.NewCapture()
	e := newTestEngine(capture, 0)

	err := e.HandleEvent(context.Background(), trigger("flight.diverted", map[string]any{"flight_id": "SW1"}))
	require.Error(t, err)

	reports := capture.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, string(FailureValidation), reports[0].ErrorKind)
	assert.Equal(t, "trigger", reports[0].Step)
}

func TestHandleEvent_MissingFlightIDFailsValidation(t *testing.T) {
	capture := report.NewCapture()
	e := newTestEngine(capture, 0)
	e.Register(&Definition{Name: "flight-delay", Match: prefixMatch("flight.delay.")})

	err := e.HandleEvent(context.Background(), trigger("flight.delay.minor", map[string]any{"delay_minutes": 25}))
	require.Error(t, err)

	var serr *StepError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, FailureValidation, serr.Kind)

	reports := capture.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, string(FailureValidation), reports[0].ErrorKind)
}

func TestHandleEvent_TaskResultsAccumulate(t *testing.T) {
	var got int
	e := newTestEngine(nil, 0)
	e.Register(&Definition{
		Name:  "flight-delay",
		Match: prefixMatch("flight.delay."),
		Steps: []Step{
			&Task{
				Name: "GetAffectedBookings",
				Fn: func(ctx context.Context, input Context) (any, error) {
					return map[string]any{"count": 3}, nil
				},
				ResultPath: "bookings",
			},
			&Task{
				Name: "ReadCount",
				Fn: func(ctx context.Context, input Context) (any, error) {
					got, _ = input.Int("bookings.count")
					return nil, nil
				},
			},
		},
	})

	err := e.HandleEvent(context.Background(), trigger("flight.delay.minor", map[string]any{"flight_id": "SW1"}))
	require.NoError(t, err)
	assert.Equal(t, 3, got)
}

func TestChoice_FirstMatchingRuleRuns(t *testing.T) {
	var ran []string
	mark := func(name string) *Task {
		return &Task{Name: name, Fn: func(ctx context.Context, input Context) (any, error) {
			ran = append(ran, name)
			return nil, nil
		}}
	}

	e := newTestEngine(nil, 0)
	e.Register(&Definition{
		Name:  "flight-delay",
		Match: prefixMatch("flight.delay."),
		Steps: []Step{
			&Task{
				Name: "Count",
				Fn: func(ctx context.Context, input Context) (any, error) {
					return map[string]any{"count": 0}, nil
				},
				ResultPath: "bookings",
			},
			&Choice{
				Name: "AnyBookings",
				Rules: []ChoiceRule{
					{
						When: func(input Context) bool {
							n, _ := input.Int("bookings.count")
							return n > 0
						},
						Then: mark("Process"),
					},
				},
				Default: mark("Skip"),
			},
		},
	})

	err := e.HandleEvent(context.Background(), trigger("flight.delay.minor", map[string]any{"flight_id": "SW1"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"Skip"}, ran)
}

func TestParallel_AllBranchesRun(t *testing.T) {
	var count int64
	branch := func(name string) *Task {
		return &Task{Name: name, Fn: func(ctx context.Context, input Context) (any, error) {
			atomic.AddInt64(&count, 1)
			return nil, nil
		}}
	}

	e := newTestEngine(nil, 0)
	e.Register(&Definition{
		Name:  "flight-delay",
		Match: prefixMatch("flight.delay."),
		Steps: []Step{
			&Parallel{Name: "Notify", Branches: []Step{branch("Email"), branch("SMS"), branch("Push")}},
		},
	})

	err := e.HandleEvent(context.Background(), trigger("flight.delay.minor", map[string]any{"flight_id": "SW1"}))
	require.NoError(t, err)
	assert.Equal(t, int64(3), atomic.LoadInt64(&count))
}

func TestParallel_BranchFailureStillRunsOthers(t *testing.T) {
	var ok int64
	e := newTestEngine(nil, 0)
	e.Register(&Definition{
		Name:  "flight-delay",
		Match: prefixMatch("flight.delay."),
		Steps: []Step{
			&Parallel{Name: "Notify", Branches: []Step{
				&Task{Name: "Good", Fn: func(ctx context.Context, input Context) (any, error) {
					atomic.AddInt64(&ok, 1)
					return nil, nil
				}},
				&Task{Name: "Bad", Fn: func(ctx context.Context, input Context) (any, error) {
					return nil, NewStepError("Bad", FailureExternalCall, errors.New("provider down"))
				}},
			}},
		},
	})

	err := e.HandleEvent(context.Background(), trigger("flight.delay.minor", map[string]any{"flight_id": "SW1"}))
	require.Error(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&ok))

	var serr *StepError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, FailureExternalCall, serr.Kind)
}

func TestMap_RunsEveryItemWithBoundedConcurrency(t *testing.T) {
	const items = 20
	const limit = 3

	var mu sync.Mutex
	inFlight, maxInFlight, total := 0, 0, 0

	detail := map[string]any{"flight_id": "SW1"}
	list := make([]any, items)
	for i := range list {
		list[i] = i
	}
	detail["items"] = list

	e := newTestEngine(nil, 0)
	e.Register(&Definition{
		Name:  "flight-delay",
		Match: prefixMatch("flight.delay."),
		Steps: []Step{
			&Map{
				Name:           "ProcessBookings",
				ItemsPath:      "detail.items",
				MaxConcurrency: limit,
				Steps: []Step{
					&Task{Name: "Work", Fn: func(ctx context.Context, input Context) (any, error) {
						mu.Lock()
						inFlight++
						if inFlight > maxInFlight {
							maxInFlight = inFlight
						}
						mu.Unlock()

						time.Sleep(10 * time.Millisecond)

						mu.Lock()
						inFlight--
						total++
						mu.Unlock()
						return nil, nil
					}},
				},
			},
		},
	})

	err := e.HandleEvent(context.Background(), trigger("flight.delay.minor", detail))
	require.NoError(t, err)
	assert.Equal(t, items, total)
	assert.LessOrEqual(t, maxInFlight, limit)
	assert.Greater(t, maxInFlight, 1, "items should overlap")
}

func TestMap_ItemFailureDoesNotStopOtherItems(t *testing.T) {
	capture := report.NewCapture()
	var succeeded int64

	detail := map[string]any{
		"flight_id": "SW1",
		"items":     []any{"B1", "B2", "B3", "B4", "B5"},
	}

	e := newTestEngine(capture, 0)
	e.Register(&Definition{
		Name:  "flight-delay",
		Match: prefixMatch("flight.delay."),
		Steps: []Step{
			&Map{
				Name:      "ProcessBookings",
				ItemsPath: "detail.items",
				ItemKey:   "booking_id",
				Steps: []Step{
					&Task{
						Name: "GetPassengerDetails",
						Fn: func(ctx context.Context, input Context) (any, error) {
							id, _ := input.String("booking_id")
							if id == "B3" {
								return nil, NewStepError("GetPassengerDetails", FailureRecordNotFound, errors.New("passenger not found"))
							}
							atomic.AddInt64(&succeeded, 1)
							return nil, nil
						},
						Catch: &Catch{Next: &Task{
							Name: "ReportFailure",
							Fn: func(ctx context.Context, input Context) (any, error) {
								kind, _ := input.String("error.error_kind")
								cause, _ := input.String("error.cause")
								step, _ := input.String("error.step")
								capture.Report(ctx, report.Report{Workflow: "flight-delay", Step: step, ErrorKind: kind, Cause: cause})
								return nil, nil
							},
						}},
					},
				},
			},
		},
	})

	err := e.HandleEvent(context.Background(), trigger("flight.delay.minor", detail))
	require.NoError(t, err, "caught item failure must not fail the execution")
	assert.Equal(t, int64(4), atomic.LoadInt64(&succeeded))

	reports := capture.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, string(FailureRecordNotFound), reports[0].ErrorKind)
	assert.Equal(t, "GetPassengerDetails", reports[0].Step)
}

func TestMap_ItemContextsAreIsolated(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]string{}

	detail := map[string]any{"flight_id": "SW1", "items": []any{"B1", "B2", "B3"}}

	e := newTestEngine(nil, 0)
	e.Register(&Definition{
		Name:  "flight-delay",
		Match: prefixMatch("flight.delay."),
		Steps: []Step{
			&Map{
				Name:      "ProcessBookings",
				ItemsPath: "detail.items",
				ItemKey:   "booking_id",
				Steps: []Step{
					&Task{
						Name: "Tag",
						Fn: func(ctx context.Context, input Context) (any, error) {
							id, _ := input.String("booking_id")
							return map[string]any{"for": id}, nil
						},
						ResultPath: "tag",
					},
					&Task{
						Name: "Check",
						Fn: func(ctx context.Context, input Context) (any, error) {
							id, _ := input.String("booking_id")
							tagged, _ := input.String("tag.for")
							mu.Lock()
							seen[id] = tagged
							mu.Unlock()
							return nil, nil
						},
					},
				},
			},
		},
	})

	err := e.HandleEvent(context.Background(), trigger("flight.delay.minor", detail))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"B1": "B1", "B2": "B2", "B3": "B3"}, seen)
}

func TestInvoke_RetriesTransientFailures(t *testing.T) {
	var calls int64
	e := newTestEngine(nil, 0)
	e.Register(&Definition{
		Name:  "flight-delay",
		Match: prefixMatch("flight.delay."),
		Steps: []Step{
			&Task{
				Name: "UpdateFlightStatus",
				Fn: func(ctx context.Context, input Context) (any, error) {
					if atomic.AddInt64(&calls, 1) < 3 {
						return nil, NewStepError("UpdateFlightStatus", FailureStoreUnavailable, errors.New("connection refused"))
					}
					return nil, nil
				},
				Retry: &RetryPolicy{
					InitialInterval:    time.Millisecond,
					BackoffCoefficient: 2.0,
					MaximumInterval:    10 * time.Millisecond,
					MaximumAttempts:    3,
				},
			},
		},
	})

	err := e.HandleEvent(context.Background(), trigger("flight.delay.minor", map[string]any{"flight_id": "SW1"}))
	require.NoError(t, err)
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
}

func TestInvoke_DoesNotRetryNonTransientFailures(t *testing.T) {
	var calls int64
	e := newTestEngine(nil, 0)
	e.Register(&Definition{
		Name:  "flight-delay",
		Match: prefixMatch("flight.delay."),
		Steps: []Step{
			&Task{
				Name: "GetAffectedBookings",
				Fn: func(ctx context.Context, input Context) (any, error) {
					atomic.AddInt64(&calls, 1)
					return nil, NewStepError("GetAffectedBookings", FailureRecordNotFound, errors.New("flight not found"))
				},
				Retry: &RetryPolicy{
					InitialInterval:    time.Millisecond,
					BackoffCoefficient: 2.0,
					MaximumAttempts:    5,
				},
			},
		},
	})

	err := e.HandleEvent(context.Background(), trigger("flight.delay.minor", map[string]any{"flight_id": "SW1"}))
	require.Error(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestInvoke_ExhaustedRetriesSurfaceLastError(t *testing.T) {
	var calls int64
	e := newTestEngine(report.NewCapture(), 0)
	e.Register(&Definition{
		Name:  "flight-delay",
		Match: prefixMatch("flight.delay."),
		Steps: []Step{
			&Task{
				Name: "UpdateFlightStatus",
				Fn: func(ctx context.Context, input Context) (any, error) {
					atomic.AddInt64(&calls, 1)
					return nil, NewStepError("UpdateFlightStatus", FailureStoreUnavailable, errors.New("still down"))
				},
				Retry: &RetryPolicy{
					InitialInterval:    time.Millisecond,
					BackoffCoefficient: 2.0,
					MaximumAttempts:    3,
				},
			},
		},
	})

	err := e.HandleEvent(context.Background(), trigger("flight.delay.minor", map[string]any{"flight_id": "SW1"}))
	require.Error(t, err)
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))

	var serr *StepError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, FailureStoreUnavailable, serr.Kind)
}

func TestHandleEvent_UncaughtFailureEmitsExactlyOneReport(t *testing.T) {
	capture := report.NewCapture()
	e := newTestEngine(capture, 0)
	e.Register(&Definition{
		Name:  "flight-delay",
		Match: prefixMatch("flight.delay."),
		Steps: []Step{
			&Task{Name: "GetAffectedBookings", Fn: func(ctx context.Context, input Context) (any, error) {
				return nil, NewStepError("GetAffectedBookings", FailureStoreUnavailable, errors.New("store down"))
			}},
		},
	})

	detail := map[string]any{"flight_id": "SW1", "delay_minutes": 45}
	err := e.HandleEvent(context.Background(), trigger("flight.delay.major", detail))
	require.Error(t, err)

	reports := capture.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, "flight-delay", reports[0].Workflow)
	assert.Equal(t, "GetAffectedBookings", reports[0].Step)
	assert.Equal(t, string(FailureStoreUnavailable), reports[0].ErrorKind)
	assert.Equal(t, detail, reports[0].Input)
	assert.NotEmpty(t, reports[0].ExecutionID)
}

func TestCatch_HandlerSeesErrorEntryAndStopsSequence(t *testing.T) {
	var caughtKind, caughtStep string
	var afterRan bool

	e := newTestEngine(nil, 0)
	e.Register(&Definition{
		Name:  "flight-delay",
		Match: prefixMatch("flight.delay."),
		Steps: []Step{
			&Task{
				Name: "GetPassengerDetails",
				Fn: func(ctx context.Context, input Context) (any, error) {
					return nil, NewStepError("GetPassengerDetails", FailureRecordNotFound, errors.New("no such passenger"))
				},
				Catch: &Catch{Next: &Task{
					Name: "ReportFailure",
					Fn: func(ctx context.Context, input Context) (any, error) {
						caughtKind, _ = input.String("error.error_kind")
						caughtStep, _ = input.String("error.step")
						return nil, nil
					},
				}},
			},
			&Task{Name: "After", Fn: func(ctx context.Context, input Context) (any, error) {
				afterRan = true
				return nil, nil
			}},
		},
	})

	err := e.HandleEvent(context.Background(), trigger("flight.delay.minor", map[string]any{"flight_id": "SW1"}))
	require.NoError(t, err)
	assert.Equal(t, string(FailureRecordNotFound), caughtKind)
	assert.Equal(t, "GetPassengerDetails", caughtStep)
	assert.False(t, afterRan, "caught failure must end the sequence")
}

func TestSucceed_EndsSequenceEarly(t *testing.T) {
	var afterRan bool
	e := newTestEngine(nil, 0)
	e.Register(&Definition{
		Name:  "flight-delay",
		Match: prefixMatch("flight.delay."),
		Steps: []Step{
			&Succeed{Name: "NothingToDo"},
			&Task{Name: "After", Fn: func(ctx context.Context, input Context) (any, error) {
				afterRan = true
				return nil, nil
			}},
		},
	})

	err := e.HandleEvent(context.Background(), trigger("flight.delay.minor", map[string]any{"flight_id": "SW1"}))
	require.NoError(t, err)
	assert.False(t, afterRan)
}

func TestFail_EndsSequenceWithKind(t *testing.T) {
	capture := report.NewCapture()
	e := newTestEngine(capture, 0)
	e.Register(&Definition{
		Name:  "flight-delay",
		Match: prefixMatch("flight.delay."),
		Steps: []Step{
			&Fail{Name: "Reject", Kind: FailureValidation, Message: "unsupported delay payload"},
		},
	})

	err := e.HandleEvent(context.Background(), trigger("flight.delay.minor", map[string]any{"flight_id": "SW1"}))
	require.Error(t, err)

	var serr *StepError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, FailureValidation, serr.Kind)
	assert.Equal(t, "Reject", serr.Step)
	require.Len(t, capture.Reports(), 1)
}

func TestHandleEvent_ConcurrentExecutionsAreIndependent(t *testing.T) {
	var mu sync.Mutex
	got := map[string]string{}

	e := newTestEngine(nil, 0)
	e.Register(&Definition{
		Name:  "flight-delay",
		Match: prefixMatch("flight.delay."),
		Steps: []Step{
			&Task{
				Name: "Echo",
				Fn: func(ctx context.Context, input Context) (any, error) {
					id, _ := input.String("detail.flight_id")
					return map[string]any{"flight_id": id}, nil
				},
				ResultPath: "echo",
			},
			&Task{
				Name: "Record",
				Fn: func(ctx context.Context, input Context) (any, error) {
					id, _ := input.String("detail.flight_id")
					echoed, _ := input.String("echo.flight_id")
					mu.Lock()
					got[id] = echoed
					mu.Unlock()
					return nil, nil
				},
			},
		},
	})

	var wg sync.WaitGroup
	for _, id := range []string{"SW1", "SW2", "SW3", "SW4"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			err := e.HandleEvent(context.Background(), trigger("flight.delay.minor", map[string]any{"flight_id": id}))
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, map[string]string{"SW1": "SW1", "SW2": "SW2", "SW3": "SW3", "SW4": "SW4"}, got)
}
