package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cx-tal-miterani/flightpulse/internal/bus"
	"github.com/cx-tal-miterani/flightpulse/internal/report"
	"github.com/cx-tal-miterani/flightpulse/pkg/logger"
	"github.com/cx-tal-miterani/flightpulse/pkg/metrics"
	"github.com/google/uuid"
)

var (
	// ErrNoDefinition means no registered workflow matches the trigger type.
	ErrNoDefinition = errors.New("no workflow definition matches trigger")
	// ErrAmbiguousTrigger means more than one definition matches the trigger type.
	ErrAmbiguousTrigger = errors.New("trigger matches multiple workflow definitions")
)

// Definition is a declarative workflow: a trigger predicate and the step
// sequence to interpret.
type Definition struct {
	Name  string
	Match func(detailType string) bool
	Steps []Step
}

// Config configures an Engine.
type Config struct {
	Reporter       report.Reporter
	Logger         logger.Logger
	Metrics        *metrics.Metrics
	MapConcurrency int // default bound for Map steps; 0 uses DefaultMapConcurrency
}

// Engine interprets workflow definitions against triggering events. Each
// trigger gets its own Execution; executions are independent and may run
// concurrently.
type Engine struct {
	mu             sync.RWMutex
	defs           []*Definition
	reporter       report.Reporter
	log            logger.Logger
	metrics        *metrics.Metrics
	mapConcurrency int
}

// New creates an Engine.
func New(cfg Config) *Engine {
	concurrency := cfg.MapConcurrency
	if concurrency <= 0 {
		concurrency = DefaultMapConcurrency
	}
	return &Engine{
		reporter:       cfg.Reporter,
		log:            cfg.Logger,
		metrics:        cfg.Metrics,
		mapConcurrency: concurrency,
	}
}

// Register adds a workflow definition.
func (e *Engine) Register(def *Definition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defs = append(e.defs, def)
}

// Route returns the single definition matching detailType. Zero or more
// than one match is a configuration error.
func (e *Engine) Route(detailType string) (*Definition, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var matched *Definition
	for _, def := range e.defs {
		if !def.Match(detailType) {
			continue
		}
		if matched != nil {
			return nil, fmt.Errorf("%w: %q matches %s and %s", ErrAmbiguousTrigger, detailType, matched.Name, def.Name)
		}
		matched = def
	}
	if matched == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoDefinition, detailType)
	}
	return matched, nil
}

// Execution is one run of a definition bound to one trigger event.
type Execution struct {
	ID       string
	Workflow string
	Trigger  bus.Event

	mu sync.Mutex
	c  Context
}

func (ex *Execution) snapshot() Context {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.c.Clone()
}

func (ex *Execution) setResult(path string, v any) error {
	n, err := normalize(v)
	if err != nil {
		return err
	}
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.c.Set(path, n)
	return nil
}

func (ex *Execution) setError(v map[string]any) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.c.Set("error", v)
}

// fork creates an item-scoped execution sharing identity with the parent
// but owning its own context copy.
func (ex *Execution) fork(c Context) *Execution {
	return &Execution{ID: ex.ID, Workflow: ex.Workflow, Trigger: ex.Trigger, c: c}
}

// HandleEvent runs the matching workflow to completion for one trigger. A
// returned error means the execution ended in terminal failure; exactly one
// failure report has been emitted for it.
func (e *Engine) HandleEvent(ctx context.Context, evt bus.Event) error {
	def, err := e.Route(evt.DetailType)
	if err != nil {
		e.reporter.Report(ctx, report.Report{
			Workflow:  "unrouted",
			Step:      "trigger",
			ErrorKind: string(FailureValidation),
			Cause:     err.Error(),
			Input:     evt.Detail,
			Time:      time.Now().UTC(),
		})
		return err
	}

	ex := &Execution{
		ID:       uuid.New().String(),
		Workflow: def.Name,
		Trigger:  evt,
		c: Context{
			"detail_type": evt.DetailType,
			"detail":      evt.Detail,
			"event_id":    evt.ID,
			"source":      evt.Source,
		},
	}

	log := e.log.With("workflow", def.Name, "executionId", ex.ID, "detailType", evt.DetailType)
	log.Info("execution started")
	e.metrics.ExecutionsStarted.Inc()
	start := time.Now()

	err = e.validateTrigger(evt)
	if err == nil {
		err = e.runSequence(ctx, ex, def.Steps)
	}
	e.metrics.ExecutionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		serr := asStepError(def.Name, err)
		e.reporter.Report(ctx, report.Report{
			Workflow:    def.Name,
			Step:        serr.Step,
			ErrorKind:   string(serr.Kind),
			Cause:       serr.Err.Error(),
			Input:       evt.Detail,
			ExecutionID: ex.ID,
			Time:        time.Now().UTC(),
		})
		e.metrics.ExecutionsFailed.Inc()
		log.Error("execution failed", "step", serr.Step, "errorKind", serr.Kind, "error", serr.Err)
		return serr
	}

	e.metrics.ExecutionsCompleted.Inc()
	log.Info("execution completed", "duration", time.Since(start))
	return nil
}

func (e *Engine) validateTrigger(evt bus.Event) error {
	if evt.Detail == nil {
		return NewStepError("trigger", FailureValidation, errors.New("trigger has no detail"))
	}
	flightID, ok := evt.Detail["flight_id"].(string)
	if !ok || flightID == "" {
		return NewStepError("trigger", FailureValidation, errors.New("trigger detail is missing flight_id"))
	}
	return nil
}

// runSequence interprets steps in order. A caught failure ends the
// sequence without error; Succeed ends it early.
func (e *Engine) runSequence(ctx context.Context, ex *Execution, steps []Step) error {
	for _, s := range steps {
		err := e.runStep(ctx, ex, s)
		if errors.Is(err, errCaught) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, ok := s.(*Succeed); ok {
			return nil
		}
	}
	return nil
}

// runStep is the single executor over the step variants.
func (e *Engine) runStep(ctx context.Context, ex *Execution, s Step) error {
	switch step := s.(type) {
	case *Task:
		return e.runTask(ctx, ex, step)
	case *Choice:
		return e.runChoice(ctx, ex, step)
	case *Parallel:
		return e.runParallel(ctx, ex, step)
	case *Map:
		return e.runMap(ctx, ex, step)
	case *Succeed:
		return nil
	case *Fail:
		return NewStepError(step.Name, step.Kind, errors.New(step.Message))
	default:
		return fmt.Errorf("unknown step type %T", s)
	}
}

func (e *Engine) runTask(ctx context.Context, ex *Execution, t *Task) error {
	input := ex.snapshot()
	out, err := e.invoke(ctx, t, input)
	if err != nil {
		return e.catchOrFail(ctx, ex, t.Catch, asStepError(t.Name, err), input)
	}
	if t.ResultPath != "" && out != nil {
		if err := ex.setResult(t.ResultPath, out); err != nil {
			return asStepError(t.Name, err)
		}
	}
	return nil
}

// invoke calls the task function, retrying transient failures per the
// task's policy.
func (e *Engine) invoke(ctx context.Context, t *Task, input Context) (any, error) {
	policy := t.Retry
	attempts := 1
	interval := time.Duration(0)
	if policy != nil {
		attempts = policy.MaximumAttempts
		interval = policy.InitialInterval
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx := ctx
		cancel := func() {}
		if t.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, t.Timeout)
		}
		out, err := t.Fn(callCtx, input)
		cancel()
		if err == nil {
			return out, nil
		}
		lastErr = err

		kind := asStepError(t.Name, err).Kind
		if !kind.IsTransient() || attempt == attempts {
			break
		}
		e.log.Warn("task failed, retrying", "step", t.Name, "attempt", attempt, "error", err)

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		interval = time.Duration(float64(interval) * policy.BackoffCoefficient)
		if policy.MaximumInterval > 0 && interval > policy.MaximumInterval {
			interval = policy.MaximumInterval
		}
	}
	return nil, lastErr
}

func (e *Engine) runChoice(ctx context.Context, ex *Execution, c *Choice) error {
	input := ex.snapshot()
	for _, rule := range c.Rules {
		if rule.When(input) {
			if rule.Then == nil {
				return nil
			}
			return e.runStep(ctx, ex, rule.Then)
		}
	}
	if c.Default != nil {
		return e.runStep(ctx, ex, c.Default)
	}
	return nil
}

func (e *Engine) runParallel(ctx context.Context, ex *Execution, p *Parallel) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, branch := range p.Branches {
		wg.Add(1)
		go func(branch Step) {
			defer wg.Done()
			err := e.runStep(ctx, ex, branch)
			if errors.Is(err, errCaught) {
				err = nil
			}
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(branch)
	}
	wg.Wait()

	if firstErr != nil {
		return e.catchOrFail(ctx, ex, p.Catch, asStepError(p.Name, firstErr), ex.snapshot())
	}
	return nil
}

func (e *Engine) runMap(ctx context.Context, ex *Execution, m *Map) error {
	input := ex.snapshot()
	items, ok := input.Slice(m.ItemsPath)
	if !ok {
		return e.catchOrFail(ctx, ex, m.Catch,
			NewStepError(m.Name, FailureValidation, fmt.Errorf("no item slice at %q", m.ItemsPath)), input)
	}

	itemKey := m.ItemKey
	if itemKey == "" {
		itemKey = "item"
	}
	limit := m.MaxConcurrency
	if limit <= 0 {
		limit = e.mapConcurrency
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, item := range items {
		wg.Add(1)
		go func(item any) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			itemCtx := ex.snapshot()
			itemCtx.Set(itemKey, item)
			if err := e.runSequence(ctx, ex.fork(itemCtx), m.Steps); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(item)
	}
	wg.Wait()

	if firstErr != nil {
		return e.catchOrFail(ctx, ex, m.Catch, asStepError(m.Name, firstErr), input)
	}
	return nil
}

// catchOrFail routes a step failure to its catch handler if one exists,
// otherwise propagates it.
func (e *Engine) catchOrFail(ctx context.Context, ex *Execution, c *Catch, serr *StepError, input Context) error {
	if c == nil || c.Next == nil {
		return serr
	}
	e.log.Warn("step failure caught", "workflow", ex.Workflow, "step", serr.Step, "errorKind", serr.Kind, "error", serr.Err)
	ex.setError(map[string]any{
		"step":       serr.Step,
		"error_kind": string(serr.Kind),
		"cause":      serr.Err.Error(),
		"input":      map[string]any(input),
	})
	if err := e.runStep(ctx, ex, c.Next); err != nil {
		return err
	}
	return errCaught
}
