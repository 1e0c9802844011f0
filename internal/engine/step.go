package engine

import (
	"context"
	"time"
)

// DefaultMapConcurrency bounds Map fan-out when a step does not set its own
// limit.
const DefaultMapConcurrency = 10

// Step is a node in a workflow definition. The concrete kinds are Task,
// Choice, Parallel, Map, Succeed, and Fail; a single executor interprets
// them (see Engine.runStep).
type Step interface {
	StepName() string
}

// TaskFunc is one unit of work: a store query, a store update, or an
// external call. It receives a snapshot of the execution context and
// returns the output to merge at the task's result path.
type TaskFunc func(ctx context.Context, input Context) (any, error)

// Task runs a TaskFunc with an optional timeout, retry policy, and catch
// handler.
type Task struct {
	Name       string
	Fn         TaskFunc
	ResultPath string // dot path for the output; empty discards it
	Timeout    time.Duration
	Retry      *RetryPolicy
	Catch      *Catch
}

func (t *Task) StepName() string { return t.Name }

// ChoiceRule routes to Then when its predicate matches. A nil Then is a
// no-op pass-through.
type ChoiceRule struct {
	When func(input Context) bool
	Then Step
}

// Choice evaluates its rules in order and runs the first match, or Default
// when none match. A nil Default passes through.
type Choice struct {
	Name    string
	Rules   []ChoiceRule
	Default Step
}

func (c *Choice) StepName() string { return c.Name }

// Parallel runs all branches concurrently. Every branch runs regardless of
// the others; the step succeeds only if every branch succeeds. Branches
// write their results into the shared context, so branches of one Parallel
// must target distinct result paths.
type Parallel struct {
	Name     string
	Branches []Step
	Catch    *Catch
}

func (p *Parallel) StepName() string { return p.Name }

// Map runs its step sequence once per item of the slice at ItemsPath, with
// bounded concurrency. Each item runs against its own copy of the context
// with the item stored under ItemKey. All items run to completion; the Map
// fails if any item's sequence fails uncaught.
type Map struct {
	Name           string
	ItemsPath      string
	ItemKey        string // defaults to "item"
	Steps          []Step
	MaxConcurrency int // 0 uses the engine default
	Catch          *Catch
}

func (m *Map) StepName() string { return m.Name }

// Succeed ends the enclosing sequence successfully.
type Succeed struct {
	Name string
}

func (s *Succeed) StepName() string { return s.Name }

// Fail ends the enclosing sequence with a failure of the given kind.
type Fail struct {
	Name    string
	Kind    FailureKind
	Message string
}

func (f *Fail) StepName() string { return f.Name }

// Catch designates the step that handles an unrecoverable failure of its
// owner. The handler sees the failing step's input plus an "error" entry
// with {error_kind, cause, step, input}.
type Catch struct {
	Next Step
}

// RetryPolicy bounds retries of transient failures before they surface to
// the catch handler.
type RetryPolicy struct {
	InitialInterval    time.Duration
	BackoffCoefficient float64
	MaximumInterval    time.Duration
	MaximumAttempts    int
}

// DefaultRetryPolicy retries transient failures twice with exponential
// backoff.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		InitialInterval:    200 * time.Millisecond,
		BackoffCoefficient: 2.0,
		MaximumInterval:    5 * time.Second,
		MaximumAttempts:    3,
	}
}
