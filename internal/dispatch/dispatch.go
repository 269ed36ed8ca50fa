// Package dispatch routes typed chain events to registered handlers and
// named actions. A handler failure is recorded and surfaced to error
// handlers but never aborts the rest of the dispatch; only configuration
// mistakes fail fast, and those live in the predicate builder.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/devblac/chain-sentry/internal/event"
	"github.com/devblac/chain-sentry/internal/metrics"
	"github.com/devblac/chain-sentry/internal/predicate"
)

// Context carries caller-supplied correlation data through a dispatch.
type Context map[string]any

// HandlerFunc processes one event. The returned value lands in the action
// entry's Result field.
type HandlerFunc func(ctx context.Context, ev event.Event, dc Context) (any, error)

// ActionFunc executes one named action for a matched predicate result.
type ActionFunc func(ctx context.Context, res predicate.Result, dc Context) (any, error)

// ErrorFunc observes a handler failure. Its own panics are swallowed.
type ErrorFunc func(ctx context.Context, ev event.Event, handler string, err error)

const (
	// StatusSuccess marks a handler or action that completed.
	StatusSuccess = "success"
	// StatusFailed marks a handler or action whose error was captured.
	StatusFailed = "failed"
)

// ActionOutcome records one handler or action invocation inside a dispatch.
type ActionOutcome struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Response is the structured result handed back to the dispatch caller for
// logging and alerting.
type Response struct {
	Success      bool            `json:"success"`
	EventHash    string          `json:"eventHash"`
	HandledAt    time.Time       `json:"handledAt"`
	ProcessingMs int64           `json:"processingTimeMs"`
	Actions      []ActionOutcome `json:"actions"`
}

type handlerEntry struct {
	name string
	fn   HandlerFunc
}

// Registry holds handler, action, and error-handler registrations for the
// life of the process. All methods are safe for concurrent use; dispatch
// snapshots registrations, so registering during an active dispatch only
// affects later dispatches.
type Registry struct {
	mu       sync.Mutex
	handlers map[event.Type][]handlerEntry
	actions  map[string]ActionFunc
	onError  []ErrorFunc

	log     *slog.Logger
	metrics *metrics.Metrics
	nowFunc func() time.Time
}

// NewRegistry builds an empty registry. Both log and m may be nil.
func NewRegistry(log *slog.Logger, m *metrics.Metrics) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		handlers: map[event.Type][]handlerEntry{},
		actions:  map[string]ActionFunc{},
		log:      log,
		metrics:  m,
		nowFunc:  time.Now,
	}
}

// RegisterHandler appends a named handler for an event type. Handlers run
// in registration order.
func (r *Registry) RegisterHandler(t event.Type, name string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = append(r.handlers[t], handlerEntry{name: name, fn: fn})
}

// RegisterAction registers a named action handler, replacing any previous
// registration under the same name.
func (r *Registry) RegisterAction(name string, fn ActionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = fn
}

// RegisterErrorHandler adds a cross-cutting failure observer.
func (r *Registry) RegisterErrorHandler(fn ErrorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = append(r.onError, fn)
}

// Dispatch invokes every handler registered for t, sequentially and in
// registration order. A failing handler yields one failed action entry and
// notifies error handlers; it never stops the remaining handlers or
// reaches the caller.
func (r *Registry) Dispatch(ctx context.Context, t event.Type, ev event.Event, dc Context) Response {
	start := r.nowFunc()

	r.mu.Lock()
	entries := make([]handlerEntry, len(r.handlers[t]))
	copy(entries, r.handlers[t])
	observers := make([]ErrorFunc, len(r.onError))
	copy(observers, r.onError)
	r.mu.Unlock()

	outcomes := make([]ActionOutcome, 0, len(entries))
	for _, entry := range entries {
		result, err := safeHandle(ctx, entry.fn, ev, dc)
		if err != nil {
			r.metrics.HandlerFailures()
			r.log.Error("handler failed", "handler", entry.name, "event_type", string(t), "err", err)
			outcomes = append(outcomes, ActionOutcome{
				Name:   entry.name,
				Status: StatusFailed,
				Error:  err.Error(),
			})
			r.notifyError(ctx, observers, ev, entry.name, err)
			continue
		}
		outcomes = append(outcomes, ActionOutcome{
			Name:   entry.name,
			Status: StatusSuccess,
			Result: result,
		})
	}

	success := true
	for _, o := range outcomes {
		if o.Status == StatusFailed {
			success = false
			break
		}
	}

	r.metrics.Dispatches()
	end := r.nowFunc()
	return Response{
		Success:      success,
		EventHash:    EventHash(ev),
		HandledAt:    end.UTC(),
		ProcessingMs: end.Sub(start).Milliseconds(),
		Actions:      outcomes,
	}
}

// ExecuteActions runs every action attached to a matched predicate result,
// capturing success or failure per action. An action name with no
// registration is skipped.
func (r *Registry) ExecuteActions(ctx context.Context, res predicate.Result, dc Context) []ActionOutcome {
	r.mu.Lock()
	funcs := make(map[string]ActionFunc, len(r.actions))
	for name, fn := range r.actions {
		funcs[name] = fn
	}
	r.mu.Unlock()

	var outcomes []ActionOutcome
	for _, name := range res.Actions {
		fn, ok := funcs[name]
		if !ok {
			continue
		}
		result, err := safeAct(ctx, fn, res, dc)
		if err != nil {
			r.metrics.HandlerFailures()
			r.log.Error("action failed", "action", name, "predicate", res.PredicateID, "err", err)
			outcomes = append(outcomes, ActionOutcome{Name: name, Status: StatusFailed, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, ActionOutcome{Name: name, Status: StatusSuccess, Result: result})
	}
	return outcomes
}

// Clear drops every registration. Intended for test isolation.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = map[event.Type][]handlerEntry{}
	r.actions = map[string]ActionFunc{}
	r.onError = nil
}

// Handlers returns the handler names registered for t, in order.
func (r *Registry) Handlers(t event.Type) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.handlers[t]))
	for _, entry := range r.handlers[t] {
		names = append(names, entry.name)
	}
	return names
}

// EventTypes returns the event types with at least one handler.
func (r *Registry) EventTypes() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]event.Type, 0, len(r.handlers))
	for t, entries := range r.handlers {
		if len(entries) > 0 {
			types = append(types, t)
		}
	}
	return types
}

func (r *Registry) notifyError(ctx context.Context, observers []ErrorFunc, ev event.Event, handler string, err error) {
	for _, fn := range observers {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Error("error handler panicked", "handler", handler, "panic", fmt.Sprint(rec))
				}
			}()
			fn(ctx, ev, handler, err)
		}()
	}
}

func safeHandle(ctx context.Context, fn HandlerFunc, ev event.Event, dc Context) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return fn(ctx, ev, dc)
}

func safeAct(ctx context.Context, fn ActionFunc, res predicate.Result, dc Context) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("action panic: %v", rec)
		}
	}()
	return fn(ctx, res, dc)
}
