// Package plugins implements the hook surface folio plugins program against
// and the Manager that dispatches hooks to them.
//
// A hook queue holds, in registration order, every plugin that implements
// the hook. Process runs the whole queue and collects results. First stops
// at the first plugin that returns a result. Any hook error stops the queue
// and is returned wrapped in a hook error naming the plugin.
package plugins

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/metrics"
)

// Manager owns the plugin list and the per-hook queues built from it.
type Manager struct {
	mu         sync.RWMutex
	plugins    []Plugin
	queues     map[HookName][]Plugin
	registered bool

	logger   logging.Logger
	recorder metrics.Recorder
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecorder times every hook invocation.
func WithRecorder(r metrics.Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// NewManager creates an empty manager.
func NewManager(logger logging.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	m := &Manager{
		queues:   make(map[HookName][]Plugin),
		logger:   logger.WithComponent("plugins"),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Use appends plugins. A plugin whose name is already present replaces the
// earlier one, which is dropped from the list with a warning. Queues are not
// touched until the next RegisterHooks.
func (m *Manager) Use(plugins ...Plugin) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range plugins {
		if p == nil {
			continue
		}
		name := p.Name()
		kept := m.plugins[:0:0]
		for _, existing := range m.plugins {
			if existing.Name() == name {
				m.logger.Warn(context.Background(), nil,
					"Plugin registered twice, earlier registration evicted", "plugin", name)
				continue
			}
			kept = append(kept, existing)
		}
		m.plugins = append(kept, p)
	}
}

// RegisterHooks rebuilds every hook queue from the current plugin list.
func (m *Manager) RegisterHooks() {
	m.mu.Lock()
	defer m.mu.Unlock()

	queues := make(map[HookName][]Plugin, len(AllHooks))
	for _, p := range m.plugins {
		for _, h := range Hooks(p) {
			queues[h] = append(queues[h], p)
		}
	}
	m.queues = queues
	m.registered = true

	m.logger.Debug(context.Background(), "Hooks registered", "plugins", len(m.plugins))
}

// Registered reports whether RegisterHooks has run.
func (m *Manager) Registered() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registered
}

// Plugins returns the plugin list in registration order.
func (m *Manager) Plugins() []Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Plugin, len(m.plugins))
	copy(out, m.plugins)
	return out
}

// Plugin looks a plugin up by name.
func (m *Manager) Plugin(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.plugins {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Queue returns a snapshot of the plugins registered for hook.
func (m *Manager) Queue(hook HookName) []Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q := m.queues[hook]
	out := make([]Plugin, len(q))
	copy(out, q)
	return out
}

// Result is one plugin's contribution to a hook.
type Result[T any] struct {
	Plugin string
	Value  T
}

// Values strips plugin names from results.
func Values[T any](results []Result[T]) []T {
	out := make([]T, len(results))
	for i, r := range results {
		out[i] = r.Value
	}
	return out
}

// Run invokes every plugin queued for hook, in order, for side effects.
func Run(ctx context.Context, m *Manager, hook HookName, call func(context.Context, Plugin) error) error {
	_, err := Process(ctx, m, hook, func(ctx context.Context, p Plugin) (struct{}, error) {
		return struct{}{}, call(ctx, p)
	})
	return err
}

// Process invokes every plugin queued for hook, in order, and collects the
// non-zero results. For pointer, slice and map results that means nil
// results are dropped.
func Process[T any](ctx context.Context, m *Manager, hook HookName, call func(context.Context, Plugin) (T, error)) ([]Result[T], error) {
	var results []Result[T]
	for _, p := range m.Queue(hook) {
		v, err := invoke(ctx, m, hook, p, call)
		if err != nil {
			return results, err
		}
		if !isZero(v) {
			results = append(results, Result[T]{Plugin: p.Name(), Value: v})
		}
	}
	return results, nil
}

// First invokes plugins queued for hook until one returns a non-zero result.
// ok is false when no plugin did.
func First[T any](ctx context.Context, m *Manager, hook HookName, call func(context.Context, Plugin) (T, error)) (res Result[T], ok bool, err error) {
	for _, p := range m.Queue(hook) {
		v, err := invoke(ctx, m, hook, p, call)
		if err != nil {
			return res, false, err
		}
		if !isZero(v) {
			return Result[T]{Plugin: p.Name(), Value: v}, true, nil
		}
	}
	return res, false, nil
}

func invoke[T any](ctx context.Context, m *Manager, hook HookName, p Plugin, call func(context.Context, Plugin) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	start := time.Now()
	v, err := safeCall(ctx, p, call)
	m.recorder.ObserveHook(p.Name(), string(hook), time.Since(start), err)
	if err != nil {
		m.logger.Error(ctx, err, "Plugin hook failed", "plugin", p.Name(), "hook", string(hook))
		return zero, errors.NewHookError(p.Name(), string(hook), err)
	}
	return v, nil
}

// safeCall turns a panicking hook into an ordinary hook error.
func safeCall[T any](ctx context.Context, p Plugin, call func(context.Context, Plugin) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return call(ctx, p)
}

func isZero[T any](v T) bool {
	rv := reflect.ValueOf(&v).Elem()
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return rv.IsZero()
	}
}
