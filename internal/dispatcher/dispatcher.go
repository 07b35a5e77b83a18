// Package dispatcher routes named action requests from collaborators (the
// toolbar, the property panel, the CLI) to the engine handlers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrUnknownAction is returned when no handler is registered for an action.
var ErrUnknownAction = errors.New("unknown action")

// ErrQueueFull is returned when a non-blocking buffered handler is saturated.
var ErrQueueFull = errors.New("queue full")

// Queued is the result of an action accepted by a buffered handler.
const Queued = "queued"

// Action is a request such as "undo" or "set-color #00ff00".
type Action struct {
	Name      string
	Args      []string
	Timestamp time.Time
}

// Arg returns the i-th argument or "" when absent.
func (a Action) Arg(i int) string {
	if i < 0 || i >= len(a.Args) {
		return ""
	}
	return a.Args[i]
}

// HandlerFunc processes an action and returns a result.
type HandlerFunc func(Action) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes actions to registered handlers.
type Dispatcher struct {
	logger Logger

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	buffers  map[string]chan Action

	// pending counts queued actions not yet handled
	pending sync.WaitGroup
}

// New creates a Dispatcher. Metrics go to the global OTel meter, which is a
// no-op until a provider is installed.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan Action),
		logger:   logger,
	}

	m := meter()
	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of actions waiting in a handler queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for name, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("action", name)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.actions.processed",
		metric.WithDescription("Total actions processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.actions.dropped",
		metric.WithDescription("Total actions dropped due to a full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"dispatcher.actions.failed",
		metric.WithDescription("Total actions whose handler returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the named action with optional configuration.
// Registering a name twice replaces the earlier handler.
func (d *Dispatcher) Register(name string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := d.counted(name, h)

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(name, cfg.bufferSize, cfg.blocking, handler)
	}

	if cfg.logged {
		handler = d.withLogging(name, handler)
	}

	d.mu.Lock()
	d.handlers[name] = handler
	d.mu.Unlock()
}

// Dispatch routes an action to its registered handler.
func (d *Dispatcher) Dispatch(a Action) (any, error) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	d.mu.RLock()
	h, ok := d.handlers[a.Name]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, a.Name)
	}
	return h(a)
}

// HasHandler returns true if a handler is registered for the action.
func (d *Dispatcher) HasHandler(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[name]
	return ok
}

// Actions returns the registered action names in sorted order.
func (d *Dispatcher) Actions() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Dispatcher) counted(name string, h HandlerFunc) HandlerFunc {
	attr := metric.WithAttributes(attribute.String("action", name))
	return func(a Action) (any, error) {
		result, err := h(a)
		d.processed.Add(context.Background(), 1, attr)
		if err != nil {
			d.failed.Add(context.Background(), 1, attr)
		}
		return result, err
	}
}

func (d *Dispatcher) withBuffer(name string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Action, size)

	d.mu.Lock()
	d.buffers[name] = buffer
	d.mu.Unlock()

	attr := metric.WithAttributes(attribute.String("action", name))

	go func() {
		for a := range buffer {
			if _, err := h(a); err != nil {
				d.logger.Error("queued action failed", "action", name, "error", err)
			}
			d.pending.Done()
		}
	}()

	if blocking {
		return func(a Action) (any, error) {
			d.pending.Add(1)
			buffer <- a
			return Queued, nil
		}
	}

	return func(a Action) (any, error) {
		d.pending.Add(1)
		select {
		case buffer <- a:
			return Queued, nil
		default:
			d.pending.Done()
			d.dropped.Add(context.Background(), 1, attr)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, name)
		}
	}
}

// Wait blocks until every queued action has been handled. It must not run
// concurrently with dispatches to buffered handlers.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

func (d *Dispatcher) withLogging(name string, h HandlerFunc) HandlerFunc {
	return func(a Action) (any, error) {
		start := time.Now()
		d.logger.Debug("handling action", "action", name, "args", len(a.Args))

		result, err := h(a)

		if err != nil {
			d.logger.Error("action failed", "action", name, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("action complete", "action", name, "duration", time.Since(start))
		}

		return result, err
	}
}
