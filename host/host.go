package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rushsh/rush/internal/logging"
	"github.com/rushsh/rush/memory"
	"github.com/rushsh/rush/plugin"
)

// StartHook is broadcast once, before any other event, when a Host is created.
const StartHook = "start"

// InitParams is the conventional argument of the start hook.
type InitParams struct {
	RushVersion string `json:"rush_version"`
}

// ErrHostClosed resolves events submitted after Close.
var ErrHostClosed = errors.New("plugin host is closed")

// Response is one plugin's answer to a collect broadcast.
type Response struct {
	PluginName string          `json:"plugin"`
	Payload    json.RawMessage `json:"payload"`
}

// OutcomeKind classifies a single plugin's handling of a hook.
type OutcomeKind int

const (
	// OutcomeNotImplemented means the plugin does not export the hook.
	OutcomeNotImplemented OutcomeKind = iota
	// OutcomeSuccess means the hook ran and, for collect broadcasts,
	// produced a value.
	OutcomeSuccess
	// OutcomeCrashed means the hook failed; the plugin is evicted.
	OutcomeCrashed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNotImplemented:
		return "not_implemented"
	case OutcomeSuccess:
		return "success"
	case OutcomeCrashed:
		return "crashed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the classified result of calling one plugin.
type Outcome struct {
	Kind    OutcomeKind
	Payload json.RawMessage
	Err     error
}

// hookEvent is one request to the worker. Exactly one of the callbacks is set.
type hookEvent struct {
	id       uuid.UUID
	hook     string
	args     []any
	empty    *Pending[struct{}]
	value    *Pending[[]Response]
	snapshot *Pending[[]string]
}

func (ev *hookEvent) fail(err error) {
	switch {
	case ev.empty != nil:
		ev.empty.resolve(struct{}{}, err)
	case ev.value != nil:
		ev.value.resolve(nil, err)
	case ev.snapshot != nil:
		ev.snapshot.resolve(nil, err)
	}
}

// Host owns a set of plugins and broadcasts hooks to them from a single
// worker goroutine. Events from one caller are handled in the order they were
// submitted, and each broadcast finishes before the next begins.
//
// A plugin whose hook fails is closed and removed; the rest keep receiving
// events. A hook that never returns stalls the worker, as running hooks
// cannot be interrupted.
type Host struct {
	events  chan *hookEvent
	stopped chan struct{}
	logger  *slog.Logger
	started *Pending[struct{}]

	mu     sync.RWMutex
	closed bool
}

// New takes ownership of plugins, starts the worker and queues the start
// hook. Plugins are visited in slice order.
func New(ctx context.Context, plugins []plugin.Plugin, opts ...Option) *Host {
	o := collectOptions(opts)
	h := &Host{
		events:  make(chan *hookEvent, o.queueDepth),
		stopped: make(chan struct{}),
		logger:  logging.WithComponent(o.logger, "host"),
	}

	w := &worker{
		plugins: slices.Clone(plugins),
		logger:  h.logger,
		onCrash: o.onCrash,
	}
	h.logger.DebugContext(ctx, "starting plugin host", "plugins", len(plugins))
	go h.run(w)

	h.started = h.RunHook(StartHook, o.startArgs...)
	return h
}

// Started resolves when the start hook has been broadcast.
func (h *Host) Started() *Pending[struct{}] {
	return h.started
}

// RunHook broadcasts hook to every plugin without collecting results. args
// are serialized to JSON once and passed to each plugin positionally.
func (h *Host) RunHook(hook string, args ...any) *Pending[struct{}] {
	p := newPending[struct{}]()
	h.submit(&hookEvent{id: uuid.New(), hook: hook, args: args, empty: p})
	return p
}

// RunHookWithReturn broadcasts hook and collects one Response per plugin
// that implements it without failing, in plugin order.
func (h *Host) RunHookWithReturn(hook string, args ...any) *Pending[[]Response] {
	p := newPending[[]Response]()
	h.submit(&hookEvent{id: uuid.New(), hook: hook, args: args, value: p})
	return p
}

// Plugins returns the names of the live plugins, as seen by the worker after
// every event submitted before it.
func (h *Host) Plugins(ctx context.Context) ([]string, error) {
	p := newPending[[]string]()
	h.submit(&hookEvent{id: uuid.New(), snapshot: p})
	return p.Wait(ctx)
}

func (h *Host) submit(ev *hookEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		ev.fail(ErrHostClosed)
		return
	}
	h.events <- ev
}

// Close stops accepting events, lets the worker finish the queued ones, and
// closes every remaining plugin. It returns early with ctx's error if ctx is
// done first; the worker still finishes in the background.
func (h *Host) Close(ctx context.Context) error {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.events)
	}
	h.mu.Unlock()

	select {
	case <-h.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) run(w *worker) {
	// Plugins are always entered from the same thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(h.stopped)

	ctx := context.Background()
	for ev := range h.events {
		w.dispatch(ctx, ev)
	}
	w.shutdown(ctx)
}

type worker struct {
	plugins []plugin.Plugin
	logger  *slog.Logger
	onCrash func(string, error)
}

type crash struct {
	index int
	err   error
}

func (w *worker) dispatch(ctx context.Context, ev *hookEvent) {
	if ev.snapshot != nil {
		names := make([]string, len(w.plugins))
		for i, p := range w.plugins {
			names[i] = p.Name()
		}
		ev.snapshot.resolve(names, nil)
		return
	}

	args := make([][]byte, len(ev.args))
	for i, arg := range ev.args {
		b, err := json.Marshal(arg)
		if err != nil {
			ev.fail(fmt.Errorf("failed to serialize argument %d of hook %s: %w", i, ev.hook, err))
			return
		}
		args[i] = b
	}

	collect := ev.value != nil
	var (
		responses []Response
		crashed   []crash
	)
	for i, p := range w.plugins {
		out := invoke(ctx, p, ev.hook, args, collect)
		switch out.Kind {
		case OutcomeSuccess:
			if collect {
				responses = append(responses, Response{PluginName: p.Name(), Payload: out.Payload})
			}
		case OutcomeCrashed:
			crashed = append(crashed, crash{index: i, err: out.Err})
		}
	}

	// Highest index first so earlier indices stay valid.
	for _, c := range slices.Backward(crashed) {
		w.evict(ctx, ev, c)
	}

	if collect {
		ev.value.resolve(responses, nil)
	} else {
		ev.empty.resolve(struct{}{}, nil)
	}
}

func (w *worker) evict(ctx context.Context, ev *hookEvent, c crash) {
	p := w.plugins[c.index]
	w.plugins = slices.Delete(w.plugins, c.index, c.index+1)

	w.logger.ErrorContext(ctx, "plugin crashed",
		"plugin", p.Name(),
		"hook", ev.hook,
		"event_id", ev.id.String(),
		"error", c.err,
	)
	if err := p.Close(ctx); err != nil {
		w.logger.WarnContext(ctx, "failed to close crashed plugin", "plugin", p.Name(), "error", err)
	}
	if w.onCrash != nil {
		w.onCrash(p.Name(), c.err)
	}
}

func (w *worker) shutdown(ctx context.Context) {
	for _, p := range w.plugins {
		if err := p.Close(ctx); err != nil {
			w.logger.WarnContext(ctx, "failed to close plugin", "plugin", p.Name(), "error", err)
		}
	}
	w.plugins = nil
}

// invoke calls one plugin and classifies the result. A panic escaping the
// plugin counts as a crash, except a memory bounds violation, which is a host
// bug and is not recovered.
func invoke(ctx context.Context, p plugin.Plugin, hook string, args [][]byte, collect bool) (out Outcome) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if err, ok := r.(error); ok {
			var bounds *memory.BoundsError
			if errors.As(err, &bounds) {
				panic(r)
			}
		}
		out = Outcome{Kind: OutcomeCrashed, Err: fmt.Errorf("plugin panicked: %v", r)}
	}()

	if collect {
		value, implemented, err := p.CallHookWithReturn(ctx, hook, args)
		return classify(implemented, value, err)
	}
	implemented, err := p.CallHook(ctx, hook, args)
	return classify(implemented, nil, err)
}

func classify(implemented bool, value json.RawMessage, err error) Outcome {
	switch {
	case err != nil:
		return Outcome{Kind: OutcomeCrashed, Err: err}
	case !implemented:
		return Outcome{Kind: OutcomeNotImplemented}
	default:
		return Outcome{Kind: OutcomeSuccess, Payload: value}
	}
}
