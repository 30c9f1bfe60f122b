package notify

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/vnykmshr/taskchain/pkg/task"
)

// Event names the three kinds of failure a Hub broadcasts.
type Event int

const (
	EventInterrupted Event = iota
	EventExecutionFailure
	EventTimeout
)

func (e Event) String() string {
	switch e {
	case EventInterrupted:
		return "interrupted"
	case EventExecutionFailure:
		return "execution_failure"
	case EventTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Hub fans events out to its listeners in subscription order. A listener
// that panics is logged and skipped; the others are still notified. With no
// listeners an event is dropped silently.
type Hub struct {
	mu        sync.RWMutex
	listeners []Listener
	logger    *zap.Logger

	// OnEvent, when set, is called once per broadcast before fan-out.
	OnEvent func(Event)
}

// NewHub creates an empty hub. A nil logger means zap.L().
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.L()
	}
	return &Hub{logger: logger.Named("notify")}
}

// Subscribe appends l. Nil listeners are ignored. The same listener may be
// subscribed more than once and is then notified once per subscription.
func (h *Hub) Subscribe(l Listener) {
	if l == nil {
		return
	}
	h.mu.Lock()
	h.listeners = append(h.listeners, l)
	h.mu.Unlock()
}

// Unsubscribe removes the earliest subscription of l and reports whether one
// was found. Listeners of non-comparable types can never be found; subscribe
// them by pointer.
func (h *Hub) Unsubscribe(l Listener) bool {
	if l == nil || !reflect.TypeOf(l).Comparable() {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, cur := range h.listeners {
		if reflect.TypeOf(cur).Comparable() && cur == l {
			h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

func (h *Hub) NotifyInterrupted(t task.Task, err error) {
	h.broadcast(EventInterrupted, t, err)
}

func (h *Hub) NotifyExecutionFailure(t task.Task, err error) {
	h.broadcast(EventExecutionFailure, t, err)
}

func (h *Hub) NotifyTimeout(t task.Task, err error) {
	h.broadcast(EventTimeout, t, err)
}

func (h *Hub) broadcast(ev Event, t task.Task, err error) {
	if h.OnEvent != nil {
		h.OnEvent(ev)
	}

	h.mu.RLock()
	snapshot := make([]Listener, len(h.listeners))
	copy(snapshot, h.listeners)
	h.mu.RUnlock()

	for _, l := range snapshot {
		h.deliver(l, ev, t, err)
	}
}

func (h *Hub) deliver(l Listener, ev Event, t task.Task, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("listener panicked",
				zap.Stringer("event", ev),
				zap.String("listener", fmt.Sprintf("%T", l)),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()

	switch ev {
	case EventInterrupted:
		l.OnInterrupted(err, t)
	case EventExecutionFailure:
		l.OnExecutionFailure(err, t)
	case EventTimeout:
		l.OnTimeout(err, t)
	}
}
