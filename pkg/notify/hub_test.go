package notify

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vnykmshr/taskchain/pkg/task"
)

type call struct {
	event string
	err   error
	task  task.Task
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) add(ev string, err error, t task.Task) {
	r.mu.Lock()
	r.calls = append(r.calls, call{ev, err, t})
	r.mu.Unlock()
}

func (r *recorder) OnInterrupted(err error, t task.Task)      { r.add("interrupted", err, t) }
func (r *recorder) OnExecutionFailure(err error, t task.Task) { r.add("failure", err, t) }
func (r *recorder) OnTimeout(err error, t task.Task)          { r.add("timeout", err, t) }

func (r *recorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.event
	}
	return out
}

type panicky struct{ ListenerAdapter }

func (panicky) OnExecutionFailure(error, task.Task) { panic("listener bug") }

func TestHubFanOut(t *testing.T) {
	h := NewHub(zap.NewNop())
	a, b := &recorder{}, &recorder{}
	h.Subscribe(a)
	h.Subscribe(b)

	tk := task.NewRunnable(nil)
	cause := errors.New("boom")
	h.NotifyExecutionFailure(tk, cause)
	h.NotifyTimeout(tk, cause)
	h.NotifyInterrupted(nil, cause)

	for _, r := range []*recorder{a, b} {
		assert.Equal(t, []string{"failure", "timeout", "interrupted"}, r.events())
		assert.Equal(t, tk.ID(), r.calls[0].task.ID())
		assert.ErrorIs(t, r.calls[0].err, cause)
		assert.Nil(t, r.calls[2].task)
	}
}

func TestHubRegistrationOrder(t *testing.T) {
	h := NewHub(zap.NewNop())
	var mu sync.Mutex
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		h.Subscribe(&ListenerFuncs{Timeout: func(error, task.Task) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}})
	}
	h.NotifyTimeout(nil, errors.New("x"))
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestHubIsolatesPanickingListener(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := NewHub(zap.New(core))
	after := &recorder{}
	h.Subscribe(panicky{})
	h.Subscribe(after)

	require.NotPanics(t, func() {
		h.NotifyExecutionFailure(task.NewRunnable(nil), errors.New("boom"))
	})
	assert.Equal(t, []string{"failure"}, after.events())
	assert.Equal(t, 1, logs.FilterMessage("listener panicked").Len())
}

func TestHubNoListeners(t *testing.T) {
	h := NewHub(nil)
	assert.NotPanics(t, func() {
		h.NotifyExecutionFailure(nil, errors.New("unobserved"))
	})
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub(zap.NewNop())
	a, b := &recorder{}, &recorder{}
	h.Subscribe(a)
	h.Subscribe(b)

	assert.True(t, h.Unsubscribe(a))
	assert.False(t, h.Unsubscribe(a))
	assert.Equal(t, 1, h.Len())

	h.NotifyTimeout(nil, errors.New("x"))
	assert.Empty(t, a.events())
	assert.Equal(t, []string{"timeout"}, b.events())
}

type sliceListener struct {
	ListenerAdapter
	tags []string
}

func TestHubUnsubscribeNonComparable(t *testing.T) {
	h := NewHub(zap.NewNop())
	l := sliceListener{tags: []string{"x"}}
	h.Subscribe(l)
	h.Subscribe(&recorder{})

	assert.NotPanics(t, func() {
		assert.False(t, h.Unsubscribe(l))
		assert.False(t, h.Unsubscribe(&recorder{}))
	})
	assert.Equal(t, 2, h.Len())
}

func TestHubSubscribeNil(t *testing.T) {
	h := NewHub(zap.NewNop())
	h.Subscribe(nil)
	assert.Equal(t, 0, h.Len())
	assert.False(t, h.Unsubscribe(nil))
}

func TestHubOnEvent(t *testing.T) {
	h := NewHub(zap.NewNop())
	var seen []Event
	h.OnEvent = func(e Event) { seen = append(seen, e) }

	h.NotifyInterrupted(nil, nil)
	h.NotifyExecutionFailure(nil, nil)
	h.NotifyTimeout(nil, nil)
	assert.Equal(t, []Event{EventInterrupted, EventExecutionFailure, EventTimeout}, seen)
}

func TestHubConcurrentSubscribeNotify(t *testing.T) {
	h := NewHub(zap.NewNop())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r := &recorder{}
			h.Subscribe(r)
			h.Unsubscribe(r)
		}()
		go func() {
			defer wg.Done()
			h.NotifyTimeout(nil, errors.New("x"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, h.Len())
}

func TestLogListener(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLogListener(zap.New(core))
	tk := task.NewNamedRunnable("job", nil)

	l.OnExecutionFailure(errors.New("boom"), tk)
	l.OnTimeout(errors.New("slow"), tk)
	l.OnInterrupted(errors.New("stop"), nil)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "task failed", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "job", entries[0].ContextMap()["task"])
	assert.Equal(t, "task timed out", entries[1].Message)
	assert.Equal(t, "<pool>", entries[2].ContextMap()["task"])
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "interrupted", EventInterrupted.String())
	assert.Equal(t, "execution_failure", EventExecutionFailure.String())
	assert.Equal(t, "timeout", EventTimeout.String())
	assert.Equal(t, "event(9)", Event(9).String())
}
