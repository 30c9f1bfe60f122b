package redisnotify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vnykmshr/taskchain/pkg/notify"
	"github.com/vnykmshr/taskchain/pkg/task"
)

type message struct {
	channel string
	payload []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []message
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, msg interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "publish", channel, msg)
	if p.err != nil {
		cmd.SetErr(p.err)
		return cmd
	}
	p.mu.Lock()
	p.messages = append(p.messages, message{channel, msg.([]byte)})
	p.mu.Unlock()
	cmd.SetVal(1)
	return cmd
}

func decode(t *testing.T, m message) Event {
	t.Helper()
	var e Event
	require.NoError(t, json.Unmarshal(m.payload, &e))
	return e
}

func TestListenerPublishesEvents(t *testing.T) {
	pub := &fakePublisher{}
	l := NewWithConfig(Config{Redis: pub, Source: "worker-1"})
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	tk := task.NewNamedRunnable("backup", nil)
	l.OnExecutionFailure(errors.New("disk full"), tk)
	l.OnTimeout(errors.New("slow"), tk)
	l.OnInterrupted(errors.New("shutdown"), nil)

	require.Len(t, pub.messages, 3)
	assert.Equal(t, DefaultChannel, pub.messages[0].channel)

	e := decode(t, pub.messages[0])
	assert.Equal(t, "execution_failure", e.Event)
	assert.Equal(t, tk.ID().String(), e.TaskID)
	assert.Equal(t, "backup", e.TaskName)
	assert.Equal(t, "runnable", e.TaskKind)
	assert.Equal(t, "disk full", e.Error)
	assert.Equal(t, "worker-1", e.Source)
	assert.True(t, e.Time.Equal(fixed))

	assert.Equal(t, "timeout", decode(t, pub.messages[1]).Event)

	pool := decode(t, pub.messages[2])
	assert.Equal(t, "interrupted", pool.Event)
	assert.Empty(t, pool.TaskID)
}

func TestListenerCustomChannel(t *testing.T) {
	pub := &fakePublisher{}
	l := NewWithConfig(Config{Redis: pub, Channel: "jobs"})
	l.OnTimeout(nil, nil)

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "jobs", pub.messages[0].channel)
	assert.Empty(t, decode(t, pub.messages[0]).Error)
}

func TestListenerLogsPublishFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	pub := &fakePublisher{err: errors.New("connection refused")}
	l := NewWithConfig(Config{Redis: pub, Logger: zap.New(core)})

	assert.NotPanics(t, func() {
		l.OnExecutionFailure(errors.New("boom"), nil)
	})
	assert.Equal(t, 1, logs.FilterMessage("publish event").Len())
}

func TestListenerWithHub(t *testing.T) {
	pub := &fakePublisher{}
	h := notify.NewHub(zap.NewNop())
	h.Subscribe(New(pub))

	h.NotifyTimeout(task.NewRunnable(nil), errors.New("late"))
	require.Len(t, pub.messages, 1)
	assert.Equal(t, "timeout", decode(t, pub.messages[0]).Event)
}

func TestListenerNilClient(t *testing.T) {
	l := New(nil)
	assert.NotPanics(t, func() { l.OnTimeout(errors.New("x"), nil) })
}
