package redisnotify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vnykmshr/taskchain/pkg/notify"
	"github.com/vnykmshr/taskchain/pkg/task"
)

// DefaultChannel is the pub/sub channel used when Config.Channel is empty.
const DefaultChannel = "taskchain:events"

// Publisher is the subset of redis.UniversalClient the listener needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Event is the JSON payload published for every notification.
type Event struct {
	Event    string    `json:"event"`
	TaskID   string    `json:"task_id,omitempty"`
	TaskName string    `json:"task_name,omitempty"`
	TaskKind string    `json:"task_kind,omitempty"`
	Error    string    `json:"error,omitempty"`
	Source   string    `json:"source,omitempty"`
	Time     time.Time `json:"time"`
}

// Config holds configuration for a Redis listener.
type Config struct {
	// Redis client used for publishing
	Redis Publisher

	// Channel is the pub/sub channel. Defaults to DefaultChannel.
	Channel string

	// Source identifies this process in published events
	Source string

	// PublishTimeout bounds each publish. Defaults to one second.
	PublishTimeout time.Duration

	// Logger receives publish failures. Defaults to zap.L().
	Logger *zap.Logger
}

// Listener publishes every event to a Redis channel. Publish failures are
// logged and otherwise ignored.
type Listener struct {
	client  Publisher
	channel string
	source  string
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

var _ notify.Listener = (*Listener)(nil)

// New creates a listener publishing through client on DefaultChannel.
func New(client Publisher) *Listener {
	return NewWithConfig(Config{Redis: client})
}

// NewWithConfig creates a listener from config.
func NewWithConfig(config Config) *Listener {
	if config.Channel == "" {
		config.Channel = DefaultChannel
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = time.Second
	}
	if config.Logger == nil {
		config.Logger = zap.L()
	}
	return &Listener{
		client:  config.Redis,
		channel: config.Channel,
		source:  config.Source,
		timeout: config.PublishTimeout,
		logger:  config.Logger.Named("redisnotify"),
		now:     time.Now,
	}
}

func (l *Listener) OnInterrupted(err error, t task.Task) {
	l.publish(notify.EventInterrupted, err, t)
}

func (l *Listener) OnExecutionFailure(err error, t task.Task) {
	l.publish(notify.EventExecutionFailure, err, t)
}

func (l *Listener) OnTimeout(err error, t task.Task) {
	l.publish(notify.EventTimeout, err, t)
}

func (l *Listener) publish(ev notify.Event, err error, t task.Task) {
	if l.client == nil {
		return
	}
	payload, merr := json.Marshal(l.event(ev, err, t))
	if merr != nil {
		l.logger.Error("encode event", zap.Error(merr))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	if perr := l.client.Publish(ctx, l.channel, payload).Err(); perr != nil {
		l.logger.Warn("publish event",
			zap.String("channel", l.channel),
			zap.Stringer("event", ev),
			zap.Error(perr),
		)
	}
}

func (l *Listener) event(ev notify.Event, err error, t task.Task) Event {
	e := Event{
		Event:  ev.String(),
		Source: l.source,
		Time:   l.now().UTC(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	if t != nil {
		e.TaskID = t.ID().String()
		e.TaskName = t.Name()
		e.TaskKind = t.Kind().String()
	}
	return e
}
