package notify

import (
	"go.uber.org/zap"

	"github.com/vnykmshr/taskchain/pkg/task"
)

// Listener receives failure events. The task is nil for pool-wide events
// such as an interrupted shutdown.
type Listener interface {
	OnInterrupted(err error, t task.Task)
	OnExecutionFailure(err error, t task.Task)
	OnTimeout(err error, t task.Task)
}

// ListenerAdapter implements Listener with no-ops. Embed it to override only
// the events of interest.
type ListenerAdapter struct{}

func (ListenerAdapter) OnInterrupted(error, task.Task)      {}
func (ListenerAdapter) OnExecutionFailure(error, task.Task) {}
func (ListenerAdapter) OnTimeout(error, task.Task)          {}

// ListenerFuncs is a Listener built from optional functions. Nil fields are
// skipped. Use it by pointer so Unsubscribe can find it again.
type ListenerFuncs struct {
	Interrupted      func(err error, t task.Task)
	ExecutionFailure func(err error, t task.Task)
	Timeout          func(err error, t task.Task)
}

func (l *ListenerFuncs) OnInterrupted(err error, t task.Task) {
	if l.Interrupted != nil {
		l.Interrupted(err, t)
	}
}

func (l *ListenerFuncs) OnExecutionFailure(err error, t task.Task) {
	if l.ExecutionFailure != nil {
		l.ExecutionFailure(err, t)
	}
}

func (l *ListenerFuncs) OnTimeout(err error, t task.Task) {
	if l.Timeout != nil {
		l.Timeout(err, t)
	}
}

// LogListener writes every event to a zap logger.
type LogListener struct {
	logger *zap.Logger
}

// NewLogListener returns a listener logging through logger, or zap.L() when
// logger is nil.
func NewLogListener(logger *zap.Logger) *LogListener {
	if logger == nil {
		logger = zap.L()
	}
	return &LogListener{logger: logger.Named("listener")}
}

func (l *LogListener) OnInterrupted(err error, t task.Task) {
	l.logger.Warn("task interrupted", append(taskFields(t), zap.Error(err))...)
}

func (l *LogListener) OnExecutionFailure(err error, t task.Task) {
	l.logger.Error("task failed", append(taskFields(t), zap.Error(err))...)
}

func (l *LogListener) OnTimeout(err error, t task.Task) {
	l.logger.Warn("task timed out", append(taskFields(t), zap.Error(err))...)
}

func taskFields(t task.Task) []zap.Field {
	if t == nil {
		return []zap.Field{zap.String("task", "<pool>")}
	}
	return []zap.Field{
		zap.String("task_id", t.ID().String()),
		zap.String("task", t.Name()),
		zap.Stringer("kind", t.Kind()),
	}
}
