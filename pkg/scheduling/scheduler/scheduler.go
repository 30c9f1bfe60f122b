package scheduler

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	tcerrors "github.com/vnykmshr/taskchain/pkg/common/errors"
	"github.com/vnykmshr/taskchain/pkg/common/validation"
	"github.com/vnykmshr/taskchain/pkg/metrics"
	"github.com/vnykmshr/taskchain/pkg/scheduling/workerpool"
)

// ErrTaskExists is returned when an ID is already scheduled.
var ErrTaskExists = errors.New("task already scheduled")

// Task describes a scheduled entry.
type Task struct {
	ID       string
	Kind     Kind
	RunAt    time.Time
	Interval time.Duration // Zero unless Kind is KindFixedRate
	Cron     string        // Empty unless Kind is KindCron
	Created  time.Time
	Fired    int64
}

// Scheduler hands tasks to a worker pool at a later time, once or repeatedly.
type Scheduler interface {
	// Basic scheduling
	Schedule(id string, task workerpool.Task, runAt time.Time) error
	ScheduleAfter(id string, task workerpool.Task, delay time.Duration) error
	ScheduleRepeating(id string, task workerpool.Task, interval time.Duration) error
	ScheduleFixedRate(id string, task workerpool.Task, initialDelay, interval time.Duration) error

	// Cron scheduling
	ScheduleCron(id string, cronExpr string, task workerpool.Task) error

	// Task management
	Cancel(id string) bool
	CancelAll() int
	CancelRepeating() int
	List() []Task
	Len() int

	// Lifecycle
	Start() error
	// Drain rejects new entries, cancels repeating ones and keeps firing
	// one-shot entries at their time. The channel closes once none remain.
	Drain() <-chan struct{}
	// Stop discards all entries and stops the timer loop.
	Stop() <-chan struct{}
}

// Config holds scheduler configuration.
type Config struct {
	WorkerPool workerpool.Pool
	Location   *time.Location // For cron scheduling
	MaxTasks   int            // Maximum number of scheduled tasks (default: 10000)

	// OnSubmitError is called when a due task cannot be handed to the pool.
	OnSubmitError func(id string, err error)

	// Name labels metrics; Metrics, when set, records entries and firings.
	Name    string
	Metrics *metrics.Registry

	Logger *zap.Logger
}

// scheduler keeps entries in a min-heap and sleeps until the earliest one
// is due.
type scheduler struct {
	pool     workerpool.Pool
	ownPool  bool
	location *time.Location
	maxTasks int
	onError  func(id string, err error)
	name     string
	metrics  *metrics.Registry
	logger   *zap.Logger

	mu       sync.Mutex
	pq       taskHeap
	byID     map[string]*scheduledTask
	nextSeq  uint64
	running  bool
	draining bool
	stopped  bool

	wakeup  chan struct{}
	quit    chan struct{}
	exited  chan struct{}
	drained chan struct{}
}

// New creates a scheduler with default configuration.
func New() Scheduler {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) Scheduler {
	pool := cfg.WorkerPool
	ownPool := false
	if pool == nil {
		pool = workerpool.New(4)
		ownPool = true
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 10000 // Reasonable default
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.L()
	}

	return &scheduler{
		pool:     pool,
		ownPool:  ownPool,
		location: location,
		maxTasks: maxTasks,
		onError:  cfg.OnSubmitError,
		name:     cfg.Name,
		metrics:  cfg.Metrics,
		logger:   logger.Named("scheduler"),
		byID:     make(map[string]*scheduledTask),
		wakeup:   make(chan struct{}, 1),
		quit:     make(chan struct{}),
		exited:   make(chan struct{}),
		drained:  make(chan struct{}),
	}
}

func (s *scheduler) Schedule(id string, task workerpool.Task, runAt time.Time) error {
	if runAt.IsZero() {
		return tcerrors.NewValidationError("scheduler", "runAt", runAt, "cannot be zero")
	}
	return s.add(&scheduledTask{id: id, task: task, kind: KindOnce, schedule: once{}, runAt: runAt})
}

func (s *scheduler) ScheduleAfter(id string, task workerpool.Task, delay time.Duration) error {
	if err := validation.ValidateNonNegativeDuration("scheduler", "delay", delay); err != nil {
		return err
	}
	return s.Schedule(id, task, time.Now().Add(delay))
}

func (s *scheduler) ScheduleRepeating(id string, task workerpool.Task, interval time.Duration) error {
	return s.ScheduleFixedRate(id, task, 0, interval)
}

func (s *scheduler) ScheduleFixedRate(id string, task workerpool.Task, initialDelay, interval time.Duration) error {
	if err := validation.ValidateNonNegativeDuration("scheduler", "initialDelay", initialDelay); err != nil {
		return err
	}
	if interval <= 0 {
		return tcerrors.NewValidationError("scheduler", "interval", interval, "must be positive").
			WithHint("use ScheduleAfter for a single run")
	}
	return s.add(&scheduledTask{
		id:       id,
		task:     task,
		kind:     KindFixedRate,
		schedule: fixedRate{interval: interval},
		interval: interval,
		runAt:    time.Now().Add(initialDelay),
	})
}

func (s *scheduler) ScheduleCron(id string, cronExpr string, task workerpool.Task) error {
	schedule, err := ParseCron(cronExpr)
	if err != nil {
		return tcerrors.NewValidationError("scheduler", "cron", cronExpr, err.Error())
	}
	next := schedule.Next(time.Now().In(s.location))
	if next.IsZero() {
		return tcerrors.NewValidationError("scheduler", "cron", cronExpr, "never fires")
	}
	return s.add(&scheduledTask{
		id:       id,
		task:     task,
		kind:     KindCron,
		schedule: schedule,
		expr:     cronExpr,
		runAt:    next,
	})
}

func (s *scheduler) add(st *scheduledTask) error {
	if err := validation.ValidateNotEmpty("scheduler", "id", st.id); err != nil {
		return err
	}
	if len(st.id) > 255 {
		return tcerrors.NewValidationError("scheduler", "id", len(st.id), "too long (max 255 characters)")
	}
	if st.task == nil {
		return tcerrors.ErrNilTask
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draining || s.stopped {
		return tcerrors.ErrShutdown
	}
	if _, exists := s.byID[st.id]; exists {
		return fmt.Errorf("%w: %q, cancel the existing task first", ErrTaskExists, st.id)
	}
	if len(s.byID) >= s.maxTasks {
		return fmt.Errorf("cannot schedule task: maximum number of tasks (%d) reached", s.maxTasks)
	}

	s.nextSeq++
	st.seq = s.nextSeq
	st.created = time.Now()
	s.byID[st.id] = st
	heap.Push(&s.pq, st)
	s.updateGauge()

	if st.index == 0 {
		s.notify()
	}
	return nil
}

// notify wakes the loop so it recomputes its sleep.
func (s *scheduler) notify() {
	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}

func (s *scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, exists := s.byID[id]
	if !exists {
		return false
	}
	s.remove(st)
	return true
}

// LOCKS_REQUIRED(s.mu)
func (s *scheduler) remove(st *scheduledTask) {
	delete(s.byID, st.id)
	if st.index >= 0 {
		heap.Remove(&s.pq, st.index)
	}
	s.updateGauge()
	s.notify()
}

func (s *scheduler) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.byID)
	s.pq = nil
	s.byID = make(map[string]*scheduledTask)
	s.updateGauge()
	s.notify()
	return n
}

func (s *scheduler) CancelRepeating() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelRepeatingLocked()
}

// LOCKS_REQUIRED(s.mu)
func (s *scheduler) cancelRepeatingLocked() int {
	var n int
	for _, st := range s.byID {
		if st.kind.Repeating() {
			s.remove(st)
			n++
		}
	}
	return n
}

func (s *scheduler) List() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]Task, 0, len(s.byID))
	for _, t := range s.byID {
		tasks = append(tasks, Task{
			ID:       t.id,
			Kind:     t.kind,
			RunAt:    t.runAt,
			Interval: t.interval,
			Cron:     t.expr,
			Created:  t.created,
			Fired:    t.fired,
		})
	}

	// Sort by run time
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].RunAt.Before(tasks[j].RunAt)
	})

	return tasks
}

func (s *scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return tcerrors.ErrShutdown
	}
	if s.running {
		return fmt.Errorf("scheduler already running, call Stop() first")
	}

	s.running = true
	go s.run()
	return nil
}

func (s *scheduler) Drain() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.draining {
		s.draining = true
		s.cancelRepeatingLocked()
		if !s.running {
			s.closeDrainedLocked()
		}
		s.notify()
	}
	return s.drained
}

// LOCKS_REQUIRED(s.mu)
func (s *scheduler) closeDrainedLocked() {
	select {
	case <-s.drained:
	default:
		close(s.drained)
	}
}

func (s *scheduler) Stop() <-chan struct{} {
	s.mu.Lock()
	wasRunning := s.running
	if !s.stopped {
		s.stopped = true
		s.running = false
		s.pq = nil
		s.byID = make(map[string]*scheduledTask)
		s.updateGauge()
		close(s.quit)
		s.closeDrainedLocked()
	}
	s.mu.Unlock()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if wasRunning {
			<-s.exited
		}
		if s.ownPool {
			<-s.pool.Shutdown()
		}
	}()

	return stopped
}

func (s *scheduler) run() {
	defer close(s.exited)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		wait, idle := s.nextWait()
		if idle && s.isDrained() {
			return
		}
		if idle {
			wait = time.Hour
		}
		timer.Reset(wait)

		select {
		case <-s.quit:
			return
		case <-timer.C:
			s.processReadyTasks()
		case <-s.wakeup:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
	}
}

// nextWait returns how long until the earliest entry is due. idle is true
// when there are no entries.
func (s *scheduler) nextWait() (wait time.Duration, idle bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.pq.peek()
	if item == nil {
		return 0, true
	}
	if d := time.Until(item.runAt); d > 0 {
		return d, false
	}
	return 0, false
}

// isDrained closes the drained channel when draining has emptied the heap.
func (s *scheduler) isDrained() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining && len(s.byID) == 0 {
		s.running = false
		s.closeDrainedLocked()
		return true
	}
	return false
}

type firing struct {
	id   string
	task workerpool.Task
}

func (s *scheduler) processReadyTasks() {
	now := time.Now()

	s.mu.Lock()
	var ready []firing
	var rearm []*scheduledTask
	for s.pq.Len() > 0 {
		item := s.pq.peek()
		if item.runAt.After(now) {
			break
		}
		heap.Pop(&s.pq)
		item.fired++
		ready = append(ready, firing{id: item.id, task: item.task})

		next := item.schedule.Next(item.runAt.In(s.location))
		if next.IsZero() {
			delete(s.byID, item.id)
			continue
		}
		item.runAt = next
		rearm = append(rearm, item)
	}
	// Re-armed entries fire at most once per pass; an overdue fixed-rate
	// entry fires again on the next pass without waiting.
	for _, item := range rearm {
		heap.Push(&s.pq, item)
	}
	s.updateGauge()
	s.mu.Unlock()

	for _, f := range ready {
		if s.metrics != nil {
			s.metrics.TimerFirings.WithLabelValues(s.name).Inc()
		}
		if err := s.pool.Submit(f.task); err != nil {
			s.logger.Warn("submit scheduled task", zap.String("id", f.id), zap.Error(err))
			if s.onError != nil {
				s.onError(f.id, err)
			}
		}
	}
}

// LOCKS_REQUIRED(s.mu)
func (s *scheduler) updateGauge() {
	if s.metrics != nil {
		s.metrics.TimerEntries.WithLabelValues(s.name).Set(float64(len(s.byID)))
	}
}
