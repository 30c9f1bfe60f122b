package task

import (
	"context"

	"github.com/google/uuid"
)

// ID identifies a task or a submission. IDs are random UUIDs, so two tasks
// wrapping the same function never share an identity.
type ID string

// NewID returns a fresh random ID.
func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string {
	return string(id)
}

// Short returns the first eight characters, enough to tell IDs apart in logs.
func (id ID) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

// Kind distinguishes side-effecting tasks from value-producing ones.
type Kind int

const (
	KindRunnable Kind = iota
	KindCallable
)

func (k Kind) String() string {
	switch k {
	case KindRunnable:
		return "runnable"
	case KindCallable:
		return "callable"
	default:
		return "unknown"
	}
}

// Task is a unit of work known to the chain. Identity is the ID, never the
// contents of the task.
type Task interface {
	ID() ID
	Kind() Kind
	Name() string
}

// Executable is a Task that the executor can run. Runnables report a nil value.
type Executable interface {
	Task
	Call(ctx context.Context) (any, error)
}

// Func is the body of a side-effecting task.
type Func func(ctx context.Context) error

// CallFunc is the body of a value-producing task.
type CallFunc func(ctx context.Context) (any, error)

// Runnable is a side-effecting task.
type Runnable struct {
	id   ID
	name string
	fn   Func
}

// NewRunnable wraps fn as a new task with its own identity.
func NewRunnable(fn Func) *Runnable {
	return NewNamedRunnable("", fn)
}

// NewNamedRunnable is NewRunnable with a human readable name used in logs.
func NewNamedRunnable(name string, fn Func) *Runnable {
	return &Runnable{id: NewID(), name: name, fn: fn}
}

func (r *Runnable) ID() ID {
	if r == nil {
		return ""
	}
	return r.id
}

func (r *Runnable) Kind() Kind { return KindRunnable }

func (r *Runnable) Name() string {
	if r == nil {
		return ""
	}
	if r.name == "" {
		return r.id.Short()
	}
	return r.name
}

// Run executes the task body.
func (r *Runnable) Run(ctx context.Context) error {
	if r == nil || r.fn == nil {
		return nil
	}
	return r.fn(ctx)
}

// Then returns a task with r's identity that runs r and then each of next
// in order on the same goroutine. The first failure ends the sequence.
func (r *Runnable) Then(next ...*Runnable) *Runnable {
	if len(next) == 0 {
		return r
	}
	return &Runnable{
		id:   r.ID(),
		name: r.Name(),
		fn: func(ctx context.Context) error {
			if err := r.Run(ctx); err != nil {
				return err
			}
			for _, n := range next {
				if err := n.Run(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// Call implements Executable.
func (r *Runnable) Call(ctx context.Context) (any, error) {
	return nil, r.Run(ctx)
}

// Callable is a value-producing task.
type Callable struct {
	id   ID
	name string
	fn   CallFunc
}

// NewCallable wraps fn as a new task with its own identity.
func NewCallable(fn CallFunc) *Callable {
	return NewNamedCallable("", fn)
}

// NewNamedCallable is NewCallable with a human readable name used in logs.
func NewNamedCallable(name string, fn CallFunc) *Callable {
	return &Callable{id: NewID(), name: name, fn: fn}
}

func (c *Callable) ID() ID {
	if c == nil {
		return ""
	}
	return c.id
}

func (c *Callable) Kind() Kind { return KindCallable }

func (c *Callable) Name() string {
	if c == nil {
		return ""
	}
	if c.name == "" {
		return c.id.Short()
	}
	return c.name
}

// Call executes the task body and returns its value.
func (c *Callable) Call(ctx context.Context) (any, error) {
	if c == nil || c.fn == nil {
		return nil, nil
	}
	return c.fn(ctx)
}
