package task

import (
	"context"
	"errors"
	"testing"
)

func TestNewRunnableDistinctIdentity(t *testing.T) {
	fn := func(context.Context) error { return nil }
	a := NewRunnable(fn)
	b := NewRunnable(fn)

	if a.ID() == "" {
		t.Fatal("ID should not be empty")
	}
	if a.ID() == b.ID() {
		t.Error("two wrappers of the same function must be distinct tasks")
	}
	if a.Kind() != KindRunnable {
		t.Errorf("Kind() = %v, want runnable", a.Kind())
	}
}

func TestRunnableName(t *testing.T) {
	r := NewNamedRunnable("ping", nil)
	if r.Name() != "ping" {
		t.Errorf("Name() = %q, want ping", r.Name())
	}

	anon := NewRunnable(nil)
	if anon.Name() != anon.ID().Short() {
		t.Errorf("anonymous name = %q, want short id %q", anon.Name(), anon.ID().Short())
	}
}

func TestRunnableRun(t *testing.T) {
	want := errors.New("boom")
	r := NewRunnable(func(context.Context) error { return want })

	if err := r.Run(context.Background()); !errors.Is(err, want) {
		t.Errorf("Run() = %v, want %v", err, want)
	}
	v, err := r.Call(context.Background())
	if v != nil || !errors.Is(err, want) {
		t.Errorf("Call() = (%v, %v), want (nil, %v)", v, err, want)
	}
}

func TestNilRunnable(t *testing.T) {
	var r *Runnable
	if r.ID() != "" {
		t.Error("nil runnable should have empty ID")
	}
	if err := r.Run(context.Background()); err != nil {
		t.Errorf("nil runnable Run() = %v", err)
	}
	if err := NewRunnable(nil).Run(context.Background()); err != nil {
		t.Errorf("nil body Run() = %v", err)
	}
}

func TestCallable(t *testing.T) {
	c := NewNamedCallable("answer", func(context.Context) (any, error) { return 42, nil })

	if c.Kind() != KindCallable {
		t.Errorf("Kind() = %v, want callable", c.Kind())
	}
	v, err := c.Call(context.Background())
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if v != 42 {
		t.Errorf("Call() = %v, want 42", v)
	}

	var nilc *Callable
	if v, err := nilc.Call(context.Background()); v != nil || err != nil {
		t.Errorf("nil callable Call() = (%v, %v)", v, err)
	}
}

func TestIDShort(t *testing.T) {
	tests := []struct {
		id   ID
		want string
	}{
		{"", ""},
		{"abc", "abc"},
		{"0123456789abcdef", "01234567"},
	}
	for _, tt := range tests {
		if got := tt.id.Short(); got != tt.want {
			t.Errorf("ID(%q).Short() = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindRunnable.String() != "runnable" || KindCallable.String() != "callable" {
		t.Error("unexpected kind names")
	}
	if Kind(99).String() != "unknown" {
		t.Error("unknown kind should say so")
	}
}

func TestRunnableThen(t *testing.T) {
	var order []string
	step := func(name string, err error) *Runnable {
		return NewNamedRunnable(name, func(context.Context) error {
			order = append(order, name)
			return err
		})
	}

	first := step("first", nil)
	unit := first.Then(step("second", nil), nil, step("third", nil))
	if unit.ID() != first.ID() {
		t.Error("Then must keep the identity of the first task")
	}
	if err := unit.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if len(order) != 3 || order[0] != "first" || order[2] != "third" {
		t.Errorf("order = %v", order)
	}

	order = nil
	boom := errors.New("boom")
	err := step("a", boom).Then(step("b", nil)).Run(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Run() = %v, want boom", err)
	}
	if len(order) != 1 {
		t.Errorf("callback ran after failure: %v", order)
	}

	if r := first.Then(); r != first {
		t.Error("Then without callbacks should return the task itself")
	}
}
