package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vnykmshr/taskchain/pkg/scheduling/workerpool"
)

type scheduledTask struct {
	id       string
	task     workerpool.Task
	kind     Kind
	schedule cron.Schedule
	expr     string
	interval time.Duration
	runAt    time.Time
	created  time.Time
	fired    int64
	seq      uint64
	index    int // for heap interface
}

// taskHeap implements heap.Interface ordered by run time, then by scheduling order so
// entries due at the same instant fire in a stable order.
type taskHeap []*scheduledTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].runAt.Equal(h[j].runAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].runAt.Before(h[j].runAt)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	item := x.(*scheduledTask)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[:n-1]
	return item
}

func (h taskHeap) peek() *scheduledTask {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}
