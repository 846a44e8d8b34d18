package csound

import (
	"sync"

	"github.com/google/uuid"
)

// Task is an operation run on the render loop between two control periods.
// It has exclusive access to the engine while it runs. A returned error is
// logged; it never stops the loop.
type Task func(e Engine, pt *PerformanceThread) error

type queuedTask struct {
	id string
	fn Task
	// cancel, if set, is told why the task did not complete: the queue was
	// shut down before it ran, or it panicked.
	cancel func(error)
}

// TaskQueue is an unbounded FIFO of tasks for one performance thread.
//
// Submit is safe from any goroutine and never waits for execution. The
// render loop is the only consumer.
type TaskQueue struct {
	mu     sync.Mutex
	tasks  []queuedTask
	closed bool
	owner  *PerformanceThread
}

// NewTaskQueue creates an empty, unattached queue. Tasks submitted before
// the queue is attached run once a performance thread adopts it.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		tasks: make([]queuedTask, 0, 16),
	}
}

// Submit enqueues a task. It fails with ErrQueueClosed once the render loop
// that owned the queue has exited.
func (q *TaskQueue) Submit(t Task) error {
	_, err := q.push(t, nil)
	return err
}

func (q *TaskQueue) push(t Task, cancel func(error)) (string, error) {
	if t == nil {
		return "", ErrNilTask
	}
	id := uuid.Must(uuid.NewV7()).String()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrQueueClosed
	}
	q.tasks = append(q.tasks, queuedTask{id: id, fn: t, cancel: cancel})
	owner := q.owner
	q.mu.Unlock()

	if owner != nil {
		owner.notify()
	}
	return id, nil
}

// tryPop removes the front task without blocking.
func (q *TaskQueue) tryPop() (queuedTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return queuedTask{}, false
	}
	t := q.tasks[0]
	// Release the closure for the GC.
	q.tasks[0] = queuedTask{}
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return t, true
}

// Len returns the number of pending tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Closed reports whether the queue has been shut down.
func (q *TaskQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *TaskQueue) attach(pt *PerformanceThread) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch {
	case q.closed:
		return ErrQueueClosed
	case q.owner != nil && q.owner != pt:
		return ErrQueueInUse
	}
	q.owner = pt
	return nil
}

// close shuts the queue down and abandons pending tasks, telling each
// abandoned task's waiter why.
func (q *TaskQueue) close(reason error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	abandoned := q.tasks
	q.tasks = nil
	q.mu.Unlock()

	for _, t := range abandoned {
		if t.cancel != nil {
			t.cancel(reason)
		}
	}
}
