package relay

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/marmos91/tcprelay/internal/logger"
)

// TaskKind selects what a worker does with a connection.
type TaskKind uint8

const (
	// TaskRead drains the socket and routes complete frames.
	TaskRead TaskKind = iota
	// TaskWrite flushes the outbound buffer.
	TaskWrite
)

func (k TaskKind) String() string {
	switch k {
	case TaskRead:
		return "read"
	case TaskWrite:
		return "write"
	default:
		return fmt.Sprintf("TaskKind(%d)", uint8(k))
	}
}

// Task is one unit of work for a connection. It runs exactly once and is
// never requeued.
type Task struct {
	Conn ConnID
	Kind TaskKind
}

// ErrInvalidPoolSize is returned by NewPool for a non-positive worker count.
var ErrInvalidPoolSize = errors.New("worker pool size must be positive")

// Pool is a fixed set of workers consuming one FIFO task queue.
//
// Submit wakes exactly one idle worker. Stop wakes every worker, waits for
// in-flight tasks to finish and discards whatever is still queued.
type Pool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Task
	stopping bool
	started  bool

	size int
	exec func(Task)
	wg   sync.WaitGroup

	// onDepth, if set, observes the queue length after every change.
	onDepth func(int)
}

// NewPool creates a pool of size workers that run exec for every task.
func NewPool(size int, exec func(Task)) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPoolSize, size)
	}
	p := &Pool{size: size, exec: exec}
	p.cond = sync.NewCond(&p.mu)
	return p, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Start launches the workers. Calling it again has no effect.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.stopping {
		return
	}
	p.started = true

	p.wg.Add(p.size)
	for i := 0; i < p.size; i++ {
		go p.worker(i)
	}
	logger.Debug("Worker pool started", "workers", p.size)
}

// Submit queues t and wakes one worker. It returns false once the pool is
// stopping.
func (p *Pool) Submit(t Task) bool {
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return false
	}
	p.queue = append(p.queue, t)
	depth := len(p.queue)
	p.cond.Signal()
	p.mu.Unlock()

	if p.onDepth != nil {
		p.onDepth(depth)
	}
	return true
}

// Pending returns the number of queued tasks not yet picked up.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Stop signals every worker, waits for running tasks to return and drops
// the remaining queue. It returns the number of dropped tasks.
func (p *Pool) Stop() int {
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		p.wg.Wait()
		return 0
	}
	p.stopping = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	dropped := len(p.queue)
	p.queue = nil
	p.mu.Unlock()

	if p.onDepth != nil {
		p.onDepth(0)
	}
	if dropped > 0 {
		logger.Debug("Worker pool dropped queued tasks", "dropped", dropped)
	}
	return dropped
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopping {
			p.cond.Wait()
		}
		if p.stopping {
			p.mu.Unlock()
			return
		}

		t := p.queue[0]
		p.queue[0] = Task{}
		p.queue = p.queue[1:]
		depth := len(p.queue)
		p.mu.Unlock()

		if p.onDepth != nil {
			p.onDepth(depth)
		}
		p.run(id, t)
	}
}

// run executes one task and keeps a panic from killing the worker.
func (p *Pool) run(worker int, t Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Task panicked",
				"worker", worker,
				logger.KeyConnID, t.Conn,
				logger.KeyTask, t.Kind.String(),
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	p.exec(t)
}
