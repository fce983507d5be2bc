// Package workerpool runs engine jobs across N worker goroutines, each
// consuming from a shared priority queue under a mutex and acquiring the
// target chunk's exclusive lock before mutating it (spec §4.8). It is
// grounded on two sources: the teacher's single-writer-per-chunk discipline
// (chunk-server/internal/server/server.go) and the generic bounded worker
// pool shape in
// other_examples/4359e9b5_itohio-EasyRobot__x-math-primitive-generics-helpers-worker_pool.go.go
// (atomic closed flag, per-job cancellation via context).
package workerpool

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"

	"github.com/firestar-voxel/wfcterrain/internal/coords"
	"github.com/firestar-voxel/wfcterrain/internal/wfc"
)

// Kind enumerates the job kinds the scheduler dispatches (spec §2 data flow).
type Kind int

const (
	JobCreateChunk Kind = iota
	JobCollapse
	JobPropagateBoundary
	JobUnload
)

// Job is one unit of scheduled work targeting a single chunk.
type Job struct {
	Kind          Kind
	Chunk         coords.ChunkCoord
	Priority      float64 // higher runs first
	MaxIterations int

	seq   uint64
	index int
}

// Result is a worker's output for one job (spec §4.8): counts plus any
// outbound cross-boundary events for the scheduler to transport.
type Result struct {
	Job            Job
	CellsCollapsed int
	Propagations   int
	Contradictions int
	Outbound       []wfc.PropagationEvent
	Err            error
}

// Handler executes one job against its target chunk. It must respect
// ctx cancellation at iteration boundaries (spec §5 Cancellation).
type Handler func(ctx context.Context, job Job) Result

// Pool runs N workers pulling from a shared priority queue.
type Pool struct {
	handler Handler

	mu    sync.Mutex
	cond  *sync.Cond
	queue jobHeap
	seq   uint64

	inFlight map[coords.ChunkCoord]context.CancelFunc

	results chan Result
	closed  atomic.Bool
	wg      sync.WaitGroup
}

// New starts a pool of n workers, each calling handler for dispatched jobs.
// Results are delivered on the channel returned by Results(); the caller
// (scheduler) must drain it or workers will block on a full buffer.
func New(n int, handler Handler) *Pool {
	p := &Pool{
		handler:  handler,
		inFlight: make(map[coords.ChunkCoord]context.CancelFunc),
		results:  make(chan Result, 256),
	}
	p.cond = sync.NewCond(&p.mu)
	heap.Init(&p.queue)

	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.workerLoop()
	}
	return p
}

// Submit enqueues a job. Jobs targeting the same chunk as an already
// in-flight job are still accepted (e.g. a later Unload); they wait behind
// the chunk's lock inside the handler.
func (p *Pool) Submit(job Job) {
	p.mu.Lock()
	p.seq++
	job.seq = p.seq
	heap.Push(&p.queue, &job)
	p.mu.Unlock()
	p.cond.Signal()
}

// Results returns the channel of completed-job notifications the scheduler
// drains each tick (spec §4.8 "main-thread pump").
func (p *Pool) Results() <-chan Result {
	return p.results
}

// CancelChunk requests early termination of any in-flight job targeting
// coord (spec §5 Cancellation, used when an Unload arrives mid-Collapse).
// It is a no-op if no job for that chunk is currently running.
func (p *Pool) CancelChunk(coord coords.ChunkCoord) {
	p.mu.Lock()
	cancel, ok := p.inFlight[coord]
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

// Close stops accepting new work and waits for in-flight jobs to finish.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.cond.Broadcast()
	p.wg.Wait()
	close(p.results)
}

func (p *Pool) workerLoop() {
	defer p.wg.Done()
	for {
		job, ok := p.nextJob()
		if !ok {
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		p.mu.Lock()
		p.inFlight[job.Chunk] = cancel
		p.mu.Unlock()

		result := p.handler(ctx, job)

		p.mu.Lock()
		delete(p.inFlight, job.Chunk)
		p.mu.Unlock()
		cancel()

		if p.closed.Load() {
			return
		}
		p.results <- result
	}
}

// nextJob blocks until a job is available or the pool is closed.
func (p *Pool) nextJob() (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.queue.Len() == 0 {
		if p.closed.Load() {
			return Job{}, false
		}
		p.cond.Wait()
	}
	job := heap.Pop(&p.queue).(*Job)
	return *job, true
}

type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }
func (h jobHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority // higher priority first
	}
	return h[i].seq < h[j].seq
}
func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *jobHeap) Push(x any) {
	item := x.(*Job)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}
