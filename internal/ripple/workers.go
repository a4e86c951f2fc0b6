package ripple

import (
	"runtime"
	"sync"
)

// rowBand is a half-open row range handled by one worker.
type rowBand struct{ y0, y1 int }

// workerBands collects the row bands assigned to a worker goroutine.
type workerBands struct {
	bands []rowBand
}

// assignRowBands cuts the grid into bands of bandRows rows and distributes them
// across workers in round robin fashion.
func assignRowBands(workerCount, size, bandRows int) []workerBands {
	if workerCount < 1 {
		workerCount = 1
	}
	if bandRows < 1 {
		bandRows = 1
	}
	assigned := make([]workerBands, workerCount)
	idx := 0
	for y := 0; y < size; y += bandRows {
		band := rowBand{y0: y, y1: min(y+bandRows, size)}
		w := idx % workerCount
		assigned[w].bands = append(assigned[w].bands, band)
		idx++
	}
	return assigned
}

// stepJob is the shared input for one step; workers only read it.
type stepJob struct {
	next, cur, prev []float32
	size            int
	u               *Uniforms
	inj             injection
}

// CPUStepper runs the wave program on the CPU with a fixed pool of worker
// goroutines. Workers are started once and parked on a condition variable
// between steps.
type CPUStepper struct {
	mu      sync.Mutex
	cond    *sync.Cond
	step    int
	pending int
	closed  bool
	started bool
	workers int
	assign  []workerBands
	job     stepJob
	done    sync.WaitGroup
}

// NewCPUStepper returns a stepper using the given worker count; values below 1
// use one worker per CPU.
func NewCPUStepper(workers int) *CPUStepper {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	s := &CPUStepper{workers: workers}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Name identifies the backend in logs.
func (s *CPUStepper) Name() string { return "cpu" }

// Step writes the next field into buf.Next(). Roles are advanced by the caller.
func (s *CPUStepper) Step(buf *TripleBuffer, u *Uniforms) error {
	size := buf.Size()
	job := stepJob{
		next: buf.Next(),
		cur:  buf.Current(),
		prev: buf.Prev(),
		size: size,
		u:    u,
		inj:  newInjection(u, size),
	}
	if s.workers == 1 {
		stepRows(job.next, job.cur, job.prev, size, 0, size, u, &job.inj)
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if !s.started || len(s.assign) == 0 || s.jobSize() != size {
		s.assign = assignRowBands(s.workers, size, 16)
	}
	s.startWorkersLocked()
	s.job = job
	s.pending = s.workers
	s.step++
	s.cond.Broadcast()
	for s.pending > 0 {
		s.cond.Wait()
	}
	s.mu.Unlock()
	return nil
}

func (s *CPUStepper) jobSize() int {
	total := 0
	for _, w := range s.assign {
		for _, b := range w.bands {
			total = max(total, b.y1)
		}
	}
	return total
}

// startWorkersLocked launches the worker goroutines on first use.
func (s *CPUStepper) startWorkersLocked() {
	if s.started {
		return
	}
	s.started = true
	s.done.Add(s.workers)
	for i := 0; i < s.workers; i++ {
		go s.workerLoop(i)
	}
}

// workerLoop executes the rows assigned to worker index for every step.
func (s *CPUStepper) workerLoop(index int) {
	defer s.done.Done()
	lastStep := 0
	s.mu.Lock()
	for {
		for s.step == lastStep && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		lastStep = s.step
		job := s.job
		var bands []rowBand
		if index < len(s.assign) {
			bands = s.assign[index].bands
		}
		s.mu.Unlock()

		for _, b := range bands {
			stepRows(job.next, job.cur, job.prev, job.size, b.y0, b.y1, job.u, &job.inj)
		}

		s.mu.Lock()
		s.pending--
		if s.pending == 0 {
			s.cond.Broadcast()
		}
	}
}

// Close stops the worker goroutines.
func (s *CPUStepper) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cond.Broadcast()
	started := s.started
	s.mu.Unlock()
	if started {
		s.done.Wait()
	}
	return nil
}
