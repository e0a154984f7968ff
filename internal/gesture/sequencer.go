// Package gesture issues taps, swipes, and node clicks, and runs multi-step
// sequences on a single-threaded delay queue. Steps are scheduled with fixed
// relative delays and never verify that the previous step's UI effect
// actually landed; the delays are tuned empirically and a step firing into an
// unsettled screen is a silent failure mode we accept.
package gesture

import (
	"container/heap"
	"sync"
	"time"
)

// task is one queued unit of work with an absolute deadline. seq breaks ties
// so equal deadlines run in scheduling order.
type task struct {
	at  time.Time
	seq uint64
	run func()
}

type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*task)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// Sequencer executes scheduled tasks on a single worker goroutine, so no two
// gesture steps ever race each other. It is safe to schedule from any
// goroutine; tasks with a zero delay still run on the worker, keeping the
// event-processing path non-blocking.
type Sequencer struct {
	mu      sync.Mutex
	tasks   taskHeap
	nextSeq uint64
	closed  bool

	wake chan struct{}
	done chan struct{}
}

// NewSequencer creates and starts a sequencer.
func NewSequencer() *Sequencer {
	s := &Sequencer{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go s.loop()
	return s
}

// Schedule queues fn to run after delay. Returns false if the sequencer is
// closed.
func (s *Sequencer) Schedule(delay time.Duration, fn func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.nextSeq++
	heap.Push(&s.tasks, &task{at: time.Now().Add(delay), seq: s.nextSeq, run: fn})
	s.mu.Unlock()

	s.signal()
	return true
}

// CancelPending drops every queued task that has not started executing and
// returns how many were dropped. A task already running is not interrupted.
func (s *Sequencer) CancelPending() int {
	s.mu.Lock()
	n := len(s.tasks)
	s.tasks = s.tasks[:0]
	s.mu.Unlock()

	s.signal()
	return n
}

// PendingLen returns the number of queued tasks.
func (s *Sequencer) PendingLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Close stops the worker after the currently executing task, discarding the
// rest of the queue. Safe to call once.
func (s *Sequencer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.tasks = s.tasks[:0]
	s.mu.Unlock()

	close(s.done)
}

func (s *Sequencer) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Sequencer) loop() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		s.mu.Lock()
		var wait time.Duration
		var due *task
		if len(s.tasks) > 0 {
			next := s.tasks[0]
			wait = time.Until(next.at)
			if wait <= 0 {
				due = heap.Pop(&s.tasks).(*task)
			}
		}
		s.mu.Unlock()

		if due != nil {
			due.run()
			continue
		}

		if wait <= 0 {
			// Queue empty: sleep until something is scheduled.
			select {
			case <-s.wake:
			case <-s.done:
				return
			}
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)
		select {
		case <-timer.C:
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}
