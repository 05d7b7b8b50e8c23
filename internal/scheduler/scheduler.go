// Package scheduler implements the fiber scheduler (spec §4.7, component
// C9): round-robin ticking of Running fibers, time-ordered sleeper
// wakeup, WaitingForInput reactivation, and reaping of finished fibers.
//
// Unlike MongooseMoo-barn's scheduler.go (the grounding source for this
// package's shape: a start-time-ordered container/heap queue plus a
// per-tick sweep), this scheduler never spawns a goroutine per task.
// Spec §5 is explicit that there is no parallelism in this runtime: at
// most one fiber executes bytecode at any instant, so Tick calls the
// Runner synchronously, in place, for each Running fiber in turn.
package scheduler

import (
	"container/heap"
	"time"

	"golang.org/x/exp/slices"

	"github.com/ravenlang/raven/internal/fiber"
)

// Runner executes a bounded burst of bytecode on a Running fiber.
// internal/interp implements this; kept as a minimal interface here
// (rather than importing internal/interp directly) because the
// interpreter's CALL_BUILTIN dispatch needs to enqueue fibers through
// the scheduler (call_out, fork) — importing it directly would cycle.
type Runner interface {
	Run(f *fiber.Fiber, maxInstructions int)
}

// sleepItem orders a parked fiber by wake time in the sleeper heap.
type sleepItem struct {
	fiber *fiber.Fiber
	index int
}

type sleepQueue []*sleepItem

func (q sleepQueue) Len() int            { return len(q) }
func (q sleepQueue) Less(i, j int) bool  { return q[i].fiber.WakeAt().Before(q[j].fiber.WakeAt()) }
func (q sleepQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index = i; q[j].index = j }
func (q *sleepQueue) Push(x interface{}) {
	item := x.(*sleepItem)
	item.index = len(*q)
	*q = append(*q, item)
}
func (q *sleepQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// Scheduler owns every fiber the engine is driving.
type Scheduler struct {
	runner              Runner
	instructionsPerTurn int

	ready        []*fiber.Fiber
	sleeping     sleepQueue
	waitingInput map[int]*fiber.Fiber

	nextID int
}

// New creates a Scheduler. instructionsPerTurn bounds how many bytecode
// instructions Runner.Run executes before yielding back to the round-robin
// loop — the cooperative-multitasking analogue of a timeslice (spec §5
// "a fiber never monopolises the interpreter for longer than one burst").
func New(runner Runner, instructionsPerTurn int) *Scheduler {
	return &Scheduler{
		runner:              runner,
		instructionsPerTurn: instructionsPerTurn,
		waitingInput:        make(map[int]*fiber.Fiber),
	}
}

// Spawn creates and enqueues a new Running fiber.
func (s *Scheduler) Spawn() *fiber.Fiber {
	s.nextID++
	f := fiber.New(s.nextID)
	s.ready = append(s.ready, f)
	return f
}

// Enqueue adds an externally-constructed fiber (one not created by Spawn)
// to the ready list.
func (s *Scheduler) Enqueue(f *fiber.Fiber) {
	s.ready = append(s.ready, f)
}

// Len is the number of fibers the scheduler is currently tracking,
// counting ready, sleeping and waiting-for-input fibers.
func (s *Scheduler) Len() int {
	return len(s.ready) + s.sleeping.Len() + len(s.waitingInput)
}

// All returns every fiber the scheduler is currently tracking (ready,
// sleeping, and waiting-for-input), for a caller that needs to walk every
// live fiber as a GC root source (internal/raven's collection pass).
func (s *Scheduler) All() []*fiber.Fiber {
	all := make([]*fiber.Fiber, 0, s.Len())
	all = append(all, s.ready...)
	for _, item := range s.sleeping {
		all = append(all, item.fiber)
	}
	for _, f := range s.waitingInput {
		all = append(all, f)
	}
	return all
}

// IsSleeping reports whether f is parked in the sleeper queue.
func (s *Scheduler) IsSleeping(f *fiber.Fiber) bool {
	return f.State() == fiber.Sleeping
}

// Tick runs one scheduling round (spec §4.7): wake any sleepers whose
// deadline has passed, give every still-Running fiber one bounded
// instruction burst, then file each fiber into the list its post-burst
// state calls for and drop any that finished.
func (s *Scheduler) Tick() {
	s.wakeDueSleepers()

	still := s.ready[:0]
	for _, f := range s.ready {
		if f.State() == fiber.Running {
			s.runner.Run(f, s.instructionsPerTurn)
		}
		switch f.State() {
		case fiber.Stopped, fiber.Crashed:
			delete(s.waitingInput, f.ID)
		case fiber.Sleeping:
			heap.Push(&s.sleeping, &sleepItem{fiber: f})
		case fiber.WaitingForInput:
			s.waitingInput[f.ID] = f
		default:
			still = append(still, f)
		}
	}
	s.ready = still
}

func (s *Scheduler) wakeDueSleepers() {
	now := time.Now()
	for s.sleeping.Len() > 0 {
		top := s.sleeping[0]
		if top.fiber.WakeAt().After(now) {
			return
		}
		heap.Pop(&s.sleeping)
		top.fiber.Reactivate()
		s.ready = append(s.ready, top.fiber)
	}
}

// PushInput delivers a line of input to the fiber bound to fiberID, if it
// is currently WaitingForInput, and re-admits it to the ready list
// (spec §4.9 "input_line" delivery path from internal/netio).
func (s *Scheduler) PushInput(fiberID int, line string) bool {
	f, ok := s.waitingInput[fiberID]
	if !ok {
		return false
	}
	delete(s.waitingInput, fiberID)
	f.PushInput(line)
	s.ready = append(s.ready, f)
	return true
}

// Kill forcibly stops and drops a fiber by ID if it is in the ready list
// or waiting for input. A sleeping fiber is not found (Kill reports
// false and leaves it queued, since the heap doesn't support efficient
// arbitrary removal); wakeDueSleepers re-admits it once its deadline
// arrives.
func (s *Scheduler) Kill(id int) bool {
	idx := slices.IndexFunc(s.ready, func(f *fiber.Fiber) bool { return f.ID == id })
	if idx < 0 {
		if f, ok := s.waitingInput[id]; ok {
			f.SetState(fiber.Stopped)
			delete(s.waitingInput, id)
			return true
		}
		return false
	}
	s.ready[idx].SetState(fiber.Stopped)
	s.ready = slices.Delete(s.ready, idx, idx+1)
	delete(s.waitingInput, id)
	return true
}
