// Package realtime is the production migration.Scheduler: a single
// goroutine draining a task channel, with alarms armed via
// time.AfterFunc, matching the timer idiom used elsewhere in this
// codebase (see pkg/metadata/lock's grace-period timer) generalized
// into a re-armable, cancel-safe primitive.
package realtime

import (
	"sync"
	"time"

	"github.com/marmos91/quicmigrate/migration"
)

// Scheduler runs every posted task and every fired alarm on one
// goroutine, satisfying migration.Manager's single-logical-thread
// requirement without the caller having to manage locking itself.
type Scheduler struct {
	tasks chan func()
	done  chan struct{}
}

// New starts the scheduler's run loop. Call Stop to shut it down.
func New() *Scheduler {
	s := &Scheduler{
		tasks: make(chan func(), 256),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Scheduler) run() {
	for {
		select {
		case fn := <-s.tasks:
			fn()
		case <-s.done:
			return
		}
	}
}

// PostTask implements migration.Scheduler.
func (s *Scheduler) PostTask(fn func()) {
	select {
	case s.tasks <- fn:
	case <-s.done:
	}
}

// PostDelayedTask implements migration.Scheduler.
func (s *Scheduler) PostDelayedTask(d time.Duration, fn func()) {
	time.AfterFunc(d, func() { s.PostTask(fn) })
}

// CreateAlarm implements migration.Scheduler.
func (s *Scheduler) CreateAlarm(fn func()) migration.Alarm {
	return &alarm{sched: s, fn: fn}
}

// Stop ends the run loop. Outstanding alarms still fire their
// underlying timer but their callbacks are dropped since PostTask
// selects on done as well.
func (s *Scheduler) Stop() {
	close(s.done)
}

// alarm is a cancel-safe, re-armable one-shot timer. A generation
// counter guards against a timer that already fired (and is blocked
// queuing its callback) running after a later Set/Cancel superseded it.
type alarm struct {
	sched *Scheduler
	fn    func()

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
}

func (a *alarm) Set(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
	}
	a.generation++
	gen := a.generation
	a.timer = time.AfterFunc(d, func() {
		a.mu.Lock()
		current := a.generation == gen
		a.mu.Unlock()
		if current {
			a.sched.PostTask(a.fn)
		}
	})
}

func (a *alarm) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.generation++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
