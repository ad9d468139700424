/*
worker.go - Serialized recalculation worker

PURPOSE:
  Decouples "what changed" from "how to reconcile". Mutations to sales and
  entries produce InputChange events; a single goroutine drains them and
  runs the cascade. One consumer means one writer, which is what makes the
  locking and idempotence requirements enforceable instead of aspirational.

DELIVERY:
  Triggers are at-least-once: an edit may enqueue more than one change for
  the same date. The cascade is idempotent, so duplicates cost latency,
  never correctness. Consecutive queued changes are coalesced to the
  earliest affected date before running.

USAGE:
  worker := settlement.NewWorker(recalc)
  worker.Start()
  defer worker.Stop()

  // Fire-and-forget:
  worker.Enqueue(settlement.InputChange{From: date, Reason: "sale created"})

  // Wait for the resulting cascade (HTTP handlers use this so responses
  // reflect the recalculated ledger):
  err := worker.EnqueueWait(ctx, change)

SEE ALSO:
  - planner.go: Produces the change (or a skip) from a mutation diff
  - cascade.go: The recalculator this worker owns
*/
package settlement

import (
	"context"
	"log"
	"sync"
)

// InputChange is a ledger-relevant mutation: recalculate forward from From.
type InputChange struct {
	From   Date
	Reason string
}

// =============================================================================
// WORKER
// =============================================================================

// Worker consumes InputChange events and runs the cascade, one at a time.
type Worker struct {
	recalc *Recalculator
	queue  chan job
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	run    bool
}

type job struct {
	change InputChange
	done   chan error // nil for fire-and-forget
}

func NewWorker(recalc *Recalculator) *Worker {
	return &Worker{
		recalc: recalc,
		queue:  make(chan job, 256),
		stop:   make(chan struct{}),
	}
}

// Start launches the consumer goroutine. It first resumes any cascade that
// was interrupted mid-run (persisted watermark).
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.run {
		return
	}
	w.run = true

	w.wg.Add(1)
	go w.loop()
	log.Println("[Worker] started")
}

// Stop drains nothing further and waits for the in-flight run to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.run {
		return
	}
	w.run = false
	close(w.stop)
	w.wg.Wait()
	log.Println("[Worker] stopped")
}

// Enqueue submits a change without waiting for the cascade.
func (w *Worker) Enqueue(change InputChange) {
	w.queue <- job{change: change}
}

// EnqueueWait submits a change and blocks until the resulting cascade run
// completes, returning its error.
func (w *Worker) EnqueueWait(ctx context.Context, change InputChange) error {
	done := make(chan error, 1)
	select {
	case w.queue <- job{change: change, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()

	if err := w.recalc.Resume(context.Background()); err != nil {
		log.Printf("[Worker] resume failed: %v", err)
	}

	for {
		select {
		case j := <-w.queue:
			w.process(j)
		case <-w.stop:
			return
		}
	}
}

// process runs one cascade covering the received job plus any changes
// already queued behind it, from the earliest affected date.
func (w *Worker) process(first job) {
	jobs := []job{first}
	from := first.change.From

	for {
		select {
		case j := <-w.queue:
			jobs = append(jobs, j)
			from = MinDate(from, j.change.From)
			continue
		default:
		}
		break
	}

	err := w.recalc.RecalculateFrom(context.Background(), from)
	if err != nil {
		log.Printf("[Worker] recalculation from %s failed: %v", from, err)
	}
	for _, j := range jobs {
		if j.done != nil {
			j.done <- err
		}
	}
}
