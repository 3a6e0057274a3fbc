package conversation

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// defaultQueueDepth bounds the per-sender backlog. A sender who has this
	// many turns pending gets further messages dropped rather than unbounded
	// memory.
	defaultQueueDepth = 32
	// defaultWorkerIdleTimeout retires a sender's worker after this long
	// without a task, so the queue map does not grow with every sender the
	// process has ever seen.
	defaultWorkerIdleTimeout = 5 * time.Minute
)

// Dispatcher serializes turn processing per sender: tasks for the same
// sender run strictly in arrival order, one at a time, while different
// senders proceed fully in parallel.
type Dispatcher struct {
	mu          sync.Mutex
	queues      map[string]chan func()
	wg          sync.WaitGroup
	stopped     bool
	idleTimeout time.Duration
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		queues:      make(map[string]chan func()),
		idleTimeout: defaultWorkerIdleTimeout,
	}
}

// Enqueue schedules a task on the sender's serial queue, creating the queue
// and its worker on first use. It reports false when the task was rejected
// (dispatcher stopped or the sender's backlog is full). The send happens
// under the lock so a retiring worker never strands an enqueued task.
func (d *Dispatcher) Enqueue(senderID string, task func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	queue, ok := d.queues[senderID]
	if !ok {
		queue = make(chan func(), defaultQueueDepth)
		d.queues[senderID] = queue
		d.wg.Add(1)
		go d.worker(senderID, queue)
	}

	select {
	case queue <- task:
		return true
	default:
		slog.Warn("Dispatcher.Enqueue: sender backlog full, dropping turn", "sender", senderID)
		return false
	}
}

// worker drains one sender's queue. Exactly one worker exists per sender, so
// at most one state transition for that sender is in flight at any time. A
// worker that sits idle past the timeout removes its own map entry and exits;
// the next message from that sender starts a fresh one.
func (d *Dispatcher) worker(senderID string, queue chan func()) {
	defer d.wg.Done()
	idle := time.NewTimer(d.idleTimeout)
	defer idle.Stop()
	for {
		select {
		case task, ok := <-queue:
			if !ok {
				slog.Debug("Dispatcher worker exited", "sender", senderID)
				return
			}
			task()
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.idleTimeout)
		case <-idle.C:
			d.mu.Lock()
			if d.stopped || len(queue) > 0 {
				// Stop will close the queue, or a task raced in; keep going
				// and let the receive case handle it.
				d.mu.Unlock()
				idle.Reset(d.idleTimeout)
				continue
			}
			delete(d.queues, senderID)
			d.mu.Unlock()
			slog.Debug("Dispatcher worker retired after idle timeout", "sender", senderID)
			return
		}
	}
}

// activeWorkers reports the number of senders with a live queue.
func (d *Dispatcher) activeWorkers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// Stop closes all queues and waits for in-flight tasks to finish. Tasks
// enqueued after Stop are rejected.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for _, queue := range d.queues {
		close(queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
