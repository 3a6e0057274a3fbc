package conversation

import (
	"sync"
	"testing"
	"time"
)

func TestDispatcherPreservesPerSenderOrder(t *testing.T) {
	d := NewDispatcher()

	var mu sync.Mutex
	got := make(map[string][]int)

	for i := 0; i < 50; i++ {
		i := i
		for _, sender := range []string{"a", "b", "c"} {
			sender := sender
			if !d.Enqueue(sender, func() {
				mu.Lock()
				got[sender] = append(got[sender], i)
				mu.Unlock()
			}) {
				t.Fatalf("enqueue rejected for %s at %d", sender, i)
			}
		}
	}
	d.Stop()

	for sender, seq := range got {
		if len(seq) != 50 {
			t.Errorf("sender %s ran %d tasks, want 50", sender, len(seq))
		}
		for i, v := range seq {
			if v != i {
				t.Errorf("sender %s task order broken at %d: got %d", sender, i, v)
				break
			}
		}
	}
}

func TestDispatcherRejectsAfterStop(t *testing.T) {
	d := NewDispatcher()
	d.Stop()
	if d.Enqueue("a", func() {}) {
		t.Error("enqueue after Stop must be rejected")
	}
	// Stop is idempotent.
	d.Stop()
}

func TestDispatcherStopWaitsForInFlight(t *testing.T) {
	d := NewDispatcher()
	done := false
	block := make(chan struct{})

	d.Enqueue("a", func() {
		<-block
		done = true
	})
	close(block)
	d.Stop()

	if !done {
		t.Error("Stop must wait for the in-flight task")
	}
}

func TestDispatcherRetiresIdleWorkers(t *testing.T) {
	d := NewDispatcher()
	d.idleTimeout = 10 * time.Millisecond

	ran := make(chan struct{})
	if !d.Enqueue("a", func() { close(ran) }) {
		t.Fatal("enqueue rejected")
	}
	<-ran

	deadline := time.After(2 * time.Second)
	for d.activeWorkers() != 0 {
		select {
		case <-deadline:
			t.Fatalf("idle worker was not retired, %d still active", d.activeWorkers())
		case <-time.After(5 * time.Millisecond):
		}
	}

	// A retired sender gets a fresh worker on the next message.
	again := make(chan struct{})
	if !d.Enqueue("a", func() { close(again) }) {
		t.Fatal("enqueue after retirement rejected")
	}
	<-again
	d.Stop()
}
