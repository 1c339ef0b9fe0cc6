package queue_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vpbank/asynclog/internal/queue"
)

func runningFlag(v bool) *atomic.Bool {
	var b atomic.Bool
	b.Store(v)
	return &b
}

func TestRingQueueFIFOOrdering(t *testing.T) {
	q := queue.NewRingQueue(4)
	defer q.Close()

	running := runningFlag(true)
	// Put blocks once the 4 slots are full, so the producer runs on its own
	// goroutine while this one takes.
	go func() {
		for i := 0; i < 10; i++ {
			q.Put(queue.NewRecord("m", queue.Info, "ch"))
		}
	}()

	var seqs []int64
	for i := 0; i < 10; i++ {
		rec, ok := q.Take(running)
		if !ok {
			t.Fatalf("Take returned false on item %d, want true", i)
		}
		seqs = append(seqs, rec.Seq)
	}
	for i := 1; i < len(seqs); i++ {
		if seqs[i] <= seqs[i-1] {
			t.Fatalf("items out of FIFO order: %v", seqs)
		}
	}
}

func TestRingQueueCapacityOneBlocksProducer(t *testing.T) {
	q := queue.NewRingQueue(1)
	defer q.Close()
	running := runningFlag(true)

	q.Put(queue.NewRecord("first", queue.Info, "ch"))

	putDone := make(chan struct{})
	go func() {
		q.Put(queue.NewRecord("second", queue.Info, "ch"))
		close(putDone)
	}()

	select {
	case <-putDone:
		t.Fatal("second Put returned before the queue had room")
	case <-time.After(100 * time.Millisecond):
		// expected: producer is blocked on the full queue
	}

	rec, ok := q.Take(running)
	if !ok || rec.Message != "first" {
		t.Fatalf("Take = (%v, %v), want (first, true)", rec, ok)
	}

	select {
	case <-putDone:
	case <-time.After(time.Second):
		t.Fatal("second Put did not unblock after a slot freed up")
	}

	rec, ok = q.Take(running)
	if !ok || rec.Message != "second" {
		t.Fatalf("Take = (%v, %v), want (second, true)", rec, ok)
	}
}

func TestRingQueueTakeObservesShutdownWhenEmpty(t *testing.T) {
	q := queue.NewRingQueue(4)
	defer q.Close()
	running := runningFlag(false)

	rec, ok := q.Take(running)
	if ok || rec != nil {
		t.Fatalf("Take on empty, not-running queue = (%v, %v), want (nil, false)", rec, ok)
	}
}

func TestRingQueueGracefulDrain(t *testing.T) {
	q := queue.NewRingQueue(100)
	defer q.Close()

	const n = 100
	for i := 0; i < n; i++ {
		q.Put(queue.NewRecord("m", queue.Info, "ch"))
	}

	var running atomic.Bool
	running.Store(false) // simulate shutdown already requested, queue still full

	delivered := 0
	for {
		_, ok := q.Take(&running)
		if !ok {
			break
		}
		delivered++
	}
	if delivered != n {
		t.Fatalf("delivered %d records during drain, want %d", delivered, n)
	}
}

func TestRingQueueMultiProducerSingleConsumer(t *testing.T) {
	q := queue.NewRingQueue(8)
	defer q.Close()
	running := runningFlag(true)

	const producers = 5
	const perProducer = 200
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Put(queue.NewRecord("m", queue.Info, "ch"))
			}
		}(p)
	}

	total := producers * perProducer
	received := 0
	done := make(chan struct{})
	go func() {
		for received < total {
			if _, ok := q.Take(running); ok {
				received++
			}
		}
		close(done)
	}()

	wg.Wait()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("only received %d/%d records before timing out", received, total)
	}
}
