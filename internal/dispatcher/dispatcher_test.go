package dispatcher_test

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vpbank/asynclog/internal/dispatcher"
	"github.com/vpbank/asynclog/internal/queue"
	"github.com/vpbank/asynclog/internal/template"
)

func runningFlag(v bool) *atomic.Bool {
	var b atomic.Bool
	b.Store(v)
	return &b
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSink records every line handed to it, optionally failing on demand.
type fakeSink struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (s *fakeSink) Write(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.lines = append(s.lines, line)
	return nil
}

func (s *fakeSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

func mustMessage(t *testing.T, format string) *template.Message {
	t.Helper()
	c, err := template.Parse(format)
	if err != nil {
		t.Fatalf("Parse(%q) returned error: %v", format, err)
	}
	return template.NewMessage(c)
}

func TestDispatcherDeliversRecordsInOrder(t *testing.T) {
	q := queue.NewRingQueue(10)
	defer q.Close()
	sink := &fakeSink{}
	running := runningFlag(true)

	msg := mustMessage(t, "<MSG>")
	lookup := func(string) *template.Message { return msg }

	d := dispatcher.New(q, lookup, sink, running, discardLogger())
	d.Start()

	q.Put(queue.NewRecord("one", queue.Info, "ch1"))
	q.Put(queue.NewRecord("two", queue.Info, "ch1"))
	q.Put(queue.NewRecord("three", queue.Info, "ch1"))

	deadline := time.Now().Add(time.Second)
	for len(sink.snapshot()) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	running.Store(false)
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not exit after running was cleared and the queue drained")
	}
	d.Stop()

	got := sink.snapshot()
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("delivered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivered %v, want %v", got, want)
		}
	}
}

func TestDispatcherDropsRecordWhenTemplateLookupMisses(t *testing.T) {
	q := queue.NewRingQueue(4)
	defer q.Close()
	sink := &fakeSink{}
	running := runningFlag(true)

	lookup := func(channelID string) *template.Message {
		if channelID == "known" {
			return mustMessage(t, "<MSG>")
		}
		return nil
	}

	d := dispatcher.New(q, lookup, sink, running, discardLogger())
	d.Start()

	q.Put(queue.NewRecord("ghost", queue.Info, "unknown"))
	q.Put(queue.NewRecord("real", queue.Info, "known"))

	deadline := time.Now().Add(time.Second)
	for len(sink.snapshot()) < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	running.Store(false)
	<-d.Done()
	d.Stop()

	got := sink.snapshot()
	if len(got) != 1 || got[0] != "real" {
		t.Fatalf("sink received %v, want exactly [\"real\"] (the unknown-channel record must be dropped, not delivered)", got)
	}
}

func TestDispatcherLogsSinkErrorWithoutStopping(t *testing.T) {
	q := queue.NewRingQueue(4)
	defer q.Close()
	sink := &fakeSink{err: errors.New("boom")}
	running := runningFlag(true)

	msg := mustMessage(t, "<MSG>")
	lookup := func(string) *template.Message { return msg }

	d := dispatcher.New(q, lookup, sink, running, discardLogger())
	d.Start()

	q.Put(queue.NewRecord("one", queue.Info, "ch1"))
	q.Put(queue.NewRecord("two", queue.Info, "ch1"))

	running.Store(false)
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not exit after a sink error; a write failure must be logged, not fatal")
	}
	d.Stop()
}

func TestDispatcherGracefulDrainDeliversEveryQueuedRecord(t *testing.T) {
	q := queue.NewRingQueue(100)
	defer q.Close()
	sink := &fakeSink{}

	const n = 100
	msg := mustMessage(t, "<MSG>")
	lookup := func(string) *template.Message { return msg }

	var running atomic.Bool
	running.Store(true)

	for i := 0; i < n; i++ {
		q.Put(queue.NewRecord("m", queue.Info, "ch"))
	}

	d := dispatcher.New(q, lookup, sink, &running, discardLogger())
	d.Start()

	// Request shutdown once every record is already queued: a correct drain
	// must still deliver all n before exiting.
	running.Store(false)

	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not finish draining 100 queued records")
	}
	d.Stop()

	if got := len(sink.snapshot()); got != n {
		t.Fatalf("delivered %d records during drain, want %d", got, n)
	}
}
