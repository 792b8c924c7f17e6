package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soundscribe/live-transcribe/internal/engine"
	"github.com/soundscribe/live-transcribe/internal/transcript"
)

// blockingEngine is a test engine whose Transcribe call blocks until
// released, so tests can hold the dispatcher in the BUSY state.
type blockingEngine struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
	fail    bool
}

func newBlockingEngine() *blockingEngine {
	return &blockingEngine{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (e *blockingEngine) Transcribe(ctx context.Context, samples []float32, p engine.Params) (*transcript.Transcript, error) {
	e.calls.Add(1)
	e.started <- struct{}{}
	<-e.release

	if e.fail {
		return nil, errors.New("engine exploded")
	}

	tr := &transcript.Transcript{Language: "en"}
	tr.Append(transcript.Segment{T0: 0, T1: 100, Text: " ok"})
	return tr, nil
}

func (e *blockingEngine) Info() engine.Info { return engine.Info{Name: "blocking"} }
func (e *blockingEngine) Close() error      { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTrySubmitRejectsWhileBusy(t *testing.T) {
	eng := newBlockingEngine()
	d := New(testLogger(), eng, engine.Params{}, nil)
	defer func() {
		close(eng.release)
		d.Close()
	}()

	if !d.TrySubmit(make([]float32, 16)) {
		t.Fatal("First submit should be accepted")
	}

	<-eng.started

	if !d.Busy() {
		t.Error("Dispatcher should report busy during inference")
	}

	if d.TrySubmit(make([]float32, 16)) {
		t.Error("Second submit should be rejected while busy")
	}

	stats := d.GetStats()
	if stats.Submitted != 1 || stats.Rejected != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestConcurrentSubmitsAdmitExactlyOne(t *testing.T) {
	eng := newBlockingEngine()
	d := New(testLogger(), eng, engine.Params{}, nil)
	defer func() {
		close(eng.release)
		d.Close()
	}()

	const submitters = 16

	var accepted atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.TrySubmit(make([]float32, 16)) {
				accepted.Add(1)
			}
		}()
	}

	wg.Wait()

	if accepted.Load() != 1 {
		t.Errorf("Expected exactly 1 accepted submit, got %d", accepted.Load())
	}
}

func TestDispatcherReturnsToIdleAfterCompletion(t *testing.T) {
	eng := newBlockingEngine()

	done := make(chan struct{})
	d := New(testLogger(), eng, engine.Params{}, func(tr *transcript.Transcript, chunk []float32, elapsed time.Duration) {
		if tr.Len() != 1 {
			t.Errorf("Expected 1 segment in result, got %d", tr.Len())
		}
		close(done)
	})
	defer d.Close()

	d.TrySubmit(make([]float32, 16))
	<-eng.started
	close(eng.release)
	<-done

	// The slot must free up for the next chunk.
	deadline := time.After(2 * time.Second)
	for d.Busy() {
		select {
		case <-deadline:
			t.Fatal("Dispatcher stayed busy after completion")
		case <-time.After(time.Millisecond):
		}
	}

	eng.release = make(chan struct{})
	if !d.TrySubmit(make([]float32, 16)) {
		t.Error("Submit after completion should be accepted")
	}
	<-eng.started
	close(eng.release)
}

func TestEngineFailureIsRecoverable(t *testing.T) {
	eng := newBlockingEngine()
	eng.fail = true

	var results atomic.Int32
	d := New(testLogger(), eng, engine.Params{}, func(tr *transcript.Transcript, chunk []float32, elapsed time.Duration) {
		results.Add(1)
	})
	defer d.Close()

	d.TrySubmit(make([]float32, 16))
	<-eng.started
	close(eng.release)

	deadline := time.After(2 * time.Second)
	for d.Busy() {
		select {
		case <-deadline:
			t.Fatal("Dispatcher stayed busy after engine failure")
		case <-time.After(time.Millisecond):
		}
	}

	if results.Load() != 0 {
		t.Error("Result callback must not fire for a failed chunk")
	}

	stats := d.GetStats()
	if stats.Failed != 1 || stats.Completed != 0 {
		t.Errorf("Unexpected stats after failure: %+v", stats)
	}

	// The pipeline keeps running: the next submit is accepted.
	eng.fail = false
	eng.release = make(chan struct{})
	if !d.TrySubmit(make([]float32, 16)) {
		t.Error("Submit after failure should be accepted")
	}
	<-eng.started
	close(eng.release)
}

func TestCloseRejectsFurtherSubmits(t *testing.T) {
	eng := newBlockingEngine()
	close(eng.release)

	d := New(testLogger(), eng, engine.Params{}, nil)
	d.Close()

	if d.TrySubmit(make([]float32, 16)) {
		t.Error("Submit after Close should be rejected")
	}
}

func TestCloseWaitsForInFlightInference(t *testing.T) {
	eng := newBlockingEngine()

	completed := make(chan struct{})
	d := New(testLogger(), eng, engine.Params{}, func(tr *transcript.Transcript, chunk []float32, elapsed time.Duration) {
		close(completed)
	})

	d.TrySubmit(make([]float32, 16))
	<-eng.started

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(eng.release)
	}()

	d.Close()

	select {
	case <-completed:
	default:
		t.Error("Close returned before the in-flight inference completed")
	}
}
