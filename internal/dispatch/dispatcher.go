package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soundscribe/live-transcribe/internal/engine"
	"github.com/soundscribe/live-transcribe/internal/transcript"
)

// ResultFunc receives the transcript of a completed inference run together
// with the chunk that produced it. It is invoked on the worker goroutine.
type ResultFunc func(t *transcript.Transcript, chunk []float32, elapsed time.Duration)

// Dispatcher owns the IDLE -> BUSY -> IDLE inference cycle. It is an explicit
// bounded queue of capacity one: a submit either claims the single slot or is
// rejected immediately, never blocking the capture path. The engine call runs
// on a dedicated worker goroutine and owns a private copy of the chunk.
type Dispatcher struct {
	engine   engine.Engine
	params   engine.Params
	logger   *slog.Logger
	onResult ResultFunc

	queue  chan []float32
	busy   atomic.Bool
	closed atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Statistics
	submitted uint64
	rejected  uint64
	completed uint64
	failed    uint64
	statsMu   sync.RWMutex
}

// Stats represents dispatcher statistics.
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Rejected  uint64 `json:"rejected"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Busy      bool   `json:"busy"`
}

// New creates a dispatcher and starts its worker goroutine. onResult may be
// nil when the caller only needs the side effects of the engine callbacks.
func New(logger *slog.Logger, eng engine.Engine, params engine.Params, onResult ResultFunc) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		engine:   eng,
		params:   params,
		logger:   logger,
		onResult: onResult,
		queue:    make(chan []float32, 1),
		ctx:      ctx,
		cancel:   cancel,
	}

	d.wg.Add(1)
	go d.worker()

	return d
}

// TrySubmit offers a chunk for transcription. It returns true when the chunk
// was accepted, false when an inference run is already in flight (the chunk
// is dropped) or the dispatcher is closed. It never blocks.
func (d *Dispatcher) TrySubmit(chunk []float32) bool {
	if d.closed.Load() {
		return false
	}

	// The busy flag is the single slot of the queue: only the submitter
	// that flips it may send, so the buffered channel always has room.
	if !d.busy.CompareAndSwap(false, true) {
		d.statsMu.Lock()
		d.rejected++
		d.statsMu.Unlock()
		return false
	}

	d.statsMu.Lock()
	d.submitted++
	d.statsMu.Unlock()

	d.queue <- chunk
	return true
}

// Busy reports whether an inference run is in flight.
func (d *Dispatcher) Busy() bool {
	return d.busy.Load()
}

// Close stops accepting chunks, lets any in-flight inference finish and
// waits for the worker to exit.
func (d *Dispatcher) Close() {
	if d.closed.Swap(true) {
		return
	}

	d.cancel()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case chunk := <-d.queue:
			d.process(chunk)
		case <-d.ctx.Done():
			// Drain a chunk that won the submit race against Close;
			// in-flight work has already finished by now.
			select {
			case chunk := <-d.queue:
				d.process(chunk)
			default:
			}
			return
		}
	}
}

// process runs one inference pass and returns the dispatcher to idle.
// Engine failures are logged and dropped; the segment stream is simply not
// extended for that chunk.
func (d *Dispatcher) process(chunk []float32) {
	defer d.busy.Store(false)

	start := time.Now()

	result, err := d.engine.Transcribe(context.Background(), chunk, d.params)
	elapsed := time.Since(start)

	if err != nil {
		d.statsMu.Lock()
		d.failed++
		d.statsMu.Unlock()

		d.logger.Warn("Chunk transcription failed",
			slog.Int("chunk_samples", len(chunk)),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return
	}

	d.statsMu.Lock()
	d.completed++
	d.statsMu.Unlock()

	d.logger.Debug("Chunk transcribed",
		slog.Int("chunk_samples", len(chunk)),
		slog.Int("segments", result.Len()),
		slog.Duration("elapsed", elapsed),
	)

	if d.onResult != nil {
		d.onResult(result, chunk, elapsed)
	}
}

// GetStats returns current dispatcher statistics.
func (d *Dispatcher) GetStats() Stats {
	d.statsMu.RLock()
	defer d.statsMu.RUnlock()

	return Stats{
		Submitted: d.submitted,
		Rejected:  d.rejected,
		Completed: d.completed,
		Failed:    d.failed,
		Busy:      d.busy.Load(),
	}
}
