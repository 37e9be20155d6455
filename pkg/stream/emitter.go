package stream

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClientGone indicates the consumer side of the stream went away. The
// orchestrator treats this as an implicit cancellation: no new work is
// admitted once emission fails.
var ErrClientGone = errors.New("stream: client gone")

// defaultBuffer absorbs short consumer stalls without suspending the
// pipeline.
const defaultBuffer = 64

// Emitter serializes frames for one session onto a single outbound channel.
// It is driven by exactly one producer (the session's orchestrator) and
// consumed by exactly one client connection.
type Emitter struct {
	ctx       context.Context
	frames    chan Frame
	closeOnce sync.Once
}

// NewEmitter creates an emitter bound to the consumer's context; when that
// context ends, emission starts failing with ErrClientGone.
func NewEmitter(ctx context.Context) *Emitter {
	return &Emitter{
		ctx:    ctx,
		frames: make(chan Frame, defaultBuffer),
	}
}

// Frames is the consumer side of the stream. The channel closes after the
// terminal frame.
func (e *Emitter) Frames() <-chan Frame { return e.frames }

// Emit queues one frame. It suspends when the buffer is full and fails with
// ErrClientGone once the consumer's context has ended.
func (e *Emitter) Emit(f Frame) error {
	select {
	case <-e.ctx.Done():
		return ErrClientGone
	default:
	}
	select {
	case e.frames <- f:
		return nil
	case <-e.ctx.Done():
		return ErrClientGone
	}
}

// Session emits the session-started frame.
func (e *Emitter) Session(sessionID string) error {
	return e.Emit(Frame{Event: EventSession, Data: SessionPayload{SessionID: sessionID}})
}

// Progress emits a progress frame; percentage is derived from the counts.
func (e *Emitter) Progress(completed, total int, status string) error {
	pct := 0.0
	if total > 0 {
		pct = float64(completed) / float64(total) * 100
	}
	return e.Emit(Frame{Event: EventProgress, Data: ProgressPayload{
		Completed:  completed,
		Total:      total,
		Percentage: pct,
		Status:     status,
	}})
}

// Record emits one accepted record with its completion-order index.
func (e *Emitter) Record(index int, rec RecordWire) error {
	return e.Emit(Frame{Event: EventRecord, Data: RecordPayload{Index: index, Record: rec}})
}

// Completed emits the normal terminal frame.
func (e *Emitter) Completed(message string, totalRecords, totalProcessed int, elapsed time.Duration) error {
	return e.Emit(Frame{Event: EventCompleted, Data: CompletedPayload{
		Message:        message,
		TotalRecords:   totalRecords,
		TotalProcessed: totalProcessed,
		Elapsed:        FormatElapsed(elapsed),
	}})
}

// Cancelled emits the cancelled terminal frame.
func (e *Emitter) Cancelled(message string, totalRecords int) error {
	return e.Emit(Frame{Event: EventCancelled, Data: CancelledPayload{
		Message:      message,
		TotalRecords: totalRecords,
	}})
}

// Error emits the error terminal frame.
func (e *Emitter) Error(message string) error {
	return e.Emit(Frame{Event: EventError, Data: ErrorPayload{Message: message}})
}

// Close closes the frame channel. Safe to call more than once.
func (e *Emitter) Close() {
	e.closeOnce.Do(func() { close(e.frames) })
}
