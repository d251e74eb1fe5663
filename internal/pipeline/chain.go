package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
)

// ErrClosed is returned for frames submitted after end-of-call.
var ErrClosed = errors.New("pipeline: closed")

// Emit forwards a frame to the next stage.
type Emit func(Frame)

// Stage consumes frames and emits zero or more frames downstream. A stage may
// hold internal state but must not retain or mutate frames it has emitted.
type Stage interface {
	Name() string
	Process(ctx context.Context, f Frame, emit Emit)
	// Flush emits any pending output. Called once while draining at end-of-call.
	Flush(ctx context.Context, emit Emit)
}

// StageFunc adapts a function to the Stage interface with a no-op Flush.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context, f Frame, emit Emit)
}

func (s StageFunc) Name() string                                 { return s.StageName }
func (s StageFunc) Process(ctx context.Context, f Frame, e Emit) { s.Fn(ctx, f, e) }
func (s StageFunc) Flush(context.Context, Emit)                  {}

const defaultBuffer = 64

// frameQueue is the bounded FIFO joining two stages. Overflow discards the
// oldest queued media frame in place, so control and text frames are never
// dropped and never change their position relative to other frames.
type frameQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []Frame
	limit    int
	closed   bool
}

func newFrameQueue(limit int) *frameQueue {
	q := &frameQueue{limit: limit}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// push enqueues f, making room under pressure by discarding the oldest queued
// media frame. An incoming media frame is itself discarded when every queued
// frame is control or text; a non-media frame blocks until the consumer
// drains. Returns false once the queue is closed.
func (q *frameQueue) push(f Frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.closed {
			return false
		}
		if len(q.items) < q.limit {
			q.items = append(q.items, f)
			q.notEmpty.Signal()
			return true
		}
		if i := q.oldestMediaLocked(); i >= 0 {
			copy(q.items[i:], q.items[i+1:])
			q.items = q.items[:len(q.items)-1]
			log.Printf("pipeline: dropping media frame under pressure")
			continue
		}
		if isMedia(f) {
			log.Printf("pipeline: dropping media frame under pressure")
			return true
		}
		q.notFull.Wait()
	}
}

func (q *frameQueue) oldestMediaLocked() int {
	for i, f := range q.items {
		if isMedia(f) {
			return i
		}
	}
	return -1
}

// pop blocks for the next frame; ok is false once the queue is closed and
// drained.
func (q *frameQueue) pop() (Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	f := q.items[0]
	q.items = q.items[1:]
	q.notFull.Signal()
	return f, true
}

func (q *frameQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Chain runs an ordered list of stages, each on its own goroutine, joined by
// bounded queues. Frames exit in the relative order they entered, minus any
// media frames discarded under pressure.
type Chain struct {
	in     *frameQueue
	sink   func(Frame)
	done   chan struct{}
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewChain wires stages together and starts them. Frames leaving the last
// stage are handed to sink.
func NewChain(ctx context.Context, sink func(Frame), stages ...Stage) *Chain {
	ctx, cancel := context.WithCancel(ctx)
	c := &Chain{
		in:     newFrameQueue(defaultBuffer),
		sink:   sink,
		done:   make(chan struct{}),
		cancel: cancel,
	}
	if c.sink == nil {
		c.sink = func(Frame) {}
	}

	var wg sync.WaitGroup
	input := c.in
	for _, st := range stages {
		out := newFrameQueue(defaultBuffer)
		wg.Add(1)
		go c.runStage(ctx, &wg, st, input, out)
		input = out
	}
	// Tail: deliver frames exiting the last stage to the sink.
	wg.Add(1)
	go func(in *frameQueue) {
		defer wg.Done()
		for {
			f, ok := in.pop()
			if !ok {
				return
			}
			c.sink(f)
		}
	}(input)

	go func() {
		wg.Wait()
		close(c.done)
	}()
	return c
}

func (c *Chain) runStage(ctx context.Context, wg *sync.WaitGroup, st Stage, in, out *frameQueue) {
	defer wg.Done()
	defer out.close()
	emit := func(f Frame) { out.push(f) }
	for {
		f, ok := in.pop()
		if !ok {
			break
		}
		if cs, ok := f.(ControlSignal); ok && cs.Kind == ControlEndOfCall {
			st.Flush(ctx, emit)
			out.push(f)
			return
		}
		st.Process(ctx, f, emit)
	}
	st.Flush(ctx, emit)
}

// Submit enqueues a frame for the first stage. Submitting ControlEndOfCall
// closes the chain; later submissions fail with ErrClosed. Submissions are
// serialized so a concurrent end-of-call cannot close the inbox mid-send.
func (c *Chain) Submit(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if cs, ok := f.(ControlSignal); ok && cs.Kind == ControlEndOfCall {
		c.closed = true
		c.in.push(f)
		c.in.close()
		return nil
	}
	c.in.push(f)
	return nil
}

// Close aborts the chain without waiting for a drain (transport disconnect).
// Safe to call more than once and after Submit(end-of-call).
func (c *Chain) Close() {
	c.mu.Lock()
	already := c.closed
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	if !already {
		c.in.close()
	}
}

// Done is closed once every stage has flushed and exited.
func (c *Chain) Done() <-chan struct{} { return c.done }
