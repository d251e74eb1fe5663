package pipeline

import "context"

// observed wraps a stage and invokes a callback for every frame the inner
// stage emits, before forwarding it downstream. Decoration happens at
// construction time; stages are never rewired while a chain is running.
type observed struct {
	inner Stage
	fn    func(Frame)
}

// Observe decorates stage so fn sees every emitted frame.
func Observe(stage Stage, fn func(Frame)) Stage {
	return observed{inner: stage, fn: fn}
}

func (o observed) Name() string { return o.inner.Name() }

func (o observed) Process(ctx context.Context, f Frame, emit Emit) {
	o.inner.Process(ctx, f, o.tap(emit))
}

func (o observed) Flush(ctx context.Context, emit Emit) {
	o.inner.Flush(ctx, o.tap(emit))
}

func (o observed) tap(emit Emit) Emit {
	return func(f Frame) {
		o.fn(f)
		emit(f)
	}
}
