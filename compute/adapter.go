package compute

import "context"

// Adapter is implemented once per completion provider. The federation never
// branches on provider identity beyond dispatching through this interface.
type Adapter interface {
	// Complete runs a single-shot completion and returns the text answer.
	Complete(ctx context.Context, req *Request) (string, error)

	// Probe is a cheap capability check used by the health monitor.
	Probe(ctx context.Context) error
}

// AdapterFunc adapts a pair of functions to the Adapter interface.
type AdapterFunc struct {
	CompleteFunc func(ctx context.Context, req *Request) (string, error)
	ProbeFunc    func(ctx context.Context) error
}

// Complete calls CompleteFunc.
func (f AdapterFunc) Complete(ctx context.Context, req *Request) (string, error) {
	return f.CompleteFunc(ctx, req)
}

// Probe calls ProbeFunc, succeeding when it is nil.
func (f AdapterFunc) Probe(ctx context.Context) error {
	if f.ProbeFunc == nil {
		return nil
	}
	return f.ProbeFunc(ctx)
}
