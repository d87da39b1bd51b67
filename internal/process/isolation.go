package process

import "context"

// IsolationPolicy bounds the resources available to a process once it
// has been spawned. Setup is called with the child's pid immediately
// after the spawn; Teardown after the child exits.
type IsolationPolicy interface {
	Setup(ctx context.Context, pid uint64) error
	Teardown(ctx context.Context) error
}

// NoIsolation is the default policy: it applies no resource bounds at
// all. This is what ExecRunner uses unless a caller wires in
// NewCgroupIsolation (Linux only).
type NoIsolation struct{}

func (NoIsolation) Setup(context.Context, uint64) error { return nil }
func (NoIsolation) Teardown(context.Context) error      { return nil }
