package runtime

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/component"
	"github.com/weftworks/weft/condition"
	"github.com/weftworks/weft/entity"
	"github.com/weftworks/weft/errors"
)

// sourceOp emits one entity per tick on its "out" port.
type sourceOp struct {
	*component.Base
	pending []*entity.Entity
	emitted int
}

func newSourceOp(name string, payload ...*entity.Entity) *sourceOp {
	return &sourceOp{Base: component.NewBase(name), pending: payload}
}

func (o *sourceOp) Setup(_ *component.Spec) error { return nil }
func (o *sourceOp) Start(_ context.Context) error { return nil }
func (o *sourceOp) Stop() error                   { return nil }

func (o *sourceOp) Tick(ec *component.ExecutionContext) error {
	if len(o.pending) == 0 {
		return nil
	}
	e := o.pending[0]
	if err := ec.Emit(e, "out"); err != nil {
		return err
	}
	o.pending = o.pending[1:]
	o.emitted++
	return nil
}

// sinkOp drains its "in" port, keeping every entity it receives.
type sinkOp struct {
	*component.Base
	mu       sync.Mutex
	received []*entity.Entity
}

func newSinkOp(name string) *sinkOp {
	return &sinkOp{Base: component.NewBase(name)}
}

func (o *sinkOp) Setup(_ *component.Spec) error { return nil }
func (o *sinkOp) Start(_ context.Context) error { return nil }
func (o *sinkOp) Stop() error                   { return nil }

func (o *sinkOp) Tick(ec *component.ExecutionContext) error {
	for {
		e, ok := ec.Receive("in")
		if !ok {
			return nil
		}
		o.mu.Lock()
		o.received = append(o.received, e)
		o.mu.Unlock()
	}
}

func (o *sinkOp) got() []*entity.Entity {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*entity.Entity(nil), o.received...)
}

func TestAttachResolveDestroy(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	op := newSourceOp("source")
	id, err := r.Attach(op, nil)
	require.NoError(t, err)
	assert.True(t, id.Bound())
	assert.Equal(t, r.Context(), id.Context)
	assert.Equal(t, id, op.Identity())

	got, err := r.Resolve(id)
	require.NoError(t, err)
	assert.Same(t, component.Component(op), got)

	require.NoError(t, r.DestroyComponent(id))

	_, err = r.Resolve(id)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStaleIdentity)

	err = r.DestroyComponent(id)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStaleIdentity)
}

func TestResolveForeignContext(t *testing.T) {
	r1, err := New()
	require.NoError(t, err)
	r2, err := New()
	require.NoError(t, err)

	id, err := r1.Attach(newSourceOp("source"), nil)
	require.NoError(t, err)

	_, err = r2.Resolve(id)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStaleIdentity)
}

func TestZeroCopyFlow(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	tensor, err := entity.NewTensor(data, []int64{3, 4}, entity.DtypeUint8)
	require.NoError(t, err)

	e := r.NewEntity()
	require.NoError(t, e.Add(tensor, "frame"))

	source := newSourceOp("source", e)
	sink := newSinkOp("sink")

	srcID, err := r.Attach(source, nil)
	require.NoError(t, err)
	sinkID, err := r.Attach(sink, nil)
	require.NoError(t, err)
	require.NoError(t, r.Connect(srcID, "out", sinkID, "in"))

	require.NoError(t, r.StartAll(context.Background()))
	n, err := r.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, sink.got(), 1)
	assert.Same(t, e, sink.got()[0])

	got, ok := sink.got()[0].Tensor("frame")
	require.True(t, ok)
	assert.Same(t, &data[0], &got.Bytes()[0])

	require.NoError(t, r.StopAll())
}

func TestAsynchronousGatesTicks(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	source := newSourceOp("source", r.NewEntity(), r.NewEntity())
	sink := newSinkOp("sink")

	srcID, err := r.Attach(source, nil)
	require.NoError(t, err)
	sinkID, err := r.Attach(sink, nil)
	require.NoError(t, err)
	require.NoError(t, r.Connect(srcID, "out", sinkID, "in"))

	async := condition.NewAsynchronous("frame-ready")
	require.NoError(t, r.AttachCondition(srcID, async, nil))

	require.NoError(t, r.StartAll(context.Background()))

	// Waiting: the source is ineligible, the ungated sink still sweeps.
	n, err := r.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, source.emitted)

	// One event grants exactly one source tick.
	require.NoError(t, async.SetEventState(condition.EventDone))
	n, err = r.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, source.emitted)
	assert.Equal(t, condition.EventWaiting, async.EventState())

	// The grant was consumed; the source waits again.
	n, err = r.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, source.emitted)

	// A retired source never grants again.
	require.NoError(t, async.SetEventState(condition.EventNever))
	_, err = r.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, source.emitted)
}

func TestCountConditionBudget(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	source := newSourceOp("source",
		r.NewEntity(), r.NewEntity(), r.NewEntity(), r.NewEntity())
	sink := newSinkOp("sink")

	srcID, err := r.Attach(source, nil)
	require.NoError(t, err)
	sinkID, err := r.Attach(sink, nil)
	require.NoError(t, err)
	require.NoError(t, r.Connect(srcID, "out", sinkID, "in"))
	require.NoError(t, r.AttachCondition(srcID, condition.NewCount("budget", 3), nil))

	require.NoError(t, r.StartAll(context.Background()))
	for i := 0; i < 6; i++ {
		_, err := r.Step(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, 3, source.emitted)
	assert.Len(t, sink.got(), 3)
}

func TestAttachConditionBindsParams(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	source := newSourceOp("source",
		r.NewEntity(), r.NewEntity(), r.NewEntity(), r.NewEntity())
	sink := newSinkOp("sink")

	srcID, err := r.Attach(source, nil)
	require.NoError(t, err)
	sinkID, err := r.Attach(sink, nil)
	require.NoError(t, err)
	require.NoError(t, r.Connect(srcID, "out", sinkID, "in"))

	// The budget comes from the parameter table, not the constructor.
	cond := condition.NewCount("budget", 0)
	require.NoError(t, r.AttachCondition(srcID, cond, map[string]any{"count": 2}))
	assert.Equal(t, int64(2), cond.Remaining())

	require.NoError(t, r.StartAll(context.Background()))
	for i := 0; i < 5; i++ {
		_, err := r.Step(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, 2, source.emitted)
	assert.Len(t, sink.got(), 2)
}

func TestConnectFullQueueSurfacesInTick(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	source := newSourceOp("source", r.NewEntity(), r.NewEntity())
	sink := newSinkOp("sink")

	srcID, err := r.Attach(source, nil)
	require.NoError(t, err)
	sinkID, err := r.Attach(sink, nil)
	require.NoError(t, err)
	require.NoError(t, r.Connect(srcID, "out", sinkID, "in", WithCapacity(1)))

	// Only the source runs, so the queue cannot drain.
	require.NoError(t, r.AttachCondition(sinkID, condition.NewBoolean("paused", false), nil))

	require.NoError(t, r.StartAll(context.Background()))
	_, err = r.Step(context.Background())
	require.NoError(t, err)

	_, err = r.Step(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrQueueFull)
}

func TestRunUntilCanceled(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	source := newSourceOp("source", r.NewEntity(), r.NewEntity(), r.NewEntity())
	sink := newSinkOp("sink")

	srcID, err := r.Attach(source, nil)
	require.NoError(t, err)
	sinkID, err := r.Attach(sink, nil)
	require.NoError(t, err)
	require.NoError(t, r.Connect(srcID, "out", sinkID, "in"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return len(sink.got()) == 3
	}, time.Second, time.Millisecond)

	cancel()
	err = <-done
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnectWhileRunning(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	payload := make([]*entity.Entity, 64)
	for i := range payload {
		payload[i] = r.NewEntity()
	}
	source := newSourceOp("source", payload...)
	sink := newSinkOp("sink")

	srcID, err := r.Attach(source, nil)
	require.NoError(t, err)
	sinkID, err := r.Attach(sink, nil)
	require.NoError(t, err)
	require.NoError(t, r.Connect(srcID, "out", sinkID, "in", WithCapacity(64)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// Grow the source's port map while its ticks are in flight.
	for i := 0; i < 32; i++ {
		tap := newSinkOp(fmt.Sprintf("tap-%d", i))
		tapID, err := r.Attach(tap, nil)
		require.NoError(t, err)
		require.NoError(t, r.Connect(srcID, fmt.Sprintf("spur-%d", i), tapID, "in"))
	}

	assert.Eventually(t, func() bool {
		return len(sink.got()) == len(payload)
	}, time.Second, time.Millisecond)

	cancel()
	err = <-done
	assert.ErrorIs(t, err, context.Canceled)
}
