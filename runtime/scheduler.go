package runtime

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weftworks/weft/component"
	"github.com/weftworks/weft/condition"
	"github.com/weftworks/weft/errors"
)

// idlePoll bounds how long Run sleeps when no condition is ready and no
// asynchronous wakeup arrives. Periodic conditions have no term to nudge
// the scheduler, so the loop re-sweeps at least this often.
const idlePoll = 5 * time.Millisecond

// StartAll starts every attached operator. Starts run concurrently; the
// first failure cancels the rest and is returned.
func (r *Runtime) StartAll(ctx context.Context) error {
	r.mu.Lock()
	var pending []*attachment
	for _, att := range r.components {
		if _, ok := att.comp.(component.Operator); ok && !att.started {
			pending = append(pending, att)
		}
	}
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, att := range pending {
		att := att
		g.Go(func() error {
			op := att.comp.(component.Operator)
			if err := component.Start(gctx, op); err != nil {
				return err
			}
			r.mu.Lock()
			att.started = true
			r.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// StopAll stops every started operator. The first error is returned but
// every operator still gets its Stop.
func (r *Runtime) StopAll() error {
	r.mu.Lock()
	var started []*attachment
	for _, att := range r.components {
		if att.started {
			started = append(started, att)
		}
	}
	r.mu.Unlock()

	var firstErr error
	for _, att := range started {
		op := att.comp.(component.Operator)
		if err := component.Stop(op); err != nil && firstErr == nil {
			firstErr = err
		}
		r.mu.Lock()
		att.started = false
		r.mu.Unlock()
	}
	return firstErr
}

// Step performs one deterministic scheduling sweep: each started operator
// whose conditions all grant is ticked exactly once, in attach order.
// Returns how many operators ticked.
func (r *Runtime) Step(ctx context.Context) (int, error) {
	r.mu.Lock()
	ready := make([]*attachment, 0, len(r.components))
	for cid := uint64(1); cid <= r.nextComp; cid++ {
		att, ok := r.components[cid]
		if ok && att.started {
			ready = append(ready, att)
		}
	}
	r.mu.Unlock()

	ticked := 0
	for _, att := range ready {
		granted, err := r.checkConditions(ctx, att)
		if err != nil {
			return ticked, err
		}
		if !granted {
			continue
		}
		if err := r.tick(att); err != nil {
			return ticked, err
		}
		ticked++
	}

	r.mu.Lock()
	conns := append([]*connection(nil), r.connections...)
	r.mu.Unlock()
	for _, conn := range conns {
		r.metrics.setQueueDepth(conn.name, conn.ring.Len())
	}
	return ticked, nil
}

// checkConditions evaluates an operator's conditions and, when all grant,
// consumes the grants that are consumable.
func (r *Runtime) checkConditions(ctx context.Context, att *attachment) (bool, error) {
	r.mu.Lock()
	conds := append([]component.Condition(nil), att.conditions...)
	r.mu.Unlock()

	for _, cond := range conds {
		ok, err := cond.Check(ctx)
		if err != nil {
			return false, errors.WrapRuntime(err, att.identity.String(), "Step", "condition check")
		}
		if !ok {
			return false, nil
		}
	}
	for _, cond := range conds {
		switch c := cond.(type) {
		case *condition.Asynchronous:
			c.Consume()
		case *condition.Count:
			if err := c.Consume(); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

// tick runs one operator tick with its wired ports.
func (r *Runtime) tick(att *attachment) error {
	op := att.comp.(component.Operator)

	// Snapshot the port maps: Connect may grow them while the tick runs.
	r.mu.Lock()
	inPorts := make(map[string]component.EntityQueue, len(att.inPorts))
	for name, q := range att.inPorts {
		inPorts[name] = q
	}
	outPorts := make(map[string]component.EntityQueue, len(att.outPorts))
	for name, q := range att.outPorts {
		outPorts[name] = q
	}
	r.mu.Unlock()

	in := component.NewInputContext(inPorts)
	out := component.NewOutputContext(outPorts)

	ec := component.NewExecutionContext(r.handle, att.identity, in, out)
	began := time.Now()
	err := component.Tick(op, ec)
	r.metrics.recordTick(att.identity.Name, time.Since(began), err)
	if err != nil {
		r.logger.Error("tick failed", "operator", att.identity.Name, "error", err)
		return err
	}
	return nil
}

// Run starts every operator, sweeps until the context is canceled, then
// stops them. Sweeps that tick nothing block on an asynchronous wakeup or
// the idle poll interval before trying again.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.StartAll(ctx); err != nil {
		return err
	}
	defer func() {
		if err := r.StopAll(); err != nil {
			r.logger.Error("operator stop failed", "error", err)
		}
	}()

	timer := time.NewTimer(idlePoll)
	defer timer.Stop()

	for {
		n, err := r.Step(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(idlePoll)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.wake:
		case <-timer.C:
		}
	}
}
