package condition

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/weftworks/weft/component"
	"github.com/weftworks/weft/errors"
)

// Boolean is a hand-operated gate: eligible while enabled, ineligible while
// disabled. Useful for pausing a branch of a pipeline at runtime.
type Boolean struct {
	*component.Base
	enabled atomic.Bool
}

var _ component.Condition = (*Boolean)(nil)
var _ component.Initializer = (*Boolean)(nil)

// NewBoolean creates a boolean condition with the given initial setting.
func NewBoolean(name string, enabled bool, opts ...component.BaseOption) *Boolean {
	b := &Boolean{Base: component.NewBase(name, opts...)}
	b.enabled.Store(enabled)
	return b
}

// Setup declares the enabled parameter.
func (b *Boolean) Setup(spec *component.Spec) error {
	return spec.Param(component.ParamDecl{
		Name:        "enabled",
		Type:        component.TypeBool,
		Description: "whether the gated operator is eligible to tick",
		Default:     true,
	})
}

// OnInitialize applies the bound enabled parameter to the gate.
func (b *Boolean) OnInitialize() error {
	if v, ok := component.ParamAs[bool](b.Base, "enabled"); ok {
		b.enabled.Store(v)
	}
	return nil
}

// Enable opens the gate.
func (b *Boolean) Enable() { b.enabled.Store(true) }

// Disable closes the gate.
func (b *Boolean) Disable() { b.enabled.Store(false) }

// Check reports the gate setting.
func (b *Boolean) Check(_ context.Context) (bool, error) {
	return b.enabled.Load(), nil
}

// Count grants a fixed budget of ticks and then retires. A budget of zero
// never grants.
type Count struct {
	*component.Base
	remaining atomic.Int64
}

var _ component.Condition = (*Count)(nil)
var _ component.Initializer = (*Count)(nil)

// NewCount creates a count condition with the given tick budget.
func NewCount(name string, budget int64, opts ...component.BaseOption) *Count {
	c := &Count{Base: component.NewBase(name, opts...)}
	c.remaining.Store(budget)
	return c
}

// Setup declares the count parameter.
func (c *Count) Setup(spec *component.Spec) error {
	return spec.Param(component.ParamDecl{
		Name:        "count",
		Type:        component.TypeInt,
		Description: "number of ticks to grant before retiring",
		Required:    true,
	})
}

// OnInitialize applies the bound count parameter as the tick budget.
func (c *Count) OnInitialize() error {
	n, ok := component.ParamInt(c.Base, "count")
	if !ok {
		return fmt.Errorf("%w: count", errors.ErrParameterUnset)
	}
	if n < 0 {
		return fmt.Errorf("%w: count must not be negative", errors.ErrParameterType)
	}
	c.remaining.Store(n)
	return nil
}

// Check reports whether budget remains.
func (c *Count) Check(_ context.Context) (bool, error) {
	return c.remaining.Load() > 0, nil
}

// Consume spends one tick of budget. Spending past zero is a runtime error.
func (c *Count) Consume() error {
	if c.remaining.Add(-1) < 0 {
		c.remaining.Store(0)
		return errors.WrapRuntime(errors.ErrConditionRetired, c.Name(), "Consume", "tick budget")
	}
	return nil
}

// Remaining returns the unspent budget.
func (c *Count) Remaining() int64 {
	return c.remaining.Load()
}

// Periodic grants at most one tick per period, measured against wall time.
type Periodic struct {
	*component.Base
	mu      sync.Mutex
	limiter *rate.Limiter
	period  time.Duration
}

var _ component.Condition = (*Periodic)(nil)
var _ component.Initializer = (*Periodic)(nil)

// NewPeriodic creates a periodic condition. The first grant is immediate.
func NewPeriodic(name string, period time.Duration, opts ...component.BaseOption) *Periodic {
	return &Periodic{
		Base:    component.NewBase(name, opts...),
		limiter: rate.NewLimiter(rate.Every(period), 1),
		period:  period,
	}
}

// Setup declares the period parameter.
func (p *Periodic) Setup(spec *component.Spec) error {
	return spec.Param(component.ParamDecl{
		Name:        "period",
		Type:        component.TypeString,
		Description: "minimum interval between ticks, as a duration string",
		Required:    true,
	})
}

// OnInitialize parses the bound period parameter and rebuilds the limiter.
func (p *Periodic) OnInitialize() error {
	raw, ok := component.ParamAs[string](p.Base, "period")
	if !ok {
		return fmt.Errorf("%w: period", errors.ErrParameterUnset)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%w: period: %v", errors.ErrParameterType, err)
	}
	if d <= 0 {
		return fmt.Errorf("%w: period must be positive", errors.ErrParameterType)
	}
	p.mu.Lock()
	p.limiter = rate.NewLimiter(rate.Every(d), 1)
	p.period = d
	p.mu.Unlock()
	return nil
}

// Period returns the configured interval.
func (p *Periodic) Period() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.period
}

// Check consumes a grant when one is available. A false result means the
// interval since the last grant has not elapsed.
func (p *Periodic) Check(_ context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limiter.Allow(), nil
}
