// ABOUTME: Automatable gain parameter
// ABOUTME: Holds scheduled value changes and linear ramps on the output clock
package output

import (
	"math"
	"sort"
	"sync"
)

// AutomationKind distinguishes scheduled parameter changes
type AutomationKind int

const (
	// SetAt jumps to the value at the given time
	SetAt AutomationKind = iota
	// RampTo ramps linearly from the previous event to the value
	RampTo
)

func (k AutomationKind) String() string {
	if k == RampTo {
		return "ramp"
	}
	return "set"
}

// Automation is one scheduled parameter change
type Automation struct {
	Kind  AutomationKind
	Value float64
	Time  float64
}

// Param is a value that can be scheduled against the output clock.
// It is safe for concurrent use.
type Param struct {
	mu     sync.Mutex
	value  float64
	events []Automation
}

// NewParam creates a parameter with an initial value
func NewParam(value float64) *Param {
	return &Param{value: value}
}

// SetValue sets the value immediately and clears scheduled changes
func (p *Param) SetValue(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = v
	p.events = nil
}

// Value returns the base value, ignoring automation
func (p *Param) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// SetValueAtTime schedules a jump to v at time t
func (p *Param) SetValueAtTime(v, t float64) {
	p.insert(Automation{Kind: SetAt, Value: v, Time: t})
}

// LinearRampToValueAtTime schedules a linear ramp ending at v at time t
func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.insert(Automation{Kind: RampTo, Value: v, Time: t})
}

func (p *Param) insert(a Automation) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].Time > a.Time })
	p.events = append(p.events, Automation{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = a
}

// Automations returns a copy of the scheduled changes in time order
func (p *Param) Automations() []Automation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Automation(nil), p.events...)
}

// ValueAt evaluates the parameter at time t
func (p *Param) ValueAt(t float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	prevTime, prevValue := math.Inf(-1), p.value
	for _, e := range p.events {
		if e.Time <= t {
			prevTime, prevValue = e.Time, e.Value
			continue
		}
		if e.Kind == RampTo && !math.IsInf(prevTime, -1) {
			frac := (t - prevTime) / (e.Time - prevTime)
			return prevValue + (e.Value-prevValue)*frac
		}
		break
	}
	return prevValue
}
