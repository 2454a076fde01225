package chaintime

import (
	"fmt"

	"github.com/airchains-network/devchain/types"
)

// State is the process-wide time state of the chain
type State struct {
	NextTimestamp      *uint64
	Interval           *uint64
	LastBlockTimestamp uint64
	// Offset is added to the wall clock (evm_increaseTime / evm_setTime).
	Offset int64
}

func (s State) copy() State {
	cpy := State{LastBlockTimestamp: s.LastBlockTimestamp, Offset: s.Offset}
	if s.NextTimestamp != nil {
		v := *s.NextTimestamp
		cpy.NextTimestamp = &v
	}
	if s.Interval != nil {
		v := *s.Interval
		cpy.Interval = &v
	}
	return cpy
}

// Controller decides the timestamp of the next block. It is not safe for
// concurrent use; the engine serializes access.
type Controller struct {
	clock Clock
	state State
}

// NewController creates a controller whose chain head carries genesisTimestamp
func NewController(clock Clock, genesisTimestamp uint64) *Controller {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Controller{
		clock: clock,
		state: State{LastBlockTimestamp: genesisTimestamp},
	}
}

// SetNextTimestamp installs a one-shot timestamp for the next mined block
func (c *Controller) SetNextTimestamp(ts uint64) error {
	if ts <= c.state.LastBlockTimestamp {
		return fmt.Errorf("%w: %d <= %d", types.ErrInvalidTimestamp, ts, c.state.LastBlockTimestamp)
	}
	c.state.NextTimestamp = &ts
	return nil
}

// SetInterval makes every block land exactly seconds after its parent
func (c *Controller) SetInterval(seconds uint64) {
	c.state.Interval = &seconds
}

// RemoveInterval clears the interval and reports whether one was set
func (c *Controller) RemoveInterval() bool {
	had := c.state.Interval != nil
	c.state.Interval = nil
	return had
}

// IncreaseTime shifts the wall clock forward and returns the total offset
func (c *Controller) IncreaseTime(seconds uint64) int64 {
	c.state.Offset += int64(seconds)
	return c.state.Offset
}

// SetTime shifts the wall clock so that it currently reads ts
func (c *Controller) SetTime(ts uint64) {
	c.state.Offset = int64(ts) - c.clock.Now().Unix()
}

// Now returns the offset-adjusted wall clock in unix seconds
func (c *Controller) Now() uint64 {
	now := c.clock.Now().Unix() + c.state.Offset
	return uint64(max(now, 0))
}

// LastBlockTimestamp returns the timestamp of the chain head
func (c *Controller) LastBlockTimestamp() uint64 {
	return c.state.LastBlockTimestamp
}

// NextBlockTimestamp resolves the timestamp of the block being mined, in order:
// the one-shot override, then parent + interval, then the wall clock clamped
// to parent + 1.
func (c *Controller) NextBlockTimestamp() uint64 {
	var ts uint64
	switch {
	case c.state.NextTimestamp != nil:
		ts = *c.state.NextTimestamp
		c.state.NextTimestamp = nil
	case c.state.Interval != nil:
		ts = c.state.LastBlockTimestamp + *c.state.Interval
	default:
		ts = max(c.Now(), c.state.LastBlockTimestamp+1)
	}
	c.state.LastBlockTimestamp = ts
	return ts
}

// Snapshot returns a copy of the time state
func (c *Controller) Snapshot() State {
	return c.state.copy()
}

// Restore replaces the time state with a snapshot
func (c *Controller) Restore(s State) {
	c.state = s.copy()
}
