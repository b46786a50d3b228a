// Package world owns the shared simulation state: the month clock, the tile
// map, regions, sects, and the active celestial phenomenon. Avatars are owned
// by the simulator; the world never references them except through opaque ids.
package world

// Clock is a monotonic count of months since the world epoch. Only the
// simulator advances it, once per tick, after all other phases ran.
type Clock struct {
	months int
}

// NewClock returns a clock positioned at the given month count.
func NewClock(months int) *Clock {
	return &Clock{months: months}
}

// Now returns the raw month count.
func (c *Clock) Now() int { return c.months }

// Year returns the 1-based in-world year.
func (c *Clock) Year() int { return c.months/12 + 1 }

// Month returns the 1-based month within the year.
func (c *Clock) Month() int { return c.months%12 + 1 }

// AdvanceOneMonth is the clock's only mutator.
func (c *Clock) AdvanceOneMonth() { c.months++ }
