package sim

// MaxDurationReduction caps how much modifier effects can shorten a timed
// action.
const MaxDurationReduction = 0.9

// TimedDone reports whether a timed action that began at startMonth has run
// its full duration by clock. The starting month counts as the first month
// of work, so a duration of 1 completes on the tick it started.
func TimedDone(clock, startMonth, durationMonths int) bool {
	return clock-startMonth >= durationMonths-1
}

// EffectiveDuration applies a fractional duration_reduction modifier to a
// base duration. Reduction is clamped to MaxDurationReduction and the result
// never drops below one month.
func EffectiveDuration(baseMonths int, reduction float64) int {
	if reduction < 0 {
		reduction = 0
	}
	if reduction > MaxDurationReduction {
		reduction = MaxDurationReduction
	}
	d := int(float64(baseMonths) * (1 - reduction))
	if d < 1 {
		d = 1
	}
	return d
}
