package spacedrep

// MaxIntervalDays caps the review interval.
const MaxIntervalDays = 30

// IntervalDays returns the review interval after streak consecutive
// correct answers: 1, 2, 4, 8, 16, then 30 days.
func IntervalDays(streak int) int {
	if streak <= 1 {
		return 1
	}
	if streak > 6 {
		return MaxIntervalDays
	}
	return min(MaxIntervalDays, 1<<(streak-1))
}
