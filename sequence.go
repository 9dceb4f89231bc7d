package udpcon

// sequenceGreaterThan implements the cyclic "greater-than" comparator for
// the 16-bit sequence space: a is considered newer than b if it is ahead by
// at most half the space, wrapping around 65536. Naive a > b breaks the
// instant a wraps past 0, which is exactly the bug this comparator avoids.
func sequenceGreaterThan(a, b uint16) bool {
	const half = 32768
	return (a > b && a-b <= half) || (a < b && b-a > half)
}
