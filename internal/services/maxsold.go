package services

// AdvanceMaxSold returns the new high-water mark for a series' packs-sold
// counter given the previous mark and a freshly observed raw reading. The
// raw counter can glitch downward on upstream resets; the mark never
// follows it down. Negative readings are treated as zero.
func AdvanceMaxSold(previous, observed int) int {
	if observed < 0 {
		observed = 0
	}
	if observed > previous {
		return observed
	}
	return previous
}
