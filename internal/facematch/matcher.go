package facematch

// Matcher applies the acceptance threshold on top of Gallery.Nearest.
type Matcher struct {
	Threshold float64
}

// NewMatcher returns a matcher; a non-positive threshold falls back to DefaultThreshold.
func NewMatcher(threshold float64) Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Matcher{Threshold: threshold}
}

// Match returns the nearest identity when its distance is within the threshold.
// Anything farther is an unknown face.
func (m Matcher) Match(probe []float32, g *Gallery) (Match, bool) {
	best, ok := g.Nearest(probe)
	if !ok || best.Distance > m.Threshold {
		return Match{}, false
	}
	return best, true
}
