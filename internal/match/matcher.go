// Package match resolves live face descriptors against enrolled identities.
package match

import (
	"math"

	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/hupe1980/vecgo/distance"
)

// DefaultThreshold is the largest Euclidean distance still accepted as the same person.
const DefaultThreshold = 0.6

// Matcher performs a brute-force nearest neighbour search over an enrollment snapshot.
// It never mutates the entries it is given.
type Matcher struct {
	Threshold float64
}

// New returns a Matcher using threshold, or DefaultThreshold when threshold is not positive.
func New(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{Threshold: threshold}
}

// Match returns the label of the closest enrolled reference when it lies within the
// threshold, and Unknown otherwise. Distance is always the true minimum over every
// stored reference vector, +Inf for an empty store.
func (m *Matcher) Match(vec types.FeatureVector, entries []types.LabeledDescriptor) types.MatchResult {
	best := types.MatchResult{Label: types.Unknown, Distance: math.Inf(1)}
	bestEntry := -1

	for i, entry := range entries {
		for _, ref := range entry.Descriptors {
			d := Euclidean(vec, ref)
			// Strict comparison keeps the earliest entry on equal distances
			if d < best.Distance {
				best.Distance = d
				bestEntry = i
			}
		}
	}

	if bestEntry >= 0 && best.Distance <= m.Threshold {
		best.Label = entries[bestEntry].Label
	}
	return best
}

// Euclidean returns the L2 distance between a and b.
// Vectors of different dimensionality are never comparable and yield +Inf.
func Euclidean(a, b types.FeatureVector) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	if len(a) == 0 {
		return 0
	}
	return math.Sqrt(float64(distance.SquaredL2(a, b)))
}
