package match

import (
	"math"
	"math/rand"
	"testing"

	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dim = 128

// vecAt returns a vector whose Euclidean distance from the origin is exactly d.
func vecAt(d float32) types.FeatureVector {
	v := make(types.FeatureVector, dim)
	v[0] = d
	return v
}

func TestMatchScenario(t *testing.T) {
	store := []types.LabeledDescriptor{
		{Label: "alice", Descriptors: []types.FeatureVector{vecAt(0)}},
	}
	m := New(0.6)

	near := m.Match(vecAt(0.3), store)
	assert.Equal(t, "alice", near.Label)
	assert.InDelta(t, 0.3, near.Distance, 1e-6)
	assert.True(t, near.Known())

	far := m.Match(vecAt(0.9), store)
	assert.Equal(t, types.Unknown, far.Label)
	assert.InDelta(t, 0.9, far.Distance, 1e-6)
	assert.False(t, far.Known())
}

func TestMatchEmptyStore(t *testing.T) {
	res := New(0.6).Match(vecAt(0.1), nil)
	assert.Equal(t, types.Unknown, res.Label)
	assert.True(t, math.IsInf(res.Distance, 1))
}

func TestMatchThresholdIsInclusive(t *testing.T) {
	store := []types.LabeledDescriptor{
		{Label: "bob", Descriptors: []types.FeatureVector{vecAt(0)}},
	}
	res := New(0.5).Match(vecAt(0.5), store)
	assert.Equal(t, "bob", res.Label)
}

func TestMatchUsesClosestReferenceOfEachEntry(t *testing.T) {
	store := []types.LabeledDescriptor{
		{Label: "alice", Descriptors: []types.FeatureVector{vecAt(5), vecAt(1.2)}},
		{Label: "bob", Descriptors: []types.FeatureVector{vecAt(1.5)}},
	}
	res := New(0.6).Match(vecAt(1.0), store)
	assert.Equal(t, "alice", res.Label)
	assert.InDelta(t, 0.2, res.Distance, 1e-6)
}

func TestMatchDuplicateLabelsAreIndependent(t *testing.T) {
	store := []types.LabeledDescriptor{
		{Label: "carol", Descriptors: []types.FeatureVector{vecAt(3)}},
		{Label: "dave", Descriptors: []types.FeatureVector{vecAt(2)}},
		{Label: "carol", Descriptors: []types.FeatureVector{vecAt(1)}},
	}
	res := New(0.6).Match(vecAt(1.1), store)
	assert.Equal(t, "carol", res.Label)
	assert.InDelta(t, 0.1, res.Distance, 1e-6)
}

func TestMatchSkipsMismatchedDimensions(t *testing.T) {
	store := []types.LabeledDescriptor{
		{Label: "short", Descriptors: []types.FeatureVector{{0, 0}}},
		{Label: "ok", Descriptors: []types.FeatureVector{vecAt(0.1)}},
	}
	res := New(0.6).Match(vecAt(0), store)
	assert.Equal(t, "ok", res.Label)
}

func TestMatchDoesNotMutateStore(t *testing.T) {
	ref := vecAt(0.2)
	store := []types.LabeledDescriptor{{Label: "alice", Descriptors: []types.FeatureVector{ref}}}
	New(0.6).Match(vecAt(0.4), store)
	assert.Equal(t, float32(0.2), store[0].Descriptors[0][0])
	assert.Len(t, store, 1)
}

func TestDefaultThreshold(t *testing.T) {
	assert.Equal(t, DefaultThreshold, New(0).Threshold)
	assert.Equal(t, 0.4, New(0.4).Threshold)
}

// TestMatchIsTrueMinimum compares the matcher against an independent brute-force pass.
func TestMatchIsTrueMinimum(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	randVec := func() types.FeatureVector {
		v := make(types.FeatureVector, 8)
		for i := range v {
			v[i] = rng.Float32()
		}
		return v
	}

	m := New(0.6)
	for round := 0; round < 50; round++ {
		var store []types.LabeledDescriptor
		for i := 0; i < 1+rng.Intn(6); i++ {
			entry := types.LabeledDescriptor{Label: string(rune('a' + i))}
			for j := 0; j < 1+rng.Intn(3); j++ {
				entry.Descriptors = append(entry.Descriptors, randVec())
			}
			store = append(store, entry)
		}
		query := randVec()

		want := math.Inf(1)
		wantLabel := ""
		for _, e := range store {
			for _, ref := range e.Descriptors {
				if d := Euclidean(query, ref); d < want {
					want, wantLabel = d, e.Label
				}
			}
		}

		got := m.Match(query, store)
		require.InDelta(t, want, got.Distance, 1e-9)
		if want <= m.Threshold {
			require.Equal(t, wantLabel, got.Label)
		} else {
			require.Equal(t, types.Unknown, got.Label)
		}
	}
}

func TestEuclidean(t *testing.T) {
	tests := []struct {
		name string
		a, b types.FeatureVector
		want float64
	}{
		{"Identical", types.FeatureVector{1, 2, 3}, types.FeatureVector{1, 2, 3}, 0},
		{"Pythagoras", types.FeatureVector{0, 0}, types.FeatureVector{3, 4}, 5},
		{"Empty", types.FeatureVector{}, types.FeatureVector{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Euclidean(tt.a, tt.b), 1e-9)
		})
	}
	assert.True(t, math.IsInf(Euclidean(types.FeatureVector{1}, types.FeatureVector{1, 2}), 1))
}
