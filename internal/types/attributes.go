package types

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Gender is the normalised gender estimate attached to a detection event.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ParseGender maps the oracle's gender label onto the closed enum.
// Anything that is not recognisably male or female becomes GenderOther.
func ParseGender(label string) Gender {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "male", "m", "man":
		return GenderMale
	case "female", "f", "woman":
		return GenderFemale
	default:
		return GenderOther
	}
}

// Valid reports whether g is one of the enum values.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// UnmarshalJSON rejects values outside the enum.
func (g *Gender) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v := Gender(s)
	if !v.Valid() {
		return fmt.Errorf("invalid gender %q", s)
	}
	*g = v
	return nil
}

// CanonicalExpressions is the enumeration order of the expression net's output.
// Ties in Dominant resolve to the label that comes first in this order.
var CanonicalExpressions = []string{
	"neutral",
	"happy",
	"sad",
	"angry",
	"fearful",
	"disgusted",
	"surprised",
}

// Expressions maps an expression label to its score.
type Expressions map[string]float64

// Score returns the score for label, or 0 when the oracle did not report it.
func (e Expressions) Score(label string) float64 {
	if v, ok := e[label]; ok {
		return v
	}
	return 0
}

// Labels returns the reported labels in canonical order, followed by any
// labels the canonical list does not know about, sorted by name.
func (e Expressions) Labels() []string {
	labels := make([]string, 0, len(e))
	known := make(map[string]bool, len(CanonicalExpressions))
	for _, l := range CanonicalExpressions {
		known[l] = true
		if _, ok := e[l]; ok {
			labels = append(labels, l)
		}
	}
	var extra []string
	for l := range e {
		if !known[l] {
			extra = append(extra, l)
		}
	}
	sort.Strings(extra)
	return append(labels, extra...)
}

// Dominant returns the arg-max label. An empty mapping yields Unknown.
func (e Expressions) Dominant() string {
	best := Unknown
	bestScore := math.Inf(-1)
	for _, l := range e.Labels() {
		if s := e.Score(l); s > bestScore {
			best, bestScore = l, s
		}
	}
	return best
}

// MaxAge caps age estimates; anything above it is an oracle glitch.
const MaxAge = 150

// RoundAge rounds the oracle's age estimate to the nearest integer in [0, MaxAge].
func RoundAge(age float64) int {
	if math.IsNaN(age) || age <= 0 {
		return 0
	}
	if age >= MaxAge {
		return MaxAge
	}
	return int(math.Round(age))
}
