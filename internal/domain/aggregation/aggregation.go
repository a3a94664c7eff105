// Package aggregation resolves a set of provider readings into one value.
package aggregation

import (
	"slices"

	"github.com/okian/quorum/internal/domain/types"
)

// Resolver turns the readings of a request into its canonical value.
// Implementations must be pure: the same multiset of inputs always yields
// the same output, whatever the order.
type Resolver interface {
	Resolve(values []types.Value) (types.Value, error)
}

// Median selects the middle reading. For an even number of readings it picks
// the lower of the two middle elements, so the result is always one of the
// submitted values and no rounding is involved.
type Median struct{}

// NewMedian returns the median resolver.
func NewMedian() Median { return Median{} }

// Resolve implements Resolver.
func (Median) Resolve(values []types.Value) (types.Value, error) {
	return Resolve(values)
}

// Resolve returns the lower median of values. The input slice is not modified.
func Resolve(values []types.Value) (types.Value, error) {
	if len(values) == 0 {
		return 0, types.NewKind("aggregation.resolve", types.ErrEmptyInput)
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	return sorted[(len(sorted)-1)/2], nil
}
