// Package leader implements stake weighted slot leader selection.
package leader

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrInvalidWeights is returned for an empty, negative or zero weight vector.
var ErrInvalidWeights = errors.New("invalid weights")

// Alias samples from a discrete distribution in constant time using
// Vose's alias method.
type Alias struct {
	prob  []float64
	alias []int
	rng   *rand.Rand
}

// NewAlias builds the alias table for weights. Weights need not sum to one.
func NewAlias(weights []float64, rng *rand.Rand) (*Alias, error) {
	n := len(weights)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidWeights)
	}
	var total float64
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("%w: weight %d is %v", ErrInvalidWeights, i, w)
		}
		total += w
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: total is %v", ErrInvalidWeights, total)
	}

	a := &Alias{
		prob:  make([]float64, n),
		alias: make([]int, n),
		rng:   rng,
	}
	scaled := make([]float64, n)
	var small, large []int
	for i, w := range weights {
		scaled[i] = w * float64(n) / total
		if scaled[i] < 1 {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}
	for len(small) > 0 && len(large) > 0 {
		l := small[len(small)-1]
		small = small[:len(small)-1]
		g := large[len(large)-1]
		large = large[:len(large)-1]

		a.prob[l] = scaled[l]
		a.alias[l] = g
		scaled[g] = scaled[g] + scaled[l] - 1
		if scaled[g] < 1 {
			small = append(small, g)
		} else {
			large = append(large, g)
		}
	}
	// Leftovers are exactly one up to rounding.
	for _, g := range large {
		a.prob[g] = 1
	}
	for _, l := range small {
		a.prob[l] = 1
	}
	return a, nil
}

// Next draws an index using the table's own generator.
func (a *Alias) Next() int { return a.Draw(a.rng) }

// Draw draws an index using rng.
func (a *Alias) Draw(rng *rand.Rand) int {
	i := rng.Intn(len(a.prob))
	if rng.Float64() < a.prob[i] {
		return i
	}
	return a.alias[i]
}
