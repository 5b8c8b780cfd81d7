package network

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/spaolacci/murmur3"
)

// ErrInvalidLatency is returned when a latency model cannot be built from
// its parameters.
var ErrInvalidLatency = errors.New("invalid latency model")

// LatencyModel computes the transit time of a message. delta is a
// deterministic pseudo random value in [0, 100) derived from the receiver
// and the per-send seed.
type LatencyModel interface {
	Latency(from, to *Node, delta int) Time
}

// PseudoRandom returns a value in [0, 100) that depends only on the node
// and the seed.
func PseudoRandom(id NodeID, seed uint32) int {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return int(murmur3.Sum32WithSeed(buf[:], seed) % 100)
}

// NoLatency delivers every message one millisecond after it is sent.
type NoLatency struct{}

// Latency implements LatencyModel.
func (NoLatency) Latency(_, _ *Node, _ int) Time { return 1 }

// FixedLatency delivers every message after the same delay.
type FixedLatency struct {
	Delay Time
}

// Latency implements LatencyModel.
func (l FixedLatency) Latency(_, _ *Node, _ int) Time {
	return atLeastOne(l.Delay)
}

// UniformLatency spreads delays uniformly over [1, Max].
type UniformLatency struct {
	Max Time
}

// Latency implements LatencyModel.
func (l UniformLatency) Latency(_, _ *Node, delta int) Time {
	return atLeastOne(l.Max * Time(delta) / 100)
}

// DistanceLatency grows with the map distance between the two nodes.
type DistanceLatency struct {
	Fixed   Time
	PerUnit float64
	Jitter  Time
}

// Latency implements LatencyModel.
func (l DistanceLatency) Latency(from, to *Node, delta int) Time {
	d := Time(float64(from.Dist(to)) * l.PerUnit)
	return atLeastOne(l.Fixed + d + l.Jitter*Time(delta)/100)
}

// MeasuredLatency draws delays from an empirical distribution. props holds
// cumulative percentages ending at 100 and vals the delay for each bucket.
type MeasuredLatency struct {
	props []int
	vals  []Time
}

// NewMeasuredLatency validates and builds an empirical latency model.
func NewMeasuredLatency(props []int, vals []Time) (*MeasuredLatency, error) {
	if len(props) == 0 || len(props) != len(vals) {
		return nil, fmt.Errorf("%w: %d proportions for %d values", ErrInvalidLatency, len(props), len(vals))
	}
	if !sort.IntsAreSorted(props) || props[len(props)-1] != 100 {
		return nil, fmt.Errorf("%w: proportions must be ascending and end at 100", ErrInvalidLatency)
	}
	return &MeasuredLatency{props: props, vals: vals}, nil
}

// Latency implements LatencyModel.
func (l *MeasuredLatency) Latency(_, _ *Node, delta int) Time {
	i := sort.Search(len(l.props), func(i int) bool { return delta < l.props[i] })
	if i == len(l.props) {
		i--
	}
	return atLeastOne(l.vals[i])
}

// LatencySpec names a latency model and its parameters.
type LatencySpec struct {
	Kind    string
	Fixed   Time
	Max     Time
	PerUnit float64
	Jitter  Time
	Props   []int
	Vals    []Time
}

// ParseLatency builds the model described by spec.
func ParseLatency(spec LatencySpec) (LatencyModel, error) {
	switch spec.Kind {
	case "", "none":
		return NoLatency{}, nil
	case "fixed":
		return FixedLatency{Delay: spec.Fixed}, nil
	case "uniform":
		if spec.Max <= 0 {
			return nil, fmt.Errorf("%w: uniform max must be positive", ErrInvalidLatency)
		}
		return UniformLatency{Max: spec.Max}, nil
	case "distance":
		return DistanceLatency{Fixed: spec.Fixed, PerUnit: spec.PerUnit, Jitter: spec.Jitter}, nil
	case "measured":
		m, err := NewMeasuredLatency(spec.Props, spec.Vals)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidLatency, spec.Kind)
	}
}

func atLeastOne(t Time) Time {
	if t < 1 {
		return 1
	}
	return t
}
