package ledgermaster

import (
	"fmt"
	"sort"
	"strings"
)

// Range is an inclusive range of ledger sequences.
type Range struct {
	Min uint32
	Max uint32
}

// RangeSet is a set of ledger sequences kept as sorted, disjoint, non adjacent ranges.
// It is not safe for concurrent use.
type RangeSet struct {
	ranges []Range
}

// Insert adds every sequence in [min, max].
func (s *RangeSet) Insert(min, max uint32) {
	if min > max {
		min, max = max, min
	}
	merged := Range{Min: min, Max: max}
	kept := s.ranges[:0:0]
	for _, r := range s.ranges {
		// disjoint and not adjacent
		if r.Max+1 < merged.Min && r.Max != ^uint32(0) || merged.Max+1 < r.Min && merged.Max != ^uint32(0) {
			kept = append(kept, r)
			continue
		}
		if r.Min < merged.Min {
			merged.Min = r.Min
		}
		if r.Max > merged.Max {
			merged.Max = r.Max
		}
	}
	kept = append(kept, merged)
	sort.Slice(kept, func(i, j int) bool { return kept[i].Min < kept[j].Min })
	s.ranges = kept
}

// Remove drops a single sequence.
func (s *RangeSet) Remove(seq uint32) {
	kept := s.ranges[:0:0]
	for _, r := range s.ranges {
		switch {
		case seq < r.Min || seq > r.Max:
			kept = append(kept, r)
		case r.Min == r.Max:
		case seq == r.Min:
			kept = append(kept, Range{Min: r.Min + 1, Max: r.Max})
		case seq == r.Max:
			kept = append(kept, Range{Min: r.Min, Max: r.Max - 1})
		default:
			kept = append(kept, Range{Min: r.Min, Max: seq - 1}, Range{Min: seq + 1, Max: r.Max})
		}
	}
	s.ranges = kept
}

// Contains reports whether seq is in the set.
func (s *RangeSet) Contains(seq uint32) bool {
	i := sort.Search(len(s.ranges), func(i int) bool { return s.ranges[i].Max >= seq })
	return i < len(s.ranges) && s.ranges[i].Min <= seq
}

// Ranges returns a copy of the ranges in ascending order.
func (s *RangeSet) Ranges() []Range {
	out := make([]Range, len(s.ranges))
	copy(out, s.ranges)
	return out
}

// String renders the set as "1-5,7,9-12", or "empty".
func (s *RangeSet) String() string {
	if len(s.ranges) == 0 {
		return "empty"
	}
	parts := make([]string, 0, len(s.ranges))
	for _, r := range s.ranges {
		if r.Min == r.Max {
			parts = append(parts, fmt.Sprintf("%d", r.Min))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", r.Min, r.Max))
		}
	}
	return strings.Join(parts, ",")
}
