package ledgermaster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangeSet(t *testing.T) {
	var s RangeSet
	assert.Equal(t, "empty", s.String())

	s.Insert(5, 7)
	s.Insert(1, 2)
	s.Insert(10, 10)
	assert.Equal(t, "1-2,5-7,10", s.String())

	// adjacent ranges merge
	s.Insert(3, 4)
	assert.Equal(t, "1-7,10", s.String())

	// overlapping ranges merge, reversed bounds are accepted
	s.Insert(12, 6)
	assert.Equal(t, "1-12", s.String())

	assert.True(t, s.Contains(1))
	assert.True(t, s.Contains(12))
	assert.False(t, s.Contains(13))
	assert.False(t, s.Contains(0))

	s.Remove(6)
	assert.Equal(t, "1-5,7-12", s.String())
	s.Remove(1)
	s.Remove(12)
	assert.Equal(t, []Range{{Min: 2, Max: 5}, {Min: 7, Max: 11}}, s.Ranges())
	assert.False(t, s.Contains(6))

	s.Insert(6, 6)
	assert.Equal(t, "2-11", s.String())
}

func TestRangeSet_MaxSequence(t *testing.T) {
	var s RangeSet
	s.Insert(^uint32(0)-1, ^uint32(0))
	s.Insert(1, 1)
	assert.Equal(t, 2, len(s.Ranges()))
	assert.True(t, s.Contains(^uint32(0)))
}
