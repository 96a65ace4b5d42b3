package entropy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbc-network/vbcd/module/entropy"
)

func TestPool(t *testing.T) {
	p, err := entropy.NewPool()
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.Reseeds())

	a := make([]byte, 40)
	b := make([]byte, 40)
	n, err := p.Read(a)
	require.NoError(t, err)
	assert.Equal(t, 40, n)

	require.NoError(t, p.Reseed())
	_, _ = p.Read(b)
	assert.NotEqual(t, a, b)
	assert.EqualValues(t, 2, p.Reseeds())
}
