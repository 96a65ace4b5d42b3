package hash_test

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"

	"github.com/vbc-network/vbcd/ledger/common/hash"
)

func TestHash(t *testing.T) {
	t.Run("lengthSanity", func(t *testing.T) {
		assert.Equal(t, 32, hash.HashLen)
	})

	t.Run("Sum", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			value := make([]byte, i)
			rand.Read(value)
			h := hash.Sum(hash.PrefixLeafNode, value)

			hasher := sha3.New256()
			_, _ = hasher.Write(hash.PrefixLeafNode[:])
			_, _ = hasher.Write(value)
			assert.Equal(t, hasher.Sum(nil), h[:])
		}
	})

	t.Run("prefix separates domains", func(t *testing.T) {
		data := []byte("payload")
		assert.NotEqual(t, hash.Sum(hash.PrefixLeafNode, data), hash.Sum(hash.PrefixTxNode, data))
	})
}

func TestFromHex(t *testing.T) {
	var h hash.Hash
	rand.Read(h[:])

	parsed, err := hash.FromHex(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	parsed, err = hash.FromHex(strings.ToLower(h.String()))
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	_, err = hash.FromHex("abc")
	assert.Error(t, err)

	_, err = hash.FromHex(strings.Repeat("zz", 32))
	assert.Error(t, err)
}

func TestNibble(t *testing.T) {
	var h hash.Hash
	h[0] = 0xAB
	h[31] = 0x0F

	assert.Equal(t, 0xA, h.Nibble(0))
	assert.Equal(t, 0xB, h.Nibble(1))
	assert.Equal(t, 0x0, h.Nibble(62))
	assert.Equal(t, 0xF, h.Nibble(63))
	assert.True(t, hash.ZeroHash.IsZero())
	assert.False(t, h.IsZero())
}
