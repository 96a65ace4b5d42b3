package unittest

import (
	"math/rand"

	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/storage"
)

// HashFixture returns a random hash.
func HashFixture() hash.Hash {
	var h hash.Hash
	_, _ = rand.Read(h[:])
	return h
}

// RandomBytes returns n random bytes.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}

// NodeObjectFixture returns an account node object whose hash matches its content.
func NodeObjectFixture(seq uint32) *storage.NodeObject {
	data := RandomBytes(64)
	return &storage.NodeObject{
		Type:      storage.ObjectAccountNode,
		LedgerSeq: seq,
		Hash:      hash.Sum(hash.PrefixLeafNode, data),
		Data:      data,
	}
}
