package statetree

import (
	"fmt"

	"go.uber.org/atomic"

	"github.com/vbc-network/vbcd/ledger/common/hash"
)

// Serialization of a node, as persisted in the node store:
//
//	inner: type(1) | 16 x child hash(32)
//	leaf:  type(1) | key(32) | data
const (
	encTypeSize  = 1
	encInnerSize = encTypeSize + Radix*hash.HashLen
	encLeafMin   = encTypeSize + hash.HashLen
)

// EncodeNode serializes the node for storage.
func EncodeNode(n *Node) []byte {
	if n.typ == NodeInner {
		buf := make([]byte, 0, encInnerSize)
		buf = append(buf, byte(n.typ))
		for i := range n.childHashes {
			buf = append(buf, n.childHashes[i][:]...)
		}
		return buf
	}
	buf := make([]byte, 0, encLeafMin+len(n.data))
	buf = append(buf, byte(n.typ))
	buf = append(buf, n.key[:]...)
	buf = append(buf, n.data...)
	return buf
}

// DecodeNode parses a stored node and checks that its content hashes to expected.
// The returned node is marked as flushed.
func DecodeNode(expected hash.Hash, encoded []byte) (*Node, error) {
	if len(encoded) < encTypeSize {
		return nil, fmt.Errorf("empty node encoding: %w", ErrInvalidNode)
	}
	typ := NodeType(encoded[0])

	var n *Node
	switch {
	case typ == NodeInner:
		if len(encoded) != encInnerSize {
			return nil, fmt.Errorf("inner node encoding has %d bytes, expected %d: %w", len(encoded), encInnerSize, ErrInvalidNode)
		}
		var childHashes [Radix]hash.Hash
		for i := range childHashes {
			offset := encTypeSize + i*hash.HashLen
			copy(childHashes[i][:], encoded[offset:offset+hash.HashLen])
		}
		n = newInner([Radix]*Node{}, childHashes)

	case typ.IsLeaf():
		if len(encoded) < encLeafMin {
			return nil, fmt.Errorf("leaf node encoding has %d bytes, expected at least %d: %w", len(encoded), encLeafMin, ErrInvalidNode)
		}
		var key hash.Hash
		copy(key[:], encoded[encTypeSize:encLeafMin])
		data := make([]byte, len(encoded)-encLeafMin)
		copy(data, encoded[encLeafMin:])
		n = &Node{typ: typ, key: key, data: data}
		n.hash = leafHash(typ, key, data)

	default:
		return nil, fmt.Errorf("unknown node type %d: %w", encoded[0], ErrInvalidNode)
	}

	if n.hash != expected {
		return nil, fmt.Errorf("node hash %v does not match requested %v: %w", n.hash, expected, ErrInvalidNode)
	}
	n.flushed = atomic.NewBool(true)
	return n, nil
}
