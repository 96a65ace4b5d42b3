package bootstrap

import (
	"errors"
	"fmt"

	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/ledger/statetree"
	"github.com/vbc-network/vbcd/storage"
)

// Dump prints the transaction held by the tree node with the given hash to the dump output.
// A node that is absent or not a transaction is logged. It always returns ErrDumpComplete
// unless the hash is malformed.
func (b *Bootstrapper) Dump(nodeHash string) error {
	h, err := hash.FromHex(nodeHash)
	if err != nil {
		return fmt.Errorf("%q: %v: %w", nodeHash, err, ErrInvalidIdentifier)
	}

	tx, err := b.fetchTransaction(h)
	if err != nil {
		b.log.Warn().Err(err).Str("node", h.String()).Msg("invalid node")
		return ErrDumpComplete
	}

	_, err = fmt.Fprintf(b.params.DumpOutput, "%s\n", tx.Blob)
	if err != nil {
		b.log.Warn().Err(err).Msg("could not print node")
	}
	return ErrDumpComplete
}

func (b *Bootstrapper) fetchTransaction(h hash.Hash) (*ledger.Transaction, error) {
	obj, err := b.family.NodeStore().Fetch(h)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("node not in node store: %w", err)
		}
		return nil, err
	}

	node, err := statetree.DecodeNode(h, obj.Data)
	if err != nil {
		return nil, err
	}

	switch node.Type() {
	case statetree.NodeTxNoMeta:
		return ledger.NewTransaction(node.Data())
	case statetree.NodeTxWithMeta:
		blob, _, err := ledger.ReadVL(node.Data())
		if err != nil {
			return nil, fmt.Errorf("could not read transaction: %w", err)
		}
		return ledger.NewTransaction(blob)
	default:
		return nil, fmt.Errorf("node of type %v holds no transaction", node.Type())
	}
}
