package ledgermaster

import (
	"context"
	"fmt"

	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/module"
	"github.com/vbc-network/vbcd/module/cache"
	"github.com/vbc-network/vbcd/module/metrics"
	"github.com/vbc-network/vbcd/storage"
	"github.com/vbc-network/vbcd/storage/relational"
)

// TransactionStore looks up transactions in the transaction database.
type TransactionStore interface {
	ByID(ctx context.Context, id string) (*relational.Transaction, error)
}

// TransactionMaster is the canonical cache of transactions, backed by the transaction
// database.
type TransactionMaster struct {
	cache *cache.TaggedCache[hash.Hash, *ledger.Transaction]
	store TransactionStore
}

var _ module.Sweepable = (*TransactionMaster)(nil)

// NewTransactionMaster creates the cache. store may be nil, in which case Fetch only consults
// the cache.
func NewTransactionMaster(collector module.CacheMetrics, store TransactionStore, options ...cache.Option) *TransactionMaster {
	return &TransactionMaster{
		cache: cache.NewTaggedCache[hash.Hash, *ledger.Transaction](metrics.ResourceMasterTx, collector, options...),
		store: store,
	}
}

// Fetch returns the transaction from the cache or the transaction database.
// Expected errors:
//   - storage.ErrNotFound if the transaction is unknown
func (m *TransactionMaster) Fetch(ctx context.Context, id hash.Hash) (*ledger.Transaction, error) {
	if tx, ok := m.cache.Get(id); ok {
		return tx, nil
	}
	if m.store == nil {
		return nil, fmt.Errorf("transaction %v: %w", id, storage.ErrNotFound)
	}

	row, err := m.store.ByID(ctx, id.String())
	if err != nil {
		return nil, fmt.Errorf("could not load transaction %v: %w", id, err)
	}
	tx, err := ledger.NewTransaction(row.RawTxn)
	if err != nil {
		return nil, fmt.Errorf("could not decode transaction %v: %w", id, err)
	}
	return m.Canonicalize(tx), nil
}

// Canonicalize returns the cached instance of the transaction, caching tx if there is none.
func (m *TransactionMaster) Canonicalize(tx *ledger.Transaction) *ledger.Transaction {
	if cached, ok := m.cache.Get(tx.ID); ok {
		return cached
	}
	m.cache.Add(tx.ID, tx)
	return tx
}

func (m *TransactionMaster) Tune(size int) {
	m.cache.SetTargetSize(size)
}

func (m *TransactionMaster) Sweep() {
	m.cache.Sweep()
}
