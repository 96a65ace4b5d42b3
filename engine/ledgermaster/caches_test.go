package ledgermaster_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbc-network/vbcd/engine/ledgermaster"
	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/module/metrics"
	"github.com/vbc-network/vbcd/storage"
	"github.com/vbc-network/vbcd/storage/inmemory"
	"github.com/vbc-network/vbcd/storage/relational"
	"github.com/vbc-network/vbcd/utils/unittest"
)

type transactionRows map[string]*relational.Transaction

func (r transactionRows) ByID(_ context.Context, id string) (*relational.Transaction, error) {
	row, ok := r[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return row, nil
}

func TestTransactionMaster_Fetch(t *testing.T) {
	tx := unittest.TransactionFixture(t, 7)
	rows := transactionRows{tx.ID.String(): {TransID: tx.ID.String(), RawTxn: tx.Blob}}
	master := ledgermaster.NewTransactionMaster(metrics.NewNoopCollector(), rows)

	fetched, err := master.Fetch(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, fetched.ID)

	// the cached instance is returned from now on
	delete(rows, tx.ID.String())
	again, err := master.Fetch(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Same(t, fetched, again)

	_, err = master.Fetch(context.Background(), unittest.TransactionFixture(t, 8).ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTransactionMaster_Canonicalize(t *testing.T) {
	master := ledgermaster.NewTransactionMaster(metrics.NewNoopCollector(), nil)

	first := unittest.TransactionFixture(t, 1)
	second := unittest.TransactionFixture(t, 1)
	assert.Same(t, first, master.Canonicalize(first))
	assert.Same(t, first, master.Canonicalize(second))

	_, err := master.Fetch(context.Background(), unittest.TransactionFixture(t, 2).ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCachedEntries(t *testing.T) {
	family := unittest.FamilyFixture(inmemory.NewNodeStore())
	chain := unittest.LedgerChainFixture(t, family, 2, 0)
	entries := ledgermaster.NewCachedEntries(metrics.NewNoopCollector())

	index := ledger.AccountRootIndex(unittest.GenesisAccount)
	entry, err := entries.Entry(chain[2], index)
	require.NoError(t, err)
	assert.Equal(t, index, entry.Index)
	assert.Equal(t, 1, entries.Len())

	// the genesis account is unchanged in ledger 1, so the decoded entry is shared
	shared, err := entries.Entry(chain[1], index)
	require.NoError(t, err)
	assert.Same(t, entry, shared)
	assert.Equal(t, 1, entries.Len())

	_, err = entries.Entry(chain[2], ledger.AccountRootIndex("rNobody"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
