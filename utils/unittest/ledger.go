package unittest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/ledger/statetree"
	"github.com/vbc-network/vbcd/module/metrics"
	"github.com/vbc-network/vbcd/storage"
)

const (
	// GenesisAccount is the master account of genesis fixtures.
	GenesisAccount = "rGenesisMasterAccount"
	// GenesisCoins is the supply of genesis fixtures.
	GenesisCoins = 100_000_000_000
)

// FamilyFixture returns a tree family over the store with default cache sizes.
func FamilyFixture(store storage.NodeStore) *statetree.Family {
	return statetree.NewFamily(Logger(), store, metrics.NewNoopCollector(), nil, nil)
}

// TransactionFixture returns a payment transaction unique per n.
func TransactionFixture(t testing.TB, n int) *ledger.Transaction {
	blob := fmt.Sprintf(`{"Account":"%s","Amount":"%d","Destination":"rDest%d","Sequence":%d,"TransactionType":"Payment"}`, GenesisAccount, 1000+n, n, n)
	tx, err := ledger.NewTransaction([]byte(blob))
	require.NoError(t, err)
	return tx
}

// LedgerChainFixture builds a flushed chain of n+1 immutable ledgers starting at genesis. Every
// successor adds one account and txPerLedger transactions indexed from zero.
func LedgerChainFixture(t testing.TB, family *statetree.Family, n int, txPerLedger int) []*ledger.Snapshot {
	genesis, err := ledger.NewGenesis(family, GenesisAccount, GenesisCoins, 0)
	require.NoError(t, err)
	_, err = genesis.Flush()
	require.NoError(t, err)

	chain := []*ledger.Snapshot{genesis}
	txCount := 0
	for i := 1; i <= n; i++ {
		parent := chain[len(chain)-1]
		closeTime := parent.Info().CloseTime + 10
		next := ledger.NewSuccessor(parent, closeTime)
		require.NoError(t, next.AddEntry(ledger.NewAccountRoot(fmt.Sprintf("rAccount%d", i), uint64(i)*1000)))
		for j := 0; j < txPerLedger; j++ {
			txCount++
			meta := &ledger.Meta{TransactionIndex: uint32(j), TransactionResult: "tesSUCCESS"}
			require.NoError(t, next.AddTransaction(TransactionFixture(t, txCount), meta))
		}
		require.NoError(t, next.SetAccepted(closeTime, ledger.DefaultCloseTimeResolution, true))
		_, err = next.Flush()
		require.NoError(t, err)
		chain = append(chain, next)
	}
	return chain
}
