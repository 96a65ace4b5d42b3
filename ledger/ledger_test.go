package ledger_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/ledger/statetree"
	"github.com/vbc-network/vbcd/module/metrics"
	"github.com/vbc-network/vbcd/storage"
	"github.com/vbc-network/vbcd/storage/inmemory"
	"github.com/vbc-network/vbcd/utils/unittest"
)

const (
	master     = "rMasterAccount"
	totalCoins = 100_000_000_000
)

func newFamily(store storage.NodeStore) *statetree.Family {
	return statetree.NewFamily(unittest.Logger(), store, metrics.NewNoopCollector(), nil, nil)
}

func txFixture(t *testing.T, n int) *ledger.Transaction {
	tx, err := ledger.NewTransaction([]byte(fmt.Sprintf(`{"TransactionType":"Payment","Sequence":%d,"Account":"%s"}`, n, master)))
	require.NoError(t, err)
	return tx
}

func TestGenesis(t *testing.T) {
	genesis, err := ledger.NewGenesis(newFamily(inmemory.NewNodeStore()), master, totalCoins, 7)
	require.NoError(t, err)

	info := genesis.Info()
	assert.Equal(t, uint32(1), info.Seq)
	assert.True(t, info.ParentHash.IsZero())
	assert.False(t, info.AccountHash.IsZero())
	assert.True(t, info.TxHash.IsZero())
	assert.Equal(t, uint64(totalCoins), info.TotalCoins)
	assert.Equal(t, uint64(7), info.TotalCoinsVBC)
	assert.True(t, genesis.IsImmutable())
	require.NoError(t, genesis.AssertSane())

	entry, err := genesis.Entry(ledger.AccountRootIndex(master))
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryTypeAccountRoot, entry.Type())
	assert.Equal(t, fmt.Sprintf("%d", totalCoins), entry.Fields["Balance"])

	_, err = genesis.Entry(unittest.HashFixture())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = genesis.AddEntry(ledger.NewAccountRoot("other", 1))
	assert.ErrorIs(t, err, ledger.ErrImmutable)
}

func TestSuccessor(t *testing.T) {
	genesis, err := ledger.NewGenesis(newFamily(inmemory.NewNodeStore()), master, totalCoins, 0)
	require.NoError(t, err)

	closeTime := ledger.NetTimeFrom(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	next := ledger.NewSuccessor(genesis, closeTime)
	require.NoError(t, next.AddEntry(ledger.NewAccountRoot("alice", 10)))
	require.NoError(t, next.AddTransaction(txFixture(t, 1), &ledger.Meta{TransactionIndex: 0, TransactionResult: "tesSUCCESS"}))
	require.NoError(t, next.SetAccepted(closeTime, 10, false))

	info := next.Info()
	assert.Equal(t, uint32(2), info.Seq)
	assert.Equal(t, genesis.Hash(), info.ParentHash)
	assert.Equal(t, closeTime, info.CloseTime)
	assert.True(t, info.CloseTimeEstimated())
	assert.True(t, info.Accepted)
	require.NoError(t, next.AssertSane())

	// the parent is unaffected
	_, err = genesis.Entry(ledger.AccountRootIndex("alice"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFlushAndLoad(t *testing.T) {
	store := inmemory.NewNodeStore()
	genesis, err := ledger.NewGenesis(newFamily(store), master, totalCoins, 0)
	require.NoError(t, err)
	next := ledger.NewSuccessor(genesis, 1000)
	require.NoError(t, next.AddTransaction(txFixture(t, 1), &ledger.Meta{TransactionIndex: 0}))
	next.SetImmutable()
	next.SetClosed()

	_, err = genesis.Flush()
	require.NoError(t, err)
	_, err = next.Flush()
	require.NoError(t, err)

	header, err := ledger.FetchHeader(store, next.Hash())
	require.NoError(t, err)
	assert.Equal(t, next.Info().AccountHash, header.AccountHash)
	assert.Equal(t, next.Info().Seq, header.Seq)

	loaded := ledger.LoadSnapshot(newFamily(store), *header)
	require.NoError(t, loaded.AssertSane())
	missing, err := loaded.Walk(0)
	require.NoError(t, err)
	assert.Empty(t, missing)

	_, err = ledger.FetchHeader(store, unittest.HashFixture())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAssertSane(t *testing.T) {
	s := ledger.NewEmpty(newFamily(inmemory.NewNodeStore()), 5, 100)
	assert.ErrorIs(t, s.AssertSane(), ledger.ErrNotSane)

	require.NoError(t, s.AddEntry(ledger.NewAccountRoot(master, 1)))
	s.SetClosed()
	require.NoError(t, s.AssertSane())

	// the header no longer matches the tree
	require.NoError(t, s.AddEntry(ledger.NewAccountRoot("bob", 1)))
	assert.ErrorIs(t, s.AssertSane(), ledger.ErrNotSane)
}

func TestDecodeHeader(t *testing.T) {
	info := ledger.Info{
		Seq:                 9,
		ParentHash:          unittest.HashFixture(),
		AccountHash:         unittest.HashFixture(),
		CloseTime:           500,
		ParentCloseTime:     470,
		CloseTimeResolution: 30,
		TotalCoins:          42,
		TotalCoinsVBC:       43,
	}
	h := info.ComputeHash()

	decoded, err := ledger.DecodeHeader(h, info.EncodeHeader())
	require.NoError(t, err)
	assert.Equal(t, h, decoded.Hash)
	assert.Equal(t, info.TotalCoinsVBC, decoded.TotalCoinsVBC)

	_, err = ledger.DecodeHeader(unittest.HashFixture(), info.EncodeHeader())
	assert.ErrorIs(t, err, ledger.ErrHashMismatch)

	// the second supply counter is part of the hash
	info.TotalCoinsVBC++
	assert.NotEqual(t, h, info.ComputeHash())
}

func TestEntries(t *testing.T) {
	entry, err := ledger.ParseExportedEntry(json.RawMessage(`{"index":"` + hash.Sum(hash.PrefixAccountIndex, []byte("x")).String() + `","LedgerEntryType":"AccountRoot","Balance":"5","Sequence":3}`))
	require.NoError(t, err)
	assert.Equal(t, "AccountRoot", entry.Type())
	_, hasIndex := entry.Fields["index"]
	assert.False(t, hasIndex)

	encoded, err := entry.Encode()
	require.NoError(t, err)
	decoded, err := ledger.DecodeEntry(entry.Index, encoded)
	require.NoError(t, err)
	reencoded, err := decoded.Encode()
	require.NoError(t, err)
	assert.Equal(t, encoded, reencoded)

	for _, raw := range []string{
		`{"LedgerEntryType":"AccountRoot"}`,
		`{"index":"zz","LedgerEntryType":"AccountRoot"}`,
		`{"index":"` + hash.ZeroHash.String() + `","LedgerEntryType":"AccountRoot"}`,
		`{"index":"` + unittest.HashFixture().String() + `"}`,
		`[1,2,3]`,
	} {
		_, err := ledger.ParseExportedEntry(json.RawMessage(raw))
		assert.ErrorIs(t, err, ledger.ErrInvalidEntry, raw)
	}
}

func TestOpenView(t *testing.T) {
	genesis, err := ledger.NewGenesis(newFamily(inmemory.NewNodeStore()), master, totalCoins, 0)
	require.NoError(t, err)

	view := ledger.NewOpenView(genesis, 1234)
	assert.Equal(t, uint32(2), view.Seq())
	assert.Equal(t, ledger.NetTime(1234), view.CloseTime())

	tx := txFixture(t, 1)
	require.NoError(t, view.RawTxInsert(tx))
	assert.ErrorIs(t, view.RawTxInsert(tx), ledger.ErrDuplicateTransaction)
	require.NoError(t, view.RawTxInsert(txFixture(t, 2)))
	assert.Equal(t, 2, view.TxCount())
	assert.True(t, view.HasTransaction(tx.ID))
}

func TestNetTime(t *testing.T) {
	epoch := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, ledger.NetTime(0), ledger.NetTimeFrom(epoch))
	assert.Equal(t, ledger.NetTime(90), ledger.NetTimeFrom(epoch.Add(90*time.Second)))
	assert.Equal(t, epoch.Add(90*time.Second), ledger.NetTime(90).Time())
	assert.Equal(t, ledger.NetTime(90), ledger.NetTime(100).RoundTo(30))
	assert.Equal(t, ledger.NetTime(120), ledger.NetTime(105).RoundTo(30))
}
