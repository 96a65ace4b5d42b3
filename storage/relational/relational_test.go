package relational_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/storage"
	"github.com/vbc-network/vbcd/storage/relational"
	"github.com/vbc-network/vbcd/utils/unittest"
)

func runWithDB(t *testing.T, name string, models []any, f func(db *relational.DB)) {
	unittest.RunWithTempDir(t, func(dir string) {
		db, err := relational.Open(context.Background(), unittest.Logger(), filepath.Join(dir, name), models...)
		require.NoError(t, err)
		defer db.Close()
		f(db)
	})
}

func infoFixture(seq uint32) *ledger.Info {
	info := &ledger.Info{
		Seq:                 seq,
		ParentHash:          unittest.HashFixture(),
		AccountHash:         unittest.HashFixture(),
		CloseTime:           ledger.NetTime(1000 + seq),
		ParentCloseTime:     ledger.NetTime(990 + seq),
		CloseTimeResolution: 30,
		TotalCoins:          100,
		TotalCoinsVBC:       200,
	}
	info.Hash = info.ComputeHash()
	return info
}

func TestLedgers(t *testing.T) {
	runWithDB(t, relational.LedgerDBName, relational.LedgerModels(), func(db *relational.DB) {
		ctx := context.Background()
		ledgers := relational.NewLedgers(db)

		_, err := ledgers.LoadLatest(ctx)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, _, err = ledgers.Range(ctx)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		infos := []*ledger.Info{infoFixture(3), infoFixture(7), infoFixture(5)}
		for _, info := range infos {
			require.NoError(t, ledgers.Save(ctx, info))
		}

		latest, err := ledgers.LoadLatest(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint32(7), latest.Seq)
		assert.Equal(t, infos[1].Hash, latest.Hash)
		assert.Equal(t, infos[1].Hash, latest.ComputeHash())
		assert.Equal(t, infos[1].TotalCoinsVBC, latest.TotalCoinsVBC)

		bySeq, err := ledgers.LoadBySeq(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, infos[2].Hash, bySeq.Hash)

		byHash, err := ledgers.LoadByHash(ctx, infos[0].Hash)
		require.NoError(t, err)
		assert.Equal(t, uint32(3), byHash.Seq)

		h, err := ledgers.HashBySeq(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, infos[0].Hash, h)

		_, err = ledgers.HashBySeq(ctx, 4)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = ledgers.LoadByHash(ctx, unittest.HashFixture())
		assert.ErrorIs(t, err, storage.ErrNotFound)

		low, high, err := ledgers.Range(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint32(3), low)
		assert.Equal(t, uint32(7), high)

		// saving again replaces the row for the sequence
		replacement := infoFixture(7)
		require.NoError(t, ledgers.Save(ctx, replacement))
		latest, err = ledgers.LoadLatest(ctx)
		require.NoError(t, err)
		assert.Equal(t, replacement.Hash, latest.Hash)
	})
}

func TestCacheSize(t *testing.T) {
	runWithDB(t, relational.LedgerDBName, relational.LedgerModels(), func(db *relational.DB) {
		require.NoError(t, db.SetCacheSize(4096))
		size, err := db.CacheSize()
		require.NoError(t, err)
		assert.Equal(t, 4096, size)
	})
}

func TestTransactionsSchemaProbe(t *testing.T) {
	runWithDB(t, relational.TransactionDBName, relational.TransactionModels(), func(db *relational.DB) {
		ctx := context.Background()
		txs := relational.NewTransactions(db)
		assert.True(t, txs.HasTxnSeq())

		row := &relational.Transaction{TransID: unittest.HashFixture().String(), TransType: "Payment", LedgerSeq: 4, Status: "V"}
		require.NoError(t, txs.Save(ctx, row, []string{"alice", "bob"}, 2))
		// saving twice is idempotent
		require.NoError(t, txs.Save(ctx, row, []string{"alice"}, 2))

		stored, err := txs.ByID(ctx, row.TransID)
		require.NoError(t, err)
		assert.Equal(t, "Payment", stored.TransType)

		rows, err := txs.BySeq(ctx, 4)
		require.NoError(t, err)
		assert.Len(t, rows, 1)

		_, err = txs.ByID(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		// databases from older versions lack the column
		require.NoError(t, db.Gorm().Migrator().DropColumn(&relational.AccountTransaction{}, "TxnSeq"))
		assert.False(t, txs.HasTxnSeq())
	})
}

func TestWalletManifests(t *testing.T) {
	runWithDB(t, relational.WalletDBName, relational.WalletModels(), func(db *relational.DB) {
		ctx := context.Background()
		wallet := relational.NewWallet(db)

		require.NoError(t, wallet.SaveManifests(ctx, []*relational.Manifest{
			{PublicKey: "b", Sequence: 2, RawData: []byte{2}},
			{PublicKey: "a", Sequence: 1, RawData: []byte{1}},
		}))
		require.NoError(t, wallet.SaveManifests(ctx, []*relational.Manifest{
			{PublicKey: "c", Sequence: 3, RawData: []byte{3}},
			{PublicKey: "a", Sequence: 4, RawData: []byte{4}},
		}))

		manifests, err := wallet.Manifests(ctx)
		require.NoError(t, err)
		require.Len(t, manifests, 2)
		assert.Equal(t, "a", manifests[0].PublicKey)
		assert.Equal(t, uint32(4), manifests[0].Sequence)
		assert.Equal(t, "c", manifests[1].PublicKey)
	})
}
