package bootstrap_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vbc-network/vbcd/config"
	"github.com/vbc-network/vbcd/engine/acquisition"
	"github.com/vbc-network/vbcd/engine/ledgermaster"
	"github.com/vbc-network/vbcd/engine/netops"
	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/ledger/bootstrap"
	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/ledger/statetree"
	"github.com/vbc-network/vbcd/module/metrics"
	"github.com/vbc-network/vbcd/module/timekeeper"
	"github.com/vbc-network/vbcd/storage"
	"github.com/vbc-network/vbcd/storage/inmemory"
	"github.com/vbc-network/vbcd/utils/unittest"
)

// headerIndex is an in-memory ledger index.
type headerIndex struct {
	byHash map[hash.Hash]ledger.Info
	latest *ledger.Info
}

func newHeaderIndex(snapshots ...*ledger.Snapshot) *headerIndex {
	idx := &headerIndex{byHash: make(map[hash.Hash]ledger.Info)}
	for _, s := range snapshots {
		idx.add(s.Info())
	}
	return idx
}

func (idx *headerIndex) add(info ledger.Info) {
	idx.byHash[info.Hash] = info
	if idx.latest == nil || info.Seq > idx.latest.Seq {
		latest := info
		idx.latest = &latest
	}
}

func (idx *headerIndex) LoadLatest(context.Context) (*ledger.Info, error) {
	if idx.latest == nil {
		return nil, storage.ErrNotFound
	}
	info := *idx.latest
	return &info, nil
}

func (idx *headerIndex) LoadByHash(_ context.Context, h hash.Hash) (*ledger.Info, error) {
	info, ok := idx.byHash[h]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &info, nil
}

func (idx *headerIndex) LoadBySeq(_ context.Context, seq uint32) (*ledger.Info, error) {
	for _, info := range idx.byHash {
		if info.Seq == seq {
			found := info
			return &found, nil
		}
	}
	return nil, storage.ErrNotFound
}

type BootstrapSuite struct {
	suite.Suite

	now    time.Time
	clock  *timekeeper.TimeKeeper
	store  *inmemory.NodeStore
	family *statetree.Family
	chain  []*ledger.Snapshot
	index  *headerIndex
	params bootstrap.Params
	logs   *bytes.Buffer

	master *ledgermaster.LedgerMaster
	router *ledgermaster.HashRouter
	ops    *netops.NetworkOPs
}

func TestBootstrap(t *testing.T) {
	suite.Run(t, new(BootstrapSuite))
}

func (s *BootstrapSuite) SetupTest() {
	s.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.clock = timekeeper.New(timekeeper.WithClock(func() time.Time { return s.now }))
	s.store = inmemory.NewNodeStore()
	s.family = unittest.FamilyFixture(s.store)
	s.chain = unittest.LedgerChainFixture(s.T(), s.family, 3, 0)
	s.index = newHeaderIndex(s.chain[1:]...)
	s.logs = &bytes.Buffer{}
	s.params = bootstrap.Params{
		StartUp:         config.StartUpFresh,
		GenesisAccount:  unittest.GenesisAccount,
		GenesisCoins:    unittest.GenesisCoins,
		GenesisCoinsVBC: 7,
	}
}

func (s *BootstrapSuite) bootstrapper() *bootstrap.Bootstrapper {
	log := unittest.LoggerWithWriter(s.logs)
	s.master = ledgermaster.New(log, metrics.NewNoopCollector(), nil, ledgermaster.WithClock(func() time.Time { return s.now }))
	s.router = ledgermaster.NewHashRouter(metrics.NewNoopCollector(), time.Minute)
	s.ops = netops.New(log)
	acquirer := acquisition.New(log, metrics.NewNoopCollector(), s.family, nil)
	return bootstrap.New(log, metrics.NewNoopCollector(), s.params, s.family, s.index, acquirer,
		s.clock, s.ops, s.master, s.master.OpenLedger(), s.router)
}

// removeStateRoot drops the state root of the ledger and switches to a fresh family so that
// no cached node hides the gap.
func (s *BootstrapSuite) removeStateRoot(l *ledger.Snapshot) {
	s.store.Remove(l.Info().AccountHash)
	s.family = unittest.FamilyFixture(s.store)
}

func (s *BootstrapSuite) requireNotInstalled() {
	s.Assert().Nil(s.master.ClosedLedger())
	s.Assert().Nil(s.master.ValidatedLedger())
	s.Assert().Nil(s.master.OpenLedger().Current())
}

func (s *BootstrapSuite) TestGenesis() {
	b := s.bootstrapper()

	lcl, err := b.Bootstrap(context.Background())
	s.Require().NoError(err)

	genesis, ok := s.master.LedgerBySeq(ledger.GenesisSeq)
	s.Require().True(ok)
	s.Assert().True(genesis.Info().ParentHash.IsZero())
	s.Assert().EqualValues(unittest.GenesisCoins, genesis.Info().TotalCoins)
	s.Assert().EqualValues(7, genesis.Info().TotalCoinsVBC)
	master, err := genesis.Entry(ledger.AccountRootIndex(unittest.GenesisAccount))
	s.Require().NoError(err)
	s.Assert().Equal(unittest.GenesisAccount, master.Fields["Account"])

	closeTime := s.clock.CloseTime()
	s.Assert().EqualValues(2, lcl.Seq())
	s.Assert().Equal(genesis.Hash(), lcl.Info().ParentHash)
	s.Assert().Equal(closeTime, lcl.Info().CloseTime)
	s.Assert().True(lcl.IsImmutable())
	s.Assert().Equal(lcl, s.master.ClosedLedger())
	s.Assert().Equal(closeTime, s.ops.LastCloseTime())

	open := s.master.OpenLedger().Current()
	s.Require().NotNil(open)
	s.Assert().Equal(lcl, open.Parent())
	s.Assert().Equal(closeTime, open.CloseTime())
}

func (s *BootstrapSuite) TestNetwork() {
	s.params.StartUp = config.StartUpNetwork
	b := s.bootstrapper()
	lcl, err := b.Bootstrap(context.Background())
	s.Require().NoError(err)
	s.Assert().EqualValues(2, lcl.Seq())
	s.Assert().True(s.ops.IsNeedNetworkLedger())

	s.params.StandAlone = true
	b = s.bootstrapper()
	_, err = b.Bootstrap(context.Background())
	s.Require().NoError(err)
	s.Assert().False(s.ops.IsNeedNetworkLedger())
}

func (s *BootstrapSuite) TestLoadLatest() {
	s.params.StartUp = config.StartUpLoad
	s.params.StartLedger = "latest"
	b := s.bootstrapper()

	lcl, err := b.Bootstrap(context.Background())
	s.Require().NoError(err)
	s.Assert().Equal(s.chain[3].Hash(), lcl.Hash())
	s.Assert().Equal(lcl, s.master.ClosedLedger())
	s.Assert().Equal(lcl, s.master.ValidatedLedger())
	s.Assert().True(s.master.HaveLedger(3))
	s.Assert().Equal(s.chain[3].Info().CloseTime, s.ops.LastCloseTime())
	s.Assert().Equal(lcl, s.master.OpenLedger().Current().Parent())
}

func (s *BootstrapSuite) TestLoadLatest_StoredHashMismatch() {
	tampered := s.chain[3].Info()
	tampered.TotalCoins++
	s.index.latest = &tampered
	s.params.StartUp = config.StartUpLoad
	b := s.bootstrapper()

	_, err := b.Bootstrap(context.Background())
	s.Assert().ErrorIs(err, bootstrap.ErrHashMismatch{})
	s.requireNotInstalled()
}

func (s *BootstrapSuite) TestLoadLatest_EmptyIndex() {
	s.index = newHeaderIndex()
	b := s.bootstrapper()
	_, err := b.LoadOld(context.Background(), "", false, false)
	s.Assert().ErrorIs(err, bootstrap.ErrLedgerNotFound)
}

func (s *BootstrapSuite) TestLoadBySeq() {
	b := s.bootstrapper()
	lcl, err := b.LoadOld(context.Background(), "2", false, false)
	s.Require().NoError(err)
	s.Assert().Equal(s.chain[2].Hash(), lcl.Hash())

	_, err = b.LoadOld(context.Background(), "42", false, false)
	s.Assert().ErrorIs(err, bootstrap.ErrLedgerNotFound)

	_, err = b.LoadOld(context.Background(), "not-a-ledger", false, false)
	s.Assert().ErrorIs(err, bootstrap.ErrInvalidIdentifier)
}

func (s *BootstrapSuite) TestLoadByHash_FallsBackToNodeStore() {
	// only headers in the node store, nothing indexed
	s.index = newHeaderIndex()
	b := s.bootstrapper()

	lcl, err := b.LoadOld(context.Background(), s.chain[2].Hash().String(), false, false)
	s.Require().NoError(err)
	s.Assert().Equal(s.chain[2].Hash(), lcl.Hash())
	s.Assert().True(s.master.HaveLedger(2))

	_, err = b.LoadOld(context.Background(), strings.Repeat("ab", hash.HashLen), false, false)
	s.Assert().ErrorIs(err, bootstrap.ErrLedgerNotFound)

	_, err = b.LoadOld(context.Background(), strings.Repeat("zz", hash.HashLen), false, false)
	s.Assert().ErrorIs(err, bootstrap.ErrInvalidIdentifier)
}

func (s *BootstrapSuite) TestLoad_ExpectedHashMismatchIsNotInstalled() {
	s.params.ExpectedHash = s.chain[2].Hash()
	b := s.bootstrapper()

	_, err := b.LoadOld(context.Background(), "3", false, false)
	var mismatch bootstrap.ErrHashMismatch
	s.Require().ErrorAs(err, &mismatch)
	s.Assert().Equal(s.chain[2].Hash(), mismatch.Expected)
	s.Assert().Equal(s.chain[3].Hash(), mismatch.Actual)
	s.requireNotInstalled()
}

func (s *BootstrapSuite) TestLoad_IndexedHashDiffersFromContent() {
	// the index claims the requested hash for a header that hashes differently
	requested := s.chain[2].Hash()
	info := s.chain[3].Info()
	s.index.byHash[requested] = info
	b := s.bootstrapper()

	_, err := b.LoadOld(context.Background(), requested.String(), false, false)
	s.Assert().ErrorIs(err, bootstrap.ErrHashMismatch{})
	s.requireNotInstalled()
}

func (s *BootstrapSuite) TestLoad_MissingNodes() {
	s.removeStateRoot(s.chain[3])
	b := s.bootstrapper()

	_, err := b.LoadOld(context.Background(), "3", false, false)
	var missing bootstrap.ErrMissingNodes
	s.Require().ErrorAs(err, &missing)
	s.Assert().EqualValues(3, missing.Seq)
	s.Assert().Contains(missing.Missing, s.chain[3].Info().AccountHash)
	s.requireNotInstalled()
}

func (s *BootstrapSuite) TestLoad_EmptyLedger() {
	info := s.chain[1].Info()
	info.AccountHash = hash.ZeroHash
	info.Seq = 9
	info.Hash = info.ComputeHash()
	s.index.add(info)
	b := s.bootstrapper()

	_, err := b.LoadOld(context.Background(), "9", false, false)
	s.Assert().ErrorIs(err, bootstrap.ErrEmptyLedger)
	s.requireNotInstalled()
}

func (s *BootstrapSuite) TestReplay_OrdersByOriginalIndex() {
	parent := s.chain[3]
	closeTime := parent.Info().CloseTime + 10
	replayed := ledger.NewSuccessor(parent, closeTime)
	txs := map[uint32]*ledger.Transaction{}
	for _, index := range []uint32{3, 1, 2} {
		tx := unittest.TransactionFixture(s.T(), 100+int(index))
		txs[index] = tx
		s.Require().NoError(replayed.AddTransaction(tx, &ledger.Meta{TransactionIndex: index, TransactionResult: "tesSUCCESS"}))
	}
	s.Require().NoError(replayed.SetAccepted(closeTime, ledger.DefaultCloseTimeResolution, true))
	_, err := replayed.Flush()
	s.Require().NoError(err)
	s.index.add(replayed.Info())

	s.params.StartUp = config.StartUpReplay
	s.params.StartLedger = replayed.Hash().String()
	b := s.bootstrapper()

	lcl, err := b.Bootstrap(context.Background())
	s.Require().NoError(err)
	s.Assert().Equal(parent.Hash(), lcl.Hash())
	s.Assert().Equal(lcl, s.master.ClosedLedger())

	pkg := s.master.ReleaseReplay()
	s.Require().NotNil(pkg)
	s.Assert().Equal(closeTime, pkg.CloseTime)
	s.Assert().Equal(parent.Hash(), pkg.Parent.Hash())

	ordered := pkg.Ordered()
	s.Require().Len(ordered, 3)
	for i, item := range ordered {
		index := uint32(i + 1)
		s.Assert().Equal(index, item.Index)
		s.Assert().Equal(txs[index].ID, item.Tx.ID)
		s.Assert().Equal(ledger.ValiditySigGoodOnly, s.router.Validity(item.Tx.ID))
	}

	open := s.master.OpenLedger().Current()
	s.Assert().Equal(3, open.TxCount())
	for _, tx := range txs {
		s.Assert().True(open.HasTransaction(tx.ID))
	}
}

func (s *BootstrapSuite) TestReplay_MissingParent() {
	s.index = newHeaderIndex(s.chain[3])
	s.store.Remove(s.chain[2].Hash())
	b := s.bootstrapper()

	_, err := b.LoadOld(context.Background(), "3", true, false)
	s.Assert().ErrorIs(err, bootstrap.ErrLedgerNotFound)
	s.requireNotInstalled()
}

func (s *BootstrapSuite) TestFileRoundTrip() {
	var exported bytes.Buffer
	s.Require().NoError(bootstrap.ExportLedger(&exported, s.chain[3]))

	// load into an empty node store
	s.store = inmemory.NewNodeStore()
	s.family = unittest.FamilyFixture(s.store)
	b := s.bootstrapper()

	loaded, err := b.ReadLedger(bytes.NewReader(exported.Bytes()))
	s.Require().NoError(err)
	s.Assert().Equal(s.chain[3].Hash(), loaded.Hash())
	s.Assert().Equal(s.chain[3].Info().AccountHash, loaded.Info().AccountHash)
	s.Assert().True(loaded.IsImmutable())

	// the loaded ledger is complete in the node store
	_, err = ledger.FetchHeader(s.store, loaded.Hash())
	s.Require().NoError(err)
	missing, err := ledger.LoadSnapshot(unittest.FamilyFixture(s.store), loaded.Info()).Walk(0)
	s.Require().NoError(err)
	s.Assert().Empty(missing)
}

func (s *BootstrapSuite) TestLoadFile() {
	unittest.RunWithTempDir(s.T(), func(dir string) {
		var exported bytes.Buffer
		s.Require().NoError(bootstrap.ExportLedger(&exported, s.chain[2]))
		path := filepath.Join(dir, "ledger.json")
		s.Require().NoError(os.WriteFile(path, exported.Bytes(), 0o600))

		s.params.StartUp = config.StartUpLoadFile
		s.params.StartLedger = path
		s.params.ExpectedHash = s.chain[2].Hash()
		b := s.bootstrapper()

		lcl, err := b.Bootstrap(context.Background())
		s.Require().NoError(err)
		s.Assert().Equal(s.chain[2].Hash(), lcl.Hash())
		s.Assert().Equal(lcl, s.master.ValidatedLedger())

		_, err = b.LoadOld(context.Background(), filepath.Join(dir, "absent.json"), false, true)
		s.Assert().ErrorIs(err, bootstrap.ErrInvalidFile)
	})
}

func (s *BootstrapSuite) TestReadLedger_SkipsMalformedEntry() {
	alice := ledger.NewAccountRoot("rAlice", 10)
	bob := ledger.NewAccountRoot("rBob", 20)
	aliceJSON, err := alice.MarshalJSON()
	s.Require().NoError(err)
	bobJSON, err := bob.MarshalJSON()
	s.Require().NoError(err)

	doc := fmt.Sprintf(`{"result": {"ledger": {
		"ledger_index": "5",
		"close_time": 1000,
		"close_time_estimated": true,
		"total_coins": 30,
		"total_coinsVBC": "4",
		"accountState": [%s, {"LedgerEntryType": "AccountRoot", "Account": "rNoIndex"}, %s]
	}}}`, aliceJSON, bobJSON)

	b := s.bootstrapper()
	loaded, err := b.ReadLedger(strings.NewReader(doc))
	s.Require().NoError(err)

	info := loaded.Info()
	s.Assert().EqualValues(5, info.Seq)
	s.Assert().EqualValues(1000, info.CloseTime)
	s.Assert().EqualValues(ledger.DefaultCloseTimeResolution, info.CloseTimeResolution)
	s.Assert().True(info.CloseTimeEstimated())
	s.Assert().EqualValues(30, info.TotalCoins)
	s.Assert().EqualValues(4, info.TotalCoinsVBC)
	s.Assert().True(info.Accepted)

	_, err = loaded.Entry(alice.Index)
	s.Assert().NoError(err)
	_, err = loaded.Entry(bob.Index)
	s.Assert().NoError(err)

	s.Assert().Equal(1, strings.Count(s.logs.String(), "skipping invalid entry in ledger"))
	s.Assert().Equal(1, countLevel(s.logs.String(), zerolog.WarnLevel))
}

func (s *BootstrapSuite) TestReadLedger_BareArrayAndBadShape() {
	entry := ledger.NewAccountRoot("rCarol", 1)
	entryJSON, err := entry.MarshalJSON()
	s.Require().NoError(err)

	b := s.bootstrapper()
	loaded, err := b.ReadLedger(strings.NewReader(fmt.Sprintf(`[%s]`, entryJSON)))
	s.Require().NoError(err)
	s.Assert().EqualValues(ledger.GenesisSeq, loaded.Seq())
	s.Assert().Equal(s.clock.CloseTime(), loaded.Info().CloseTime)

	_, err = b.ReadLedger(strings.NewReader(`{"ledger": {"accountState": {"index": "00"}}}`))
	s.Assert().ErrorIs(err, bootstrap.ErrInvalidFile)

	_, err = b.ReadLedger(strings.NewReader(`{not json`))
	s.Assert().ErrorIs(err, bootstrap.ErrInvalidFile)
}

func (s *BootstrapSuite) TestDump() {
	// a ledger with one transaction leaf in the node store
	parent := s.chain[3]
	next := ledger.NewSuccessor(parent, parent.Info().CloseTime+10)
	tx := unittest.TransactionFixture(s.T(), 55)
	s.Require().NoError(next.AddTransaction(tx, &ledger.Meta{TransactionIndex: 0, TransactionResult: "tesSUCCESS"}))
	s.Require().NoError(next.SetAccepted(parent.Info().CloseTime+10, ledger.DefaultCloseTimeResolution, true))
	_, err := next.Flush()
	s.Require().NoError(err)

	var leafHash hash.Hash
	s.Require().NoError(next.TxTree().ForEach(func(leaf *statetree.Node) error {
		leafHash = leaf.Hash()
		return nil
	}))

	var out bytes.Buffer
	s.params.StartUp = config.StartUpDump
	s.params.StartLedger = leafHash.String()
	s.params.DumpOutput = &out
	b := s.bootstrapper()

	_, err = b.Bootstrap(context.Background())
	s.Assert().ErrorIs(err, bootstrap.ErrDumpComplete)
	s.Assert().Equal(string(tx.Blob)+"\n", out.String())
	s.requireNotInstalled()

	// an absent node is only logged
	out.Reset()
	s.Assert().ErrorIs(b.Dump(strings.Repeat("11", hash.HashLen)), bootstrap.ErrDumpComplete)
	s.Assert().Empty(out.String())

	// so is a node that holds no transaction
	s.Assert().ErrorIs(b.Dump(parent.Info().AccountHash.String()), bootstrap.ErrDumpComplete)
	s.Assert().Empty(out.String())

	s.Assert().ErrorIs(b.Dump("xyz"), bootstrap.ErrInvalidIdentifier)
}

func TestParamsFromConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.StartUp = config.StartUpLoad
	cfg.StartLedger = "12"
	cfg.ExpectedLedgerHash = strings.Repeat("0a", hash.HashLen)

	params, err := bootstrap.ParamsFromConfig(&cfg)
	require.NoError(t, err)
	assert.Equal(t, config.StartUpLoad, params.StartUp)
	assert.Equal(t, "12", params.StartLedger)
	assert.Equal(t, strings.Repeat("0a", hash.HashLen), params.ExpectedHash.String())

	cfg.ExpectedLedgerHash = "zz"
	_, err = bootstrap.ParamsFromConfig(&cfg)
	assert.Error(t, err)
}

// countLevel counts the log lines of the given level.
func countLevel(logs string, level zerolog.Level) int {
	return strings.Count(logs, fmt.Sprintf(`"level":"%s"`, level.String()))
}
