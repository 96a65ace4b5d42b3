package acquisition_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vbc-network/vbcd/engine/acquisition"
	"github.com/vbc-network/vbcd/engine/acquisition/mock"
	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/ledger/statetree"
	"github.com/vbc-network/vbcd/module/metrics"
	"github.com/vbc-network/vbcd/storage"
	"github.com/vbc-network/vbcd/storage/inmemory"
	"github.com/vbc-network/vbcd/utils/unittest"
)

type InboundSuite struct {
	suite.Suite

	store   *inmemory.NodeStore
	family  *statetree.Family
	chain   []*ledger.Snapshot
	fetcher *mock.Fetcher
	inbound *acquisition.InboundLedgers
}

func TestInboundLedgers(t *testing.T) {
	suite.Run(t, new(InboundSuite))
}

func (s *InboundSuite) SetupTest() {
	s.store = inmemory.NewNodeStore()
	s.family = unittest.FamilyFixture(s.store)
	s.chain = unittest.LedgerChainFixture(s.T(), s.family, 3, 2)
	s.fetcher = mock.NewFetcher(s.T())
	s.inbound = acquisition.New(unittest.Logger(), metrics.NewNoopCollector(), s.family, s.fetcher,
		acquisition.WithRetryInitial(0),
		acquisition.WithRetryAttempts(2),
	)
}

// removeStateRoot drops the root node of the ledger's state tree from the node store, using
// a fresh family so that no cached decoded node hides the gap.
func (s *InboundSuite) removeStateRoot(l *ledger.Snapshot) hash.Hash {
	root := l.Info().AccountHash
	s.store.Remove(root)
	s.family = unittest.FamilyFixture(s.store)
	s.inbound = acquisition.New(unittest.Logger(), metrics.NewNoopCollector(), s.family, s.fetcher,
		acquisition.WithRetryInitial(0),
		acquisition.WithRetryAttempts(2),
	)
	return root
}

func (s *InboundSuite) TestCheckLocal_Complete() {
	target := s.chain[2]
	snapshot, err := s.inbound.CheckLocal(context.Background(), target.Hash())
	s.Require().NoError(err)
	s.Assert().Equal(target.Hash(), snapshot.Hash())
	s.Assert().True(snapshot.IsImmutable())
	s.Require().NoError(snapshot.AssertSane())
}

func (s *InboundSuite) TestCheckLocal_UnknownLedger() {
	unknown := unittest.HashFixture()
	_, err := s.inbound.CheckLocal(context.Background(), unknown)
	s.Require().Error(err)

	var incomplete acquisition.ErrIncomplete
	s.Require().ErrorAs(err, &incomplete)
	s.Assert().Equal([]hash.Hash{unknown}, incomplete.Missing)
}

func (s *InboundSuite) TestCheckLocal_MissingNode() {
	target := s.chain[3]
	root := s.removeStateRoot(target)

	_, err := s.inbound.CheckLocal(context.Background(), target.Hash())
	var incomplete acquisition.ErrIncomplete
	s.Require().ErrorAs(err, &incomplete)
	s.Assert().Equal(target.Seq(), incomplete.Seq)
	s.Assert().Contains(incomplete.Missing, root)
}

func (s *InboundSuite) TestAcquire_CompleteLedger() {
	target := s.chain[1]
	snapshot, err := s.inbound.Acquire(context.Background(), target.Hash(), target.Seq(), acquisition.ReasonGeneric)
	s.Require().NoError(err)
	s.Assert().Equal(target.Hash(), snapshot.Hash())
	s.Assert().Zero(s.inbound.Pending())
}

func (s *InboundSuite) TestAcquire_RequestsMissingNodes() {
	target := s.chain[3]
	root := s.removeStateRoot(target)

	s.fetcher.On("FetchNodes", testifymock.Anything, target.Hash(), target.Seq(), []hash.Hash{root}).
		Return(nil).Twice()

	for i := 0; i < 2; i++ {
		_, err := s.inbound.Acquire(context.Background(), target.Hash(), target.Seq(), acquisition.ReasonGeneric)
		s.Require().True(acquisition.IsIncomplete(err))
		s.Assert().True(s.inbound.IsPending(target.Hash()))
	}

	// attempts are used up
	_, err := s.inbound.Acquire(context.Background(), target.Hash(), target.Seq(), acquisition.ReasonGeneric)
	s.Require().ErrorIs(err, acquisition.ErrAbandoned)
	s.Assert().False(s.inbound.IsPending(target.Hash()))
}

func (s *InboundSuite) TestAcquire_CompletesAfterNodeArrives() {
	target := s.chain[3]
	obj, err := s.store.Fetch(target.Info().AccountHash)
	s.Require().NoError(err)
	s.removeStateRoot(target)

	s.fetcher.On("FetchNodes", testifymock.Anything, target.Hash(), target.Seq(), testifymock.Anything).
		Return(nil).Once()

	_, err = s.inbound.Acquire(context.Background(), target.Hash(), target.Seq(), acquisition.ReasonGeneric)
	s.Require().True(acquisition.IsIncomplete(err))

	s.Require().NoError(s.inbound.GotNode(obj))
	s.Assert().True(s.inbound.TempNodeCache().Has(obj.Hash))

	snapshot, err := s.inbound.Acquire(context.Background(), target.Hash(), target.Seq(), acquisition.ReasonGeneric)
	s.Require().NoError(err)
	s.Assert().Equal(target.Hash(), snapshot.Hash())
	s.Assert().False(s.inbound.IsPending(target.Hash()))
}

func (s *InboundSuite) TestGotNode_RejectsCorruptNode() {
	obj := &storage.NodeObject{
		Type: storage.ObjectAccountNode,
		Hash: unittest.HashFixture(),
		Data: unittest.RandomBytes(40),
	}
	s.Require().Error(s.inbound.GotNode(obj))
	_, err := s.store.Fetch(obj.Hash)
	s.Assert().ErrorIs(err, storage.ErrNotFound)
}

func (s *InboundSuite) TestAcquire_ZeroHash() {
	_, err := s.inbound.Acquire(context.Background(), hash.ZeroHash, 5, acquisition.ReasonGeneric)
	s.Require().Error(err)
}

func TestAcquire_ConcurrentCallsCollapse(t *testing.T) {
	store := inmemory.NewNodeStore()
	family := unittest.FamilyFixture(store)
	chain := unittest.LedgerChainFixture(t, family, 1, 1)
	target := chain[1]
	store.Remove(target.Info().AccountHash)
	family = unittest.FamilyFixture(store)

	release := make(chan struct{})
	fetcher := mock.NewFetcher(t)
	fetcher.On("FetchNodes", testifymock.Anything, target.Hash(), target.Seq(), testifymock.Anything).
		Run(func(testifymock.Arguments) { <-release }).
		Return(nil).Once()

	inbound := acquisition.New(unittest.Logger(), metrics.NewNoopCollector(), family, fetcher)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := inbound.Acquire(context.Background(), target.Hash(), target.Seq(), acquisition.ReasonGeneric)
			assert.True(t, acquisition.IsIncomplete(err))
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	unittest.RequireReturnsBefore(t, wg.Wait, time.Second, "acquisitions did not return")
	require.Equal(t, 1, inbound.Pending())
}

func TestSweep_DropsStalledAcquisitions(t *testing.T) {
	store := inmemory.NewNodeStore()
	family := unittest.FamilyFixture(store)
	inbound := acquisition.New(unittest.Logger(), metrics.NewNoopCollector(), family, nil,
		acquisition.WithExpiryAge(time.Millisecond))

	unknown := unittest.HashFixture()
	_, err := inbound.Acquire(context.Background(), unknown, 9, acquisition.ReasonHistory)
	require.True(t, acquisition.IsIncomplete(err))
	require.Equal(t, 1, inbound.Pending())

	time.Sleep(5 * time.Millisecond)
	inbound.Sweep()
	assert.Zero(t, inbound.Pending())
}
