package cmd

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/vbc-network/vbcd/engine/ledgermaster"
	"github.com/vbc-network/vbcd/engine/netops"
	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/module"
	"github.com/vbc-network/vbcd/module/lifecycle"
	"github.com/vbc-network/vbcd/module/loadmgr"
	"github.com/vbc-network/vbcd/module/metrics"
	"github.com/vbc-network/vbcd/module/util"
	"github.com/vbc-network/vbcd/storage/inmemory"
	"github.com/vbc-network/vbcd/utils/unittest"
)

const mib = 1024 * 1024

// syncJobs runs submitted jobs on the calling goroutine and records their names.
type syncJobs struct {
	mu    sync.Mutex
	names []string
}

func (j *syncJobs) Submit(name string, job module.Job) bool {
	j.mu.Lock()
	j.names = append(j.names, name)
	j.mu.Unlock()
	job(context.Background())
	return true
}

func (j *syncJobs) submitted() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.names...)
}

type sweeperFunc func(ctx context.Context) error

func (f sweeperFunc) Sweep(ctx context.Context) error { return f(ctx) }

type countingEntropy struct {
	reseeds atomic.Int32
}

func (e *countingEntropy) Reseed() error {
	e.reseeds.Inc()
	return nil
}

// diskCollector records the reported free space.
type diskCollector struct {
	*metrics.NoopCollector
	free atomic.Uint64
}

func (c *diskCollector) FreeDiskSpace(bytes uint64) {
	c.free.Store(bytes)
}

type nodeFixture struct {
	node    *LedgerNode
	jobs    *syncJobs
	sweeps  *atomic.Int32
	entropy *countingEntropy
	metrics *diskCollector
	now     time.Time
}

func newNodeFixture(t *testing.T, free uint64) *nodeFixture {
	f := &nodeFixture{
		jobs:    &syncJobs{},
		sweeps:  atomic.NewInt32(0),
		entropy: &countingEntropy{},
		metrics: &diskCollector{NoopCollector: metrics.NewNoopCollector()},
		now:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	log := unittest.Logger()
	f.node = &LedgerNode{
		log:           log,
		state:         lifecycle.NewStateMachine(),
		dbPath:        "/var/lib/vbcd",
		sweepInterval: time.Hour,
		metrics:       f.metrics,
		ops:           netops.New(log),
		master: ledgermaster.New(log, metrics.NewNoopCollector(), nil,
			ledgermaster.WithClock(func() time.Time { return f.now })),
		loadMgr:  loadmgr.New(),
		deadlock: loadmgr.NewDeadlockDetector(nil),
		jobs:     f.jobs,
		sweeper: sweeperFunc(func(context.Context) error {
			f.sweeps.Inc()
			return nil
		}),
		entropy: f.entropy,
		diskProbe: func(path string) (uint64, error) {
			assert.Equal(t, "/var/lib/vbcd", path)
			return free, nil
		},
	}
	f.node.build()
	t.Cleanup(f.node.stopTimers)
	return f
}

func TestSweepTimer_StopsBelowDiskFloor(t *testing.T) {
	f := newNodeFixture(t, 511*mib)

	f.node.onSweepTimer()

	assert.True(t, util.CheckClosed(f.node.Stopping()), "node must be asked to stop")
	assert.Empty(t, f.jobs.submitted(), "no sweep is submitted")
	assert.Zero(t, f.sweeps.Load())
	assert.Nil(t, f.node.sweepTimer, "sweep timer is not re-armed")
	assert.EqualValues(t, 511*mib, f.metrics.free.Load())
}

func TestSweepTimer_SweepsAboveDiskFloor(t *testing.T) {
	f := newNodeFixture(t, 513*mib)

	f.node.onSweepTimer()

	assert.False(t, util.CheckClosed(f.node.Stopping()))
	assert.Equal(t, []string{module.JobSweep}, f.jobs.submitted())
	assert.EqualValues(t, 1, f.sweeps.Load())
	assert.NotNil(t, f.node.sweepTimer, "sweep timer is re-armed")
}

func TestSweepTimer_ProbeFailureDoesNotStop(t *testing.T) {
	f := newNodeFixture(t, 0)
	f.node.diskProbe = func(string) (uint64, error) {
		return 0, errors.New("no such volume")
	}

	f.node.onSweepTimer()

	assert.False(t, util.CheckClosed(f.node.Stopping()))
	assert.EqualValues(t, 1, f.sweeps.Load())
}

func TestEntropyTimer(t *testing.T) {
	f := newNodeFixture(t, 1024*mib)

	f.node.onEntropyTimer()

	assert.Equal(t, []string{module.JobEntropy}, f.jobs.submitted())
	assert.EqualValues(t, 1, f.entropy.reseeds.Load())
	assert.NotNil(t, f.node.entropyTimer)
}

func TestStopTimers_PreventsRearm(t *testing.T) {
	f := newNodeFixture(t, 1024*mib)
	f.node.armTimers()
	require.NotNil(t, f.node.sweepTimer)
	require.NotNil(t, f.node.entropyTimer)

	f.node.stopTimers()
	f.node.sweepTimer = nil
	f.node.entropyTimer = nil

	// a timer which fired concurrently with the stop does not re-arm
	f.node.onSweepTimer()
	f.node.onEntropyTimer()
	assert.Nil(t, f.node.sweepTimer)
	assert.Nil(t, f.node.entropyTimer)
}

func TestSignalStop_Idempotent(t *testing.T) {
	f := newNodeFixture(t, 1024*mib)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.node.SignalStop()
		}()
	}
	unittest.RequireReturnsBefore(t, wg.Wait, time.Second, "concurrent stops did not return")
	unittest.RequireClosed(t, f.node.Stopping(), "stop channel not closed")
}

func TestServerOkay(t *testing.T) {
	f := newNodeFixture(t, 1024*mib)
	n := f.node

	ok, reason := n.ServerOkay()
	assert.True(t, ok, "healthy without load balancer support")
	assert.Empty(t, reason)

	n.elbSupport = true
	n.ops.NeedNetworkLedger()
	assertNotOkay(t, n, ReasonNeedLedger)

	n.ops.ClearNeedNetworkLedger()
	assertNotOkay(t, n, ReasonNotSynchronized)

	n.ops.SetMode(netops.ModeSyncing)
	assertNotOkay(t, n, ledgermaster.ReasonNoPublished)

	genesis, err := ledger.NewGenesis(unittest.FamilyFixture(inmemory.NewNodeStore()), unittest.GenesisAccount, unittest.GenesisCoins, 0)
	require.NoError(t, err)
	n.master.SetPublished(genesis)
	assertNotOkay(t, n, ledgermaster.ReasonNoValidated)

	n.master.ForceValid(genesis)
	ok, reason = n.ServerOkay()
	assert.True(t, ok)
	assert.Empty(t, reason)

	n.loadMgr.RaiseLocalFee()
	assertNotOkay(t, n, ReasonTooMuchLoad)
	for n.loadMgr.LowerLocalFee() {
	}

	n.ops.SetAmendmentBlocked()
	assertNotOkay(t, n, ReasonAmendmentBlocked)

	n.SignalStop()
	assertNotOkay(t, n, ReasonShuttingDown)
}

func assertNotOkay(t *testing.T, n *LedgerNode, expected string) {
	t.Helper()
	ok, reason := n.ServerOkay()
	assert.False(t, ok)
	assert.Equal(t, expected, reason)
}

func TestShutdown_RunsEveryStepInOrder(t *testing.T) {
	f := newNodeFixture(t, 1024*mib)

	var order []string
	step := func(name string, err error) shutdownStep {
		return shutdownStep{name: name, fn: func(context.Context) error {
			order = append(order, name)
			return err
		}}
	}
	f.node.shutdownSteps = []shutdownStep{
		step("sampler", nil),
		step("validations", errors.New("disk full")),
		{name: "manifests", fn: func(context.Context) error {
			order = append(order, "manifests")
			panic("boom")
		}},
		step("stores", nil),
	}

	err := f.node.shutdown()
	require.Error(t, err)
	assert.Equal(t, []string{"sampler", "validations", "manifests", "stores"}, order)
	assert.ErrorContains(t, err, "validations: disk full")
	assert.ErrorContains(t, err, "manifests: panic: boom")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitSetup, ExitCode(exitError(ExitSetup, errors.New("no store"))))
	assert.Equal(t, ExitLoadFailure, ExitCode(exitError(ExitLoadFailure, errors.New("no ledger"))))
	assert.Equal(t, ExitConfig, ExitCode(errors.New("bad flag")))
}
