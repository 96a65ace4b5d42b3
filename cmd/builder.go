package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/vbc-network/vbcd/config"
	"github.com/vbc-network/vbcd/engine/acquisition"
	"github.com/vbc-network/vbcd/engine/ledgermaster"
	"github.com/vbc-network/vbcd/engine/netops"
	"github.com/vbc-network/vbcd/engine/recovery"
	"github.com/vbc-network/vbcd/engine/sweep"
	"github.com/vbc-network/vbcd/engine/validations"
	"github.com/vbc-network/vbcd/ledger/bootstrap"
	"github.com/vbc-network/vbcd/ledger/statetree"
	"github.com/vbc-network/vbcd/module"
	"github.com/vbc-network/vbcd/module/diskspace"
	"github.com/vbc-network/vbcd/module/entropy"
	"github.com/vbc-network/vbcd/module/events"
	"github.com/vbc-network/vbcd/module/jobqueue"
	"github.com/vbc-network/vbcd/module/latency"
	"github.com/vbc-network/vbcd/module/lifecycle"
	"github.com/vbc-network/vbcd/module/loadmgr"
	"github.com/vbc-network/vbcd/module/metrics"
	"github.com/vbc-network/vbcd/module/resolver"
	"github.com/vbc-network/vbcd/module/timekeeper"
	"github.com/vbc-network/vbcd/storage"
	"github.com/vbc-network/vbcd/storage/nodestore"
	"github.com/vbc-network/vbcd/storage/relational"
)

const (
	ioLatencyInterval  = 250 * time.Millisecond
	hashRouterHoldTime = 300 * time.Second
)

// NodeBuilder sets up a ledger node from its configuration.
type NodeBuilder struct {
	cfg *config.Config

	log        zerolog.Logger
	hasLogger  bool
	registerer prometheus.Registerer
	diskProbe  diskspace.Probe
	lookup     resolver.LookupFunc
	dumpOutput io.Writer
	bus        *events.Bus
}

type BuilderOption func(*NodeBuilder)

// WithLogger replaces the logger built from the configuration.
func WithLogger(log zerolog.Logger) BuilderOption {
	return func(b *NodeBuilder) {
		b.log = log
		b.hasLogger = true
	}
}

// WithRegisterer registers the node metrics with the given registerer instead of a private
// registry.
func WithRegisterer(registerer prometheus.Registerer) BuilderOption {
	return func(b *NodeBuilder) {
		b.registerer = registerer
	}
}

// WithDiskProbe replaces the free space probe of the database volume.
func WithDiskProbe(probe diskspace.Probe) BuilderOption {
	return func(b *NodeBuilder) {
		b.diskProbe = probe
	}
}

// WithLookup replaces the host name lookup of the resolver.
func WithLookup(lookup resolver.LookupFunc) BuilderOption {
	return func(b *NodeBuilder) {
		b.lookup = lookup
	}
}

// WithDumpOutput sets where a node dump is written, stdout by default.
func WithDumpOutput(w io.Writer) BuilderOption {
	return func(b *NodeBuilder) {
		b.dumpOutput = w
	}
}

// WithEventBus hands in a bus with observers already subscribed.
func WithEventBus(bus *events.Bus) BuilderOption {
	return func(b *NodeBuilder) {
		b.bus = bus
	}
}

func NewNodeBuilder(cfg *config.Config, options ...BuilderOption) *NodeBuilder {
	b := &NodeBuilder{
		cfg:        cfg,
		registerer: prometheus.NewRegistry(),
		diskProbe:  diskspace.FreeBytes,
		dumpOutput: os.Stdout,
	}
	for _, option := range options {
		option(b)
	}
	if b.bus == nil {
		b.bus = events.NewBus()
	}
	return b
}

// Logger returns the root logger of the node.
func (b *NodeBuilder) Logger() zerolog.Logger {
	return b.log
}

func (b *NodeBuilder) initLogger() error {
	// configure logger with standard level, node ID and UTC timestamp
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	log := zerolog.New(os.Stderr).With().Timestamp().Str("node_id", b.cfg.NodeID).Logger()

	lvl, err := zerolog.ParseLevel(strings.ToLower(b.cfg.LogLevel))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	b.log = log.Level(lvl)
	b.hasLogger = true
	return nil
}

// Setup opens the stores, establishes the start-up ledger and wires the node. The returned
// error is an ExitError carrying the exit code of the failure class, or
// bootstrap.ErrDumpComplete after a node dump.
func (b *NodeBuilder) Setup(ctx context.Context) (*LedgerNode, error) {
	if !b.hasLogger {
		err := b.initLogger()
		if err != nil {
			return nil, exitError(ExitConfig, err)
		}
	}
	b.log.Info().
		Str("node_size", b.cfg.Size.String()).
		Str("start_up", string(b.cfg.StartUp)).
		Bool("standalone", b.cfg.StandAlone).
		Msg("vbcd node starting up")

	params, err := bootstrap.ParamsFromConfig(b.cfg)
	if err != nil {
		return nil, exitError(ExitConfig, err)
	}
	params.DumpOutput = b.dumpOutput

	collector := metrics.NewNodeCollector(b.registerer)
	items := b.cfg.Items()

	s, err := b.openStores(ctx, collector, items)
	if err != nil {
		b.log.Error().Err(err).Msg("could not open stores")
		return nil, exitError(ExitSetup, err)
	}

	node, err := b.build(ctx, collector, items, params, s)
	if err != nil {
		closeErr := s.close()
		if closeErr != nil {
			b.log.Warn().Err(closeErr).Msg("could not close stores after failed setup")
		}
		return nil, err
	}
	return node, nil
}

func (b *NodeBuilder) build(ctx context.Context, collector *metrics.NodeCollector, items config.SizedItems, params bootstrap.Params, s *stores) (*LedgerNode, error) {
	ledgers := relational.NewLedgers(s.ledgerDB)
	txs := relational.NewTransactions(s.txDB)
	wallet := relational.NewWallet(s.walletDB)

	// older transaction databases lack the column, which only disables ordering by it
	if !txs.HasTxnSeq() {
		b.log.Warn().Msg("transaction database has no TxnSeq column, account transactions are unordered")
	}

	if b.cfg.NodeDBImportBackend != "" {
		imported, err := nodestore.ImportFrom(ctx, b.log, collector, b.cfg.NodeDBImportBackend, b.cfg.NodeDBImportPath, s.nodes)
		if err != nil {
			b.log.Error().Err(err).Msg("node database import failed")
			return nil, exitError(ExitSetup, err)
		}
		b.log.Info().Int("objects", imported).Str("source", b.cfg.NodeDBImportPath).Msg("node database imported")
	}

	family := statetree.NewFamily(b.log, s.nodes, collector, nil, nil)
	inbound := acquisition.New(b.log, collector, family, nil)
	master := ledgermaster.New(b.log, collector, ledgers, ledgermaster.WithStandAlone(b.cfg.StandAlone))
	txMaster := ledgermaster.NewTransactionMaster(collector, txs)
	entries := ledgermaster.NewCachedEntries(collector)
	router := ledgermaster.NewHashRouter(collector, hashRouterHoldTime)
	vals := validations.New(b.log, ledgers, validations.DefaultMaxAge)
	clock := timekeeper.New()

	ops := netops.New(b.log)
	if b.cfg.StandAlone {
		ops.SetStandAlone()
	}

	coordinator := recovery.New(b.log, collector, master, inbound)
	family.SetMissingNodeHandler(coordinator)

	pool, err := entropy.NewPool()
	if err != nil {
		return nil, exitError(ExitSetup, fmt.Errorf("could not seed entropy pool: %w", err))
	}

	manifests, err := wallet.Manifests(ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("could not load validator manifests")
	}

	b.bus.Subscribe(events.TopicSetup, "ledger range", func(ctx context.Context) error {
		return loadLedgerRange(ctx, ledgers, master)
	})
	err = b.bus.Publish(ctx, events.TopicSetup)
	if err != nil {
		b.log.Error().Err(err).Msg("setup observer failed")
		return nil, exitError(ExitSetup, err)
	}

	boot := bootstrap.New(b.log, collector, params, family, ledgers, inbound, clock, ops, master, master.OpenLedger(), router)
	lcl, err := boot.Bootstrap(ctx)
	if errors.Is(err, bootstrap.ErrDumpComplete) {
		return nil, err
	}
	if err != nil {
		b.log.Error().Err(err).Str("start_up", string(params.StartUp)).Msg("could not establish start-up ledger")
		return nil, exitError(ExitLoadFailure, err)
	}

	tuneCaches(items, family, master, entries)

	jobs := jobqueue.New(b.log, collector, items.Workers)
	sweeper := sweep.NewOrchestrator(b.log, collector, sweep.Targets{
		FullBelowCache:  family.FullBelowCache(),
		MasterTx:        txMaster,
		NodeStore:       s.nodes,
		LedgerMaster:    master,
		TempNodeCache:   inbound.TempNodeCache(),
		Validations:     vals,
		InboundLedgers:  inbound,
		AcceptedLedgers: module.SweepFunc(master.SweepAccepted),
		TreeNodeCache:   family.TreeNodeCache(),
		CachedEntries:   entries,
	})
	sampler := latency.NewSampler(b.log, collector, ioLatencyInterval)
	res := resolver.New(b.log, b.lookup)

	node := &LedgerNode{
		log:           b.log.With().Str("component", "node").Logger(),
		state:         lifecycle.NewStateMachine(),
		elbSupport:    b.cfg.ELBSupport,
		standAlone:    b.cfg.StandAlone,
		dbPath:        b.cfg.DatabasePath,
		sweepInterval: items.SweepInterval,
		metrics:       collector,
		ops:           ops,
		master:        master,
		loadMgr:       loadmgr.New(),
		deadlock:      loadmgr.NewDeadlockDetector(nil),
		recovery:      coordinator,
		jobs:          jobs,
		sweeper:       sweeper,
		entropy:       pool,
		diskProbe:     b.diskProbe,
		starters:      []func(){sampler.Start, res.Start},
		lcl:           lcl,
	}
	node.build()

	// stop order: producers of work first, then what they write to, then the stores
	node.shutdownSteps = []shutdownStep{
		{name: "io latency sampler", fn: func(context.Context) error {
			sampler.CancelAsync()
			sampler.Cancel()
			return nil
		}},
		{name: "resolver", fn: func(context.Context) error {
			res.StopAsync()
			res.Stop()
			return nil
		}},
		{name: "timers", fn: func(context.Context) error {
			node.stopTimers()
			return nil
		}},
		{name: "validations", fn: vals.Flush},
		{name: "manifests", fn: func(ctx context.Context) error {
			return wallet.SaveManifests(ctx, manifests)
		}},
		{name: "shutdown broadcast", fn: func(ctx context.Context) error {
			return b.bus.Publish(ctx, events.TopicShutdown)
		}},
		{name: "job queue", fn: func(context.Context) error {
			jobs.StopWait()
			return nil
		}},
		{name: "stores", fn: func(context.Context) error {
			return s.close()
		}},
	}

	err = node.state.Transition(lifecycle.StatePrepared)
	if err != nil {
		return nil, err
	}
	node.armTimers()
	node.listenSignals()

	b.log.Info().
		Uint32("ledger", lcl.Seq()).
		Str("hash", lcl.Hash().String()).
		Str("complete_ledgers", master.CompleteLedgers()).
		Msg("node setup complete")
	return node, nil
}

// loadLedgerRange marks the ledgers of the ledger index as present in the ledger master.
func loadLedgerRange(ctx context.Context, ledgers *relational.Ledgers, master *ledgermaster.LedgerMaster) error {
	low, high, err := ledgers.Range(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not read ledger range: %w", err)
	}
	master.SetLedgerRangePresent(low, high)
	return nil
}

// tuneCaches sizes the caches from the node size table.
func tuneCaches(items config.SizedItems, family *statetree.Family, master *ledgermaster.LedgerMaster, entries *ledgermaster.CachedEntries) {
	family.TreeNodeCache().SetTargetSize(items.TreeCacheSize)
	family.TreeNodeCache().SetTargetAge(items.TreeCacheAge)
	family.FullBelowCache().SetTargetSize(items.NodeCacheSize)
	family.FullBelowCache().SetTargetAge(items.NodeCacheAge)
	entries.Tune(items.SLECacheSize, items.SLECacheAge)
	master.Tune(items.LedgerSize, items.LedgerAge)
}
