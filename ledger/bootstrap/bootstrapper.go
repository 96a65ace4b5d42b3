package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/vbc-network/vbcd/config"
	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/ledger/statetree"
	"github.com/vbc-network/vbcd/module"
)

// LedgerIndex is the relational index of ledger headers.
type LedgerIndex interface {
	LoadLatest(ctx context.Context) (*ledger.Info, error)
	LoadByHash(ctx context.Context, h hash.Hash) (*ledger.Info, error)
	LoadBySeq(ctx context.Context, seq uint32) (*ledger.Info, error)
}

// Acquirer builds a ledger from the nodes held in the local node store.
type Acquirer interface {
	CheckLocal(ctx context.Context, h hash.Hash) (*ledger.Snapshot, error)
}

// TimeKeeper stamps new ledgers.
type TimeKeeper interface {
	CloseTime() ledger.NetTime
}

// NetworkOPs is told about the ledger the node starts from.
type NetworkOPs interface {
	NeedNetworkLedger()
	SetLastCloseTime(t ledger.NetTime)
}

// LedgerMaster receives the ledger the node starts from.
type LedgerMaster interface {
	StoreLedger(s *ledger.Snapshot) bool
	SwitchLCL(s *ledger.Snapshot) error
	ForceValid(s *ledger.Snapshot)
	SetLedgerRangePresent(min, max uint32)
	HaveLedger(seq uint32) bool
	TakeReplay(pkg *ledger.ReplayPackage)
}

// OpenLedger holds the open view built on top of the start ledger.
type OpenLedger interface {
	Accept(view *ledger.OpenView)
	Modify(fn func(view *ledger.OpenView) error) error
}

// HashRouter caches the validity of transactions.
type HashRouter interface {
	SetValidity(id hash.Hash, validity ledger.Validity)
}

// Params select and parameterize the strategy.
type Params struct {
	StartUp     config.StartUp
	StartLedger string
	// ExpectedHash, when non-zero, must equal the hash of the loaded ledger.
	ExpectedHash hash.Hash
	StandAlone   bool

	GenesisAccount  string
	GenesisCoins    uint64
	GenesisCoinsVBC uint64

	// DumpOutput receives the node printed by a dump. Defaults to standard output.
	DumpOutput io.Writer
}

// ParamsFromConfig derives the parameters from the node configuration.
func ParamsFromConfig(cfg *config.Config) (Params, error) {
	params := Params{
		StartUp:         cfg.StartUp,
		StartLedger:     cfg.StartLedger,
		StandAlone:      cfg.StandAlone,
		GenesisAccount:  cfg.GenesisAccount,
		GenesisCoins:    cfg.GenesisCoins,
		GenesisCoinsVBC: cfg.GenesisCoinsVBC,
	}
	if cfg.ExpectedLedgerHash != "" {
		h, err := hash.FromHex(cfg.ExpectedLedgerHash)
		if err != nil {
			return Params{}, fmt.Errorf("invalid expected ledger hash: %w", err)
		}
		params.ExpectedHash = h
	}
	return params, nil
}

// Bootstrapper establishes the ledger the node starts from, using exactly one strategy.
type Bootstrapper struct {
	log      zerolog.Logger
	metrics  module.BootstrapMetrics
	params   Params
	family   *statetree.Family
	index    LedgerIndex
	acquirer Acquirer
	clock    TimeKeeper
	ops      NetworkOPs
	master   LedgerMaster
	open     OpenLedger
	router   HashRouter
}

func New(
	log zerolog.Logger,
	collector module.BootstrapMetrics,
	params Params,
	family *statetree.Family,
	index LedgerIndex,
	acquirer Acquirer,
	clock TimeKeeper,
	ops NetworkOPs,
	master LedgerMaster,
	open OpenLedger,
	router HashRouter,
) *Bootstrapper {
	if params.DumpOutput == nil {
		params.DumpOutput = os.Stdout
	}
	return &Bootstrapper{
		log:      log.With().Str("component", "bootstrap").Logger(),
		metrics:  collector,
		params:   params,
		family:   family,
		index:    index,
		acquirer: acquirer,
		clock:    clock,
		ops:      ops,
		master:   master,
		open:     open,
		router:   router,
	}
}

// Bootstrap runs the configured strategy and returns the ledger installed as last closed
// ledger.
// Expected errors:
//   - ErrDumpComplete after a dump
//   - ErrLedgerNotFound, ErrInvalidIdentifier or ErrInvalidFile if the start ledger cannot be loaded
//   - ErrEmptyLedger, ErrMissingNodes, ErrNotSane or ErrHashMismatch if it fails validation
func (b *Bootstrapper) Bootstrap(ctx context.Context) (*ledger.Snapshot, error) {
	start := time.Now()
	strategy := string(b.params.StartUp)

	var (
		lcl *ledger.Snapshot
		err error
	)
	switch b.params.StartUp {
	case config.StartUpDump:
		return nil, b.Dump(b.params.StartLedger)
	case config.StartUpLoad, config.StartUpLoadFile, config.StartUpReplay:
		b.log.Info().Str("start_ledger", b.params.StartLedger).Msg("loading specified ledger")
		lcl, err = b.LoadOld(ctx, b.params.StartLedger,
			b.params.StartUp == config.StartUpReplay,
			b.params.StartUp == config.StartUpLoadFile)
	case config.StartUpNetwork:
		if !b.params.StandAlone {
			b.ops.NeedNetworkLedger()
		}
		lcl, err = b.Genesis()
	default:
		b.log.Info().Msg("starting new ledger")
		lcl, err = b.Genesis()
	}
	if err != nil {
		b.metrics.BootstrapFailed(strategy)
		return nil, err
	}

	b.metrics.LedgerBootstrapped(strategy, lcl.Seq(), time.Since(start))
	b.log.Info().
		Str("strategy", strategy).
		Uint32("seq", lcl.Seq()).
		Str("hash", lcl.Hash().String()).
		Msg("ledger bootstrapped")
	return lcl, nil
}

// Genesis creates the genesis ledger and installs its closed successor, stamped with the
// current close time, as last closed ledger.
func (b *Bootstrapper) Genesis() (*ledger.Snapshot, error) {
	genesis, err := ledger.NewGenesis(b.family, b.params.GenesisAccount, b.params.GenesisCoins, b.params.GenesisCoinsVBC)
	if err != nil {
		return nil, fmt.Errorf("could not create genesis ledger: %w", err)
	}
	b.master.StoreLedger(genesis)

	closeTime := b.clock.CloseTime()
	next := ledger.NewSuccessor(genesis, closeTime)
	next.SetClosed()
	next.SetImmutable()

	b.ops.SetLastCloseTime(next.Info().CloseTime)
	b.open.Accept(ledger.NewOpenView(next, closeTime))
	err = b.master.SwitchLCL(next)
	if err != nil {
		return nil, fmt.Errorf("could not install ledger following genesis: %w", err)
	}
	return next, nil
}
