package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/storage"
)

// maxReportedMissing bounds the missing nodes collected while validating a ledger.
const maxReportedMissing = 16

// LoadOld loads the ledger named by id, validates it and installs it as last closed and
// validated ledger. id is "latest" (or empty), a 64 character hex hash, a decimal sequence,
// or with isFile a path to a ledger JSON file. With replay the ledger's parent is installed
// instead and the ledger's transactions are handed to the ledger master for replay.
func (b *Bootstrapper) LoadOld(ctx context.Context, id string, replay bool, isFile bool) (*ledger.Snapshot, error) {
	expected := b.params.ExpectedHash

	var (
		loaded *ledger.Snapshot
		err    error
	)
	switch {
	case isFile:
		loaded, err = b.LoadFile(id)
	case id == "" || id == "latest":
		loaded, err = b.lastFullLedger(ctx)
	case len(id) == 2*hash.HashLen:
		var h hash.Hash
		h, err = hash.FromHex(id)
		if err != nil {
			return nil, fmt.Errorf("%q: %v: %w", id, err, ErrInvalidIdentifier)
		}
		if expected.IsZero() && !replay {
			expected = h
		}
		loaded, err = b.byHash(ctx, h)
	default:
		seq, parseErr := strconv.ParseUint(strings.TrimSpace(id), 10, 32)
		if parseErr != nil {
			return nil, fmt.Errorf("%q: %w", id, ErrInvalidIdentifier)
		}
		loaded, err = b.bySeq(ctx, uint32(seq))
	}
	if err != nil {
		b.log.Error().Err(err).Str("ledger_id", id).Msg("no ledger found")
		return nil, err
	}

	var replayLedger *ledger.Snapshot
	if replay {
		// the ledger to replay holds the transactions, its parent is the starting point
		replayLedger = loaded
		parentHash := replayLedger.Info().ParentHash
		b.log.Info().Str("parent", parentHash.String()).Msg("loading parent ledger")

		loaded, err = b.byHash(ctx, parentHash)
		if err != nil {
			b.log.Error().Err(err).Msg("replay ledger missing or damaged")
			return nil, fmt.Errorf("could not load parent of replay ledger %d: %w", replayLedger.Seq(), err)
		}
	}

	err = b.validate(loaded, expected)
	if err != nil {
		b.log.Error().Err(err).Uint32("seq", loaded.Seq()).Msg("ledger failed validation")
		return nil, err
	}

	err = b.install(loaded)
	if err != nil {
		return nil, err
	}

	if replay {
		err = b.replay(loaded, replayLedger)
		if err != nil {
			return nil, err
		}
	}
	return loaded, nil
}

// lastFullLedger loads the newest indexed ledger. Its stored hash must match its header.
func (b *Bootstrapper) lastFullLedger(ctx context.Context) (*ledger.Snapshot, error) {
	info, err := b.index.LoadLatest(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("no ledger in the ledger index: %w", ErrLedgerNotFound)
		}
		return nil, fmt.Errorf("could not load latest ledger: %w", err)
	}

	if computed := info.ComputeHash(); computed != info.Hash {
		return nil, fmt.Errorf("latest ledger %d: %w", info.Seq, ErrHashMismatch{Expected: info.Hash, Actual: computed})
	}

	s := ledger.LoadSnapshot(b.family, *info)
	if b.master.HaveLedger(info.Seq) {
		s.SetValidated()
	}
	b.log.Debug().Str("hash", info.Hash.String()).Msg("loaded latest ledger")
	return s, nil
}

// byHash loads the ledger from the ledger index, or else builds it from the node store.
func (b *Bootstrapper) byHash(ctx context.Context, h hash.Hash) (*ledger.Snapshot, error) {
	info, err := b.index.LoadByHash(ctx, h)
	if err == nil {
		return ledger.LoadSnapshot(b.family, *info), nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("could not load ledger %v: %w", h, err)
	}

	b.log.Info().Str("hash", h.String()).Msg("ledger not indexed, loading from node store")
	s, err := b.acquirer.CheckLocal(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("ledger %v: %v: %w", h, err, ErrLedgerNotFound)
	}
	return s, nil
}

func (b *Bootstrapper) bySeq(ctx context.Context, seq uint32) (*ledger.Snapshot, error) {
	info, err := b.index.LoadBySeq(ctx, seq)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("ledger %d: %w", seq, ErrLedgerNotFound)
		}
		return nil, fmt.Errorf("could not load ledger %d: %w", seq, err)
	}
	return ledger.LoadSnapshot(b.family, *info), nil
}

// validate is the gate every loaded ledger passes before it is installed: it must have
// account state, both trees must be complete in the node store, header and trees must agree
// and, if expected is set, the ledger must hash to it.
func (b *Bootstrapper) validate(s *ledger.Snapshot, expected hash.Hash) error {
	s.SetClosed()
	info := s.Info()
	b.log.Info().Str("hash", info.Hash.String()).Uint32("seq", info.Seq).Msg("validating ledger")

	if info.AccountHash.IsZero() {
		return fmt.Errorf("ledger %d: %w", info.Seq, ErrEmptyLedger)
	}

	missing, err := s.Walk(maxReportedMissing)
	if err != nil {
		return fmt.Errorf("could not walk ledger %d: %w", info.Seq, err)
	}
	if len(missing) > 0 {
		return ErrMissingNodes{Seq: info.Seq, Missing: missing}
	}

	err = s.AssertSane()
	if err != nil {
		return err
	}

	if !expected.IsZero() {
		if actual := info.ComputeHash(); actual != expected {
			return ErrHashMismatch{Expected: expected, Actual: actual}
		}
	}
	return nil
}

// install makes the ledger the last closed and validated ledger and opens a view on top of it.
func (b *Bootstrapper) install(s *ledger.Snapshot) error {
	info := s.Info()
	b.master.SetLedgerRangePresent(info.Seq, info.Seq)

	view := ledger.NewOpenView(s, b.clock.CloseTime())
	err := b.master.SwitchLCL(s)
	if err != nil {
		return fmt.Errorf("could not install ledger %d: %w", info.Seq, err)
	}
	b.master.ForceValid(s)
	b.ops.SetLastCloseTime(info.CloseTime)
	b.open.Accept(view)
	return nil
}

// replay inserts the transactions of the replayed ledger into the open view, in their original
// order, and hands the package to the ledger master.
func (b *Bootstrapper) replay(parent *ledger.Snapshot, replayLedger *ledger.Snapshot) error {
	pkg, err := ledger.NewReplayPackage(parent, replayLedger)
	if err != nil {
		return fmt.Errorf("could not build replay of ledger %d: %w", replayLedger.Seq(), err)
	}

	ordered := pkg.Ordered()
	err = b.open.Modify(func(view *ledger.OpenView) error {
		for _, item := range ordered {
			// signatures were checked when the ledger was first closed
			b.router.SetValidity(item.Tx.ID, ledger.ValiditySigGoodOnly)
			if err := view.RawTxInsert(item.Tx); err != nil {
				return fmt.Errorf("could not insert transaction %v: %w", item.Tx.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	b.master.TakeReplay(pkg)
	b.log.Info().
		Uint32("seq", replayLedger.Seq()).
		Int("transactions", len(ordered)).
		Msg("replay prepared")
	return nil
}
