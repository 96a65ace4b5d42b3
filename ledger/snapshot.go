package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/ledger/statetree"
	"github.com/vbc-network/vbcd/storage"
)

// Snapshot is a ledger: its header plus the account state tree and the transaction tree.
// A snapshot is built mutable, closed, then set immutable; once immutable neither the header
// nor the trees change and any evolution produces a new snapshot.
type Snapshot struct {
	mu        sync.RWMutex
	info      Info
	state     *statetree.Tree
	txs       *statetree.Tree
	immutable bool
}

// NewGenesis creates the first ledger: sequence 1, zero parent, and a master account holding
// the entire supply. The returned snapshot is closed and immutable.
func NewGenesis(family *statetree.Family, masterAccount string, totalCoins uint64, totalCoinsVBC uint64) (*Snapshot, error) {
	s := NewEmpty(family, GenesisSeq, 0)
	s.info.TotalCoins = totalCoins
	s.info.TotalCoinsVBC = totalCoinsVBC

	err := s.AddEntry(NewAccountRoot(masterAccount, totalCoins))
	if err != nil {
		return nil, fmt.Errorf("could not create master account: %w", err)
	}
	s.SetClosed()
	s.SetImmutable()
	return s, nil
}

// NewEmpty creates a mutable ledger with the given sequence and close time and empty trees.
func NewEmpty(family *statetree.Family, seq uint32, closeTime NetTime) *Snapshot {
	state := statetree.NewTree(family, statetree.KindState)
	txs := statetree.NewTree(family, statetree.KindTransaction)
	state.SetLedgerSeq(seq)
	txs.SetLedgerSeq(seq)
	return &Snapshot{
		info: Info{
			Seq:                 seq,
			CloseTime:           closeTime,
			CloseTimeResolution: DefaultCloseTimeResolution,
		},
		state: state,
		txs:   txs,
	}
}

// NewSuccessor creates the mutable ledger following parent. It starts from the parent's state
// with an empty transaction tree.
func NewSuccessor(parent *Snapshot, closeTime NetTime) *Snapshot {
	parentInfo := parent.Info()
	seq := parentInfo.Seq + 1

	state := parent.StateTree().Snapshot(true)
	state.SetLedgerSeq(seq)
	txs := statetree.NewTree(parent.StateTree().Family(), statetree.KindTransaction)
	txs.SetLedgerSeq(seq)

	return &Snapshot{
		info: Info{
			Seq:                 seq,
			ParentHash:          parentInfo.Hash,
			ParentCloseTime:     parentInfo.CloseTime,
			CloseTime:           closeTime,
			CloseTimeResolution: parentInfo.CloseTimeResolution,
			TotalCoins:          parentInfo.TotalCoins,
			TotalCoinsVBC:       parentInfo.TotalCoinsVBC,
		},
		state: state,
		txs:   txs,
	}
}

// LoadSnapshot creates an immutable ledger over stored trees. Nodes are resolved lazily;
// nodes absent from the store are reported to the family's missing node handler.
func LoadSnapshot(family *statetree.Family, info Info) *Snapshot {
	info.Closed = true
	return &Snapshot{
		info:      info,
		state:     statetree.LoadTree(family, statetree.KindState, info.AccountHash, info.Seq),
		txs:       statetree.LoadTree(family, statetree.KindTransaction, info.TxHash, info.Seq),
		immutable: true,
	}
}

// Info returns a copy of the header. For a mutable snapshot the hashes reflect the last
// call to SetClosed or SetImmutable.
func (s *Snapshot) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

func (s *Snapshot) Seq() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.Seq
}

func (s *Snapshot) Hash() hash.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.Hash
}

// StateTree returns the account state tree.
func (s *Snapshot) StateTree() *statetree.Tree {
	return s.state
}

// TxTree returns the transaction tree.
func (s *Snapshot) TxTree() *statetree.Tree {
	return s.txs
}

// IsImmutable reports whether the snapshot was frozen.
func (s *Snapshot) IsImmutable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.immutable
}

// updateHash recomputes the tree roots and the header hash. Must be called with the lock held.
func (s *Snapshot) updateHash() {
	s.info.AccountHash = s.state.Hash()
	s.info.TxHash = s.txs.Hash()
	s.info.Hash = s.info.ComputeHash()
}

// SetClosed marks the ledger closed and computes its hash.
func (s *Snapshot) SetClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.immutable {
		s.updateHash()
	}
	s.info.Closed = true
}

// SetAccepted fixes the close time and marks the ledger accepted. An incorrect close time
// is flagged as estimated.
func (s *Snapshot) SetAccepted(closeTime NetTime, resolution uint8, correctCloseTime bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.immutable {
		return ErrImmutable
	}
	s.info.CloseTime = closeTime
	s.info.CloseTimeResolution = resolution
	s.info.CloseFlags = 0
	if !correctCloseTime {
		s.info.CloseFlags |= FlagNoConsensusTime
	}
	s.info.Closed = true
	s.info.Accepted = true
	s.freeze()
	return nil
}

// SetValidated marks the ledger as fully validated. It is local bookkeeping only.
func (s *Snapshot) SetValidated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info.Validated = true
}

// SetTotalCoins sets both supply counters of a mutable ledger.
func (s *Snapshot) SetTotalCoins(totalCoins uint64, totalCoinsVBC uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.immutable {
		return ErrImmutable
	}
	s.info.TotalCoins = totalCoins
	s.info.TotalCoinsVBC = totalCoinsVBC
	return nil
}

// SetParent links a mutable ledger to its parent header.
func (s *Snapshot) SetParent(parentHash hash.Hash, parentCloseTime NetTime) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.immutable {
		return ErrImmutable
	}
	s.info.ParentHash = parentHash
	s.info.ParentCloseTime = parentCloseTime
	return nil
}

// SetImmutable computes the final hash and freezes header and trees.
func (s *Snapshot) SetImmutable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freeze()
}

func (s *Snapshot) freeze() {
	if s.immutable {
		return
	}
	s.updateHash()
	s.state.SetImmutable()
	s.txs.SetImmutable()
	s.immutable = true
}

// AddEntry inserts or replaces a state entry.
// Expected errors:
//   - ErrImmutable if the snapshot is frozen
func (s *Snapshot) AddEntry(entry *Entry) error {
	if s.IsImmutable() {
		return ErrImmutable
	}
	data, err := entry.Encode()
	if err != nil {
		return fmt.Errorf("could not encode entry %v: %w", entry.Index, err)
	}
	return s.state.Put(statetree.NodeAccountState, entry.Index, data)
}

// Entry returns the state entry stored under index.
// Expected errors:
//   - storage.ErrNotFound if there is no such entry
//   - statetree.ErrMissingNode if the state tree is incomplete
func (s *Snapshot) Entry(index hash.Hash) (*Entry, error) {
	leaf, found, err := s.state.Get(index)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, storage.ErrNotFound
	}
	return DecodeEntry(index, leaf.Data())
}

// ForEachEntry calls fn for every state entry in index order.
func (s *Snapshot) ForEachEntry(fn func(entry *Entry) error) error {
	return s.state.ForEach(func(leaf *statetree.Node) error {
		entry, err := DecodeEntry(leaf.Key(), leaf.Data())
		if err != nil {
			return err
		}
		return fn(entry)
	})
}

// AddTransaction records an applied transaction with its metadata.
// Expected errors:
//   - ErrImmutable if the snapshot is frozen
func (s *Snapshot) AddTransaction(tx *Transaction, meta *Meta) error {
	if s.IsImmutable() {
		return ErrImmutable
	}
	data, err := EncodeTxWithMeta(tx, meta)
	if err != nil {
		return err
	}
	return s.txs.Put(statetree.NodeTxWithMeta, tx.ID, data)
}

// ForEachTransaction calls fn for every transaction with its metadata, in ID order.
func (s *Snapshot) ForEachTransaction(fn func(tx *Transaction, meta *Meta) error) error {
	return s.txs.ForEach(func(leaf *statetree.Node) error {
		if leaf.Type() != statetree.NodeTxWithMeta {
			return fmt.Errorf("transaction %v has no metadata: %w", leaf.Key(), ErrInvalidTransaction)
		}
		tx, meta, err := DecodeTxWithMeta(leaf.Data())
		if err != nil {
			return err
		}
		return fn(tx, meta)
	})
}

// Walk checks both trees and returns up to maxMissing hashes of nodes absent from the node
// store (0 means no limit).
func (s *Snapshot) Walk(maxMissing int) ([]hash.Hash, error) {
	missing, err := s.state.Walk(maxMissing)
	if err != nil {
		return nil, fmt.Errorf("could not walk state tree: %w", err)
	}
	if maxMissing > 0 && len(missing) >= maxMissing {
		return missing, nil
	}
	remaining := 0
	if maxMissing > 0 {
		remaining = maxMissing - len(missing)
	}
	txMissing, err := s.txs.Walk(remaining)
	if err != nil {
		return nil, fmt.Errorf("could not walk transaction tree: %w", err)
	}
	return append(missing, txMissing...), nil
}

// AssertSane checks that the snapshot is closed, and that its header hash and tree roots
// agree with the content.
func (s *Snapshot) AssertSane() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := s.info
	switch {
	case info.Hash.IsZero():
		return fmt.Errorf("ledger %d has no hash: %w", info.Seq, ErrNotSane)
	case info.AccountHash.IsZero():
		return fmt.Errorf("ledger %d has no account hash: %w", info.Seq, ErrNotSane)
	case !info.Closed:
		return fmt.Errorf("ledger %d is not closed: %w", info.Seq, ErrNotSane)
	case info.AccountHash != s.state.Hash():
		return fmt.Errorf("ledger %d account hash %v does not match state tree %v: %w", info.Seq, info.AccountHash, s.state.Hash(), ErrNotSane)
	case info.TxHash != s.txs.Hash():
		return fmt.Errorf("ledger %d transaction hash %v does not match transaction tree %v: %w", info.Seq, info.TxHash, s.txs.Hash(), ErrNotSane)
	case info.Hash != info.ComputeHash():
		return fmt.Errorf("ledger %d hash %v does not match header: %w", info.Seq, info.Hash, ErrNotSane)
	}
	return nil
}

// Flush writes all tree nodes not yet in the node store and the header itself.
func (s *Snapshot) Flush() (int, error) {
	info := s.Info()
	written, err := s.state.Flush(info.Seq)
	if err != nil {
		return 0, fmt.Errorf("could not flush state tree: %w", err)
	}
	txWritten, err := s.txs.Flush(info.Seq)
	if err != nil {
		return 0, fmt.Errorf("could not flush transaction tree: %w", err)
	}
	written += txWritten

	if !info.Hash.IsZero() {
		err = s.state.Family().NodeStore().Store(&storage.NodeObject{
			Type:      storage.ObjectLedger,
			LedgerSeq: info.Seq,
			Hash:      info.Hash,
			Data:      info.EncodeHeader(),
		})
		if err != nil {
			return 0, fmt.Errorf("could not store ledger header: %w", err)
		}
	}
	return written, nil
}

// FetchHeader loads a ledger header stored by Flush.
// Expected errors:
//   - storage.ErrNotFound if the header is not stored
func FetchHeader(store storage.NodeStore, h hash.Hash) (*Info, error) {
	obj, err := store.Fetch(h)
	if err != nil {
		return nil, err
	}
	if obj.Type != storage.ObjectLedger {
		return nil, fmt.Errorf("object %v is a %v, not a ledger: %w", h, obj.Type, storage.ErrNotFound)
	}
	info, err := DecodeHeader(h, obj.Data)
	if err != nil {
		if errors.Is(err, ErrHashMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("could not decode ledger header %v: %w", h, err)
	}
	return info, nil
}
