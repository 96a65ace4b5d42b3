package ledger

import (
	"fmt"
	"sort"
)

// ReplayPackage holds what is needed to re-run the close of a historical ledger: its parent,
// its original close metadata and its transactions keyed by their original index.
type ReplayPackage struct {
	Parent     *Snapshot
	CloseTime  NetTime
	CloseFlags uint8

	txs map[uint32]*Transaction
}

// NewReplayPackage collects the transactions of replay, which must be the child of parent.
func NewReplayPackage(parent *Snapshot, replay *Snapshot) (*ReplayPackage, error) {
	info := replay.Info()
	if parentHash := parent.Hash(); info.ParentHash != parentHash {
		return nil, fmt.Errorf("ledger %d has parent %v, not %v: %w", info.Seq, info.ParentHash, parentHash, ErrHashMismatch)
	}

	pkg := &ReplayPackage{
		Parent:     parent,
		CloseTime:  info.CloseTime,
		CloseFlags: info.CloseFlags,
		txs:        make(map[uint32]*Transaction),
	}
	err := replay.ForEachTransaction(func(tx *Transaction, meta *Meta) error {
		return pkg.Add(meta.TransactionIndex, tx)
	})
	if err != nil {
		return nil, fmt.Errorf("could not collect transactions of ledger %d: %w", info.Seq, err)
	}
	return pkg, nil
}

// Add records the transaction at its original index.
func (p *ReplayPackage) Add(index uint32, tx *Transaction) error {
	if p.txs == nil {
		p.txs = make(map[uint32]*Transaction)
	}
	if existing, ok := p.txs[index]; ok {
		return fmt.Errorf("transactions %v and %v share index %d: %w", existing.ID, tx.ID, index, ErrDuplicateTransaction)
	}
	p.txs[index] = tx
	return nil
}

// Len returns the number of transactions.
func (p *ReplayPackage) Len() int {
	return len(p.txs)
}

// IndexedTransaction is a transaction with its index in the original ledger.
type IndexedTransaction struct {
	Index uint32
	Tx    *Transaction
}

// Ordered returns the transactions by ascending original index.
func (p *ReplayPackage) Ordered() []IndexedTransaction {
	ordered := make([]IndexedTransaction, 0, len(p.txs))
	for index, tx := range p.txs {
		ordered = append(ordered, IndexedTransaction{Index: index, Tx: tx})
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Index < ordered[j].Index
	})
	return ordered
}
