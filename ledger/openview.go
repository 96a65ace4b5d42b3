package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vbc-network/vbcd/ledger/common/hash"
)

// OpenView is the mutable successor of exactly one closed parent ledger. It collects the
// candidate transactions of the next ledger until consensus closes it.
type OpenView struct {
	parent    *Snapshot
	closeTime NetTime

	mu  sync.RWMutex
	txs map[hash.Hash]*Transaction
}

// NewOpenView creates an empty view on top of parent.
func NewOpenView(parent *Snapshot, closeTime NetTime) *OpenView {
	return &OpenView{
		parent:    parent,
		closeTime: closeTime,
		txs:       make(map[hash.Hash]*Transaction),
	}
}

// Parent returns the ledger the view builds on.
func (v *OpenView) Parent() *Snapshot {
	return v.parent
}

// Seq returns the sequence the view will close as.
func (v *OpenView) Seq() uint32 {
	return v.parent.Seq() + 1
}

// CloseTime returns the close time the view was stamped with at creation.
func (v *OpenView) CloseTime() NetTime {
	return v.closeTime
}

// RawTxInsert adds a transaction without applying any ledger rule.
// Expected errors:
//   - ErrDuplicateTransaction if the transaction is already in the view
func (v *OpenView) RawTxInsert(tx *Transaction) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.txs[tx.ID]; ok {
		return fmt.Errorf("transaction %v: %w", tx.ID, ErrDuplicateTransaction)
	}
	v.txs[tx.ID] = tx
	return nil
}

// HasTransaction returns true if the transaction is in the view.
func (v *OpenView) HasTransaction(id hash.Hash) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.txs[id]
	return ok
}

// TxCount returns the number of collected transactions.
func (v *OpenView) TxCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.txs)
}

// Transactions returns the collected transactions in ID order.
func (v *OpenView) Transactions() []*Transaction {
	v.mu.RLock()
	defer v.mu.RUnlock()
	txs := make([]*Transaction, 0, len(v.txs))
	for _, tx := range v.txs {
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].ID.String() < txs[j].ID.String()
	})
	return txs
}
