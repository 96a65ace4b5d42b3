package ledgermaster

import (
	"errors"
	"sync"

	"github.com/vbc-network/vbcd/ledger"
)

// ErrNoOpenLedger is returned when the open ledger is modified before one was installed.
var ErrNoOpenLedger = errors.New("no open ledger")

// OpenLedger holds the single authoritative open view. Readers get the current view, writers
// modify it under the holder's lock.
type OpenLedger struct {
	mu      sync.RWMutex
	current *ledger.OpenView
}

func NewOpenLedger() *OpenLedger {
	return &OpenLedger{}
}

// Current returns the installed view, or nil.
func (o *OpenLedger) Current() *ledger.OpenView {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current
}

// Accept replaces the open view.
func (o *OpenLedger) Accept(view *ledger.OpenView) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current = view
}

// Modify runs fn on the open view while holding the write lock.
// Expected errors:
//   - ErrNoOpenLedger if no view was accepted yet
func (o *OpenLedger) Modify(fn func(view *ledger.OpenView) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return ErrNoOpenLedger
	}
	return fn(o.current)
}

// Empty is true when no view is installed or the view holds no transactions.
func (o *OpenLedger) Empty() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current == nil || o.current.TxCount() == 0
}
