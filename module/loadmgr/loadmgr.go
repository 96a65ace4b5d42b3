package loadmgr

import (
	"go.uber.org/atomic"
)

const (
	// NormalFee is the load factor of an idle server.
	NormalFee uint32 = 256
	maxFee    uint32 = NormalFee * 1000000
	// raising steps the local fee up by a quarter, lowering steps it down by a quarter
	feeIncFraction = 4
	feeDecFraction = 4
)

// LoadManager tracks the local load factor of the server. Job latency reports raise the
// factor, idle periods lower it again. A factor above normal means the server is loaded.
type LoadManager struct {
	localFee *atomic.Uint32
}

func New() *LoadManager {
	return &LoadManager{localFee: atomic.NewUint32(NormalFee)}
}

// RaiseLocalFee increases the load factor. It returns false if the factor did not change.
func (m *LoadManager) RaiseLocalFee() bool {
	for {
		old := m.localFee.Load()
		fee := old + old/feeIncFraction
		if fee > maxFee {
			fee = maxFee
		}
		if fee == old {
			return false
		}
		if m.localFee.CompareAndSwap(old, fee) {
			return true
		}
	}
}

// LowerLocalFee decreases the load factor towards normal. It returns false if the factor did
// not change.
func (m *LoadManager) LowerLocalFee() bool {
	for {
		old := m.localFee.Load()
		fee := old - old/feeDecFraction
		if fee < NormalFee {
			fee = NormalFee
		}
		if fee == old {
			return false
		}
		if m.localFee.CompareAndSwap(old, fee) {
			return true
		}
	}
}

// LocalFee returns the current load factor.
func (m *LoadManager) LocalFee() uint32 {
	return m.localFee.Load()
}

// IsLoadedLocal reports whether the server is under local load.
func (m *LoadManager) IsLoadedLocal() bool {
	return m.localFee.Load() != NormalFee
}
