package mock

import (
	context "context"

	mock "github.com/stretchr/testify/mock"

	ledger "github.com/vbc-network/vbcd/ledger"
	hash "github.com/vbc-network/vbcd/ledger/common/hash"
)

// LedgerIndex is a mock type for the LedgerIndex type
type LedgerIndex struct {
	mock.Mock
}

// HashBySeq provides a mock function with given fields: ctx, seq
func (_m *LedgerIndex) HashBySeq(ctx context.Context, seq uint32) (hash.Hash, error) {
	ret := _m.Called(ctx, seq)

	var r0 hash.Hash
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, uint32) (hash.Hash, error)); ok {
		return rf(ctx, seq)
	}
	if rf, ok := ret.Get(0).(func(context.Context, uint32) hash.Hash); ok {
		r0 = rf(ctx, seq)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(hash.Hash)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, uint32) error); ok {
		r1 = rf(ctx, seq)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Save provides a mock function with given fields: ctx, info
func (_m *LedgerIndex) Save(ctx context.Context, info *ledger.Info) error {
	ret := _m.Called(ctx, info)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *ledger.Info) error); ok {
		r0 = rf(ctx, info)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

type mockConstructorTestingTNewLedgerIndex interface {
	mock.TestingT
	Cleanup(func())
}

// NewLedgerIndex creates a new instance of LedgerIndex. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewLedgerIndex(t mockConstructorTestingTNewLedgerIndex) *LedgerIndex {
	mock := &LedgerIndex{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
