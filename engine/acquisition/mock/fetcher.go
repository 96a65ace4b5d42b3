package mock

import (
	context "context"

	mock "github.com/stretchr/testify/mock"

	hash "github.com/vbc-network/vbcd/ledger/common/hash"
)

// Fetcher is a mock type for the Fetcher type
type Fetcher struct {
	mock.Mock
}

// FetchNodes provides a mock function with given fields: ctx, ledgerHash, seq, nodes
func (_m *Fetcher) FetchNodes(ctx context.Context, ledgerHash hash.Hash, seq uint32, nodes []hash.Hash) error {
	ret := _m.Called(ctx, ledgerHash, seq, nodes)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, hash.Hash, uint32, []hash.Hash) error); ok {
		r0 = rf(ctx, ledgerHash, seq, nodes)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

type mockConstructorTestingTNewFetcher interface {
	mock.TestingT
	Cleanup(func())
}

// NewFetcher creates a new instance of Fetcher. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewFetcher(t mockConstructorTestingTNewFetcher) *Fetcher {
	mock := &Fetcher{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
