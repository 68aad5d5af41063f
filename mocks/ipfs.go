package mocks

import (
	"context"
	"io"

	"github.com/enfty-lab/gateway/pkg/api/ipfs"
	"github.com/stretchr/testify/mock"
)

type IPFSEndpoint struct {
	mock.Mock
}

func (m *IPFSEndpoint) Add(arg1 context.Context, arg2 string, arg3 io.Reader) (*ipfs.AddResult, error) {
	args := m.Called(arg1, arg2, arg3)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ipfs.AddResult), args.Error(1)
}

func (m *IPFSEndpoint) BlockGet(arg1 context.Context, arg2 string) ([]byte, error) {
	args := m.Called(arg1, arg2)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
