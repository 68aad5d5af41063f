package ipfs

import (
	"context"
	"io"
)

type AddResult struct {
	Hash string
	Name string
	Size string
}

type IEndpoint interface {
	Add(ctx context.Context, name string, f io.Reader) (*AddResult, error)
	BlockGet(ctx context.Context, hash string) ([]byte, error)
}
