package ipfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/enfty-lab/gateway/config"
	"github.com/enfty-lab/gateway/pkg/api"
)

// ErrBlockNotFound is returned when the node answers a block request with a non 200 status.
var ErrBlockNotFound = errors.New("block not found")

type Endpoint struct {
	projectID     string
	projectSecret string

	apiGenerator api.Generator
}

func New(cfg config.IPFSConfigs) *Endpoint {
	return &Endpoint{
		projectID:     cfg.ProjectID,
		projectSecret: cfg.ProjectSecret,
		apiGenerator: api.NewGenerator(
			&http.Client{Timeout: cfg.Timeout},
			strings.TrimSuffix(cfg.URL, "/"),
		),
	}
}

func (e *Endpoint) Add(ctx context.Context, name string, f io.Reader) (*AddResult, error) {
	resp, err := e.apiGenerator.New("/api/v0/add").
		Body(api.FormData{
			Files: map[string]api.FormDataFile{
				"file": {
					Name:    name,
					Content: f,
				},
			},
		}).
		POST(ctx, api.BasicAuth(e.projectID, e.projectSecret))
	if err != nil {
		return nil, err
	}

	if resp.Code != http.StatusOK {
		return nil, fmt.Errorf("ipfs add returned status %d: %s", resp.Code, resp.RawBody)
	}

	body, ok := resp.Body.(api.JSON)
	if !ok {
		return nil, errors.New("fail to push ipfs")
	}

	result := &AddResult{}
	if result.Hash, err = body.GetString("Hash"); err != nil {
		return nil, err
	}

	if result.Name, err = body.GetString("Name"); err != nil {
		return nil, err
	}

	if result.Size, err = body.GetString("Size"); err != nil {
		return nil, err
	}

	return result, nil
}

// BlockGet returns the raw block of hash.
func (e *Endpoint) BlockGet(ctx context.Context, hash string) ([]byte, error) {
	resp, err := e.apiGenerator.New("/api/v0/block/get").
		Query(api.Parameter{"arg": hash}).
		POST(ctx, api.BasicAuth(e.projectID, e.projectSecret))
	if err != nil {
		return nil, err
	}

	if resp.Code != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrBlockNotFound, hash, resp.Code)
	}

	return resp.RawBody, nil
}
