package domain

import (
	"context"
	"net/http"

	"github.com/enfty-lab/gateway/internal/model"
	"github.com/enfty-lab/gateway/pkg/api/ipfs"
	"github.com/enfty-lab/gateway/pkg/errorx"
	"github.com/enfty-lab/gateway/pkg/xcontext"
)

const maxUploadSize = 32 << 20

type IPFSDomain interface {
	UploadFile(context.Context, *model.UploadIPFSRequest) (*model.UploadIPFSResponse, error)
}

type ipfsDomain struct {
	ipfsEndpoint ipfs.IEndpoint
}

func NewIPFSDomain(ipfsEndpoint ipfs.IEndpoint) *ipfsDomain {
	return &ipfsDomain{ipfsEndpoint: ipfsEndpoint}
}

func (d *ipfsDomain) UploadFile(
	ctx context.Context, req *model.UploadIPFSRequest,
) (*model.UploadIPFSResponse, error) {
	httpReq := xcontext.HTTPRequest(ctx)
	httpReq.Body = http.MaxBytesReader(xcontext.HTTPWriter(ctx), httpReq.Body, maxUploadSize)

	if err := httpReq.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, errorx.New(errorx.BadRequest, "Request must be a multipart form")
	}

	file, header, err := httpReq.FormFile("file")
	if err != nil {
		return nil, errorx.New(errorx.BadRequest, "No file input in request")
	}
	defer file.Close()

	result, err := d.ipfsEndpoint.Add(ctx, header.Filename, file)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot add file to ipfs: %v", err)
		return nil, errorx.New(errorx.Unavailable, "Cannot upload the file to IPFS")
	}

	return &model.UploadIPFSResponse{
		Hash: result.Hash,
		Name: result.Name,
		Size: result.Size,
	}, nil
}
