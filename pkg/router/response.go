package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/enfty-lab/gateway/pkg/errorx"
	"github.com/enfty-lab/gateway/pkg/xcontext"
)

type errorResponse struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func newErrorResponse(err error) (int, errorResponse) {
	errx := errorx.Error{}
	if !errors.As(err, &errx) {
		errx = errorx.Unknown
	}

	return errx.Code.HTTPStatus(), errorResponse{
		Code:        errx.Code.Label(),
		Description: errx.Message,
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, resp := newErrorResponse(err)
	writeResponse(ctx, w, status, resp)
}

func writeResponse(ctx context.Context, w http.ResponseWriter, status int, resp any) {
	if err := WriteJson(w, status, resp); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot write the response: %v", err)
	}
}

func WriteJson(w http.ResponseWriter, status int, resp any) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(b); err != nil {
		return err
	}

	return nil
}
