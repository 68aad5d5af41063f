package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/enfty-lab/gateway/pkg/errorx"
	"github.com/enfty-lab/gateway/pkg/xcontext"
	"github.com/mitchellh/mapstructure"
)

func wrapHandler[Request, Response any](
	router *Router,
	method string,
	pattern string,
	handler HandlerFunc[Request, Response],
) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var ctx context.Context = requestContext{Context: req.Context(), root: router.rootCtx}
		ctx = xcontext.WithHTTPRequest(ctx, req)
		ctx = xcontext.WithHTTPWriter(ctx, w)

		var resp *Response
		err := func() error {
			// The root pattern of a ServeMux matches every unknown path.
			if pattern == "/" && req.URL.Path != "/" {
				return errorx.New(errorx.NotFound, "Not found %s", req.URL.Path)
			}

			if req.Method != method {
				return errorx.New(errorx.BadRequest, "Unsupported method %s", req.Method)
			}

			for _, middleware := range router.befores {
				newCtx, err := middleware(ctx)
				if err != nil {
					return err
				}

				if newCtx != nil {
					ctx = newCtx
				}
			}

			var request Request
			if err := bind(req, &request); err != nil {
				return errorx.New(errorx.BadRequest, "Invalid request: %v", err)
			}

			var err error
			resp, err = handler(ctx, &request)
			return err
		}()

		if err != nil {
			ctx = xcontext.WithError(ctx, err)
			writeError(ctx, w, err)
		} else {
			writeResponse(ctx, w, http.StatusOK, resp)
		}

		for _, closer := range router.closers {
			closer(ctx)
		}
	}
}

// bind fills req from the query string of GET requests, or the JSON body of POST requests.
// Multipart bodies are left to the handler.
func bind(r *http.Request, req any) error {
	switch r.Method {
	case http.MethodGet:
		query := map[string]any{}
		for key, values := range r.URL.Query() {
			if len(values) > 0 {
				query[key] = values[0]
			}
		}

		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           req,
			TagName:          "json",
			WeaklyTypedInput: true,
		})
		if err != nil {
			return err
		}

		return decoder.Decode(query)

	case http.MethodPost:
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			return nil
		}

		err := json.NewDecoder(r.Body).Decode(req)
		if errors.Is(err, io.EOF) {
			return nil
		}

		return err
	}

	return nil
}
