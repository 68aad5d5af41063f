package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/enfty-lab/gateway/pkg/errorx"
	"github.com/enfty-lab/gateway/pkg/testutil"
	"github.com/enfty-lab/gateway/pkg/xcontext"
	"github.com/stretchr/testify/require"
)

type echoRequest struct {
	Name  string `json:"name"`
	Nonce int64  `json:"nonce"`
}

type echoResponse struct {
	Name   string `json:"name"`
	Nonce  int64  `json:"nonce"`
	UserID string `json:"user_id"`
}

func echo(ctx context.Context, req *echoRequest) (*echoResponse, error) {
	if req.Name == "fail" {
		return nil, errorx.New(errorx.InvalidArgument, "Name must not be fail")
	}

	if req.Name == "boom" {
		return nil, context.Canceled
	}

	return &echoResponse{Name: req.Name, Nonce: req.Nonce, UserID: xcontext.RequestUserID(ctx)}, nil
}

func newTestRouter(closed *[]string) *Router {
	r := New(testutil.MockContext())
	r.AddCloser(func(ctx context.Context) {
		*closed = append(*closed, xcontext.HTTPRequest(ctx).URL.Path)
	})

	GET(r, "/getEcho", echo)
	POST(r, "/postEcho", echo)

	authRouter := r.Branch()
	authRouter.Before(func(ctx context.Context) (context.Context, error) {
		user := xcontext.HTTPRequest(ctx).Header.Get("X-User")
		if user == "" {
			return nil, errorx.New(errorx.Unauthenticated, "Missing user")
		}

		return xcontext.WithRequestUserID(ctx, user), nil
	})
	POST(authRouter, "/authEcho", echo)

	return r
}

func TestRouter(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		header     map[string]string
		wantStatus int
		wantBody   map[string]any
	}{
		{
			name:       "get binds the query",
			method:     http.MethodGet,
			target:     "/getEcho?name=%20bol%20&nonce=3",
			wantStatus: http.StatusOK,
			wantBody:   map[string]any{"name": " bol ", "nonce": float64(3), "user_id": ""},
		},
		{
			name:       "post binds the body",
			method:     http.MethodPost,
			target:     "/postEcho",
			body:       `{"name":"bol","nonce":-1}`,
			wantStatus: http.StatusOK,
			wantBody:   map[string]any{"name": "bol", "nonce": float64(-1), "user_id": ""},
		},
		{
			name:       "invalid json",
			method:     http.MethodPost,
			target:     "/postEcho",
			body:       `{"name":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]any{"code": "Request Error"},
		},
		{
			name:       "domain error",
			method:     http.MethodPost,
			target:     "/postEcho",
			body:       `{"name":"fail"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]any{"code": "Invalid Argument", "description": "Name must not be fail"},
		},
		{
			name:       "unexpected error is hidden",
			method:     http.MethodPost,
			target:     "/postEcho",
			body:       `{"name":"boom"}`,
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]any{"code": "Internal Error", "description": "Request failed"},
		},
		{
			name:       "wrong method",
			method:     http.MethodPost,
			target:     "/getEcho",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "middleware rejects",
			method:     http.MethodPost,
			target:     "/authEcho",
			body:       `{"name":"bol"}`,
			wantStatus: http.StatusUnauthorized,
			wantBody:   map[string]any{"code": "invalid_header", "description": "Missing user"},
		},
		{
			name:       "middleware passes values",
			method:     http.MethodPost,
			target:     "/authEcho",
			body:       `{"name":"bol"}`,
			header:     map[string]string{"X-User": "alice"},
			wantStatus: http.StatusOK,
			wantBody:   map[string]any{"name": "bol", "nonce": float64(0), "user_id": "alice"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			closed := []string{}
			r := newTestRouter(&closed)

			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}

			w := httptest.NewRecorder()
			r.Handler().ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			require.Equal(t, []string{req.URL.Path}, closed)

			if tt.wantBody != nil {
				body := map[string]any{}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				for k, v := range tt.wantBody {
					require.Equal(t, v, body[k], k)
				}
			}
		})
	}
}

func TestRouter_branchDoesNotLeak(t *testing.T) {
	closed := []string{}
	r := newTestRouter(&closed)
	require.Len(t, r.befores, 0)
}
