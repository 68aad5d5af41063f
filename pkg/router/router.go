package router

import (
	"context"
	"net/http"

	"golang.org/x/exp/slices"
)

type HandlerFunc[Request, Response any] func(ctx context.Context, req *Request) (*Response, error)

// MiddlewareFunc runs before the handler. Returning an error stops the request.
type MiddlewareFunc func(ctx context.Context) (context.Context, error)

// CloserFunc runs after the response is written, even if the request failed.
type CloserFunc func(ctx context.Context)

type Router struct {
	rootCtx context.Context
	mux     *http.ServeMux

	befores []MiddlewareFunc
	closers []CloserFunc
}

// New creates a router whose handlers see every value of ctx, such as configs, logger and
// database.
func New(ctx context.Context) *Router {
	return &Router{rootCtx: ctx, mux: http.NewServeMux()}
}

// Branch returns a router sharing the routes of r. Middlewares added to the branch don't affect r.
func (r *Router) Branch() *Router {
	return &Router{
		rootCtx: r.rootCtx,
		mux:     r.mux,
		befores: slices.Clone(r.befores),
		closers: slices.Clone(r.closers),
	}
}

func (r *Router) Before(middleware MiddlewareFunc) {
	r.befores = append(r.befores, middleware)
}

func (r *Router) AddCloser(closer CloserFunc) {
	r.closers = append(r.closers, closer)
}

func (r *Router) Handler() http.Handler {
	return r.mux
}

func GET[Request, Response any](r *Router, pattern string, handler HandlerFunc[Request, Response]) {
	r.mux.Handle(pattern, wrapHandler(r, http.MethodGet, pattern, handler))
}

func POST[Request, Response any](r *Router, pattern string, handler HandlerFunc[Request, Response]) {
	r.mux.Handle(pattern, wrapHandler(r, http.MethodPost, pattern, handler))
}

// requestContext takes values from the root context first set by the request chain, then from the
// router root context. Cancellation follows the request.
type requestContext struct {
	context.Context
	root context.Context
}

func (c requestContext) Value(key any) any {
	if v := c.Context.Value(key); v != nil {
		return v
	}

	return c.root.Value(key)
}
