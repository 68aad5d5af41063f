package authenticator

import (
	"context"

	"golang.org/x/exp/slices"
)

// AccessToken is the verified content of a bearer token.
type AccessToken struct {
	Subject string
	Scopes  []string
}

func (t *AccessToken) HasScope(scope string) bool {
	return slices.Contains(t.Scopes, scope)
}

type AccessTokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*AccessToken, error)
}
