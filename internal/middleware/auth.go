package middleware

import (
	"context"
	"strings"

	"github.com/enfty-lab/gateway/pkg/authenticator"
	"github.com/enfty-lab/gateway/pkg/errorx"
	"github.com/enfty-lab/gateway/pkg/router"
	"github.com/enfty-lab/gateway/pkg/xcontext"
)

const bearerPrefix = "bearer "

// Authenticate requires a bearer access token holding scope. The subject of the token becomes the
// request user id.
func Authenticate(verifier authenticator.AccessTokenVerifier, scope string) router.MiddlewareFunc {
	return func(ctx context.Context) (context.Context, error) {
		header := xcontext.HTTPRequest(ctx).Header.Get("Authorization")
		if header == "" {
			return nil, errorx.New(errorx.Unauthenticated, "Authorization header is expected")
		}

		if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
			return nil, errorx.New(errorx.Unauthenticated, "Authorization header must start with Bearer")
		}

		token, err := verifier.Verify(ctx, strings.TrimSpace(header[len(bearerPrefix):]))
		if err != nil {
			xcontext.Logger(ctx).Debugf("Invalid access token: %v", err)
			return nil, errorx.New(errorx.InvalidToken, "Token is invalid")
		}

		if scope != "" && !token.HasScope(scope) {
			return nil, errorx.New(errorx.PermissionDenied, "Permission denied")
		}

		return xcontext.WithRequestUserID(ctx, token.Subject), nil
	}
}
