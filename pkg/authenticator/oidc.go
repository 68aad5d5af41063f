package authenticator

import (
	"context"
	"crypto"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/enfty-lab/gateway/config"
)

type oidcVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the signing keys of the issuer. Tokens must be issued for the configured
// audience.
func NewOIDCVerifier(ctx context.Context, cfg config.AuthConfigs) (*oidcVerifier, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, err
	}

	return &oidcVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: cfg.Audience})}, nil
}

// NewStaticVerifier verifies tokens signed by one of keys, without any discovery.
func NewStaticVerifier(cfg config.AuthConfigs, keys ...crypto.PublicKey) *oidcVerifier {
	keySet := &oidc.StaticKeySet{PublicKeys: keys}
	return &oidcVerifier{verifier: oidc.NewVerifier(cfg.Issuer, keySet, &oidc.Config{ClientID: cfg.Audience})}
}

func (v *oidcVerifier) Verify(ctx context.Context, rawToken string) (*AccessToken, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	var claims struct {
		Scope       string   `json:"scope"`
		Permissions []string `json:"permissions"`
	}
	if err := token.Claims(&claims); err != nil {
		return nil, err
	}

	scopes := strings.Fields(claims.Scope)
	scopes = append(scopes, claims.Permissions...)

	return &AccessToken{Subject: token.Subject, Scopes: scopes}, nil
}
