package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// AccessTokenKey signs the access tokens of tests.
var AccessTokenKey = mustGenerateKey()

func mustGenerateKey() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}

	return key
}

// NewAccessToken returns a RS256 token issued for the test configs. extra overrides or adds claims.
func NewAccessToken(subject string, extra jwt.MapClaims) string {
	cfg := MockConfigs().Auth
	claims := jwt.MapClaims{
		"iss": cfg.Issuer,
		"aud": []string{cfg.Audience},
		"sub": subject,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}

	for k, v := range extra {
		claims[k] = v
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(AccessTokenKey)
	if err != nil {
		panic(err)
	}

	return token
}
