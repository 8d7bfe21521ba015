package server

import (
	"github.com/lestrrat-go/jwx/v2/jwt"

	"bentoauthz/internal/model"
)

// decodeUntrusted parses a bearer token's claims without verifying its
// signature, for DISABLE_TOKEN_VERIFICATION dev mode only. A token that
// fails to even parse is treated as no claims at all, i.e. anonymous,
// rather than erroring — dev mode has already opted out of the
// distinction between "untrusted" and "absent".
func decodeUntrusted(bearerToken string) model.Claims {
	tok, err := jwt.ParseInsecure([]byte(bearerToken))
	if err != nil {
		return nil
	}

	claims := model.Claims{}
	for k, v := range tok.PrivateClaims() {
		claims[k] = v
	}
	claims["iss"] = tok.Issuer()
	claims["sub"] = tok.Subject()
	return claims
}
