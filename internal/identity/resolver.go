// Package identity implements the subject resolver (component C): a pure,
// I/O-free mapping from a verified claim set (or its absence) to a
// ResolvedSubject.
package identity

import "bentoauthz/internal/model"

// Resolve maps claims (nil for no bearer token presented) to a
// ResolvedSubject. azp is read for the client-id component the
// IssuerAndClient / IssuerAndClientAndSubject patterns match against;
// issuers that omit azp leave ClientID empty, which only matches grants
// that themselves leave client_id unconstrained.
func Resolve(claims model.Claims) model.ResolvedSubject {
	if claims == nil {
		return model.ResolvedSubject{Anonymous: true}
	}

	sub, _ := claims["sub"].(string)
	iss, _ := claims["iss"].(string)
	azp, _ := claims["azp"].(string)

	return model.ResolvedSubject{
		Anonymous: false,
		Issuer:    iss,
		Subject:   sub,
		ClientID:  azp,
		Claims:    claims,
	}
}
