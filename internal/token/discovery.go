package token

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bentoauthz/internal/apierr"
)

// discoveryDocument is the subset of an OpenID Connect discovery document
// this service needs. No retrieved repo exercises a generic,
// caller-supplied discovery-URL fetch (the pack's OIDC dependencies are
// either issuer-fixed or unexercised in retrieved source — see
// DESIGN.md), so this fetch is plain net/http + encoding/json rather than
// a copied library pattern.
type discoveryDocument struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

func fetchDiscovery(ctx context.Context, client *http.Client, configURL string) (discoveryDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, configURL, nil)
	if err != nil {
		return discoveryDocument{}, apierr.Wrap(apierr.IssuerUnreachable, "build discovery request", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return discoveryDocument{}, apierr.Wrap(apierr.IssuerUnreachable, "fetch discovery document", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return discoveryDocument{}, apierr.New(apierr.IssuerUnreachable, fmt.Sprintf("discovery document returned status %d", resp.StatusCode))
	}

	var doc discoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return discoveryDocument{}, apierr.Wrap(apierr.IssuerUnreachable, "decode discovery document", err)
	}
	if doc.JWKSURI == "" {
		return discoveryDocument{}, apierr.New(apierr.IssuerUnreachable, "discovery document missing jwks_uri")
	}
	return doc, nil
}
