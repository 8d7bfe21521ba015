// Package token implements the token verifier (component B): OIDC
// discovery, JWKS caching with singleflight coalescing and
// forced-refresh-on-rotation, and JWT signature + claim validation.
//
// Grounded on datum-cloud-milo's internal/grpc/auth/jwt/subject_extractor.go
// (jwk.NewCache / cache.Get / jwt.Parse with a key set), adapted from a
// per-provider gRPC metadata lookup to this service's single-issuer HTTP
// bearer flow.
package token

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"bentoauthz/internal/apierr"
	"bentoauthz/internal/model"
)

// Verifier validates bearer tokens against a single OIDC issuer's rotated
// JWKS. The service does not federate across issuers — that is an
// explicit non-goal.
type Verifier struct {
	httpClient  *http.Client
	audience    []string
	leeway      time.Duration
	jwksTTL     time.Duration
	allowedAlgs map[string]bool
	configURL   string

	mu       sync.Mutex
	cache    *jwk.Cache
	issuer   string
	jwksURI  string
	resolved bool
}

// New builds a Verifier. Discovery is performed lazily on first Verify
// call (and memoized), so that a transient discovery-endpoint outage at
// startup does not prevent the process from starting. jwksTTL bounds how
// long a fetched key set is trusted before a background refresh is due.
func New(configURL string, audience []string, leeway, jwksTTL time.Duration, allowedAlgs []string) *Verifier {
	algs := make(map[string]bool, len(allowedAlgs))
	for _, a := range allowedAlgs {
		algs[strings.TrimSpace(a)] = true
	}
	return &Verifier{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		audience:    audience,
		leeway:      leeway,
		jwksTTL:     jwksTTL,
		allowedAlgs: algs,
		configURL:   configURL,
	}
}

// ensureDiscovered resolves the issuer's discovery document and registers
// its JWKS URI with the cache, at most once.
func (v *Verifier) ensureDiscovered(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.resolved {
		return nil
	}

	doc, err := fetchDiscovery(ctx, v.httpClient, v.configURL)
	if err != nil {
		return err
	}

	cache := jwk.NewCache(context.Background(), jwk.WithRefreshWindow(v.jwksTTL))
	if err := cache.Register(doc.JWKSURI); err != nil {
		return apierr.Wrap(apierr.IssuerUnreachable, "register JWKS URI", err)
	}

	v.cache = cache
	v.issuer = doc.Issuer
	v.jwksURI = doc.JWKSURI
	v.resolved = true
	return nil
}

// Verify decodes and validates a bearer token, returning the verified
// claim set on success. Missing kid is a failure unless exactly one key is
// present and its alg matches the allow-list.
//
// On a failed match against the cached key set, a kid-bearing token
// triggers one forced cache refresh and one retry, to ride out issuer key
// rotation without waiting for the next background refresh window.
func (v *Verifier) Verify(ctx context.Context, bearerToken string) (model.Claims, error) {
	if err := v.ensureDiscovered(ctx); err != nil {
		return nil, err
	}

	kid, alg, err := peekHeader([]byte(bearerToken))
	if err != nil {
		return nil, apierr.Wrap(apierr.Authentication, "malformed token header", err)
	}
	if !v.allowedAlgs[alg] {
		return nil, apierr.New(apierr.Authentication, "token alg not in allow-list")
	}

	keySet, err := v.cache.Get(ctx, v.jwksURI)
	if err != nil {
		return nil, apierr.Wrap(apierr.IssuerUnreachable, "fetch JWKS", err)
	}
	if kid == "" && keySet.Len() != 1 {
		return nil, apierr.New(apierr.Authentication, "token has no kid and issuer exposes more than one key")
	}

	claims, err := v.parseAndValidate([]byte(bearerToken), keySet)
	if err != nil {
		if kid != "" {
			// Key-rotation path: one forced refresh, then one retry.
			if _, refreshErr := v.cache.Refresh(ctx, v.jwksURI); refreshErr == nil {
				if refreshedSet, getErr := v.cache.Get(ctx, v.jwksURI); getErr == nil {
					if claims, err = v.parseAndValidate([]byte(bearerToken), refreshedSet); err == nil {
						return claims, nil
					}
				}
			}
		}
		return nil, apierr.Wrap(apierr.Authentication, "token verification failed", err)
	}
	return claims, nil
}

func (v *Verifier) parseAndValidate(raw []byte, keySet jwk.Set) (model.Claims, error) {
	opts := []jwt.ParseOption{
		jwt.WithKeySet(keySet),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.leeway),
		jwt.WithIssuer(v.issuer),
	}

	tok, err := jwt.Parse(raw, opts...)
	if err != nil {
		return nil, err
	}
	// jwt.WithAudience validators are ANDed together, so registering one per
	// configured audience would require the token to carry every one of
	// them. TOKEN_AUDIENCE is any-of: accept a token whose aud intersects
	// the allowed set at all.
	if len(v.audience) > 0 && !audienceIntersects(tok.Audience(), v.audience) {
		return nil, errors.New("token audience does not match any allowed audience")
	}

	claims := model.Claims{}
	privateClaims := tok.PrivateClaims()
	for k, val := range privateClaims {
		claims[k] = val
	}
	claims["iss"] = tok.Issuer()
	claims["sub"] = tok.Subject()
	if aud := tok.Audience(); len(aud) > 0 {
		claims["aud"] = aud
	}
	return claims, nil
}

// audienceIntersects reports whether any entry of tokenAud is also in
// allowed.
func audienceIntersects(tokenAud, allowed []string) bool {
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}
	for _, a := range tokenAud {
		if set[a] {
			return true
		}
	}
	return false
}

// peekHeader decodes the unverified JWS header to recover kid and alg
// without verifying the signature, per "decode unverified header for kid".
func peekHeader(raw []byte) (kid, alg string, err error) {
	msg, err := jws.Parse(raw)
	if err != nil {
		return "", "", err
	}
	sigs := msg.Signatures()
	if len(sigs) == 0 {
		return "", "", errors.New("token carries no signatures")
	}
	headers := sigs[0].ProtectedHeaders()
	return headers.KeyID(), headers.Algorithm().String(), nil
}
