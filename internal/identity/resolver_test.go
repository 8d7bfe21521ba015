package identity

import (
	"testing"

	"bentoauthz/internal/model"
)

func TestResolveNilClaimsIsAnonymous(t *testing.T) {
	got := Resolve(nil)
	if !got.Anonymous {
		t.Errorf("expected nil claims to resolve to an anonymous subject")
	}
	if got.Issuer != "" || got.Subject != "" || got.ClientID != "" {
		t.Errorf("expected an anonymous subject to carry no issuer/subject/client-id, got %+v", got)
	}
}

func TestResolvePopulatesIssuerSubjectAndClientID(t *testing.T) {
	claims := model.Claims{
		"iss": "https://issuer.example",
		"sub": "user-1",
		"azp": "client-a",
	}

	got := Resolve(claims)
	if got.Anonymous {
		t.Errorf("expected a non-nil claim set to resolve as non-anonymous")
	}
	if got.Issuer != "https://issuer.example" || got.Subject != "user-1" || got.ClientID != "client-a" {
		t.Errorf("unexpected resolved subject: %+v", got)
	}
	if got.Claims["iss"] != claims["iss"] {
		t.Errorf("expected the raw claim set to be carried through for membership-expression matching")
	}
}

func TestResolveMissingAzpLeavesClientIDEmpty(t *testing.T) {
	claims := model.Claims{
		"iss": "https://issuer.example",
		"sub": "user-1",
	}

	got := Resolve(claims)
	if got.ClientID != "" {
		t.Errorf("expected an issuer that omits azp to leave ClientID empty, got %q", got.ClientID)
	}
}

func TestResolveNonStringClaimValuesDoNotPanic(t *testing.T) {
	claims := model.Claims{
		"iss": 123,
		"sub": nil,
		"azp": []string{"not-a-string"},
	}

	got := Resolve(claims)
	if got.Issuer != "" || got.Subject != "" || got.ClientID != "" {
		t.Errorf("expected non-string claim values to fail the type assertion to empty strings, got %+v", got)
	}
}
