package policy

import (
	"context"
	"testing"
	"time"

	"bentoauthz/internal/model"
	"bentoauthz/internal/registry"
	"bentoauthz/internal/store"
)

// memStore is a minimal in-memory store.Store satisfying the Snapshot
// contract, for testing the policy core in isolation against a plain
// struct rather than a real database.
type memStore struct {
	grants []model.Grant
	groups map[int64]model.Group
}

func (m *memStore) ListGrants(context.Context) ([]model.Grant, error) { return m.grants, nil }
func (m *memStore) GetGrant(context.Context, int64) (model.Grant, error) {
	return model.Grant{}, store.ErrNotFound
}
func (m *memStore) CreateGrant(context.Context, model.Grant) (model.Grant, error) {
	return model.Grant{}, nil
}
func (m *memStore) DeleteGrant(context.Context, int64) error { return nil }
func (m *memStore) ListGroups(context.Context) ([]model.Group, error) { return nil, nil }
func (m *memStore) GetGroup(context.Context, int64) (model.Group, error) {
	return model.Group{}, store.ErrNotFound
}
func (m *memStore) CreateGroup(context.Context, model.Group) (model.Group, error) {
	return model.Group{}, nil
}
func (m *memStore) UpdateGroup(context.Context, model.Group) (model.Group, error) {
	return model.Group{}, nil
}
func (m *memStore) DeleteGroup(context.Context, int64) error { return nil }
func (m *memStore) Close() error                             { return nil }

func (m *memStore) Snapshot(ctx context.Context, now time.Time) (store.Snapshot, error) {
	var active []model.Grant
	for _, g := range m.grants {
		if g.Active(now) {
			active = append(active, g)
		}
	}
	return store.Snapshot{Grants: active, Groups: m.groups}, nil
}

func fixedRegistry() *registry.Registry {
	return registry.New([]registry.Entry{
		{Permission: "query:data", MinSpecificity: 0},
		{Permission: "delete:project", MinSpecificity: 1},
	})
}

func testEngine(grants []model.Grant, groups map[int64]model.Group, now time.Time) *Engine {
	return testEngineWithSuperusers(grants, groups, now, nil)
}

func testEngineWithSuperusers(grants []model.Grant, groups map[int64]model.Group, now time.Time, isSuperuser func(issuer, subject string) bool) *Engine {
	st := &memStore{grants: grants, groups: groups}
	return New(st, fixedRegistry(), func() time.Time { return now }, isSuperuser)
}

func everyone() model.SubjectPattern { return model.SubjectPattern{Kind: model.SubjectEveryone} }

func project(id string) model.ResourcePattern {
	return model.ResourcePattern{Kind: model.ResourceProject, ProjectID: id}
}

func dataset(project, ds string) model.ResourcePattern {
	return model.ResourcePattern{Kind: model.ResourceProjectDataset, ProjectID: project, DatasetID: ds}
}

func TestAnonymousDenyOnEmptyStore(t *testing.T) {
	now := time.Now()
	e := testEngine(nil, nil, now)
	d, err := e.EvaluateOne(context.Background(), model.ResolvedSubject{Anonymous: true}, dataset("p1", "d1"), "query:data")
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Errorf("expected deny on empty store")
	}
}

func TestSuperuserStyleAllowViaDirectGrant(t *testing.T) {
	now := time.Now()
	grants := []model.Grant{
		{ID: 1, SubjectPattern: model.SubjectPattern{Kind: model.SubjectIssuerSubject, Issuer: "I", Subject: "U"}, ResourcePattern: project("p1"), Permission: "delete:project", Created: now.Add(-time.Hour)},
	}
	e := testEngine(grants, nil, now)
	d, err := e.EvaluateOne(context.Background(), model.ResolvedSubject{Issuer: "I", Subject: "U"}, project("p1"), "delete:project")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed {
		t.Errorf("expected allow")
	}
	if len(d.MatchedGrants) != 1 || d.MatchedGrants[0] != 1 {
		t.Errorf("expected matched grant [1], got %v", d.MatchedGrants)
	}
}

func TestCascadeNegationOverridesLessSpecific(t *testing.T) {
	now := time.Now()
	grants := []model.Grant{
		{ID: 1, SubjectPattern: everyone(), ResourcePattern: project("p1"), Permission: "query:data", Created: now.Add(-time.Hour)},
		{ID: 2, SubjectPattern: everyone(), ResourcePattern: dataset("p1", "d1"), Permission: "query:data", Created: now.Add(-time.Hour), Negated: true},
	}
	e := testEngine(grants, nil, now)

	d1, _ := e.EvaluateOne(context.Background(), model.ResolvedSubject{Anonymous: true}, dataset("p1", "d1"), "query:data")
	if d1.Allowed {
		t.Errorf("expected deny for the negated dataset")
	}

	d2, _ := e.EvaluateOne(context.Background(), model.ResolvedSubject{Anonymous: true}, dataset("p1", "d2"), "query:data")
	if !d2.Allowed {
		t.Errorf("expected allow for the sibling dataset, cascade should still apply")
	}
}

func TestTieBetweenPositiveAndNegativeDenies(t *testing.T) {
	now := time.Now()
	grants := []model.Grant{
		{ID: 1, SubjectPattern: everyone(), ResourcePattern: project("p1"), Permission: "query:data", Created: now.Add(-time.Hour)},
		{ID: 2, SubjectPattern: everyone(), ResourcePattern: project("p1"), Permission: "query:data", Created: now.Add(-time.Hour), Negated: true},
	}
	e := testEngine(grants, nil, now)
	d, _ := e.EvaluateOne(context.Background(), model.ResolvedSubject{Anonymous: true}, project("p1"), "query:data")
	if d.Allowed {
		t.Errorf("expected deny on a same-specificity positive/negative tie")
	}
}

func TestExpiredGrantNeverContributes(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	grants := []model.Grant{
		{ID: 1, SubjectPattern: everyone(), ResourcePattern: project("p1"), Permission: "query:data", Created: now.Add(-time.Hour), Expiry: &past},
	}
	e := testEngine(grants, nil, now)
	d, _ := e.EvaluateOne(context.Background(), model.ResolvedSubject{Anonymous: true}, project("p1"), "query:data")
	if d.Allowed {
		t.Errorf("expected expired grant to never contribute")
	}
}

func TestMatrixShapeMatchesEvaluateOne(t *testing.T) {
	now := time.Now()
	grants := []model.Grant{
		{ID: 1, SubjectPattern: everyone(), ResourcePattern: project("p1"), Permission: "query:data", Created: now.Add(-time.Hour)},
	}
	e := testEngine(grants, nil, now)

	resources := []model.ResourcePattern{dataset("p1", "d1"), dataset("p1", "d2"), dataset("p2", "d1")}
	permissions := []model.Permission{"query:data", "delete:project"}

	matrix, err := e.Evaluate(context.Background(), model.ResolvedSubject{Anonymous: true}, resources, permissions)
	if err != nil {
		t.Fatal(err)
	}
	if len(matrix) != 3 || len(matrix[0]) != 2 {
		t.Fatalf("expected a 3x2 matrix, got %dx%d", len(matrix), len(matrix[0]))
	}

	single, err := e.EvaluateOne(context.Background(), model.ResolvedSubject{Anonymous: true}, resources[0], permissions[0])
	if err != nil {
		t.Fatal(err)
	}
	if single.Allowed != matrix[0][0].Allowed {
		t.Errorf("evaluate_one disagrees with the 1x1 cell of evaluate")
	}
}

func TestPermissionsForReturnsAllowedSet(t *testing.T) {
	now := time.Now()
	grants := []model.Grant{
		{ID: 1, SubjectPattern: everyone(), ResourcePattern: project("p1"), Permission: "query:data", Created: now.Add(-time.Hour)},
	}
	e := testEngine(grants, nil, now)

	result, err := e.PermissionsFor(context.Background(), model.ResolvedSubject{Anonymous: true}, []model.ResourcePattern{dataset("p1", "d1")})
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != 1 || len(result[0]) != 1 || result[0][0] != "query:data" {
		t.Errorf("expected permissions_for to return [query:data], got %v", result)
	}
}

func TestSuperuserBypassesEmptyStoreOnEveryEntryPoint(t *testing.T) {
	now := time.Now()
	isSuperuser := func(issuer, subject string) bool { return issuer == "I" && subject == "root" }
	e := testEngineWithSuperusers(nil, nil, now, isSuperuser)
	superuser := model.ResolvedSubject{Issuer: "I", Subject: "root"}

	d, err := e.EvaluateOne(context.Background(), superuser, project("p1"), "delete:project")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed {
		t.Errorf("expected a superuser to be allowed on evaluate_one with no matching grant")
	}

	matrix, err := e.Evaluate(context.Background(), superuser, []model.ResourcePattern{project("p1")}, []model.Permission{"delete:project", "query:data"})
	if err != nil {
		t.Fatal(err)
	}
	if !matrix[0][0].Allowed || !matrix[0][1].Allowed {
		t.Errorf("expected a superuser to be allowed on every cell of evaluate, got %v", matrix)
	}

	perms, err := e.PermissionsFor(context.Background(), superuser, []model.ResourcePattern{project("p1")})
	if err != nil {
		t.Fatal(err)
	}
	if len(perms[0]) != len(fixedRegistry().All()) {
		t.Errorf("expected permissions_for to return every registered permission for a superuser, got %v", perms[0])
	}

	nonSuperuser := model.ResolvedSubject{Issuer: "I", Subject: "someone-else"}
	d2, err := e.EvaluateOne(context.Background(), nonSuperuser, project("p1"), "delete:project")
	if err != nil {
		t.Fatal(err)
	}
	if d2.Allowed {
		t.Errorf("expected a non-superuser to still be denied with no matching grant")
	}
}

func TestRegistryRejectsBelowMinimumSpecificity(t *testing.T) {
	now := time.Now()
	// delete:project requires specificity >= 1 (Project); Everything (0) is below it.
	grants := []model.Grant{
		{ID: 1, SubjectPattern: everyone(), ResourcePattern: model.ResourcePattern{Kind: model.ResourceEverything}, Permission: "delete:project", Created: now.Add(-time.Hour)},
	}
	e := testEngine(grants, nil, now)
	d, _ := e.EvaluateOne(context.Background(), model.ResolvedSubject{Anonymous: true}, project("p1"), "delete:project")
	if d.Allowed {
		t.Errorf("expected grant below the permission's minimum specificity to be treated as inactive")
	}
}
