//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"bentoauthz/internal/model"
)

// These tests exercise Postgres against a disposable testcontainers-go
// container. Run with `go test -tags integration ./internal/store/...`;
// they are excluded from the default build since they need a working
// Docker daemon.

func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("bentoauthz"),
		postgres.WithUsername("bentoauthz"),
		postgres.WithPassword("bentoauthz"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	pg, err := Open(uri, 5, 5, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = pg.Close() })
	return pg
}

func TestPostgresGrantRoundTrip(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()

	grant := model.Grant{
		SubjectPattern:  model.SubjectPattern{Kind: model.SubjectEveryone},
		ResourcePattern: model.ResourcePattern{Kind: model.ResourceProject, ProjectID: "p1"},
		Permission:      "query:data",
	}

	created, err := pg.CreateGrant(ctx, grant)
	if err != nil {
		t.Fatalf("create grant: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected a server-assigned id")
	}

	got, err := pg.GetGrant(ctx, created.ID)
	if err != nil {
		t.Fatalf("get grant: %v", err)
	}
	if got.Permission != grant.Permission || got.ResourcePattern != grant.ResourcePattern || got.SubjectPattern != grant.SubjectPattern {
		t.Errorf("round-trip mismatch: got %+v, want fields from %+v", got, grant)
	}

	if err := pg.DeleteGrant(ctx, created.ID); err != nil {
		t.Fatalf("delete grant: %v", err)
	}
	if _, err := pg.GetGrant(ctx, created.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPostgresGrantUniquenessIncludesExpiry(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()

	grant := model.Grant{
		SubjectPattern:  model.SubjectPattern{Kind: model.SubjectEveryone},
		ResourcePattern: model.ResourcePattern{Kind: model.ResourceProject, ProjectID: "p1"},
		Permission:      "query:data",
	}

	if _, err := pg.CreateGrant(ctx, grant); err != nil {
		t.Fatalf("create first grant: %v", err)
	}
	if _, err := pg.CreateGrant(ctx, grant); err != ErrConflict {
		t.Errorf("expected ErrConflict for an identical (subject,resource,permission,expiry) grant, got %v", err)
	}

	expiry := time.Now().Add(time.Hour)
	grant.Expiry = &expiry
	if _, err := pg.CreateGrant(ctx, grant); err != nil {
		t.Errorf("expected a grant with a different expiry to be accepted, got %v", err)
	}
}

func TestPostgresDeleteGroupFailsWhileReferenced(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()

	group, err := pg.CreateGroup(ctx, model.Group{
		Name:       "verified",
		Membership: model.Membership{Kind: model.MembershipExpr, Expr: &model.Expr{Kind: model.ExprLeaf, Claim: "email_verified", Op: model.OpEq, Value: true}},
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	_, err = pg.CreateGrant(ctx, model.Grant{
		SubjectPattern:  model.SubjectPattern{Kind: model.SubjectGroup, GroupID: group.ID},
		ResourcePattern: model.ResourcePattern{Kind: model.ResourceEverything},
		Permission:      "view:private_portal",
	})
	if err != nil {
		t.Fatalf("create referencing grant: %v", err)
	}

	if err := pg.DeleteGroup(ctx, group.ID); err != ErrConflict {
		t.Errorf("expected ErrConflict deleting a group still referenced by a grant, got %v", err)
	}
}

func TestPostgresSnapshotExcludesExpiredGrants(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	_, err := pg.CreateGrant(ctx, model.Grant{
		SubjectPattern:  model.SubjectPattern{Kind: model.SubjectEveryone},
		ResourcePattern: model.ResourcePattern{Kind: model.ResourceProject, ProjectID: "p1"},
		Permission:      "query:data",
		Expiry:          &past,
	})
	if err != nil {
		t.Fatalf("create expired grant: %v", err)
	}

	snap, err := pg.Snapshot(ctx, time.Now())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Grants) != 0 {
		t.Errorf("expected an expired grant to be excluded from the snapshot, got %d grants", len(snap.Grants))
	}
}

func TestPostgresSnapshotSkipsUndecodableGrantRatherThanFailing(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()

	good, err := pg.CreateGrant(ctx, model.Grant{
		SubjectPattern:  model.SubjectPattern{Kind: model.SubjectEveryone},
		ResourcePattern: model.ResourcePattern{Kind: model.ResourceProject, ProjectID: "p1"},
		Permission:      "query:data",
	})
	if err != nil {
		t.Fatalf("create good grant: %v", err)
	}

	// Insert a subject row with a pattern that won't decode into
	// model.SubjectPattern, then a grant referencing it directly — bypassing
	// CreateGrant's validation to simulate a row corrupted out from under
	// the application (a manual migration, a bug in an older version).
	var badSubjectID int64
	if err := pg.db.QueryRowContext(ctx, `
		INSERT INTO subjects (pattern, pattern_key) VALUES ('{"not": "a valid subject pattern"}', 'corrupt-key')
		RETURNING id`).Scan(&badSubjectID); err != nil {
		t.Fatalf("insert corrupt subject: %v", err)
	}
	resourceID, err := func() (int64, error) {
		tx, err := pg.db.BeginTx(ctx, nil)
		if err != nil {
			return 0, err
		}
		defer tx.Rollback()
		id, err := resolveResource(ctx, tx, model.ResourcePattern{Kind: model.ResourceProject, ProjectID: "p1"})
		if err != nil {
			return 0, err
		}
		return id, tx.Commit()
	}()
	if err != nil {
		t.Fatalf("resolve resource: %v", err)
	}
	if _, err := pg.db.ExecContext(ctx, `
		INSERT INTO grants (subject_id, resource_id, permission, created) VALUES ($1, $2, 'query:data', now())`,
		badSubjectID, resourceID); err != nil {
		t.Fatalf("insert corrupt grant: %v", err)
	}

	snap, err := pg.Snapshot(ctx, time.Now())
	if err != nil {
		t.Fatalf("expected Snapshot to skip the corrupt row rather than fail, got %v", err)
	}
	if len(snap.Grants) != 1 || snap.Grants[0].ID != good.ID {
		t.Errorf("expected only the well-formed grant to survive, got %+v", snap.Grants)
	}
}
