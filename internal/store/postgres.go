package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"bentoauthz/internal/logging"
	"bentoauthz/internal/model"
)

// Postgres is the production Store, backed by database/sql + lib/pq.
// Resource and subject patterns are normalized into their own tables
// (deduplicated by a canonical JSON key) so that grant uniqueness —
// invariant 1 of the data model — can be enforced by a database unique
// index rather than an application-level scan.
type Postgres struct {
	db  *sql.DB
	log *logging.Logger
}

// Open connects to uri, applies the additive schema, and configures the
// connection pool. log may be nil, in which case a row a Snapshot skips
// for being undecodable is silently dropped rather than logged.
func Open(uri string, maxOpenConns, maxIdleConns int, log *logging.Logger) (*Postgres, error) {
	db, err := sql.Open("postgres", uri)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Postgres{db: db, log: log}, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// resolveResource upserts a resource pattern, returning its id. Equality
// for uniqueness is structural, via a canonical JSON encoding of the
// pattern.
func resolveResource(ctx context.Context, tx *sql.Tx, pattern model.ResourcePattern) (int64, error) {
	key, err := canonicalKey(pattern)
	if err != nil {
		return 0, err
	}
	raw, err := json.Marshal(pattern)
	if err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO resources (pattern, pattern_key) VALUES ($1, $2)
		 ON CONFLICT (pattern_key) DO UPDATE SET pattern_key = EXCLUDED.pattern_key
		 RETURNING id`, raw, key).Scan(&id)
	return id, err
}

func resolveSubject(ctx context.Context, tx *sql.Tx, pattern model.SubjectPattern) (int64, error) {
	key, err := canonicalKey(pattern)
	if err != nil {
		return 0, err
	}
	raw, err := json.Marshal(pattern)
	if err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO subjects (pattern, pattern_key) VALUES ($1, $2)
		 ON CONFLICT (pattern_key) DO UPDATE SET pattern_key = EXCLUDED.pattern_key
		 RETURNING id`, raw, key).Scan(&id)
	return id, err
}

func canonicalKey(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (p *Postgres) CreateGrant(ctx context.Context, g model.Grant) (model.Grant, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Grant{}, err
	}
	defer tx.Rollback()

	subjectID, err := resolveSubject(ctx, tx, g.SubjectPattern)
	if err != nil {
		return model.Grant{}, err
	}
	resourceID, err := resolveResource(ctx, tx, g.ResourcePattern)
	if err != nil {
		return model.Grant{}, err
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO grants (subject_id, resource_id, permission, extra, created, expiry, negated)
		VALUES ($1, $2, $3, $4, now(), $5, $6)
		RETURNING id, created`,
		subjectID, resourceID, string(g.Permission), nullJSON(g.Extra), nullTime(g.Expiry), g.Negated,
	).Scan(&id, &g.Created)
	if isUniqueViolation(err) {
		return model.Grant{}, ErrConflict
	}
	if err != nil {
		return model.Grant{}, err
	}
	g.ID = id

	snap, _ := json.Marshal(g)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO grant_history (grant_id, change, snapshot) VALUES ($1, 'created', $2)`,
		id, snap); err != nil {
		return model.Grant{}, err
	}

	return g, tx.Commit()
}

func (p *Postgres) GetGrant(ctx context.Context, id int64) (model.Grant, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT g.id, s.pattern, r.pattern, g.permission, g.extra, g.created, g.expiry, g.negated
		FROM grants g
		JOIN subjects s ON s.id = g.subject_id
		JOIN resources r ON r.id = g.resource_id
		WHERE g.id = $1`, id)
	g, err := scanGrant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Grant{}, ErrNotFound
	}
	return g, err
}

func (p *Postgres) ListGrants(ctx context.Context) ([]model.Grant, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT g.id, s.pattern, r.pattern, g.permission, g.extra, g.created, g.expiry, g.negated
		FROM grants g
		JOIN subjects s ON s.id = g.subject_id
		JOIN resources r ON r.id = g.resource_id
		ORDER BY g.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteGrant(ctx context.Context, id int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM grants WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO grant_history (grant_id, change, snapshot) VALUES ($1, 'deleted', '{}')`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Postgres) ListGroups(ctx context.Context) ([]model.Group, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, name, membership, created, expiry FROM groups ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (p *Postgres) GetGroup(ctx context.Context, id int64) (model.Group, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id, name, membership, created, expiry FROM groups WHERE id = $1`, id)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Group{}, ErrNotFound
	}
	return g, err
}

func (p *Postgres) CreateGroup(ctx context.Context, g model.Group) (model.Group, error) {
	membership, err := json.Marshal(g.Membership)
	if err != nil {
		return model.Group{}, err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Group{}, err
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO groups (name, membership, expiry) VALUES ($1, $2, $3)
		RETURNING id, created`, g.Name, membership, nullTime(g.Expiry)).Scan(&id, &g.Created)
	if isUniqueViolation(err) {
		return model.Group{}, ErrConflict
	}
	if err != nil {
		return model.Group{}, err
	}
	g.ID = id

	snap, _ := json.Marshal(g)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO group_history (group_id, change, snapshot) VALUES ($1, 'created', $2)`, id, snap); err != nil {
		return model.Group{}, err
	}

	return g, tx.Commit()
}

func (p *Postgres) UpdateGroup(ctx context.Context, g model.Group) (model.Group, error) {
	membership, err := json.Marshal(g.Membership)
	if err != nil {
		return model.Group{}, err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Group{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE groups SET name = $1, membership = $2, expiry = $3 WHERE id = $4`,
		g.Name, membership, nullTime(g.Expiry), g.ID)
	if isUniqueViolation(err) {
		return model.Group{}, ErrConflict
	}
	if err != nil {
		return model.Group{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return model.Group{}, err
	}
	if affected == 0 {
		return model.Group{}, ErrNotFound
	}

	snap, _ := json.Marshal(g)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO group_history (group_id, change, snapshot) VALUES ($1, 'updated', $2)`, g.ID, snap); err != nil {
		return model.Group{}, err
	}

	return g, tx.Commit()
}

func (p *Postgres) DeleteGroup(ctx context.Context, id int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var referencing int
	err = tx.QueryRowContext(ctx, `
		SELECT count(*) FROM grants g
		JOIN subjects s ON s.id = g.subject_id
		WHERE s.pattern->>'kind' = 'group' AND (s.pattern->>'group_id')::bigint = $1`, id).Scan(&referencing)
	if err != nil {
		return err
	}
	if referencing > 0 {
		return ErrConflict
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO group_history (group_id, change, snapshot) VALUES ($1, 'deleted', '{}')`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// Snapshot reads every grant and every group inside a single transaction
// so the policy engine evaluates against one consistent view. Expired
// grants are excluded in SQL; groups are returned regardless of expiry
// because a grant may reference an expired group, which subjectmatch must
// then treat as non-matching. A grant row whose stored subject or
// resource pattern fails to decode is logged and skipped rather than
// failing the whole evaluation — it behaves as if that grant did not
// exist.
func (p *Postgres) Snapshot(ctx context.Context, now time.Time) (Snapshot, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return Snapshot{}, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT g.id, s.pattern, r.pattern, g.permission, g.extra, g.created, g.expiry, g.negated
		FROM grants g
		JOIN subjects s ON s.id = g.subject_id
		JOIN resources r ON r.id = g.resource_id
		WHERE g.created <= $1 AND (g.expiry IS NULL OR $1 < g.expiry)`, now)
	if err != nil {
		return Snapshot{}, err
	}
	var grants []model.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			if p.log != nil {
				p.log.Error("skipping grant with undecodable stored pattern: %v", err)
			}
			continue
		}
		grants = append(grants, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}

	groupRows, err := tx.QueryContext(ctx, `SELECT id, name, membership, created, expiry FROM groups`)
	if err != nil {
		return Snapshot{}, err
	}
	groups := make(map[int64]model.Group)
	for groupRows.Next() {
		g, err := scanGroup(groupRows)
		if err != nil {
			groupRows.Close()
			return Snapshot{}, err
		}
		groups[g.ID] = g
	}
	groupRows.Close()
	if err := groupRows.Err(); err != nil {
		return Snapshot{}, err
	}

	return Snapshot{Grants: grants, Groups: groups}, tx.Commit()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanGrant(row scanner) (model.Grant, error) {
	var g model.Grant
	var subjectRaw, resourceRaw []byte
	var extra sql.NullString
	var expiry sql.NullTime
	var permission string

	if err := row.Scan(&g.ID, &subjectRaw, &resourceRaw, &permission, &extra, &g.Created, &expiry, &g.Negated); err != nil {
		return model.Grant{}, err
	}
	g.Permission = model.Permission(permission)
	if expiry.Valid {
		t := expiry.Time
		g.Expiry = &t
	}
	if extra.Valid {
		g.Extra = json.RawMessage(extra.String)
	}
	if err := json.Unmarshal(subjectRaw, &g.SubjectPattern); err != nil {
		return model.Grant{}, fmt.Errorf("decode stored subject pattern for grant %d: %w", g.ID, err)
	}
	if err := json.Unmarshal(resourceRaw, &g.ResourcePattern); err != nil {
		return model.Grant{}, fmt.Errorf("decode stored resource pattern for grant %d: %w", g.ID, err)
	}
	return g, nil
}

func scanGroup(row scanner) (model.Group, error) {
	var g model.Group
	var membershipRaw []byte
	var expiry sql.NullTime

	if err := row.Scan(&g.ID, &g.Name, &membershipRaw, &g.Created, &expiry); err != nil {
		return model.Group{}, err
	}
	if expiry.Valid {
		t := expiry.Time
		g.Expiry = &t
	}
	if err := json.Unmarshal(membershipRaw, &g.Membership); err != nil {
		return model.Group{}, fmt.Errorf("decode stored membership for group %d: %w", g.ID, err)
	}
	return g, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// isUniqueViolation reports whether err is a Postgres unique_violation
// (SQLSTATE 23505), i.e. a structural duplicate of invariant 1 or 2.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
