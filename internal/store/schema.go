package store

// schema is the additive relational schema: new columns are always
// nullable so migration never breaks an existing deployment. Grant and
// group ids are monotonically assigned bigserial primary keys. Patterns
// are stored as structured jsonb documents; uniqueness for grants is
// enforced over the document plus permission and expiry together, per the
// "include expiry" reading of the open question on grant uniqueness — a
// grant can be re-issued once its predecessor expires. A missing expiry
// counts as one value (NULLS NOT DISTINCT, PostgreSQL 15 or later), so two
// otherwise identical grants without expiry conflict.
const schema = `
CREATE TABLE IF NOT EXISTS subjects (
	id         BIGSERIAL PRIMARY KEY,
	pattern    JSONB NOT NULL,
	pattern_key TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS resources (
	id         BIGSERIAL PRIMARY KEY,
	pattern    JSONB NOT NULL,
	pattern_key TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS groups (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	membership JSONB NOT NULL,
	created    TIMESTAMPTZ NOT NULL DEFAULT now(),
	expiry     TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS group_history (
	id         BIGSERIAL PRIMARY KEY,
	group_id   BIGINT NOT NULL,
	change     TEXT NOT NULL,
	snapshot   JSONB NOT NULL,
	changed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS grants (
	id            BIGSERIAL PRIMARY KEY,
	subject_id    BIGINT NOT NULL REFERENCES subjects(id),
	resource_id   BIGINT NOT NULL REFERENCES resources(id),
	permission    TEXT NOT NULL,
	extra         JSONB,
	created       TIMESTAMPTZ NOT NULL DEFAULT now(),
	expiry        TIMESTAMPTZ,
	negated       BOOLEAN NOT NULL DEFAULT false,
	UNIQUE NULLS NOT DISTINCT (subject_id, resource_id, permission, expiry)
);

CREATE TABLE IF NOT EXISTS grant_history (
	id         BIGSERIAL PRIMARY KEY,
	grant_id   BIGINT NOT NULL,
	change     TEXT NOT NULL,
	snapshot   JSONB NOT NULL,
	changed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_grants_permission ON grants (permission);
CREATE INDEX IF NOT EXISTS idx_grants_expiry ON grants (expiry);
`
