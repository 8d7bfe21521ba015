// Package decisionlog implements the decision logger: one structured
// audit record per top-level evaluation call, appended to an insert-only
// table without ever blocking or failing the request that triggered it.
package decisionlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"bentoauthz/internal/logging"
	"bentoauthz/internal/model"
)

// Record is one structured decision-log entry. CallerSubject is the raw
// `sub` claim as resolved for the request; Log redacts it to
// CallerSubjectHash before it is persisted or emitted to the structured
// logger, so the raw value never needs to leave the request path.
type Record struct {
	Timestamp            time.Time               `json:"ts"`
	CallerIssuer         string                  `json:"caller_iss,omitempty"`
	CallerSubject        string                  `json:"-"`
	Anonymous            bool                    `json:"anonymous"`
	RequestedResources   []model.ResourcePattern `json:"requested_resources"`
	RequestedPermissions []model.Permission      `json:"requested_permissions"`
	Decision             [][]bool                `json:"decision"`
	MatchedGrantIDs      [][][]int64             `json:"matched_grant_ids"`
}

// Logger appends decision records to the store and never returns an error
// to its caller's request path — persistence failures are logged and
// swallowed rather than surfaced.
type Logger struct {
	db  *sql.DB
	log *logging.Logger
}

// New builds a Logger over an already-open database handle. db may be nil
// in configurations that disable decision persistence; Log becomes a
// structured-log-only no-op in that case.
func New(db *sql.DB, log *logging.Logger) *Logger {
	return &Logger{db: db, log: log}
}

// Log emits a one-line summary of rec (issuer, hashed subject, anonymity,
// resource and permission counts) to the logger and, if a database is
// configured, appends the full record to the decision_log table in the
// background.
// Both are fire-and-forget: Log never blocks the caller past submitting
// the work, and it never returns an error.
func (l *Logger) Log(ctx context.Context, rec Record) {
	actorHash := hashActor(rec.CallerIssuer, rec.CallerSubject)

	l.log.Info("decision: iss=%s sub_hash=%s anonymous=%v resources=%d permissions=%d",
		rec.CallerIssuer, actorHash, rec.Anonymous, len(rec.RequestedResources), len(rec.RequestedPermissions))

	if l.db == nil {
		return
	}

	go func() {
		payload, err := json.Marshal(struct {
			Record
			CallerSubjectHash string `json:"caller_sub_hash,omitempty"`
		}{Record: rec, CallerSubjectHash: actorHash})
		if err != nil {
			l.log.Warn("decision log: failed to marshal record: %v", err)
			return
		}
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err = l.db.ExecContext(bgCtx,
			`INSERT INTO decision_log (ts, caller_iss, caller_sub_hash, anonymous, record) VALUES ($1, $2, $3, $4, $5)`,
			rec.Timestamp, rec.CallerIssuer, actorHash, rec.Anonymous, payload)
		if err != nil {
			l.log.Warn("decision log: failed to persist record: %v", err)
		}
		_ = ctx // request context is not propagated into the background write on purpose
	}()
}

// Schema is the additive table decision records are appended to.
const Schema = `
CREATE TABLE IF NOT EXISTS decision_log (
	id              BIGSERIAL PRIMARY KEY,
	ts              TIMESTAMPTZ NOT NULL,
	caller_iss      TEXT,
	caller_sub_hash TEXT,
	anonymous       BOOLEAN NOT NULL,
	record          JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decision_log_ts ON decision_log (ts);
`
