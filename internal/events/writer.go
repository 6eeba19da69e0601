package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	IdeaCreated         = "idea.created"
	IdeaDeleted         = "idea.deleted"
	IdeaResearchStarted = "idea.research.started"
	IdeaResearchDone    = "idea.research.completed"
	IdeaResearchFailed  = "idea.research.failed"
	IdeaResearchEdited  = "idea.research.edited"
	IdeaScoreStarted    = "idea.score.started"
	IdeaScored          = "idea.score.completed"
	IdeaScoreCached     = "idea.score.cached"
	IdeaScoreFailed     = "idea.score.failed"
	IdeaDecided         = "idea.approval.recorded"
	IdeaCompileStarted  = "idea.compile.started"
	IdeaCompiled        = "idea.compile.completed"
	IdeaCompileFailed   = "idea.compile.failed"
	VentureCreated      = "venture.created"
	APIKeyCreated       = "apikey.created"
	APIKeyRevoked       = "apikey.revoked"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an event inside the caller's transaction.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload EventPayload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339Nano)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if actorID == "" {
		actorID = "system"
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, evtType, entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
