package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"venturelab/internal/domain"
)

const ideaColumns = `id,name,description,domain,target_customer,initial_thoughts,status,version,
research_doc_id,research_completed_at,research_model,research_tokens,
score_json,verdict,score_hash,scored_at,
approval_decision,approval_comment,approved_by,approved_at,
venture_id,compiled_at,compile_stats_json,last_error,created_at,updated_at`

func scanIdea(row scanner) (domain.Idea, error) {
	var (
		it                                          domain.Idea
		target, thoughts                            sql.NullString
		docID, researchAt, researchModel            sql.NullString
		researchTokens                              sql.NullInt64
		scoreJSON, verdict, hash, scoredAt          sql.NullString
		decision, comment, approvedBy, approvedAt   sql.NullString
		ventureID, compiledAt, statsJSON, lastError sql.NullString
	)
	err := row.Scan(&it.ID, &it.Name, &it.Description, &it.Domain, &target, &thoughts, &it.Status, &it.Version,
		&docID, &researchAt, &researchModel, &researchTokens,
		&scoreJSON, &verdict, &hash, &scoredAt,
		&decision, &comment, &approvedBy, &approvedAt,
		&ventureID, &compiledAt, &statsJSON, &lastError, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return it, ErrNotFound
	}
	if err != nil {
		return it, err
	}
	it.TargetCustomer = target.String
	it.InitialThoughts = thoughts.String
	it.ResearchDocID = stringPtr(docID)
	it.ResearchCompletedAt = stringPtr(researchAt)
	it.ResearchModel = stringPtr(researchModel)
	it.ResearchTokens = intPtr(researchTokens)
	if scoreJSON.Valid && scoreJSON.String != "" {
		var s domain.Score
		if err := json.Unmarshal([]byte(scoreJSON.String), &s); err != nil {
			return it, fmt.Errorf("decode score for idea %s: %w", it.ID, err)
		}
		it.Score = &s
	}
	if verdict.Valid {
		v := domain.Verdict(verdict.String)
		it.Verdict = &v
	}
	it.ScoreHash = stringPtr(hash)
	it.ScoredAt = stringPtr(scoredAt)
	if decision.Valid {
		d := domain.Decision(decision.String)
		it.ApprovalDecision = &d
	}
	it.ApprovalComment = stringPtr(comment)
	it.ApprovedBy = stringPtr(approvedBy)
	it.ApprovedAt = stringPtr(approvedAt)
	it.VentureID = stringPtr(ventureID)
	it.CompiledAt = stringPtr(compiledAt)
	if statsJSON.Valid && statsJSON.String != "" {
		var st domain.CompileStats
		if err := json.Unmarshal([]byte(statsJSON.String), &st); err != nil {
			return it, fmt.Errorf("decode compile stats for idea %s: %w", it.ID, err)
		}
		it.Stats = &st
	}
	it.LastError = stringPtr(lastError)
	return it, nil
}

func (r Repo) InsertIdea(ctx context.Context, tx *sql.Tx, it domain.Idea) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO ideas(id,name,description,domain,target_customer,initial_thoughts,status,version,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		it.ID, it.Name, it.Description, string(it.Domain), nullable(it.TargetCustomer), nullable(it.InitialThoughts),
		string(it.Status), it.Version, it.CreatedAt, it.UpdatedAt)
	return err
}

func (r Repo) GetIdea(ctx context.Context, id string) (domain.Idea, error) {
	return r.GetIdeaTx(ctx, nil, id)
}

func (r Repo) GetIdeaTx(ctx context.Context, tx *sql.Tx, id string) (domain.Idea, error) {
	return scanIdea(r.q(tx).QueryRowContext(ctx, `SELECT `+ideaColumns+` FROM ideas WHERE id=?`, id))
}

// UpdateIdea persists every mutable column of it, guarded by it.Version.
// On success the stored version is it.Version+1 and the returned idea carries it.
func (r Repo) UpdateIdea(ctx context.Context, tx *sql.Tx, it domain.Idea) (domain.Idea, error) {
	scoreJSON, err := marshalOptional(it.Score)
	if err != nil {
		return it, err
	}
	statsJSON, err := marshalOptional(it.Stats)
	if err != nil {
		return it, err
	}
	var verdict, decision any
	if it.Verdict != nil {
		verdict = string(*it.Verdict)
	}
	if it.ApprovalDecision != nil {
		decision = string(*it.ApprovalDecision)
	}
	res, err := r.q(tx).ExecContext(ctx, `UPDATE ideas SET status=?,version=version+1,
research_doc_id=?,research_completed_at=?,research_model=?,research_tokens=?,
score_json=?,verdict=?,score_hash=?,scored_at=?,
approval_decision=?,approval_comment=?,approved_by=?,approved_at=?,
venture_id=?,compiled_at=?,compile_stats_json=?,last_error=?,updated_at=?
WHERE id=? AND version=?`,
		string(it.Status),
		nullableStringPtr(it.ResearchDocID), nullableStringPtr(it.ResearchCompletedAt), nullableStringPtr(it.ResearchModel), nullableIntPtr(it.ResearchTokens),
		scoreJSON, verdict, nullableStringPtr(it.ScoreHash), nullableStringPtr(it.ScoredAt),
		decision, nullableStringPtr(it.ApprovalComment), nullableStringPtr(it.ApprovedBy), nullableStringPtr(it.ApprovedAt),
		nullableStringPtr(it.VentureID), nullableStringPtr(it.CompiledAt), statsJSON, nullableStringPtr(it.LastError), it.UpdatedAt,
		it.ID, it.Version)
	if err != nil {
		return it, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return it, err
	}
	if affected == 0 {
		if _, err := r.GetIdeaTx(ctx, tx, it.ID); err != nil {
			return it, err
		}
		return it, ErrVersionConflict
	}
	it.Version++
	return it, nil
}

func (r Repo) DeleteIdea(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM ideas WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type IdeaFilter struct {
	Status          string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

// ListIdeas returns ideas newest first. Limit 0 means no limit.
func (r Repo) ListIdeas(ctx context.Context, f IdeaFilter) ([]domain.Idea, error) {
	var (
		clauses []string
		args    []any
	)
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	query := `SELECT ` + ideaColumns + ` FROM ideas`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Idea
	for rows.Next() {
		it, err := scanIdea(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, it)
	}
	return res, rows.Err()
}

// CountIdeasByStatus returns the number of ideas per status.
func (r Repo) CountIdeasByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM ideas GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func marshalOptional[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
