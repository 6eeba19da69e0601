package repo

import (
	"context"
	"database/sql"
	"errors"

	"venturelab/internal/domain"
)

func (r Repo) InsertVenture(ctx context.Context, tx *sql.Tx, v domain.Venture) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO ventures(id,name,description,domain,status,one_liner,idea_id,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		v.ID, v.Name, nullable(v.Description), string(v.Domain), v.Status, nullable(v.OneLiner), nullable(v.IdeaID), v.CreatedAt)
	return err
}

const ventureColumns = `id,name,COALESCE(description,''),domain,status,COALESCE(one_liner,''),COALESCE(idea_id,''),created_at`

func scanVenture(row scanner) (domain.Venture, error) {
	var v domain.Venture
	err := row.Scan(&v.ID, &v.Name, &v.Description, &v.Domain, &v.Status, &v.OneLiner, &v.IdeaID, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return v, ErrNotFound
	}
	return v, err
}

func (r Repo) GetVenture(ctx context.Context, id string) (domain.Venture, error) {
	return r.GetVentureTx(ctx, nil, id)
}

func (r Repo) GetVentureTx(ctx context.Context, tx *sql.Tx, id string) (domain.Venture, error) {
	return scanVenture(r.q(tx).QueryRowContext(ctx, `SELECT `+ventureColumns+` FROM ventures WHERE id=?`, id))
}

func (r Repo) ListVentures(ctx context.Context) ([]domain.Venture, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+ventureColumns+` FROM ventures ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Venture
	for rows.Next() {
		v, err := scanVenture(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO projects(id,venture_id,name,description,status,created_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.VentureID, p.Name, nullable(p.Description), p.Status, p.CreatedAt)
	return err
}

func (r Repo) ListProjects(ctx context.Context, ventureID string) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,venture_id,name,COALESCE(description,''),status,created_at FROM projects WHERE venture_id=? ORDER BY created_at, id`, ventureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.VentureID, &p.Name, &p.Description, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) InsertPhase(ctx context.Context, tx *sql.Tx, ph domain.Phase) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO phases(id,project_id,name,description,ord,created_at) VALUES (?,?,?,?,?,?)`,
		ph.ID, ph.ProjectID, ph.Name, nullable(ph.Description), ph.Order, ph.CreatedAt)
	return err
}

// ListPhases returns a project's phases by ascending order.
func (r Repo) ListPhases(ctx context.Context, projectID string) ([]domain.Phase, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,name,COALESCE(description,''),ord,created_at FROM phases WHERE project_id=? ORDER BY ord`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Phase
	for rows.Next() {
		var ph domain.Phase
		if err := rows.Scan(&ph.ID, &ph.ProjectID, &ph.Name, &ph.Description, &ph.Order, &ph.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, ph)
	}
	return res, rows.Err()
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO tasks(id,venture_id,project_id,phase_id,title,description,priority,status,ord,created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.VentureID, t.ProjectID, t.PhaseID, t.Title, nullable(t.Description), t.Priority, t.Status, t.Order, t.CreatedAt)
	return err
}

// ListTasks returns a phase's tasks in insertion order.
func (r Repo) ListTasks(ctx context.Context, phaseID string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,venture_id,project_id,phase_id,title,COALESCE(description,''),priority,status,ord,created_at FROM tasks WHERE phase_id=? ORDER BY ord`, phaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.VentureID, &t.ProjectID, &t.PhaseID, &t.Title, &t.Description, &t.Priority, &t.Status, &t.Order, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
