package repo

import (
	"context"
	"database/sql"
	"errors"

	"venturelab/internal/domain"
)

func (r Repo) InsertDocument(ctx context.Context, tx *sql.Tx, d domain.Document) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO documents(id,title,body,type,domain,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		d.ID, d.Title, d.Body, d.Type, nullable(d.Domain), d.CreatedAt, d.UpdatedAt)
	return err
}

func (r Repo) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	return r.GetDocumentTx(ctx, nil, id)
}

func (r Repo) GetDocumentTx(ctx context.Context, tx *sql.Tx, id string) (domain.Document, error) {
	var d domain.Document
	var dom sql.NullString
	err := r.q(tx).QueryRowContext(ctx, `SELECT id,title,body,type,domain,created_at,updated_at FROM documents WHERE id=?`, id).
		Scan(&d.ID, &d.Title, &d.Body, &d.Type, &dom, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrNotFound
	}
	d.Domain = dom.String
	return d, err
}

func (r Repo) UpdateDocumentBody(ctx context.Context, tx *sql.Tx, id, body, updatedAt string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE documents SET body=?, updated_at=? WHERE id=?`, body, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteDocument(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := r.q(tx).ExecContext(ctx, `DELETE FROM documents WHERE id=?`, id)
	return err
}
