package repo

import (
	"context"
	"database/sql"

	"polling/internal/domain"
	"polling/internal/identity"
)

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,created_at,created_by,title,description,is_approved) VALUES (?,?,?,?,?,?)`,
		t.ID, formatTime(t.CreatedAt), t.CreatedBy.String(), t.Title, t.Description, t.IsApproved)
	return err
}

// RecordApproval appends voter to the task's approvals and stores the task's
// resulting approval flag.
func (r Repo) RecordApproval(ctx context.Context, tx *sql.Tx, t domain.Task, voter identity.Address) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO task_approvals(task_id,voter,seq) VALUES (?,?,(SELECT COALESCE(MAX(seq),0)+1 FROM task_approvals WHERE task_id=?))`,
		t.ID, voter.String(), t.ID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET is_approved=? WHERE id=?`, t.IsApproved, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTasks returns tasks in creation order with their approvals.
func (r Repo) ListTasks(ctx context.Context, q Querier) ([]domain.Task, error) {
	rows, err := r.q(q).QueryContext(ctx, `SELECT id,created_at,created_by,title,description,is_approved FROM tasks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	var (
		res []domain.Task
		idx = map[int64]int{}
	)
	for rows.Next() {
		var (
			t      domain.Task
			at, by string
		)
		if err := rows.Scan(&t.ID, &at, &by, &t.Title, &t.Description, &t.IsApproved); err != nil {
			rows.Close()
			return nil, err
		}
		t.CreatedBy = identity.Address(by)
		if t.CreatedAt, err = parseTime(at); err != nil {
			rows.Close()
			return nil, err
		}
		t.ApprovedBy = []identity.Address{}
		idx[t.ID] = len(res)
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	votes, err := r.q(q).QueryContext(ctx, `SELECT task_id,voter FROM task_approvals ORDER BY task_id, seq`)
	if err != nil {
		return nil, err
	}
	defer votes.Close()
	for votes.Next() {
		var (
			id    int64
			voter string
		)
		if err := votes.Scan(&id, &voter); err != nil {
			return nil, err
		}
		if i, ok := idx[id]; ok {
			res[i].ApprovedBy = append(res[i].ApprovedBy, identity.Address(voter))
		}
	}
	return res, votes.Err()
}
