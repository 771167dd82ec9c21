package repo

import (
	"context"
	"database/sql"

	"polling/internal/domain"
	"polling/internal/identity"
)

func (r Repo) InsertDirector(ctx context.Context, tx *sql.Tx, d domain.Director) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO directors(address,name,created_at) VALUES (?,?,?)`,
		d.Address.String(), d.Name, formatTime(d.CreatedAt))
	return err
}

// ListDirectors returns directors in insertion order.
func (r Repo) ListDirectors(ctx context.Context, q Querier) ([]domain.Director, error) {
	rows, err := r.q(q).QueryContext(ctx, `SELECT address,name,created_at FROM directors ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Director
	for rows.Next() {
		var (
			d        domain.Director
			addr, at string
		)
		if err := rows.Scan(&addr, &d.Name, &at); err != nil {
			return nil, err
		}
		d.Address = identity.Address(addr)
		if d.CreatedAt, err = parseTime(at); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}
