package repo

import (
	"context"
	"database/sql"

	"fleetline/internal/domain"
)

func (r Repo) EnsureCrewMember(ctx context.Context, tx *sql.Tx, m domain.CrewMember) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO crew(user_id, yacht_id, name, role, created_at) VALUES (?,?,?,?,?)`,
		m.UserID, m.YachtID, nullable(m.Name), m.Role, m.CreatedAt)
	return err
}

func (r Repo) GetCrewMember(ctx context.Context, yachtID, userID string) (domain.CrewMember, error) {
	var m domain.CrewMember
	var name sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT user_id, yacht_id, name, role, created_at FROM crew WHERE yacht_id=? AND user_id=?`,
		yachtID, userID).Scan(&m.UserID, &m.YachtID, &name, &m.Role, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	if name.Valid {
		m.Name = name.String
	}
	return m, nil
}

func (r Repo) ListCrew(ctx context.Context, yachtID string) ([]domain.CrewMember, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT user_id, yacht_id, COALESCE(name,''), role, created_at FROM crew WHERE yacht_id=? ORDER BY user_id ASC`, yachtID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CrewMember
	for rows.Next() {
		var m domain.CrewMember
		if err := rows.Scan(&m.UserID, &m.YachtID, &m.Name, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
