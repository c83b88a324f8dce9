package repo

import (
	"context"
	"database/sql"

	"fleetline/internal/domain"
)

func (r Repo) InsertPartOrder(ctx context.Context, tx *sql.Tx, p domain.PartOrder) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO part_orders(id,yacht_id,part_name,qty,status,ordered_by,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.YachtID, p.PartName, p.Qty, p.Status, p.OrderedBy, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetPartOrder(ctx context.Context, id string) (domain.PartOrder, error) {
	var p domain.PartOrder
	err := r.DB.QueryRowContext(ctx, `SELECT id,yacht_id,part_name,qty,status,ordered_by,created_at,updated_at FROM part_orders WHERE id=?`, id).
		Scan(&p.ID, &p.YachtID, &p.PartName, &p.Qty, &p.Status, &p.OrderedBy, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) UpdatePartOrderStatus(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE part_orders SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListPartOrders(ctx context.Context, yachtID string) ([]domain.PartOrder, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,yacht_id,part_name,qty,status,ordered_by,created_at,updated_at
FROM part_orders WHERE yacht_id=? ORDER BY created_at DESC, id ASC`, yachtID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PartOrder
	for rows.Next() {
		var p domain.PartOrder
		if err := rows.Scan(&p.ID, &p.YachtID, &p.PartName, &p.Qty, &p.Status, &p.OrderedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) InsertReceiving(ctx context.Context, tx *sql.Tx, rec domain.Receiving) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO receivings(id,yacht_id,part_order_id,status,accepted_by,accepted_at,created_at)
VALUES (?,?,?,?,?,?,?)`,
		rec.ID, rec.YachtID, rec.PartOrderID, rec.Status, nullablePtr(rec.AcceptedBy), nullablePtr(rec.AcceptedAt), rec.CreatedAt)
	return err
}

func (r Repo) GetReceiving(ctx context.Context, id string) (domain.Receiving, error) {
	var rec domain.Receiving
	var acceptedBy, acceptedAt sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,yacht_id,part_order_id,status,accepted_by,accepted_at,created_at FROM receivings WHERE id=?`, id).
		Scan(&rec.ID, &rec.YachtID, &rec.PartOrderID, &rec.Status, &acceptedBy, &acceptedAt, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, err
	}
	if acceptedBy.Valid {
		rec.AcceptedBy = &acceptedBy.String
	}
	if acceptedAt.Valid {
		rec.AcceptedAt = &acceptedAt.String
	}
	return rec, nil
}

func (r Repo) UpdateReceiving(ctx context.Context, tx *sql.Tx, rec domain.Receiving) error {
	res, err := tx.ExecContext(ctx, `UPDATE receivings SET status=?, accepted_by=?, accepted_at=? WHERE id=?`,
		rec.Status, nullablePtr(rec.AcceptedBy), nullablePtr(rec.AcceptedAt), rec.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
