package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"fleetline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertYacht(ctx context.Context, tx *sql.Tx, y domain.Yacht) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO yachts(id,name,flag,status,created_at) VALUES (?,?,?,?,?)`,
		y.ID, y.Name, nullable(y.Flag), y.Status, y.CreatedAt)
	return err
}

func (r Repo) GetYacht(ctx context.Context, id string) (domain.Yacht, error) {
	var y domain.Yacht
	var flag sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,flag,status,created_at FROM yachts WHERE id=?`, id).
		Scan(&y.ID, &y.Name, &flag, &y.Status, &y.CreatedAt)
	if err == sql.ErrNoRows {
		return y, ErrNotFound
	}
	if err != nil {
		return y, err
	}
	if flag.Valid {
		y.Flag = flag.String
	}
	return y, nil
}

func (r Repo) ListYachts(ctx context.Context) ([]domain.Yacht, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,COALESCE(flag,''),status,created_at FROM yachts ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Yacht
	for rows.Next() {
		var y domain.Yacht
		if err := rows.Scan(&y.ID, &y.Name, &y.Flag, &y.Status, &y.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, y)
	}
	return res, rows.Err()
}

func (r Repo) SingleYacht(ctx context.Context) (domain.Yacht, error) {
	yachts, err := r.ListYachts(ctx)
	if err != nil {
		return domain.Yacht{}, err
	}
	if len(yachts) == 0 {
		return domain.Yacht{}, ErrNotFound
	}
	if len(yachts) > 1 {
		return domain.Yacht{}, fmt.Errorf("multiple yachts exist; specify --yacht")
	}
	return yachts[0], nil
}

func (r Repo) InsertEquipment(ctx context.Context, tx *sql.Tx, eq domain.Equipment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO equipment(id,yacht_id,name,location,status,critical,running_hours,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		eq.ID, eq.YachtID, eq.Name, eq.Location, eq.Status, boolInt(eq.Critical), eq.RunningHours, eq.CreatedAt, eq.UpdatedAt)
	return err
}

func scanEquipment(scan func(...any) error) (domain.Equipment, error) {
	var eq domain.Equipment
	var critical int
	err := scan(&eq.ID, &eq.YachtID, &eq.Name, &eq.Location, &eq.Status, &critical, &eq.RunningHours, &eq.CreatedAt, &eq.UpdatedAt)
	if err == sql.ErrNoRows {
		return eq, ErrNotFound
	}
	eq.Critical = critical != 0
	return eq, err
}

const equipmentColumns = `id,yacht_id,name,location,status,critical,running_hours,created_at,updated_at`

func (r Repo) GetEquipment(ctx context.Context, id string) (domain.Equipment, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE id=?`, id)
	return scanEquipment(row.Scan)
}

func (r Repo) ListEquipment(ctx context.Context, yachtID string) ([]domain.Equipment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE yacht_id=? ORDER BY name ASC`, yachtID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Equipment
	for rows.Next() {
		eq, err := scanEquipment(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, eq)
	}
	return res, rows.Err()
}

func (r Repo) UpdateEquipmentStatus(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE equipment SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateRunningHours(ctx context.Context, tx *sql.Tx, id string, hours float64, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE equipment SET running_hours=?, updated_at=? WHERE id=?`, hours, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const workOrderColumns = `id,yacht_id,equipment_id,title,description,priority,status,assignee_id,created_by,created_at,updated_at,closed_at`

func scanWorkOrder(scan func(...any) error) (domain.WorkOrder, error) {
	var wo domain.WorkOrder
	var desc, assignee, closedAt sql.NullString
	err := scan(&wo.ID, &wo.YachtID, &wo.EquipmentID, &wo.Title, &desc, &wo.Priority, &wo.Status, &assignee, &wo.CreatedBy, &wo.CreatedAt, &wo.UpdatedAt, &closedAt)
	if err == sql.ErrNoRows {
		return wo, ErrNotFound
	}
	if desc.Valid {
		wo.Description = desc.String
	}
	if assignee.Valid {
		wo.AssigneeID = &assignee.String
	}
	if closedAt.Valid {
		wo.ClosedAt = &closedAt.String
	}
	return wo, err
}

func (r Repo) InsertWorkOrder(ctx context.Context, tx *sql.Tx, wo domain.WorkOrder) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO work_orders(`+workOrderColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		wo.ID, wo.YachtID, wo.EquipmentID, wo.Title, nullable(wo.Description), wo.Priority, wo.Status,
		nullablePtr(wo.AssigneeID), wo.CreatedBy, wo.CreatedAt, wo.UpdatedAt, nullablePtr(wo.ClosedAt))
	return err
}

func (r Repo) GetWorkOrder(ctx context.Context, id string) (domain.WorkOrder, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+workOrderColumns+` FROM work_orders WHERE id=?`, id)
	return scanWorkOrder(row.Scan)
}

func (r Repo) UpdateWorkOrder(ctx context.Context, tx *sql.Tx, wo domain.WorkOrder) error {
	res, err := tx.ExecContext(ctx, `UPDATE work_orders SET title=?, description=?, priority=?, status=?, assignee_id=?, updated_at=?, closed_at=? WHERE id=?`,
		wo.Title, nullable(wo.Description), wo.Priority, wo.Status, nullablePtr(wo.AssigneeID), wo.UpdatedAt, nullablePtr(wo.ClosedAt), wo.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListWorkOrders(ctx context.Context, yachtID, status string) ([]domain.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE yacht_id=?`
	args := []any{yachtID}
	if status != "" {
		query += ` AND status=?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkOrder
	for rows.Next() {
		wo, err := scanWorkOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, wo)
	}
	return res, rows.Err()
}

func (r Repo) CountWorkOrdersByStatus(ctx context.Context, yachtID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM work_orders WHERE yacht_id=? GROUP BY status`, yachtID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r Repo) InsertNote(ctx context.Context, tx *sql.Tx, n domain.Note) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO notes(id,yacht_id,equipment_id,author_id,note_text,created_at) VALUES (?,?,?,?,?,?)`,
		n.ID, n.YachtID, n.EquipmentID, n.AuthorID, n.NoteText, n.CreatedAt)
	return err
}

func (r Repo) ListNotes(ctx context.Context, yachtID, equipmentID string) ([]domain.Note, error) {
	query := `SELECT id,yacht_id,equipment_id,author_id,note_text,created_at FROM notes WHERE yacht_id=?`
	args := []any{yachtID}
	if equipmentID != "" {
		query += ` AND equipment_id=?`
		args = append(args, equipmentID)
	}
	query += ` ORDER BY created_at DESC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Note
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(&n.ID, &n.YachtID, &n.EquipmentID, &n.AuthorID, &n.NoteText, &n.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullablePtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
