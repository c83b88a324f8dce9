package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fleetline/internal/action"
	"fleetline/internal/config"
	"fleetline/internal/domain"
	"fleetline/internal/events"
	"fleetline/internal/repo"
)

// Engine owns the tenant-scoped mutations behind the action router. Every
// handler runs in a transaction and appends its event in the same tx.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// RegisterHandlers wires every engine handler into the router.
func (e Engine) RegisterHandlers(r *action.Router) error {
	handlers := map[string]action.Handler{
		"add_note":               e.handleAddNote,
		"create_work_order":      e.handleCreateWorkOrder,
		"start_work_order":       e.handleStartWorkOrder,
		"assign_work_order":      e.handleAssignWorkOrder,
		"close_work_order":       e.handleCloseWorkOrder,
		"order_part":             e.handleOrderPart,
		"accept_receiving":       e.handleAcceptReceiving,
		"log_running_hours":      e.handleLogRunningHours,
		"create_equipment":       e.handleCreateEquipment,
		"decommission_equipment": e.handleDecommissionEquipment,
	}
	for name, h := range handlers {
		if err := r.Handle(name, h); err != nil {
			return err
		}
	}
	return nil
}

// InitYacht creates a yacht and its initial crew member.
func (e Engine) InitYacht(ctx context.Context, yachtID, name, flag, actorID, actorRole string) (domain.Yacht, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Yacht{}, err
	}
	defer tx.Rollback()

	now := e.now().UTC().Format(time.RFC3339)
	if name == "" {
		name = yachtID
	}
	y := domain.Yacht{
		ID:        yachtID,
		Name:      name,
		Flag:      flag,
		Status:    "active",
		CreatedAt: now,
	}
	if err := e.Repo.InsertYacht(ctx, tx, y); err != nil {
		return domain.Yacht{}, fmt.Errorf("insert yacht: %w", err)
	}
	if actorID != "" {
		if actorRole == "" {
			actorRole = action.RoleCaptain
		}
		if err := e.Repo.EnsureCrewMember(ctx, tx, domain.CrewMember{
			UserID: actorID, YachtID: yachtID, Role: actorRole, CreatedAt: now,
		}); err != nil {
			return domain.Yacht{}, fmt.Errorf("ensure crew: %w", err)
		}
	}
	if err := e.Events.Append(ctx, tx, "yacht.created", yachtID, "yacht", yachtID, actorID, events.EventPayload{"name": name}); err != nil {
		return domain.Yacht{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Yacht{}, err
	}
	return y, nil
}

func (e Engine) handleAddNote(ctx context.Context, req action.Request, user action.UserContext) (any, error) {
	equipmentID := req.Payload.String("equipment_id")
	now := e.now().UTC().Format(time.RFC3339)
	n := domain.Note{
		ID:          uuid.New().String(),
		YachtID:     req.Context.YachtID,
		EquipmentID: equipmentID,
		AuthorID:    user.UserID,
		NoteText:    req.Payload.String("note_text"),
		CreatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertNote(ctx, tx, n); err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "note.added", n.YachtID, "note", n.ID, user.UserID, events.EventPayload{"equipment_id": equipmentID}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return n, nil
}

func (e Engine) handleCreateWorkOrder(ctx context.Context, req action.Request, user action.UserContext) (any, error) {
	equipmentID := req.Payload.String("equipment_id")
	eq, err := e.Repo.GetEquipment(ctx, equipmentID)
	if err != nil {
		return nil, fmt.Errorf("equipment %s: %w", equipmentID, err)
	}
	if eq.YachtID != req.Context.YachtID {
		return nil, fmt.Errorf("equipment %s not on yacht %s", equipmentID, req.Context.YachtID)
	}
	if eq.Status != "active" {
		return nil, fmt.Errorf("equipment %s is decommissioned", equipmentID)
	}
	priority := req.Payload.String("priority")
	if priority == "" {
		priority = "medium"
	}
	now := e.now().UTC().Format(time.RFC3339)
	wo := domain.WorkOrder{
		ID:          uuid.New().String(),
		YachtID:     req.Context.YachtID,
		EquipmentID: equipmentID,
		Title:       req.Payload.String("title"),
		Description: req.Payload.String("description"),
		Priority:    priority,
		Status:      "planned",
		CreatedBy:   user.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertWorkOrder(ctx, tx, wo); err != nil {
		return nil, fmt.Errorf("insert work order: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "work_order.created", wo.YachtID, "work_order", wo.ID, user.UserID, events.EventPayload{
		"title": wo.Title, "priority": wo.Priority, "equipment_id": equipmentID,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return wo, nil
}

func ensureWorkOrderTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case "planned":
		if newStatus == "in_progress" || newStatus == "canceled" {
			return nil
		}
	case "in_progress":
		if newStatus == "done" || newStatus == "canceled" {
			return nil
		}
	}
	return fmt.Errorf("invalid work order status transition %s -> %s", oldStatus, newStatus)
}

func (e Engine) loadWorkOrder(ctx context.Context, id, yachtID string) (domain.WorkOrder, error) {
	wo, err := e.Repo.GetWorkOrder(ctx, id)
	if err != nil {
		return wo, fmt.Errorf("work order %s: %w", id, err)
	}
	if wo.YachtID != yachtID {
		return wo, fmt.Errorf("work order %s not on yacht %s", id, yachtID)
	}
	return wo, nil
}

func (e Engine) transitionWorkOrder(ctx context.Context, req action.Request, user action.UserContext, newStatus, eventType string, mutate func(*domain.WorkOrder)) (any, error) {
	wo, err := e.loadWorkOrder(ctx, req.Payload.String("work_order_id"), req.Context.YachtID)
	if err != nil {
		return nil, err
	}
	if err := ensureWorkOrderTransition(wo.Status, newStatus); err != nil {
		return nil, err
	}
	fromStatus := wo.Status
	now := e.now().UTC().Format(time.RFC3339)
	wo.Status = newStatus
	wo.UpdatedAt = now
	if mutate != nil {
		mutate(&wo)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateWorkOrder(ctx, tx, wo); err != nil {
		return nil, err
	}
	if err := e.Events.Append(ctx, tx, eventType, wo.YachtID, "work_order", wo.ID, user.UserID, events.EventPayload{
		"from_status": fromStatus, "to_status": wo.Status,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return wo, nil
}

func (e Engine) handleStartWorkOrder(ctx context.Context, req action.Request, user action.UserContext) (any, error) {
	return e.transitionWorkOrder(ctx, req, user, "in_progress", "work_order.started", nil)
}

func (e Engine) handleCloseWorkOrder(ctx context.Context, req action.Request, user action.UserContext) (any, error) {
	result, err := e.transitionWorkOrder(ctx, req, user, "done", "work_order.closed", func(wo *domain.WorkOrder) {
		closedAt := e.now().UTC().Format(time.RFC3339)
		wo.ClosedAt = &closedAt
	})
	if err != nil {
		return nil, err
	}
	if note := req.Payload.String("completion_note"); note != "" {
		wo := result.(domain.WorkOrder)
		now := e.now().UTC().Format(time.RFC3339)
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()
		if err := e.Repo.InsertNote(ctx, tx, domain.Note{
			ID: uuid.New().String(), YachtID: wo.YachtID, EquipmentID: wo.EquipmentID,
			AuthorID: user.UserID, NoteText: note, CreatedAt: now,
		}); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (e Engine) handleAssignWorkOrder(ctx context.Context, req action.Request, user action.UserContext) (any, error) {
	assigneeID := req.Payload.String("assignee_id")
	if _, err := e.Repo.GetCrewMember(ctx, req.Context.YachtID, assigneeID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("assignee %s is not crew on yacht %s", assigneeID, req.Context.YachtID)
		}
		return nil, err
	}
	wo, err := e.loadWorkOrder(ctx, req.Payload.String("work_order_id"), req.Context.YachtID)
	if err != nil {
		return nil, err
	}
	if wo.Status == "done" || wo.Status == "canceled" {
		return nil, fmt.Errorf("work order %s is closed", wo.ID)
	}
	wo.AssigneeID = &assigneeID
	wo.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateWorkOrder(ctx, tx, wo); err != nil {
		return nil, err
	}
	if err := e.Events.Append(ctx, tx, "work_order.assigned", wo.YachtID, "work_order", wo.ID, user.UserID, events.EventPayload{
		"assignee_id": assigneeID,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return wo, nil
}

// handleOrderPart records the order and opens a pending receiving for it.
func (e Engine) handleOrderPart(ctx context.Context, req action.Request, user action.UserContext) (any, error) {
	qty, present := req.Payload.Number("qty")
	if !present {
		qty = 1
	}
	now := e.now().UTC().Format(time.RFC3339)
	p := domain.PartOrder{
		ID:        uuid.New().String(),
		YachtID:   req.Context.YachtID,
		PartName:  req.Payload.String("part_name"),
		Qty:       qty,
		Status:    "ordered",
		OrderedBy: user.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	rec := domain.Receiving{
		ID:          uuid.New().String(),
		YachtID:     p.YachtID,
		PartOrderID: p.ID,
		Status:      "pending",
		CreatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertPartOrder(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("insert part order: %w", err)
	}
	if err := e.Repo.InsertReceiving(ctx, tx, rec); err != nil {
		return nil, fmt.Errorf("insert receiving: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "part.ordered", p.YachtID, "part_order", p.ID, user.UserID, events.EventPayload{
		"part_name": p.PartName, "qty": p.Qty, "receiving_id": rec.ID,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return map[string]any{"part_order": p, "receiving": rec}, nil
}

func (e Engine) handleAcceptReceiving(ctx context.Context, req action.Request, user action.UserContext) (any, error) {
	receivingID := req.Payload.String("receiving_id")
	rec, err := e.Repo.GetReceiving(ctx, receivingID)
	if err != nil {
		return nil, fmt.Errorf("receiving %s: %w", receivingID, err)
	}
	if rec.YachtID != req.Context.YachtID {
		return nil, fmt.Errorf("receiving %s not on yacht %s", receivingID, req.Context.YachtID)
	}
	if rec.Status != "pending" {
		return nil, fmt.Errorf("receiving %s already %s", receivingID, rec.Status)
	}
	now := e.now().UTC().Format(time.RFC3339)
	rec.Status = "accepted"
	rec.AcceptedBy = &user.UserID
	rec.AcceptedAt = &now
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateReceiving(ctx, tx, rec); err != nil {
		return nil, err
	}
	if err := e.Repo.UpdatePartOrderStatus(ctx, tx, rec.PartOrderID, "delivered", now); err != nil {
		return nil, err
	}
	if err := e.Events.Append(ctx, tx, "receiving.accepted", rec.YachtID, "receiving", rec.ID, user.UserID, events.EventPayload{
		"part_order_id": rec.PartOrderID,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

// handleLogRunningHours records a counter reading. Readings are monotonic:
// a value below the stored counter is rejected.
func (e Engine) handleLogRunningHours(ctx context.Context, req action.Request, user action.UserContext) (any, error) {
	equipmentID := req.Payload.String("equipment_id")
	hours, _ := req.Payload.Number("hours")
	eq, err := e.Repo.GetEquipment(ctx, equipmentID)
	if err != nil {
		return nil, fmt.Errorf("equipment %s: %w", equipmentID, err)
	}
	if eq.YachtID != req.Context.YachtID {
		return nil, fmt.Errorf("equipment %s not on yacht %s", equipmentID, req.Context.YachtID)
	}
	if hours < eq.RunningHours {
		return nil, fmt.Errorf("running hours %.1f below current counter %.1f", hours, eq.RunningHours)
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateRunningHours(ctx, tx, equipmentID, hours, now); err != nil {
		return nil, err
	}
	if err := e.Events.Append(ctx, tx, "equipment.hours_logged", eq.YachtID, "equipment", eq.ID, user.UserID, events.EventPayload{
		"from_hours": eq.RunningHours, "to_hours": hours,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	eq.RunningHours = hours
	eq.UpdatedAt = now
	return eq, nil
}

func (e Engine) handleCreateEquipment(ctx context.Context, req action.Request, user action.UserContext) (any, error) {
	now := e.now().UTC().Format(time.RFC3339)
	eq := domain.Equipment{
		ID:        uuid.New().String(),
		YachtID:   req.Context.YachtID,
		Name:      req.Payload.String("name"),
		Location:  req.Payload.String("location"),
		Status:    "active",
		Critical:  req.Payload.Bool("critical"),
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertEquipment(ctx, tx, eq); err != nil {
		return nil, fmt.Errorf("insert equipment: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "equipment.created", eq.YachtID, "equipment", eq.ID, user.UserID, events.EventPayload{
		"name": eq.Name, "location": eq.Location, "critical": eq.Critical,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return eq, nil
}

func (e Engine) handleDecommissionEquipment(ctx context.Context, req action.Request, user action.UserContext) (any, error) {
	equipmentID := req.Payload.String("equipment_id")
	eq, err := e.Repo.GetEquipment(ctx, equipmentID)
	if err != nil {
		return nil, fmt.Errorf("equipment %s: %w", equipmentID, err)
	}
	if eq.YachtID != req.Context.YachtID {
		return nil, fmt.Errorf("equipment %s not on yacht %s", equipmentID, req.Context.YachtID)
	}
	if eq.Status != "active" {
		return nil, fmt.Errorf("equipment %s already decommissioned", equipmentID)
	}
	open, err := e.Repo.ListWorkOrders(ctx, eq.YachtID, "in_progress")
	if err != nil {
		return nil, err
	}
	for _, wo := range open {
		if wo.EquipmentID == equipmentID {
			return nil, fmt.Errorf("equipment %s has work order %s in progress", equipmentID, wo.ID)
		}
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateEquipmentStatus(ctx, tx, equipmentID, "decommissioned", now); err != nil {
		return nil, err
	}
	if err := e.Events.Append(ctx, tx, "equipment.decommissioned", eq.YachtID, "equipment", eq.ID, user.UserID, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	eq.Status = "decommissioned"
	eq.UpdatedAt = now
	return eq, nil
}
