package engine_test

import (
	"context"
	"testing"
	"time"

	"fleetline/internal/action"
	"fleetline/internal/config"
	"fleetline/internal/db"
	"fleetline/internal/domain"
	"fleetline/internal/engine"
	"fleetline/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Router *action.Router
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("y-1")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if _, err := eng.InitYacht(ctx, "y-1", "MY Test", "MT", "capt-1", "Captain"); err != nil {
		t.Fatalf("init yacht: %v", err)
	}
	router := action.NewRouter(action.Catalog(), nil)
	if err := eng.RegisterHandlers(router); err != nil {
		t.Fatalf("register handlers: %v", err)
	}
	return testEnv{Engine: eng, Router: router, Ctx: ctx}
}

func captain() action.UserContext {
	return action.UserContext{UserID: "capt-1", YachtID: "y-1", Role: "Captain"}
}

func engineer() action.UserContext {
	return action.UserContext{UserID: "eng-1", YachtID: "y-1", Role: "Engineer"}
}

func (env testEnv) exec(t *testing.T, name string, user action.UserContext, payload action.Payload) action.Envelope {
	t.Helper()
	return env.Router.ExecuteAction(env.Ctx, action.Request{
		Action:  name,
		Context: action.Context{YachtID: user.YachtID},
		Payload: payload,
	}, user, action.ExecOptions{})
}

func (env testEnv) mustExec(t *testing.T, name string, user action.UserContext, payload action.Payload) any {
	t.Helper()
	env2 := env.exec(t, name, user, payload)
	if env2.Status != "success" {
		t.Fatalf("%s failed: %+v", name, env2)
	}
	return env2.Result
}

func (env testEnv) createEquipment(t *testing.T, name string) domain.Equipment {
	t.Helper()
	res := env.mustExec(t, "create_equipment", captain(), action.Payload{
		"name": name, "location": "engine room", "critical": true,
	})
	eq, ok := res.(domain.Equipment)
	if !ok {
		t.Fatalf("create_equipment result %T", res)
	}
	return eq
}

func TestWorkOrderLifecycle(t *testing.T) {
	env := newTestEnv(t)
	eq := env.createEquipment(t, "main engine")

	res := env.mustExec(t, "create_work_order", engineer(), action.Payload{
		"equipment_id": eq.ID, "title": "Replace impeller",
	})
	wo := res.(domain.WorkOrder)
	if wo.Status != "planned" || wo.Priority != "medium" {
		t.Fatalf("new work order %+v", wo)
	}

	res = env.mustExec(t, "start_work_order", engineer(), action.Payload{"work_order_id": wo.ID})
	if res.(domain.WorkOrder).Status != "in_progress" {
		t.Fatalf("start: %+v", res)
	}

	res = env.mustExec(t, "close_work_order", captain(), action.Payload{
		"work_order_id": wo.ID, "completion_note": "impeller replaced, tested at 1500rpm",
	})
	closed := res.(domain.WorkOrder)
	if closed.Status != "done" || closed.ClosedAt == nil {
		t.Fatalf("close: %+v", closed)
	}

	notes, err := env.Engine.Repo.ListNotes(env.Ctx, "y-1", eq.ID)
	if err != nil || len(notes) != 1 {
		t.Fatalf("completion note: %v %v", notes, err)
	}

	// done is terminal
	out := env.exec(t, "start_work_order", engineer(), action.Payload{"work_order_id": wo.ID})
	if out.Status != "error" || out.ErrorCode != action.CodeExecutionFailed {
		t.Fatalf("restart closed order: %+v", out)
	}
}

func TestWorkOrderAssignmentRequiresCrew(t *testing.T) {
	env := newTestEnv(t)
	eq := env.createEquipment(t, "generator")
	wo := env.mustExec(t, "create_work_order", engineer(), action.Payload{
		"equipment_id": eq.ID, "title": "1000h service",
	}).(domain.WorkOrder)

	out := env.exec(t, "assign_work_order", captain(), action.Payload{
		"work_order_id": wo.ID, "assignee_id": "stranger",
	})
	if out.Status != "error" {
		t.Fatalf("assigning non-crew should fail: %+v", out)
	}

	res := env.mustExec(t, "assign_work_order", captain(), action.Payload{
		"work_order_id": wo.ID, "assignee_id": "capt-1",
	})
	assigned := res.(domain.WorkOrder)
	if assigned.AssigneeID == nil || *assigned.AssigneeID != "capt-1" {
		t.Fatalf("assign: %+v", assigned)
	}
}

func TestPartOrderAndReceiving(t *testing.T) {
	env := newTestEnv(t)

	res := env.mustExec(t, "order_part", engineer(), action.Payload{
		"part_name": "impeller", "qty": 2,
	})
	out := res.(map[string]any)
	part := out["part_order"].(domain.PartOrder)
	rec := out["receiving"].(domain.Receiving)
	if part.Status != "ordered" || rec.Status != "pending" || rec.PartOrderID != part.ID {
		t.Fatalf("order_part: %+v / %+v", part, rec)
	}

	accepted := env.mustExec(t, "accept_receiving", captain(), action.Payload{
		"receiving_id": rec.ID,
	}).(domain.Receiving)
	if accepted.Status != "accepted" || accepted.AcceptedBy == nil {
		t.Fatalf("accept: %+v", accepted)
	}
	gotPart, err := env.Engine.Repo.GetPartOrder(env.Ctx, part.ID)
	if err != nil || gotPart.Status != "delivered" {
		t.Fatalf("part after accept: %+v %v", gotPart, err)
	}

	// second accept is rejected
	out2 := env.exec(t, "accept_receiving", captain(), action.Payload{"receiving_id": rec.ID})
	if out2.Status != "error" {
		t.Fatalf("double accept: %+v", out2)
	}
}

func TestRunningHoursMonotonic(t *testing.T) {
	env := newTestEnv(t)
	eq := env.createEquipment(t, "watermaker")

	res := env.mustExec(t, "log_running_hours", engineer(), action.Payload{
		"equipment_id": eq.ID, "hours": 120.5,
	})
	if got := res.(domain.Equipment).RunningHours; got != 120.5 {
		t.Fatalf("hours = %v", got)
	}

	out := env.exec(t, "log_running_hours", engineer(), action.Payload{
		"equipment_id": eq.ID, "hours": 100,
	})
	if out.Status != "error" || out.ErrorCode != action.CodeExecutionFailed {
		t.Fatalf("decreasing hours: %+v", out)
	}

	// equal reading is allowed
	env.mustExec(t, "log_running_hours", engineer(), action.Payload{
		"equipment_id": eq.ID, "hours": 120.5,
	})
}

func TestDecommissionBlockedByOpenWork(t *testing.T) {
	env := newTestEnv(t)
	eq := env.createEquipment(t, "bow thruster")
	wo := env.mustExec(t, "create_work_order", engineer(), action.Payload{
		"equipment_id": eq.ID, "title": "Seal change",
	}).(domain.WorkOrder)
	env.mustExec(t, "start_work_order", engineer(), action.Payload{"work_order_id": wo.ID})

	out := env.exec(t, "decommission_equipment", captain(), action.Payload{"equipment_id": eq.ID})
	if out.Status != "error" {
		t.Fatalf("decommission with open work: %+v", out)
	}

	env.mustExec(t, "close_work_order", captain(), action.Payload{"work_order_id": wo.ID})
	res := env.mustExec(t, "decommission_equipment", captain(), action.Payload{"equipment_id": eq.ID})
	if res.(domain.Equipment).Status != "decommissioned" {
		t.Fatalf("decommission: %+v", res)
	}

	// work on decommissioned equipment is refused
	out = env.exec(t, "create_work_order", engineer(), action.Payload{
		"equipment_id": eq.ID, "title": "Should not open",
	})
	if out.Status != "error" {
		t.Fatalf("work on decommissioned equipment: %+v", out)
	}
}

func TestEventsAppendedWithMutations(t *testing.T) {
	env := newTestEnv(t)
	eq := env.createEquipment(t, "main engine")
	env.mustExec(t, "add_note", captain(), action.Payload{
		"equipment_id": eq.ID, "note_text": "oil pressure nominal",
	})

	events, err := env.Engine.Repo.TailEvents(env.Ctx, "y-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	types := map[string]bool{}
	for _, evt := range events {
		types[evt.Type] = true
		if evt.YachtID != "y-1" {
			t.Fatalf("event for wrong yacht: %+v", evt)
		}
	}
	for _, want := range []string{"yacht.created", "equipment.created", "note.added"} {
		if !types[want] {
			t.Fatalf("missing event %s in %v", want, types)
		}
	}
}

func TestCrossYachtHandlersRefuseForeignEntities(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.InitYacht(env.Ctx, "y-2", "MY Other", "", "capt-2", "Captain"); err != nil {
		t.Fatal(err)
	}
	eq := env.createEquipment(t, "radar") // on y-1

	intruder := action.UserContext{UserID: "capt-2", YachtID: "y-2", Role: "Captain"}
	out := env.Router.ExecuteAction(env.Ctx, action.Request{
		Action:  "create_work_order",
		Context: action.Context{YachtID: "y-2"},
		Payload: action.Payload{"equipment_id": eq.ID, "title": "Sneaky"},
	}, intruder, action.ExecOptions{})
	if out.Status != "error" {
		t.Fatalf("foreign equipment should be refused: %+v", out)
	}
}
