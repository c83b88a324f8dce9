package audit

import (
	"log"
	"testing"
	"time"

	"fleetline/internal/action"
	"fleetline/internal/db"
	"fleetline/internal/migrate"
)

func TestRecorderDrainsOnClose(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	rec := NewRecorder(conn, log.Default())
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec.Record(action.AuditEntry{
		Action: "add_note", ActorID: "u-1", YachtID: "y-1",
		Outcome: action.OutcomeSuccess, TS: ts,
	})
	rec.Record(action.AuditEntry{
		Action: "close_work_order", ActorID: "u-2", YachtID: "y-1",
		Outcome: action.OutcomeRejected, Code: action.CodePermissionDenied, TS: ts,
	})
	rec.Close()

	rows, err := conn.Query(`SELECT action, outcome, COALESCE(error_code, '') FROM audit_log ORDER BY id`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	type row struct{ action, outcome, code string }
	var got []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.action, &r.outcome, &r.code); err != nil {
			t.Fatal(err)
		}
		got = append(got, r)
	}
	if len(got) != 2 {
		t.Fatalf("audit rows = %d, want 2", len(got))
	}
	if got[0].action != "add_note" || got[0].outcome != "success" || got[0].code != "" {
		t.Fatalf("first row %+v", got[0])
	}
	if got[1].code != "permission_denied" {
		t.Fatalf("second row %+v", got[1])
	}

	// Close is idempotent.
	rec.Close()
}

func TestRecordAfterCloseDropsEntry(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	rec := NewRecorder(conn, log.Default())
	rec.Close()

	// a request still in flight during shutdown must not crash the process
	rec.Record(action.AuditEntry{
		Action: "add_note", ActorID: "u-1", YachtID: "y-1",
		Outcome: action.OutcomeSuccess, TS: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM audit_log`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("audit rows = %d, want 0", n)
	}
}
