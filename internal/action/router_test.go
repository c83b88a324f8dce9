package action

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
)

type captureSink struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (s *captureSink) Record(entry AuditEntry) {
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
}

func (s *captureSink) last(t *testing.T) AuditEntry {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		t.Fatal("no audit entries recorded")
	}
	return s.entries[len(s.entries)-1]
}

func newTestRouter(t *testing.T, sink AuditSink) *Router {
	t.Helper()
	r := NewRouter(Catalog(), sink)
	err := r.Handle("add_note", func(ctx context.Context, req Request, user UserContext) (any, error) {
		return map[string]any{"note_id": "n-1", "equipment_id": req.Payload["equipment_id"]}, nil
	})
	if err != nil {
		t.Fatalf("register handler: %v", err)
	}
	return r
}

func captainAt(yacht string) UserContext {
	return UserContext{UserID: "u-1", YachtID: yacht, Role: "Captain"}
}

func noteRequest(yacht string) Request {
	return Request{
		Action:  "add_note",
		Context: Context{YachtID: yacht},
		Payload: Payload{"equipment_id": "eq-1", "note_text": "checked bilge pump"},
	}
}

func TestExecuteActionSuccess(t *testing.T) {
	sink := &captureSink{}
	r := newTestRouter(t, sink)

	env := r.ExecuteAction(context.Background(), noteRequest("y-1"), captainAt("y-1"), ExecOptions{})
	if env.Status != "success" {
		t.Fatalf("envelope = %+v", env)
	}
	if env.ErrorCode != "" || env.Message != "" {
		t.Fatalf("success envelope carries error fields: %+v", env)
	}
	result, _ := env.Result.(map[string]any)
	if result["note_id"] != "n-1" {
		t.Fatalf("result = %v", env.Result)
	}
	entry := sink.last(t)
	if entry.Outcome != OutcomeSuccess || entry.Action != "add_note" || entry.YachtID != "y-1" {
		t.Fatalf("audit entry = %+v", entry)
	}
}

func TestExecuteActionByID(t *testing.T) {
	sink := &captureSink{}
	r := newTestRouter(t, sink)

	payload := Payload{"equipment_id": "eq-1", "note_text": "replaced raw water impeller"}
	env := r.ExecuteActionByID(context.Background(), "add_note", "y-1", payload, captainAt("y-1"))
	if env.Status != "success" {
		t.Fatalf("envelope = %+v", env)
	}
	entry := sink.last(t)
	if entry.Outcome != OutcomeSuccess || entry.YachtID != "y-1" {
		t.Fatalf("audit entry = %+v", entry)
	}

	// the yacht id lands in the request context, so isolation still applies
	env = r.ExecuteActionByID(context.Background(), "add_note", "y-2", payload, captainAt("y-1"))
	if env.Status != "error" || env.ErrorCode != CodeYachtMismatch {
		t.Fatalf("cross-yacht envelope = %+v", env)
	}
	// validation and logging both run: the wrapper uses default options
	if entry := sink.last(t); entry.Outcome != OutcomeRejected {
		t.Fatalf("audit entry = %+v", entry)
	}
}

func TestExecuteActionUnknownActionWinsOverEverything(t *testing.T) {
	sink := &captureSink{}
	r := newTestRouter(t, sink)

	// Cross-yacht context and bogus role: action_not_found must still win.
	req := Request{Action: "fake_action", Context: Context{YachtID: "y-2"}}
	env := r.ExecuteAction(context.Background(), req, UserContext{UserID: "u-1", YachtID: "y-1", Role: "Nobody"}, ExecOptions{})
	if env.Status != "error" || env.ErrorCode != CodeActionNotFound {
		t.Fatalf("envelope = %+v", env)
	}
	if entry := sink.last(t); entry.Outcome != OutcomeRejected || entry.Code != CodeActionNotFound {
		t.Fatalf("audit entry = %+v", entry)
	}
}

func TestExecuteActionValidationOrder(t *testing.T) {
	r := newTestRouter(t, nil)
	ctx := context.Background()

	env := r.ExecuteAction(ctx, noteRequest("y-2"), captainAt("y-1"), ExecOptions{})
	if env.ErrorCode != CodeYachtMismatch {
		t.Fatalf("cross-yacht: %+v", env)
	}

	crew := UserContext{UserID: "u-2", YachtID: "y-1", Role: "Deckhand"}
	env = r.ExecuteAction(ctx, noteRequest("y-1"), crew, ExecOptions{})
	if env.ErrorCode != CodePermissionDenied {
		t.Fatalf("bad role: %+v", env)
	}

	req := noteRequest("y-1")
	req.Payload = Payload{}
	env = r.ExecuteAction(ctx, req, captainAt("y-1"), ExecOptions{})
	if env.ErrorCode != CodeMissingField {
		t.Fatalf("missing fields: %+v", env)
	}

	// Field-type stage runs after the composite pass.
	req = noteRequest("y-1")
	req.Payload["note_text"] = 42
	env = r.ExecuteAction(ctx, req, captainAt("y-1"), ExecOptions{})
	if env.ErrorCode != CodeSchemaValidation || env.Field != "note_text" {
		t.Fatalf("field type: %+v", env)
	}
}

func TestExecuteActionValidationIsIdempotent(t *testing.T) {
	r := newTestRouter(t, nil)
	ctx := context.Background()
	req := noteRequest("y-2")
	user := captainAt("y-1")

	first := r.ExecuteAction(ctx, req, user, ExecOptions{})
	second := r.ExecuteAction(ctx, req, user, ExecOptions{})
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same input produced different envelopes:\n%+v\n%+v", first, second)
	}
}

func TestExecuteActionHandlerFailure(t *testing.T) {
	sink := &captureSink{}
	r := NewRouter(Catalog(), sink)
	if err := r.Handle("add_note", func(ctx context.Context, req Request, user UserContext) (any, error) {
		return nil, errors.New("db is locked")
	}); err != nil {
		t.Fatal(err)
	}

	env := r.ExecuteAction(context.Background(), noteRequest("y-1"), captainAt("y-1"), ExecOptions{})
	if env.Status != "error" || env.ErrorCode != CodeExecutionFailed {
		t.Fatalf("envelope = %+v", env)
	}
	if entry := sink.last(t); entry.Outcome != OutcomeFailed {
		t.Fatalf("audit entry = %+v", entry)
	}
}

func TestExecuteActionUnregisteredHandler(t *testing.T) {
	r := NewRouter(Catalog(), nil)
	env := r.ExecuteAction(context.Background(), noteRequest("y-1"), captainAt("y-1"), ExecOptions{})
	if env.ErrorCode != CodeExecutionFailed {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestExecOptions(t *testing.T) {
	sink := &captureSink{}
	r := newTestRouter(t, sink)
	ctx := context.Background()

	// SkipValidation bypasses every check but still dispatches.
	req := noteRequest("y-2") // would fail isolation
	env := r.ExecuteAction(ctx, req, captainAt("y-1"), ExecOptions{SkipValidation: true})
	if env.Status != "success" {
		t.Fatalf("skip validation: %+v", env)
	}

	before := len(sink.entries)
	r.ExecuteAction(ctx, noteRequest("y-1"), captainAt("y-1"), ExecOptions{SkipLogging: true})
	if len(sink.entries) != before {
		t.Fatal("SkipLogging still recorded an audit entry")
	}
}

func TestHandleRejectsUnknownAction(t *testing.T) {
	r := NewRouter(Catalog(), nil)
	if err := r.Handle("fake_action", func(ctx context.Context, req Request, user UserContext) (any, error) {
		return nil, nil
	}); err == nil {
		t.Fatal("expected error for handler without definition")
	}
	if err := r.Handle("add_note", nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
}

func TestCanExecuteAction(t *testing.T) {
	r := NewRouter(Catalog(), nil)
	cases := []struct {
		action string
		role   string
		want   bool
	}{
		{"add_note", "Crew", true},
		{"add_note", "Captain", true},
		{"close_work_order", "Crew", false},
		{"close_work_order", "Chief Engineer", true},
		{"decommission_equipment", "Engineer", false},
		{"fake_action", "Captain", false},
		{"add_note", "", false},
	}
	for _, tc := range cases {
		if got := r.CanExecuteAction(tc.action, tc.role); got != tc.want {
			t.Errorf("CanExecuteAction(%s, %s) = %v, want %v", tc.action, tc.role, got, tc.want)
		}
	}
}

func TestExecutableActions(t *testing.T) {
	r := NewRouter(Catalog(), nil)

	crew := r.ExecutableActions("Crew")
	for _, name := range crew {
		if !r.CanExecuteAction(name, "Crew") {
			t.Fatalf("listed action %s not executable", name)
		}
	}
	captain := r.ExecutableActions("Captain")
	if len(captain) <= len(crew) {
		t.Fatalf("captain list (%d) should exceed crew list (%d)", len(captain), len(crew))
	}
	if !sorted(captain) {
		t.Fatalf("list not sorted: %v", captain)
	}

	unknown := r.ExecutableActions("Harbormaster")
	if unknown == nil || len(unknown) != 0 {
		t.Fatalf("unknown role should get an empty list, got %v", unknown)
	}
}

func sorted(names []string) bool {
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			return false
		}
	}
	return true
}

func TestApplyOverrides(t *testing.T) {
	defs, err := ApplyOverrides(Catalog(), map[string]Override{
		"add_note": {AllowedRoles: []string{"Captain"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	r := NewRouter(defs, nil)
	if r.CanExecuteAction("add_note", "Crew") {
		t.Fatal("override did not narrow allowed roles")
	}
	if !r.CanExecuteAction("add_note", "Captain") {
		t.Fatal("override dropped Captain")
	}

	if _, err := ApplyOverrides(Catalog(), map[string]Override{
		"no_such_action": {AllowedRoles: []string{"Captain"}},
	}); err == nil {
		t.Fatal("expected error for unknown action override")
	}
	if _, err := ApplyOverrides(Catalog(), map[string]Override{
		"add_note": {AllowedRoles: []string{"Pirate"}},
	}); err == nil {
		t.Fatal("expected error for unknown role override")
	}
}
