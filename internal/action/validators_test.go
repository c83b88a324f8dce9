package action

import (
	"math"
	"testing"
)

func TestValidateBearerHeader(t *testing.T) {
	cases := []struct {
		name   string
		header string
		valid  bool
		code   string
	}{
		{"missing", "", false, CodeMissingToken},
		{"whitespace only", "   ", false, CodeMissingToken},
		{"wrong scheme", "Basic abc123", false, CodeInvalidToken},
		{"lowercase bearer", "bearer abc123", false, CodeInvalidToken},
		{"empty token", "Bearer   ", false, CodeInvalidToken},
		{"well formed", "Bearer eyJhbGciOiJIUzI1NiJ9.x.y", true, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ValidateBearerHeader(tc.header)
			if res.Valid != tc.valid {
				t.Fatalf("valid = %v, want %v", res.Valid, tc.valid)
			}
			if !tc.valid && res.Err.Code != tc.code {
				t.Fatalf("code = %s, want %s", res.Err.Code, tc.code)
			}
		})
	}
}

func TestValidateUserContextOrdering(t *testing.T) {
	if res := ValidateUserContext(nil); res.Valid || res.Err.Code != CodeInvalidToken {
		t.Fatalf("nil user: %+v", res)
	}
	res := ValidateUserContext(&UserContext{YachtID: "y-1", Role: "Captain"})
	if res.Valid || res.Err.Code != CodeInvalidToken {
		t.Fatalf("missing user id: %+v", res)
	}
	if res.Err.Message != "User ID missing from authenticated context" {
		t.Fatalf("unexpected message %q", res.Err.Message)
	}
	res = ValidateUserContext(&UserContext{UserID: "u-1", Role: "Captain"})
	if res.Valid || res.Err.Code != CodeYachtNotFound {
		t.Fatalf("missing yacht: %+v", res)
	}
	res = ValidateUserContext(&UserContext{UserID: "u-1", YachtID: "y-1"})
	if res.Valid || res.Err.Code != CodePermissionDenied {
		t.Fatalf("missing role: %+v", res)
	}
	if res := ValidateUserContext(&UserContext{UserID: "u-1", YachtID: "y-1", Role: "Crew"}); !res.Valid {
		t.Fatalf("complete context rejected: %+v", res)
	}
}

func TestValidateYachtIsolation(t *testing.T) {
	user := UserContext{UserID: "u-1", YachtID: "y-1", Role: "Engineer"}

	res := ValidateYachtIsolation(Context{}, user)
	if res.Valid || res.Err.Code != CodeYachtNotFound {
		t.Fatalf("blank yacht: %+v", res)
	}

	res = ValidateYachtIsolation(Context{YachtID: "y-2"}, user)
	if res.Valid || res.Err.Code != CodeYachtMismatch {
		t.Fatalf("cross-yacht: %+v", res)
	}
	if res.Err.Field != "yacht_id" {
		t.Fatalf("field = %q", res.Err.Field)
	}

	res = ValidateYachtIsolation(Context{YachtID: "y-1"}, user)
	if !res.Valid {
		t.Fatalf("same yacht rejected: %+v", res)
	}
	if res.Context["yacht_id"] != "y-1" {
		t.Fatalf("context yacht = %v", res.Context["yacht_id"])
	}
}

func TestValidateRolePermission(t *testing.T) {
	allowed := []string{"Engineer", "Chief Engineer", "Captain"}

	res := ValidateRolePermission(UserContext{Role: "Engineer"}, allowed, "start_work_order")
	if !res.Valid {
		t.Fatalf("allowed role rejected: %+v", res)
	}

	res = ValidateRolePermission(UserContext{Role: "Crew"}, allowed, "start_work_order")
	if res.Valid || res.Err.Code != CodePermissionDenied {
		t.Fatalf("denied role: %+v", res)
	}
	if res.Err.Details["role"] != "Crew" {
		t.Fatalf("details role = %v", res.Err.Details["role"])
	}

	// Matching is exact and case-sensitive.
	res = ValidateRolePermission(UserContext{Role: "engineer"}, allowed, "start_work_order")
	if res.Valid {
		t.Fatal("lowercase role should not match")
	}
	res = ValidateRolePermission(UserContext{Role: "Chief"}, allowed, "start_work_order")
	if res.Valid {
		t.Fatal("prefix role should not match")
	}
}

func TestValidateRequiredFieldsCollectsAll(t *testing.T) {
	payload := Payload{
		"equipment_id": "eq-1",
		"note_text":    "   ",
		"title":        nil,
	}
	res := ValidateRequiredFields(payload, []string{"equipment_id", "note_text", "title", "qty"}, "add_note")
	if res.Valid {
		t.Fatal("expected missing_field")
	}
	if res.Err.Code != CodeMissingField {
		t.Fatalf("code = %s", res.Err.Code)
	}
	missing, _ := res.Err.Details["missing_fields"].([]string)
	if len(missing) != 3 {
		t.Fatalf("missing = %v, want note_text, title, qty", missing)
	}
	want := map[string]bool{"note_text": true, "title": true, "qty": true}
	for _, f := range missing {
		if !want[f] {
			t.Fatalf("unexpected missing field %s", f)
		}
	}

	if res := ValidateRequiredFields(Payload{"a": "x"}, []string{"a"}, "add_note"); !res.Valid {
		t.Fatalf("complete payload rejected: %+v", res)
	}
	if res := ValidateRequiredFields(Payload{}, nil, "add_note"); !res.Valid {
		t.Fatalf("no requirements should pass: %+v", res)
	}
}

func TestValidateFieldType(t *testing.T) {
	cases := []struct {
		name     string
		value    any
		expected FieldType
		valid    bool
	}{
		{"nil passes", nil, TypeString, true},
		{"string ok", "hello", TypeString, true},
		{"string wrong", 42, TypeString, false},
		{"number float", 3.5, TypeNumber, true},
		{"number int", 7, TypeNumber, true},
		{"number NaN", math.NaN(), TypeNumber, false},
		{"number wrong", "12", TypeNumber, false},
		{"boolean ok", true, TypeBoolean, true},
		{"boolean wrong", "true", TypeBoolean, false},
		{"array ok", []any{1, 2}, TypeArray, true},
		{"array wrong", "[]", TypeArray, false},
		{"object ok", map[string]any{"k": "v"}, TypeObject, true},
		{"object wrong", []any{}, TypeObject, false},
		{"uuid ok", "6ba7b810-9dad-11d1-80b4-00c04fd430c8", TypeUUID, true},
		{"uuid upper ok", "6BA7B810-9DAD-11D1-80B4-00C04FD430C8", TypeUUID, true},
		{"uuid malformed", "6ba7b810-9dad-11d1-80b4", TypeUUID, false},
		{"uuid not string", 1234, TypeUUID, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ValidateFieldType(tc.value, "f", tc.expected)
			if res.Valid != tc.valid {
				t.Fatalf("valid = %v, want %v", res.Valid, tc.valid)
			}
			if !tc.valid && res.Err.Code != CodeSchemaValidation {
				t.Fatalf("code = %s", res.Err.Code)
			}
		})
	}
}

func TestValidateRequestShortCircuit(t *testing.T) {
	def := Catalog()["create_work_order"]
	user := UserContext{UserID: "u-1", YachtID: "y-1", Role: "Crew"}

	// Isolation failure wins even when role and fields would also fail.
	res := ValidateRequest("create_work_order", Context{YachtID: "y-2"}, Payload{}, user, def)
	if res.Valid || res.Err.Code != CodeYachtMismatch {
		t.Fatalf("expected yacht_mismatch, got %+v", res)
	}

	// Role failure reported before missing fields.
	res = ValidateRequest("create_work_order", Context{YachtID: "y-1"}, Payload{}, user, def)
	if res.Valid || res.Err.Code != CodePermissionDenied {
		t.Fatalf("expected permission_denied, got %+v", res)
	}

	// With an allowed role, missing fields surface.
	user.Role = "Engineer"
	res = ValidateRequest("create_work_order", Context{YachtID: "y-1"}, Payload{}, user, def)
	if res.Valid || res.Err.Code != CodeMissingField {
		t.Fatalf("expected missing_field, got %+v", res)
	}

	res = ValidateRequest("create_work_order", Context{YachtID: "y-1"},
		Payload{"equipment_id": "eq-1", "title": "Oil change"}, user, def)
	if !res.Valid {
		t.Fatalf("valid request rejected: %+v", res)
	}
}
