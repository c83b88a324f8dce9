package action

import (
	"strings"
	"testing"
)

func TestValidateSchemaNoteText(t *testing.T) {
	atLimit := strings.Repeat("a", 10000)
	res := ValidateSchema(Payload{"note_text": atLimit}, "note_rules", "add_note")
	if !res.Valid {
		t.Fatalf("10000 chars should pass: %+v", res)
	}

	res = ValidateSchema(Payload{"note_text": atLimit + "a"}, "note_rules", "add_note")
	if res.Valid {
		t.Fatal("10001 chars should fail")
	}
	if res.Err.Code != CodeSchemaValidation || res.Err.Field != "note_text" {
		t.Fatalf("err = %+v", res.Err)
	}

	// Absent note_text is the required-fields validator's problem.
	if res := ValidateSchema(Payload{}, "note_rules", "add_note"); !res.Valid {
		t.Fatalf("absent field should pass schema stage: %+v", res)
	}
}

func TestValidateSchemaWorkOrderPriority(t *testing.T) {
	for _, p := range []string{"low", "medium", "high", "critical"} {
		res := ValidateSchema(Payload{"priority": p}, "work_order_rules", "create_work_order")
		if !res.Valid {
			t.Fatalf("priority %s rejected: %+v", p, res)
		}
	}
	for _, p := range []any{"urgent", "HIGH", "", 3} {
		res := ValidateSchema(Payload{"priority": p}, "work_order_rules", "create_work_order")
		if res.Valid {
			t.Fatalf("priority %v should fail", p)
		}
		if res.Err.Field != "priority" {
			t.Fatalf("field = %q", res.Err.Field)
		}
	}
	// Omitted priority is fine; the handler defaults it.
	if res := ValidateSchema(Payload{"title": "x"}, "work_order_rules", "create_work_order"); !res.Valid {
		t.Fatalf("omitted priority rejected: %+v", res)
	}
}

func TestValidateSchemaPartQuantity(t *testing.T) {
	cases := []struct {
		qty   any
		valid bool
	}{
		{1, true},
		{float64(12), true},
		{0.5, true},
		{0, false},
		{-5, false},
		{"3", false},
	}
	for _, tc := range cases {
		res := ValidateSchema(Payload{"part_name": "impeller", "qty": tc.qty}, "part_order_rules", "order_part")
		if res.Valid != tc.valid {
			t.Fatalf("qty %v: valid = %v, want %v", tc.qty, res.Valid, tc.valid)
		}
	}
}

func TestValidateSchemaShape(t *testing.T) {
	if res := ValidateSchema("not an object", "note_rules", "add_note"); res.Valid {
		t.Fatal("non-object payload should fail")
	}
	if res := ValidateSchema(nil, "note_rules", "add_note"); !res.Valid {
		t.Fatalf("nil payload is an empty object: %+v", res)
	}
	// No schema reference means no schema stage at all.
	if res := ValidateSchema("not an object", "", "add_note"); !res.Valid {
		t.Fatalf("empty schemaRef must pass: %+v", res)
	}
}
