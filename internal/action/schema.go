package action

import (
	"fmt"
	"strings"
)

// maxNoteTextLen caps free-text notes.
const maxNoteTextLen = 10000

var workOrderPriorities = []string{"low", "medium", "high", "critical"}

// ValidateSchema applies per-action payload rules. These are cheap guardrails
// dispatched by action name, not a general schema interpreter: actions without
// a rule set pass once the payload is a keyed map. A schemaRef of "" is a
// no-op success.
func ValidateSchema(payload any, schemaRef, actionName string) Result {
	if schemaRef == "" {
		return ok()
	}
	body, isMap := asPayload(payload)
	if !isMap {
		return fail(CodeSchemaValidation, "payload must be an object")
	}
	switch actionName {
	case "add_note":
		if text, present := body["note_text"]; present {
			if s, isStr := text.(string); isStr && len(s) > maxNoteTextLen {
				return failField(CodeSchemaValidation,
					fmt.Sprintf("note_text exceeds %d characters", maxNoteTextLen),
					"note_text", map[string]any{"max_length": maxNoteTextLen, "length": len(s)})
			}
		}
	case "create_work_order":
		if raw, present := body["priority"]; present {
			s, _ := raw.(string)
			if !containsString(workOrderPriorities, s) {
				return failField(CodeSchemaValidation,
					fmt.Sprintf("priority must be one of: %s", strings.Join(workOrderPriorities, ", ")),
					"priority", map[string]any{"allowed": workOrderPriorities})
			}
		}
	case "order_part":
		if raw, present := body["qty"]; present {
			qty, isNum := toNumber(raw)
			if !isNum || qty <= 0 {
				return failField(CodeSchemaValidation, "qty must be a positive number", "qty", nil)
			}
		}
	}
	return ok()
}

func asPayload(v any) (Payload, bool) {
	switch m := v.(type) {
	case Payload:
		return m, true
	case map[string]any:
		return m, true
	case nil:
		return Payload{}, true
	default:
		return nil, false
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
