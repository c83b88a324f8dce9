// Package action implements the request-validation pipeline and router that
// every mutating fleet operation passes through: tenant isolation, role
// permission, required-field and field-type checks, per-action payload rules,
// then dispatch to a registered handler.
package action

// Error codes returned by the validation pipeline. The set is closed: no
// other code crosses the validator boundary.
const (
	CodeMissingToken     = "missing_token"
	CodeInvalidToken     = "invalid_token"
	CodeYachtNotFound    = "yacht_not_found"
	CodeYachtMismatch    = "yacht_mismatch"
	CodePermissionDenied = "permission_denied"
	CodeMissingField     = "missing_field"
	CodeSchemaValidation = "schema_validation_error"
	CodeActionNotFound   = "action_not_found"

	// CodeExecutionFailed marks handler or post-validation defects. It is a
	// separate family from the validation codes above.
	CodeExecutionFailed = "execution_failed"
)

// Error describes why a request was rejected. It is data, not a Go error:
// validators never panic and never return error values for expected invalid
// input.
type Error struct {
	Code    string         `json:"error_code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Result is the uniform outcome of every validator. Context carries derived
// values forward to later stages; it is advisory and never required for
// correctness.
type Result struct {
	Valid   bool
	Err     *Error
	Context map[string]any
}

func ok() Result {
	return Result{Valid: true}
}

func okWith(ctx map[string]any) Result {
	return Result{Valid: true, Context: ctx}
}

func fail(code, message string) Result {
	return Result{Err: &Error{Code: code, Message: message}}
}

func failField(code, message, field string, details map[string]any) Result {
	return Result{Err: &Error{Code: code, Message: message, Field: field, Details: details}}
}

// UserContext is the authenticated caller, produced once per request by the
// authentication layer and immutable afterwards.
type UserContext struct {
	UserID  string `json:"user_id"`
	YachtID string `json:"yacht_id"`
	Role    string `json:"role"`
}

// Context carries the caller's claims about the target of an action. YachtID
// must match the authenticated yacht; entity IDs are optional hints for
// handlers.
type Context struct {
	YachtID     string `json:"yacht_id"`
	EquipmentID string `json:"equipment_id,omitempty"`
	WorkOrderID string `json:"work_order_id,omitempty"`
	ReceivingID string `json:"receiving_id,omitempty"`
}

// Request is the full action envelope. It is validated as a unit and never
// mutated after creation.
type Request struct {
	Action  string  `json:"action"`
	Context Context `json:"context"`
	Payload Payload `json:"payload"`
}
