package action

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Handler performs the actual effect of a validated action. Handlers are
// external collaborators; the router never inspects their internals.
type Handler func(ctx context.Context, req Request, user UserContext) (any, error)

// AuditEntry records one routed action for compliance logging.
type AuditEntry struct {
	Action  string
	ActorID string
	YachtID string
	Outcome string
	Code    string
	TS      time.Time
}

// Audit outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// AuditSink accepts audit entries. Record must not block and must never fail
// the caller's request; sink defects are the sink's own problem.
type AuditSink interface {
	Record(entry AuditEntry)
}

// Envelope is the uniform router response. Status is "success" or "error";
// an invalid request never raises an unrecoverable fault.
type Envelope struct {
	Status    string         `json:"status"`
	Result    any            `json:"result,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
	Message   string         `json:"message,omitempty"`
	Field     string         `json:"field,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// ExecOptions tune a single ExecuteAction call. SkipValidation is a
// trusted-caller escape hatch for internal tooling; the HTTP entry point
// never sets it.
type ExecOptions struct {
	SkipValidation bool
	SkipLogging    bool
}

// Router resolves action names to definitions, validates requests and
// dispatches to handlers. Definitions are read-only after construction, so
// concurrent ExecuteAction calls need no coordination.
type Router struct {
	defs     map[string]Definition
	handlers map[string]Handler
	audit    AuditSink
	now      func() time.Time
}

// NewRouter builds a router over a definition catalog. sink may be nil when
// no audit trail is wanted.
func NewRouter(defs map[string]Definition, sink AuditSink) *Router {
	return &Router{
		defs:     defs,
		handlers: make(map[string]Handler),
		audit:    sink,
		now:      time.Now,
	}
}

// Handle registers the handler for an action name. Registering a handler for
// an action without a definition is an error: the catalog is the source of
// truth for what exists.
func (r *Router) Handle(name string, h Handler) error {
	if _, exists := r.defs[name]; !exists {
		return fmt.Errorf("no definition for action %s", name)
	}
	if h == nil {
		return fmt.Errorf("nil handler for action %s", name)
	}
	r.handlers[name] = h
	return nil
}

// Definition returns the definition for an action name.
func (r *Router) Definition(name string) (Definition, bool) {
	d, exists := r.defs[name]
	return d, exists
}

// Definitions returns every definition, sorted by action name.
func (r *Router) Definitions() []Definition {
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ExecuteAction validates a request and, if it passes every stage, dispatches
// to the registered handler. Any validation failure returns an error envelope
// with no handler invocation and no observable side effect. The unknown-action
// check precedes all tenant and role logic.
func (r *Router) ExecuteAction(ctx context.Context, req Request, user UserContext, opts ExecOptions) Envelope {
	def, exists := r.defs[req.Action]
	if !exists {
		env := errorEnvelope(&Error{
			Code:    CodeActionNotFound,
			Message: fmt.Sprintf("unknown action %s", req.Action),
		})
		r.record(req, user, OutcomeRejected, CodeActionNotFound, opts)
		return env
	}

	if !opts.SkipValidation {
		if res := ValidateRequest(req.Action, req.Context, req.Payload, user, def); !res.Valid {
			r.record(req, user, OutcomeRejected, res.Err.Code, opts)
			return errorEnvelope(res.Err)
		}
		for field, expected := range def.FieldTypes {
			value, present := req.Payload[field]
			if !present {
				continue
			}
			if res := ValidateFieldType(value, field, expected); !res.Valid {
				r.record(req, user, OutcomeRejected, res.Err.Code, opts)
				return errorEnvelope(res.Err)
			}
		}
		if res := ValidateSchema(req.Payload, def.SchemaRef, req.Action); !res.Valid {
			r.record(req, user, OutcomeRejected, res.Err.Code, opts)
			return errorEnvelope(res.Err)
		}
	}

	handler, registered := r.handlers[req.Action]
	if !registered {
		r.record(req, user, OutcomeFailed, CodeExecutionFailed, opts)
		return errorEnvelope(&Error{
			Code:    CodeExecutionFailed,
			Message: fmt.Sprintf("no handler registered for action %s", req.Action),
		})
	}
	result, err := handler(ctx, req, user)
	if err != nil {
		r.record(req, user, OutcomeFailed, CodeExecutionFailed, opts)
		return errorEnvelope(&Error{Code: CodeExecutionFailed, Message: err.Error()})
	}
	r.record(req, user, OutcomeSuccess, "", opts)
	return Envelope{Status: "success", Result: result}
}

// ExecuteActionByID is a convenience wrapper constructing the request
// envelope inline.
func (r *Router) ExecuteActionByID(ctx context.Context, actionName, yachtID string, payload Payload, user UserContext) Envelope {
	return r.ExecuteAction(ctx, Request{
		Action:  actionName,
		Context: Context{YachtID: yachtID},
		Payload: payload,
	}, user, ExecOptions{})
}

// CanExecuteAction reports whether a role may invoke an action. Pure
// introspection: no side effects, no request needed.
func (r *Router) CanExecuteAction(actionName, role string) bool {
	def, exists := r.defs[actionName]
	if !exists {
		return false
	}
	return containsString(def.AllowedRoles, role)
}

// ExecutableActions returns every action name the role may invoke, sorted.
// Unrecognized roles get an empty list.
func (r *Router) ExecutableActions(role string) []string {
	names := []string{}
	for name := range r.defs {
		if r.CanExecuteAction(name, role) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (r *Router) record(req Request, user UserContext, outcome, code string, opts ExecOptions) {
	if opts.SkipLogging || r.audit == nil {
		return
	}
	yachtID := req.Context.YachtID
	if yachtID == "" {
		yachtID = user.YachtID
	}
	r.audit.Record(AuditEntry{
		Action:  req.Action,
		ActorID: user.UserID,
		YachtID: yachtID,
		Outcome: outcome,
		Code:    code,
		TS:      r.now().UTC(),
	})
}

func errorEnvelope(e *Error) Envelope {
	return Envelope{
		Status:    "error",
		ErrorCode: e.Code,
		Message:   e.Message,
		Field:     e.Field,
		Details:   e.Details,
	}
}
