package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"fleetline/internal/action"
	"fleetline/internal/engine"
	"fleetline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	Router   *action.Router
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"yacht_mismatch"`
	Message string         `json:"message" example:"action targets a different yacht"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Fleetline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Fleetline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerExecute(group, cfg.Router)
	registerActionCatalog(group, cfg.Router)
	registerRoleActions(group, cfg.Router)
	registerYachtStatus(group, cfg.Engine)
	registerWorkOrders(group, cfg.Engine)
	registerEquipment(group, cfg.Engine)
	registerNotes(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerMe(group, cfg.Router)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// statusForCode maps validation error codes onto HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case action.CodeMissingToken, action.CodeInvalidToken:
		return http.StatusUnauthorized
	case action.CodePermissionDenied, action.CodeYachtMismatch:
		return http.StatusForbidden
	case action.CodeYachtNotFound, action.CodeActionNotFound:
		return http.StatusNotFound
	case action.CodeMissingField, action.CodeSchemaValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

// requireYachtAccess enforces application-level tenant isolation on read
// endpoints: the path yacht must match the authenticated yacht.
func requireYachtAccess(ctx context.Context, yachtID string) (action.UserContext, huma.StatusError) {
	user, authErr := requireUser(ctx)
	if authErr != nil {
		return user, authErr
	}
	if res := action.ValidateYachtIsolation(action.Context{YachtID: yachtID}, user); !res.Valid {
		return user, newAPIError(statusForCode(res.Err.Code), res.Err.Code, res.Err.Message, res.Err.Details)
	}
	return user, nil
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerExecute(api huma.API, router *action.Router) {
	type executeInput struct {
		Action string         `path:"action"`
		Body   ExecuteRequest `json:"body"`
	}
	type executeOutput struct {
		Status int
		Body   action.Envelope `json:"body"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "execute-action",
		Method:      http.MethodPost,
		Path:        "/actions/{action}",
		Summary:     "Execute a named action",
		Description: "Validates the request (tenant isolation, role permission, required fields, field types, per-action rules) and dispatches to the action handler.",
	}, func(ctx context.Context, input *executeInput) (*executeOutput, error) {
		user, authErr := requireUser(ctx)
		if authErr != nil {
			return nil, authErr
		}
		actionCtx := input.Body.Context
		if actionCtx.YachtID == "" {
			actionCtx.YachtID = input.Body.YachtID
		}
		env := router.ExecuteAction(ctx, action.Request{
			Action:  input.Action,
			Context: actionCtx,
			Payload: input.Body.Payload,
		}, user, action.ExecOptions{})
		status := http.StatusOK
		if env.Status == "error" {
			status = statusForCode(env.ErrorCode)
		}
		return &executeOutput{Status: status, Body: env}, nil
	})
}

func registerActionCatalog(api huma.API, router *action.Router) {
	huma.Register(api, huma.Operation{
		OperationID: "list-actions",
		Method:      http.MethodGet,
		Path:        "/actions",
		Summary:     "List the action catalog",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ActionCatalogResponse `json:"body"`
	}, error) {
		user, authErr := requireUser(ctx)
		if authErr != nil {
			return nil, authErr
		}
		defs := router.Definitions()
		items := make([]ActionCatalogEntry, 0, len(defs))
		for _, d := range defs {
			items = append(items, ActionCatalogEntry{
				Name:           d.Name,
				Description:    d.Description,
				AllowedRoles:   d.AllowedRoles,
				RequiredFields: d.RequiredFields,
				CanExecute:     router.CanExecuteAction(d.Name, user.Role),
			})
		}
		return &struct {
			Body ActionCatalogResponse `json:"body"`
		}{Body: ActionCatalogResponse{Items: items}}, nil
	})
}

func registerRoleActions(api huma.API, router *action.Router) {
	type roleInput struct {
		Role string `path:"role"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "role-actions",
		Method:      http.MethodGet,
		Path:        "/roles/{role}/actions",
		Summary:     "List actions executable by a role",
	}, func(ctx context.Context, input *roleInput) (*struct {
		Body RoleActionsResponse `json:"body"`
	}, error) {
		if _, authErr := requireUser(ctx); authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body RoleActionsResponse `json:"body"`
		}{Body: RoleActionsResponse{Role: input.Role, Actions: router.ExecutableActions(input.Role)}}, nil
	})
}

type yachtPath struct {
	YachtID string `path:"yacht_id"`
}

func registerYachtStatus(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "yacht-status",
		Method:      http.MethodGet,
		Path:        "/yachts/{yacht_id}/status",
		Summary:     "Yacht maintenance status",
	}, func(ctx context.Context, input *yachtPath) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		if _, authErr := requireYachtAccess(ctx, input.YachtID); authErr != nil {
			return nil, authErr
		}
		y, err := e.Repo.GetYacht(ctx, input.YachtID)
		if err != nil {
			return nil, handleError(err)
		}
		counts, err := e.Repo.CountWorkOrdersByStatus(ctx, y.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: map[string]any{
			"yacht_id":    y.ID,
			"name":        y.Name,
			"status":      y.Status,
			"work_orders": counts,
		}}, nil
	})
}

func registerWorkOrders(api huma.API, e engine.Engine) {
	type listInput struct {
		yachtPath
		Status string `query:"status" required:"false" enum:"planned,in_progress,done,canceled"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "list-work-orders",
		Method:      http.MethodGet,
		Path:        "/yachts/{yacht_id}/work-orders",
		Summary:     "List work orders",
	}, func(ctx context.Context, input *listInput) (*struct {
		Body WorkOrderListResponse `json:"body"`
	}, error) {
		if _, authErr := requireYachtAccess(ctx, input.YachtID); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListWorkOrders(ctx, input.YachtID, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkOrderListResponse `json:"body"`
		}{Body: WorkOrderListResponse{Items: items}}, nil
	})
}

func registerEquipment(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-equipment",
		Method:      http.MethodGet,
		Path:        "/yachts/{yacht_id}/equipment",
		Summary:     "List equipment",
	}, func(ctx context.Context, input *yachtPath) (*struct {
		Body EquipmentListResponse `json:"body"`
	}, error) {
		if _, authErr := requireYachtAccess(ctx, input.YachtID); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListEquipment(ctx, input.YachtID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EquipmentListResponse `json:"body"`
		}{Body: EquipmentListResponse{Items: items}}, nil
	})
}

func registerNotes(api huma.API, e engine.Engine) {
	type notesInput struct {
		yachtPath
		EquipmentID string `query:"equipment_id" required:"false"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "list-notes",
		Method:      http.MethodGet,
		Path:        "/yachts/{yacht_id}/notes",
		Summary:     "List notes",
	}, func(ctx context.Context, input *notesInput) (*struct {
		Body NoteListResponse `json:"body"`
	}, error) {
		if _, authErr := requireYachtAccess(ctx, input.YachtID); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListNotes(ctx, input.YachtID, input.EquipmentID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NoteListResponse `json:"body"`
		}{Body: NoteListResponse{Items: items}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	type eventsInput struct {
		yachtPath
		After int64 `query:"after" required:"false"`
		Limit int   `query:"limit" required:"false"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/yachts/{yacht_id}/events",
		Summary:     "List events after a cursor",
	}, func(ctx context.Context, input *eventsInput) (*struct {
		Body EventListResponse `json:"body"`
	}, error) {
		if _, authErr := requireYachtAccess(ctx, input.YachtID); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.EventsAfter(ctx, input.Limit, input.After, input.YachtID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := EventListResponse{Items: items}
		if len(items) > 0 {
			resp.NextCursor = fmt.Sprintf("%d", items[len(items)-1].ID)
		}
		return &struct {
			Body EventListResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func registerMe(api huma.API, router *action.Router) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors: []int{
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		user, authErr := requireUser(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{
			UserID:  user.UserID,
			YachtID: user.YachtID,
			Role:    user.Role,
			Actions: router.ExecutableActions(user.Role),
		}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		userID := strings.TrimSpace(input.Body.UserID)
		yachtID := strings.TrimSpace(input.Body.YachtID)
		role := strings.TrimSpace(input.Body.Role)
		if userID == "" || yachtID == "" || role == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "user_id, yacht_id and role are required", nil)
		}
		token, err := MintToken(action.UserContext{UserID: userID, YachtID: yachtID, Role: role}, authCfg.JWTSecret, input.Body.TTLSeconds)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Fleetline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}
