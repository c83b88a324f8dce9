package server

import (
	"fleetline/internal/action"
	"fleetline/internal/domain"
)

// ExecuteRequest is the body of POST /actions/{action}.
type ExecuteRequest struct {
	YachtID string         `json:"yacht_id,omitempty" doc:"Target yacht; shorthand for context.yacht_id"`
	Context action.Context `json:"context,omitempty"`
	Payload action.Payload `json:"payload,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type ActionCatalogEntry struct {
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	AllowedRoles   []string `json:"allowed_roles"`
	RequiredFields []string `json:"required_fields,omitempty"`
	CanExecute     bool     `json:"can_execute"`
}

type ActionCatalogResponse struct {
	Items []ActionCatalogEntry `json:"items"`
}

type RoleActionsResponse struct {
	Role    string   `json:"role"`
	Actions []string `json:"actions"`
}

type WorkOrderListResponse struct {
	Items []domain.WorkOrder `json:"items"`
}

type EquipmentListResponse struct {
	Items []domain.Equipment `json:"items"`
}

type NoteListResponse struct {
	Items []domain.Note `json:"items"`
}

type WhoAmIResponse struct {
	UserID  string   `json:"user_id"`
	YachtID string   `json:"yacht_id"`
	Role    string   `json:"role"`
	Actions []string `json:"actions"`
}

type DevLoginRequest struct {
	UserID     string `json:"user_id"`
	YachtID    string `json:"yacht_id"`
	Role       string `json:"role"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type EventListResponse struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
