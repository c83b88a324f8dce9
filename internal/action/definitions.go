package action

import (
	"fmt"
	"sort"
)

// Role names are matched exactly and case-sensitively everywhere.
const (
	RoleCrew          = "Crew"
	RoleEngineer      = "Engineer"
	RoleHOD           = "HOD"
	RoleChiefEngineer = "Chief Engineer"
	RoleCaptain       = "Captain"
	RoleManager       = "Manager"
)

// Roles lists every recognized role name.
func Roles() []string {
	return []string{RoleCrew, RoleEngineer, RoleHOD, RoleChiefEngineer, RoleCaptain, RoleManager}
}

// Definition is the static, read-only configuration for one action. The
// catalog is built once at startup and injected into the Router; nothing
// mutates it afterwards.
type Definition struct {
	Name           string               `json:"name"`
	Description    string               `json:"description,omitempty"`
	AllowedRoles   []string             `json:"allowed_roles"`
	RequiredFields []string             `json:"required_fields,omitempty"`
	FieldTypes     map[string]FieldType `json:"field_types,omitempty"`
	SchemaRef      string               `json:"schema_ref,omitempty"`
}

// Catalog returns the built-in action definitions.
func Catalog() map[string]Definition {
	defs := []Definition{
		{
			Name:           "add_note",
			Description:    "Attach a free-text note to a piece of equipment",
			AllowedRoles:   []string{RoleCrew, RoleEngineer, RoleHOD, RoleChiefEngineer, RoleCaptain},
			RequiredFields: []string{"equipment_id", "note_text"},
			FieldTypes: map[string]FieldType{
				"equipment_id": TypeString,
				"note_text":    TypeString,
				"attachments":  TypeArray,
			},
			SchemaRef: "note_rules",
		},
		{
			Name:           "create_work_order",
			Description:    "Open a planned-maintenance work order",
			AllowedRoles:   []string{RoleEngineer, RoleHOD, RoleChiefEngineer, RoleCaptain},
			RequiredFields: []string{"equipment_id", "title"},
			FieldTypes: map[string]FieldType{
				"equipment_id": TypeString,
				"title":        TypeString,
				"description":  TypeString,
				"priority":     TypeString,
				"metadata":     TypeObject,
			},
			SchemaRef: "work_order_rules",
		},
		{
			Name:           "start_work_order",
			Description:    "Move a work order to in_progress",
			AllowedRoles:   []string{RoleEngineer, RoleHOD, RoleChiefEngineer},
			RequiredFields: []string{"work_order_id"},
			FieldTypes:     map[string]FieldType{"work_order_id": TypeString},
		},
		{
			Name:           "assign_work_order",
			Description:    "Assign a work order to a crew member",
			AllowedRoles:   []string{RoleHOD, RoleChiefEngineer, RoleCaptain},
			RequiredFields: []string{"work_order_id", "assignee_id"},
			FieldTypes: map[string]FieldType{
				"work_order_id": TypeString,
				"assignee_id":   TypeString,
			},
		},
		{
			Name:           "close_work_order",
			Description:    "Complete and close a work order",
			AllowedRoles:   []string{RoleHOD, RoleChiefEngineer, RoleCaptain},
			RequiredFields: []string{"work_order_id"},
			FieldTypes: map[string]FieldType{
				"work_order_id":   TypeString,
				"completion_note": TypeString,
			},
		},
		{
			Name:           "order_part",
			Description:    "Order a spare part",
			AllowedRoles:   []string{RoleEngineer, RoleHOD, RoleChiefEngineer},
			RequiredFields: []string{"part_name"},
			FieldTypes: map[string]FieldType{
				"part_name": TypeString,
				"qty":       TypeNumber,
			},
			SchemaRef: "part_order_rules",
		},
		{
			Name:           "accept_receiving",
			Description:    "Accept a pending parts receiving",
			AllowedRoles:   []string{RoleHOD, RoleChiefEngineer, RoleCaptain},
			RequiredFields: []string{"receiving_id"},
			FieldTypes:     map[string]FieldType{"receiving_id": TypeString},
		},
		{
			Name:           "log_running_hours",
			Description:    "Record an equipment running-hours counter reading",
			AllowedRoles:   []string{RoleCrew, RoleEngineer, RoleHOD, RoleChiefEngineer},
			RequiredFields: []string{"equipment_id", "hours"},
			FieldTypes: map[string]FieldType{
				"equipment_id": TypeString,
				"hours":        TypeNumber,
			},
		},
		{
			Name:           "create_equipment",
			Description:    "Register a new piece of equipment",
			AllowedRoles:   []string{RoleManager, RoleCaptain, RoleChiefEngineer},
			RequiredFields: []string{"name", "location"},
			FieldTypes: map[string]FieldType{
				"name":     TypeString,
				"location": TypeString,
				"critical": TypeBoolean,
			},
		},
		{
			Name:           "decommission_equipment",
			Description:    "Take equipment permanently out of service",
			AllowedRoles:   []string{RoleManager, RoleCaptain},
			RequiredFields: []string{"equipment_id"},
			FieldTypes:     map[string]FieldType{"equipment_id": TypeString},
		},
	}
	out := make(map[string]Definition, len(defs))
	for _, d := range defs {
		out[d.Name] = d
	}
	return out
}

// Override adjusts a built-in definition, typically from config.
type Override struct {
	AllowedRoles []string
}

// ApplyOverrides returns a catalog with per-action overrides applied.
// Overrides for unknown actions or unknown roles are rejected.
func ApplyOverrides(defs map[string]Definition, overrides map[string]Override) (map[string]Definition, error) {
	known := map[string]bool{}
	for _, role := range Roles() {
		known[role] = true
	}
	out := make(map[string]Definition, len(defs))
	for name, d := range defs {
		out[name] = d
	}
	for name, ov := range overrides {
		d, exists := out[name]
		if !exists {
			return nil, fmt.Errorf("override for unknown action %s", name)
		}
		if len(ov.AllowedRoles) > 0 {
			for _, role := range ov.AllowedRoles {
				if !known[role] {
					return nil, fmt.Errorf("action %s override references unknown role %s", name, role)
				}
			}
			d.AllowedRoles = append([]string(nil), ov.AllowedRoles...)
		}
		out[name] = d
	}
	return out, nil
}

// Names returns the catalog's action names in sorted order.
func Names(defs map[string]Definition) []string {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
