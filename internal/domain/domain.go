package domain

type Yacht struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Flag      string `json:"flag,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type CrewMember struct {
	UserID    string `json:"user_id"`
	YachtID   string `json:"yacht_id"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Equipment struct {
	ID           string  `json:"id"`
	YachtID      string  `json:"yacht_id"`
	Name         string  `json:"name"`
	Location     string  `json:"location"`
	Status       string  `json:"status" enum:"active,decommissioned"`
	Critical     bool    `json:"critical"`
	RunningHours float64 `json:"running_hours"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	UpdatedAt    string  `json:"updated_at" format:"date-time"`
}

type WorkOrder struct {
	ID          string  `json:"id"`
	YachtID     string  `json:"yacht_id"`
	EquipmentID string  `json:"equipment_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Priority    string  `json:"priority" enum:"low,medium,high,critical"`
	Status      string  `json:"status" enum:"planned,in_progress,done,canceled"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	CreatedBy   string  `json:"created_by"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
	ClosedAt    *string `json:"closed_at,omitempty" format:"date-time"`
}

type Note struct {
	ID          string `json:"id"`
	YachtID     string `json:"yacht_id"`
	EquipmentID string `json:"equipment_id"`
	AuthorID    string `json:"author_id"`
	NoteText    string `json:"note_text"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type PartOrder struct {
	ID        string  `json:"id"`
	YachtID   string  `json:"yacht_id"`
	PartName  string  `json:"part_name"`
	Qty       float64 `json:"qty"`
	Status    string  `json:"status" enum:"ordered,delivered,canceled"`
	OrderedBy string  `json:"ordered_by"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updated_at" format:"date-time"`
}

type Receiving struct {
	ID          string  `json:"id"`
	YachtID     string  `json:"yacht_id"`
	PartOrderID string  `json:"part_order_id"`
	Status      string  `json:"status" enum:"pending,accepted"`
	AcceptedBy  *string `json:"accepted_by,omitempty"`
	AcceptedAt  *string `json:"accepted_at,omitempty" format:"date-time"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	YachtID    string `json:"yacht_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	YachtID   string `json:"yacht_id"`
	Role      string `json:"role"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type AuditRecord struct {
	ID        int64  `json:"id"`
	TS        string `json:"ts" format:"date-time"`
	Action    string `json:"action"`
	ActorID   string `json:"actor_id"`
	YachtID   string `json:"yacht_id"`
	Outcome   string `json:"outcome" enum:"success,rejected,failed"`
	ErrorCode string `json:"error_code,omitempty"`
}
