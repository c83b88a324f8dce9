package fleetlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Fleetline HTTP API client.
type Client struct {
	BaseURL     string
	YachtID     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, yachtID string) *Client {
	return &Client{
		BaseURL: baseURL,
		YachtID: yachtID,
		Timeout: 10 * time.Second,
	}
}

// Envelope is the uniform action response.
type Envelope struct {
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
	Message   string          `json:"message,omitempty"`
	Field     string          `json:"field,omitempty"`
	Details   map[string]any  `json:"details,omitempty"`
}

// ActionInfo describes one catalog entry.
type ActionInfo struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	AllowedRoles   []string `json:"allowed_roles"`
	RequiredFields []string `json:"required_fields"`
	CanExecute     bool     `json:"can_execute"`
}

// WorkOrder represents the API work order model (partial).
type WorkOrder struct {
	ID          string  `json:"id"`
	YachtID     string  `json:"yacht_id"`
	EquipmentID string  `json:"equipment_id"`
	Title       string  `json:"title"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
}

// Equipment represents a maintained machinery item.
type Equipment struct {
	ID           string  `json:"id"`
	YachtID      string  `json:"yacht_id"`
	Name         string  `json:"name"`
	Location     string  `json:"location"`
	Status       string  `json:"status"`
	RunningHours float64 `json:"running_hours"`
	Critical     bool    `json:"critical"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	YachtID    string         `json:"yacht_id"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// ExecuteAction runs a named action. Error envelopes come back as the
// Envelope value, not a Go error; transport failures and non-action HTTP
// errors are returned as errors.
func (c *Client) ExecuteAction(ctx context.Context, name string, actionCtx map[string]any, payload map[string]any) (Envelope, error) {
	body := map[string]any{
		"yacht_id": c.YachtID,
		"context":  actionCtx,
		"payload":  payload,
	}
	var resp Envelope
	endpoint := fmt.Sprintf("v0/actions/%s", url.PathEscape(name))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	var apiErr *APIError
	if err != nil && asAPIError(err, &apiErr) {
		// Action rejections carry the envelope in the body.
		var env Envelope
		if jsonErr := json.Unmarshal([]byte(apiErr.Body), &env); jsonErr == nil && env.Status != "" {
			return env, nil
		}
	}
	return resp, err
}

// ListActions returns the catalog with per-role executability.
func (c *Client) ListActions(ctx context.Context) ([]ActionInfo, error) {
	var resp struct {
		Items []ActionInfo `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "v0/actions", nil, &resp)
	return resp.Items, err
}

// RoleActions returns the action names a role may execute.
func (c *Client) RoleActions(ctx context.Context, role string) ([]string, error) {
	var resp struct {
		Role    string   `json:"role"`
		Actions []string `json:"actions"`
	}
	endpoint := fmt.Sprintf("v0/roles/%s/actions", url.PathEscape(role))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Actions, err
}

// WorkOrders lists the yacht's work orders, optionally filtered by status.
func (c *Client) WorkOrders(ctx context.Context, status string) ([]WorkOrder, error) {
	var resp struct {
		Items []WorkOrder `json:"items"`
	}
	endpoint := c.yachtPath("work-orders")
	if status != "" {
		endpoint = fmt.Sprintf("%s?status=%s", endpoint, url.QueryEscape(status))
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// Equipment lists the yacht's equipment.
func (c *Client) Equipment(ctx context.Context) ([]Equipment, error) {
	var resp struct {
		Items []Equipment `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, c.yachtPath("equipment"), nil, &resp)
	return resp.Items, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, 0)
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, after int64) (PaginatedEvents, error) {
	endpoint := c.yachtPath("events")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if after > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%safter=%d", endpoint, sep, after)
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func asAPIError(err error, target **APIError) bool {
	e, ok := err.(*APIError)
	if ok {
		*target = e
	}
	return ok
}

func (c *Client) yachtPath(p string) string {
	yacht := url.PathEscape(c.YachtID)
	return fmt.Sprintf("v0/yachts/%s/%s", yacht, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
