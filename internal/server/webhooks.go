package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"fleetline/internal/config"
	"fleetline/internal/domain"
	"fleetline/internal/engine"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// deliveryHook is a webhook config resolved at startup: filter compiled,
// yacht scope normalized, client sized to the hook's timeout.
type deliveryHook struct {
	url     string
	yachtID string
	secret  string
	filter  eventFilter
	client  *http.Client
}

// webhookDispatcher tails the fleet event log and fans each new event out to
// the configured hooks. One fetch per tick covers all hooks; each hook keeps
// its own cursor so a failing endpoint does not hold the others back.
type webhookDispatcher struct {
	engine engine.Engine
	hooks  []deliveryHook

	mu      sync.Mutex
	cursors map[int]int64

	stop chan struct{}
}

func startWebhookDispatcher(e engine.Engine) *webhookDispatcher {
	if e.Config == nil {
		return nil
	}
	d := newWebhookDispatcher(e, e.Config.Webhooks)
	if d == nil {
		return nil
	}
	go d.run()
	return d
}

func newWebhookDispatcher(e engine.Engine, configs []config.WebhookConfig) *webhookDispatcher {
	var hooks []deliveryHook
	for _, hook := range configs {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		timeout := defaultWebhookTimeout
		if hook.TimeoutSeconds > 0 {
			timeout = time.Duration(hook.TimeoutSeconds) * time.Second
		}
		hooks = append(hooks, deliveryHook{
			url:     hook.URL,
			yachtID: strings.TrimSpace(hook.YachtID),
			secret:  strings.TrimSpace(hook.Secret),
			filter:  newEventFilter(hook.Events),
			client:  &http.Client{Timeout: timeout},
		})
	}
	if len(hooks) == 0 {
		return nil
	}
	return &webhookDispatcher{
		engine:  e,
		hooks:   hooks,
		cursors: make(map[int]int64),
		stop:    make(chan struct{}),
	}
}

func (d *webhookDispatcher) run() {
	ticker := time.NewTicker(defaultWebhookInterval)
	defer ticker.Stop()
	for {
		d.dispatchOnce(context.Background())
		select {
		case <-ticker.C:
		case <-d.stop:
			return
		}
	}
}

func (d *webhookDispatcher) Stop() {
	close(d.stop)
}

// dispatchOnce fetches events past the slowest cursor once and fans them out.
// A hook that fails delivery keeps its cursor so the event is retried next
// tick; hooks whose scope or filter reject an event advance past it.
func (d *webhookDispatcher) dispatchOnce(ctx context.Context) {
	floor, ok := d.cursorFloor(ctx)
	if !ok {
		return
	}
	events, err := d.engine.Repo.EventsAfter(ctx, defaultWebhookBatch, floor, "")
	if err != nil {
		log.Printf("webhook: fetch events failed: %v", err)
		return
	}
	stalled := make(map[int]bool, len(d.hooks))
	for _, evt := range events {
		for i, hook := range d.hooks {
			if stalled[i] || d.cursor(i) >= evt.ID {
				continue
			}
			if hook.yachtID != "" && hook.yachtID != evt.YachtID {
				d.setCursor(i, evt.ID)
				continue
			}
			if !hook.filter.match(evt.Type) {
				d.setCursor(i, evt.ID)
				continue
			}
			if err := hook.deliver(ctx, evt); err != nil {
				log.Printf("webhook: deliver to %s failed: %v", hook.url, err)
				stalled[i] = true
				continue
			}
			d.setCursor(i, evt.ID)
		}
	}
}

// cursorFloor returns the lowest hook cursor, seeding fresh cursors at the
// current end of the log so only events after startup are delivered.
func (d *webhookDispatcher) cursorFloor(ctx context.Context) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.cursors) < len(d.hooks) {
		latest, err := d.engine.Repo.LatestEventID(ctx, "")
		if err != nil {
			log.Printf("webhook: init cursor failed: %v", err)
			return 0, false
		}
		for i := range d.hooks {
			if _, ok := d.cursors[i]; !ok {
				d.cursors[i] = latest
			}
		}
	}
	floor := int64(-1)
	for _, cur := range d.cursors {
		if floor < 0 || cur < floor {
			floor = cur
		}
	}
	return floor, floor >= 0
}

func (d *webhookDispatcher) cursor(idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursors[idx]
}

func (d *webhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type webhookEvent struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	YachtID    string          `json:"yacht_id"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
	PayloadRaw string          `json:"payload_raw,omitempty"`
}

func (h deliveryHook) deliver(ctx context.Context, evt domain.Event) error {
	payload := json.RawMessage([]byte("{}"))
	var raw string
	if evt.Payload != "" {
		if json.Valid([]byte(evt.Payload)) {
			payload = json.RawMessage([]byte(evt.Payload))
		} else {
			raw = evt.Payload
		}
	}
	body := webhookEvent{
		ID:         evt.ID,
		Type:       evt.Type,
		YachtID:    evt.YachtID,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		TS:         evt.TS,
		Payload:    payload,
		PayloadRaw: raw,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Fleetline-Event", evt.Type)
	req.Header.Set("X-Fleetline-Delivery", fmt.Sprintf("%d", evt.ID))
	req.Header.Set("X-Fleetline-Yacht", evt.YachtID)
	if h.secret != "" {
		req.Header.Set("X-Fleetline-Signature", signWebhookBody(h.secret, data))
	}
	res, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

// signWebhookBody returns the delivery signature: an HMAC-SHA256 of the body
// keyed by the hook secret. The secret itself never travels with the request.
func signWebhookBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// eventFilter matches event types. An entry ending in ".*" matches the whole
// family, so "work_order.*" covers created, started, assigned, closed.
type eventFilter struct {
	all      bool
	exact    map[string]struct{}
	prefixes []string
}

func newEventFilter(events []string) eventFilter {
	f := eventFilter{exact: make(map[string]struct{})}
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		switch {
		case key == "":
		case key == "*":
			f.all = true
		case strings.HasSuffix(key, ".*"):
			f.prefixes = append(f.prefixes, strings.TrimSuffix(key, "*"))
		default:
			f.exact[key] = struct{}{}
		}
	}
	if len(f.exact) == 0 && len(f.prefixes) == 0 {
		f.all = true
	}
	return f
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	if _, ok := f.exact[evt]; ok {
		return true
	}
	for _, prefix := range f.prefixes {
		if strings.HasPrefix(evt, prefix) {
			return true
		}
	}
	return false
}
