package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/larkrelay/larkrelay/internal/lark"
)

// StatusRegistry collects runtime status patches per account. Providers push
// patches through a Sink; the status endpoint reads merged snapshots.
type StatusRegistry struct {
	mu       sync.RWMutex
	accounts map[string]map[string]any
}

func NewStatusRegistry() *StatusRegistry {
	return &StatusRegistry{accounts: make(map[string]map[string]any)}
}

// Sink returns a StatusSink bound to one account id.
func (r *StatusRegistry) Sink(accountID string) lark.StatusSink {
	return func(patch map[string]any) {
		r.Update(accountID, patch)
	}
}

// Update merges a patch into the account's status map.
func (r *StatusRegistry) Update(accountID string, patch map[string]any) {
	if len(patch) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.accounts[accountID]
	if !ok {
		current = make(map[string]any, len(patch))
		r.accounts[accountID] = current
	}
	for key, value := range patch {
		current[key] = value
	}
}

// Snapshot returns a copy of an account's status map.
func (r *StatusRegistry) Snapshot(accountID string) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	current := r.accounts[accountID]
	snapshot := make(map[string]any, len(current))
	for key, value := range current {
		snapshot[key] = value
	}
	return snapshot
}

type accountStatus struct {
	AccountID   string         `json:"account_id"`
	Name        string         `json:"name,omitempty"`
	Configured  bool           `json:"configured"`
	InboundMode string         `json:"inbound_mode"`
	WebhookPath string         `json:"webhook_path"`
	Runtime     map[string]any `json:"runtime"`
}

// StatusHandler exposes the relay's per-account channel status.
type StatusHandler struct {
	logger   *slog.Logger
	registry *StatusRegistry
	accounts []lark.ResolvedAccount
	started  time.Time
}

func NewStatusHandler(log *slog.Logger, registry *StatusRegistry, accounts []lark.ResolvedAccount) *StatusHandler {
	return &StatusHandler{
		logger:   log.With(slog.String("handler", "lark_status")),
		registry: registry,
		accounts: accounts,
		started:  time.Now(),
	}
}

func (h *StatusHandler) Register(e *echo.Echo) {
	e.GET("/channels/lark/status", h.Status)
}

func (h *StatusHandler) Status(c echo.Context) error {
	statuses := make([]accountStatus, 0, len(h.accounts))
	for _, account := range h.accounts {
		statuses = append(statuses, accountStatus{
			AccountID:   account.AccountID,
			Name:        account.Name,
			Configured:  account.Configured(),
			InboundMode: account.InboundMode(),
			WebhookPath: account.WebhookPath(),
			Runtime:     h.registry.Snapshot(account.AccountID),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"channel":       lark.Type,
		"uptime_ms":     time.Since(h.started).Milliseconds(),
		"accounts":      statuses,
		"account_count": len(statuses),
	})
}
