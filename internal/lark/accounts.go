package lark

import (
	"sort"
	"strings"

	"github.com/larkrelay/larkrelay/internal/config"
)

// DefaultAccountID names the implicit account backed by the base
// [channels.lark] section.
const DefaultAccountID = "default"

// TokenSource records where an account's credentials came from.
type TokenSource string

const (
	TokenSourceConfig TokenSource = "config"
	TokenSourceNone   TokenSource = "none"
)

const (
	inboundModeWebhook   = "webhook"
	inboundModeWebsocket = "websocket"
)

// ResolvedAccount is a fully merged Lark account: base section defaults with
// per-account overrides applied, credentials resolved.
type ResolvedAccount struct {
	AccountID   string
	Name        string
	Enabled     bool
	AppID       string
	AppSecret   string
	TokenSource TokenSource
	Settings    config.LarkAccountSettings
}

// Configured reports whether the account carries usable credentials.
func (a ResolvedAccount) Configured() bool {
	return a.AppID != "" && a.AppSecret != ""
}

// WebhookPath returns the configured webhook path or the default.
func (a ResolvedAccount) WebhookPath() string {
	if path := strings.TrimSpace(a.Settings.WebhookPath); path != "" {
		return path
	}
	return config.DefaultWebhookPath
}

// InboundMode returns the configured inbound mode, defaulting to webhook.
func (a ResolvedAccount) InboundMode() string {
	if strings.TrimSpace(a.Settings.InboundMode) == inboundModeWebsocket {
		return inboundModeWebsocket
	}
	return inboundModeWebhook
}

// ThinkingThresholdMs returns the dispatcher thinking threshold (default 2500).
func (a ResolvedAccount) ThinkingThresholdMs() int {
	if a.Settings.ThinkingThreshold > 0 {
		return a.Settings.ThinkingThreshold
	}
	return 2500
}

// TextChunkLimit returns the outbound chunk limit (default 4000 runes).
func (a ResolvedAccount) TextChunkLimit() int {
	if a.Settings.TextChunkLimit > 0 {
		return a.Settings.TextChunkLimit
	}
	return 4000
}

// NormalizeAccountID lowercases and trims an account id, defaulting to
// DefaultAccountID when empty.
func NormalizeAccountID(accountID string) string {
	trimmed := strings.ToLower(strings.TrimSpace(accountID))
	if trimmed == "" {
		return DefaultAccountID
	}
	return trimmed
}

// ListAccountIDs lists configured account ids, falling back to the default.
func ListAccountIDs(cfg config.LarkConfig) []string {
	ids := make([]string, 0, len(cfg.Accounts))
	for id := range cfg.Accounts {
		if strings.TrimSpace(id) != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []string{DefaultAccountID}
	}
	sort.Strings(ids)
	return ids
}

// ResolveDefaultAccountID picks the account used when no id is given.
func ResolveDefaultAccountID(cfg config.LarkConfig) string {
	if id := strings.TrimSpace(cfg.DefaultAccount); id != "" {
		return id
	}
	ids := ListAccountIDs(cfg)
	for _, id := range ids {
		if id == DefaultAccountID {
			return id
		}
	}
	return ids[0]
}

// ResolveAccount merges the base channel section with the named account
// overrides and resolves credentials.
func ResolveAccount(cfg config.LarkConfig, accountID string) ResolvedAccount {
	id := NormalizeAccountID(accountID)
	baseEnabled := cfg.Enabled == nil || *cfg.Enabled
	merged := mergeSettings(cfg.LarkAccountSettings, cfg.Accounts[id])
	accountEnabled := merged.Enabled == nil || *merged.Enabled

	appID := strings.TrimSpace(merged.AppID)
	appSecret := strings.TrimSpace(merged.AppSecret)
	source := TokenSourceNone
	if appID != "" && appSecret != "" {
		source = TokenSourceConfig
	}

	return ResolvedAccount{
		AccountID:   id,
		Name:        strings.TrimSpace(merged.Name),
		Enabled:     baseEnabled && accountEnabled,
		AppID:       appID,
		AppSecret:   appSecret,
		TokenSource: source,
		Settings:    merged,
	}
}

// ListEnabledAccounts resolves every configured account and keeps the enabled
// ones.
func ListEnabledAccounts(cfg config.LarkConfig) []ResolvedAccount {
	ids := ListAccountIDs(cfg)
	accounts := make([]ResolvedAccount, 0, len(ids))
	for _, id := range ids {
		account := ResolveAccount(cfg, id)
		if account.Enabled {
			accounts = append(accounts, account)
		}
	}
	return accounts
}

// mergeSettings overlays account-level fields onto the base section. Zero
// values in the overlay keep the base value.
func mergeSettings(base, overlay config.LarkAccountSettings) config.LarkAccountSettings {
	merged := base
	if overlay.Name != "" {
		merged.Name = overlay.Name
	}
	if overlay.Enabled != nil {
		merged.Enabled = overlay.Enabled
	}
	if overlay.AppID != "" {
		merged.AppID = overlay.AppID
	}
	if overlay.AppSecret != "" {
		merged.AppSecret = overlay.AppSecret
	}
	if overlay.EncryptKey != "" {
		merged.EncryptKey = overlay.EncryptKey
	}
	if overlay.VerificationToken != "" {
		merged.VerificationToken = overlay.VerificationToken
	}
	if overlay.Region != "" {
		merged.Region = overlay.Region
	}
	if overlay.BaseURL != "" {
		merged.BaseURL = overlay.BaseURL
	}
	if overlay.InboundMode != "" {
		merged.InboundMode = overlay.InboundMode
	}
	if overlay.WebhookPath != "" {
		merged.WebhookPath = overlay.WebhookPath
	}
	if len(overlay.BotNames) > 0 {
		merged.BotNames = overlay.BotNames
	}
	if overlay.ThinkingThreshold > 0 {
		merged.ThinkingThreshold = overlay.ThinkingThreshold
	}
	if overlay.TextChunkLimit > 0 {
		merged.TextChunkLimit = overlay.TextChunkLimit
	}
	return merged
}
