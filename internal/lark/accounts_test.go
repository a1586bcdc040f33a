package lark

import (
	"testing"

	"github.com/larkrelay/larkrelay/internal/config"
)

func boolPtr(b bool) *bool { return &b }

func TestNormalizeAccountID(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":          DefaultAccountID,
		"  ":        DefaultAccountID,
		"Work":      "work",
		" TEAM-A  ": "team-a",
	}
	for in, want := range cases {
		if got := NormalizeAccountID(in); got != want {
			t.Fatalf("NormalizeAccountID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveAccount_BaseSectionOnly(t *testing.T) {
	t.Parallel()

	cfg := config.LarkConfig{
		LarkAccountSettings: config.LarkAccountSettings{
			AppID:     "cli_base",
			AppSecret: "secret_base",
		},
	}

	account := ResolveAccount(cfg, "")
	if account.AccountID != DefaultAccountID {
		t.Fatalf("unexpected account id: %s", account.AccountID)
	}
	if !account.Enabled {
		t.Fatal("account should default to enabled")
	}
	if !account.Configured() {
		t.Fatal("account with app id and secret must be configured")
	}
	if account.TokenSource != TokenSourceConfig {
		t.Fatalf("unexpected token source: %s", account.TokenSource)
	}
}

func TestResolveAccount_OverlayOverridesBase(t *testing.T) {
	t.Parallel()

	cfg := config.LarkConfig{
		LarkAccountSettings: config.LarkAccountSettings{
			AppID:      "cli_base",
			AppSecret:  "secret_base",
			EncryptKey: "base-key",
			BotNames:   []string{"BaseBot"},
		},
		Accounts: map[string]config.LarkAccountSettings{
			"work": {
				Name:      "Work",
				AppID:     "cli_work",
				AppSecret: "secret_work",
				BotNames:  []string{"WorkBot"},
			},
		},
	}

	account := ResolveAccount(cfg, "work")
	if account.AppID != "cli_work" || account.AppSecret != "secret_work" {
		t.Fatalf("overlay credentials not applied: %+v", account)
	}
	if account.Name != "Work" {
		t.Fatalf("unexpected name: %s", account.Name)
	}
	if account.Settings.EncryptKey != "base-key" {
		t.Fatal("base encrypt key must survive when the overlay leaves it empty")
	}
	if len(account.Settings.BotNames) != 1 || account.Settings.BotNames[0] != "WorkBot" {
		t.Fatalf("overlay bot names must replace base: %v", account.Settings.BotNames)
	}
}

func TestResolveAccount_Enabled(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		baseEnabled *bool
		acctEnabled *bool
		want        bool
	}{
		{name: "defaults on", want: true},
		{name: "base off disables all", baseEnabled: boolPtr(false), want: false},
		{name: "account off", acctEnabled: boolPtr(false), want: false},
		{name: "explicit on", baseEnabled: boolPtr(true), acctEnabled: boolPtr(true), want: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.LarkConfig{
				LarkAccountSettings: config.LarkAccountSettings{AppID: "a", AppSecret: "s"},
				Accounts: map[string]config.LarkAccountSettings{
					"work": {Enabled: tc.acctEnabled},
				},
			}
			cfg.Enabled = tc.baseEnabled
			if got := ResolveAccount(cfg, "work").Enabled; got != tc.want {
				t.Fatalf("Enabled = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestResolveAccount_UnconfiguredHasNoTokenSource(t *testing.T) {
	t.Parallel()

	account := ResolveAccount(config.LarkConfig{}, "")
	if account.Configured() {
		t.Fatal("empty config must not be configured")
	}
	if account.TokenSource != TokenSourceNone {
		t.Fatalf("unexpected token source: %s", account.TokenSource)
	}
}

func TestResolvedAccount_Defaults(t *testing.T) {
	t.Parallel()

	account := ResolvedAccount{}
	if got := account.WebhookPath(); got != config.DefaultWebhookPath {
		t.Fatalf("unexpected webhook path: %s", got)
	}
	if got := account.InboundMode(); got != inboundModeWebhook {
		t.Fatalf("unexpected inbound mode: %s", got)
	}
	if got := account.ThinkingThresholdMs(); got != 2500 {
		t.Fatalf("unexpected thinking threshold: %d", got)
	}
	if got := account.TextChunkLimit(); got != 4000 {
		t.Fatalf("unexpected chunk limit: %d", got)
	}
}

func TestResolvedAccount_SettingsOverrides(t *testing.T) {
	t.Parallel()

	account := ResolvedAccount{Settings: config.LarkAccountSettings{
		WebhookPath:       "/hooks/lark",
		InboundMode:       "websocket",
		ThinkingThreshold: 1200,
		TextChunkLimit:    800,
	}}
	if got := account.WebhookPath(); got != "/hooks/lark" {
		t.Fatalf("unexpected webhook path: %s", got)
	}
	if got := account.InboundMode(); got != inboundModeWebsocket {
		t.Fatalf("unexpected inbound mode: %s", got)
	}
	if got := account.ThinkingThresholdMs(); got != 1200 {
		t.Fatalf("unexpected thinking threshold: %d", got)
	}
	if got := account.TextChunkLimit(); got != 800 {
		t.Fatalf("unexpected chunk limit: %d", got)
	}
}

func TestListAccountIDs(t *testing.T) {
	t.Parallel()

	if ids := ListAccountIDs(config.LarkConfig{}); len(ids) != 1 || ids[0] != DefaultAccountID {
		t.Fatalf("empty config must list the default account, got %v", ids)
	}

	cfg := config.LarkConfig{Accounts: map[string]config.LarkAccountSettings{
		"zeta": {}, "alpha": {}, " ": {},
	}}
	ids := ListAccountIDs(cfg)
	if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "zeta" {
		t.Fatalf("ids must be sorted with blanks dropped, got %v", ids)
	}
}

func TestResolveDefaultAccountID(t *testing.T) {
	t.Parallel()

	if got := ResolveDefaultAccountID(config.LarkConfig{DefaultAccount: "work"}); got != "work" {
		t.Fatalf("explicit default ignored: %s", got)
	}

	cfg := config.LarkConfig{Accounts: map[string]config.LarkAccountSettings{
		"default": {}, "work": {},
	}}
	if got := ResolveDefaultAccountID(cfg); got != DefaultAccountID {
		t.Fatalf("default account must win when present: %s", got)
	}

	cfg = config.LarkConfig{Accounts: map[string]config.LarkAccountSettings{
		"zeta": {}, "alpha": {},
	}}
	if got := ResolveDefaultAccountID(cfg); got != "alpha" {
		t.Fatalf("first sorted id expected, got %s", got)
	}
}

func TestListEnabledAccounts(t *testing.T) {
	t.Parallel()

	cfg := config.LarkConfig{
		LarkAccountSettings: config.LarkAccountSettings{AppID: "a", AppSecret: "s"},
		Accounts: map[string]config.LarkAccountSettings{
			"work": {},
			"off":  {Enabled: boolPtr(false)},
		},
	}
	accounts := ListEnabledAccounts(cfg)
	if len(accounts) != 1 || accounts[0].AccountID != "work" {
		t.Fatalf("unexpected enabled accounts: %+v", accounts)
	}
}
