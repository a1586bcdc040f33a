package lark

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
)

// DefaultProbeTimeout bounds the credential probe request.
const DefaultProbeTimeout = 5 * time.Second

// ErrProbeTimeout reports that the platform did not answer within the
// probe deadline, as opposed to rejecting the credentials.
var ErrProbeTimeout = errors.New("credential probe timed out")

// ProbeResult is the outcome of a credential check against the platform
// token endpoint.
type ProbeResult struct {
	OK        bool   `json:"ok"`
	Code      int    `json:"code"`
	Msg       string `json:"msg,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// BotInfo is the bot identity reported by the platform.
type BotInfo struct {
	OpenID    string `json:"open_id"`
	AppName   string `json:"app_name"`
	AvatarURL string `json:"avatar_url"`
}

// ProbeCredentials verifies an account's app credentials by requesting a
// tenant access token. It never inspects the token itself; only whether the
// platform grants one. A timeout is reported as ErrProbeTimeout so callers
// can tell unreachable apart from rejected.
func ProbeCredentials(ctx context.Context, account ResolvedAccount, timeout time.Duration) (ProbeResult, error) {
	if !account.Configured() {
		return ProbeResult{}, fmt.Errorf("account %q has no app credentials", account.AccountID)
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{
		"app_id":     account.AppID,
		"app_secret": account.AppSecret,
	})
	if err != nil {
		return ProbeResult{}, fmt.Errorf("marshal probe payload: %w", err)
	}

	endpoint := account.openBaseURL() + "/open-apis/auth/v3/tenant_access_token/internal"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return ProbeResult{}, fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := http.DefaultClient.Do(req)
	elapsed := time.Since(started).Milliseconds()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || (ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
			return ProbeResult{ElapsedMs: elapsed}, ErrProbeTimeout
		}
		return ProbeResult{ElapsedMs: elapsed}, fmt.Errorf("probe request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var body struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return ProbeResult{ElapsedMs: elapsed}, fmt.Errorf("read probe response: %w", err)
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ProbeResult{ElapsedMs: elapsed}, fmt.Errorf("parse probe response (status %d): %w", resp.StatusCode, err)
	}
	return ProbeResult{
		OK:        body.Code == 0,
		Code:      body.Code,
		Msg:       body.Msg,
		ElapsedMs: elapsed,
	}, nil
}

// DiscoverBot retrieves the bot's own identity from the platform.
func DiscoverBot(ctx context.Context, account ResolvedAccount) (BotInfo, error) {
	if !account.Configured() {
		return BotInfo{}, fmt.Errorf("account %q has no app credentials", account.AccountID)
	}
	client := newAPIClient(account)
	resp, err := client.Get(ctx, "/open-apis/bot/v3/info", nil, larkcore.AccessTokenTypeTenant)
	if err != nil {
		return BotInfo{}, fmt.Errorf("discover bot: %w", err)
	}
	var body struct {
		Code int     `json:"code"`
		Msg  string  `json:"msg"`
		Bot  BotInfo `json:"bot"`
	}
	if err := json.Unmarshal(resp.RawBody, &body); err != nil {
		return BotInfo{}, fmt.Errorf("discover bot: parse response: %w", err)
	}
	if body.Code != 0 {
		return BotInfo{}, fmt.Errorf("discover bot: %s (code: %d)", body.Msg, body.Code)
	}
	if strings.TrimSpace(body.Bot.OpenID) == "" {
		return BotInfo{}, fmt.Errorf("discover bot: empty open_id")
	}
	return body.Bot, nil
}
