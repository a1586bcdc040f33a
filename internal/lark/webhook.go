package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	larkevent "github.com/larksuite/oapi-sdk-go/v3/event"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"github.com/larkrelay/larkrelay/internal/dedup"
)

const webhookMaxBodyBytes int64 = 1 << 20 // 1 MiB

const eventTypeMessageReceive = "im.message.receive_v1"

// mentionPlaceholderPattern matches the inline @-placeholders the platform
// injects into message text for each mention, e.g. "@_user_1 ".
var mentionPlaceholderPattern = regexp.MustCompile(`@_user_\d+\s*`)

type eventHeader struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	CreateTime string `json:"create_time"`
	Token      string `json:"token"`
}

type eventEnvelope struct {
	Encrypt   string          `json:"encrypt"`
	Schema    string          `json:"schema"`
	Token     string          `json:"token"`
	Type      string          `json:"type"`
	Challenge string          `json:"challenge"`
	Header    *eventHeader    `json:"header"`
	Event     json.RawMessage `json:"event"`
}

type mentionEntry struct {
	Key string `json:"key"`
	ID  struct {
		OpenID string `json:"open_id"`
	} `json:"id"`
	Name string `json:"name"`
}

type messageEventBody struct {
	Sender struct {
		SenderID struct {
			OpenID string `json:"open_id"`
		} `json:"sender_id"`
	} `json:"sender"`
	Message struct {
		MessageID   string         `json:"message_id"`
		ChatID      string         `json:"chat_id"`
		ChatType    string         `json:"chat_type"`
		MessageType string         `json:"message_type"`
		Content     string         `json:"content"`
		CreateTime  string         `json:"create_time"`
		Mentions    []mentionEntry `json:"mentions"`
	} `json:"message"`
}

type textSender interface {
	SendText(ctx context.Context, chatID, text, replyToID string) SendResult
}

// ProviderOptions configures a webhook Provider for one account.
type ProviderOptions struct {
	Account    ResolvedAccount
	Logger     *slog.Logger
	Dispatcher Dispatcher
	StatusSink StatusSink
	// Sender overrides the SDK-backed sender; nil builds one from Account.
	Sender textSender
}

// Provider receives platform event callbacks for a single account, filters
// and deduplicates them, and hands accepted messages to the dispatcher.
type Provider struct {
	logger     *slog.Logger
	account    ResolvedAccount
	dispatcher Dispatcher
	statusSink StatusSink
	sender     textSender

	events   *dedup.Cache
	messages *dedup.Cache

	stream *streamClient
}

// NewProvider builds a Provider from options.
func NewProvider(opts ProviderOptions) *Provider {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("adapter", Type), slog.String("account_id", opts.Account.AccountID))
	sender := opts.Sender
	if sender == nil {
		sender = NewSender(opts.Logger, opts.Account)
	}
	return &Provider{
		logger:     log,
		account:    opts.Account,
		dispatcher: opts.Dispatcher,
		statusSink: opts.StatusSink,
		sender:     sender,
		events:     dedup.New(dedup.DefaultCapacity, dedup.DefaultTTL),
		messages:   dedup.New(dedup.DefaultCapacity, dedup.DefaultTTL),
	}
}

// Account returns the resolved account this provider serves.
func (p *Provider) Account() ResolvedAccount {
	return p.account
}

// Register registers the webhook callback routes for this account.
func (p *Provider) Register(e *echo.Echo) {
	path := p.account.WebhookPath()
	e.GET(path, p.HandleProbe)
	e.POST(path, p.Handle)
}

// HandleProbe responds to health/probe requests on the webhook URL.
func (p *Provider) HandleProbe(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Handle processes one event-subscription callback. The pipeline is: read
// and bound the body, parse, decrypt if needed, answer URL-verification
// challenges, validate the callback token, drop duplicate events, then ack
// with {"code":0} and process the event asynchronously so platform retries
// are never triggered by slow downstream work.
func (p *Provider) Handle(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookMaxBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
	}
	if int64(len(payload)) > webhookMaxBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("payload too large: max %d bytes", webhookMaxBodyBytes))
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
	}

	if envelope.Encrypt != "" && strings.TrimSpace(p.account.Settings.EncryptKey) != "" {
		plain, err := decryptEvent(envelope.Encrypt, p.account.Settings.EncryptKey)
		if err != nil {
			p.logger.Warn("webhook decrypt failed", slog.Any("error", err))
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Decrypt failed"})
		}
		envelope = eventEnvelope{}
		if err := json.Unmarshal(plain, &envelope); err != nil {
			p.logger.Warn("decrypted webhook payload is not JSON", slog.Any("error", err))
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Decrypt failed"})
		}
	}

	if larkevent.ReqType(strings.TrimSpace(envelope.Type)) == larkevent.ReqTypeChallenge {
		return c.JSON(http.StatusOK, map[string]string{"challenge": envelope.Challenge})
	}

	if err := p.validateCallbackToken(envelope); err != nil {
		return err
	}

	eventID := ""
	if envelope.Header != nil {
		eventID = strings.TrimSpace(envelope.Header.EventID)
	}
	if p.events.CheckAndMark(eventID) {
		p.logger.Debug("skipping duplicate event", slog.String("event_id", eventID))
		return c.JSON(http.StatusOK, map[string]int{"code": 0})
	}

	p.patchStatus(map[string]any{"lastEventAt": time.Now().UnixMilli()})

	ctx := context.WithoutCancel(c.Request().Context())
	go p.processEvent(ctx, envelope)

	return c.JSON(http.StatusOK, map[string]int{"code": 0})
}

// validateCallbackToken enforces the verification token on plaintext
// callbacks. Encrypted callbacks are authenticated by decryption itself, so
// the token check only applies when no encrypt key is configured.
func (p *Provider) validateCallbackToken(envelope eventEnvelope) error {
	if strings.TrimSpace(p.account.Settings.EncryptKey) != "" {
		return nil
	}
	expectedToken := strings.TrimSpace(p.account.Settings.VerificationToken)
	if expectedToken == "" {
		return nil
	}
	requestToken := strings.TrimSpace(envelope.Token)
	if envelope.Header != nil && strings.TrimSpace(envelope.Header.Token) != "" {
		requestToken = strings.TrimSpace(envelope.Header.Token)
	}
	if requestToken != expectedToken {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook token")
	}
	return nil
}

// processEvent runs after the webhook has been acked. Panics and errors are
// contained here so a bad event can never crash the receiver.
func (p *Provider) processEvent(ctx context.Context, envelope eventEnvelope) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic while processing event", slog.Any("panic", r))
		}
	}()

	if envelope.Header == nil || envelope.Header.EventType != eventTypeMessageReceive {
		return
	}
	var body messageEventBody
	if err := json.Unmarshal(envelope.Event, &body); err != nil {
		p.logger.Warn("malformed message event", slog.Any("error", err))
		return
	}
	p.handleMessage(ctx, body)
}

// handleMessage applies the message-level pipeline shared by the webhook and
// websocket inbound paths: dedup, text extraction, mention stripping, the
// group response gate, then dispatch (or echo when no dispatcher is wired).
func (p *Provider) handleMessage(ctx context.Context, body messageEventBody) {
	messageID := strings.TrimSpace(body.Message.MessageID)
	if p.messages.CheckAndMark(messageID) {
		p.logger.Debug("skipping duplicate message", slog.String("message_id", messageID))
		return
	}

	text, ok := p.extractText(body.Message.MessageType, body.Message.Content)
	if !ok {
		return
	}
	text = strings.TrimSpace(text)

	mentions := make([]Mention, 0, len(body.Message.Mentions))
	for _, m := range body.Message.Mentions {
		mentions = append(mentions, Mention{
			Key:         m.Key,
			UserID:      m.ID.OpenID,
			DisplayName: m.Name,
		})
	}

	chatType := ChatTypeGroup
	if body.Message.ChatType == "p2p" {
		chatType = ChatTypeDirect
	}
	if chatType == ChatTypeGroup {
		// Mention placeholders are only injected for group @-mentions; direct
		// chat text is relayed as received.
		text = strings.TrimSpace(mentionPlaceholderPattern.ReplaceAllString(text, ""))
		if !ShouldRespondInGroup(text, mentions, p.account.Settings.BotNames) {
			p.logger.Debug("group message did not pass response gate", slog.String("chat_id", body.Message.ChatID))
			return
		}
	}
	if text == "" {
		return
	}

	timestampMs, _ := strconv.ParseInt(strings.TrimSpace(body.Message.CreateTime), 10, 64)
	msg := InboundMessage{
		Channel:     Type,
		AccountID:   p.account.AccountID,
		ChatID:      body.Message.ChatID,
		ChatType:    chatType,
		SenderID:    body.Sender.SenderID.OpenID,
		Text:        text,
		MessageID:   messageID,
		Mentions:    mentions,
		TimestampMs: timestampMs,
	}

	p.patchStatus(map[string]any{"lastInboundAt": time.Now().UnixMilli()})

	if p.dispatcher == nil {
		result := p.sender.SendText(ctx, msg.ChatID, "Echo: "+msg.Text, "")
		if !result.OK {
			p.logger.Error("echo reply failed", slog.String("chat_id", msg.ChatID), slog.String("error", result.Err))
			p.patchStatus(map[string]any{"lastError": result.Err})
			return
		}
		p.patchStatus(map[string]any{"lastOutboundAt": time.Now().UnixMilli()})
		return
	}
	opts := DispatchOptions{ThinkingThresholdMs: p.account.ThinkingThresholdMs()}
	if err := p.dispatcher.Dispatch(ctx, msg, opts); err != nil {
		p.logger.Error("dispatch failed",
			slog.String("chat_id", msg.ChatID),
			slog.String("message_id", msg.MessageID),
			slog.Any("error", err),
		)
		p.patchStatus(map[string]any{"lastError": err.Error()})
		return
	}
	p.patchStatus(map[string]any{"lastOutboundAt": time.Now().UnixMilli()})
}

// extractText pulls plain text out of a message payload. Only text and
// rich-text (post) messages are relayed; everything else is dropped.
func (p *Provider) extractText(messageType, content string) (string, bool) {
	switch messageType {
	case larkim.MsgTypeText:
		var parsed struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			p.logger.Warn("malformed text content", slog.Any("error", err))
			return "", false
		}
		return parsed.Text, true
	case larkim.MsgTypePost:
		var parsed map[string]any
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			p.logger.Warn("malformed post content", slog.Any("error", err))
			return "", false
		}
		return ExtractPostText(parsed), true
	default:
		p.logger.Debug("ignoring unsupported message type", slog.String("message_type", messageType))
		return "", false
	}
}

func (p *Provider) patchStatus(patch map[string]any) {
	if p.statusSink == nil {
		return
	}
	p.statusSink(patch)
}
