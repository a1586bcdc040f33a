package lark

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
)

const streamReconnectDelay = 3 * time.Second

type streamClient struct {
	cancel context.CancelFunc
}

// Start connects the websocket inbound stream when the account is configured
// with inbound_mode "websocket". Webhook-mode accounts are a no-op: their
// events arrive over HTTP. The connection reconnects until ctx is cancelled
// or Stop is called.
func (p *Provider) Start(ctx context.Context) error {
	p.patchStatus(map[string]any{"running": true, "lastStartAt": time.Now().UnixMilli()})
	if p.account.Configured() {
		go p.discoverIdentity(ctx)
	}
	if p.account.InboundMode() != inboundModeWebsocket {
		p.logger.Info("webhook mode enabled; websocket connect skipped")
		return nil
	}
	if !p.account.Configured() {
		return fmt.Errorf("account %q has no app credentials", p.account.AccountID)
	}

	connCtx, cancel := context.WithCancel(ctx)
	p.stream = &streamClient{cancel: cancel}

	newClient := func() *larkws.Client {
		eventDispatcher := dispatcher.NewEventDispatcher(
			p.account.Settings.VerificationToken,
			p.account.Settings.EncryptKey,
		)
		eventDispatcher.OnP2MessageReceiveV1(func(_ context.Context, event *larkim.P2MessageReceiveV1) error {
			if connCtx.Err() != nil {
				return nil
			}
			header := eventHeader{}
			if event != nil && event.EventV2Base != nil && event.EventV2Base.Header != nil {
				header.EventID = event.EventV2Base.Header.EventID
				header.EventType = event.EventV2Base.Header.EventType
				header.CreateTime = event.EventV2Base.Header.CreateTime
			}
			if p.events.CheckAndMark(strings.TrimSpace(header.EventID)) {
				p.logger.Debug("skipping duplicate event", slog.String("event_id", header.EventID))
				return nil
			}
			body := convertStreamMessage(event)
			go func() {
				defer func() {
					if r := recover(); r != nil {
						p.logger.Error("panic while processing event", slog.Any("panic", r))
					}
				}()
				p.handleMessage(connCtx, body)
			}()
			return nil
		})
		return larkws.NewClient(
			p.account.AppID,
			p.account.AppSecret,
			larkws.WithEventHandler(eventDispatcher),
			larkws.WithDomain(p.account.openBaseURL()),
			larkws.WithLogger(newStreamSlogLogger(p.logger)),
			larkws.WithLogLevel(larkcore.LogLevelInfo),
		)
	}

	go func() {
		for {
			if connCtx.Err() != nil {
				return
			}
			client := newClient()
			err := client.Start(connCtx)
			if connCtx.Err() != nil {
				return
			}
			if err != nil {
				p.logger.Error("websocket start failed", slog.Any("error", err))
			} else {
				p.logger.Warn("websocket exited without error; reconnecting")
			}
			timer := time.NewTimer(streamReconnectDelay)
			select {
			case <-connCtx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
	return nil
}

// Stop tears down the websocket stream if one is running.
func (p *Provider) Stop() {
	if p.stream != nil {
		p.stream.cancel()
		p.stream = nil
	}
	p.patchStatus(map[string]any{"running": false, "lastStopAt": time.Now().UnixMilli()})
}

// discoverIdentity labels the provider's status with the bot identity. Best
// effort: a failed lookup is logged and the provider keeps running.
func (p *Provider) discoverIdentity(ctx context.Context) {
	info, err := DiscoverBot(ctx, p.account)
	if err != nil {
		p.logger.Warn("bot identity lookup failed", slog.Any("error", err))
		return
	}
	p.logger.Info("bot identity resolved",
		slog.String("bot_name", info.AppName),
		slog.String("bot_open_id", info.OpenID),
	)
	p.patchStatus(map[string]any{"botName": info.AppName, "botOpenId": info.OpenID})
}

// convertStreamMessage maps an SDK push event onto the wire shape the
// webhook path parses, so both paths run the same pipeline.
func convertStreamMessage(event *larkim.P2MessageReceiveV1) messageEventBody {
	body := messageEventBody{}
	if event == nil || event.Event == nil {
		return body
	}
	e := event.Event
	if e.Sender != nil && e.Sender.SenderId != nil && e.Sender.SenderId.OpenId != nil {
		body.Sender.SenderID.OpenID = *e.Sender.SenderId.OpenId
	}
	if e.Message == nil {
		return body
	}
	m := e.Message
	if m.MessageId != nil {
		body.Message.MessageID = *m.MessageId
	}
	if m.ChatId != nil {
		body.Message.ChatID = *m.ChatId
	}
	if m.ChatType != nil {
		body.Message.ChatType = *m.ChatType
	}
	if m.MessageType != nil {
		body.Message.MessageType = *m.MessageType
	}
	if m.Content != nil {
		body.Message.Content = *m.Content
	}
	if m.CreateTime != nil {
		body.Message.CreateTime = *m.CreateTime
	}
	for _, mention := range m.Mentions {
		if mention == nil {
			continue
		}
		entry := mentionEntry{}
		if mention.Key != nil {
			entry.Key = *mention.Key
		}
		if mention.Id != nil && mention.Id.OpenId != nil {
			entry.ID.OpenID = *mention.Id.OpenId
		}
		if mention.Name != nil {
			entry.Name = *mention.Name
		}
		body.Message.Mentions = append(body.Message.Mentions, entry)
	}
	return body
}

// streamSlogLogger adapts slog to the SDK logger interface so websocket
// client logs land in the same structured stream as everything else.
type streamSlogLogger struct {
	logger *slog.Logger
}

func newStreamSlogLogger(logger *slog.Logger) *streamSlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &streamSlogLogger{logger: logger.With(slog.String("component", "lark_ws"))}
}

func (l *streamSlogLogger) Debug(ctx context.Context, args ...interface{}) {
	l.logger.DebugContext(ctx, fmt.Sprint(args...))
}

func (l *streamSlogLogger) Info(ctx context.Context, args ...interface{}) {
	l.logger.InfoContext(ctx, fmt.Sprint(args...))
}

func (l *streamSlogLogger) Warn(ctx context.Context, args ...interface{}) {
	l.logger.WarnContext(ctx, fmt.Sprint(args...))
}

func (l *streamSlogLogger) Error(ctx context.Context, args ...interface{}) {
	l.logger.ErrorContext(ctx, fmt.Sprint(args...))
}
