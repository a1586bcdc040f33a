// Package lark implements the Lark (Feishu international) relay channel:
// webhook ingestion, inbound message extraction, and outbound delivery.
package lark

import "context"

// Type is the channel identifier used in logs and dispatched messages.
const Type = "lark"

// ChatType distinguishes direct (p2p) chats from group chats.
type ChatType string

const (
	ChatTypeDirect ChatType = "direct"
	ChatTypeGroup  ChatType = "group"
)

// Mention is a single @-mention carried by an inbound message.
type Mention struct {
	Key         string
	UserID      string
	DisplayName string
}

// InboundMessage is a validated, plain-text message extracted from a webhook
// or websocket event. It is handed to the Dispatcher and discarded afterwards.
type InboundMessage struct {
	Channel     string
	AccountID   string
	ChatID      string
	ChatType    ChatType
	SenderID    string
	Text        string
	MessageID   string
	Mentions    []Mention
	TimestampMs int64
}

// DispatchOptions tunes how the downstream reply engine handles a message.
type DispatchOptions struct {
	ThinkingThresholdMs int
}

// Dispatcher is the downstream reply engine. When no Dispatcher is configured
// the provider echoes inbound text back, which is mainly useful for testing a
// deployment without the full runtime.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg InboundMessage, opts DispatchOptions) error
}

// SendResult reports the outcome of an outbound send. Send APIs never return
// a Go error for transport failures; callers inspect OK.
type SendResult struct {
	OK        bool
	MessageID string
	Err       string
}

// StatusSink receives partial runtime-state patches (running, lastStartAt,
// lastStopAt, lastEventAt, lastInboundAt, lastOutboundAt, lastError). Write
// only and best effort; it must never block the pipeline.
type StatusSink func(patch map[string]any)

// MediaKind classifies outbound media for the kind-specific upload endpoints.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
	MediaKindAudio MediaKind = "audio"
	MediaKindFile  MediaKind = "file"
)
