package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
)

type messageAPI interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
	Reply(ctx context.Context, req *larkim.ReplyMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.ReplyMessageResp, error)
	Update(ctx context.Context, req *larkim.UpdateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.UpdateMessageResp, error)
	Delete(ctx context.Context, req *larkim.DeleteMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.DeleteMessageResp, error)
}

type imageAPI interface {
	Create(ctx context.Context, req *larkim.CreateImageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateImageResp, error)
}

type fileAPI interface {
	Create(ctx context.Context, req *larkim.CreateFileReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateFileResp, error)
}

// Sender delivers outbound text and media to Lark chats. Transport failures
// are reported through SendResult, never as panics or returned errors.
type Sender struct {
	logger   *slog.Logger
	messages messageAPI
	images   imageAPI
	files    fileAPI

	chunkLimit int
}

// NewSender builds a Sender backed by the platform SDK client for an account.
func NewSender(log *slog.Logger, account ResolvedAccount) *Sender {
	if log == nil {
		log = slog.Default()
	}
	client := newAPIClient(account)
	return &Sender{
		logger:     log.With(slog.String("adapter", Type), slog.String("account_id", account.AccountID)),
		messages:   client.Im.V1.Message,
		images:     client.Im.V1.Image,
		files:      client.Im.V1.File,
		chunkLimit: account.TextChunkLimit(),
	}
}

// SendText sends text to a chat, splitting oversized text into multiple
// messages. When replyToID is given every chunk is sent as a threaded reply;
// otherwise messages are addressed by chat id. The returned result carries
// the id of the last delivered message.
func (s *Sender) SendText(ctx context.Context, chatID, text, replyToID string) SendResult {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return SendResult{Err: "no chat_id provided"}
	}

	chunks := SplitText(text, s.chunkLimit)
	if len(chunks) == 0 {
		return SendResult{Err: "no text to send"}
	}
	result := SendResult{}
	for _, chunk := range chunks {
		result = s.sendSingle(ctx, chatID, larkim.MsgTypeText, textContent(chunk), replyToID)
		if !result.OK {
			return result
		}
	}
	return result
}

// SendMedia downloads the media source, uploads it through the kind-specific
// endpoint, and sends it as a message; caption text follows as a separate
// message. On any failure the caption plus the raw URL is sent as plain text
// so the recipient always gets something. A downloaded temp file is removed
// on every path.
func (s *Sender) SendMedia(ctx context.Context, chatID, mediaURL, caption, replyToID string) SendResult {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return SendResult{Err: "no chat_id provided"}
	}
	mediaURL = strings.TrimSpace(mediaURL)
	if mediaURL == "" {
		return SendResult{Err: "no media URL provided"}
	}

	result, err := s.sendMediaUpload(ctx, chatID, mediaURL, caption, replyToID)
	if err == nil {
		return result
	}
	s.logger.Warn("media send failed; falling back to text",
		slog.String("chat_id", chatID),
		slog.Any("error", err),
	)

	fallback := mediaURL
	if strings.TrimSpace(caption) != "" {
		fallback = caption + "\n" + mediaURL
	}
	fallbackResult := s.sendSingle(ctx, chatID, larkim.MsgTypeText, textContent(fallback), "")
	if !fallbackResult.OK {
		return SendResult{Err: err.Error()}
	}
	return fallbackResult
}

func (s *Sender) sendMediaUpload(ctx context.Context, chatID, mediaURL, caption, replyToID string) (SendResult, error) {
	transfer, err := downloadToTempFile(ctx, mediaURL)
	if err != nil {
		return SendResult{}, err
	}
	defer transfer.cleanup()

	kind := classifyMedia(mediaURL, transfer.mime)
	msgType, content, err := s.uploadMedia(ctx, transfer.localPath, mediaURL, kind)
	if err != nil {
		return SendResult{}, err
	}

	result := s.sendSingle(ctx, chatID, msgType, content, replyToID)
	if !result.OK {
		return SendResult{}, fmt.Errorf("send media message: %s", result.Err)
	}
	if strings.TrimSpace(caption) != "" {
		captionResult := s.sendSingle(ctx, chatID, larkim.MsgTypeText, textContent(caption), "")
		if !captionResult.OK {
			return SendResult{}, fmt.Errorf("send caption: %s", captionResult.Err)
		}
	}
	return result, nil
}

// uploadMedia pushes the local file through the upload endpoint for its kind
// and returns the message type plus content referencing the uploaded key.
func (s *Sender) uploadMedia(ctx context.Context, localPath, mediaURL string, kind MediaKind) (string, string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", "", fmt.Errorf("open media file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	if kind == MediaKindImage {
		req := larkim.NewCreateImageReqBuilder().
			Body(larkim.NewCreateImageReqBodyBuilder().
				ImageType(larkim.ImageTypeMessage).
				Image(file).
				Build()).
			Build()
		resp, err := s.images.Create(ctx, req)
		if err != nil {
			return "", "", fmt.Errorf("failed to upload image: %w", err)
		}
		if resp == nil || !resp.Success() || resp.Data == nil || resp.Data.ImageKey == nil {
			code, msg := 0, ""
			if resp != nil {
				code, msg = resp.Code, resp.Msg
			}
			return "", "", fmt.Errorf("image upload failed: %s (code: %d)", msg, code)
		}
		content, err := json.Marshal(map[string]string{"image_key": *resp.Data.ImageKey})
		if err != nil {
			return "", "", fmt.Errorf("failed to marshal image content: %w", err)
		}
		return larkim.MsgTypeImage, string(content), nil
	}

	var fileType, msgType string
	switch kind {
	case MediaKindVideo:
		fileType = larkim.FileTypeMp4
		msgType = larkim.MsgTypeMedia
	case MediaKindAudio:
		fileType = larkim.FileTypeOpus
		msgType = larkim.MsgTypeAudio
	default:
		fileType = larkim.FileTypeStream
		msgType = larkim.MsgTypeFile
	}
	fileName := fmt.Sprintf("file_%d.%s", time.Now().UnixMilli(), fileExtension(mediaURL))
	req := larkim.NewCreateFileReqBuilder().
		Body(larkim.NewCreateFileReqBodyBuilder().
			FileType(fileType).
			FileName(fileName).
			File(file).
			Build()).
		Build()
	resp, err := s.files.Create(ctx, req)
	if err != nil {
		return "", "", fmt.Errorf("failed to upload file: %w", err)
	}
	if resp == nil || !resp.Success() || resp.Data == nil || resp.Data.FileKey == nil {
		code, msg := 0, ""
		if resp != nil {
			code, msg = resp.Code, resp.Msg
		}
		return "", "", fmt.Errorf("file upload failed: %s (code: %d)", msg, code)
	}
	content, err := json.Marshal(map[string]string{"file_key": *resp.Data.FileKey})
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal file content: %w", err)
	}
	return msgType, string(content), nil
}

// sendSingle delivers one message: a threaded reply when replyToID is set,
// otherwise a new message keyed by chat id.
func (s *Sender) sendSingle(ctx context.Context, chatID, msgType, content, replyToID string) SendResult {
	if replyToID != "" {
		req := larkim.NewReplyMessageReqBuilder().
			MessageId(replyToID).
			Body(larkim.NewReplyMessageReqBodyBuilder().
				Content(content).
				MsgType(msgType).
				Uuid(uuid.NewString()).
				Build()).
			Build()
		resp, err := s.messages.Reply(ctx, req)
		if err != nil {
			return SendResult{Err: err.Error()}
		}
		if resp == nil || !resp.Success() {
			code, msg := 0, ""
			if resp != nil {
				code, msg = resp.Code, resp.Msg
			}
			return SendResult{Err: fmt.Sprintf("lark reply failed: %s (code: %d)", msg, code)}
		}
		messageID := ""
		if resp.Data != nil && resp.Data.MessageId != nil {
			messageID = *resp.Data.MessageId
		}
		return SendResult{OK: true, MessageID: messageID}
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(msgType).
			Content(content).
			Uuid(uuid.NewString()).
			Build()).
		Build()
	resp, err := s.messages.Create(ctx, req)
	if err != nil {
		return SendResult{Err: err.Error()}
	}
	if resp == nil || !resp.Success() {
		code, msg := 0, ""
		if resp != nil {
			code, msg = resp.Code, resp.Msg
		}
		return SendResult{Err: fmt.Sprintf("lark send failed: %s (code: %d)", msg, code)}
	}
	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	return SendResult{OK: true, MessageID: messageID}
}

// UpdateMessage rewrites the text of an existing message.
func (s *Sender) UpdateMessage(ctx context.Context, messageID, text string) SendResult {
	req := larkim.NewUpdateMessageReqBuilder().
		MessageId(messageID).
		Body(larkim.NewUpdateMessageReqBodyBuilder().
			MsgType(larkim.MsgTypeText).
			Content(textContent(text)).
			Build()).
		Build()
	resp, err := s.messages.Update(ctx, req)
	if err != nil {
		return SendResult{Err: err.Error()}
	}
	if resp == nil || !resp.Success() {
		code, msg := 0, ""
		if resp != nil {
			code, msg = resp.Code, resp.Msg
		}
		return SendResult{Err: fmt.Sprintf("lark update failed: %s (code: %d)", msg, code)}
	}
	return SendResult{OK: true, MessageID: messageID}
}

// DeleteMessage removes a message. Best effort: failures are logged only.
func (s *Sender) DeleteMessage(ctx context.Context, messageID string) {
	req := larkim.NewDeleteMessageReqBuilder().
		MessageId(messageID).
		Build()
	resp, err := s.messages.Delete(ctx, req)
	if err != nil {
		s.logger.Warn("delete message failed", slog.String("message_id", messageID), slog.Any("error", err))
		return
	}
	if resp == nil || !resp.Success() {
		code, msg := 0, ""
		if resp != nil {
			code, msg = resp.Code, resp.Msg
		}
		s.logger.Warn("delete message failed",
			slog.String("message_id", messageID),
			slog.Int("code", code),
			slog.String("msg", msg),
		)
	}
}

func textContent(text string) string {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return `{"text":""}`
	}
	return string(payload)
}
