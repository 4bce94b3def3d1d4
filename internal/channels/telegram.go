// Package channels connects chat transports to the decision engine.
package channels

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/parley-bot/parley/internal/activity"
	"github.com/parley-bot/parley/internal/logging"
	"github.com/parley-bot/parley/internal/policy"
	"github.com/parley-bot/parley/internal/runtime"
)

const (
	defaultDispatchQueue   = 64
	defaultDispatchWorkers = 8

	snapshotFetchTimeout = 10 * time.Second
)

type telegramSendMessageFunc func(context.Context, *bot.SendMessageParams) (*models.Message, error)
type telegramSendPhotoFunc func(context.Context, *bot.SendPhotoParams) (*models.Message, error)
type telegramLeaveChatFunc func(context.Context, *bot.LeaveChatParams) (bool, error)

// TelegramGateway receives Telegram updates, converts them to runtime
// messages, and offers the outbound operations the core needs.
type TelegramGateway struct {
	token          string
	operatorChatID int64
	snapshotURL    string
	clock          *activity.Clock

	// mu guards the fields resolved during Listen: the bot identity and the
	// outbound send functions. The idle monitor calls Notify from its own
	// goroutine, possibly before the connection is up.
	mu          sync.RWMutex
	handle      string
	sendMessage telegramSendMessageFunc
	sendPhoto   telegramSendPhotoFunc
	leaveChat   telegramLeaveChatFunc
}

var _ runtime.Listener = (*TelegramGateway)(nil)

// NewTelegram creates a Telegram gateway. operatorChatID of 0 means no
// operator is configured; snapshotURL may be empty to disable /photo.
func NewTelegram(token string, operatorChatID int64, snapshotURL string, clock *activity.Clock) *TelegramGateway {
	return &TelegramGateway{
		token:          token,
		operatorChatID: operatorChatID,
		snapshotURL:    snapshotURL,
		clock:          clock,
	}
}

// Handle returns the bot's own username, or empty until it is resolved.
func (t *TelegramGateway) Handle() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.handle
}

func (t *TelegramGateway) setHandle(handle string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handle = strings.TrimSpace(handle)
}

func (t *TelegramGateway) connect(send telegramSendMessageFunc, photo telegramSendPhotoFunc, leave telegramLeaveChatFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendMessage = send
	t.sendPhoto = photo
	t.leaveChat = leave
}

func (t *TelegramGateway) messageSender() telegramSendMessageFunc {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sendMessage
}

func (t *TelegramGateway) photoSender() telegramSendPhotoFunc {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sendPhoto
}

func (t *TelegramGateway) chatLeaver() telegramLeaveChatFunc {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.leaveChat
}

// Listen starts long-polling Telegram and dispatches inbound messages to the
// handler until ctx is cancelled.
func (t *TelegramGateway) Listen(ctx context.Context, handler runtime.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}
	if strings.TrimSpace(t.token) == "" {
		return errors.New("telegram token is required")
	}

	dispatcher := runtime.NewDispatcher(handler, defaultDispatchQueue, defaultDispatchWorkers)
	defaultHandler := func(updateCtx context.Context, _ *bot.Bot, update *models.Update) {
		if update == nil || update.Message == nil || update.Message.From == nil {
			return
		}
		t.handleInboundMessage(updateCtx, dispatcher, update.Message)
	}

	b, err := bot.New(strings.TrimSpace(t.token), bot.WithDefaultHandler(defaultHandler))
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("fetch telegram bot profile: %w", err)
	}
	t.setHandle(me.Username)
	logging.Logger().Info(fmt.Sprintf("Connected to Telegram Bot @%s", t.Handle()))

	t.connect(b.SendMessage, b.SendPhoto, b.LeaveChat)

	if err := dispatcher.Start(ctx); err != nil {
		return err
	}
	defer dispatcher.Wait()

	t.greetOperator(ctx)

	go b.Start(ctx)
	<-ctx.Done()
	dispatcher.Stop()
	return nil
}

// Notify sends the idle monitor's message to the operator chat.
func (t *TelegramGateway) Notify(ctx context.Context, text string) error {
	if t.operatorChatID == 0 {
		return errors.New("operator chat is not configured")
	}
	return t.sendToChat(ctx, t.operatorChatID, text)
}

func (t *TelegramGateway) greetOperator(ctx context.Context) {
	if t.operatorChatID == 0 {
		logging.Logger().Info("operator is not set")
		return
	}
	if err := t.sendToChat(ctx, t.operatorChatID, "I'm starting!"); err != nil {
		logging.Logger().Warn("startup greeting failed", "err", err)
		return
	}
	t.clock.Touch()
}

func (t *TelegramGateway) handleInboundMessage(ctx context.Context, dispatcher *runtime.Dispatcher, msg *models.Message) {
	converted := convertMessage(msg)
	if converted == nil {
		return
	}
	logging.Logger().Debug("telegram inbound message",
		"user_id", converted.Sender.ID,
		"username", converted.Sender.Username,
		"chat_kind", converted.ChatKind,
		"text", messagePreview(converted.Text, 100),
	)

	writer := &telegramWriter{gateway: t, chatID: msg.Chat.ID, messageID: msg.ID}
	if err := dispatcher.Enqueue(ctx, converted, writer); err != nil {
		logging.Logger().Warn("telegram enqueue failed", "chat_id", msg.Chat.ID, "err", err)
	}
}

// convertMessage maps a Telegram message onto the runtime message shape the
// router understands.
func convertMessage(msg *models.Message) *runtime.Message {
	if msg == nil || msg.From == nil {
		return nil
	}

	converted := &runtime.Message{
		Text:     msg.Text,
		ChatID:   msg.Chat.ID,
		ChatKind: chatKind(msg.Chat.Type),
		Sender: runtime.Sender{
			ID:       msg.From.ID,
			Username: strings.TrimSpace(msg.From.Username),
		},
		Command: parseCommand(msg.Text),
	}
	if msg.ReplyToMessage != nil {
		converted.ReplyTo = convertMessage(msg.ReplyToMessage)
		if converted.ReplyTo == nil {
			// Replies to service messages still carry the relation.
			converted.ReplyTo = &runtime.Message{
				Text:     msg.ReplyToMessage.Text,
				ChatID:   msg.ReplyToMessage.Chat.ID,
				ChatKind: chatKind(msg.ReplyToMessage.Chat.Type),
			}
		}
	}
	return converted
}

func chatKind(t models.ChatType) policy.ChatKind {
	if t == models.ChatTypePrivate {
		return policy.ChatPrivate
	}
	return policy.ChatGroup
}

// parseCommand extracts a leading /command name, tolerating the @botname
// suffix Telegram appends in groups.
func parseCommand(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return ""
	}
	name := strings.TrimPrefix(strings.Fields(trimmed)[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return name
}

type telegramWriter struct {
	gateway   *TelegramGateway
	chatID    int64
	messageID int
}

func (w *telegramWriter) WriteReply(ctx context.Context, text string) error {
	if w == nil || w.gateway == nil {
		return errors.New("telegram writer is not configured")
	}
	send := w.gateway.messageSender()
	if send == nil {
		return errors.New("telegram bot is not connected")
	}
	_, err := send(ctx, &bot.SendMessageParams{
		ChatID:          w.chatID,
		Text:            text,
		ReplyParameters: &models.ReplyParameters{MessageID: w.messageID},
	})
	return err
}

func (t *TelegramGateway) sendToChat(ctx context.Context, chatID int64, text string) error {
	send := t.messageSender()
	if send == nil {
		return errors.New("telegram bot is not connected")
	}
	_, err := send(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	return err
}

// LeaveChat makes the bot leave the given chat.
func (t *TelegramGateway) LeaveChat(ctx context.Context, chatID int64) error {
	leave := t.chatLeaver()
	if leave == nil {
		return errors.New("telegram bot is not connected")
	}
	if _, err := leave(ctx, &bot.LeaveChatParams{ChatID: chatID}); err != nil {
		return fmt.Errorf("leave chat %d: %w", chatID, err)
	}
	return nil
}

// SendSnapshotPhoto fetches the configured camera snapshot and posts it to
// the chat.
func (t *TelegramGateway) SendSnapshotPhoto(ctx context.Context, chatID int64) error {
	if strings.TrimSpace(t.snapshotURL) == "" {
		return errors.New("snapshot url is not configured")
	}
	send := t.photoSender()
	if send == nil {
		return errors.New("telegram bot is not connected")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, snapshotFetchTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, t.snapshotURL, nil)
	if err != nil {
		return fmt.Errorf("build snapshot request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("fetch snapshot: unexpected status %s", resp.Status)
	}

	_, err = send(ctx, &bot.SendPhotoParams{
		ChatID: chatID,
		Photo:  &models.InputFileUpload{Filename: "snapshot.jpg", Data: resp.Body},
	})
	if err != nil {
		return fmt.Errorf("send snapshot photo: %w", err)
	}
	return nil
}

func messagePreview(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
