// Package channel adapts the Telegram Bot API to the bot's event/reply
// model: it parses updates into domain events and renders replies as new or
// edited messages with inline keyboards.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"solbot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
	telegramPollTimeout    = 30
)

// Telegram is the chat transport. It owns the rendering decision mandated
// by the flow table: callback-triggered replies edit the keyboard message
// in place, command-triggered replies append.
type Telegram struct {
	token     string
	allowFrom []int64 // Allowed user IDs (empty = allow all)
	parseMode string

	bot    *tgbotapi.BotAPI
	bus    domain.MessageBus
	logger *slog.Logger
}

type TelegramConfig struct {
	Token     string
	AllowFrom []string // User IDs as strings
	ParseMode string
	Logger    *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if cfg.ParseMode == "" {
		cfg.ParseMode = "Markdown"
	}
	return &Telegram{
		token:     cfg.Token,
		allowFrom: allowed,
		parseMode: cfg.ParseMode,
		logger:    cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and begins polling for updates.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	t.bus = bus

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	bus.OnReply(t.render)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = telegramPollTimeout
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(update)
		}
	}
}

// Stop shuts down the Telegram bot.
// Note: StopReceivingUpdates is already called when ctx is cancelled in Start().
// Calling it twice panics, so Stop() is a no-op.
func (t *Telegram) Stop() error {
	return nil
}

func (t *Telegram) handleUpdate(update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		t.handleCallback(update.CallbackQuery)
		return
	}

	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return
	}

	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	if !t.isAllowed(userID) {
		t.logger.Warn("unauthorized telegram user",
			"user_id", userID,
			"username", update.Message.From.UserName,
		)
		t.sendMessage(chatID, "⛔ Unauthorized. Your user ID is not in the allow list.", nil)
		return
	}

	if !update.Message.IsCommand() {
		if strings.TrimSpace(update.Message.Text) != "" {
			t.sendMessage(chatID, "Send /start to begin.", nil)
		}
		return
	}

	args := strings.Fields(update.Message.CommandArguments())
	t.logger.Info("telegram command received",
		"user_id", userID,
		"command", update.Message.Command(),
		"args", len(args),
	)

	t.bus.Publish(domain.Event{
		Kind:      domain.KindCommand,
		Name:      update.Message.Command(),
		Args:      args,
		UserID:    userID,
		ChatID:    chatID,
		MessageID: update.Message.MessageID,
		Timestamp: time.Unix(int64(update.Message.Date), 0),
	})
}

func (t *Telegram) handleCallback(cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil || cq.Message.Chat == nil {
		return
	}

	userID := cq.From.ID
	if !t.isAllowed(userID) {
		t.logger.Warn("unauthorized telegram callback", "user_id", userID)
		return
	}

	// Acknowledge the button press before the reply renders, otherwise the
	// client shows a spinner until it times out.
	callback := tgbotapi.NewCallback(cq.ID, "")
	if _, err := t.bot.Request(callback); err != nil {
		t.logger.Warn("callback ack failed", "err", err)
	}

	t.bus.Publish(domain.Event{
		Kind:      domain.KindCallback,
		Name:      cq.Data,
		UserID:    userID,
		ChatID:    cq.Message.Chat.ID,
		MessageID: cq.Message.MessageID,
		Timestamp: time.Now(),
	})
}

// render delivers a reply from the flow controller: edit in place for
// callback-triggered replies, append for command-triggered ones. BotAPI is
// safe for concurrent use, so replies for different chats render in
// parallel; one chat's rate-limit backoff never delays another's.
func (t *Telegram) render(r domain.Reply) {
	markup := buildKeyboard(r.Keyboard)

	if r.Edit && r.MessageID != 0 {
		t.editMessage(r.ChatID, r.MessageID, r.Text, markup)
		return
	}
	t.sendMessage(r.ChatID, r.Text, markup)
}

func (t *Telegram) editMessage(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = t.parseMode
	edit.ReplyMarkup = markup

	_, err := t.bot.Send(edit)
	if err == nil {
		return
	}
	if strings.Contains(err.Error(), "message is not modified") {
		// Same button pressed twice; nothing to change.
		return
	}
	if strings.Contains(err.Error(), "can't parse entities") {
		// Parse mode choked on the content — retry as plain text.
		t.logger.Warn("telegram markdown parse error on edit, retrying plain", "err", err)
		edit.ParseMode = ""
		if _, err2 := t.bot.Send(edit); err2 == nil {
			return
		}
	}

	// Editing can legitimately fail (message too old, deleted by the user);
	// fall back to appending so the reply is not lost.
	t.logger.Warn("telegram edit failed, sending new message", "chat_id", chatID)
	t.sendMessage(chatID, text, markup)
}

func (t *Telegram) sendMessage(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	chunks := splitMessage(text, telegramMaxMsgLen)
	for i, chunk := range chunks {
		// Keyboard goes on the last chunk only.
		var m *tgbotapi.InlineKeyboardMarkup
		if i == len(chunks)-1 {
			m = markup
		}
		t.sendChunk(chatID, chunk, m)
	}
}

// sendChunk sends a single message chunk with retry and rate limit handling.
// Strategy: try Markdown first → on parse error fallback to plain text → retry with backoff.
func (t *Telegram) sendChunk(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	const maxRetries = telegramMaxSendRetries

	for attempt := 0; attempt <= maxRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)
		if markup != nil {
			msg.ReplyMarkup = *markup
		}
		if attempt == 0 && t.parseMode != "" {
			msg.ParseMode = t.parseMode
		}
		// On subsequent attempts: send as plain text (parse mode may be malformed).

		_, err := t.bot.Send(msg)
		if err == nil {
			return
		}

		errStr := err.Error()

		// Handle Telegram rate limiting (HTTP 429).
		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off",
				"retry_after", retryAfter, "attempt", attempt+1,
			)
			time.Sleep(retryAfter)
			continue
		}

		// Markdown parse error on first attempt — immediately retry as plain text.
		if attempt == 0 && msg.ParseMode != "" &&
			strings.Contains(errStr, "can't parse entities") {
			t.logger.Warn("telegram markdown parse error, retrying as plain text",
				"err", err, "parseMode", t.parseMode,
			)
			plainMsg := tgbotapi.NewMessage(chatID, text)
			if markup != nil {
				plainMsg.ReplyMarkup = *markup
			}
			if _, err2 := t.bot.Send(plainMsg); err2 == nil {
				return
			}
			// Plain also failed — fall through to backoff loop.
		}

		// Exponential backoff for other transient errors.
		if attempt < maxRetries {
			backoff := time.Duration(attempt+1) * time.Second
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}

		t.logger.Error("telegram send failed after retries", "err", err, "attempts", maxRetries+1)
	}
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true // Empty list = allow all
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

// buildKeyboard converts the abstract keyboard into Telegram inline markup.
// Returns nil for an empty keyboard so replies without buttons carry no markup.
func buildKeyboard(rows [][]domain.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	var kb [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var r []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			if b.URL != "" {
				r = append(r, tgbotapi.NewInlineKeyboardButtonURL(b.Label, b.URL))
			} else {
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
			}
		}
		kb = append(kb, r)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(kb...)
	return &markup
}

// splitMessage breaks text into chunks under maxLen, preferring newline
// boundaries. Telegram rejects messages over 4096 chars.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			cutAt := strings.LastIndex(chunk[:maxLen], "\n")
			if cutAt < maxLen/2 {
				cutAt = maxLen
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}
