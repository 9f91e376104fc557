package telegram

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lexie-server/api/internal/logger"
	"lexie-server/api/internal/pipeline"
)

// Bot - то, что роутеру нужно от *tgbotapi.BotAPI.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Router struct {
	Bot      Bot
	Pipeline *pipeline.Pipeline
	Log      *logger.Logger

	// Timeout - бюджет на обработку одной пачки фото.
	Timeout  time.Duration
	Debounce time.Duration
	// Download скачивает файл по прямой ссылке; nil - обычный http-клиент.
	Download func(ctx context.Context, url string) ([]byte, error)

	batches sync.Map // key -> *photoBatch
}

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		r.send(cid, startText)
	case "health":
		r.send(cid, "✅ OK")
	default:
		r.send(cid, "Tuntematon komento. Lähetä kuva tehtävästä tai oppikirjan sivusta.")
	}
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, upd.CallbackQuery)
		return
	}
	if upd.Message == nil {
		return
	}
	if upd.Message.IsCommand() {
		r.HandleCommand(ctx, upd.Message)
		return
	}
	if len(upd.Message.Photo) > 0 {
		r.acceptPhoto(ctx, upd.Message)
		return
	}
	if upd.Message.Text != "" {
		r.send(upd.Message.Chat.ID, startText)
	}
}

func (r *Router) send(chatID int64, text string) {
	r.sendWithKeyboard(chatID, text, nil)
}

func (r *Router) sendWithKeyboard(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, clip(text))
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	if _, err := r.Bot.Send(msg); err != nil {
		r.log().Warn("telegram send failed", "chat_id", chatID, "error", err)
	}
}

func (r *Router) SendError(chatID int64, err error) {
	r.log().Error("bot request failed", "chat_id", chatID, "error", err)
	r.send(chatID, "Kuvien käsittelyssä tapahtui virhe. Yritä hetken päästä uudelleen.")
}

func (r *Router) log() *logger.Logger {
	if r.Log == nil {
		return logger.Nop()
	}
	return r.Log
}

func (r *Router) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return 120 * time.Second
}
