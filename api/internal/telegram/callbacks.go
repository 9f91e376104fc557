package telegram

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lexie-server/api/internal/pipeline"
)

func (r *Router) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	cid := cb.Message.Chat.ID
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")) // ack

	action, id, n, err := parseCallback(cb.Data)
	if err != nil {
		r.log().Warn("unknown callback", "data", cb.Data)
		return
	}
	switch action {
	case actionCard:
		r.onNextCard(cid, cb.Message.MessageID, id, n)
	case actionHint:
		r.onHint(ctx, cid, id, n)
	}
}

func (r *Router) onNextCard(chatID int64, msgID int, id string, current int) {
	next, err := r.Pipeline.NextConceptCard(id, current)
	if errors.Is(err, pipeline.ErrNotFound) {
		r.send(chatID, "Kortteja ei ole enempää. Lähetä uusi kuva, niin aloitetaan alusta.")
		return
	}
	if err != nil {
		r.SendError(chatID, err)
		return
	}
	// у предыдущей карточки убираем кнопки, чтобы не листать дважды
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	_, _ = r.Bot.Send(edit)
	r.sendCard(chatID, id, next)
}

func (r *Router) onHint(ctx context.Context, chatID int64, id string, cardNumber int) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	h, err := r.Pipeline.AdditionalHint(ctx, id, cardNumber)
	if errors.Is(err, pipeline.ErrNotFound) {
		r.send(chatID, "Vihjettä ei löytynyt. Lähetä tehtävä uudelleen.")
		return
	}
	if err != nil {
		r.SendError(chatID, err)
		return
	}
	r.send(chatID, "💡 "+h.AdditionalHint)
}

func (r *Router) sendCard(chatID int64, id string, next pipeline.NextCard) {
	kb := cardKeyboard(id, next)
	r.sendWithKeyboard(chatID, renderCard(next), &kb)
}
