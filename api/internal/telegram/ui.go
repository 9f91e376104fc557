package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lexie-server/api/internal/pipeline"
	"lexie-server/api/internal/types"
)

const (
	startText = "Hei! Lähetä kuva läksytehtävästä tai oppikirjan sivusta. " +
		"Jos sivuja on useampi, lähetä ne peräkkäin tai albumina."
	photoAcceptedText = "Kuva vastaanotettu. Jos sivuja on lisää, lähetä ne heti perään, käsittelen ne yhdessä."

	maxMessageRunes = 3900
)

const (
	actionCard = "card"
	actionHint = "hint"
)

var errBadCallback = errors.New("telegram: bad callback data")

// callbackData: "<action>:<processingID>:<cardNumber>". Лимит Telegram - 64 байта, uuid влезает.
func callbackData(action, id string, n int) string {
	return action + ":" + id + ":" + strconv.Itoa(n)
}

func parseCallback(data string) (action, id string, n int, err error) {
	first := strings.IndexByte(data, ':')
	last := strings.LastIndexByte(data, ':')
	if first <= 0 || last == first {
		return "", "", 0, errBadCallback
	}
	action, id = data[:first], data[first+1:last]
	n, err = strconv.Atoi(data[last+1:])
	if err != nil || n < 0 || id == "" {
		return "", "", 0, errBadCallback
	}
	switch action {
	case actionCard, actionHint:
		return action, id, n, nil
	}
	return "", "", 0, errBadCallback
}

func renderResult(res *types.Result) string {
	var b strings.Builder
	if t := strings.TrimSpace(res.Title); t != "" {
		b.WriteString("📘 " + t + "\n")
	}
	if res.Introduction != "" {
		b.WriteString(res.Introduction + "\n")
	}
	switch {
	case res.HomeworkHelp != nil:
		fmt.Fprintf(&b, "\nTehtävä: %s\n", res.ProblemSummary)
		if g := strings.TrimSpace(res.ApproachGuidance); g != "" {
			fmt.Fprintf(&b, "Miten edetä: %s\n", g)
		}
		fmt.Fprintf(&b, "\nKortteja: %d", len(res.ConceptCards))
	case res.StudySet != nil:
		if s := strings.TrimSpace(res.Summary); s != "" {
			b.WriteString("\n" + s + "\n")
		}
		fmt.Fprintf(&b, "\nMuistikortteja: %d · Kysymyksiä: %d", len(res.Flashcards), len(res.Quiz))
		if len(res.Flashcards) > 0 {
			c := res.Flashcards[0]
			fmt.Fprintf(&b, "\n\nEsimerkki:\n%s → %s", c.Front, c.Back)
		}
	}
	return b.String()
}

func renderCard(next pipeline.NextCard) string {
	c := next.Card
	return fmt.Sprintf("Kortti %d/%d: %s\n\n%s", c.Number, next.TotalCards, c.Title, c.Explanation)
}

func cardKeyboard(id string, next pipeline.NextCard) tgbotapi.InlineKeyboardMarkup {
	row := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("💡 Vihje", callbackData(actionHint, id, next.Card.Number)),
	}
	if next.HasMore {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("Seuraava kortti ➡️", callbackData(actionCard, id, next.Card.Number)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// clip режет текст по рунам, чтобы не порвать UTF-8.
func clip(text string) string {
	rs := []rune(text)
	if len(rs) <= maxMessageRunes {
		return text
	}
	return string(rs[:maxMessageRunes]) + "…"
}
