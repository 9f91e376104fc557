package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lexie-server/api/internal/imaging"
)

func (r *Router) acceptPhoto(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	// последний размер - самый крупный
	ph := msg.Photo[len(msg.Photo)-1]
	url, err := r.Bot.GetFileDirectURL(ph.FileID)
	if err != nil {
		r.SendError(cid, err)
		return
	}
	imgBytes, err := r.download(ctx, url)
	if err != nil {
		r.SendError(cid, err)
		return
	}

	key := batchKey(cid, msg.MediaGroupID)
	var b *photoBatch
	for {
		bi, _ := r.batches.LoadOrStore(key, &photoBatch{ChatID: cid, Key: key, images: make([][]byte, 0, 4)})
		b = bi.(*photoBatch)
		b.mu.Lock()
		if !b.closed {
			break
		}
		// пачку уже забрали в обработку, начинаем новую
		b.mu.Unlock()
	}
	b.images = append(b.images, imgBytes)
	first := len(b.images) == 1
	if b.timer != nil {
		b.timer.Stop()
	}
	wait := r.Debounce
	if wait <= 0 {
		wait = defaultDebounce
	}
	b.timer = time.AfterFunc(wait, func() { r.processBatch(key) })
	b.mu.Unlock()

	if first {
		r.send(cid, photoAcceptedText)
	}
}

func (r *Router) processBatch(key string) {
	bi, ok := r.batches.LoadAndDelete(key)
	if !ok {
		return
	}
	b := bi.(*photoBatch)

	b.mu.Lock()
	b.closed = true
	raw := append([][]byte(nil), b.images...)
	chatID := b.ChatID
	b.mu.Unlock()

	if len(raw) == 0 {
		return
	}
	images := make([]imaging.Image, len(raw))
	for i, data := range raw {
		images[i] = imaging.FromBytes(data, "")
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout())
	defer cancel()
	r.process(ctx, chatID, images)
}

// process прогоняет страницы через пайплайн и отправляет результат,
// для домашки следом первую концепт-карточку.
func (r *Router) process(ctx context.Context, chatID int64, images []imaging.Image) {
	log := r.log().With("chat_id", chatID, "pages", len(images))
	log.Info("bot batch started")

	res, err := r.Pipeline.Run(ctx, images)
	if err != nil {
		r.SendError(chatID, err)
		return
	}
	r.send(chatID, renderResult(res))

	if res.HomeworkHelp == nil {
		return
	}
	next, err := r.Pipeline.NextConceptCard(res.ProcessingID, 0)
	if err != nil {
		log.Warn("homework without concept cards", "processing_id", res.ProcessingID)
		return
	}
	r.sendCard(chatID, res.ProcessingID, next)
}

func (r *Router) download(ctx context.Context, url string) ([]byte, error) {
	if r.Download != nil {
		return r.Download(ctx, url)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("download status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
