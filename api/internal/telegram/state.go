package telegram

import (
	"strconv"
	"sync"
	"time"
)

const defaultDebounce = 1200 * time.Millisecond

// photoBatch копит фото одного альбома (или одного чата) до паузы debounce.
type photoBatch struct {
	ChatID int64
	Key    string // "grp:<mediaGroupID>" | "chat:<chatID>"

	mu     sync.Mutex
	images [][]byte
	timer  *time.Timer
	closed bool
}

func batchKey(chatID int64, mediaGroupID string) string {
	if mediaGroupID != "" {
		return "grp:" + mediaGroupID
	}
	return "chat:" + strconv.FormatInt(chatID, 10)
}
