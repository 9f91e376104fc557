package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lexie-server/api/internal/apierr"
	"lexie-server/api/internal/chat"
	"lexie-server/api/internal/tts"
)

func (h *Handle) Chat(c *gin.Context) {
	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apierr.BadRequest("bad json: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(c, err)
		return
	}

	ctx, cancel := h.workContext(c)
	defer cancel()

	reply, err := h.chat.Reply(ctx, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": reply})
}

// TTS отдаёт аудио байтами; X-Cache говорит, пришло ли оно из кэша.
func (h *Handle) TTS(c *gin.Context) {
	var req tts.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apierr.BadRequest("bad json: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(c, err)
		return
	}

	ctx, cancel := h.workContext(c)
	defer cancel()

	audio, err := h.tts.Synthesize(ctx, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	if audio.Cached {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.Data(http.StatusOK, audio.MIME, audio.Data)
}
