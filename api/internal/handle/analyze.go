package handle

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"lexie-server/api/internal/apierr"
	"lexie-server/api/internal/imaging"
)

type AnalyzeRequest struct {
	Images []json.RawMessage `json:"images"`
}

// decodeImages проверяет, что images - непустой массив строк, и нормализует картинки.
func (h *Handle) decodeImages(c *gin.Context) ([]imaging.Image, error) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if e := classify(err); e.Status == http.StatusRequestEntityTooLarge {
			return nil, e
		}
		return nil, apierr.BadRequest("bad json: %v", err)
	}
	if len(req.Images) == 0 {
		return nil, apierr.BadRequest("images must be a non-empty array")
	}
	encoded := make([]string, len(req.Images))
	for i, raw := range req.Images {
		if err := json.Unmarshal(raw, &encoded[i]); err != nil || encoded[i] == "" {
			return nil, apierr.BadRequest("images[%d] must be a base64 string", i)
		}
	}

	images, err := imaging.NormalizeAll(encoded)
	if err != nil {
		return nil, apierr.BadRequest("%v", err)
	}
	if h.maxImageBytes > 0 {
		if total := imaging.TotalSize(images); total > h.maxImageBytes {
			return nil, apierr.TooLarge("images total %d bytes, limit %d", total, h.maxImageBytes)
		}
	}
	return images, nil
}

// Analyze обслуживает и /analyze, и /homework-help: ветку выбирает классификатор.
func (h *Handle) Analyze(c *gin.Context) {
	images, err := h.decodeImages(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	ctx, cancel := h.workContext(c)
	defer cancel()

	res, err := h.pipe.Run(ctx, images)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
