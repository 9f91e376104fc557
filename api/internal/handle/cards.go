package handle

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lexie-server/api/internal/apierr"
	"lexie-server/api/internal/ledger"
)

// Status отдаёт запись ledger; неизвестный id - 200 со stage "unknown".
func (h *Handle) Status(c *gin.Context) {
	rec, ok := h.ledger.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"stage": ledger.StageUnknown})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handle) NextCard(c *gin.Context) {
	current, err := strconv.Atoi(c.Param("currentCardNumber"))
	if err != nil || current < 0 {
		h.fail(c, apierr.BadRequest("currentCardNumber must be a non-negative integer"))
		return
	}
	next, err := h.pipe.NextConceptCard(c.Param("homeworkHelpId"), current)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, next)
}

type HintRequest struct {
	HomeworkHelpID string `json:"homeworkHelpId"`
	CardNumber     int    `json:"cardNumber"`
}

func (h *Handle) AdditionalHint(c *gin.Context) {
	var req HintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apierr.BadRequest("bad json: %v", err))
		return
	}
	if req.HomeworkHelpID == "" || req.CardNumber < 1 {
		h.fail(c, apierr.BadRequest("homeworkHelpId and cardNumber are required"))
		return
	}

	ctx, cancel := h.workContext(c)
	defer cancel()

	hint, err := h.pipe.AdditionalHint(ctx, req.HomeworkHelpID, req.CardNumber)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, hint)
}
