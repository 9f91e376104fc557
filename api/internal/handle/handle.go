package handle

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"lexie-server/api/internal/apierr"
	"lexie-server/api/internal/chat"
	"lexie-server/api/internal/ledger"
	"lexie-server/api/internal/llm"
	"lexie-server/api/internal/logger"
	"lexie-server/api/internal/pipeline"
	"lexie-server/api/internal/tts"
)

type Handle struct {
	pipe   *pipeline.Pipeline
	chat   *chat.Service
	tts    *tts.Service
	ledger *ledger.Store
	log    *logger.Logger

	dev           bool
	timeout       time.Duration
	maxImageBytes int
}

type Options struct {
	Pipeline      *pipeline.Pipeline
	Chat          *chat.Service
	TTS           *tts.Service
	Log           *logger.Logger
	Dev           bool
	Timeout       time.Duration
	MaxImageBytes int
}

func New(o Options) *Handle {
	log := o.Log
	if log == nil {
		log = logger.Nop()
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Handle{
		pipe:          o.Pipeline,
		chat:          o.Chat,
		tts:           o.TTS,
		ledger:        o.Pipeline.Ledger,
		log:           log,
		dev:           o.Dev,
		timeout:       timeout,
		maxImageBytes: o.MaxImageBytes,
	}
}

func (h *Handle) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/ping", h.Ping)

	r.POST("/analyze", h.Analyze)
	r.POST("/homework-help", h.Analyze)
	r.GET("/processing-status/:id", h.Status)
	r.GET("/next-concept-card/:homeworkHelpId/:currentCardNumber", h.NextCard)
	r.POST("/additional-hint", h.AdditionalHint)

	r.POST("/chat", h.Chat)
	r.POST("/tts", h.TTS)
}

func (h *Handle) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Lexie server is running!"})
}

func (h *Handle) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Server is running"})
}

// workContext - бюджет на всю обработку. Отключение клиента работу не отменяет,
// а X-Request-Timeout (секунды) может бюджет только сократить.
func (h *Handle) workContext(c *gin.Context) (context.Context, context.CancelFunc) {
	deadline := h.timeout
	if ts := c.GetHeader("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 && time.Duration(v)*time.Second < deadline {
			deadline = time.Duration(v) * time.Second
		}
	}
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), deadline)
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// classify переводит ошибку слоя ниже в *apierr.Error.
func classify(err error) *apierr.Error {
	if e := apierr.As(err); e != nil {
		return e
	}
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		return apierr.New(http.StatusRequestEntityTooLarge, apierr.MsgTooLarge, err)
	case errors.Is(err, chat.ErrNoMessage), errors.Is(err, chat.ErrNoSession),
		errors.Is(err, tts.ErrEmptyText), errors.Is(err, tts.ErrTooLong):
		return apierr.New(http.StatusBadRequest, apierr.MsgBadRequest, err)
	case errors.Is(err, pipeline.ErrNotFound):
		return apierr.New(http.StatusNotFound, apierr.MsgNotFound, err)
	case llm.IsRateLimit(err):
		return apierr.New(http.StatusTooManyRequests, apierr.MsgRateLimited, err)
	case errors.Is(err, llm.ErrUpstream), errors.Is(err, llm.ErrNotConfigured),
		errors.Is(err, context.DeadlineExceeded):
		return apierr.Upstream(err)
	}
	return apierr.Internal(err)
}

// fail пишет {error, details?}. Для 4xx details всегда есть, для 5xx только в dev.
func (h *Handle) fail(c *gin.Context, err error) {
	e := classify(err)
	body := errorBody{Error: e.Message}
	if e.Err != nil && (e.Status < 500 || h.dev) {
		body.Details = e.Err.Error()
	}
	if e.Status >= 500 {
		h.log.Error("request failed", "path", c.FullPath(), "status", e.Status, "error", err)
	} else {
		h.log.Warn("request rejected", "path", c.FullPath(), "status", e.Status, "error", err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(e.Status, body)
}
