package bridge

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clothpos/backend/internal/archive"
)

const notReadyMessage = "WhatsApp client not ready"

var phoneCleaner = strings.NewReplacer("+", "", " ", "", "-", "")

type sendMessageRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type Handler struct {
	session  Session
	messages archive.MessageLog
	logger   *zap.Logger
	started  time.Time
	now      func() time.Time
}

// NewHandler wires a session to the message log. A nil log discards records.
func NewHandler(session Session, messages archive.MessageLog, logger *zap.Logger) *Handler {
	if messages == nil {
		messages = archive.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		session:  session,
		messages: messages,
		logger:   logger,
		started:  time.Now(),
		now:      time.Now,
	}
}

// NewRouter wires the Gin engine with the bridge routes and middlewares.
func NewRouter(handler *Handler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.POST("/send-message", handler.SendMessage)
	r.GET("/health", handler.Health)

	return r
}

func (h *Handler) SendMessage(c *gin.Context) {
	if !h.session.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": notReadyMessage})
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid send-message payload", zap.Error(err))
	}
	phone := normalizePhone(req.Phone)
	if phone == "" || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Phone and message are required"})
		return
	}

	id, err := h.session.Send(c.Request.Context(), phone, req.Message)
	record := archive.MessageRecord{
		Phone:     phone,
		Body:      req.Message,
		MessageID: id,
		Status:    archive.StatusSent,
		SentAt:    h.now().UTC(),
	}
	if err != nil {
		record.Status = archive.StatusFailed
		record.Error = err.Error()
	}
	if logErr := h.messages.RecordMessage(c.Request.Context(), record); logErr != nil {
		h.logger.Warn("message log write failed", zap.Error(logErr))
	}

	if err != nil {
		h.logger.Error("failed sending whatsapp message", zap.String("phone", phone), zap.Error(err))
		if !h.session.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": notReadyMessage})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "unable to send message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message sent successfully", "id": id})
}

func (h *Handler) Health(c *gin.Context) {
	ready := h.session.Ready()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"success": true,
		"ready":   ready,
		"uptime":  h.now().Sub(h.started).Seconds(),
	})
}

// normalizePhone drops the plus sign, spaces and dashes.
func normalizePhone(phone string) string {
	return phoneCleaner.Replace(strings.TrimSpace(phone))
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
