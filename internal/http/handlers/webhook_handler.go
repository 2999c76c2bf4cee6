package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/http/handlers/common"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/logger"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/service"
)

// WebhookHandler принимает уведомления платёжного шлюза. Секрет
// проверяется в middleware до разбора тела.
type WebhookHandler struct {
	webhooks *service.WebhookService
}

func NewWebhookHandler(webhooks *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// HandlePayment обрабатывает POST /webhooks/payment.
func (h *WebhookHandler) HandlePayment(c *gin.Context) {
	var payload service.WebhookPayload
	if err := common.BindAndValidate(c, &payload); err != nil {
		common.HandleError(c, err)
		return
	}

	if logger.Log != nil {
		logger.Log.WithFields(map[string]interface{}{
			"payment_ref": payload.PaymentRef,
			"status":      payload.Status,
		}).Info("webhook: получено уведомление шлюза")
	}

	if err := h.webhooks.ProcessWebhook(c.Request.Context(), payload); err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
