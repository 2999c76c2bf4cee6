package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/domain/valueobject"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/http/handlers/common"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/models"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/pkg/apperror"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/service"
)

// PaymentHandler — HTTP слой чтения escrow: транзакции, ledger, баланс
// продавца и сверка платежа после редиректа.
type PaymentHandler struct {
	escrow  *service.EscrowService
	webhook *service.WebhookService
}

func NewPaymentHandler(escrow *service.EscrowService, webhook *service.WebhookService) *PaymentHandler {
	return &PaymentHandler{escrow: escrow, webhook: webhook}
}

// GetTransaction обрабатывает GET /payments/transactions/:id.
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	roleStr, err := common.CurrentUserRole(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	txID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.HandleError(c, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректный идентификатор транзакции"))
		return
	}

	t, err := h.escrow.GetTransaction(c.Request.Context(), txID)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	if valueobject.Role(roleStr) != valueobject.RoleAdmin && t.BuyerID != userID && t.SellerID != userID {
		common.HandleError(c, apperror.ErrForbidden)
		return
	}

	c.JSON(http.StatusOK, t)
}

// ListLedger обрабатывает GET /payments/transactions/:id/ledger.
func (h *PaymentHandler) ListLedger(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	roleStr, err := common.CurrentUserRole(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	txID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.HandleError(c, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректный идентификатор транзакции"))
		return
	}

	t, err := h.escrow.GetTransaction(c.Request.Context(), txID)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	if valueobject.Role(roleStr) != valueobject.RoleAdmin && t.BuyerID != userID && t.SellerID != userID {
		common.HandleError(c, apperror.ErrForbidden)
		return
	}

	entries, err := h.escrow.ListLedgerEntries(c.Request.Context(), txID)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// GetBalance обрабатывает GET /payments/balance для продавца.
func (h *PaymentHandler) GetBalance(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	roleStr, err := common.CurrentUserRole(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if roleStr != models.RoleSeller {
		common.HandleError(c, apperror.ErrForbidden)
		return
	}

	balance, err := h.escrow.GetSellerBalance(c.Request.Context(), userID)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, balance)
}

// Verify обрабатывает POST /payments/verify: сверку платежа после
// возврата покупателя со страницы шлюза.
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req struct {
		PaymentRef      string `json:"payment_ref" binding:"required"`
		ResultIndicator string `json:"result_indicator"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.HandleError(c, err)
		return
	}

	t, err := h.webhook.VerifyPayment(c.Request.Context(), req.PaymentRef, req.ResultIndicator)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, t)
}
