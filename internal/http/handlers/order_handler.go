package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/domain/valueobject"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/http/handlers/common"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/pkg/apperror"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/service"
)

// OrderHandler — HTTP слой машины состояний заказа.
type OrderHandler struct {
	orders *service.OrderService
}

func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Create обрабатывает POST /orders.
func (h *OrderHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		VariantID uuid.UUID  `json:"variant_id" binding:"required"`
		Quantity  int        `json:"quantity" binding:"required"`
		QuoteID   *uuid.UUID `json:"quote_id"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.HandleError(c, err)
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), userID, service.CreateOrderParams{
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		QuoteID:   req.QuoteID,
	})
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// Get обрабатывает GET /orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	userID, role, orderID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), orderID, userID, role)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// List обрабатывает GET /orders.
func (h *OrderHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	limit, offset := common.GetPagination(c)
	orders, err := h.orders.ListOrders(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// Transition обрабатывает POST /orders/:id/transition.
func (h *OrderHandler) Transition(c *gin.Context) {
	userID, role, orderID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var req struct {
		Target string `json:"target" binding:"required"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.HandleError(c, err)
		return
	}

	order, err := h.orders.RequestTransition(c.Request.Context(), orderID,
		valueobject.OrderStatus(req.Target), userID, role)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) actorAndID(c *gin.Context) (uuid.UUID, valueobject.Role, uuid.UUID, bool) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return uuid.Nil, "", uuid.Nil, false
	}

	roleStr, err := common.CurrentUserRole(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return uuid.Nil, "", uuid.Nil, false
	}

	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.HandleError(c, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректный идентификатор заказа"))
		return uuid.Nil, "", uuid.Nil, false
	}

	return userID, valueobject.Role(roleStr), orderID, true
}
