package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/domain/valueobject"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/http/handlers/common"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/pkg/apperror"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/service"
)

// BookingHandler — HTTP слой машины состояний бронирования.
type BookingHandler struct {
	bookings *service.BookingService
}

func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// Create обрабатывает POST /bookings.
func (h *BookingHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		PackageID   uuid.UUID  `json:"package_id" binding:"required"`
		ScheduledAt time.Time  `json:"scheduled_at" binding:"required"`
		QuoteID     *uuid.UUID `json:"quote_id"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.HandleError(c, err)
		return
	}

	booking, err := h.bookings.CreateBooking(c.Request.Context(), userID, service.CreateBookingParams{
		PackageID:   req.PackageID,
		ScheduledAt: req.ScheduledAt,
		QuoteID:     req.QuoteID,
	})
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// Get обрабатывает GET /bookings/:id.
func (h *BookingHandler) Get(c *gin.Context) {
	userID, role, bookingID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	booking, err := h.bookings.GetBooking(c.Request.Context(), bookingID, userID, role)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// List обрабатывает GET /bookings.
func (h *BookingHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	limit, offset := common.GetPagination(c)
	bookings, err := h.bookings.ListBookings(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// Transition обрабатывает POST /bookings/:id/transition.
func (h *BookingHandler) Transition(c *gin.Context) {
	userID, role, bookingID, ok := h.actorAndID(c)
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

	booking, err := h.bookings.RequestTransition(c.Request.Context(), bookingID,
		valueobject.BookingStatus(req.Target), userID, role)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

func (h *BookingHandler) actorAndID(c *gin.Context) (uuid.UUID, valueobject.Role, uuid.UUID, bool) {
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

	bookingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.HandleError(c, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректный идентификатор бронирования"))
		return uuid.Nil, "", uuid.Nil, false
	}

	return userID, valueobject.Role(roleStr), bookingID, true
}
