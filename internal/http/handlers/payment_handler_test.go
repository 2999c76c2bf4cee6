package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/http/middleware"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/models"
)

func paymentTestRouter(handler *PaymentHandler, userID uuid.UUID, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	if role != "" {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.ContextUserIDKey, userID)
			c.Set(middleware.ContextRoleKey, role)
		})
	}
	r.GET("/payments/transactions/:id", handler.GetTransaction)
	r.GET("/payments/balance", handler.GetBalance)
	return r
}

func TestPaymentHandler_GetTransaction_Unauthorized(t *testing.T) {
	handler := &PaymentHandler{}
	r := paymentTestRouter(handler, uuid.Nil, "")

	req, _ := http.NewRequest("GET", "/payments/transactions/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentHandler_GetTransaction_InvalidID(t *testing.T) {
	handler := &PaymentHandler{}
	r := paymentTestRouter(handler, uuid.New(), models.RoleBuyer)

	req, _ := http.NewRequest("GET", "/payments/transactions/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentHandler_GetBalance_BuyerForbidden(t *testing.T) {
	handler := &PaymentHandler{}
	r := paymentTestRouter(handler, uuid.New(), models.RoleBuyer)

	req, _ := http.NewRequest("GET", "/payments/balance", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
