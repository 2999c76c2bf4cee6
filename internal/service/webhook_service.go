package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/domain/valueobject"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/logger"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/models"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/pkg/apperror"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/repository"
)

// Статусы платежа во входящем уведомлении шлюза.
const (
	WebhookStatusSuccess = "SUCCESS"
	WebhookStatusFailed  = "FAILED"
)

// PaymentConfirmer — подмножество менеджера escrow для адаптера платежей.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, p ConfirmPaymentParams) (*models.Transaction, error)
	GetByFulfillable(ctx context.Context, orderID, bookingID *uuid.UUID) (*models.Transaction, error)
}

// OrderTransitioner и BookingTransitioner — машины состояний, которые
// адаптер дёргает от имени системы.
type OrderTransitioner interface {
	RequestTransition(ctx context.Context, orderID uuid.UUID, target valueobject.OrderStatus, actorID uuid.UUID, role valueobject.Role) (*models.Order, error)
}

type BookingTransitioner interface {
	RequestTransition(ctx context.Context, bookingID uuid.UUID, target valueobject.BookingStatus, actorID uuid.UUID, role valueobject.Role) (*models.Booking, error)
}

// WebhookService — адаптер платёжного шлюза. Переводит уведомления
// шлюза в доменные операции: подтверждение оплаты в escrow и переход
// сделки в paid либо отмену при неуспехе. Обработка идемпотентна:
// повтор того же уведомления не меняет состояние.
type WebhookService struct {
	orders     OrderStore
	bookings   BookingStore
	escrow     PaymentConfirmer
	orderFSM   OrderTransitioner
	bookingFSM BookingTransitioner
}

func NewWebhookService(orders OrderStore, bookings BookingStore, escrow PaymentConfirmer, orderFSM OrderTransitioner, bookingFSM BookingTransitioner) *WebhookService {
	return &WebhookService{orders: orders, bookings: bookings, escrow: escrow, orderFSM: orderFSM, bookingFSM: bookingFSM}
}

// WebhookPayload — тело уведомления шлюза после проверки подписи.
type WebhookPayload struct {
	PaymentRef    string  `json:"payment_ref" binding:"required"`
	Status        string  `json:"status" binding:"required"`
	Amount        string  `json:"amount"`
	GatewayRef    string  `json:"gateway_ref"`
	PaymentMethod *string `json:"payment_method,omitempty"`
}

// ProcessWebhook обрабатывает уведомление шлюза.
func (s *WebhookService) ProcessWebhook(ctx context.Context, p WebhookPayload) error {
	switch p.Status {
	case WebhookStatusSuccess:
		return s.handleSuccess(ctx, p)
	case WebhookStatusFailed:
		return s.handleFailure(ctx, p)
	default:
		return apperror.New(apperror.ErrCodeValidation, "неизвестный статус платежа")
	}
}

// VerifyPayment сверяет платёж после редиректа покупателя. Если webhook
// уже пришёл и escrow создан, просто подтверждает факт; иначе при
// положительном индикаторе шлюза достраивает состояние сам.
func (s *WebhookService) VerifyPayment(ctx context.Context, paymentRef string, resultIndicator string) (*models.Transaction, error) {
	orderID, bookingID, err := s.resolveRef(ctx, paymentRef)
	if err != nil {
		return nil, err
	}

	if t, err := s.escrow.GetByFulfillable(ctx, orderID, bookingID); err == nil {
		return t, nil
	} else if !apperror.Is(err, apperror.ErrCodeNotFound) {
		return nil, err
	}

	if resultIndicator == "" {
		return nil, apperror.New(apperror.ErrCodePaymentNotConfirmed, "платёж ещё не подтверждён шлюзом")
	}

	if err := s.handleSuccess(ctx, WebhookPayload{
		PaymentRef: paymentRef,
		Status:     WebhookStatusSuccess,
		GatewayRef: resultIndicator,
	}); err != nil {
		return nil, err
	}
	return s.escrow.GetByFulfillable(ctx, orderID, bookingID)
}

func (s *WebhookService) handleSuccess(ctx context.Context, p WebhookPayload) error {
	order, booking, err := s.lookupByRef(ctx, p.PaymentRef)
	if err != nil {
		return err
	}

	params, target, err := s.confirmParams(order, booking, p)
	if err != nil {
		return err
	}

	if _, err := s.escrow.ConfirmPayment(ctx, params); err != nil {
		return err
	}

	if err := target(ctx); err != nil {
		// Повторный webhook: сделка уже в paid или дальше, деньги в
		// escrow, менять нечего.
		if apperror.Is(err, apperror.ErrCodeInvalidTransition) || apperror.Is(err, apperror.ErrCodeConflict) {
			if logger.Log != nil {
				logger.Log.WithField("payment_ref", p.PaymentRef).Info("webhook: повторное уведомление, состояние не изменено")
			}
			return nil
		}
		return err
	}
	return nil
}

func (s *WebhookService) handleFailure(ctx context.Context, p WebhookPayload) error {
	order, booking, err := s.lookupByRef(ctx, p.PaymentRef)
	if err != nil {
		return err
	}

	var cancelErr error
	if order != nil {
		_, cancelErr = s.orderFSM.RequestTransition(ctx, order.ID, valueobject.OrderStatusCancelled, uuid.Nil, valueobject.RoleSystem)
	} else {
		_, cancelErr = s.bookingFSM.RequestTransition(ctx, booking.ID, valueobject.BookingStatusCancelled, uuid.Nil, valueobject.RoleSystem)
	}
	if cancelErr != nil {
		// Запоздалый FAILED по сделке, которая уже оплачена или ушла
		// дальше: отмена либо недопустима, либо запрещена системной
		// роли. Шлюзу отвечаем успехом, иначе он будет слать повтор.
		if apperror.Is(cancelErr, apperror.ErrCodeInvalidTransition) ||
			apperror.Is(cancelErr, apperror.ErrCodeConflict) ||
			apperror.IsForbidden(cancelErr) {
			if logger.Log != nil {
				logger.Log.WithField("payment_ref", p.PaymentRef).Warn("webhook: отказ платежа по уже обработанной сделке")
			}
			return nil
		}
		return cancelErr
	}
	return nil
}

// confirmParams собирает параметры подтверждения и замыкание перехода
// в paid для найденной сделки.
func (s *WebhookService) confirmParams(order *models.Order, booking *models.Booking, p WebhookPayload) (ConfirmPaymentParams, func(context.Context) error, error) {
	amountSrc := p.Amount
	gatewayRef := p.GatewayRef
	if gatewayRef == "" {
		gatewayRef = p.PaymentRef
	}

	if order != nil {
		amount, err := s.resolveAmount(amountSrc, order.GrossAmount)
		if err != nil {
			return ConfirmPaymentParams{}, nil, err
		}
		params := ConfirmPaymentParams{
			OrderID:       &order.ID,
			SellerID:      order.SellerID,
			BuyerID:       order.BuyerID,
			Amount:        amount,
			GatewayRef:    gatewayRef,
			PaymentMethod: p.PaymentMethod,
		}
		transition := func(ctx context.Context) error {
			_, err := s.orderFSM.RequestTransition(ctx, order.ID, valueobject.OrderStatusPaid, uuid.Nil, valueobject.RoleSystem)
			return err
		}
		return params, transition, nil
	}

	amount, err := s.resolveAmount(amountSrc, booking.GrossAmount)
	if err != nil {
		return ConfirmPaymentParams{}, nil, err
	}
	params := ConfirmPaymentParams{
		BookingID:     &booking.ID,
		SellerID:      booking.SellerID,
		BuyerID:       booking.BuyerID,
		Amount:        amount,
		GatewayRef:    gatewayRef,
		PaymentMethod: p.PaymentMethod,
	}
	transition := func(ctx context.Context) error {
		_, err := s.bookingFSM.RequestTransition(ctx, booking.ID, valueobject.BookingStatusPaid, uuid.Nil, valueobject.RoleSystem)
		return err
	}
	return params, transition, nil
}

// resolveAmount парсит сумму из уведомления; пустая сумма означает
// сумму сделки.
func (s *WebhookService) resolveAmount(raw string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if raw == "" {
		return fallback, nil
	}
	amount, err := valueobject.ParseAmount(raw)
	if err != nil {
		return decimal.Decimal{}, apperror.New(apperror.ErrCodeValidation, "некорректная сумма в уведомлении")
	}
	return amount, nil
}

// lookupByRef ищет сделку по платёжной ссылке: сначала заказы, затем
// бронирования. Ровно один из результатов не nil.
func (s *WebhookService) lookupByRef(ctx context.Context, ref string) (*models.Order, *models.Booking, error) {
	order, err := s.orders.GetByPaymentRef(ctx, ref)
	if err == nil {
		return order, nil, nil
	}
	if !errors.Is(err, repository.ErrOrderNotFound) {
		return nil, nil, err
	}

	booking, err := s.bookings.GetByPaymentRef(ctx, ref)
	if err == nil {
		return nil, booking, nil
	}
	if errors.Is(err, repository.ErrBookingNotFound) {
		return nil, nil, apperror.New(apperror.ErrCodeNotFound, "сделка по платёжной ссылке не найдена")
	}
	return nil, nil, err
}

func (s *WebhookService) resolveRef(ctx context.Context, ref string) (orderID, bookingID *uuid.UUID, err error) {
	order, booking, err := s.lookupByRef(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	if order != nil {
		return &order.ID, nil, nil
	}
	return nil, &booking.ID, nil
}
