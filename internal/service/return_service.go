package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/domain/valueobject"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/models"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/pkg/apperror"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/repository"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/repository/common"
)

// ReturnStore — контракт хранилища запросов на возврат.
type ReturnStore interface {
	Create(ctx context.Context, req *models.ReturnRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	HasOpenForTransaction(ctx context.Context, txID uuid.UUID) (bool, error)
	SetSellerResponse(ctx context.Context, id uuid.UUID, decision valueobject.SellerDecision, newStatus valueobject.ReturnStatus, proposed *decimal.Decimal, response *string) error
	SetAdminDecision(ctx context.Context, id uuid.UUID, from, to valueobject.ReturnStatus, approved *decimal.Decimal, notes *string) error
	SetStatus(ctx context.Context, id uuid.UUID, from, to valueobject.ReturnStatus) error
	MarkClawbackRequired(ctx context.Context, id uuid.UUID) error
	AddEvidence(ctx context.Context, e *models.ReturnEvidence) error
	ListEvidence(ctx context.Context, returnID uuid.UUID) ([]models.ReturnEvidence, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.ReturnRequest, error)
}

// ReturnEscrow — подмножество менеджера escrow, нужное арбитражу возвратов.
type ReturnEscrow interface {
	GetTransaction(ctx context.Context, txID uuid.UUID) (*models.Transaction, error)
	GetByFulfillable(ctx context.Context, orderID, bookingID *uuid.UUID) (*models.Transaction, error)
	Refund(ctx context.Context, txID uuid.UUID, amount decimal.Decimal) (*models.Transaction, error)
}

// ReturnService — трёхсторонний арбитраж возврата: покупатель открывает
// запрос, продавец даёт совещательный ответ, админ выносит обязательное
// решение, которое через менеджер escrow меняет финансовый исход сделки.
type ReturnService struct {
	returns  ReturnStore
	orders   OrderStore
	bookings BookingStore
	escrow   ReturnEscrow
	events   EventPublisher
}

func NewReturnService(returns ReturnStore, orders OrderStore, bookings BookingStore, escrow ReturnEscrow, events EventPublisher) *ReturnService {
	return &ReturnService{returns: returns, orders: orders, bookings: bookings, escrow: escrow, events: events}
}

// CreateReturnParams — запрос покупателя. Заполняется ровно одна ссылка.
type CreateReturnParams struct {
	OrderID         *uuid.UUID
	BookingID       *uuid.UUID
	Reason          string
	Description     string
	RequestedAmount decimal.Decimal
}

// CreateReturn открывает запрос на возврат. Статус родителя не меняется:
// сделка лишь логически помечается спорной до решения админа.
func (s *ReturnService) CreateReturn(ctx context.Context, buyerID uuid.UUID, p CreateReturnParams) (*models.ReturnRequest, error) {
	if (p.OrderID == nil) == (p.BookingID == nil) {
		return nil, apperror.New(apperror.ErrCodeValidation, "возврат привязывается ровно к одному заказу или бронированию")
	}
	if p.Reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "причина возврата обязательна")
	}

	sellerID, err := s.checkParentAllowsReturn(ctx, buyerID, p)
	if err != nil {
		return nil, err
	}

	t, err := s.escrow.GetByFulfillable(ctx, p.OrderID, p.BookingID)
	if err != nil {
		return nil, err
	}

	requested := valueobject.Round2(p.RequestedAmount)
	if requested.Sign() <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "запрошенная сумма должна быть положительной")
	}
	if requested.GreaterThan(t.Amount) {
		return nil, apperror.New(apperror.ErrCodeValidation, "запрошенная сумма превышает сумму сделки")
	}

	open, err := s.returns.HasOpenForTransaction(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, apperror.New(apperror.ErrCodeConflict, "по этой сделке уже открыт возврат")
	}

	req := &models.ReturnRequest{
		OrderID:               p.OrderID,
		BookingID:             p.BookingID,
		TransactionID:         t.ID,
		BuyerID:               buyerID,
		SellerID:              sellerID,
		Reason:                p.Reason,
		Description:           p.Description,
		RequestedRefundAmount: requested,
		Status:                string(valueobject.ReturnStatusPending),
		SellerStatus:          string(valueobject.SellerDecisionPending),
	}
	if err := s.returns.Create(ctx, req); err != nil {
		if errors.Is(err, common.ErrDuplicate) {
			return nil, apperror.New(apperror.ErrCodeConflict, "по этой сделке уже открыт возврат")
		}
		return nil, err
	}

	s.notify(req, "return.opened")
	return req, nil
}

// SellerResponseParams — ответ продавца на запрос возврата.
type SellerResponseParams struct {
	Approve        bool
	ProposedAmount *decimal.Decimal
	Response       *string
}

// SellerRespond записывает единственный ответ продавца. Ответ ничего не
// финализирует: это совещательный вход для решения админа.
func (s *ReturnService) SellerRespond(ctx context.Context, sellerID, returnID uuid.UUID, p SellerResponseParams) (*models.ReturnRequest, error) {
	req, err := s.loadReturn(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if req.SellerID != sellerID {
		return nil, apperror.ErrForbidden
	}
	if !valueobject.ReturnStatus(req.Status).AwaitsSeller() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "ответ продавца уже не принимается")
	}

	decision := valueobject.SellerDecisionRejected
	newStatus := valueobject.ReturnStatusSellerRejected
	if p.Approve {
		decision = valueobject.SellerDecisionApproved
		newStatus = valueobject.ReturnStatusSellerApproved
	}

	if p.ProposedAmount != nil {
		proposed := valueobject.Round2(*p.ProposedAmount)
		t, err := s.escrow.GetTransaction(ctx, req.TransactionID)
		if err != nil {
			return nil, err
		}
		if proposed.Sign() <= 0 || proposed.GreaterThan(t.Amount) {
			return nil, apperror.New(apperror.ErrCodeValidation, "встречная сумма вне допустимого диапазона")
		}
		p.ProposedAmount = &proposed
	}

	if err := s.returns.SetSellerResponse(ctx, returnID, decision, newStatus, p.ProposedAmount, p.Response); err != nil {
		return nil, mapCASErr(err)
	}

	req.Status = string(newStatus)
	req.SellerStatus = string(decision)
	req.SellerProposedRefundAmount = p.ProposedAmount
	req.SellerResponse = p.Response

	s.notify(req, "return.seller_responded")
	return req, nil
}

// AdminDecisionParams — обязательное решение админа.
type AdminDecisionParams struct {
	Approve bool
	// Сумма возврата; nil — по умолчанию предложение продавца,
	// затем запрос покупателя.
	Amount *decimal.Decimal
	Notes  *string
}

// AdminDecide выносит решение админа. При одобрении менеджер escrow
// возвращает утверждённую сумму покупателю; если транзакция уже была
// выпущена продавцу, возврат помечается для ручного удержания и
// операция завершается ошибкой PostReleaseRefund — молча пометить
// такой возврат исполненным нельзя.
func (s *ReturnService) AdminDecide(ctx context.Context, returnID uuid.UUID, p AdminDecisionParams) (*models.ReturnRequest, error) {
	req, err := s.loadReturn(ctx, returnID)
	if err != nil {
		return nil, err
	}

	current := valueobject.ReturnStatus(req.Status)
	// Решение могло зафиксироваться при прошлой попытке, а исполнение
	// (возврат денег либо закрытие) оборваться. Повторный вызов тогда
	// не выносит новое решение, а доводит уже принятое до конца.
	switch {
	case current.AwaitsAdmin():
	case current == valueobject.ReturnStatusAdminApproved && !req.RequiresClawback:
		return s.resumeApproved(ctx, req)
	case current == valueobject.ReturnStatusAdminRejected:
		return s.resumeRejected(ctx, req)
	default:
		return nil, apperror.New(apperror.ErrCodeInvalidState, "решение по возврату уже вынесено")
	}

	if !p.Approve {
		if err := s.returns.SetAdminDecision(ctx, returnID, current, valueobject.ReturnStatusAdminRejected, nil, p.Notes); err != nil {
			return nil, mapCASErr(err)
		}
		// Отказ не трогает деньги: release пройдёт своим чередом
		// через основную машину состояний.
		if err := s.returns.SetStatus(ctx, returnID, valueobject.ReturnStatusAdminRejected, valueobject.ReturnStatusCompleted); err != nil {
			return nil, mapCASErr(err)
		}
		req.Status = string(valueobject.ReturnStatusCompleted)
		req.AdminNotes = p.Notes
		s.notify(req, "return.resolved")
		return req, nil
	}

	t, err := s.escrow.GetTransaction(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}

	approved := s.resolveApprovedAmount(req, p.Amount)
	if approved.Sign() <= 0 || approved.GreaterThan(t.Amount) {
		return nil, apperror.New(apperror.ErrCodeValidation, "утверждённая сумма вне допустимого диапазона")
	}

	if err := s.returns.SetAdminDecision(ctx, returnID, current, valueobject.ReturnStatusAdminApproved, &approved, p.Notes); err != nil {
		return nil, mapCASErr(err)
	}
	req.Status = string(valueobject.ReturnStatusAdminApproved)
	req.ApprovedRefundAmount = &approved
	req.AdminNotes = p.Notes

	if _, err := s.escrow.Refund(ctx, t.ID, approved); err != nil {
		if apperror.Is(err, apperror.ErrCodeInvalidState) {
			// Деньги уже у продавца: ledger не трогаем, возврат ждёт
			// ручного удержания с выплаты продавца.
			return s.markClawback(ctx, req)
		}
		return nil, err
	}

	if err := s.returns.SetStatus(ctx, returnID, valueobject.ReturnStatusAdminApproved, valueobject.ReturnStatusRefunded); err != nil {
		return nil, mapCASErr(err)
	}
	req.Status = string(valueobject.ReturnStatusRefunded)

	s.notify(req, "return.resolved")
	return req, nil
}

// resumeApproved доводит одобренный возврат: деньги по зафиксированной
// сумме, затем статус refunded. Если транзакция уже refunded, повторный
// вызов только закрывает статус.
func (s *ReturnService) resumeApproved(ctx context.Context, req *models.ReturnRequest) (*models.ReturnRequest, error) {
	if req.ApprovedRefundAmount == nil {
		return nil, apperror.New(apperror.ErrCodeInternal, "у одобренного возврата не зафиксирована сумма")
	}

	t, err := s.escrow.GetTransaction(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}

	if valueobject.TransactionStatus(t.Status) != valueobject.TransactionStatusRefunded {
		if _, err := s.escrow.Refund(ctx, t.ID, *req.ApprovedRefundAmount); err != nil {
			if apperror.Is(err, apperror.ErrCodeInvalidState) {
				return s.markClawback(ctx, req)
			}
			return nil, err
		}
	}

	if err := s.returns.SetStatus(ctx, req.ID, valueobject.ReturnStatusAdminApproved, valueobject.ReturnStatusRefunded); err != nil {
		return nil, mapCASErr(err)
	}
	req.Status = string(valueobject.ReturnStatusRefunded)

	s.notify(req, "return.resolved")
	return req, nil
}

// resumeRejected доводит отклонённый возврат до completed.
func (s *ReturnService) resumeRejected(ctx context.Context, req *models.ReturnRequest) (*models.ReturnRequest, error) {
	if err := s.returns.SetStatus(ctx, req.ID, valueobject.ReturnStatusAdminRejected, valueobject.ReturnStatusCompleted); err != nil {
		return nil, mapCASErr(err)
	}
	req.Status = string(valueobject.ReturnStatusCompleted)

	s.notify(req, "return.resolved")
	return req, nil
}

func (s *ReturnService) markClawback(ctx context.Context, req *models.ReturnRequest) (*models.ReturnRequest, error) {
	if err := s.returns.MarkClawbackRequired(ctx, req.ID); err != nil {
		return nil, err
	}
	req.RequiresClawback = true
	s.notify(req, "return.requires_clawback")
	return req, apperror.New(apperror.ErrCodePostReleaseRefund,
		"транзакция уже выпущена продавцу, возврат требует ручного удержания")
}

// AddEvidence прикрепляет файл-доказательство к открытому возврату.
func (s *ReturnService) AddEvidence(ctx context.Context, buyerID uuid.UUID, e *models.ReturnEvidence) error {
	req, err := s.loadReturn(ctx, e.ReturnRequestID)
	if err != nil {
		return err
	}
	if req.BuyerID != buyerID {
		return apperror.ErrForbidden
	}
	if valueobject.ReturnStatus(req.Status).IsTerminal() {
		return apperror.New(apperror.ErrCodeInvalidState, "возврат уже завершён")
	}
	e.UploadedBy = buyerID
	return s.returns.AddEvidence(ctx, e)
}

func (s *ReturnService) GetReturn(ctx context.Context, returnID, actorID uuid.UUID, role valueobject.Role) (*models.ReturnRequest, error) {
	req, err := s.loadReturn(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if role != valueobject.RoleAdmin && req.BuyerID != actorID && req.SellerID != actorID {
		return nil, apperror.ErrForbidden
	}
	return req, nil
}

func (s *ReturnService) ListEvidence(ctx context.Context, returnID uuid.UUID) ([]models.ReturnEvidence, error) {
	return s.returns.ListEvidence(ctx, returnID)
}

func (s *ReturnService) ListReturns(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.ReturnRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.returns.ListByUser(ctx, userID, limit, offset)
}

func (s *ReturnService) loadReturn(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	req, err := s.returns.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReturnNotFound) {
			return nil, apperror.ErrReturnNotFound
		}
		return nil, err
	}
	return req, nil
}

// checkParentAllowsReturn проверяет родителя и возвращает продавца сделки.
func (s *ReturnService) checkParentAllowsReturn(ctx context.Context, buyerID uuid.UUID, p CreateReturnParams) (uuid.UUID, error) {
	if p.OrderID != nil {
		order, err := s.orders.GetByID(ctx, *p.OrderID)
		if err != nil {
			if errors.Is(err, repository.ErrOrderNotFound) {
				return uuid.Nil, apperror.ErrOrderNotFound
			}
			return uuid.Nil, err
		}
		if order.BuyerID != buyerID {
			return uuid.Nil, apperror.ErrForbidden
		}
		if !valueobject.OrderStatus(order.Status).AllowsReturn() {
			return uuid.Nil, apperror.New(apperror.ErrCodeInvalidState, "возврат доступен после доставки или завершения заказа")
		}
		return order.SellerID, nil
	}

	booking, err := s.bookings.GetByID(ctx, *p.BookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return uuid.Nil, apperror.ErrBookingNotFound
		}
		return uuid.Nil, err
	}
	if booking.BuyerID != buyerID {
		return uuid.Nil, apperror.ErrForbidden
	}
	if !valueobject.BookingStatus(booking.Status).AllowsReturn() {
		return uuid.Nil, apperror.New(apperror.ErrCodeInvalidState, "возврат доступен после завершения бронирования")
	}
	return booking.SellerID, nil
}

// resolveApprovedAmount: приоритет — явная сумма админа, затем
// предложение продавца, затем запрос покупателя.
func (s *ReturnService) resolveApprovedAmount(req *models.ReturnRequest, override *decimal.Decimal) decimal.Decimal {
	if override != nil {
		return valueobject.Round2(*override)
	}
	if req.SellerProposedRefundAmount != nil {
		return valueobject.Round2(*req.SellerProposedRefundAmount)
	}
	return valueobject.Round2(req.RequestedRefundAmount)
}

func (s *ReturnService) notify(req *models.ReturnRequest, event string) {
	if s.events == nil {
		return
	}
	payload := map[string]any{
		"return_id": req.ID,
		"status":    req.Status,
	}
	s.events.Publish(req.BuyerID, event, payload)
	s.events.Publish(req.SellerID, event, payload)
}
