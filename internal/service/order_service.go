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
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/repository/common"
)

// OrderStore — контракт хранилища заказов.
type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByPaymentRef(ctx context.Context, ref string) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to valueobject.OrderStatus) error
	AddStatusChange(ctx context.Context, c *models.StatusChange) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error)
}

// CatalogStore — каталожные данные, нужные при создании сделки.
type CatalogStore interface {
	GetVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
	GetVariantSeller(ctx context.Context, variantID uuid.UUID) (uuid.UUID, error)
	GetPackage(ctx context.Context, id uuid.UUID) (*models.ServicePackage, error)
	GetQuote(ctx context.Context, id uuid.UUID) (*models.Quote, error)
}

// EscrowManager — операции с деньгами, которые машина состояний дёргает
// в терминальных точках жизненного цикла.
type EscrowManager interface {
	Release(ctx context.Context, txID uuid.UUID) (*models.Transaction, error)
	Refund(ctx context.Context, txID uuid.UUID, amount decimal.Decimal) (*models.Transaction, error)
	GetByFulfillable(ctx context.Context, orderID, bookingID *uuid.UUID) (*models.Transaction, error)
}

// EventPublisher отправляет событие пользователю. Реализация может
// отсутствовать, сервисы обязаны переживать nil.
type EventPublisher interface {
	Publish(userID uuid.UUID, event string, data any)
}

// OrderService — машина состояний заказа. Каждый переход — короткая
// атомарная операция через CAS по статусу; достижение completed ровно
// один раз выпускает escrow, отмена до completed возвращает деньги.
type OrderService struct {
	orders  OrderStore
	catalog CatalogStore
	escrow  EscrowManager
	events  EventPublisher
}

func NewOrderService(orders OrderStore, catalog CatalogStore, escrow EscrowManager, events EventPublisher) *OrderService {
	return &OrderService{orders: orders, catalog: catalog, escrow: escrow, events: events}
}

// CreateOrderParams — запрос покупателя на создание заказа.
type CreateOrderParams struct {
	VariantID uuid.UUID
	Quantity  int
	QuoteID   *uuid.UUID
}

// CreateOrder создаёт заказ в статусе created. Цена берётся из каталога,
// принятое коммерческое предложение замещает каталожную цену целиком.
func (s *OrderService) CreateOrder(ctx context.Context, buyerID uuid.UUID, p CreateOrderParams) (*models.Order, error) {
	if p.Quantity <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "количество должно быть положительным")
	}

	variant, err := s.catalog.GetVariant(ctx, p.VariantID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeNotFound, "вариант товара не найден")
	}
	sellerID, err := s.catalog.GetVariantSeller(ctx, p.VariantID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeNotFound, "вариант товара не найден")
	}

	gross := variant.Price.Mul(decimal.NewFromInt(int64(p.Quantity)))
	if p.QuoteID != nil {
		quote, err := s.catalog.GetQuote(ctx, *p.QuoteID)
		if err != nil {
			return nil, apperror.ErrQuoteNotFound
		}
		if quote.Status != models.QuoteStatusAccepted {
			return nil, apperror.New(apperror.ErrCodeValidation, "коммерческое предложение не принято")
		}
		if quote.BuyerID != buyerID || quote.SellerID != sellerID {
			return nil, apperror.ErrForbidden
		}
		gross = quote.Price
	}

	gross, err = valueobject.NewGrossAmount(gross)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		BuyerID:     buyerID,
		SellerID:    sellerID,
		VariantID:   p.VariantID,
		Quantity:    p.Quantity,
		QuoteID:     p.QuoteID,
		GrossAmount: gross,
		PaymentRef:  uuid.NewString(),
		Status:      string(valueobject.OrderStatusCreated),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrder возвращает заказ участнику сделки или админу.
func (s *OrderService) GetOrder(ctx context.Context, orderID, actorID uuid.UUID, role valueobject.Role) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if role != valueobject.RoleAdmin && order.BuyerID != actorID && order.SellerID != actorID {
		return nil, apperror.ErrForbidden
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.orders.ListByUser(ctx, userID, limit, offset)
}

// RequestTransition валидирует и исполняет переход статуса заказа.
// Порядок проверок: существование ребра, право роли, принадлежность
// актёра сделке, затем CAS-запись. Проигравший гонку получает Conflict
// и должен повторить операцию с перечитанным состоянием.
func (s *OrderService) RequestTransition(ctx context.Context, orderID uuid.UUID, target valueobject.OrderStatus, actorID uuid.UUID, role valueobject.Role) (*models.Order, error) {
	if !target.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректный статус заказа")
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeActor(order, actorID, role); err != nil {
		return nil, err
	}

	current := valueobject.OrderStatus(order.Status)
	// Повторный запрос уже состоявшегося терминального перехода: статус
	// зафиксирован прошлой попыткой, но денежная операция могла оборваться
	// между записью статуса и вызовом escrow. Вместо отказа добиваем её.
	if current == target {
		switch target {
		case valueobject.OrderStatusCompleted:
			if err := s.releaseEscrow(ctx, order); err != nil {
				return nil, err
			}
			return order, nil
		case valueobject.OrderStatusCancelled:
			if err := s.refundEscrow(ctx, order); err != nil {
				return nil, err
			}
			return order, nil
		}
	}
	if !current.CanTransitionTo(target) {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "переход из текущего статуса недопустим")
	}
	if !current.EdgeAllowedFor(target, role) {
		return nil, apperror.ErrForbidden
	}

	if err := s.orders.UpdateStatus(ctx, orderID, current, target); err != nil {
		return nil, mapCASErr(err)
	}
	order.Status = string(target)

	s.recordChange(ctx, order, current, target, actorID, role)
	s.notifyParties(order, current, target)

	// Терминальные события дёргают escrow ровно один раз: сюда попадает
	// только победитель CAS, а сами денежные операции легальны лишь из escrow.
	switch target {
	case valueobject.OrderStatusCompleted:
		if err := s.releaseEscrow(ctx, order); err != nil {
			return nil, err
		}
	case valueobject.OrderStatusCancelled:
		if err := s.refundEscrow(ctx, order); err != nil {
			return nil, err
		}
	}

	return order, nil
}

func (s *OrderService) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *OrderService) authorizeActor(order *models.Order, actorID uuid.UUID, role valueobject.Role) error {
	switch role {
	case valueobject.RoleAdmin, valueobject.RoleSystem:
		return nil
	case valueobject.RoleBuyer:
		if order.BuyerID != actorID {
			return apperror.ErrForbidden
		}
	case valueobject.RoleSeller:
		if order.SellerID != actorID {
			return apperror.ErrForbidden
		}
	default:
		return apperror.ErrForbidden
	}
	return nil
}

func (s *OrderService) releaseEscrow(ctx context.Context, order *models.Order) error {
	t, err := s.escrow.GetByFulfillable(ctx, &order.ID, nil)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "заказ завершён, но транзакция не найдена")
	}
	if _, err := s.escrow.Release(ctx, t.ID); err != nil {
		// Средства уже разведены предыдущей попыткой или возвратом.
		if apperror.Is(err, apperror.ErrCodeInvalidState) {
			return nil
		}
		return err
	}
	return nil
}

func (s *OrderService) refundEscrow(ctx context.Context, order *models.Order) error {
	t, err := s.escrow.GetByFulfillable(ctx, &order.ID, nil)
	if err != nil {
		// Неоплаченный заказ отменяется без денежных движений.
		if apperror.IsNotFound(err) {
			return nil
		}
		return err
	}
	if _, err := s.escrow.Refund(ctx, t.ID, t.Amount); err != nil {
		// Средства уже разведены предыдущей попыткой.
		if apperror.Is(err, apperror.ErrCodeInvalidState) {
			return nil
		}
		return err
	}
	return nil
}

func (s *OrderService) recordChange(ctx context.Context, order *models.Order, from, to valueobject.OrderStatus, actorID uuid.UUID, role valueobject.Role) {
	change := &models.StatusChange{
		OrderID:    &order.ID,
		FromStatus: string(from),
		ToStatus:   string(to),
		ActorRole:  string(role),
	}
	if role != valueobject.RoleSystem {
		change.ActorID = &actorID
	}
	if err := s.orders.AddStatusChange(ctx, change); err != nil && logger.Log != nil {
		// Аудит не должен валить основной переход.
		logger.Log.WithError(err).Warn("order: не удалось записать аудит смены статуса")
	}
}

func (s *OrderService) notifyParties(order *models.Order, from, to valueobject.OrderStatus) {
	if s.events == nil {
		return
	}
	payload := map[string]any{
		"order_id": order.ID,
		"from":     string(from),
		"to":       string(to),
	}
	s.events.Publish(order.BuyerID, "order.status_changed", payload)
	s.events.Publish(order.SellerID, "order.status_changed", payload)
}

// mapCASErr переводит ошибки CAS в apperror для единообразного ответа API.
func mapCASErr(err error) error {
	if errors.Is(err, common.ErrStatusConflict) {
		return apperror.New(apperror.ErrCodeConflict, "состояние изменилось, повторите операцию")
	}
	return err
}
