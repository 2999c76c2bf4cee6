package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/domain/valueobject"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/logger"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/models"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/pkg/apperror"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/repository"
)

// BookingStore — контракт хранилища бронирований.
type BookingStore interface {
	Create(ctx context.Context, b *models.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	GetByPaymentRef(ctx context.Context, ref string) (*models.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to valueobject.BookingStatus) error
	AddStatusChange(ctx context.Context, c *models.StatusChange) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Booking, error)
}

// BookingService — машина состояний бронирования услуги. Денежная
// механика общая с заказами, набор статусов свой.
type BookingService struct {
	bookings BookingStore
	catalog  CatalogStore
	escrow   EscrowManager
	events   EventPublisher
}

func NewBookingService(bookings BookingStore, catalog CatalogStore, escrow EscrowManager, events EventPublisher) *BookingService {
	return &BookingService{bookings: bookings, catalog: catalog, escrow: escrow, events: events}
}

// CreateBookingParams — запрос покупателя на бронирование пакета услуги.
type CreateBookingParams struct {
	PackageID   uuid.UUID
	ScheduledAt time.Time
	QuoteID     *uuid.UUID
}

func (s *BookingService) CreateBooking(ctx context.Context, buyerID uuid.UUID, p CreateBookingParams) (*models.Booking, error) {
	if p.ScheduledAt.Before(time.Now()) {
		return nil, apperror.New(apperror.ErrCodeValidation, "время бронирования уже прошло")
	}

	pkg, err := s.catalog.GetPackage(ctx, p.PackageID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeNotFound, "пакет услуги не найден")
	}

	gross := pkg.Price
	if p.QuoteID != nil {
		quote, err := s.catalog.GetQuote(ctx, *p.QuoteID)
		if err != nil {
			return nil, apperror.ErrQuoteNotFound
		}
		if quote.Status != models.QuoteStatusAccepted {
			return nil, apperror.New(apperror.ErrCodeValidation, "коммерческое предложение не принято")
		}
		if quote.BuyerID != buyerID || quote.SellerID != pkg.SellerID {
			return nil, apperror.ErrForbidden
		}
		gross = quote.Price
	}

	gross, err = valueobject.NewGrossAmount(gross)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		BuyerID:     buyerID,
		SellerID:    pkg.SellerID,
		PackageID:   p.PackageID,
		ScheduledAt: p.ScheduledAt,
		QuoteID:     p.QuoteID,
		GrossAmount: gross,
		PaymentRef:  uuid.NewString(),
		Status:      string(valueobject.BookingStatusCreated),
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, bookingID, actorID uuid.UUID, role valueobject.Role) (*models.Booking, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if role != valueobject.RoleAdmin && booking.BuyerID != actorID && booking.SellerID != actorID {
		return nil, apperror.ErrForbidden
	}
	return booking, nil
}

func (s *BookingService) ListBookings(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.bookings.ListByUser(ctx, userID, limit, offset)
}

// RequestTransition — тот же контракт, что и у заказов: проверка ребра,
// права роли, принадлежности, затем CAS. completed выпускает escrow,
// отмена до завершения возвращает оплату.
func (s *BookingService) RequestTransition(ctx context.Context, bookingID uuid.UUID, target valueobject.BookingStatus, actorID uuid.UUID, role valueobject.Role) (*models.Booking, error) {
	if !target.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректный статус бронирования")
	}

	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeActor(booking, actorID, role); err != nil {
		return nil, err
	}

	current := valueobject.BookingStatus(booking.Status)
	// Повтор уже состоявшегося терминального перехода добивает денежную
	// операцию, оборвавшуюся после записи статуса.
	if current == target {
		switch target {
		case valueobject.BookingStatusCompleted:
			if err := s.releaseEscrow(ctx, booking); err != nil {
				return nil, err
			}
			return booking, nil
		case valueobject.BookingStatusCancelled:
			if err := s.refundEscrow(ctx, booking); err != nil {
				return nil, err
			}
			return booking, nil
		}
	}
	if !current.CanTransitionTo(target) {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "переход из текущего статуса недопустим")
	}
	if !current.EdgeAllowedFor(target, role) {
		return nil, apperror.ErrForbidden
	}

	if err := s.bookings.UpdateStatus(ctx, bookingID, current, target); err != nil {
		return nil, mapCASErr(err)
	}
	booking.Status = string(target)

	s.recordChange(ctx, booking, current, target, actorID, role)
	s.notifyParties(booking, current, target)

	switch target {
	case valueobject.BookingStatusCompleted:
		if err := s.releaseEscrow(ctx, booking); err != nil {
			return nil, err
		}
	case valueobject.BookingStatusCancelled:
		if err := s.refundEscrow(ctx, booking); err != nil {
			return nil, err
		}
	}

	return booking, nil
}

func (s *BookingService) loadBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, apperror.ErrBookingNotFound
		}
		return nil, err
	}
	return booking, nil
}

func (s *BookingService) authorizeActor(booking *models.Booking, actorID uuid.UUID, role valueobject.Role) error {
	switch role {
	case valueobject.RoleAdmin, valueobject.RoleSystem:
		return nil
	case valueobject.RoleBuyer:
		if booking.BuyerID != actorID {
			return apperror.ErrForbidden
		}
	case valueobject.RoleSeller:
		if booking.SellerID != actorID {
			return apperror.ErrForbidden
		}
	default:
		return apperror.ErrForbidden
	}
	return nil
}

func (s *BookingService) releaseEscrow(ctx context.Context, booking *models.Booking) error {
	t, err := s.escrow.GetByFulfillable(ctx, nil, &booking.ID)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "бронирование завершено, но транзакция не найдена")
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

func (s *BookingService) refundEscrow(ctx context.Context, booking *models.Booking) error {
	t, err := s.escrow.GetByFulfillable(ctx, nil, &booking.ID)
	if err != nil {
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

func (s *BookingService) recordChange(ctx context.Context, booking *models.Booking, from, to valueobject.BookingStatus, actorID uuid.UUID, role valueobject.Role) {
	change := &models.StatusChange{
		BookingID:  &booking.ID,
		FromStatus: string(from),
		ToStatus:   string(to),
		ActorRole:  string(role),
	}
	if role != valueobject.RoleSystem {
		change.ActorID = &actorID
	}
	if err := s.bookings.AddStatusChange(ctx, change); err != nil && logger.Log != nil {
		logger.Log.WithError(err).Warn("booking: не удалось записать аудит смены статуса")
	}
}

func (s *BookingService) notifyParties(booking *models.Booking, from, to valueobject.BookingStatus) {
	if s.events == nil {
		return
	}
	payload := map[string]any{
		"booking_id": booking.ID,
		"from":       string(from),
		"to":         string(to),
	}
	s.events.Publish(booking.BuyerID, "booking.status_changed", payload)
	s.events.Publish(booking.SellerID, "booking.status_changed", payload)
}
