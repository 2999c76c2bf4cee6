package valueobject

import "github.com/ranukawijayapala-vaaney/vaaney-backend/internal/pkg/apperror"

// Role — роль участника, запрашивающего переход.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
	// RoleSystem используется внутренними вызовами: вебхук шлюза,
	// автоматические переходы. Снаружи такая роль не выдаётся.
	RoleSystem Role = "system"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// OrderStatus — статус заказа товара.
type OrderStatus string

const (
	OrderStatusCreated    OrderStatus = "created"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Таблица допустимых переходов заказа. Пустой список — терминальный статус.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated:    {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted:  {},
	OrderStatusCancelled:  {},
}

// Роли, которым разрешено инициировать конкретное ребро.
// Подтверждение оплаты (created -> paid) доступно только системе и админу.
var orderEdgeRoles = map[OrderStatus]map[OrderStatus][]Role{
	OrderStatusCreated: {
		OrderStatusPaid:      {RoleSystem, RoleAdmin},
		OrderStatusCancelled: {RoleBuyer, RoleSeller, RoleAdmin, RoleSystem},
	},
	OrderStatusPaid: {
		OrderStatusProcessing: {RoleSeller, RoleAdmin},
		OrderStatusCancelled:  {RoleBuyer, RoleSeller, RoleAdmin},
	},
	OrderStatusProcessing: {
		OrderStatusShipped:   {RoleSeller, RoleAdmin},
		OrderStatusCancelled: {RoleBuyer, RoleSeller, RoleAdmin},
	},
	OrderStatusShipped: {
		OrderStatusDelivered: {RoleBuyer, RoleAdmin},
		OrderStatusCancelled: {RoleBuyer, RoleSeller, RoleAdmin},
	},
	OrderStatusDelivered: {
		OrderStatusCompleted: {RoleBuyer, RoleAdmin},
		OrderStatusCancelled: {RoleAdmin},
	},
}

func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0 && s.IsValid()
}

// CanTransitionTo проверяет ребро по таблице переходов.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// EdgeAllowedFor проверяет, может ли роль инициировать переход s -> next.
func (s OrderStatus) EdgeAllowedFor(next OrderStatus, role Role) bool {
	edges, ok := orderEdgeRoles[s]
	if !ok {
		return false
	}
	for _, allowed := range edges[next] {
		if allowed == role {
			return true
		}
	}
	return false
}

// AllowsReturn сообщает, можно ли открыть запрос на возврат по заказу.
func (s OrderStatus) AllowsReturn() bool {
	return s == OrderStatusDelivered || s == OrderStatusCompleted
}

func NewOrderStatus(status string) (OrderStatus, error) {
	s := OrderStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус заказа")
	}
	return s, nil
}

// BookingStatus — статус бронирования услуги.
type BookingStatus string

const (
	BookingStatusCreated    BookingStatus = "created"
	BookingStatusPaid       BookingStatus = "paid"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusCreated:    {BookingStatusPaid, BookingStatusCancelled},
	BookingStatusPaid:       {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed:  {BookingStatusInProgress, BookingStatusCancelled},
	BookingStatusInProgress: {BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusCompleted:  {},
	BookingStatusCancelled:  {},
}

var bookingEdgeRoles = map[BookingStatus]map[BookingStatus][]Role{
	BookingStatusCreated: {
		BookingStatusPaid:      {RoleSystem, RoleAdmin},
		BookingStatusCancelled: {RoleBuyer, RoleSeller, RoleAdmin, RoleSystem},
	},
	BookingStatusPaid: {
		BookingStatusConfirmed: {RoleSeller, RoleAdmin},
		BookingStatusCancelled: {RoleBuyer, RoleSeller, RoleAdmin},
	},
	BookingStatusConfirmed: {
		BookingStatusInProgress: {RoleSeller, RoleAdmin},
		BookingStatusCancelled:  {RoleBuyer, RoleSeller, RoleAdmin},
	},
	BookingStatusInProgress: {
		BookingStatusCompleted: {RoleBuyer, RoleAdmin},
		BookingStatusCancelled: {RoleAdmin},
	},
}

func (s BookingStatus) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0 && s.IsValid()
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) EdgeAllowedFor(next BookingStatus, role Role) bool {
	edges, ok := bookingEdgeRoles[s]
	if !ok {
		return false
	}
	for _, allowed := range edges[next] {
		if allowed == role {
			return true
		}
	}
	return false
}

// AllowsReturn: для бронирований возврат открывается только после завершения.
func (s BookingStatus) AllowsReturn() bool {
	return s == BookingStatusCompleted
}

func NewBookingStatus(status string) (BookingStatus, error) {
	s := BookingStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус бронирования")
	}
	return s, nil
}

// TransactionStatus — статус escrow-транзакции.
// Легальны только pending -> escrow -> released и escrow -> refunded.
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusEscrow   TransactionStatus = "escrow"
	TransactionStatusReleased TransactionStatus = "released"
	TransactionStatusRefunded TransactionStatus = "refunded"
)

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending:  {TransactionStatusEscrow},
	TransactionStatusEscrow:   {TransactionStatusReleased, TransactionStatusRefunded},
	TransactionStatusReleased: {},
	TransactionStatusRefunded: {},
}

func (s TransactionStatus) IsValid() bool {
	_, ok := transactionTransitions[s]
	return ok
}

func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transactionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ReturnStatus — статус запроса на возврат.
type ReturnStatus string

const (
	ReturnStatusPending        ReturnStatus = "pending"
	ReturnStatusSellerApproved ReturnStatus = "seller_approved"
	ReturnStatusSellerRejected ReturnStatus = "seller_rejected"
	ReturnStatusAdminApproved  ReturnStatus = "admin_approved"
	ReturnStatusAdminRejected  ReturnStatus = "admin_rejected"
	ReturnStatusRefunded       ReturnStatus = "refunded"
	ReturnStatusCompleted      ReturnStatus = "completed"
)

// Ответ продавца — совещательный, админ может решать и без него,
// поэтому из pending открыты и рёбра к admin_*.
var returnTransitions = map[ReturnStatus][]ReturnStatus{
	ReturnStatusPending:        {ReturnStatusSellerApproved, ReturnStatusSellerRejected, ReturnStatusAdminApproved, ReturnStatusAdminRejected},
	ReturnStatusSellerApproved: {ReturnStatusAdminApproved, ReturnStatusAdminRejected},
	ReturnStatusSellerRejected: {ReturnStatusAdminApproved, ReturnStatusAdminRejected},
	ReturnStatusAdminApproved:  {ReturnStatusRefunded},
	ReturnStatusAdminRejected:  {ReturnStatusCompleted},
	ReturnStatusRefunded:       {},
	ReturnStatusCompleted:      {},
}

func (s ReturnStatus) IsValid() bool {
	_, ok := returnTransitions[s]
	return ok
}

func (s ReturnStatus) IsTerminal() bool {
	return len(returnTransitions[s]) == 0 && s.IsValid()
}

func (s ReturnStatus) CanTransitionTo(next ReturnStatus) bool {
	for _, allowed := range returnTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AwaitsSeller: продавец может ответить только пока запрос в pending.
func (s ReturnStatus) AwaitsSeller() bool {
	return s == ReturnStatusPending
}

// AwaitsAdmin: админ выносит решение до любого terminal/admin статуса.
func (s ReturnStatus) AwaitsAdmin() bool {
	switch s {
	case ReturnStatusPending, ReturnStatusSellerApproved, ReturnStatusSellerRejected:
		return true
	}
	return false
}

// SellerDecision — независимое решение продавца (подполе sellerStatus).
type SellerDecision string

const (
	SellerDecisionPending  SellerDecision = "pending"
	SellerDecisionApproved SellerDecision = "approved"
	SellerDecisionRejected SellerDecision = "rejected"
)
