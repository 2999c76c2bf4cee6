package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReturnRequest — запрос покупателя на возврат по завершённой или
// доставленной сделке. Привязан ровно к одному заказу или бронированию.
type ReturnRequest struct {
	ID uuid.UUID `db:"id" json:"id"`

	OrderID   *uuid.UUID `db:"order_id" json:"order_id,omitempty"`
	BookingID *uuid.UUID `db:"booking_id" json:"booking_id,omitempty"`

	TransactionID uuid.UUID `db:"transaction_id" json:"transaction_id"`
	BuyerID       uuid.UUID `db:"buyer_id" json:"buyer_id"`
	SellerID      uuid.UUID `db:"seller_id" json:"seller_id"`

	Reason      string `db:"reason" json:"reason"`
	Description string `db:"description" json:"description"`

	// Запрошенная покупателем сумма, не больше исходной суммы сделки.
	RequestedRefundAmount decimal.Decimal `db:"requested_refund_amount" json:"requested_refund_amount"`

	// Встречное предложение продавца, совещательное.
	SellerProposedRefundAmount *decimal.Decimal `db:"seller_proposed_refund_amount" json:"seller_proposed_refund_amount,omitempty"`
	SellerResponse             *string          `db:"seller_response" json:"seller_response,omitempty"`

	// Итоговая сумма, утверждённая админом. После установки неизменяема.
	ApprovedRefundAmount *decimal.Decimal `db:"approved_refund_amount" json:"approved_refund_amount,omitempty"`
	AdminNotes           *string          `db:"admin_notes" json:"admin_notes,omitempty"`

	Status       string `db:"status" json:"status"`
	SellerStatus string `db:"seller_status" json:"seller_status"`

	// Транзакция была выпущена продавцу до решения админа: возврат
	// исполняется вручную, ledger не трогаем.
	RequiresClawback bool `db:"requires_clawback" json:"requires_clawback"`

	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// ReturnEvidence — файл-доказательство, приложенный покупателем.
type ReturnEvidence struct {
	ID              uuid.UUID `db:"id" json:"id"`
	ReturnRequestID uuid.UUID `db:"return_request_id" json:"return_request_id"`
	FilePath        string    `db:"file_path" json:"file_path"`
	ContentType     string    `db:"content_type" json:"content_type"`
	SizeBytes       int64     `db:"size_bytes" json:"size_bytes"`
	UploadedBy      uuid.UUID `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
