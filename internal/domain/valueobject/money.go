package valueobject

import (
	"github.com/shopspring/decimal"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/pkg/apperror"
)

// Все денежные суммы хранятся и считаются как decimal.
// Плавающая точка для денег не используется нигде в проекте.

var hundred = decimal.NewFromInt(100)

// Round2 округляет сумму до двух знаков после запятой (half-up).
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// NewGrossAmount проверяет и нормализует сумму сделки. Сумма строго положительна.
func NewGrossAmount(v decimal.Decimal) (decimal.Decimal, error) {
	if v.Sign() <= 0 {
		return decimal.Zero, apperror.New(apperror.ErrCodeValidation, "сумма должна быть положительной")
	}
	return Round2(v), nil
}

// ParseAmount разбирает сумму из строкового поля запроса.
func ParseAmount(raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.ErrCodeValidation, "некорректный формат суммы")
	}
	return v, nil
}

// SameAmount сравнивает две суммы с точностью до копейки.
func SameAmount(a, b decimal.Decimal) bool {
	return Round2(a).Equal(Round2(b))
}
