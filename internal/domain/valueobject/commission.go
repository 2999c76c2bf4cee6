package valueobject

import (
	"github.com/shopspring/decimal"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/pkg/apperror"
)

// CommissionSplit — результат расчёта комиссии платформы.
// Инвариант: Commission + SellerPayout равно исходной сумме до копейки,
// остаток округления всегда уходит продавцу.
type CommissionSplit struct {
	Commission   decimal.Decimal
	SellerPayout decimal.Decimal
}

// SplitCommission делит сумму сделки между платформой и продавцом.
// Чистая функция: никакого внешнего состояния, ставка передаётся снаружи
// и берётся из снимка на транзакции, а не из актуального профиля продавца.
func SplitCommission(gross, ratePercent decimal.Decimal) (CommissionSplit, error) {
	if gross.Sign() <= 0 {
		return CommissionSplit{}, apperror.New(apperror.ErrCodeValidation, "сумма должна быть положительной")
	}
	if ratePercent.Sign() < 0 || ratePercent.GreaterThan(hundred) {
		// Ставка выше 100% — ошибка конфигурации, отклоняется до расчёта.
		return CommissionSplit{}, apperror.New(apperror.ErrCodeValidation, "ставка комиссии вне диапазона 0..100")
	}

	gross = Round2(gross)
	commission := Round2(gross.Mul(ratePercent).Div(hundred))

	return CommissionSplit{
		Commission:   commission,
		SellerPayout: gross.Sub(commission),
	}, nil
}
