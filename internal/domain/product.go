package domain

import "time"

// Product: позиция каталога с доступным остатком и текущей ценой.
type Product struct {
	ID   string
	Name string
	// Quantity: доступный остаток, не может быть отрицательным.
	Quantity int32
	// PriceMinor: цена за единицу в минимальных денежных единицах.
	PriceMinor int64
	UpdatedAt  time.Time
}

// Validate проверяет поля товара перед записью в каталог.
func (p *Product) Validate() []error {
	var errs []error
	if p.ID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if p.Quantity < 0 {
		errs = append(errs, ErrStockNegative)
	}
	if p.PriceMinor < 0 {
		errs = append(errs, ErrItemPriceInvalid)
	}
	return errs
}

// StockUpdate задаёт новое абсолютное значение остатка товара.
// Запись абсолютного значения идемпотентна, поэтому её можно безопасно повторять.
type StockUpdate struct {
	ProductID string
	Quantity  int32
}
