package domain

import (
	"errors"
	"strings"
)

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// Ошибка пустого идентификатора товара в позиции запроса.
	ErrProductIDRequired = errors.New("product_id is required")
	// Ошибка повторяющегося товара в одном запросе.
	ErrDuplicateProduct = errors.New("product_id must not repeat within one order")
	// Ошибка отрицательного остатка товара.
	ErrStockNegative = errors.New("product quantity must be non-negative")

	// ErrCustomerNotFound: клиент не зарегистрирован.
	ErrCustomerNotFound = errors.New("customer not registered")
	// ErrProductNotFound: один или несколько товаров не зарегистрированы.
	ErrProductNotFound = errors.New("one or more products not registered")
	// ErrInsufficientStock: у одного или нескольких товаров не хватает остатка.
	ErrInsufficientStock = errors.New("one or more products with insufficient quantity")
	// ErrInvalidRequest: запрос на создание заказа некорректен по форме.
	ErrInvalidRequest = errors.New("invalid order request")
	// ErrStockAdjustment: заказ сохранён, но списание остатков не удалось.
	ErrStockAdjustment = errors.New("order persisted but stock adjustment failed")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrCustomerAlreadyExists: клиент с таким ID уже зарегистрирован.
	ErrCustomerAlreadyExists = errors.New("customer already exists")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// Ошибки idempotency-хранилища.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")
)

// ErrorKind: машинно-проверяемый вид ошибки создания заказа.
type ErrorKind string

const (
	KindInvalidRequest    ErrorKind = "invalid_request"
	KindCustomerNotFound  ErrorKind = "customer_not_found"
	KindProductNotFound   ErrorKind = "product_not_found"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindStockAdjustment   ErrorKind = "stock_adjustment"
)

// sentinel возвращает базовую ошибку, соответствующую виду.
func (k ErrorKind) sentinel() error {
	switch k {
	case KindCustomerNotFound:
		return ErrCustomerNotFound
	case KindProductNotFound:
		return ErrProductNotFound
	case KindInsufficientStock:
		return ErrInsufficientStock
	case KindStockAdjustment:
		return ErrStockAdjustment
	default:
		return ErrInvalidRequest
	}
}

// CheckoutError: типизированная ошибка сценария создания заказа.
// errors.Is(err, ErrInsufficientStock) и аналоги работают через Unwrap.
type CheckoutError struct {
	Kind ErrorKind
	// Message: человекочитаемое описание; пустое значение заменяется текстом sentinel-ошибки.
	Message string
	// ProductIDs перечисляет проблемные товары (не найдены / не хватает остатка).
	ProductIDs []string
	// Err хранит исходную причину, если она есть.
	Err error
}

// NewCheckoutError создаёт ошибку заданного вида.
func NewCheckoutError(kind ErrorKind, productIDs []string, cause error) *CheckoutError {
	return &CheckoutError{Kind: kind, ProductIDs: productIDs, Err: cause}
}

func (e *CheckoutError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.sentinel().Error()
	}
	if len(e.ProductIDs) > 0 {
		msg += " [" + strings.Join(e.ProductIDs, ", ") + "]"
	}
	if e.Err != nil && !errors.Is(e.Kind.sentinel(), e.Err) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap отдаёт sentinel вида и исходную причину.
func (e *CheckoutError) Unwrap() []error {
	errs := []error{e.Kind.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf извлекает вид ошибки; ok=false, если это не CheckoutError.
func KindOf(err error) (ErrorKind, bool) {
	var ce *CheckoutError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsIdempotencyConflict проверяет, что ключ идемпотентности уже занят.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
