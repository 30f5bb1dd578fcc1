package domain

import "time"

// IdempotencyStatus: стадия обработки запроса на создание заказа под одним ключом.
type IdempotencyStatus string

const (
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	IdempotencyStatusDone       IdempotencyStatus = "done"
	// IdempotencyStatusFailed: заказ отклонён, отказ сохранён и повторяется по ключу.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// Valid сообщает, знает ли orderdesk такой статус.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}

// Settled: ответ сохранён, повтор запроса получает его без нового оформления заказа.
func (s IdempotencyStatus) Settled() bool {
	return s == IdempotencyStatusDone || s == IdempotencyStatusFailed
}

// IdempotencyRecord: ответ на запрос создания заказа, сохранённый под Idempotency-Key.
// HTTPStatus для gRPC хранит код ответа.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ExpiredAt сообщает, что ключ можно удалить к моменту now.
func (r IdempotencyRecord) ExpiredAt(now time.Time) bool {
	return !r.TTLAt.After(now)
}

// Releasable: ключ ещё не получил ответа и может быть освобождён после сбоя сервера.
func (r IdempotencyRecord) Releasable() bool {
	return r.Status == IdempotencyStatusProcessing
}
