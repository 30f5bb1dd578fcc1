package httpapi

import (
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/idempotency"
)

// statusFor сопоставляет ошибку сервиса HTTP-статусу и машинному коду ответа.
func statusFor(err error) (int, errorResponse) {
	var checkoutErr *domain.CheckoutError
	if errors.As(err, &checkoutErr) {
		body := errorResponse{
			Error:      string(checkoutErr.Kind),
			Message:    checkoutErr.Error(),
			ProductIDs: checkoutErr.ProductIDs,
		}
		switch checkoutErr.Kind {
		case domain.KindInvalidRequest:
			return http.StatusBadRequest, body
		case domain.KindCustomerNotFound, domain.KindProductNotFound, domain.KindInsufficientStock:
			return http.StatusUnprocessableEntity, body
		default:
			return http.StatusInternalServerError, body
		}
	}

	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, errorResponse{Error: "order_not_found", Message: err.Error()}
	case errors.Is(err, domain.ErrCustomerAlreadyExists):
		return http.StatusConflict, errorResponse{Error: "customer_exists", Message: err.Error()}
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusConflict, errorResponse{Error: "idempotency_mismatch", Message: err.Error()}
	case errors.Is(err, idempotency.ErrInProgress):
		return http.StatusConflict, errorResponse{Error: "idempotency_in_progress", Message: err.Error()}
	case errors.Is(err, domain.ErrIdempotencyKeyRequired):
		return http.StatusBadRequest, errorResponse{Error: "idempotency_key_required", Message: err.Error()}
	case errors.Is(err, domain.ErrCustomerRequired),
		errors.Is(err, domain.ErrProductIDRequired),
		errors.Is(err, domain.ErrStockNegative),
		errors.Is(err, domain.ErrItemPriceInvalid):
		return http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: err.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal", Message: "internal error"}
	}
}
