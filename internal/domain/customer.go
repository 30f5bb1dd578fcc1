package domain

import "time"

// Customer: зарегистрированный клиент. Для сценария создания заказа важен только факт существования.
type Customer struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}
