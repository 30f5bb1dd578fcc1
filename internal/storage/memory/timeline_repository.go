package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// timelineRepositoryInMemory хранит события в памяти (для разработки/тестов).
type timelineRepositoryInMemory struct {
	mu     sync.RWMutex
	gate   *transactor
	events map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return newTimelineRepository(nil)
}

func newTimelineRepository(gate *transactor) *timelineRepositoryInMemory {
	return &timelineRepositoryInMemory{gate: gate, events: make(map[string][]domain.TimelineEvent)}
}

// Append добавляет событие в хранилище.
func (r *timelineRepositoryInMemory) Append(ctx context.Context, event domain.TimelineEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.gate.exclusive(ctx, func(tx *txJournal) error {
		r.mu.Lock()
		defer r.mu.Unlock()

		previous, existed := r.events[event.OrderID]
		events := append(append([]domain.TimelineEvent(nil), previous...), event)
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Occurred.Before(events[j].Occurred)
		})
		r.events[event.OrderID] = events
		tx.record(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if existed {
				r.events[event.OrderID] = previous
			} else {
				delete(r.events, event.OrderID)
			}
		})
		return nil
	})
}

// List возвращает события заказа в хронологическом порядке.
func (r *timelineRepositoryInMemory) List(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.events[orderID]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	return result, nil
}


var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
