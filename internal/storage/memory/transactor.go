package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

type txKey struct{}

// txJournal копит отмены изменений, сделанных внутри одной транзакции.
// При откате отменяются только они, чужие записи не трогаются.
type txJournal struct {
	owner *transactor
	undo  []func()
}

func (j *txJournal) record(undo func()) {
	if j != nil {
		j.undo = append(j.undo, undo)
	}
}

func (j *txJournal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// transactor сериализует транзакции и записи вне их одним мьютексом.
type transactor struct {
	mu sync.Mutex
}

func newTransactor() *transactor {
	return &transactor{}
}

// WithinTx выполняет fn эксклюзивно; вложенный вызов переиспользует внешнюю транзакцию.
func (t *transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if t.journal(ctx) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	journal := &txJournal{owner: t}
	if err := fn(context.WithValue(ctx, txKey{}, journal)); err != nil {
		journal.rollback()
		return err
	}
	return nil
}

// exclusive выполняет запись репозитория. Внутри транзакции fn получает её журнал,
// вне транзакции ждёт, пока открытая транзакция завершится. Репозиторий без
// transactor пишет без журнала.
func (t *transactor) exclusive(ctx context.Context, fn func(j *txJournal) error) error {
	if t == nil {
		return fn(nil)
	}
	if journal := t.journal(ctx); journal != nil {
		return fn(journal)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(nil)
}

func (t *transactor) journal(ctx context.Context) *txJournal {
	if journal, ok := ctx.Value(txKey{}).(*txJournal); ok && journal.owner == t {
		return journal
	}
	return nil
}

var _ domain.Transactor = (*transactor)(nil)
