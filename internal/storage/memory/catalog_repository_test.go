package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
)

func TestCustomerRepository_RegisterLookup(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCustomerRepository()

	if _, err := repo.Lookup(ctx, "c1"); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}

	registered, err := repo.Register(ctx, domain.Customer{ID: "c1", Name: "Ada"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if registered.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}

	found, err := repo.Lookup(ctx, "c1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if found.Name != "Ada" {
		t.Fatalf("expected name Ada, got %q", found.Name)
	}

	if _, err := repo.Register(ctx, domain.Customer{ID: "c1"}); !errors.Is(err, domain.ErrCustomerAlreadyExists) {
		t.Fatalf("expected ErrCustomerAlreadyExists, got %v", err)
	}
	if _, err := repo.Register(ctx, domain.Customer{ID: "  "}); !errors.Is(err, domain.ErrCustomerRequired) {
		t.Fatalf("expected ErrCustomerRequired, got %v", err)
	}
}

func TestProductRepository_LookupManySkipsMissing(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewProductRepository()
	for _, p := range []domain.Product{
		{ID: "p1", Quantity: 10, PriceMinor: 500},
		{ID: "p2", Quantity: 3, PriceMinor: 100},
	} {
		if _, err := repo.Upsert(ctx, p); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	found, err := repo.LookupMany(ctx, []string{"p2", "p9", "p1"})
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 products, got %d", len(found))
	}
	if found[0].ID != "p2" || found[1].ID != "p1" {
		t.Fatalf("expected request order, got %s, %s", found[0].ID, found[1].ID)
	}
}

func TestProductRepository_UpdateQuantityAllOrNothing(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewProductRepository()
	if _, err := repo.Upsert(ctx, domain.Product{ID: "p1", Quantity: 10, PriceMinor: 500}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	err := repo.UpdateQuantity(ctx, []domain.StockUpdate{
		{ProductID: "p1", Quantity: 7},
		{ProductID: "missing", Quantity: 1},
	})
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}

	found, err := repo.LookupMany(ctx, []string{"p1"})
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if found[0].Quantity != 10 {
		t.Fatalf("expected untouched quantity 10, got %d", found[0].Quantity)
	}

	if err := repo.UpdateQuantity(ctx, []domain.StockUpdate{{ProductID: "p1", Quantity: -1}}); !errors.Is(err, domain.ErrStockNegative) {
		t.Fatalf("expected ErrStockNegative, got %v", err)
	}

	if err := repo.UpdateQuantity(ctx, []domain.StockUpdate{{ProductID: "p1", Quantity: 7}}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	found, _ = repo.LookupMany(ctx, []string{"p1"})
	if found[0].Quantity != 7 {
		t.Fatalf("expected quantity 7, got %d", found[0].Quantity)
	}
}

func TestProductRepository_UpsertRejectsInvalid(t *testing.T) {
	repo := memory.NewProductRepository()
	if _, err := repo.Upsert(context.Background(), domain.Product{ID: "p1", Quantity: -3}); !errors.Is(err, domain.ErrStockNegative) {
		t.Fatalf("expected ErrStockNegative, got %v", err)
	}
}

func TestTimelineRepository_ChronologicalOrder(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTimelineRepository()
	now := newOrder().CreatedAt

	if err := repo.Append(ctx, domain.TimelineEvent{OrderID: "o1", Type: "second", Occurred: now.Add(1)}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := repo.Append(ctx, domain.TimelineEvent{OrderID: "o1", Type: "first", Occurred: now}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	events, err := repo.List(ctx, "o1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(events) != 2 || events[0].Type != "first" || events[1].Type != "second" {
		t.Fatalf("unexpected events: %+v", events)
	}
}
