package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront-system/internal/delivery/repository"
	"storefront-system/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testCatalog() Catalog {
	return Catalog{
		Items: map[int64]domain.MenuItem{
			1: {ID: 1, CategoryID: 10, Name: "X-Burger", Price: dec("20.00")},
			2: {ID: 2, CategoryID: 11, Name: "Coca Lata", Price: dec("6.00")},
			3: {ID: 3, CategoryID: 10, Name: "X-Salada", Price: dec("22.00")},
		},
		Optionals: map[int64]domain.DeliveryOptional{
			100: {ID: 100, CategoryID: 10, Name: "Bacon", Price: dec("4.00")},
			101: {ID: 101, CategoryID: 10, Name: "Cheddar", Price: dec("3.50")},
		},
		Combos: map[int64]domain.Combo{
			50: {
				ID: 50, Name: "Combo Casal", Price: dec("45.00"),
				Slots: []domain.ComboSlot{
					{ID: 1, ComboID: 50, AllowedCategoryID: 10},
					{ID: 2, ComboID: 50, AllowedCategoryID: 11},
				},
			},
		},
	}
}

func key(s string) domain.CartKey {
	k, err := domain.ParseCartKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

func TestPriceEntries(t *testing.T) {
	cat := testCatalog()

	tests := []struct {
		name      string
		entries   []domain.DeliveryCartEntry
		wantTotal string
		wantNames []string
	}{
		{
			"plain item times quantity",
			[]domain.DeliveryCartEntry{{Key: key("item_1"), Quantity: 2}},
			"40.00",
			[]string{"X-Burger"},
		},
		{
			"optionals fold into unit price",
			[]domain.DeliveryCartEntry{{Key: key("item_1_100_101"), Quantity: 2}},
			"55.00",
			[]string{"X-Burger (*Bacon, *Cheddar)"},
		},
		{
			"combo priced by bundle not contents",
			[]domain.DeliveryCartEntry{{Key: key("combo_50_1_2"), Quantity: 1}},
			"45.00",
			[]string{"Combo Casal [X-Burger, Coca Lata]"},
		},
		{
			"mixed cart",
			[]domain.DeliveryCartEntry{
				{Key: key("item_2"), Quantity: 3},
				{Key: key("combo_50_3_2"), Quantity: 1},
			},
			"63.00",
			[]string{"Coca Lata", "Combo Casal [X-Salada, Coca Lata]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, total := PriceEntries(tt.entries, cat)
			if total.StringFixed(2) != tt.wantTotal {
				t.Errorf("total = %s, want %s", total.StringFixed(2), tt.wantTotal)
			}
			if len(lines) != len(tt.wantNames) {
				t.Fatalf("got %d lines, want %d", len(lines), len(tt.wantNames))
			}
			for i, want := range tt.wantNames {
				if lines[i].Name != want {
					t.Errorf("line %d name = %q, want %q", i, lines[i].Name, want)
				}
			}
		})
	}
}

func TestPriceEntriesSkipsInvalid(t *testing.T) {
	cat := testCatalog()

	tests := []struct {
		name    string
		entries []domain.DeliveryCartEntry
	}{
		{"unknown item", []domain.DeliveryCartEntry{{Key: key("item_999"), Quantity: 1}}},
		{"unknown optional", []domain.DeliveryCartEntry{{Key: key("item_1_999"), Quantity: 1}}},
		{"combo with wrong slot count", []domain.DeliveryCartEntry{{Key: key("combo_50_1"), Quantity: 1}}},
		{"combo choice from wrong category", []domain.DeliveryCartEntry{{Key: key("combo_50_2_2"), Quantity: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, total := PriceEntries(tt.entries, cat)
			if len(lines) != 0 {
				t.Errorf("got %d lines, want none", len(lines))
			}
			if !total.IsZero() {
				t.Errorf("total = %s, want 0", total)
			}
		})
	}
}

type fakeDeliveryRepo struct {
	repository.DeliveryRepositoryInterface
	order    domain.DeliveryOrder
	cart     domain.DeliveryCart
	replaced map[string]int
}

func (f *fakeDeliveryRepo) GetOrder(context.Context, int64, int64) (domain.DeliveryOrder, error) {
	return f.order, nil
}

func (f *fakeDeliveryRepo) GetOrCreateCart(context.Context, int64, uuid.UUID) (domain.DeliveryCart, error) {
	return f.cart, nil
}

func (f *fakeDeliveryRepo) ReplaceCartEntries(_ context.Context, _ uuid.UUID, entries map[string]int) error {
	f.replaced = entries
	return nil
}

func TestRepeatOrder(t *testing.T) {
	repo := &fakeDeliveryRepo{
		order: domain.DeliveryOrder{
			ID: 9,
			Items: []domain.DeliveryOrderItem{
				{ItemName: "X-Burger", Quantity: 2, OriginalCartKey: "item_1"},
				{ItemName: "Combo Casal", Quantity: 1, OriginalCartKey: "combo_50_1_2"},
				{ItemName: "Taxa extra", Quantity: 1, OriginalCartKey: ""},
			},
		},
		cart: domain.DeliveryCart{ID: uuid.New()},
	}
	svc := NewDeliveryService(repo, nil, nil, zerolog.Nop())

	if err := svc.RepeatOrder(context.Background(), 1, uuid.New(), 9); err != nil {
		t.Fatalf("RepeatOrder failed: %v", err)
	}

	want := map[string]int{"item_1": 2, "combo_50_1_2": 1}
	if len(repo.replaced) != len(want) {
		t.Fatalf("replaced %d entries, want %d: %v", len(repo.replaced), len(want), repo.replaced)
	}
	for k, qty := range want {
		if repo.replaced[k] != qty {
			t.Errorf("entry %s quantity = %d, want %d", k, repo.replaced[k], qty)
		}
	}
}

func TestRepeatOrderWithNoReplayableItems(t *testing.T) {
	repo := &fakeDeliveryRepo{
		order: domain.DeliveryOrder{
			ID:    3,
			Items: []domain.DeliveryOrderItem{{ItemName: "Item avulso", Quantity: 1}},
		},
		cart: domain.DeliveryCart{ID: uuid.New()},
	}
	svc := NewDeliveryService(repo, nil, nil, zerolog.Nop())

	if err := svc.RepeatOrder(context.Background(), 1, uuid.New(), 3); err != domain.ErrCartEmpty {
		t.Fatalf("err = %v, want ErrCartEmpty", err)
	}
}
