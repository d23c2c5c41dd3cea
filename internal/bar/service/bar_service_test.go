package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"storefront-system/internal/bar/repository"
	"storefront-system/internal/domain"
	tenantrepo "storefront-system/internal/tenant/repository"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComandaTotals(t *testing.T) {
	items := []domain.ComandaItem{
		{ItemName: "Chopp", Quantity: 4, UnitPrice: dec("8.00")},
		{ItemName: "Porção", Quantity: 1, UnitPrice: dec("8.00")},
	}

	tests := []struct {
		name      string
		comanda   domain.Comanda
		wantBase  string
		wantFinal string
	}{
		{
			"no service fee",
			domain.Comanda{Items: items, ServiceFee: false},
			"40.00",
			"40.00",
		},
		{
			"ten percent fee",
			domain.Comanda{Items: items, ServiceFee: true},
			"40.00",
			"44.00",
		},
		{
			"fee rounds to cents",
			domain.Comanda{
				Items:      []domain.ComandaItem{{Quantity: 1, UnitPrice: dec("9.99")}},
				ServiceFee: true,
			},
			"9.99",
			"10.99",
		},
		{
			"empty comanda",
			domain.Comanda{ServiceFee: true},
			"0.00",
			"0.00",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComandaTotals(tt.comanda)
			if got.Base.StringFixed(2) != tt.wantBase {
				t.Errorf("base = %s, want %s", got.Base.StringFixed(2), tt.wantBase)
			}
			if got.Final.StringFixed(2) != tt.wantFinal {
				t.Errorf("final = %s, want %s", got.Final.StringFixed(2), tt.wantFinal)
			}
		})
	}
}

// Toggling the fee flag back and forth must never stack the surcharge: the
// final amount is always derived from the item rows, not from a previous
// total.
func TestComandaTotalsFeeNeverStacks(t *testing.T) {
	c := domain.Comanda{
		Items: []domain.ComandaItem{{Quantity: 1, UnitPrice: dec("40.00")}},
	}

	c.ServiceFee = true
	first := ComandaTotals(c)
	c.ServiceFee = false
	second := ComandaTotals(c)
	c.ServiceFee = true
	third := ComandaTotals(c)

	if first.Final.StringFixed(2) != "44.00" {
		t.Errorf("first toggle final = %s, want 44.00", first.Final.StringFixed(2))
	}
	if second.Final.StringFixed(2) != "40.00" {
		t.Errorf("toggle off final = %s, want 40.00", second.Final.StringFixed(2))
	}
	if third.Final.StringFixed(2) != "44.00" {
		t.Errorf("re-toggle final = %s, want 44.00", third.Final.StringFixed(2))
	}
}

func TestReprintBase(t *testing.T) {
	tests := []struct {
		name    string
		comanda domain.Comanda
		want    string
	}{
		{"with fee", domain.Comanda{Total: dec("44.00"), ServiceFee: true}, "40.00"},
		{"without fee", domain.Comanda{Total: dec("40.00"), ServiceFee: false}, "40.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReprintBase(tt.comanda).StringFixed(2); got != tt.want {
				t.Errorf("ReprintBase = %s, want %s", got, tt.want)
			}
		})
	}
}

type fakeTenants struct {
	tenantrepo.TenantRepositoryInterface
	tenant domain.Tenant
}

func (f *fakeTenants) GetByID(context.Context, int64) (domain.Tenant, error) {
	return f.tenant, nil
}

type fakeBarRepo struct {
	repository.BarRepositoryInterface
	comanda  domain.Comanda
	lateItem *domain.ComandaItem
	deleted  bool
	feeOn    *bool
}

func (f *fakeBarRepo) GetComanda(context.Context, int64, int64) (domain.Comanda, error) {
	return f.comanda, nil
}

// CloseComanda mirrors the real repository: the item rows are re-read under
// the row lock before the total is frozen. lateItem models an item another
// terminal committed while the close was in flight.
func (f *fakeBarRepo) CloseComanda(_ context.Context, _, _ int64, serviceFee *bool, finalize func(domain.Comanda) decimal.Decimal) (domain.Comanda, error) {
	if f.comanda.Status != domain.ComandaOpen {
		return domain.Comanda{}, domain.ErrComandaClosed
	}
	if f.lateItem != nil {
		f.comanda.Items = append(f.comanda.Items, *f.lateItem)
	}
	if serviceFee != nil {
		f.comanda.ServiceFee = *serviceFee
	}
	f.comanda.Total = finalize(f.comanda)
	f.comanda.Status = domain.ComandaClosed
	return f.comanda, nil
}

func (f *fakeBarRepo) DeleteComanda(context.Context, int64, int64) error {
	f.deleted = true
	return nil
}

func (f *fakeBarRepo) SetServiceFee(_ context.Context, _, _ int64, on bool) error {
	f.feeOn = &on
	return nil
}

func TestDeleteComandaChecksPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("segredo"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	repo := &fakeBarRepo{}
	svc := NewBarService(repo, &fakeTenants{tenant: domain.Tenant{ID: 1, PasswordHash: string(hash)}}, nil, zerolog.Nop())

	if err := svc.DeleteComanda(context.Background(), 1, 5, "errada"); err != domain.ErrBadCredential {
		t.Fatalf("wrong password: err = %v, want ErrBadCredential", err)
	}
	if repo.deleted {
		t.Fatal("comanda deleted despite wrong password")
	}

	if err := svc.DeleteComanda(context.Background(), 1, 5, "segredo"); err != nil {
		t.Fatalf("correct password: %v", err)
	}
	if !repo.deleted {
		t.Fatal("comanda not deleted with correct password")
	}
}

func TestToggleServiceFeeRespectsTenantSetting(t *testing.T) {
	repo := &fakeBarRepo{}
	svc := NewBarService(repo, &fakeTenants{tenant: domain.Tenant{ID: 1, AllowServiceFee: false}}, nil, zerolog.Nop())

	if err := svc.ToggleServiceFee(context.Background(), 1, 5, true); err != domain.ErrForbidden {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	// Turning the fee off is always allowed.
	if err := svc.ToggleServiceFee(context.Background(), 1, 5, false); err != nil {
		t.Fatalf("disabling fee: %v", err)
	}
	if repo.feeOn == nil || *repo.feeOn {
		t.Fatal("fee flag was not cleared")
	}
}

func TestCloseComandaRejectsClosed(t *testing.T) {
	repo := &fakeBarRepo{comanda: domain.Comanda{ID: 5, Status: domain.ComandaClosed, Total: dec("44.00")}}
	svc := NewBarService(repo, &fakeTenants{tenant: domain.Tenant{ID: 1}}, nil, zerolog.Nop())

	if _, _, err := svc.CloseComanda(context.Background(), 1, 5, nil); err != domain.ErrComandaClosed {
		t.Fatalf("err = %v, want ErrComandaClosed", err)
	}
}

// An item committed by a second terminal while the close is in flight must be
// part of the frozen total.
func TestCloseComandaFreezesTotalFromLockedItems(t *testing.T) {
	late := domain.ComandaItem{ItemName: "Chopp", Quantity: 1, UnitPrice: dec("8.00")}
	repo := &fakeBarRepo{
		comanda: domain.Comanda{
			ID: 5, TenantID: 1, Status: domain.ComandaOpen,
			Items: []domain.ComandaItem{{ItemName: "Porção", Quantity: 1, UnitPrice: dec("40.00")}},
		},
		lateItem: &late,
	}
	svc := NewBarService(repo, &fakeTenants{tenant: domain.Tenant{ID: 1}}, nil, zerolog.Nop())

	closed, totals, err := svc.CloseComanda(context.Background(), 1, 5, nil)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if closed.Total.StringFixed(2) != "48.00" {
		t.Errorf("frozen total = %s, want 48.00", closed.Total.StringFixed(2))
	}
	if totals.Final.StringFixed(2) != "48.00" {
		t.Errorf("final = %s, want 48.00", totals.Final.StringFixed(2))
	}
}

func TestCloseComandaAppliesFeeFlag(t *testing.T) {
	on := true
	items := []domain.ComandaItem{{ItemName: "Porção", Quantity: 1, UnitPrice: dec("40.00")}}

	repo := &fakeBarRepo{comanda: domain.Comanda{ID: 5, TenantID: 1, Status: domain.ComandaOpen, Items: items}}
	svc := NewBarService(repo, &fakeTenants{tenant: domain.Tenant{ID: 1, AllowServiceFee: true}}, nil, zerolog.Nop())

	closed, totals, err := svc.CloseComanda(context.Background(), 1, 5, &on)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if closed.Total.StringFixed(2) != "44.00" {
		t.Errorf("frozen total = %s, want 44.00", closed.Total.StringFixed(2))
	}
	if totals.Base.StringFixed(2) != "40.00" {
		t.Errorf("base = %s, want 40.00", totals.Base.StringFixed(2))
	}

	// A tenant that disallows the surcharge cannot close with it on.
	repo = &fakeBarRepo{comanda: domain.Comanda{ID: 5, TenantID: 1, Status: domain.ComandaOpen, Items: items}}
	svc = NewBarService(repo, &fakeTenants{tenant: domain.Tenant{ID: 1, AllowServiceFee: false}}, nil, zerolog.Nop())

	if _, _, err := svc.CloseComanda(context.Background(), 1, 5, &on); err != domain.ErrForbidden {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}
