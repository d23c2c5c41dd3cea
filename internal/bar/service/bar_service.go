package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"storefront-system/internal/bar/repository"
	"storefront-system/internal/domain"
	tenantrepo "storefront-system/internal/tenant/repository"
)

// serviceFeeRate is the optional 10% table service surcharge.
var serviceFeeRate = decimal.NewFromFloat(1.10)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// TableView is one entry of the floor overview: a table number and its open
// comanda, if any.
type TableView struct {
	Table   int
	Comanda *domain.Comanda
}

// Totals is a priced view of a comanda. Base is the sum of item subtotals;
// Final includes the service fee when the comanda carries the flag.
type Totals struct {
	Base       decimal.Decimal
	ServiceFee bool
	Final      decimal.Decimal
}

type BarServiceInterface interface {
	Tables(ctx context.Context, tenantID int64) ([]TableView, error)
	Comanda(ctx context.Context, tenantID, comandaID int64) (domain.Comanda, Totals, error)
	OpenComanda(ctx context.Context, tenantID int64, table int) (domain.Comanda, error)
	AddItem(ctx context.Context, tenantID, comandaID, menuItemID int64, qty int, note string) (domain.Comanda, error)
	RemoveItem(ctx context.Context, tenantID, comandaID, itemRowID int64) (domain.Comanda, error)
	SetItemQuantity(ctx context.Context, tenantID, comandaID, itemRowID int64, qty int) (domain.Comanda, error)
	ToggleServiceFee(ctx context.Context, tenantID, comandaID int64, on bool) error
	CloseComanda(ctx context.Context, tenantID, comandaID int64, serviceFee *bool) (domain.Comanda, Totals, error)
	MarkPaid(ctx context.Context, tenantID, comandaID int64) error
	DeleteComanda(ctx context.Context, tenantID, comandaID int64, password string) error
	Report(ctx context.Context, tenantID int64, from, to time.Time) (repository.BarReport, error)

	Categories(ctx context.Context, tenantID int64) ([]domain.BarCategory, error)
	CreateCategory(ctx context.Context, tenantID int64, name string) (int64, error)
	DeleteCategory(ctx context.Context, tenantID, id int64) error
	MenuItems(ctx context.Context, tenantID int64, onlyAvailable bool) ([]domain.BarMenuItem, error)
	CreateMenuItem(ctx context.Context, m domain.BarMenuItem) (int64, error)
	SetMenuItemAvailability(ctx context.Context, tenantID, id int64, available bool) error
	DeleteMenuItem(ctx context.Context, tenantID, id int64) error
	UpdateSettings(ctx context.Context, tenantID int64, tableCount int, allowServiceFee bool) error
}

type BarService struct {
	repo    repository.BarRepositoryInterface
	tenants tenantrepo.TenantRepositoryInterface
	pub     Publisher
	logger  zerolog.Logger
}

func NewBarService(repo repository.BarRepositoryInterface, tenants tenantrepo.TenantRepositoryInterface, pub Publisher, logger zerolog.Logger) BarServiceInterface {
	return &BarService{repo: repo, tenants: tenants, pub: pub, logger: logger}
}

// ComandaTotals prices a comanda from its item rows. When fee is set the base
// is multiplied by 1.10 once and rounded to cents; the flag never compounds
// because the base is always recomputed from the items.
func ComandaTotals(c domain.Comanda) Totals {
	base := decimal.Zero
	for _, it := range c.Items {
		base = base.Add(it.Subtotal())
	}
	final := base
	if c.ServiceFee {
		final = base.Mul(serviceFeeRate).Round(2)
	}
	return Totals{Base: base, ServiceFee: c.ServiceFee, Final: final}
}

// ReprintBase recovers the pre-fee amount of an already closed comanda whose
// frozen total includes the surcharge.
func ReprintBase(c domain.Comanda) decimal.Decimal {
	if !c.ServiceFee {
		return c.Total
	}
	return c.Total.Div(serviceFeeRate).Round(2)
}

func (bs *BarService) Tables(ctx context.Context, tenantID int64) ([]TableView, error) {
	tenant, err := bs.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	open, err := bs.repo.OpenComandas(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	byTable := make(map[int]*domain.Comanda, len(open))
	for i := range open {
		byTable[open[i].TableNumber] = &open[i]
	}

	views := make([]TableView, 0, tenant.TableCount)
	for t := 1; t <= tenant.TableCount; t++ {
		views = append(views, TableView{Table: t, Comanda: byTable[t]})
	}
	return views, nil
}

func (bs *BarService) Comanda(ctx context.Context, tenantID, comandaID int64) (domain.Comanda, Totals, error) {
	c, err := bs.repo.GetComanda(ctx, tenantID, comandaID)
	if err != nil {
		return domain.Comanda{}, Totals{}, err
	}
	return c, ComandaTotals(c), nil
}

func (bs *BarService) OpenComanda(ctx context.Context, tenantID int64, table int) (domain.Comanda, error) {
	tenant, err := bs.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return domain.Comanda{}, err
	}
	if !tenant.IsOpen {
		return domain.Comanda{}, domain.ErrStoreClosed
	}
	if table < 1 || table > tenant.TableCount {
		return domain.Comanda{}, domain.ErrNotFound
	}
	return bs.repo.GetOrOpenComanda(ctx, tenantID, table)
}

func (bs *BarService) AddItem(ctx context.Context, tenantID, comandaID, menuItemID int64, qty int, note string) (domain.Comanda, error) {
	if qty < 1 {
		qty = 1
	}
	menuItem, err := bs.repo.GetMenuItem(ctx, tenantID, menuItemID)
	if err != nil {
		return domain.Comanda{}, err
	}
	if !menuItem.IsAvailable {
		return domain.Comanda{}, domain.ErrNotFound
	}
	// Name and price are snapshotted so later menu edits do not reprice an
	// open tab.
	return bs.repo.AddItem(ctx, tenantID, comandaID, domain.ComandaItem{
		ItemID:    menuItem.ID,
		ItemName:  menuItem.Name,
		Quantity:  qty,
		UnitPrice: menuItem.Price,
		Note:      note,
	})
}

func (bs *BarService) RemoveItem(ctx context.Context, tenantID, comandaID, itemRowID int64) (domain.Comanda, error) {
	return bs.repo.RemoveItem(ctx, tenantID, comandaID, itemRowID)
}

func (bs *BarService) SetItemQuantity(ctx context.Context, tenantID, comandaID, itemRowID int64, qty int) (domain.Comanda, error) {
	return bs.repo.SetItemQuantity(ctx, tenantID, comandaID, itemRowID, qty)
}

func (bs *BarService) ToggleServiceFee(ctx context.Context, tenantID, comandaID int64, on bool) error {
	tenant, err := bs.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if on && !tenant.AllowServiceFee {
		return domain.ErrForbidden
	}
	return bs.repo.SetServiceFee(ctx, tenantID, comandaID, on)
}

// CloseComanda freezes the tab. When serviceFee is non-nil the flag is set as
// part of closing, the way the close screen submits it. The frozen total is
// computed from the item rows inside the repository's locked transaction, so
// an item added from another terminal while the close is in flight still
// counts.
func (bs *BarService) CloseComanda(ctx context.Context, tenantID, comandaID int64, serviceFee *bool) (domain.Comanda, Totals, error) {
	if serviceFee != nil && *serviceFee {
		tenant, err := bs.tenants.GetByID(ctx, tenantID)
		if err != nil {
			return domain.Comanda{}, Totals{}, err
		}
		if !tenant.AllowServiceFee {
			return domain.Comanda{}, Totals{}, domain.ErrForbidden
		}
	}

	closed, err := bs.repo.CloseComanda(ctx, tenantID, comandaID, serviceFee, func(c domain.Comanda) decimal.Decimal {
		return ComandaTotals(c).Final
	})
	if err != nil {
		return domain.Comanda{}, Totals{}, err
	}

	bs.publishComandaClosed(ctx, closed)
	return closed, Totals{Base: ReprintBase(closed), ServiceFee: closed.ServiceFee, Final: closed.Total}, nil
}

func (bs *BarService) MarkPaid(ctx context.Context, tenantID, comandaID int64) error {
	return bs.repo.MarkPaid(ctx, tenantID, comandaID)
}

// DeleteComanda removes a closed comanda after re-checking the merchant
// password. Wrong password fails with ErrBadCredential before any state is
// touched.
func (bs *BarService) DeleteComanda(ctx context.Context, tenantID, comandaID int64, password string) error {
	tenant, err := bs.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(tenant.PasswordHash), []byte(password)); err != nil {
		return domain.ErrBadCredential
	}
	return bs.repo.DeleteComanda(ctx, tenantID, comandaID)
}

func (bs *BarService) Report(ctx context.Context, tenantID int64, from, to time.Time) (repository.BarReport, error) {
	return bs.repo.Report(ctx, tenantID, from, to)
}

func (bs *BarService) Categories(ctx context.Context, tenantID int64) ([]domain.BarCategory, error) {
	return bs.repo.ListCategories(ctx, tenantID)
}

func (bs *BarService) CreateCategory(ctx context.Context, tenantID int64, name string) (int64, error) {
	return bs.repo.CreateCategory(ctx, domain.BarCategory{TenantID: tenantID, Name: name})
}

func (bs *BarService) DeleteCategory(ctx context.Context, tenantID, id int64) error {
	return bs.repo.DeleteCategory(ctx, tenantID, id)
}

func (bs *BarService) MenuItems(ctx context.Context, tenantID int64, onlyAvailable bool) ([]domain.BarMenuItem, error) {
	return bs.repo.ListMenuItems(ctx, tenantID, onlyAvailable)
}

func (bs *BarService) CreateMenuItem(ctx context.Context, m domain.BarMenuItem) (int64, error) {
	return bs.repo.CreateMenuItem(ctx, m)
}

func (bs *BarService) SetMenuItemAvailability(ctx context.Context, tenantID, id int64, available bool) error {
	return bs.repo.SetMenuItemAvailability(ctx, tenantID, id, available)
}

func (bs *BarService) DeleteMenuItem(ctx context.Context, tenantID, id int64) error {
	return bs.repo.DeleteMenuItem(ctx, tenantID, id)
}

func (bs *BarService) UpdateSettings(ctx context.Context, tenantID int64, tableCount int, allowServiceFee bool) error {
	return bs.tenants.UpdateBarSettings(ctx, tenantID, tableCount, allowServiceFee)
}

func (bs *BarService) publishComandaClosed(ctx context.Context, c domain.Comanda) {
	if bs.pub == nil {
		return
	}
	event := domain.OrderCreatedEvent{
		Channel:     domain.ChannelBar,
		OrderID:     c.ID,
		TenantID:    c.TenantID,
		TableNumber: c.TableNumber,
		Total:       c.Total.StringFixed(2),
		CreatedAt:   time.Now().UTC(),
	}
	for _, it := range c.Items {
		event.Items = append(event.Items, domain.OrderEventItem{
			Name:     it.ItemName,
			Quantity: it.Quantity,
			Price:    it.UnitPrice.StringFixed(2),
		})
	}
	body, err := json.Marshal(event)
	if err != nil {
		bs.logger.Error().Err(err).Msg("failed to marshal comanda event")
		return
	}
	pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := bs.pub.Publish(pubCtx, event.RoutingKey(), body); err != nil {
		bs.logger.Error().Err(err).Int64("comanda_id", c.ID).Msg("failed to publish comanda event")
	}
}
