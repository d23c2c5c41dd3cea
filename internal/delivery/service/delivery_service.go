package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront-system/internal/delivery/repository"
	"storefront-system/internal/domain"
	tenantrepo "storefront-system/internal/tenant/repository"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// PricedLine is one cart entry resolved against the menu: a plain item with
// its optionals folded into the unit price, or a combo with the chosen
// contents named.
type PricedLine struct {
	Key       domain.CartKey
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// Catalog holds the lookups PriceEntries needs. The service loads it from the
// repository; tests build it by hand.
type Catalog struct {
	Items      map[int64]domain.MenuItem
	Optionals  map[int64]domain.DeliveryOptional
	Combos     map[int64]domain.Combo
	Categories map[int64]domain.DeliveryCategory
}

type CheckoutInput struct {
	CustomerName     string
	CustomerWhatsApp string
	DeliveryAddress  string
	ZoneID           *int64
	PaymentMethod    domain.PaymentMethod
	ChangeFor        *decimal.Decimal
	Observations     string
}

type POSItem struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

type POSInput struct {
	CustomerName     string
	CustomerWhatsApp string
	DeliveryAddress  string
	ZoneID           *int64
	PaymentMethod    domain.PaymentMethod
	Observations     string
	Items            []POSItem
}

type DeliveryServiceInterface interface {
	Menu(ctx context.Context, tenantID int64) (Menu, error)
	Cart(ctx context.Context, tenantID int64, guestToken uuid.UUID) ([]PricedLine, decimal.Decimal, error)
	AddToCart(ctx context.Context, tenantID int64, guestToken uuid.UUID, rawKey string, qty int) error
	RemoveFromCart(ctx context.Context, tenantID int64, guestToken uuid.UUID, rawKey string) error
	Checkout(ctx context.Context, tenantID int64, guestToken uuid.UUID, in CheckoutInput) (domain.DeliveryOrder, error)
	RepeatOrder(ctx context.Context, tenantID int64, guestToken uuid.UUID, orderID int64) error
	Order(ctx context.Context, tenantID, orderID int64) (domain.DeliveryOrder, error)

	Orders(ctx context.Context, tenantID int64, day time.Time) ([]domain.DeliveryOrder, error)
	OrdersByPhone(ctx context.Context, tenantID int64, phone string) ([]domain.DeliveryOrder, error)
	LatestOrderID(ctx context.Context, tenantID int64) (int64, error)
	UpdateStatus(ctx context.Context, tenantID, orderID int64, status domain.DeliveryStatus) error
	DeleteOrder(ctx context.Context, tenantID, orderID int64) error
	CreatePOSOrder(ctx context.Context, tenantID int64, in POSInput) (domain.DeliveryOrder, error)
	Report(ctx context.Context, tenantID int64, from, to time.Time) (repository.SalesReport, error)

	CreateCategory(ctx context.Context, tenantID int64, name string) (int64, error)
	DeleteCategory(ctx context.Context, tenantID, id int64) error
	AllMenuItems(ctx context.Context, tenantID int64) ([]domain.MenuItem, error)
	CreateMenuItem(ctx context.Context, m domain.MenuItem) (int64, error)
	SetMenuItemAvailability(ctx context.Context, tenantID, id int64, available bool) error
	DeleteMenuItem(ctx context.Context, tenantID, id int64) error
	CreateZone(ctx context.Context, z domain.DeliveryZone) (int64, error)
	DeleteZone(ctx context.Context, tenantID, id int64) error
	CreateOptional(ctx context.Context, o domain.DeliveryOptional) (int64, error)
	DeleteOptional(ctx context.Context, tenantID, id int64) error
	AllCombos(ctx context.Context, tenantID int64) ([]domain.Combo, error)
	CreateCombo(ctx context.Context, c domain.Combo) (int64, error)
	SetComboAvailability(ctx context.Context, tenantID, id int64, available bool) error
	DeleteCombo(ctx context.Context, tenantID, id int64) error
}

type Menu struct {
	Categories []domain.DeliveryCategory
	Items      []domain.MenuItem
	Combos     []domain.Combo
	Optionals  []domain.DeliveryOptional
	Zones      []domain.DeliveryZone
}

type DeliveryService struct {
	repo    repository.DeliveryRepositoryInterface
	tenants tenantrepo.TenantRepositoryInterface
	pub     Publisher
	logger  zerolog.Logger
}

func NewDeliveryService(repo repository.DeliveryRepositoryInterface, tenants tenantrepo.TenantRepositoryInterface, pub Publisher, logger zerolog.Logger) DeliveryServiceInterface {
	return &DeliveryService{repo: repo, tenants: tenants, pub: pub, logger: logger}
}

func (ds *DeliveryService) Menu(ctx context.Context, tenantID int64) (Menu, error) {
	var m Menu
	var err error
	if m.Categories, err = ds.repo.ListCategories(ctx, tenantID); err != nil {
		return Menu{}, err
	}
	if m.Items, err = ds.repo.ListMenuItems(ctx, tenantID, true); err != nil {
		return Menu{}, err
	}
	if m.Combos, err = ds.repo.ListCombos(ctx, tenantID, true); err != nil {
		return Menu{}, err
	}
	if m.Optionals, err = ds.repo.ListOptionals(ctx, tenantID); err != nil {
		return Menu{}, err
	}
	if m.Zones, err = ds.repo.ListZones(ctx, tenantID); err != nil {
		return Menu{}, err
	}
	return m, nil
}

// PriceEntries resolves cart entries against the catalog and prices each
// line. Entries referencing items or combos no longer in the catalog are
// skipped so a menu edit never breaks an open cart.
func PriceEntries(entries []domain.DeliveryCartEntry, cat Catalog) ([]PricedLine, decimal.Decimal) {
	lines := make([]PricedLine, 0, len(entries))
	total := decimal.Zero

	for _, e := range entries {
		var line PricedLine
		switch e.Key.Kind {
		case domain.CartKeyItem:
			item, ok := cat.Items[e.Key.ID]
			if !ok {
				continue
			}
			unit := item.Price
			names := make([]string, 0, len(e.Key.Extras))
			valid := true
			for _, optID := range e.Key.Extras {
				opt, ok := cat.Optionals[optID]
				if !ok {
					valid = false
					break
				}
				unit = unit.Add(opt.Price)
				names = append(names, "*"+opt.Name)
			}
			if !valid {
				continue
			}
			name := item.Name
			if len(names) > 0 {
				name = fmt.Sprintf("%s (%s)", item.Name, strings.Join(names, ", "))
			}
			line = PricedLine{Key: e.Key, Name: name, Quantity: e.Quantity, UnitPrice: unit}
		case domain.CartKeyCombo:
			combo, ok := cat.Combos[e.Key.ID]
			if !ok || len(e.Key.Extras) != len(combo.Slots) {
				continue
			}
			names := make([]string, 0, len(e.Key.Extras))
			valid := true
			for i, chosenID := range e.Key.Extras {
				chosen, ok := cat.Items[chosenID]
				if !ok || chosen.CategoryID != combo.Slots[i].AllowedCategoryID {
					valid = false
					break
				}
				names = append(names, chosen.Name)
			}
			if !valid {
				continue
			}
			name := combo.Name
			if len(names) > 0 {
				name = fmt.Sprintf("%s [%s]", combo.Name, strings.Join(names, ", "))
			}
			line = PricedLine{Key: e.Key, Name: name, Quantity: e.Quantity, UnitPrice: combo.Price}
		default:
			continue
		}
		line.Subtotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		lines = append(lines, line)
		total = total.Add(line.Subtotal)
	}
	return lines, total
}

func (ds *DeliveryService) catalog(ctx context.Context, tenantID int64, entries []domain.DeliveryCartEntry) (Catalog, error) {
	itemIDs := map[int64]struct{}{}
	optIDs := map[int64]struct{}{}
	comboIDs := map[int64]struct{}{}
	for _, e := range entries {
		switch e.Key.Kind {
		case domain.CartKeyItem:
			itemIDs[e.Key.ID] = struct{}{}
			for _, id := range e.Key.Extras {
				optIDs[id] = struct{}{}
			}
		case domain.CartKeyCombo:
			comboIDs[e.Key.ID] = struct{}{}
			for _, id := range e.Key.Extras {
				itemIDs[id] = struct{}{}
			}
		}
	}

	var cat Catalog
	var err error
	if cat.Items, err = ds.repo.MenuItemsByID(ctx, tenantID, keys(itemIDs)); err != nil {
		return Catalog{}, err
	}
	if cat.Optionals, err = ds.repo.OptionalsByID(ctx, tenantID, keys(optIDs)); err != nil {
		return Catalog{}, err
	}
	if cat.Combos, err = ds.repo.CombosByID(ctx, tenantID, keys(comboIDs)); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

func keys(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (ds *DeliveryService) Cart(ctx context.Context, tenantID int64, guestToken uuid.UUID) ([]PricedLine, decimal.Decimal, error) {
	cart, err := ds.repo.GetOrCreateCart(ctx, tenantID, guestToken)
	if err != nil {
		return nil, decimal.Zero, err
	}
	cat, err := ds.catalog(ctx, tenantID, cart.Entries)
	if err != nil {
		return nil, decimal.Zero, err
	}
	lines, total := PriceEntries(cart.Entries, cat)
	return lines, total, nil
}

func (ds *DeliveryService) AddToCart(ctx context.Context, tenantID int64, guestToken uuid.UUID, rawKey string, qty int) error {
	key, err := domain.ParseCartKey(rawKey)
	if err != nil {
		return err
	}
	if qty < 1 {
		qty = 1
	}
	tenant, err := ds.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if !tenant.IsOpen {
		return domain.ErrStoreClosed
	}
	cart, err := ds.repo.GetOrCreateCart(ctx, tenantID, guestToken)
	if err != nil {
		return err
	}

	// Validate the key against the live catalog before persisting it.
	cat, err := ds.catalog(ctx, tenantID, []domain.DeliveryCartEntry{{Key: key, Quantity: qty}})
	if err != nil {
		return err
	}
	lines, _ := PriceEntries([]domain.DeliveryCartEntry{{Key: key, Quantity: qty}}, cat)
	if len(lines) == 0 {
		return domain.ErrNotFound
	}
	return ds.repo.AddCartEntry(ctx, cart.ID, key.String(), qty)
}

func (ds *DeliveryService) RemoveFromCart(ctx context.Context, tenantID int64, guestToken uuid.UUID, rawKey string) error {
	key, err := domain.ParseCartKey(rawKey)
	if err != nil {
		return err
	}
	cart, err := ds.repo.GetOrCreateCart(ctx, tenantID, guestToken)
	if err != nil {
		return err
	}
	return ds.repo.RemoveCartEntry(ctx, cart.ID, key.String())
}

func (ds *DeliveryService) Checkout(ctx context.Context, tenantID int64, guestToken uuid.UUID, in CheckoutInput) (domain.DeliveryOrder, error) {
	tenant, err := ds.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return domain.DeliveryOrder{}, err
	}
	if !tenant.IsOpen {
		return domain.DeliveryOrder{}, domain.ErrStoreClosed
	}

	cart, err := ds.repo.GetOrCreateCart(ctx, tenantID, guestToken)
	if err != nil {
		return domain.DeliveryOrder{}, err
	}
	cat, err := ds.catalog(ctx, tenantID, cart.Entries)
	if err != nil {
		return domain.DeliveryOrder{}, err
	}
	lines, itemsTotal := PriceEntries(cart.Entries, cat)
	if len(lines) == 0 {
		return domain.DeliveryOrder{}, domain.ErrCartEmpty
	}

	deliveryFee := decimal.Zero
	if in.ZoneID != nil {
		zone, err := ds.repo.GetZone(ctx, tenantID, *in.ZoneID)
		if err != nil {
			return domain.DeliveryOrder{}, err
		}
		deliveryFee = zone.DeliveryFee
	}

	order := domain.DeliveryOrder{
		TenantID:         tenantID,
		CustomerName:     in.CustomerName,
		CustomerWhatsApp: in.CustomerWhatsApp,
		DeliveryAddress:  in.DeliveryAddress,
		ZoneID:           in.ZoneID,
		PaymentMethod:    in.PaymentMethod,
		ChangeFor:        in.ChangeFor,
		Observations:     in.Observations,
		ItemsTotal:       itemsTotal,
		DeliveryFee:      deliveryFee,
		FinalTotal:       itemsTotal.Add(deliveryFee),
		Status:           domain.DeliveryPending,
	}
	for _, l := range lines {
		order.Items = append(order.Items, domain.DeliveryOrderItem{
			ItemName:        l.Name,
			Quantity:        l.Quantity,
			Price:           l.UnitPrice,
			OriginalCartKey: l.Key.String(),
		})
	}

	created, err := ds.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.DeliveryOrder{}, err
	}
	if err := ds.repo.DeleteCart(ctx, cart.ID); err != nil {
		ds.logger.Error().Err(err).Str("cart_id", cart.ID.String()).Msg("failed to clear cart after checkout")
	}

	ds.publishOrderCreated(created)
	return created, nil
}

func (ds *DeliveryService) RepeatOrder(ctx context.Context, tenantID int64, guestToken uuid.UUID, orderID int64) error {
	order, err := ds.repo.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		return err
	}

	entries := make(map[string]int)
	for _, it := range order.Items {
		if it.OriginalCartKey == "" {
			continue
		}
		if _, err := domain.ParseCartKey(it.OriginalCartKey); err != nil {
			continue
		}
		entries[it.OriginalCartKey] += it.Quantity
	}
	if len(entries) == 0 {
		return domain.ErrCartEmpty
	}

	cart, err := ds.repo.GetOrCreateCart(ctx, tenantID, guestToken)
	if err != nil {
		return err
	}
	return ds.repo.ReplaceCartEntries(ctx, cart.ID, entries)
}

func (ds *DeliveryService) Order(ctx context.Context, tenantID, orderID int64) (domain.DeliveryOrder, error) {
	return ds.repo.GetOrder(ctx, tenantID, orderID)
}

func (ds *DeliveryService) Orders(ctx context.Context, tenantID int64, day time.Time) ([]domain.DeliveryOrder, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return ds.repo.ListOrders(ctx, tenantID, from, from.AddDate(0, 0, 1))
}

func (ds *DeliveryService) OrdersByPhone(ctx context.Context, tenantID int64, phone string) ([]domain.DeliveryOrder, error) {
	return ds.repo.ListOrdersByPhone(ctx, tenantID, phone, 20)
}

func (ds *DeliveryService) LatestOrderID(ctx context.Context, tenantID int64) (int64, error) {
	return ds.repo.LatestOrderID(ctx, tenantID)
}

var deliveryTransitions = map[domain.DeliveryStatus]bool{
	domain.DeliveryPending:   true,
	domain.DeliveryConfirmed: true,
	domain.DeliveryOnTheWay:  true,
	domain.DeliveryDelivered: true,
	domain.DeliveryCancelled: true,
}

func (ds *DeliveryService) UpdateStatus(ctx context.Context, tenantID, orderID int64, status domain.DeliveryStatus) error {
	if !deliveryTransitions[status] {
		return fmt.Errorf("unknown delivery status %q", status)
	}
	return ds.repo.UpdateOrderStatus(ctx, tenantID, orderID, status)
}

func (ds *DeliveryService) DeleteOrder(ctx context.Context, tenantID, orderID int64) error {
	return ds.repo.DeleteOrder(ctx, tenantID, orderID)
}

// CreatePOSOrder records an order taken over the counter or by phone. Lines
// are free-form, so they carry no cart key and cannot be repeated by the
// customer later.
func (ds *DeliveryService) CreatePOSOrder(ctx context.Context, tenantID int64, in POSInput) (domain.DeliveryOrder, error) {
	if len(in.Items) == 0 {
		return domain.DeliveryOrder{}, domain.ErrCartEmpty
	}

	itemsTotal := decimal.Zero
	order := domain.DeliveryOrder{
		TenantID:         tenantID,
		CustomerName:     in.CustomerName,
		CustomerWhatsApp: in.CustomerWhatsApp,
		DeliveryAddress:  in.DeliveryAddress,
		ZoneID:           in.ZoneID,
		PaymentMethod:    in.PaymentMethod,
		Observations:     in.Observations,
		Status:           domain.DeliveryConfirmed,
	}
	for _, it := range in.Items {
		if it.Quantity < 1 {
			it.Quantity = 1
		}
		sub := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		itemsTotal = itemsTotal.Add(sub)
		order.Items = append(order.Items, domain.DeliveryOrderItem{
			ItemName: it.Name,
			Quantity: it.Quantity,
			Price:    it.UnitPrice,
		})
	}

	deliveryFee := decimal.Zero
	if in.ZoneID != nil {
		zone, err := ds.repo.GetZone(ctx, tenantID, *in.ZoneID)
		if err != nil {
			return domain.DeliveryOrder{}, err
		}
		deliveryFee = zone.DeliveryFee
	}
	order.ItemsTotal = itemsTotal
	order.DeliveryFee = deliveryFee
	order.FinalTotal = itemsTotal.Add(deliveryFee)

	return ds.repo.CreateOrder(ctx, order)
}

func (ds *DeliveryService) Report(ctx context.Context, tenantID int64, from, to time.Time) (repository.SalesReport, error) {
	return ds.repo.Report(ctx, tenantID, from, to)
}

func (ds *DeliveryService) CreateCategory(ctx context.Context, tenantID int64, name string) (int64, error) {
	return ds.repo.CreateCategory(ctx, domain.DeliveryCategory{TenantID: tenantID, Name: name})
}

func (ds *DeliveryService) DeleteCategory(ctx context.Context, tenantID, id int64) error {
	return ds.repo.DeleteCategory(ctx, tenantID, id)
}

func (ds *DeliveryService) AllMenuItems(ctx context.Context, tenantID int64) ([]domain.MenuItem, error) {
	return ds.repo.ListMenuItems(ctx, tenantID, false)
}

func (ds *DeliveryService) CreateMenuItem(ctx context.Context, m domain.MenuItem) (int64, error) {
	return ds.repo.CreateMenuItem(ctx, m)
}

func (ds *DeliveryService) SetMenuItemAvailability(ctx context.Context, tenantID, id int64, available bool) error {
	return ds.repo.SetMenuItemAvailability(ctx, tenantID, id, available)
}

func (ds *DeliveryService) DeleteMenuItem(ctx context.Context, tenantID, id int64) error {
	return ds.repo.DeleteMenuItem(ctx, tenantID, id)
}

func (ds *DeliveryService) CreateZone(ctx context.Context, z domain.DeliveryZone) (int64, error) {
	return ds.repo.CreateZone(ctx, z)
}

func (ds *DeliveryService) DeleteZone(ctx context.Context, tenantID, id int64) error {
	return ds.repo.DeleteZone(ctx, tenantID, id)
}

func (ds *DeliveryService) CreateOptional(ctx context.Context, o domain.DeliveryOptional) (int64, error) {
	return ds.repo.CreateOptional(ctx, o)
}

func (ds *DeliveryService) DeleteOptional(ctx context.Context, tenantID, id int64) error {
	return ds.repo.DeleteOptional(ctx, tenantID, id)
}

func (ds *DeliveryService) AllCombos(ctx context.Context, tenantID int64) ([]domain.Combo, error) {
	return ds.repo.ListCombos(ctx, tenantID, false)
}

func (ds *DeliveryService) CreateCombo(ctx context.Context, c domain.Combo) (int64, error) {
	if len(c.Slots) == 0 {
		return 0, fmt.Errorf("a combo needs at least one slot")
	}
	return ds.repo.CreateCombo(ctx, c)
}

func (ds *DeliveryService) SetComboAvailability(ctx context.Context, tenantID, id int64, available bool) error {
	return ds.repo.SetComboAvailability(ctx, tenantID, id, available)
}

func (ds *DeliveryService) DeleteCombo(ctx context.Context, tenantID, id int64) error {
	return ds.repo.DeleteCombo(ctx, tenantID, id)
}

func (ds *DeliveryService) publishOrderCreated(o domain.DeliveryOrder) {
	if ds.pub == nil {
		return
	}
	event := domain.OrderCreatedEvent{
		Channel:       domain.ChannelDelivery,
		TenantID:      o.TenantID,
		OrderID:       o.ID,
		CustomerName:  o.CustomerName,
		CustomerPhone: o.CustomerWhatsApp,
		Address:       o.DeliveryAddress,
		Total:         o.FinalTotal.StringFixed(2),
		CreatedAt:     o.CreatedAt.UTC(),
	}
	for _, it := range o.Items {
		event.Items = append(event.Items, domain.OrderEventItem{
			Name:     it.ItemName,
			Quantity: it.Quantity,
			Price:    it.Price.StringFixed(2),
		})
	}

	body, err := json.Marshal(event)
	if err != nil {
		ds.logger.Error().Err(err).Msg("failed to marshal order event")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ds.pub.Publish(ctx, event.RoutingKey(), body); err != nil {
		ds.logger.Error().Err(err).Int64("order_id", o.ID).Msg("failed to publish order event")
	}
}
