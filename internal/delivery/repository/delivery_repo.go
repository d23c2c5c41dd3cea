package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"storefront-system/internal/domain"
)

type DailySales struct {
	Day   time.Time
	Total decimal.Decimal
}

type TopCustomer struct {
	WhatsApp   string
	Name       string
	OrderCount int
	TotalSpent decimal.Decimal
}

type SalesReport struct {
	Daily       []DailySales
	TotalSales  decimal.Decimal
	TotalOrders int
	Top         []TopCustomer
}

type DeliveryRepositoryInterface interface {
	ListCategories(ctx context.Context, tenantID int64) ([]domain.DeliveryCategory, error)
	CreateCategory(ctx context.Context, c domain.DeliveryCategory) (int64, error)
	DeleteCategory(ctx context.Context, tenantID, id int64) error

	ListMenuItems(ctx context.Context, tenantID int64, onlyAvailable bool) ([]domain.MenuItem, error)
	MenuItemsByID(ctx context.Context, tenantID int64, ids []int64) (map[int64]domain.MenuItem, error)
	CreateMenuItem(ctx context.Context, m domain.MenuItem) (int64, error)
	SetMenuItemAvailability(ctx context.Context, tenantID, id int64, available bool) error
	DeleteMenuItem(ctx context.Context, tenantID, id int64) error

	ListZones(ctx context.Context, tenantID int64) ([]domain.DeliveryZone, error)
	GetZone(ctx context.Context, tenantID, id int64) (domain.DeliveryZone, error)
	CreateZone(ctx context.Context, z domain.DeliveryZone) (int64, error)
	DeleteZone(ctx context.Context, tenantID, id int64) error

	ListOptionals(ctx context.Context, tenantID int64) ([]domain.DeliveryOptional, error)
	OptionalsByID(ctx context.Context, tenantID int64, ids []int64) (map[int64]domain.DeliveryOptional, error)
	CreateOptional(ctx context.Context, o domain.DeliveryOptional) (int64, error)
	DeleteOptional(ctx context.Context, tenantID, id int64) error

	ListCombos(ctx context.Context, tenantID int64, onlyAvailable bool) ([]domain.Combo, error)
	CombosByID(ctx context.Context, tenantID int64, ids []int64) (map[int64]domain.Combo, error)
	CreateCombo(ctx context.Context, c domain.Combo) (int64, error)
	SetComboAvailability(ctx context.Context, tenantID, id int64, available bool) error
	DeleteCombo(ctx context.Context, tenantID, id int64) error

	GetOrCreateCart(ctx context.Context, tenantID int64, guestToken uuid.UUID) (domain.DeliveryCart, error)
	AddCartEntry(ctx context.Context, cartID uuid.UUID, key string, delta int) error
	RemoveCartEntry(ctx context.Context, cartID uuid.UUID, key string) error
	ReplaceCartEntries(ctx context.Context, cartID uuid.UUID, entries map[string]int) error
	DeleteCart(ctx context.Context, cartID uuid.UUID) error

	CreateOrder(ctx context.Context, o domain.DeliveryOrder) (domain.DeliveryOrder, error)
	GetOrder(ctx context.Context, tenantID, id int64) (domain.DeliveryOrder, error)
	ListOrders(ctx context.Context, tenantID int64, from, to time.Time) ([]domain.DeliveryOrder, error)
	ListOrdersByPhone(ctx context.Context, tenantID int64, phone string, limit int) ([]domain.DeliveryOrder, error)
	LatestOrderID(ctx context.Context, tenantID int64) (int64, error)
	UpdateOrderStatus(ctx context.Context, tenantID, id int64, status domain.DeliveryStatus) error
	DeleteOrder(ctx context.Context, tenantID, id int64) error
	Report(ctx context.Context, tenantID int64, from, to time.Time) (SalesReport, error)
}

type DeliveryRepository struct {
	db *pgxpool.Pool
}

func NewDeliveryRepository(db *pgxpool.Pool) DeliveryRepositoryInterface {
	return &DeliveryRepository{db: db}
}

func (dr *DeliveryRepository) ListCategories(ctx context.Context, tenantID int64) ([]domain.DeliveryCategory, error) {
	rows, err := dr.db.Query(ctx, `
		SELECT id, tenant_id, name FROM delivery_categories WHERE tenant_id = $1 ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery categories: %w", err)
	}
	defer rows.Close()

	var out []domain.DeliveryCategory
	for rows.Next() {
		var c domain.DeliveryCategory
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (dr *DeliveryRepository) CreateCategory(ctx context.Context, c domain.DeliveryCategory) (int64, error) {
	var id int64
	err := dr.db.QueryRow(ctx, `
		INSERT INTO delivery_categories (tenant_id, name) VALUES ($1, $2) RETURNING id
	`, c.TenantID, c.Name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert delivery category: %w", err)
	}
	return id, nil
}

func (dr *DeliveryRepository) DeleteCategory(ctx context.Context, tenantID, id int64) error {
	return dr.deleteScoped(ctx, "delivery_categories", tenantID, id)
}

func (dr *DeliveryRepository) deleteScoped(ctx context.Context, table string, tenantID, id int64) error {
	tag, err := dr.db.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (dr *DeliveryRepository) ListMenuItems(ctx context.Context, tenantID int64, onlyAvailable bool) ([]domain.MenuItem, error) {
	rows, err := dr.db.Query(ctx, `
		SELECT id, tenant_id, category_id, name, description, price, is_available
		FROM menu_items
		WHERE tenant_id = $1 AND ($2 = FALSE OR is_available)
		ORDER BY category_id, name
	`, tenantID, onlyAvailable)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu items: %w", err)
	}
	defer rows.Close()

	var out []domain.MenuItem
	for rows.Next() {
		var m domain.MenuItem
		if err := rows.Scan(&m.ID, &m.TenantID, &m.CategoryID, &m.Name, &m.Description, &m.Price, &m.IsAvailable); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (dr *DeliveryRepository) MenuItemsByID(ctx context.Context, tenantID int64, ids []int64) (map[int64]domain.MenuItem, error) {
	out := make(map[int64]domain.MenuItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := dr.db.Query(ctx, `
		SELECT id, tenant_id, category_id, name, description, price, is_available
		FROM menu_items WHERE tenant_id = $1 AND id = ANY($2)
	`, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch menu items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.MenuItem
		if err := rows.Scan(&m.ID, &m.TenantID, &m.CategoryID, &m.Name, &m.Description, &m.Price, &m.IsAvailable); err != nil {
			return nil, err
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}

func (dr *DeliveryRepository) CreateMenuItem(ctx context.Context, m domain.MenuItem) (int64, error) {
	var id int64
	err := dr.db.QueryRow(ctx, `
		INSERT INTO menu_items (tenant_id, category_id, name, description, price, is_available)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id
	`, m.TenantID, m.CategoryID, m.Name, m.Description, m.Price, m.IsAvailable).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert menu item: %w", err)
	}
	return id, nil
}

func (dr *DeliveryRepository) SetMenuItemAvailability(ctx context.Context, tenantID, id int64, available bool) error {
	tag, err := dr.db.Exec(ctx, `
		UPDATE menu_items SET is_available = $3 WHERE id = $1 AND tenant_id = $2
	`, id, tenantID, available)
	if err != nil {
		return fmt.Errorf("failed to update menu item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (dr *DeliveryRepository) DeleteMenuItem(ctx context.Context, tenantID, id int64) error {
	return dr.deleteScoped(ctx, "menu_items", tenantID, id)
}

func (dr *DeliveryRepository) ListZones(ctx context.Context, tenantID int64) ([]domain.DeliveryZone, error) {
	rows, err := dr.db.Query(ctx, `
		SELECT id, tenant_id, neighborhood, delivery_fee
		FROM delivery_zones WHERE tenant_id = $1 ORDER BY neighborhood
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	defer rows.Close()

	var out []domain.DeliveryZone
	for rows.Next() {
		var z domain.DeliveryZone
		if err := rows.Scan(&z.ID, &z.TenantID, &z.Neighborhood, &z.DeliveryFee); err != nil {
			return nil, err
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

func (dr *DeliveryRepository) GetZone(ctx context.Context, tenantID, id int64) (domain.DeliveryZone, error) {
	var z domain.DeliveryZone
	err := dr.db.QueryRow(ctx, `
		SELECT id, tenant_id, neighborhood, delivery_fee
		FROM delivery_zones WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&z.ID, &z.TenantID, &z.Neighborhood, &z.DeliveryFee)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DeliveryZone{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.DeliveryZone{}, fmt.Errorf("failed to get zone: %w", err)
	}
	return z, nil
}

func (dr *DeliveryRepository) CreateZone(ctx context.Context, z domain.DeliveryZone) (int64, error) {
	var id int64
	err := dr.db.QueryRow(ctx, `
		INSERT INTO delivery_zones (tenant_id, neighborhood, delivery_fee)
		VALUES ($1, $2, $3) RETURNING id
	`, z.TenantID, z.Neighborhood, z.DeliveryFee).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert zone: %w", err)
	}
	return id, nil
}

func (dr *DeliveryRepository) DeleteZone(ctx context.Context, tenantID, id int64) error {
	return dr.deleteScoped(ctx, "delivery_zones", tenantID, id)
}

func (dr *DeliveryRepository) ListOptionals(ctx context.Context, tenantID int64) ([]domain.DeliveryOptional, error) {
	rows, err := dr.db.Query(ctx, `
		SELECT id, tenant_id, category_id, name, price
		FROM delivery_optionals WHERE tenant_id = $1 ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list optionals: %w", err)
	}
	defer rows.Close()

	var out []domain.DeliveryOptional
	for rows.Next() {
		var o domain.DeliveryOptional
		if err := rows.Scan(&o.ID, &o.TenantID, &o.CategoryID, &o.Name, &o.Price); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (dr *DeliveryRepository) OptionalsByID(ctx context.Context, tenantID int64, ids []int64) (map[int64]domain.DeliveryOptional, error) {
	out := make(map[int64]domain.DeliveryOptional, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := dr.db.Query(ctx, `
		SELECT id, tenant_id, category_id, name, price
		FROM delivery_optionals WHERE tenant_id = $1 AND id = ANY($2)
	`, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch optionals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o domain.DeliveryOptional
		if err := rows.Scan(&o.ID, &o.TenantID, &o.CategoryID, &o.Name, &o.Price); err != nil {
			return nil, err
		}
		out[o.ID] = o
	}
	return out, rows.Err()
}

func (dr *DeliveryRepository) CreateOptional(ctx context.Context, o domain.DeliveryOptional) (int64, error) {
	var id int64
	err := dr.db.QueryRow(ctx, `
		INSERT INTO delivery_optionals (tenant_id, category_id, name, price)
		VALUES ($1, $2, $3, $4) RETURNING id
	`, o.TenantID, o.CategoryID, o.Name, o.Price).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert optional: %w", err)
	}
	return id, nil
}

func (dr *DeliveryRepository) DeleteOptional(ctx context.Context, tenantID, id int64) error {
	return dr.deleteScoped(ctx, "delivery_optionals", tenantID, id)
}

func (dr *DeliveryRepository) ListCombos(ctx context.Context, tenantID int64, onlyAvailable bool) ([]domain.Combo, error) {
	rows, err := dr.db.Query(ctx, `
		SELECT id, tenant_id, name, description, price, is_available
		FROM combos
		WHERE tenant_id = $1 AND ($2 = FALSE OR is_available)
		ORDER BY name
	`, tenantID, onlyAvailable)
	if err != nil {
		return nil, fmt.Errorf("failed to list combos: %w", err)
	}
	defer rows.Close()

	var out []domain.Combo
	for rows.Next() {
		var c domain.Combo
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Description, &c.Price, &c.IsAvailable); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		slots, err := dr.comboSlots(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Slots = slots
	}
	return out, nil
}

func (dr *DeliveryRepository) comboSlots(ctx context.Context, comboID int64) ([]domain.ComboSlot, error) {
	rows, err := dr.db.Query(ctx, `
		SELECT id, combo_id, allowed_category_id FROM combo_slots WHERE combo_id = $1 ORDER BY id
	`, comboID)
	if err != nil {
		return nil, fmt.Errorf("failed to list combo slots: %w", err)
	}
	defer rows.Close()

	var out []domain.ComboSlot
	for rows.Next() {
		var s domain.ComboSlot
		if err := rows.Scan(&s.ID, &s.ComboID, &s.AllowedCategoryID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (dr *DeliveryRepository) CombosByID(ctx context.Context, tenantID int64, ids []int64) (map[int64]domain.Combo, error) {
	out := make(map[int64]domain.Combo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := dr.db.Query(ctx, `
		SELECT id, tenant_id, name, description, price, is_available
		FROM combos WHERE tenant_id = $1 AND id = ANY($2)
	`, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch combos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.Combo
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Description, &c.Price, &c.IsAvailable); err != nil {
			return nil, err
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

func (dr *DeliveryRepository) CreateCombo(ctx context.Context, c domain.Combo) (int64, error) {
	tx, err := dr.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO combos (tenant_id, name, description, price, is_available)
		VALUES ($1, $2, $3, $4, $5) RETURNING id
	`, c.TenantID, c.Name, c.Description, c.Price, c.IsAvailable).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert combo: %w", err)
	}

	for _, s := range c.Slots {
		if _, err := tx.Exec(ctx, `
			INSERT INTO combo_slots (combo_id, allowed_category_id) VALUES ($1, $2)
		`, id, s.AllowedCategoryID); err != nil {
			return 0, fmt.Errorf("failed to insert combo slot: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

func (dr *DeliveryRepository) SetComboAvailability(ctx context.Context, tenantID, id int64, available bool) error {
	tag, err := dr.db.Exec(ctx, `
		UPDATE combos SET is_available = $3 WHERE id = $1 AND tenant_id = $2
	`, id, tenantID, available)
	if err != nil {
		return fmt.Errorf("failed to update combo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (dr *DeliveryRepository) DeleteCombo(ctx context.Context, tenantID, id int64) error {
	return dr.deleteScoped(ctx, "combos", tenantID, id)
}

func (dr *DeliveryRepository) GetOrCreateCart(ctx context.Context, tenantID int64, guestToken uuid.UUID) (domain.DeliveryCart, error) {
	var c domain.DeliveryCart
	err := dr.db.QueryRow(ctx, `
		INSERT INTO delivery_carts (id, tenant_id, guest_token) VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, guest_token) DO UPDATE SET updated_at = NOW()
		RETURNING id, tenant_id, guest_token, updated_at
	`, uuid.New(), tenantID, guestToken).Scan(&c.ID, &c.TenantID, &c.GuestToken, &c.UpdatedAt)
	if err != nil {
		return domain.DeliveryCart{}, fmt.Errorf("failed to get or create delivery cart: %w", err)
	}

	rows, err := dr.db.Query(ctx, `
		SELECT cart_key, quantity FROM delivery_cart_entries WHERE cart_id = $1 ORDER BY cart_key
	`, c.ID)
	if err != nil {
		return domain.DeliveryCart{}, fmt.Errorf("failed to list cart entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		var qty int
		if err := rows.Scan(&raw, &qty); err != nil {
			return domain.DeliveryCart{}, err
		}
		key, err := domain.ParseCartKey(raw)
		if err != nil {
			// A stale or hand-edited entry; skip it rather than break the cart.
			continue
		}
		c.Entries = append(c.Entries, domain.DeliveryCartEntry{Key: key, Quantity: qty})
	}
	return c, rows.Err()
}

func (dr *DeliveryRepository) AddCartEntry(ctx context.Context, cartID uuid.UUID, key string, delta int) error {
	_, err := dr.db.Exec(ctx, `
		INSERT INTO delivery_cart_entries (cart_id, cart_key, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, cart_key) DO UPDATE SET quantity = delivery_cart_entries.quantity + EXCLUDED.quantity
	`, cartID, key, delta)
	if err != nil {
		return fmt.Errorf("failed to add cart entry: %w", err)
	}
	return nil
}

func (dr *DeliveryRepository) RemoveCartEntry(ctx context.Context, cartID uuid.UUID, key string) error {
	_, err := dr.db.Exec(ctx, `
		DELETE FROM delivery_cart_entries WHERE cart_id = $1 AND cart_key = $2
	`, cartID, key)
	if err != nil {
		return fmt.Errorf("failed to remove cart entry: %w", err)
	}
	return nil
}

func (dr *DeliveryRepository) ReplaceCartEntries(ctx context.Context, cartID uuid.UUID, entries map[string]int) error {
	tx, err := dr.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM delivery_cart_entries WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("failed to clear cart entries: %w", err)
	}
	for key, qty := range entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO delivery_cart_entries (cart_id, cart_key, quantity) VALUES ($1, $2, $3)
		`, cartID, key, qty); err != nil {
			return fmt.Errorf("failed to insert cart entry %s: %w", key, err)
		}
	}
	return tx.Commit(ctx)
}

func (dr *DeliveryRepository) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	_, err := dr.db.Exec(ctx, `DELETE FROM delivery_carts WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("failed to delete delivery cart: %w", err)
	}
	return nil
}

func (dr *DeliveryRepository) CreateOrder(ctx context.Context, o domain.DeliveryOrder) (domain.DeliveryOrder, error) {
	tx, err := dr.db.Begin(ctx)
	if err != nil {
		return domain.DeliveryOrder{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO delivery_orders
			(tenant_id, customer_name, customer_whatsapp, delivery_address, zone_id,
			 payment_method, change_for, observations, items_total, delivery_fee, final_total, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`, o.TenantID, o.CustomerName, o.CustomerWhatsApp, o.DeliveryAddress, o.ZoneID,
		o.PaymentMethod, o.ChangeFor, o.Observations, o.ItemsTotal, o.DeliveryFee, o.FinalTotal, o.Status,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return domain.DeliveryOrder{}, fmt.Errorf("failed to insert delivery order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO delivery_order_items (order_id, item_name, quantity, price, original_cart_key)
			VALUES ($1, $2, $3, $4, $5) RETURNING id
		`, it.OrderID, it.ItemName, it.Quantity, it.Price, it.OriginalCartKey).Scan(&it.ID)
		if err != nil {
			return domain.DeliveryOrder{}, fmt.Errorf("failed to insert delivery order item %s: %w", it.ItemName, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.DeliveryOrder{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return o, nil
}

const deliveryOrderColumns = `o.id, o.tenant_id, o.customer_name, o.customer_whatsapp,
	o.delivery_address, o.zone_id, COALESCE(z.neighborhood, ''), o.payment_method,
	o.change_for, o.observations, o.items_total, o.delivery_fee, o.final_total,
	o.status, o.created_at`

func (dr *DeliveryRepository) scanOrder(row pgx.Row) (domain.DeliveryOrder, error) {
	var o domain.DeliveryOrder
	err := row.Scan(&o.ID, &o.TenantID, &o.CustomerName, &o.CustomerWhatsApp,
		&o.DeliveryAddress, &o.ZoneID, &o.ZoneName, &o.PaymentMethod,
		&o.ChangeFor, &o.Observations, &o.ItemsTotal, &o.DeliveryFee, &o.FinalTotal,
		&o.Status, &o.CreatedAt)
	return o, err
}

func (dr *DeliveryRepository) GetOrder(ctx context.Context, tenantID, id int64) (domain.DeliveryOrder, error) {
	o, err := dr.scanOrder(dr.db.QueryRow(ctx, `
		SELECT `+deliveryOrderColumns+`
		FROM delivery_orders o
		LEFT JOIN delivery_zones z ON z.id = o.zone_id
		WHERE o.id = $1 AND o.tenant_id = $2
	`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DeliveryOrder{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.DeliveryOrder{}, fmt.Errorf("failed to get delivery order: %w", err)
	}

	items, err := dr.orderItems(ctx, o.ID)
	if err != nil {
		return domain.DeliveryOrder{}, err
	}
	o.Items = items
	return o, nil
}

func (dr *DeliveryRepository) orderItems(ctx context.Context, orderID int64) ([]domain.DeliveryOrderItem, error) {
	rows, err := dr.db.Query(ctx, `
		SELECT id, order_id, item_name, quantity, price, original_cart_key
		FROM delivery_order_items WHERE order_id = $1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery order items: %w", err)
	}
	defer rows.Close()

	var out []domain.DeliveryOrderItem
	for rows.Next() {
		var it domain.DeliveryOrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ItemName, &it.Quantity, &it.Price, &it.OriginalCartKey); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (dr *DeliveryRepository) ListOrders(ctx context.Context, tenantID int64, from, to time.Time) ([]domain.DeliveryOrder, error) {
	rows, err := dr.db.Query(ctx, `
		SELECT `+deliveryOrderColumns+`
		FROM delivery_orders o
		LEFT JOIN delivery_zones z ON z.id = o.zone_id
		WHERE o.tenant_id = $1 AND o.created_at >= $2 AND o.created_at < $3
		ORDER BY o.id DESC
	`, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery orders: %w", err)
	}
	defer rows.Close()
	return dr.collectOrders(ctx, rows)
}

func (dr *DeliveryRepository) ListOrdersByPhone(ctx context.Context, tenantID int64, phone string, limit int) ([]domain.DeliveryOrder, error) {
	rows, err := dr.db.Query(ctx, `
		SELECT `+deliveryOrderColumns+`
		FROM delivery_orders o
		LEFT JOIN delivery_zones z ON z.id = o.zone_id
		WHERE o.tenant_id = $1 AND o.customer_whatsapp LIKE '%' || $2 || '%'
		ORDER BY o.created_at DESC
		LIMIT $3
	`, tenantID, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery orders by phone: %w", err)
	}
	defer rows.Close()
	return dr.collectOrders(ctx, rows)
}

func (dr *DeliveryRepository) collectOrders(ctx context.Context, rows pgx.Rows) ([]domain.DeliveryOrder, error) {
	var out []domain.DeliveryOrder
	for rows.Next() {
		o, err := dr.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		items, err := dr.orderItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (dr *DeliveryRepository) LatestOrderID(ctx context.Context, tenantID int64) (int64, error) {
	var id int64
	err := dr.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(id), 0) FROM delivery_orders WHERE tenant_id = $1
	`, tenantID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest order id: %w", err)
	}
	return id, nil
}

func (dr *DeliveryRepository) UpdateOrderStatus(ctx context.Context, tenantID, id int64, status domain.DeliveryStatus) error {
	tag, err := dr.db.Exec(ctx, `
		UPDATE delivery_orders SET status = $3 WHERE id = $1 AND tenant_id = $2
	`, id, tenantID, status)
	if err != nil {
		return fmt.Errorf("failed to update delivery order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (dr *DeliveryRepository) DeleteOrder(ctx context.Context, tenantID, id int64) error {
	return dr.deleteScoped(ctx, "delivery_orders", tenantID, id)
}

// Report aggregates non-cancelled orders per day plus the top customers by
// order count for the merchant report screen.
func (dr *DeliveryRepository) Report(ctx context.Context, tenantID int64, from, to time.Time) (SalesReport, error) {
	var rep SalesReport

	rows, err := dr.db.Query(ctx, `
		SELECT DATE(created_at) AS day, SUM(final_total)
		FROM delivery_orders
		WHERE tenant_id = $1 AND status <> 'cancelled' AND created_at >= $2 AND created_at < $3
		GROUP BY day ORDER BY day
	`, tenantID, from, to)
	if err != nil {
		return SalesReport{}, fmt.Errorf("failed to aggregate daily sales: %w", err)
	}
	for rows.Next() {
		var d DailySales
		if err := rows.Scan(&d.Day, &d.Total); err != nil {
			rows.Close()
			return SalesReport{}, err
		}
		rep.Daily = append(rep.Daily, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return SalesReport{}, err
	}
	rows.Close()

	err = dr.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(final_total), 0), COUNT(*)
		FROM delivery_orders
		WHERE tenant_id = $1 AND status <> 'cancelled' AND created_at >= $2 AND created_at < $3
	`, tenantID, from, to).Scan(&rep.TotalSales, &rep.TotalOrders)
	if err != nil {
		return SalesReport{}, fmt.Errorf("failed to aggregate totals: %w", err)
	}

	crows, err := dr.db.Query(ctx, `
		SELECT customer_whatsapp, MAX(customer_name), COUNT(*), SUM(final_total)
		FROM delivery_orders
		WHERE tenant_id = $1 AND status <> 'cancelled' AND created_at >= $2 AND created_at < $3
		GROUP BY customer_whatsapp
		ORDER BY COUNT(*) DESC
		LIMIT 10
	`, tenantID, from, to)
	if err != nil {
		return SalesReport{}, fmt.Errorf("failed to aggregate top customers: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var c TopCustomer
		if err := crows.Scan(&c.WhatsApp, &c.Name, &c.OrderCount, &c.TotalSpent); err != nil {
			return SalesReport{}, err
		}
		rep.Top = append(rep.Top, c)
	}
	return rep, crows.Err()
}
