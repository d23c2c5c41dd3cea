package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"storefront-system/internal/domain"
)

type ShopRepositoryInterface interface {
	ListCategories(ctx context.Context, tenantID int64) ([]domain.Category, error)
	CreateCategory(ctx context.Context, c domain.Category) (int64, error)
	ListProducts(ctx context.Context, tenantID int64) ([]domain.Product, error)
	GetProduct(ctx context.Context, tenantID, productID int64) (domain.Product, error)
	CreateProduct(ctx context.Context, p domain.Product) (int64, error)
	UpdateProduct(ctx context.Context, p domain.Product) error
	DeleteProduct(ctx context.Context, tenantID, productID int64) error

	GetOrCreateCart(ctx context.Context, phone string) (domain.Cart, error)
	GetCart(ctx context.Context, id uuid.UUID) (domain.Cart, error)
	GetCartByPhone(ctx context.Context, phone string) (domain.Cart, error)
	AddCartItem(ctx context.Context, cartID uuid.UUID, productID int64, qty int) error
	SetCartItemQuantity(ctx context.Context, cartID uuid.UUID, itemID int64, qty int) error
	RemoveCartItem(ctx context.Context, cartID uuid.UUID, itemID int64) error
	DeleteCart(ctx context.Context, cartID uuid.UUID) error
	ListActiveCarts(ctx context.Context, tenantID int64) ([]domain.Cart, error)

	CartTenantID(ctx context.Context, cartID uuid.UUID) (int64, error)
	MaterializeCart(ctx context.Context, cartID uuid.UUID) (domain.Order, error)
	ListOrders(ctx context.Context, tenantID int64, status domain.OrderStatus) ([]domain.Order, error)
	ListOrdersByPhone(ctx context.Context, phone string, tenantID int64) ([]domain.Order, error)
}

type ShopRepository struct {
	db *pgxpool.Pool
}

func NewShopRepository(db *pgxpool.Pool) ShopRepositoryInterface {
	return &ShopRepository{db: db}
}

func (sr *ShopRepository) ListCategories(ctx context.Context, tenantID int64) ([]domain.Category, error) {
	rows, err := sr.db.Query(ctx, `
		SELECT id, tenant_id, name FROM categories WHERE tenant_id = $1 ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (sr *ShopRepository) CreateCategory(ctx context.Context, c domain.Category) (int64, error) {
	var id int64
	err := sr.db.QueryRow(ctx, `
		INSERT INTO categories (tenant_id, name) VALUES ($1, $2) RETURNING id
	`, c.TenantID, c.Name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert category: %w", err)
	}
	return id, nil
}

func (sr *ShopRepository) ListProducts(ctx context.Context, tenantID int64) ([]domain.Product, error) {
	rows, err := sr.db.Query(ctx, `
		SELECT id, tenant_id, category_id, name, description, price, stock
		FROM products WHERE tenant_id = $1 ORDER BY id DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.TenantID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.Stock); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (sr *ShopRepository) GetProduct(ctx context.Context, tenantID, productID int64) (domain.Product, error) {
	var p domain.Product
	err := sr.db.QueryRow(ctx, `
		SELECT id, tenant_id, category_id, name, description, price, stock
		FROM products WHERE id = $1 AND tenant_id = $2
	`, productID, tenantID).Scan(&p.ID, &p.TenantID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.Stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

func (sr *ShopRepository) CreateProduct(ctx context.Context, p domain.Product) (int64, error) {
	var id int64
	err := sr.db.QueryRow(ctx, `
		INSERT INTO products (tenant_id, category_id, name, description, price, stock)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id
	`, p.TenantID, p.CategoryID, p.Name, p.Description, p.Price, p.Stock).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert product: %w", err)
	}
	return id, nil
}

func (sr *ShopRepository) UpdateProduct(ctx context.Context, p domain.Product) error {
	tag, err := sr.db.Exec(ctx, `
		UPDATE products SET category_id = $3, name = $4, description = $5, price = $6, stock = $7
		WHERE id = $1 AND tenant_id = $2
	`, p.ID, p.TenantID, p.CategoryID, p.Name, p.Description, p.Price, p.Stock)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (sr *ShopRepository) DeleteProduct(ctx context.Context, tenantID, productID int64) error {
	tag, err := sr.db.Exec(ctx, `DELETE FROM products WHERE id = $1 AND tenant_id = $2`, productID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (sr *ShopRepository) GetOrCreateCart(ctx context.Context, phone string) (domain.Cart, error) {
	var id uuid.UUID
	err := sr.db.QueryRow(ctx, `
		INSERT INTO carts (id, phone_number) VALUES ($1, $2)
		ON CONFLICT (phone_number) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`, uuid.New(), phone).Scan(&id)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("failed to get or create cart: %w", err)
	}
	return sr.GetCart(ctx, id)
}

func (sr *ShopRepository) GetCart(ctx context.Context, id uuid.UUID) (domain.Cart, error) {
	var c domain.Cart
	err := sr.db.QueryRow(ctx, `
		SELECT id, phone_number, created_at, updated_at FROM carts WHERE id = $1
	`, id).Scan(&c.ID, &c.PhoneNumber, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("failed to get cart: %w", err)
	}

	items, err := sr.cartItems(ctx, sr.db, id)
	if err != nil {
		return domain.Cart{}, err
	}
	c.Items = items
	return c, nil
}

func (sr *ShopRepository) GetCartByPhone(ctx context.Context, phone string) (domain.Cart, error) {
	var id uuid.UUID
	err := sr.db.QueryRow(ctx, `SELECT id FROM carts WHERE phone_number = $1`, phone).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("failed to get cart by phone: %w", err)
	}
	return sr.GetCart(ctx, id)
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (sr *ShopRepository) cartItems(ctx context.Context, q queryer, cartID uuid.UUID) ([]domain.CartItem, error) {
	rows, err := q.Query(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, p.name, p.price, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	var out []domain.CartItem
	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.ProductName, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (sr *ShopRepository) AddCartItem(ctx context.Context, cartID uuid.UUID, productID int64, qty int) error {
	if qty <= 0 {
		qty = 1
	}
	_, err := sr.db.Exec(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`, cartID, productID, qty)
	if err != nil {
		return fmt.Errorf("failed to add cart item: %w", err)
	}
	return nil
}

func (sr *ShopRepository) SetCartItemQuantity(ctx context.Context, cartID uuid.UUID, itemID int64, qty int) error {
	// Quantity <= 0 removes the line.
	if qty <= 0 {
		return sr.RemoveCartItem(ctx, cartID, itemID)
	}
	tag, err := sr.db.Exec(ctx, `
		UPDATE cart_items SET quantity = $3 WHERE id = $2 AND cart_id = $1
	`, cartID, itemID, qty)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (sr *ShopRepository) RemoveCartItem(ctx context.Context, cartID uuid.UUID, itemID int64) error {
	_, err := sr.db.Exec(ctx, `DELETE FROM cart_items WHERE id = $2 AND cart_id = $1`, cartID, itemID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

func (sr *ShopRepository) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	_, err := sr.db.Exec(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

// ListActiveCarts returns carts holding at least one product of the tenant,
// for the merchant panel.
func (sr *ShopRepository) ListActiveCarts(ctx context.Context, tenantID int64) ([]domain.Cart, error) {
	rows, err := sr.db.Query(ctx, `
		SELECT DISTINCT c.id, c.phone_number, c.created_at, c.updated_at
		FROM carts c
		JOIN cart_items ci ON ci.cart_id = c.id
		JOIN products p ON p.id = ci.product_id
		WHERE p.tenant_id = $1
		ORDER BY c.updated_at DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active carts: %w", err)
	}
	defer rows.Close()

	var out []domain.Cart
	for rows.Next() {
		var c domain.Cart
		if err := rows.Scan(&c.ID, &c.PhoneNumber, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		items, err := sr.cartItems(ctx, sr.db, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

// CartTenantID resolves the tenant owning the cart's products. All products
// in one cart belong to the same storefront.
func (sr *ShopRepository) CartTenantID(ctx context.Context, cartID uuid.UUID) (int64, error) {
	var tenantID int64
	err := sr.db.QueryRow(ctx, `
		SELECT p.tenant_id
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id
		LIMIT 1
	`, cartID).Scan(&tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrCartEmpty
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve cart tenant: %w", err)
	}
	return tenantID, nil
}

// MaterializeCart converts a cart into an immutable paid order exactly once.
// The whole step runs in one transaction: the cart row is locked FOR UPDATE,
// so when the redirect callback and the webhook race for the same cart the
// loser blocks on the lock and then observes the deleted row, returning
// ErrCartNotFound without side effects.
func (sr *ShopRepository) MaterializeCart(ctx context.Context, cartID uuid.UUID) (domain.Order, error) {
	tx, err := sr.db.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Claim the cart.
	var phone string
	err = tx.QueryRow(ctx, `
		SELECT phone_number FROM carts WHERE id = $1 FOR UPDATE
	`, cartID).Scan(&phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrCartNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to claim cart: %w", err)
	}

	// 2. Snapshot the items with the current product name and price.
	items, err := sr.cartItems(ctx, tx, cartID)
	if err != nil {
		return domain.Order{}, err
	}
	if len(items) == 0 {
		return domain.Order{}, domain.ErrCartEmpty
	}

	var tenantID int64
	err = tx.QueryRow(ctx, `SELECT tenant_id FROM products WHERE id = $1`, items[0].ProductID).Scan(&tenantID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to resolve cart tenant: %w", err)
	}

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}

	// 3. Write the order and its item snapshots.
	order := domain.Order{
		TenantID:      tenantID,
		CustomerPhone: phone,
		TotalAmount:   total,
		Status:        domain.OrderPaid,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (tenant_id, customer_phone, total_amount, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, order.TenantID, order.CustomerPhone, order.TotalAmount, order.Status).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}

	for _, it := range items {
		oi := domain.OrderItem{OrderID: order.ID, ProductName: it.ProductName, Quantity: it.Quantity, Price: it.UnitPrice}
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_name, quantity, price)
			VALUES ($1, $2, $3, $4) RETURNING id
		`, oi.OrderID, oi.ProductName, oi.Quantity, oi.Price).Scan(&oi.ID)
		if err != nil {
			return domain.Order{}, fmt.Errorf("failed to insert order item %s: %w", oi.ProductName, err)
		}
		order.Items = append(order.Items, oi)
	}

	// 4. Consume the cart.
	if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, cartID); err != nil {
		return domain.Order{}, fmt.Errorf("failed to delete cart: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return order, nil
}

func (sr *ShopRepository) ListOrders(ctx context.Context, tenantID int64, status domain.OrderStatus) ([]domain.Order, error) {
	rows, err := sr.db.Query(ctx, `
		SELECT id, tenant_id, customer_phone, total_amount, status, created_at
		FROM orders WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
	`, tenantID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()
	return sr.scanOrders(ctx, rows)
}

func (sr *ShopRepository) ListOrdersByPhone(ctx context.Context, phone string, tenantID int64) ([]domain.Order, error) {
	rows, err := sr.db.Query(ctx, `
		SELECT id, tenant_id, customer_phone, total_amount, status, created_at
		FROM orders WHERE customer_phone = $1 AND ($2 = 0 OR tenant_id = $2)
		ORDER BY created_at DESC
	`, phone, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders by phone: %w", err)
	}
	defer rows.Close()
	return sr.scanOrders(ctx, rows)
}

func (sr *ShopRepository) scanOrders(ctx context.Context, rows pgx.Rows) ([]domain.Order, error) {
	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.TenantID, &o.CustomerPhone, &o.TotalAmount, &o.Status, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		irows, err := sr.db.Query(ctx, `
			SELECT id, order_id, product_name, quantity, price
			FROM order_items WHERE order_id = $1 ORDER BY id
		`, out[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list order items: %w", err)
		}
		for irows.Next() {
			var it domain.OrderItem
			if err := irows.Scan(&it.ID, &it.OrderID, &it.ProductName, &it.Quantity, &it.Price); err != nil {
				irows.Close()
				return nil, err
			}
			out[i].Items = append(out[i].Items, it)
		}
		if err := irows.Err(); err != nil {
			irows.Close()
			return nil, err
		}
		irows.Close()
	}
	return out, nil
}
