package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"storefront-system/internal/domain"
)

type DailyTake struct {
	Day   time.Time
	Total decimal.Decimal
	Paid  int
}

type BarReport struct {
	Daily        []DailyTake
	TotalTake    decimal.Decimal
	PaidComandas int
}

type BarRepositoryInterface interface {
	ListCategories(ctx context.Context, tenantID int64) ([]domain.BarCategory, error)
	CreateCategory(ctx context.Context, c domain.BarCategory) (int64, error)
	DeleteCategory(ctx context.Context, tenantID, id int64) error

	ListMenuItems(ctx context.Context, tenantID int64, onlyAvailable bool) ([]domain.BarMenuItem, error)
	GetMenuItem(ctx context.Context, tenantID, id int64) (domain.BarMenuItem, error)
	CreateMenuItem(ctx context.Context, m domain.BarMenuItem) (int64, error)
	SetMenuItemAvailability(ctx context.Context, tenantID, id int64, available bool) error
	DeleteMenuItem(ctx context.Context, tenantID, id int64) error

	OpenComandas(ctx context.Context, tenantID int64) ([]domain.Comanda, error)
	GetComanda(ctx context.Context, tenantID, id int64) (domain.Comanda, error)
	GetOrOpenComanda(ctx context.Context, tenantID int64, table int) (domain.Comanda, error)
	AddItem(ctx context.Context, tenantID, comandaID int64, item domain.ComandaItem) (domain.Comanda, error)
	RemoveItem(ctx context.Context, tenantID, comandaID, itemRowID int64) (domain.Comanda, error)
	SetItemQuantity(ctx context.Context, tenantID, comandaID, itemRowID int64, qty int) (domain.Comanda, error)
	SetServiceFee(ctx context.Context, tenantID, comandaID int64, on bool) error
	CloseComanda(ctx context.Context, tenantID, comandaID int64, serviceFee *bool, finalize func(domain.Comanda) decimal.Decimal) (domain.Comanda, error)
	MarkPaid(ctx context.Context, tenantID, comandaID int64) error
	DeleteComanda(ctx context.Context, tenantID, comandaID int64) error
	Report(ctx context.Context, tenantID int64, from, to time.Time) (BarReport, error)
}

type BarRepository struct {
	db *pgxpool.Pool
}

func NewBarRepository(db *pgxpool.Pool) BarRepositoryInterface {
	return &BarRepository{db: db}
}

func (br *BarRepository) ListCategories(ctx context.Context, tenantID int64) ([]domain.BarCategory, error) {
	rows, err := br.db.Query(ctx, `
		SELECT id, tenant_id, name FROM bar_categories WHERE tenant_id = $1 ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bar categories: %w", err)
	}
	defer rows.Close()

	var out []domain.BarCategory
	for rows.Next() {
		var c domain.BarCategory
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (br *BarRepository) CreateCategory(ctx context.Context, c domain.BarCategory) (int64, error) {
	var id int64
	err := br.db.QueryRow(ctx, `
		INSERT INTO bar_categories (tenant_id, name) VALUES ($1, $2) RETURNING id
	`, c.TenantID, c.Name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert bar category: %w", err)
	}
	return id, nil
}

func (br *BarRepository) DeleteCategory(ctx context.Context, tenantID, id int64) error {
	tag, err := br.db.Exec(ctx, `
		DELETE FROM bar_categories WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete bar category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (br *BarRepository) ListMenuItems(ctx context.Context, tenantID int64, onlyAvailable bool) ([]domain.BarMenuItem, error) {
	rows, err := br.db.Query(ctx, `
		SELECT id, tenant_id, category_id, name, price, is_available
		FROM bar_menu_items
		WHERE tenant_id = $1 AND ($2 = FALSE OR is_available)
		ORDER BY category_id, name
	`, tenantID, onlyAvailable)
	if err != nil {
		return nil, fmt.Errorf("failed to list bar menu items: %w", err)
	}
	defer rows.Close()

	var out []domain.BarMenuItem
	for rows.Next() {
		var m domain.BarMenuItem
		if err := rows.Scan(&m.ID, &m.TenantID, &m.CategoryID, &m.Name, &m.Price, &m.IsAvailable); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (br *BarRepository) GetMenuItem(ctx context.Context, tenantID, id int64) (domain.BarMenuItem, error) {
	var m domain.BarMenuItem
	err := br.db.QueryRow(ctx, `
		SELECT id, tenant_id, category_id, name, price, is_available
		FROM bar_menu_items WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&m.ID, &m.TenantID, &m.CategoryID, &m.Name, &m.Price, &m.IsAvailable)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BarMenuItem{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.BarMenuItem{}, fmt.Errorf("failed to get bar menu item: %w", err)
	}
	return m, nil
}

func (br *BarRepository) CreateMenuItem(ctx context.Context, m domain.BarMenuItem) (int64, error) {
	var id int64
	err := br.db.QueryRow(ctx, `
		INSERT INTO bar_menu_items (tenant_id, category_id, name, price, is_available)
		VALUES ($1, $2, $3, $4, $5) RETURNING id
	`, m.TenantID, m.CategoryID, m.Name, m.Price, m.IsAvailable).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert bar menu item: %w", err)
	}
	return id, nil
}

func (br *BarRepository) SetMenuItemAvailability(ctx context.Context, tenantID, id int64, available bool) error {
	tag, err := br.db.Exec(ctx, `
		UPDATE bar_menu_items SET is_available = $3 WHERE id = $1 AND tenant_id = $2
	`, id, tenantID, available)
	if err != nil {
		return fmt.Errorf("failed to update bar menu item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (br *BarRepository) DeleteMenuItem(ctx context.Context, tenantID, id int64) error {
	tag, err := br.db.Exec(ctx, `
		DELETE FROM bar_menu_items WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete bar menu item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const comandaColumns = `id, tenant_id, table_number, status, service_fee, total, opened_at, closed_at`

func scanComanda(row pgx.Row) (domain.Comanda, error) {
	var c domain.Comanda
	err := row.Scan(&c.ID, &c.TenantID, &c.TableNumber, &c.Status, &c.ServiceFee, &c.Total, &c.OpenedAt, &c.ClosedAt)
	return c, err
}

func (br *BarRepository) OpenComandas(ctx context.Context, tenantID int64) ([]domain.Comanda, error) {
	rows, err := br.db.Query(ctx, `
		SELECT `+comandaColumns+` FROM bar_comandas
		WHERE tenant_id = $1 AND status = 'aberta'
		ORDER BY table_number
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open comandas: %w", err)
	}
	defer rows.Close()

	var out []domain.Comanda
	for rows.Next() {
		c, err := scanComanda(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		items, err := br.comandaItems(ctx, br.db, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (br *BarRepository) comandaItems(ctx context.Context, q queryer, comandaID int64) ([]domain.ComandaItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, comanda_id, item_id, item_name, quantity, unit_price, note
		FROM bar_comanda_items WHERE comanda_id = $1 ORDER BY id
	`, comandaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comanda items: %w", err)
	}
	defer rows.Close()

	var out []domain.ComandaItem
	for rows.Next() {
		var it domain.ComandaItem
		if err := rows.Scan(&it.ID, &it.ComandaID, &it.ItemID, &it.ItemName, &it.Quantity, &it.UnitPrice, &it.Note); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (br *BarRepository) GetComanda(ctx context.Context, tenantID, id int64) (domain.Comanda, error) {
	c, err := scanComanda(br.db.QueryRow(ctx, `
		SELECT `+comandaColumns+` FROM bar_comandas WHERE id = $1 AND tenant_id = $2
	`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Comanda{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Comanda{}, fmt.Errorf("failed to get comanda: %w", err)
	}
	items, err := br.comandaItems(ctx, br.db, c.ID)
	if err != nil {
		return domain.Comanda{}, err
	}
	c.Items = items
	return c, nil
}

// GetOrOpenComanda returns the open comanda for a table, opening a fresh one
// if none exists. The partial unique index on (tenant_id, table_number) WHERE
// status = 'aberta' makes concurrent opens collapse to a single row.
func (br *BarRepository) GetOrOpenComanda(ctx context.Context, tenantID int64, table int) (domain.Comanda, error) {
	c, err := scanComanda(br.db.QueryRow(ctx, `
		INSERT INTO bar_comandas (tenant_id, table_number) VALUES ($1, $2)
		ON CONFLICT (tenant_id, table_number) WHERE status = 'aberta'
			DO UPDATE SET table_number = EXCLUDED.table_number
		RETURNING `+comandaColumns+`
	`, tenantID, table))
	if err != nil {
		return domain.Comanda{}, fmt.Errorf("failed to get or open comanda: %w", err)
	}
	items, err := br.comandaItems(ctx, br.db, c.ID)
	if err != nil {
		return domain.Comanda{}, err
	}
	c.Items = items
	return c, nil
}

// lockOpenComanda loads a comanda row FOR UPDATE inside tx, rejecting
// mutations once the comanda has left the open state.
func (br *BarRepository) lockOpenComanda(ctx context.Context, tx pgx.Tx, tenantID, comandaID int64) (domain.Comanda, error) {
	c, err := scanComanda(tx.QueryRow(ctx, `
		SELECT `+comandaColumns+` FROM bar_comandas
		WHERE id = $1 AND tenant_id = $2 FOR UPDATE
	`, comandaID, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Comanda{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Comanda{}, fmt.Errorf("failed to lock comanda: %w", err)
	}
	if c.Status != domain.ComandaOpen {
		return domain.Comanda{}, domain.ErrComandaClosed
	}
	return c, nil
}

// AddItem merges into an existing line of the same menu item and note, so
// repeated rounds of the same drink grow one line instead of stacking rows.
func (br *BarRepository) AddItem(ctx context.Context, tenantID, comandaID int64, item domain.ComandaItem) (domain.Comanda, error) {
	return br.mutateItems(ctx, tenantID, comandaID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE bar_comanda_items SET quantity = quantity + $3
			WHERE comanda_id = $1 AND item_id = $2 AND note = $4
		`, comandaID, item.ItemID, item.Quantity, item.Note)
		if err != nil {
			return fmt.Errorf("failed to merge comanda item: %w", err)
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO bar_comanda_items (comanda_id, item_id, item_name, quantity, unit_price, note)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, comandaID, item.ItemID, item.ItemName, item.Quantity, item.UnitPrice, item.Note)
		if err != nil {
			return fmt.Errorf("failed to insert comanda item: %w", err)
		}
		return nil
	})
}

// SetItemQuantity overrides a line's quantity; zero or less removes the line.
func (br *BarRepository) SetItemQuantity(ctx context.Context, tenantID, comandaID, itemRowID int64, qty int) (domain.Comanda, error) {
	if qty <= 0 {
		return br.RemoveItem(ctx, tenantID, comandaID, itemRowID)
	}
	return br.mutateItems(ctx, tenantID, comandaID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE bar_comanda_items SET quantity = $3 WHERE id = $1 AND comanda_id = $2
		`, itemRowID, comandaID, qty)
		if err != nil {
			return fmt.Errorf("failed to update comanda item quantity: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (br *BarRepository) RemoveItem(ctx context.Context, tenantID, comandaID, itemRowID int64) (domain.Comanda, error) {
	return br.mutateItems(ctx, tenantID, comandaID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM bar_comanda_items WHERE id = $1 AND comanda_id = $2
		`, itemRowID, comandaID)
		if err != nil {
			return fmt.Errorf("failed to delete comanda item: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// mutateItems serializes item changes on a comanda: lock the row, apply the
// mutation, recompute and store the running total from the item rows.
func (br *BarRepository) mutateItems(ctx context.Context, tenantID, comandaID int64, mutate func(pgx.Tx) error) (domain.Comanda, error) {
	tx, err := br.db.Begin(ctx)
	if err != nil {
		return domain.Comanda{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := br.lockOpenComanda(ctx, tx, tenantID, comandaID)
	if err != nil {
		return domain.Comanda{}, err
	}
	if err := mutate(tx); err != nil {
		return domain.Comanda{}, err
	}

	err = tx.QueryRow(ctx, `
		UPDATE bar_comandas
		SET total = (SELECT COALESCE(SUM(quantity * unit_price), 0) FROM bar_comanda_items WHERE comanda_id = $1)
		WHERE id = $1
		RETURNING total
	`, comandaID).Scan(&c.Total)
	if err != nil {
		return domain.Comanda{}, fmt.Errorf("failed to recompute comanda total: %w", err)
	}

	items, err := br.comandaItems(ctx, tx, comandaID)
	if err != nil {
		return domain.Comanda{}, err
	}
	c.Items = items

	if err := tx.Commit(ctx); err != nil {
		return domain.Comanda{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return c, nil
}

func (br *BarRepository) SetServiceFee(ctx context.Context, tenantID, comandaID int64, on bool) error {
	tag, err := br.db.Exec(ctx, `
		UPDATE bar_comandas SET service_fee = $3
		WHERE id = $1 AND tenant_id = $2 AND status = 'aberta'
	`, comandaID, tenantID, on)
	if err != nil {
		return fmt.Errorf("failed to update service fee flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrComandaClosed
	}
	return nil
}

// CloseComanda moves an open comanda to fechada. The item rows are reloaded
// under the comanda's row lock and finalize prices them into the frozen
// total, so an item landing from another terminal right before the close
// still counts. The transition is one way; closing an already closed comanda
// fails with ErrComandaClosed.
func (br *BarRepository) CloseComanda(ctx context.Context, tenantID, comandaID int64, serviceFee *bool, finalize func(domain.Comanda) decimal.Decimal) (domain.Comanda, error) {
	tx, err := br.db.Begin(ctx)
	if err != nil {
		return domain.Comanda{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := br.lockOpenComanda(ctx, tx, tenantID, comandaID)
	if err != nil {
		return domain.Comanda{}, err
	}

	if serviceFee != nil && *serviceFee != c.ServiceFee {
		if _, err := tx.Exec(ctx, `
			UPDATE bar_comandas SET service_fee = $3 WHERE id = $1 AND tenant_id = $2
		`, comandaID, tenantID, *serviceFee); err != nil {
			return domain.Comanda{}, fmt.Errorf("failed to update service fee flag: %w", err)
		}
		c.ServiceFee = *serviceFee
	}

	items, err := br.comandaItems(ctx, tx, comandaID)
	if err != nil {
		return domain.Comanda{}, err
	}
	c.Items = items

	closed, err := scanComanda(tx.QueryRow(ctx, `
		UPDATE bar_comandas
		SET status = 'fechada', total = $3, closed_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+comandaColumns+`
	`, comandaID, tenantID, finalize(c)))
	if err != nil {
		return domain.Comanda{}, fmt.Errorf("failed to close comanda: %w", err)
	}
	closed.Items = items

	if err := tx.Commit(ctx); err != nil {
		return domain.Comanda{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return closed, nil
}

func (br *BarRepository) MarkPaid(ctx context.Context, tenantID, comandaID int64) error {
	tag, err := br.db.Exec(ctx, `
		UPDATE bar_comandas SET status = 'paga'
		WHERE id = $1 AND tenant_id = $2 AND status = 'fechada'
	`, comandaID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to mark comanda paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrComandaClosed
	}
	return nil
}

// DeleteComanda removes a closed, unpaid comanda. Open and paid comandas are
// never deletable.
func (br *BarRepository) DeleteComanda(ctx context.Context, tenantID, comandaID int64) error {
	tag, err := br.db.Exec(ctx, `
		DELETE FROM bar_comandas
		WHERE id = $1 AND tenant_id = $2 AND status = 'fechada'
	`, comandaID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete comanda: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrComandaClosed
	}
	return nil
}

func (br *BarRepository) Report(ctx context.Context, tenantID int64, from, to time.Time) (BarReport, error) {
	var rep BarReport

	rows, err := br.db.Query(ctx, `
		SELECT DATE(closed_at) AS day, SUM(total), COUNT(*)
		FROM bar_comandas
		WHERE tenant_id = $1 AND status = 'paga' AND closed_at >= $2 AND closed_at < $3
		GROUP BY day ORDER BY day
	`, tenantID, from, to)
	if err != nil {
		return BarReport{}, fmt.Errorf("failed to aggregate bar take: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d DailyTake
		if err := rows.Scan(&d.Day, &d.Total, &d.Paid); err != nil {
			return BarReport{}, err
		}
		rep.Daily = append(rep.Daily, d)
	}
	if err := rows.Err(); err != nil {
		return BarReport{}, err
	}

	err = br.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(total), 0), COUNT(*)
		FROM bar_comandas
		WHERE tenant_id = $1 AND status = 'paga' AND closed_at >= $2 AND closed_at < $3
	`, tenantID, from, to).Scan(&rep.TotalTake, &rep.PaidComandas)
	if err != nil {
		return BarReport{}, fmt.Errorf("failed to aggregate bar totals: %w", err)
	}
	return rep, nil
}
